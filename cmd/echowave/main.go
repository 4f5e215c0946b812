package main

import (
	"fmt"
	"log"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/basicauth"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/monitor"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/marcwilhelm/echowave/app/repository"
	"github.com/marcwilhelm/echowave/internal/pkg/cache"
	"github.com/marcwilhelm/echowave/internal/pkg/database"
	"github.com/marcwilhelm/echowave/internal/pkg/env"
	"github.com/marcwilhelm/echowave/internal/pkg/router"
)

func main() {
	app := NewApplication()
	err := app.Listen(fmt.Sprintf("%s:%s", env.GetEnv("APP_HOST", "localhost"), env.GetEnv("APP_PORT", "4000")))
	log.Fatal(err)
}

func NewApplication() *fiber.App {
	env.Load()
	database.SetupDatabase()
	cache.SetupCache()
	repository.InitGlobalFactory(database.GetDB())

	// init fiber app
	app := fiber.New(fiber.Config{
		BodyLimit: 1048576, // uploads bypass the app via presigned URLs
	})

	// recovery and logging
	app.Use(recover.New(), logger.New())

	// fiber metrics
	app.Get("/metrics", basicauth.New(basicauth.Config{
		Users: map[string]string{
			"admin": env.GetEnv("METRICS_PASSWORD", "test"),
		},
	}), monitor.New())

	// ROUTER
	router.InstallRouter(app)

	return app
}
