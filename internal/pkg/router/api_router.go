package router

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"

	"github.com/marcwilhelm/echowave/app/controllers"
	"github.com/marcwilhelm/echowave/internal/pkg/middleware"
)

type ApiRouter struct {
}

func (h ApiRouter) InstallRouter(app *fiber.App) {
	api := app.Group("/api", limiter.New())
	api.Get("/", func(ctx *fiber.Ctx) error {
		return ctx.Status(fiber.StatusOK).JSON(fiber.Map{
			"message": "Hello from api",
		})
	})

	v1 := api.Group("/v1")

	// Feed (public)
	v1.Get("/posts", controllers.HandleListPosts)
	v1.Get("/posts/:uuid", controllers.HandleGetPost)
	v1.Get("/posts/:uuid/audio", controllers.HandleGetAudioURL)

	// Token balance is public on purpose: it answers null when signed out.
	v1.Get("/tokens", controllers.HandleGetTokenBalance)

	// Account
	v1.Get("/me", middleware.RequireAPIAuth, controllers.HandleGetMe)
	v1.Get("/me/posts", middleware.RequireAPIAuth, controllers.HandleGetMyPosts)

	// Publishing
	v1.Post("/uploads", middleware.RequireAPIAuth, controllers.HandleCreateUploadSession)
	v1.Post("/posts", middleware.RequireAPIAuth, controllers.HandleCreatePost)

	// Billing
	v1.Post("/billing/checkout", middleware.RequireAPIAuth, controllers.HandleCreateCheckout)
	v1.Get("/billing/subscription", middleware.RequireAPIAuth, controllers.HandleGetSubscription)
	v1.Post("/billing/portal", middleware.RequireAPIAuth, controllers.HandleCustomerPortal)
	v1.Get("/billing/webhook-stats", middleware.RequireAPIAuth, controllers.HandleWebhookStats)
}

func NewApiRouter() *ApiRouter {
	return &ApiRouter{}
}
