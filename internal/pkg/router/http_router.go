package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/marcwilhelm/echowave/app/controllers"
	"github.com/marcwilhelm/echowave/internal/pkg/middleware"
	"github.com/marcwilhelm/echowave/internal/pkg/oauth"
	"github.com/marcwilhelm/echowave/internal/pkg/session"
)

type HttpRouter struct {
}

func (h HttpRouter) InstallRouter(app *fiber.App) {
	// init session
	session.NewSessionStore()

	// init oauth providers
	oauth.Setup()

	// Apply UserContext middleware globally as first middleware
	app.Use(middleware.UserContextMiddleware)

	h.registerPublicRoutes(app)
}

func (h HttpRouter) registerPublicRoutes(app *fiber.App) {
	// Local auth
	app.Post("/register", controllers.HandleRegister)
	app.Post("/login", controllers.HandleLogin)
	app.Post("/logout", middleware.RequireAuth, controllers.HandleLogout)

	// Social OAuth. Goth needs the raw provider routes.
	app.Get("/auth/:provider", controllers.HandleOAuthBegin)
	app.Get("/auth/:provider/callback", controllers.HandleOAuthCallback)
	app.Get("/auth/logout", controllers.HandleOAuthLogout)

	// Billing provider webhooks (no CSRF, signature-verified in controller)
	app.Post("/webhooks/payment", controllers.HandlePaymentWebhook)
}

func NewHttpRouter() *HttpRouter {
	return &HttpRouter{}
}
