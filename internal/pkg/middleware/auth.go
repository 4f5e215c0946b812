package middleware

import (
	"github.com/gofiber/fiber/v2"

	"github.com/marcwilhelm/echowave/internal/pkg/usercontext"
)

// RequireAuth ensures a logged-in web session; redirects to /login if missing.
func RequireAuth(c *fiber.Ctx) error {
	if !usercontext.IsLoggedIn(c) {
		return c.Redirect("/login", fiber.StatusSeeOther)
	}
	return c.Next()
}

// RequireAPIAuth ensures a logged-in session for JSON API routes; responds
// 401 instead of redirecting.
func RequireAPIAuth(c *fiber.Ctx) error {
	if !usercontext.IsLoggedIn(c) {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "not_authenticated"})
	}
	return c.Next()
}
