package controllers

import (
	"time"

	"github.com/gofiber/fiber/v2"
)

// formatTimePtr renders an optional timestamp as RFC3339 UTC, or nil.
func formatTimePtr(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return t.UTC().Format(time.RFC3339)
}

// jsonError writes a uniform JSON error response.
func jsonError(c *fiber.Ctx, status int, code string) error {
	return c.Status(status).JSON(fiber.Map{"error": code})
}
