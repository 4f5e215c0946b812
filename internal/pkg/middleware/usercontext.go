package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/marcwilhelm/echowave/internal/pkg/session"
	"github.com/marcwilhelm/echowave/internal/pkg/usercontext"
)

// UserContextMiddleware sets up the complete user context for every request.
// This centralizes user session handling and eliminates code duplication.
func UserContextMiddleware(c *fiber.Ctx) error {
	// Avoid interfering with Goth/Fiber session handling on OAuth routes.
	// Goth uses its own fiber session store and relies on per-request locals.
	if strings.HasPrefix(c.Path(), "/auth/") {
		return c.Next()
	}

	sess, err := session.GetSessionStore().Get(c)
	if err != nil {
		c.Locals("USER_CONTEXT", usercontext.UserContext{IsLoggedIn: false})
		c.Locals(usercontext.KeyFromProtected, false)
		return c.Next()
	}

	userID := sess.Get(usercontext.KeyUserID)
	if userID == nil {
		c.Locals("USER_CONTEXT", usercontext.UserContext{IsLoggedIn: false})
		c.Locals(usercontext.KeyFromProtected, false)
		return c.Next()
	}

	isAdmin, _ := sess.Get(usercontext.KeyIsAdmin).(bool)
	c.Locals("USER_CONTEXT", usercontext.UserContext{
		UserID:     userID.(uint),
		Username:   session.GetSessionValue(c, usercontext.KeyUsername),
		Email:      session.GetSessionValue(c, usercontext.KeyUserEmail),
		IsLoggedIn: true,
		IsAdmin:    isAdmin,
	})
	c.Locals(usercontext.KeyFromProtected, true)
	return c.Next()
}
