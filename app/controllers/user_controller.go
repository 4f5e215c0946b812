package controllers

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/marcwilhelm/echowave/app/repository"
	"github.com/marcwilhelm/echowave/internal/pkg/database"
	"github.com/marcwilhelm/echowave/internal/pkg/ledger"
	"github.com/marcwilhelm/echowave/internal/pkg/usercontext"
)

// HandleGetTokenBalance returns the current user's token balance. A client
// without a session gets tokens: null rather than an error, so the balance
// widget can render the signed-out state from the same endpoint.
func HandleGetTokenBalance(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)
	if !userCtx.IsLoggedIn {
		return c.JSON(fiber.Map{"tokens": nil})
	}

	tokenLedger := ledger.NewServiceFromDB(database.GetDB())
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	balance, err := tokenLedger.Balance(ctx, userCtx.UserID)
	if err != nil {
		return jsonError(c, fiber.StatusInternalServerError, "balance_lookup_failed")
	}
	return c.JSON(fiber.Map{"tokens": balance})
}

// HandleGetMe returns the current user's profile.
func HandleGetMe(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)
	if !userCtx.IsLoggedIn {
		return jsonError(c, fiber.StatusUnauthorized, "not_authenticated")
	}

	user, err := repository.GetGlobalFactory().GetUserRepository().GetByID(userCtx.UserID)
	if err != nil {
		return jsonError(c, fiber.StatusInternalServerError, "user_lookup_failed")
	}
	return c.JSON(fiber.Map{"user": user})
}
