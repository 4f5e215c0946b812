package controllers

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/marcwilhelm/echowave/app/models"
	"github.com/marcwilhelm/echowave/internal/pkg/billing"
	"github.com/marcwilhelm/echowave/internal/pkg/database"
	"github.com/marcwilhelm/echowave/internal/pkg/env"
	"github.com/marcwilhelm/echowave/internal/pkg/metrics/counter"
	"github.com/marcwilhelm/echowave/internal/pkg/usercontext"
)

// defaultTokenPriceCents is the list price per audio token ($1).
const defaultTokenPriceCents = 100

type checkoutRequest struct {
	PriceID           string `json:"price_id"`
	TokenQuantity     int64  `json:"token_quantity"`
	CustomAmountCents int64  `json:"custom_amount_cents"`
	SuccessURL        string `json:"success_url"`
}

// HandleCreateCheckout opens a provider checkout session carrying the user's
// purchase intent in metadata, and returns the checkout URL.
func HandleCreateCheckout(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)
	if !userCtx.IsLoggedIn {
		return jsonError(c, fiber.StatusUnauthorized, "not_authenticated")
	}

	var req checkoutRequest
	if err := c.BodyParser(&req); err != nil {
		return jsonError(c, fiber.StatusBadRequest, "invalid_request_body")
	}
	if strings.TrimSpace(req.PriceID) == "" {
		return jsonError(c, fiber.StatusBadRequest, "price_id_required")
	}

	db := database.GetDB()
	var user models.User
	if err := db.First(&user, userCtx.UserID).Error; err != nil {
		return jsonError(c, fiber.StatusInternalServerError, "user_lookup_failed")
	}

	pricePerToken := int64(defaultTokenPriceCents)
	if v := env.GetEnv("TOKEN_PRICE_CENTS", ""); v != "" {
		if parsed, err := strconv.ParseInt(v, 10, 64); err == nil && parsed > 0 {
			pricePerToken = parsed
		}
	}

	encoded := billing.EncodeCheckoutIntent(billing.CheckoutIntent{
		UserID:          user.ID,
		UserEmail:       user.Email,
		TokenIdentifier: user.ExternalIdentity,
		TokenQuantity:   req.TokenQuantity,
	}, req.PriceID, pricePerToken)

	// "Name your price" checkouts override the computed total.
	amount := encoded.AmountCents
	if req.CustomAmountCents > 0 {
		amount = req.CustomAmountCents
	}

	client := billing.NewPolarClientFromEnv()
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	checkout, err := client.CreateCheckout(ctx, billing.CheckoutOptions{
		ProductPriceID: encoded.PriceID,
		SuccessURL:     req.SuccessURL,
		CustomerEmail:  user.Email,
		Metadata:       encoded.Metadata,
		Amount:         amount,
	})
	if err != nil {
		log.Errorf("checkout creation failed for user %d: %v", user.ID, err)
		return jsonError(c, fiber.StatusBadGateway, "checkout_failed")
	}

	return c.JSON(fiber.Map{"url": checkout.URL, "checkout_id": checkout.ID})
}

// HandlePaymentWebhook is the single network-facing entry point of the
// payment reconciliation core.
func HandlePaymentWebhook(c *fiber.Ctx) error {
	svc := billing.NewServiceFromDB(database.GetDB())
	secret := env.GetEnv("POLAR_WEBHOOK_SECRET", "")
	return handlePaymentWebhook(c, svc, secret)
}

func handlePaymentWebhook(c *fiber.Ctx, svc *billing.Service, webhookSecret string) error {
	rawBody := append([]byte(nil), c.BodyRaw()...)

	var envelope billing.WebhookEnvelope
	if err := json.Unmarshal(rawBody, &envelope); err != nil {
		return jsonError(c, fiber.StatusBadRequest, "invalid_request_body")
	}

	webhookID := strings.TrimSpace(c.Get("webhook-id"))
	timestamp := strings.TrimSpace(c.Get("webhook-timestamp"))
	signature := strings.TrimSpace(c.Get("webhook-signature"))

	// Reject before anything is recorded: a body that fails verification
	// must not occupy an id in the idempotency gate, or a later correctly
	// signed delivery of the same event would be swallowed as a duplicate.
	signatureValid := billing.VerifyWebhookSignature(rawBody, webhookID, timestamp, signature, webhookSecret)
	if webhookSecret != "" && !signatureValid {
		return jsonError(c, fiber.StatusUnauthorized, "invalid_signature")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := counter.AddWebhookReceived(envelope.Type); err != nil {
		log.Warnf("webhook counter unavailable: %v", err)
	}

	// Deduplication keys on the per-delivery webhook-id header, never on
	// the payload's object id: every lifecycle event of one subscription
	// carries the same data.id, and order.created/order.paid share the
	// order id. Without the header the payload hash takes over.
	created, stored, err := svc.RecordWebhookEvent(ctx, billing.WebhookEventInput{
		Provider:        models.BillingProviderPolar,
		ProviderEventID: webhookID,
		EventType:       envelope.Type,
		PayloadJSON:     string(rawBody),
		SignatureValid:  signatureValid,
	})
	if err != nil {
		return jsonError(c, fiber.StatusInternalServerError, "webhook_persist_failed")
	}
	if !created && stored.ProcessedAt != nil && stored.ProcessingError == "" {
		// Already applied, tell the provider all is well. A duplicate whose
		// first processing never completed falls through and runs again.
		if err := counter.AddWebhookDuplicate(envelope.Type); err != nil {
			log.Warnf("webhook counter unavailable: %v", err)
		}
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"ok": true, "duplicate": true})
	}

	if err := svc.ProcessEvent(ctx, &envelope); err != nil {
		_ = svc.MarkWebhookProcessed(ctx, stored.ID, err)
		if errors.Is(err, billing.ErrMissingIntentMetadata) {
			// Operational error, but retrying will never fix it: acknowledge
			// so the provider stops redelivering.
			log.Errorf("webhook %s: %v", stored.ProviderEventID, err)
			return c.Status(fiber.StatusOK).JSON(fiber.Map{"ok": true, "ignored": true})
		}
		log.Errorf("webhook %s processing failed: %v", stored.ProviderEventID, err)
		return jsonError(c, fiber.StatusInternalServerError, "event_processing_failed")
	}

	_ = svc.MarkWebhookProcessed(ctx, stored.ID, nil)
	return c.Status(fiber.StatusOK).JSON(fiber.Map{"ok": true})
}

// HandleWebhookStats returns the operational counters for one event type.
func HandleWebhookStats(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)
	if !userCtx.IsAdmin {
		return jsonError(c, fiber.StatusForbidden, "admin_only")
	}

	eventType := strings.TrimSpace(c.Query("type"))
	if eventType == "" {
		return jsonError(c, fiber.StatusBadRequest, "type_required")
	}

	received, duplicate, credited := counter.Snapshot(eventType)
	return c.JSON(fiber.Map{
		"event_type":      eventType,
		"received":        received,
		"duplicate":       duplicate,
		"tokens_credited": credited,
	})
}

// HandleGetSubscription returns the current user's subscription record and
// whether it currently entitles them.
func HandleGetSubscription(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)
	if !userCtx.IsLoggedIn {
		return jsonError(c, fiber.StatusUnauthorized, "not_authenticated")
	}

	svc := billing.NewServiceFromDB(database.GetDB())
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	sub, err := svc.GetUserSubscription(ctx, userCtx.UserID)
	if err != nil {
		return jsonError(c, fiber.StatusInternalServerError, "subscription_lookup_failed")
	}
	if sub == nil {
		return c.JSON(fiber.Map{"has_active_subscription": false, "subscription": nil})
	}

	return c.JSON(fiber.Map{
		"has_active_subscription": sub.IsEntitling(),
		"subscription": fiber.Map{
			"provider_subscription_id": sub.ProviderSubscriptionID,
			"status":                   sub.Status,
			"amount":                   sub.Amount,
			"currency":                 sub.Currency,
			"interval":                 sub.BillingInterval,
			"cancel_at_period_end":     sub.CancelAtPeriodEnd,
			"current_period_start":     formatTimePtr(sub.CurrentPeriodStart),
			"current_period_end":       formatTimePtr(sub.CurrentPeriodEnd),
			"canceled_at":              formatTimePtr(sub.CanceledAt),
			"ended_at":                 formatTimePtr(sub.EndedAt),
		},
	})
}

// HandleCustomerPortal creates a provider customer-portal session for the
// current user's subscription and returns its URL.
func HandleCustomerPortal(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)
	if !userCtx.IsLoggedIn {
		return jsonError(c, fiber.StatusUnauthorized, "not_authenticated")
	}

	svc := billing.NewServiceFromDB(database.GetDB())
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	sub, err := svc.GetUserSubscription(ctx, userCtx.UserID)
	if err != nil {
		return jsonError(c, fiber.StatusInternalServerError, "subscription_lookup_failed")
	}
	if sub == nil || sub.CustomerID == "" {
		return jsonError(c, fiber.StatusNotFound, "no_subscription")
	}

	client := billing.NewPolarClientFromEnv()
	url, err := client.CreateCustomerSession(ctx, sub.CustomerID)
	if err != nil {
		log.Errorf("customer session failed for user %d: %v", userCtx.UserID, err)
		return jsonError(c, fiber.StatusBadGateway, "portal_session_failed")
	}
	return c.JSON(fiber.Map{"url": url})
}
