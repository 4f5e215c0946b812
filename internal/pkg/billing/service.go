// Package billing reconciles payment-provider webhook events into the local
// subscription records and the token ledger. Events are deduplicated by
// provider event id before they ever reach the router, so every handler here
// runs at most once per provider event.
package billing

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"

	"github.com/marcwilhelm/echowave/app/models"
	"github.com/marcwilhelm/echowave/internal/pkg/ledger"
	"github.com/marcwilhelm/echowave/internal/pkg/metrics/counter"
)

// ErrMissingIntentMetadata marks a token purchase whose metadata resolves to
// no local user. The event is still acknowledged; the credit is skipped and
// the error recorded on the stored webhook event for operators.
var ErrMissingIntentMetadata = errors.New("no resolvable user identity in event metadata")

type eventHandler func(ctx context.Context, data *EventData) error

// Service routes classified provider events into the subscription state
// machine and the token ledger.
type Service struct {
	repo     Repository
	ledger   *ledger.Service
	handlers map[EventKind]eventHandler
}

// NewService creates a billing service from injected collaborators.
func NewService(repo Repository, tokenLedger *ledger.Service) *Service {
	s := &Service{repo: repo, ledger: tokenLedger}
	s.handlers = map[EventKind]eventHandler{
		EventSubscriptionCreated:    s.handleSubscriptionCreated,
		EventSubscriptionUpdated:    s.handleSubscriptionUpdated,
		EventSubscriptionActive:     s.handleSubscriptionActive,
		EventSubscriptionCanceled:   s.handleSubscriptionCanceled,
		EventSubscriptionUncanceled: s.handleSubscriptionUncanceled,
		EventSubscriptionRevoked:    s.handleSubscriptionRevoked,
		EventOrderCreated:           s.handleOrder,
		EventOrderPaid:              s.handleOrder,
	}
	return s
}

// NewServiceFromDB creates a billing service from a GORM DB handle.
func NewServiceFromDB(db *gorm.DB) *Service {
	return NewService(NewRepository(db), ledger.NewServiceFromDB(db))
}

// RecordWebhookEvent persists webhook payloads idempotently. The returned
// bool is false when the provider event id was seen before, in which case
// the caller must not process the event again.
func (s *Service) RecordWebhookEvent(ctx context.Context, in WebhookEventInput) (bool, *models.WebhookEvent, error) {
	_ = ctx
	provider := strings.ToLower(strings.TrimSpace(in.Provider))
	if provider == "" {
		return false, nil, errors.New("provider is required")
	}
	eventID := strings.TrimSpace(in.ProviderEventID)
	if eventID == "" {
		sum := sha256.Sum256([]byte(in.PayloadJSON))
		eventID = "hash:" + hex.EncodeToString(sum[:])
	}

	event := &models.WebhookEvent{
		Provider:        provider,
		ProviderEventID: eventID,
		EventType:       strings.TrimSpace(in.EventType),
		PayloadJSON:     in.PayloadJSON,
		SignatureValid:  in.SignatureValid,
	}
	return s.repo.CreateWebhookEventIfNotExists(event)
}

// MarkWebhookProcessed marks an event as processed and stores an optional error.
func (s *Service) MarkWebhookProcessed(ctx context.Context, webhookEventID uint, processingErr error) error {
	_ = ctx
	if webhookEventID == 0 {
		return errors.New("webhook_event_id is required")
	}
	errMsg := ""
	if processingErr != nil {
		errMsg = processingErr.Error()
	}
	return s.repo.MarkWebhookProcessed(webhookEventID, errMsg)
}

// ProcessEvent classifies the envelope and dispatches it. Unknown event
// types are logged and absorbed so the webhook channel stays non-blocking
// for the provider.
func (s *Service) ProcessEvent(ctx context.Context, envelope *WebhookEnvelope) error {
	kind, known := ParseEventKind(envelope.Type)
	if !known {
		log.Infof("billing: unhandled event type %q (id=%s)", envelope.Type, envelope.Data.ID)
		return nil
	}
	return s.handlers[kind](ctx, &envelope.Data)
}

// GetUserSubscription returns the user's most recently updated subscription
// record, or nil when none exists.
func (s *Service) GetUserSubscription(ctx context.Context, userID uint) (*models.Subscription, error) {
	_ = ctx
	subs, err := s.repo.ListSubscriptionsByUser(userID)
	if err != nil {
		return nil, err
	}
	if len(subs) == 0 {
		return nil, nil
	}
	return &subs[0], nil
}

// HasActiveSubscription reports whether any of the user's subscriptions
// currently entitles them.
func (s *Service) HasActiveSubscription(ctx context.Context, userID uint) (bool, error) {
	_ = ctx
	subs, err := s.repo.ListSubscriptionsByUser(userID)
	if err != nil {
		return false, err
	}
	for i := range subs {
		if subs[i].IsEntitling() {
			return true, nil
		}
	}
	return false, nil
}

func (s *Service) handleSubscriptionCreated(ctx context.Context, data *EventData) error {
	if _, err := s.repo.GetSubscriptionByProviderID(models.BillingProviderPolar, data.ID); err == nil {
		// Row already exists: re-delivered create, nothing to do.
		log.Infof("billing: subscription %s already exists, skipping create", data.ID)
		return nil
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}

	user, err := s.resolvePurchaser(data.Metadata)
	if err != nil {
		return err
	}

	status, known := normalizeStatus(data.Status)
	if !known {
		log.Warnf("billing: unknown status %q on subscription %s create, storing created", data.Status, data.ID)
		status = models.SubscriptionStatusCreated
	}

	sub := &models.Subscription{
		UserID:                 user.ID,
		Provider:               models.BillingProviderPolar,
		ProviderSubscriptionID: data.ID,
		ProviderPriceID:        data.PriceID,
		CustomerID:             data.CustomerID,
		Status:                 status,
		Amount:                 data.Amount,
		Currency:               data.Currency,
		BillingInterval:        normalizeInterval(data.RecurringInterval),
		CurrentPeriodStart:     data.CurrentPeriodStart,
		CurrentPeriodEnd:       data.CurrentPeriodEnd,
		CancelAtPeriodEnd:      data.CancelAtPeriodEnd,
		StartedAt:              data.StartedAt,
		CanceledAt:             data.CanceledAt,
		EndedAt:                data.EndedAt,
		CancellationReason:     data.CustomerCancellationReason,
		CancellationComment:    data.CustomerCancellationComment,
		MetadataJSON:           marshalMetadata(data.Metadata),
		RawPayloadJSON:         marshalData(data),
	}
	return s.repo.InsertSubscription(sub)
}

func (s *Service) handleSubscriptionUpdated(ctx context.Context, data *EventData) error {
	sub, ok, err := s.existingSubscription(data.ID, "update")
	if err != nil || !ok {
		return err
	}

	// Updated is a patch-style event and the status field is optional. The
	// snapshot fields always apply; the status only moves when the event
	// carries one the lifecycle graph accepts.
	if strings.TrimSpace(data.Status) != "" {
		s.applyStatus(sub, data.Status)
	}
	sub.Amount = data.Amount
	sub.CurrentPeriodStart = data.CurrentPeriodStart
	sub.CurrentPeriodEnd = data.CurrentPeriodEnd
	sub.CancelAtPeriodEnd = data.CancelAtPeriodEnd
	sub.MetadataJSON = marshalMetadata(data.Metadata)
	return s.repo.SaveSubscription(sub)
}

func (s *Service) handleSubscriptionActive(ctx context.Context, data *EventData) error {
	sub, ok, err := s.existingSubscription(data.ID, "activate")
	if err != nil || !ok {
		return err
	}

	if !s.applyStatus(sub, models.SubscriptionStatusActive) {
		return nil
	}
	if data.StartedAt != nil {
		sub.StartedAt = data.StartedAt
	}
	return s.repo.SaveSubscription(sub)
}

func (s *Service) handleSubscriptionCanceled(ctx context.Context, data *EventData) error {
	sub, ok, err := s.existingSubscription(data.ID, "cancel")
	if err != nil || !ok {
		return err
	}

	if !s.applyStatus(sub, models.SubscriptionStatusCanceled) {
		return nil
	}
	sub.CanceledAt = data.CanceledAt
	sub.CancellationReason = data.CustomerCancellationReason
	sub.CancellationComment = data.CustomerCancellationComment
	return s.repo.SaveSubscription(sub)
}

func (s *Service) handleSubscriptionUncanceled(ctx context.Context, data *EventData) error {
	sub, ok, err := s.existingSubscription(data.ID, "uncancel")
	if err != nil || !ok {
		return err
	}

	if !s.applyStatus(sub, models.SubscriptionStatusActive) {
		return nil
	}
	sub.CancelAtPeriodEnd = false
	sub.CanceledAt = nil
	sub.CancellationReason = ""
	sub.CancellationComment = ""
	return s.repo.SaveSubscription(sub)
}

func (s *Service) handleSubscriptionRevoked(ctx context.Context, data *EventData) error {
	sub, ok, err := s.existingSubscription(data.ID, "revoke")
	if err != nil || !ok {
		return err
	}
	if sub.Status == models.SubscriptionStatusRevoked {
		// Terminal state, re-delivery is a no-op.
		return nil
	}

	if !s.applyStatus(sub, models.SubscriptionStatusRevoked) {
		return nil
	}
	sub.EndedAt = data.EndedAt
	return s.repo.SaveSubscription(sub)
}

// handleOrder credits token purchases. Non-token orders pass through
// untouched; token orders without a resolvable purchaser surface
// ErrMissingIntentMetadata so the failure lands on the event audit row.
func (s *Service) handleOrder(ctx context.Context, data *EventData) error {
	label := productLabel(data)
	if !IsTokenProduct(label) {
		return nil
	}

	user, err := s.resolvePurchaser(data.Metadata)
	if err != nil {
		return err
	}

	qty := ResolveTokenQuantity(data.Metadata, label, data.Amount)
	newBalance, err := s.ledger.Credit(ctx, user.ID, qty)
	if err != nil {
		return err
	}
	if counterErr := counter.AddTokensCredited(qty); counterErr != nil {
		log.Warnf("billing: credited-tokens counter unavailable: %v", counterErr)
	}
	log.Infof("billing: credited %d token(s) to user %d, balance now %d", qty, user.ID, newBalance)
	return nil
}

// existingSubscription loads the row a lifecycle event targets. A missing
// row means the event arrived out of order; it is logged and skipped, never
// applied destructively.
func (s *Service) existingSubscription(providerSubID, action string) (*models.Subscription, bool, error) {
	sub, err := s.repo.GetSubscriptionByProviderID(models.BillingProviderPolar, providerSubID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			log.Warnf("billing: cannot %s subscription %s: no local row", action, providerSubID)
			return nil, false, nil
		}
		return nil, false, err
	}
	return sub, true, nil
}

// applyStatus moves the subscription onto the new status when the lifecycle
// graph allows it. Unknown provider spellings and illegal transitions are
// logged and the status change is skipped.
func (s *Service) applyStatus(sub *models.Subscription, status string) bool {
	next, known := normalizeStatus(status)
	if !known {
		log.Warnf("billing: unknown status %q for subscription %s, keeping %s",
			status, sub.ProviderSubscriptionID, sub.Status)
		return false
	}
	if !canTransition(sub.Status, next) {
		log.Warnf("billing: illegal transition %s -> %s for subscription %s, skipping",
			sub.Status, next, sub.ProviderSubscriptionID)
		return false
	}
	sub.Status = next
	return true
}

func (s *Service) resolvePurchaser(meta EventMetadata) (*models.User, error) {
	intent := DecodeCheckoutIntent(meta)

	if intent.UserID != 0 {
		user, err := s.repo.GetUserByID(intent.UserID)
		if err == nil {
			return user, nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
	}
	if intent.TokenIdentifier != "" {
		user, err := s.repo.GetUserByExternalIdentity(intent.TokenIdentifier)
		if err == nil {
			return user, nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
	}
	return nil, ErrMissingIntentMetadata
}

func normalizeInterval(interval string) string {
	switch strings.ToLower(strings.TrimSpace(interval)) {
	case models.BillingIntervalMonth, models.BillingIntervalYear:
		return strings.ToLower(strings.TrimSpace(interval))
	default:
		return models.BillingIntervalUnknown
	}
}

func marshalMetadata(meta EventMetadata) string {
	data, err := json.Marshal(meta)
	if err != nil {
		return ""
	}
	return string(data)
}

func marshalData(data *EventData) string {
	raw, err := json.Marshal(data)
	if err != nil {
		return ""
	}
	return string(raw)
}
