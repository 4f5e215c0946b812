package billing

import (
	"strconv"
	"strings"
)

// CheckoutIntent is the purchase intent a user expresses when initiating a
// checkout. It exists only between checkout creation and the matching
// webhook's arrival: it is packed into provider metadata on the way out and
// reconstructed from event metadata on the way back, never stored itself.
type CheckoutIntent struct {
	UserID          uint
	UserEmail       string
	TokenIdentifier string
	TokenQuantity   int64
}

// CheckoutRequest is the outbound checkout shape handed to the provider
// client: the priced product, the computed total, and the intent metadata.
type CheckoutRequest struct {
	PriceID     string
	AmountCents int64
	Metadata    map[string]string
}

// EncodeCheckoutIntent computes the checkout total and packs the intent into
// wire metadata. All metadata values travel as strings.
func EncodeCheckoutIntent(intent CheckoutIntent, priceID string, pricePerTokenCents int64) CheckoutRequest {
	qty := intent.TokenQuantity
	if qty < 1 {
		qty = 1
	}
	metadata := map[string]string{
		"userId":        strconv.FormatUint(uint64(intent.UserID), 10),
		"tokenQuantity": strconv.FormatInt(qty, 10),
	}
	if intent.UserEmail != "" {
		metadata["userEmail"] = intent.UserEmail
	}
	if intent.TokenIdentifier != "" {
		metadata["tokenIdentifier"] = intent.TokenIdentifier
	}
	return CheckoutRequest{
		PriceID:     priceID,
		AmountCents: qty * pricePerTokenCents,
		Metadata:    metadata,
	}
}

// DecodeCheckoutIntent recovers the intent from inbound event metadata. Any
// field may be missing on older or partial records: absent values come back
// zero and the caller falls back to derived quantities, it never fails.
func DecodeCheckoutIntent(meta EventMetadata) CheckoutIntent {
	intent := CheckoutIntent{
		UserEmail:       strings.TrimSpace(meta.UserEmail.String()),
		TokenIdentifier: strings.TrimSpace(meta.TokenIdentifier.String()),
	}
	if id, err := strconv.ParseUint(strings.TrimSpace(meta.UserID.String()), 10, 64); err == nil {
		intent.UserID = uint(id)
	}
	if qty, err := strconv.ParseInt(strings.TrimSpace(meta.TokenQuantity.String()), 10, 64); err == nil && qty > 0 {
		intent.TokenQuantity = qty
	}
	return intent
}
