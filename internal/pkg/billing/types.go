package billing

import (
	"encoding/json"
	"time"
)

// WebhookEnvelope is the provider's webhook wire format. The payload schema
// is external; every field beyond type and data.id is optional and shape
// differences between event variants are handled by the router.
type WebhookEnvelope struct {
	Type string    `json:"type"`
	Data EventData `json:"data"`
}

// EventData carries the provider object snapshot for one event.
type EventData struct {
	ID                          string        `json:"id"`
	Status                      string        `json:"status,omitempty"`
	Amount                      int64         `json:"amount,omitempty"`
	Currency                    string        `json:"currency,omitempty"`
	PriceID                     string        `json:"price_id,omitempty"`
	RecurringInterval           string        `json:"recurring_interval,omitempty"`
	CurrentPeriodStart          *time.Time    `json:"current_period_start,omitempty"`
	CurrentPeriodEnd            *time.Time    `json:"current_period_end,omitempty"`
	CancelAtPeriodEnd           bool          `json:"cancel_at_period_end,omitempty"`
	StartedAt                   *time.Time    `json:"started_at,omitempty"`
	EndedAt                     *time.Time    `json:"ended_at,omitempty"`
	CanceledAt                  *time.Time    `json:"canceled_at,omitempty"`
	CustomerCancellationReason  string        `json:"customer_cancellation_reason,omitempty"`
	CustomerCancellationComment string        `json:"customer_cancellation_comment,omitempty"`
	ProductName                 string        `json:"product_name,omitempty"`
	Items                       []OrderItem   `json:"items,omitempty"`
	Metadata                    EventMetadata `json:"metadata,omitempty"`
	CustomerID                  string        `json:"customer_id,omitempty"`
	CreatedAt                   *time.Time    `json:"created_at,omitempty"`
	ModifiedAt                  *time.Time    `json:"modified_at,omitempty"`
}

// OrderItem is a paid line item. order.paid events carry the product label
// here instead of in product_name.
type OrderItem struct {
	Label string `json:"label"`
}

// EventMetadata is the checkout-intent envelope carried through the
// provider. Older records may miss any field; consumers must tolerate that.
type EventMetadata struct {
	UserID          FlexString `json:"userId,omitempty"`
	UserEmail       FlexString `json:"userEmail,omitempty"`
	TokenIdentifier FlexString `json:"tokenIdentifier,omitempty"`
	TokenQuantity   FlexString `json:"tokenQuantity,omitempty"`
}

// FlexString decodes from a JSON string or number. Intent metadata is
// written as strings, but provider dashboards and older records sometimes
// deliver numbers; a type mismatch must degrade, not fail the whole event.
type FlexString string

func (f *FlexString) UnmarshalJSON(data []byte) error {
	if len(data) == 0 || string(data) == "null" {
		*f = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = FlexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*f = FlexString(n.String())
	return nil
}

func (f FlexString) String() string {
	return string(f)
}

// WebhookEventInput is the normalized input for webhook event persistence.
type WebhookEventInput struct {
	Provider        string
	ProviderEventID string
	EventType       string
	PayloadJSON     string
	SignatureValid  bool
}
