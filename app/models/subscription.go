package models

import "time"

// Billing provider constants used across billing-related models.
const (
	BillingProviderPolar = "polar"
)

const (
	BillingIntervalMonth   = "month"
	BillingIntervalYear    = "year"
	BillingIntervalUnknown = "unknown"
)

// Subscription lifecycle statuses. "revoked" is terminal; a row never leaves
// it except through idempotent re-delivery of the same revoke event.
const (
	SubscriptionStatusCreated    = "created"
	SubscriptionStatusActive     = "active"
	SubscriptionStatusCanceled   = "canceled"
	SubscriptionStatusUncanceled = "uncanceled"
	SubscriptionStatusRevoked    = "revoked"
	SubscriptionStatusEnded      = "ended"
)

// Subscription mirrors one provider subscription. Exactly one row exists per
// provider_subscription_id; lifecycle events upsert and patch it, rows are
// never physically deleted.
type Subscription struct {
	ID                     uint       `gorm:"primaryKey" json:"id"`
	UserID                 uint       `gorm:"not null;index" json:"user_id"`
	Provider               string     `gorm:"type:varchar(20);not null;index:ux_subscriptions_provider_subid,unique,priority:1" json:"provider"`
	ProviderSubscriptionID string     `gorm:"type:varchar(191);not null;index:ux_subscriptions_provider_subid,unique,priority:2" json:"provider_subscription_id"`
	ProviderPriceID        string     `gorm:"type:varchar(191);not null;default:''" json:"provider_price_id"`
	CustomerID             string     `gorm:"type:varchar(191);not null;default:'';index" json:"customer_id"`
	Status                 string     `gorm:"type:varchar(32);not null;default:'created';index" json:"status"`
	Amount                 int64      `gorm:"not null;default:0" json:"amount"`
	Currency               string     `gorm:"type:varchar(8);not null;default:''" json:"currency"`
	BillingInterval        string     `gorm:"type:varchar(16);not null;default:'unknown'" json:"billing_interval"`
	CurrentPeriodStart     *time.Time `gorm:"type:timestamp;default:null" json:"current_period_start,omitempty"`
	CurrentPeriodEnd       *time.Time `gorm:"type:timestamp;default:null" json:"current_period_end,omitempty"`
	CancelAtPeriodEnd      bool       `gorm:"default:false" json:"cancel_at_period_end"`
	StartedAt              *time.Time `gorm:"type:timestamp;default:null" json:"started_at,omitempty"`
	CanceledAt             *time.Time `gorm:"type:timestamp;default:null" json:"canceled_at,omitempty"`
	EndedAt                *time.Time `gorm:"type:timestamp;default:null" json:"ended_at,omitempty"`
	CancellationReason     string     `gorm:"type:varchar(191);not null;default:''" json:"cancellation_reason"`
	CancellationComment    string     `gorm:"type:text" json:"cancellation_comment"`
	MetadataJSON           string     `gorm:"type:longtext" json:"metadata_json"`
	RawPayloadJSON         string     `gorm:"type:longtext" json:"raw_payload_json"`
	CreatedAt              time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt              time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

// IsEntitling reports whether this subscription currently grants access.
func (s *Subscription) IsEntitling() bool {
	return s.Status == SubscriptionStatusActive
}
