// Package ledger owns the per-user audio token balance. It is the only code
// allowed to mutate users.token_balance, and it guarantees the balance never
// drops below zero under concurrent credits and debits.
package ledger

import (
	"context"
	"fmt"

	"gorm.io/gorm"
)

const maxAttempts = 3

// Service wraps a Store with input validation and bounded retries on
// transient store conflicts.
type Service struct {
	store Store
}

// NewService creates a ledger service from an injected store.
func NewService(store Store) *Service {
	return &Service{store: store}
}

// NewServiceFromDB creates a ledger service from a GORM DB handle.
func NewServiceFromDB(db *gorm.DB) *Service {
	return NewService(NewGormStore(db))
}

// Credit atomically adds qty tokens to the user's balance and returns the
// new balance.
func (s *Service) Credit(ctx context.Context, userID uint, qty int64) (int64, error) {
	if qty <= 0 {
		return 0, ErrInvalidQuantity
	}
	return s.withRetries(func() (int64, error) {
		return s.store.Credit(ctx, userID, qty)
	})
}

// Debit atomically removes qty tokens if the balance covers them. It returns
// ErrInsufficientTokens without mutating anything when it does not; that is
// an expected outcome, not a fault.
func (s *Service) Debit(ctx context.Context, userID uint, qty int64) (int64, error) {
	if qty <= 0 {
		return 0, ErrInvalidQuantity
	}
	return s.withRetries(func() (int64, error) {
		return s.store.DebitIfAvailable(ctx, userID, qty)
	})
}

// Balance returns the user's current token balance.
func (s *Service) Balance(ctx context.Context, userID uint) (int64, error) {
	return s.store.Balance(ctx, userID)
}

func (s *Service) withRetries(op func() (int64, error)) (int64, error) {
	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		balance, err := op()
		if err == nil {
			return balance, nil
		}
		if !isRetryable(err) {
			return 0, err
		}
		lastErr = err
	}
	return 0, fmt.Errorf("%w: %v", ErrWriteConflict, lastErr)
}
