package ledger

import (
	"context"
	"errors"

	"github.com/go-sql-driver/mysql"
	"gorm.io/gorm"

	"github.com/marcwilhelm/echowave/app/models"
)

// Store is the durable balance store. Implementations must make both
// operations atomic: Credit is a single read-modify-write, and
// DebitIfAvailable checks balance >= qty and decrements in one indivisible
// step, so two concurrent debits against a balance of 1 can never both
// succeed.
type Store interface {
	Credit(ctx context.Context, userID uint, qty int64) (int64, error)
	DebitIfAvailable(ctx context.Context, userID uint, qty int64) (int64, error)
	Balance(ctx context.Context, userID uint) (int64, error)
}

type gormStore struct {
	db *gorm.DB
}

// NewGormStore creates a balance store backed by the users table.
func NewGormStore(db *gorm.DB) Store {
	return &gormStore{db: db}
}

func (s *gormStore) Credit(ctx context.Context, userID uint, qty int64) (int64, error) {
	var balance int64
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.User{}).
			Where("id = ?", userID).
			UpdateColumn("token_balance", gorm.Expr("token_balance + ?", qty))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrUnknownUser
		}
		return tx.Model(&models.User{}).
			Where("id = ?", userID).
			Pluck("token_balance", &balance).Error
	})
	if err != nil {
		return 0, err
	}
	return balance, nil
}

func (s *gormStore) DebitIfAvailable(ctx context.Context, userID uint, qty int64) (int64, error) {
	var balance int64
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// Guarded single-statement decrement. The WHERE clause carries the
		// non-negativity invariant; there is no separate read.
		res := tx.Model(&models.User{}).
			Where("id = ? AND token_balance >= ?", userID, qty).
			UpdateColumn("token_balance", gorm.Expr("token_balance - ?", qty))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			var count int64
			if err := tx.Model(&models.User{}).Where("id = ?", userID).Count(&count).Error; err != nil {
				return err
			}
			if count == 0 {
				return ErrUnknownUser
			}
			return ErrInsufficientTokens
		}
		return tx.Model(&models.User{}).
			Where("id = ?", userID).
			Pluck("token_balance", &balance).Error
	})
	if err != nil {
		return 0, err
	}
	return balance, nil
}

func (s *gormStore) Balance(ctx context.Context, userID uint) (int64, error) {
	var balances []int64
	err := s.db.WithContext(ctx).Model(&models.User{}).
		Where("id = ?", userID).
		Pluck("token_balance", &balances).Error
	if err != nil {
		return 0, err
	}
	if len(balances) == 0 {
		return 0, ErrUnknownUser
	}
	return balances[0], nil
}

// isRetryable reports whether a store error is a transient concurrency
// failure worth retrying (MySQL 1213 deadlock, 1205 lock wait timeout).
func isRetryable(err error) bool {
	var mysqlErr *mysql.MySQLError
	if errors.As(err, &mysqlErr) {
		return mysqlErr.Number == 1213 || mysqlErr.Number == 1205
	}
	return false
}
