package ledger

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memoryStore honors the Store atomicity contract with a mutex so the
// service-level guarantees can be exercised without a database.
type memoryStore struct {
	mu       sync.Mutex
	balances map[uint]int64
}

func newMemoryStore(balances map[uint]int64) *memoryStore {
	if balances == nil {
		balances = make(map[uint]int64)
	}
	return &memoryStore{balances: balances}
}

func (m *memoryStore) Credit(_ context.Context, userID uint, qty int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.balances[userID]; !ok {
		return 0, ErrUnknownUser
	}
	m.balances[userID] += qty
	return m.balances[userID], nil
}

func (m *memoryStore) DebitIfAvailable(_ context.Context, userID uint, qty int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	balance, ok := m.balances[userID]
	if !ok {
		return 0, ErrUnknownUser
	}
	if balance < qty {
		return 0, ErrInsufficientTokens
	}
	m.balances[userID] = balance - qty
	return m.balances[userID], nil
}

func (m *memoryStore) Balance(_ context.Context, userID uint) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	balance, ok := m.balances[userID]
	if !ok {
		return 0, ErrUnknownUser
	}
	return balance, nil
}

func TestCreditAndDebit(t *testing.T) {
	svc := NewService(newMemoryStore(map[uint]int64{1: 0}))
	ctx := context.Background()

	balance, err := svc.Credit(ctx, 1, 3)
	require.NoError(t, err)
	assert.Equal(t, int64(3), balance)

	balance, err = svc.Debit(ctx, 1, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(2), balance)
}

func TestDebitInsufficientLeavesBalanceUntouched(t *testing.T) {
	svc := NewService(newMemoryStore(map[uint]int64{1: 0}))
	ctx := context.Background()

	_, err := svc.Debit(ctx, 1, 1)
	require.ErrorIs(t, err, ErrInsufficientTokens)

	balance, err := svc.Balance(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(0), balance)
}

func TestInvalidQuantities(t *testing.T) {
	svc := NewService(newMemoryStore(map[uint]int64{1: 5}))
	ctx := context.Background()

	for _, qty := range []int64{0, -1} {
		_, err := svc.Credit(ctx, 1, qty)
		assert.ErrorIs(t, err, ErrInvalidQuantity)
		_, err = svc.Debit(ctx, 1, qty)
		assert.ErrorIs(t, err, ErrInvalidQuantity)
	}

	balance, err := svc.Balance(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(5), balance)
}

func TestUnknownUser(t *testing.T) {
	svc := NewService(newMemoryStore(nil))
	ctx := context.Background()

	_, err := svc.Credit(ctx, 99, 1)
	assert.ErrorIs(t, err, ErrUnknownUser)
	_, err = svc.Debit(ctx, 99, 1)
	assert.ErrorIs(t, err, ErrUnknownUser)
	_, err = svc.Balance(ctx, 99)
	assert.ErrorIs(t, err, ErrUnknownUser)
}

func TestConcurrentDebitsAtMostOneSucceeds(t *testing.T) {
	svc := NewService(newMemoryStore(map[uint]int64{1: 1}))
	ctx := context.Background()

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.Debit(ctx, 1, 1)
		}(i)
	}
	wg.Wait()

	successes := 0
	insufficient := 0
	for _, err := range errs {
		switch {
		case err == nil:
			successes++
		case errors.Is(err, ErrInsufficientTokens):
			insufficient++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, successes)
	assert.Equal(t, 1, insufficient)

	balance, err := svc.Balance(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(0), balance)
}

func TestConcurrentMixedOpsNeverGoNegative(t *testing.T) {
	store := newMemoryStore(map[uint]int64{1: 10})
	svc := NewService(store)
	ctx := context.Background()

	const workers = 16
	const opsPerWorker = 50

	var wg sync.WaitGroup
	var credited, debited int64
	var mu sync.Mutex

	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < opsPerWorker; i++ {
				if (w+i)%2 == 0 {
					if _, err := svc.Credit(ctx, 1, 1); err == nil {
						mu.Lock()
						credited++
						mu.Unlock()
					}
				} else {
					if _, err := svc.Debit(ctx, 1, 1); err == nil {
						mu.Lock()
						debited++
						mu.Unlock()
					}
				}
			}
		}(w)
	}
	wg.Wait()

	balance, err := svc.Balance(ctx, 1)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, balance, int64(0))
	assert.Equal(t, 10+credited-debited, balance)
}

// flakyStore always fails with a retryable MySQL deadlock error.
type flakyStore struct {
	calls int
}

func (f *flakyStore) Credit(context.Context, uint, int64) (int64, error) {
	f.calls++
	return 0, &mysql.MySQLError{Number: 1213, Message: "Deadlock found when trying to get lock"}
}

func (f *flakyStore) DebitIfAvailable(context.Context, uint, int64) (int64, error) {
	f.calls++
	return 0, &mysql.MySQLError{Number: 1213, Message: "Deadlock found when trying to get lock"}
}

func (f *flakyStore) Balance(context.Context, uint) (int64, error) {
	return 0, nil
}

func TestWriteConflictAfterBoundedRetries(t *testing.T) {
	store := &flakyStore{}
	svc := NewService(store)

	_, err := svc.Credit(context.Background(), 1, 1)
	require.ErrorIs(t, err, ErrWriteConflict)
	assert.Equal(t, maxAttempts, store.calls)
}
