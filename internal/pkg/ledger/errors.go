package ledger

import "errors"

var (
	// ErrInsufficientTokens is the expected business outcome when a debit
	// asks for more tokens than the balance holds. It never partially
	// mutates state.
	ErrInsufficientTokens = errors.New("insufficient tokens")

	// ErrUnknownUser means the ledger has no row for the given user id.
	ErrUnknownUser = errors.New("unknown user")

	// ErrInvalidQuantity rejects non-positive credit/debit quantities.
	ErrInvalidQuantity = errors.New("quantity must be a positive integer")

	// ErrWriteConflict surfaces after bounded retries on store-level
	// concurrency failures (deadlock, lock wait timeout).
	ErrWriteConflict = errors.New("ledger write conflict")
)
