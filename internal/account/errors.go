package account

import "errors"

var (
	// ErrNoCurrentAccount means no account row has the current flag set.
	ErrNoCurrentAccount = errors.New("no current account")

	// ErrNotFound means no account row matched the query.
	ErrNotFound = errors.New("account not found")

	// ErrPersistence wraps failures of the underlying store. Callers treat
	// it as a generic data-layer error; the cause is preserved for logs.
	ErrPersistence = errors.New("persistence failure")
)
