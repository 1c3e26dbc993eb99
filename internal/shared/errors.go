package shared

import "errors"

var (
	// ErrIdempotencyConflict indicates a duplicate key.
	ErrIdempotencyConflict = errors.New("idempotent request already processed")
	// ErrNotInitialised is returned by nil stores.
	ErrNotInitialised = errors.New("shared: store not initialised")
)
