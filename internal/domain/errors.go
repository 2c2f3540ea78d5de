package domain

import "errors"

var (
	// ErrInvalidInput marks caller mistakes: empty queries, malformed
	// parameters. Recoverable by the caller.
	ErrInvalidInput = errors.New("invalid input")

	// ErrUnavailable marks connectivity faults against the external
	// index. Surfaced without local recovery; retry policy belongs to
	// the caller.
	ErrUnavailable = errors.New("index unavailable")

	// ErrNotFound marks lookups for entities the index does not hold.
	ErrNotFound = errors.New("not found")
)
