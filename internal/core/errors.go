package core

import (
	"errors"
	"fmt"
)

// Error kinds surfaced by the engines. Handlers map these to HTTP
// status codes; anything else is an internal error.
var (
	// ErrValidation marks user errors: missing or invalid input,
	// insufficient stock, walk-in credit violations. Returned
	// synchronously before any mutation, never retried.
	ErrValidation = errors.New("validation error")

	// ErrNotFound marks a missing tenant-scoped entity reference.
	ErrNotFound = errors.New("not found")

	// ErrSequence marks a document-number issue failure. It is fatal
	// to the transaction: no partial document is left behind.
	ErrSequence = errors.New("sequence error")
)

func validationf(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{ErrValidation}, args...)...)
}

func notFoundf(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{ErrNotFound}, args...)...)
}
