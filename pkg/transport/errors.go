package transport

import "fmt"

// TransportError wraps transport-level failures with operation context.
// nolint:revive // TransportError is intentionally named to distinguish from item-level errors
type TransportError struct {
	// Op is the operation that failed (e.g., "connect", "run", "upload").
	Op string

	// Err is the underlying error.
	Err error

	// IsTemporary indicates whether retrying may succeed.
	IsTemporary bool

	// IsAuthError indicates an authentication or authorization failure.
	IsAuthError bool
}

// Error implements the error interface.
func (e *TransportError) Error() string {
	return fmt.Sprintf("transport %s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error for error chain inspection.
func (e *TransportError) Unwrap() error {
	return e.Err
}

// Temporary reports whether the failure may resolve on retry.
func (e *TransportError) Temporary() bool {
	return e.IsTemporary
}
