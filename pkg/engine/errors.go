package engine

import (
	"fmt"
	"strings"

	"github.com/wieldops/wield/pkg/items"
)

// CycleError reports a dependency cycle among items. It aborts the run
// before any fix is attempted.
type CycleError struct {
	// Cycle is the participating item path, first item repeated at the
	// end to close the loop.
	Cycle []items.ID
}

// Error implements the error interface.
func (e *CycleError) Error() string {
	parts := make([]string, len(e.Cycle))
	for i, id := range e.Cycle {
		parts[i] = id.String()
	}
	return "dependency cycle: " + strings.Join(parts, " -> ")
}

// Contains reports whether the given item participates in the cycle.
func (e *CycleError) Contains(id items.ID) bool {
	for _, c := range e.Cycle {
		if c == id {
			return true
		}
	}
	return false
}

// FixError reports a per-item fix failure. It is non-fatal to the run:
// the item is recorded as failed and dependents are skipped.
type FixError struct {
	// ItemID is the item whose fix failed.
	ItemID items.ID

	// Err is the underlying failure.
	Err error
}

// Error implements the error interface.
func (e *FixError) Error() string {
	return fmt.Sprintf("fix %s: %v", e.ItemID, e.Err)
}

// Unwrap returns the underlying error for error chain inspection.
func (e *FixError) Unwrap() error {
	return e.Err
}

// ValidationError reports an invalid item set (duplicate identities,
// unknown dependency targets, malformed declarations).
type ValidationError struct {
	// Message describes the problem.
	Message string

	// ItemID is the offending item, when known.
	ItemID items.ID
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	if !e.ItemID.IsZero() {
		return fmt.Sprintf("invalid item set: %s (item=%s)", e.Message, e.ItemID)
	}
	return "invalid item set: " + e.Message
}
