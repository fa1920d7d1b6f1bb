package engine

import "fmt"

// ItemStatus represents the outcome recorded for one item in a run.
type ItemStatus string

const (
	// ItemStatusCorrect indicates the item already matched desired state.
	ItemStatusCorrect ItemStatus = "correct"

	// ItemStatusFixed indicates the item diverged and was converged.
	ItemStatusFixed ItemStatus = "fixed"

	// ItemStatusFailed indicates the fix attempt failed.
	ItemStatusFailed ItemStatus = "failed"

	// ItemStatusSkipped indicates the item was not attempted (failed
	// dependency, declined confirmation, untriggered action, or abort).
	ItemStatusSkipped ItemStatus = "skipped"

	// ItemStatusPending indicates an interactive item awaiting
	// confirmation that was not available during the run.
	ItemStatusPending ItemStatus = "pending"
)

// Changed reports whether the item mutated node state during the run.
func (s ItemStatus) Changed() bool {
	return s == ItemStatusFixed
}

// Validate checks if the item status is valid.
func (s ItemStatus) Validate() error {
	switch s {
	case ItemStatusCorrect, ItemStatusFixed, ItemStatusFailed,
		ItemStatusSkipped, ItemStatusPending:
		return nil
	default:
		return fmt.Errorf("invalid item status: %s", s)
	}
}

// RunStatus represents the overall status of an apply run.
type RunStatus string

const (
	// RunStatusSucceeded indicates every item converged or was correct.
	RunStatusSucceeded RunStatus = "succeeded"

	// RunStatusPartial indicates at least one item failed while the run
	// itself completed.
	RunStatusPartial RunStatus = "partial"

	// RunStatusAbortedLock indicates the run never started because the
	// node lock was held by someone else.
	RunStatusAbortedLock RunStatus = "aborted_lock"

	// RunStatusAbortedCycle indicates the run never started because the
	// item set contains a dependency cycle.
	RunStatusAbortedCycle RunStatus = "aborted_cycle"

	// RunStatusCancelled indicates the run was stopped between items by
	// an external abort.
	RunStatusCancelled RunStatus = "cancelled"
)

// Aborted reports whether the run ended before or without completing
// reconciliation.
func (s RunStatus) Aborted() bool {
	return s == RunStatusAbortedLock || s == RunStatusAbortedCycle ||
		s == RunStatusCancelled
}

// Validate checks if the run status is valid.
func (s RunStatus) Validate() error {
	switch s {
	case RunStatusSucceeded, RunStatusPartial, RunStatusAbortedLock,
		RunStatusAbortedCycle, RunStatusCancelled:
		return nil
	default:
		return fmt.Errorf("invalid run status: %s", s)
	}
}
