package engine

import (
	"context"
	"time"

	"github.com/wieldops/wield/pkg/items"
	"github.com/wieldops/wield/pkg/transport"
)

// Node is the target of one apply run. It is exclusively owned by the
// runner for the duration of the run.
type Node struct {
	// ID is the node's identity, the key for locking.
	ID string `json:"id"`

	// Transport reaches the node. Credentials and addressing live here.
	Transport transport.Transport `json:"-"`

	// Items is the desired-state set assigned to the node.
	Items []*items.Item `json:"-"`
}

// ItemResult records the outcome of reconciling one item.
type ItemResult struct {
	// ItemID is the item this result belongs to.
	ItemID items.ID `json:"item_id"`

	// Status is the recorded outcome.
	Status ItemStatus `json:"status"`

	// Reason explains skipped and pending outcomes.
	Reason string `json:"reason,omitempty"`

	// Err is the failure, for failed items.
	Err error `json:"-"`

	// StartedAt is when reconciliation of the item began.
	StartedAt time.Time `json:"started_at"`

	// CompletedAt is when reconciliation of the item ended.
	CompletedAt time.Time `json:"completed_at"`

	// Duration is the total reconciliation time for the item.
	Duration time.Duration `json:"duration"`
}

// RunResult is the immutable outcome of one apply run against a node.
type RunResult struct {
	// RunID is the unique identifier of the run.
	RunID string `json:"run_id"`

	// NodeID is the node the run targeted.
	NodeID string `json:"node_id"`

	// Status is the overall run status.
	Status RunStatus `json:"status"`

	// AbortReason carries the pre-flight failure for aborted runs.
	AbortReason string `json:"abort_reason,omitempty"`

	// Items holds the per-item outcomes in apply order.
	Items []ItemResult `json:"items"`

	// Summary aggregates the per-item outcomes.
	Summary RunSummary `json:"summary"`

	// StartedAt is when the run began (before lock acquisition).
	StartedAt time.Time `json:"started_at"`

	// CompletedAt is when the run ended (after lock release).
	CompletedAt time.Time `json:"completed_at"`

	// Duration is the total run time.
	Duration time.Duration `json:"duration"`
}

// RunSummary aggregates per-item outcomes.
type RunSummary struct {
	// Total is the number of items in the run.
	Total int `json:"total"`

	// Correct is the number of items already in desired state.
	Correct int `json:"correct"`

	// Fixed is the number of items converged during the run.
	Fixed int `json:"fixed"`

	// Failed is the number of items whose fix failed.
	Failed int `json:"failed"`

	// Skipped is the number of items not attempted.
	Skipped int `json:"skipped"`

	// Pending is the number of interactive items awaiting confirmation.
	Pending int `json:"pending"`
}

// Add records one item outcome in the summary.
func (s *RunSummary) Add(status ItemStatus) {
	s.Total++
	switch status {
	case ItemStatusCorrect:
		s.Correct++
	case ItemStatusFixed:
		s.Fixed++
	case ItemStatusFailed:
		s.Failed++
	case ItemStatusSkipped:
		s.Skipped++
	case ItemStatusPending:
		s.Pending++
	}
}

// Confirmer gates interactive items. Implementations prompt a human; the
// context bounds how long the prompt may block.
type Confirmer interface {
	// Confirm asks whether the given item may be fixed.
	Confirm(ctx context.Context, item *items.Item) (bool, error)
}

// ConfirmerFunc adapts a function to the Confirmer interface.
type ConfirmerFunc func(ctx context.Context, item *items.Item) (bool, error)

// Confirm implements Confirmer.
func (f ConfirmerFunc) Confirm(ctx context.Context, item *items.Item) (bool, error) {
	return f(ctx, item)
}

// ApplyOptions controls one apply run.
type ApplyOptions struct {
	// Holder identifies who is applying (user@host:pid by convention).
	Holder string

	// LockTTL is the node lock's time-to-live.
	LockTTL time.Duration

	// LockComment is an optional human-readable note on the lock.
	LockComment string

	// LockWait polls for the lock until the context deadline instead of
	// failing fast on contention.
	LockWait bool

	// LockPollInterval is the poll interval when LockWait is set.
	LockPollInterval time.Duration

	// Confirmer gates interactive items. When nil, divergent interactive
	// items are recorded as pending and never fixed.
	Confirmer Confirmer
}
