// Package locks implements the per-node locking protocol that serializes
// concurrent apply runs. Lock state lives in an external store with
// atomic check-and-set semantics, never in process memory, because
// exclusion must hold across separate operator processes.
package locks

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Lock is an exclusivity marker for one node.
type Lock struct {
	// NodeID is the locked node's identity.
	NodeID string `json:"node_id"`

	// Holder identifies who holds the lock (user@host:pid by convention).
	Holder string `json:"holder"`

	// Token is the release capability; only the acquirer knows it.
	Token string `json:"token"`

	// AcquiredAt is when the lock was taken.
	AcquiredAt time.Time `json:"acquired_at"`

	// TTL is the lock's time-to-live. Zero means no expiry.
	TTL time.Duration `json:"ttl"`

	// Comment is an optional human-readable note.
	Comment string `json:"comment,omitempty"`
}

// Age returns how long the lock has been held as of now.
func (l *Lock) Age(now time.Time) time.Duration {
	return now.Sub(l.AcquiredAt)
}

// Expired reports whether the lock has outlived its TTL as of now.
func (l *Lock) Expired(now time.Time) bool {
	if l.TTL <= 0 {
		return false
	}
	return l.Age(now) > l.TTL
}

// HeldError reports that a node lock is held by someone else. It carries
// the current holder for operator diagnosis.
type HeldError struct {
	// NodeID is the contended node.
	NodeID string

	// Holder identifies the current lock holder.
	Holder string

	// Age is how long the current holder has held the lock.
	Age time.Duration

	// Comment is the holder's note, if any.
	Comment string
}

// Error implements the error interface.
func (e *HeldError) Error() string {
	msg := fmt.Sprintf("node %s is locked by %s (held for %s)",
		e.NodeID, e.Holder, e.Age.Round(time.Second))
	if e.Comment != "" {
		msg += ": " + e.Comment
	}
	return msg
}

// IsHeld reports whether the error chain contains a lock contention error.
func IsHeld(err error) bool {
	var held *HeldError
	return errors.As(err, &held)
}

// ErrNotHeld is returned by stores when a release finds no matching lock.
// The manager treats it as a successful no-op.
var ErrNotHeld = errors.New("lock not held")

// Store persists lock state keyed by node identity. Implementations must
// make Acquire atomic: two concurrent calls for the same unlocked node
// must not both succeed.
type Store interface {
	// Acquire stores the lock if no lock exists for the node.
	// It reports whether the lock was taken; when it was not, existing is
	// the lock currently in place (nil if it vanished concurrently).
	Acquire(ctx context.Context, lock *Lock) (acquired bool, existing *Lock, err error)

	// Release removes the lock when the token matches.
	// Returns ErrNotHeld when no such lock exists.
	Release(ctx context.Context, nodeID, token string) error

	// Delete removes any lock for the node regardless of token.
	// Returns ErrNotHeld when no lock exists.
	Delete(ctx context.Context, nodeID string) error

	// Get returns the current lock for the node, nil when absent.
	Get(ctx context.Context, nodeID string) (*Lock, error)
}
