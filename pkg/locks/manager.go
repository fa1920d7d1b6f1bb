package locks

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/wieldops/wield/pkg/telemetry"
)

// Manager acquires and releases node locks against a Store.
type Manager struct {
	store   Store
	log     *telemetry.Logger
	metrics *telemetry.Metrics

	// now is replaceable for expiry tests.
	now func() time.Time
}

// NewManager creates a lock manager. Metrics may be nil.
func NewManager(store Store, log *telemetry.Logger, metrics *telemetry.Metrics) *Manager {
	return &Manager{
		store:   store,
		log:     log.NewComponentLogger("locks"),
		metrics: metrics,
		now:     time.Now,
	}
}

// Acquire takes an exclusive lock on the node or fails fast with
// *HeldError carrying the current holder and lock age. An expired lock is
// treated as absent: it is reclaimed after logging the prior holder, so
// abandoned runs are visible to operators.
func (m *Manager) Acquire(ctx context.Context, nodeID, holder string, ttl time.Duration, comment string) (*Lock, error) {
	log := m.log.WithNodeID(nodeID)

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		lock := &Lock{
			NodeID:     nodeID,
			Holder:     holder,
			Token:      uuid.New().String(),
			AcquiredAt: m.now(),
			TTL:        ttl,
			Comment:    comment,
		}

		acquired, existing, err := m.store.Acquire(ctx, lock)
		if err != nil {
			return nil, err
		}
		if acquired {
			log.Debugf("lock acquired by %s (ttl=%s)", holder, ttl)
			return lock, nil
		}
		if existing == nil {
			// Lost a race with a concurrent release; try again.
			continue
		}

		if existing.Expired(m.now()) {
			log.Warnf("reclaiming expired lock held by %s since %s",
				existing.Holder, existing.AcquiredAt.Format(time.RFC3339))
			m.metrics.LockReclaimed()

			err := m.store.Release(ctx, nodeID, existing.Token)
			if err != nil && !errors.Is(err, ErrNotHeld) {
				return nil, err
			}
			// Re-run the check-and-set; another reclaimer may win.
			continue
		}

		m.metrics.LockContention()
		return nil, &HeldError{
			NodeID:  nodeID,
			Holder:  existing.Holder,
			Age:     existing.Age(m.now()),
			Comment: existing.Comment,
		}
	}
}

// AcquireWait polls for the lock until it is acquired or the context
// ends. Non-contention errors fail immediately.
func (m *Manager) AcquireWait(ctx context.Context, nodeID, holder string, ttl time.Duration, comment string, interval time.Duration) (*Lock, error) {
	if interval <= 0 {
		interval = 5 * time.Second
	}

	for {
		lock, err := m.Acquire(ctx, nodeID, holder, ttl, comment)
		if err == nil {
			return lock, nil
		}
		if !IsHeld(err) {
			return nil, err
		}

		select {
		case <-ctx.Done():
			return nil, err
		case <-time.After(interval):
		}
	}
}

// Release gives up a held lock. It is idempotent: releasing an
// already-released or expired lock is a no-op, never an error.
func (m *Manager) Release(ctx context.Context, lock *Lock) error {
	if lock == nil {
		return nil
	}

	err := m.store.Release(ctx, lock.NodeID, lock.Token)
	if errors.Is(err, ErrNotHeld) {
		return nil
	}
	if err != nil {
		return err
	}

	m.log.WithNodeID(lock.NodeID).Debugf("lock released by %s", lock.Holder)
	return nil
}

// ForceRelease removes any lock on the node regardless of holder. It is
// the operator's escape hatch for abandoned runs.
func (m *Manager) ForceRelease(ctx context.Context, nodeID string) error {
	err := m.store.Delete(ctx, nodeID)
	if errors.Is(err, ErrNotHeld) {
		return nil
	}
	if err != nil {
		return err
	}

	m.log.WithNodeID(nodeID).Warn("lock forcibly removed")
	return nil
}

// IsExpired reports whether the lock has outlived its TTL.
func (m *Manager) IsExpired(lock *Lock) bool {
	return lock.Expired(m.now())
}

// Status returns the current lock on the node, nil when unlocked.
func (m *Manager) Status(ctx context.Context, nodeID string) (*Lock, error) {
	return m.store.Get(ctx, nodeID)
}
