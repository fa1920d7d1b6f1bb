package locks

import (
	"context"
	"sync"
)

// MemoryStore is an in-process Store for tests and single-process use.
// It provides the same atomic check-and-set contract as persistent
// stores, scoped to one process.
type MemoryStore struct {
	mu    sync.Mutex
	locks map[string]*Lock
}

// NewMemoryStore creates an empty in-memory lock store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		locks: make(map[string]*Lock),
	}
}

// Acquire stores the lock if the node is unlocked.
func (s *MemoryStore) Acquire(_ context.Context, lock *Lock) (bool, *Lock, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, held := s.locks[lock.NodeID]; held {
		copied := *existing
		return false, &copied, nil
	}

	copied := *lock
	s.locks[lock.NodeID] = &copied
	return true, nil, nil
}

// Release removes the lock when the token matches.
func (s *MemoryStore) Release(_ context.Context, nodeID, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, held := s.locks[nodeID]
	if !held || existing.Token != token {
		return ErrNotHeld
	}

	delete(s.locks, nodeID)
	return nil
}

// Delete removes any lock for the node.
func (s *MemoryStore) Delete(_ context.Context, nodeID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, held := s.locks[nodeID]; !held {
		return ErrNotHeld
	}

	delete(s.locks, nodeID)
	return nil
}

// Get returns the current lock for the node, nil when absent.
func (s *MemoryStore) Get(_ context.Context, nodeID string) (*Lock, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, held := s.locks[nodeID]
	if !held {
		return nil, nil
	}

	copied := *existing
	return &copied, nil
}
