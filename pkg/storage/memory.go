package storage

import (
	"context"
	"sync"
)

// MemoryStore implements Store using an in-memory map. It is the default
// backend when no database is configured and the backend the poller tests
// run against.
type MemoryStore struct {
	mu   sync.RWMutex
	rows map[string]SessionSummary
}

// NewMemoryStore creates a new in-memory summary store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		rows: make(map[string]SessionSummary),
	}
}

// Upsert writes the given summaries keyed by identity.
func (s *MemoryStore) Upsert(_ context.Context, summaries []SessionSummary) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, sum := range summaries {
		s.rows[sum.IdentityID] = sum
	}
	return nil
}

// Get returns the stored summary for an identity, if present.
func (s *MemoryStore) Get(identityID string) (SessionSummary, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sum, ok := s.rows[identityID]
	return sum, ok
}

// Len returns the number of stored summaries.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.rows)
}

// Close is a no-op for the memory store.
func (s *MemoryStore) Close() error {
	return nil
}
