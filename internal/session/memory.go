package session

import (
	"context"
	"sync"

	"github.com/carenotes/veil/internal/mapping"
)

// MemoryStore keeps mappings in process memory. Suited to single-node
// deployments and tests; mappings vanish on restart, which is acceptable
// because they never outlive a session anyway.
type MemoryStore struct {
	mu       sync.RWMutex
	mappings map[string]map[string]string
}

// NewMemoryStore returns an empty in-process store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{mappings: make(map[string]map[string]string)}
}

// Get returns a copy-backed mapping for the session.
func (s *MemoryStore) Get(ctx context.Context, sessionID string) (*mapping.Mapping, error) {
	s.mu.RLock()
	entries, ok := s.mappings[sessionID]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}

	m := mapping.New()
	for alias, original := range entries {
		m.Insert(alias, original)
	}
	return m, nil
}

// Set stores a snapshot of the mapping.
func (s *MemoryStore) Set(ctx context.Context, sessionID string, m *mapping.Mapping) error {
	snapshot := m.Snapshot()
	s.mu.Lock()
	s.mappings[sessionID] = snapshot
	s.mu.Unlock()
	return nil
}

// Clear drops the session's mapping.
func (s *MemoryStore) Clear(ctx context.Context, sessionID string) error {
	s.mu.Lock()
	delete(s.mappings, sessionID)
	s.mu.Unlock()
	return nil
}

// Close is a no-op for the in-process store.
func (s *MemoryStore) Close() error {
	return nil
}
