// Package session stores one alias mapping per active conversational
// session. The engine itself never touches session lifecycle: the host
// fetches the mapping, runs the engine, and writes the result back here.
package session

import (
	"context"
	"errors"

	"github.com/carenotes/veil/internal/mapping"
)

// ErrNotFound is returned when no mapping exists for a session id.
var ErrNotFound = errors.New("session: mapping not found")

// Store holds mappings keyed by session id. Semantics are last-write-wins
// per session; callers serialize concurrent writes against the same id.
type Store interface {
	// Get returns the mapping for a session, or ErrNotFound.
	Get(ctx context.Context, sessionID string) (*mapping.Mapping, error)
	// Set persists the mapping for a session, replacing any previous one.
	Set(ctx context.Context, sessionID string, m *mapping.Mapping) error
	// Clear drops the mapping for a session (logout).
	Clear(ctx context.Context, sessionID string) error
	// Close releases backend resources.
	Close() error
}
