// Package mapping holds the alias table built while pseudonymizing one
// document: every synthetic value points back at exactly one original value,
// so masking stays reversible for the lifetime of a conversational session.
package mapping

import (
	"encoding/json"
	"fmt"
)

// Mapping associates synthetic values with the originals they replaced.
// Invariants: no alias ever resolves to more than one original (collisions
// are resolved by suffixing), and an entry, once written, is never rebound
// to a different original.
//
// A Mapping is not safe for unsynchronized concurrent mutation; the host
// serializes calls against the same session.
type Mapping struct {
	entries map[string]string
}

// New returns an empty mapping.
func New() *Mapping {
	return &Mapping{entries: make(map[string]string)}
}

// Insert associates alias with original and returns the key actually used.
// Re-inserting the same pair is a no-op. When alias is already bound to a
// different original, suffixed keys ("alias#2", "alias#3", ...) are probed
// until a free or identical entry is found; the caller must write the
// returned key into the document so document and mapping stay consistent.
func (m *Mapping) Insert(alias, original string) string {
	key := alias
	for n := 2; ; n++ {
		existing, ok := m.entries[key]
		if !ok {
			m.entries[key] = original
			return key
		}
		if existing == original {
			return key
		}
		key = fmt.Sprintf("%s#%d", alias, n)
	}
}

// Original returns the original value bound to alias.
func (m *Mapping) Original(alias string) (string, bool) {
	v, ok := m.entries[alias]
	return v, ok
}

// Len returns the number of live entries.
func (m *Mapping) Len() int {
	return len(m.entries)
}

// Walk calls fn for every (alias, original) pair.
func (m *Mapping) Walk(fn func(alias, original string)) {
	for k, v := range m.entries {
		fn(k, v)
	}
}

// Reverse returns a fresh original->alias map. Suffixed entries make the
// forward direction injective, so the reverse is well-defined except when
// the same original was legitimately recorded under several aliases (e.g. a
// structured field and a free-text surface form); the last one wins.
func (m *Mapping) Reverse() map[string]string {
	out := make(map[string]string, len(m.entries))
	for alias, original := range m.entries {
		out[original] = alias
	}
	return out
}

// Snapshot returns a copy of the underlying table.
func (m *Mapping) Snapshot() map[string]string {
	out := make(map[string]string, len(m.entries))
	for k, v := range m.entries {
		out[k] = v
	}
	return out
}

// MarshalJSON serializes the table for the session store.
func (m *Mapping) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.entries)
}

// UnmarshalJSON restores a table persisted by the session store.
func (m *Mapping) UnmarshalJSON(data []byte) error {
	entries := make(map[string]string)
	if err := json.Unmarshal(data, &entries); err != nil {
		return err
	}
	m.entries = entries
	return nil
}
