package prefs

import (
	"context"
	"sync"
)

// Memory keeps entries in memory. Data is lost on restart.
type Memory struct {
	mu      sync.RWMutex
	entries map[string]map[string]string
	writes  int
}

// NewMemory creates an empty in-memory provider.
func NewMemory() *Memory {
	return &Memory{entries: make(map[string]map[string]string)}
}

// Get returns a copy of the named entry, or nil if it does not exist.
func (m *Memory) Get(_ context.Context, name string) (map[string]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return clone(m.entries[name]), nil
}

// Set replaces the named entry.
func (m *Memory) Set(_ context.Context, name string, values map[string]string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if values == nil {
		values = map[string]string{}
	}
	m.entries[name] = clone(values)
	m.writes++
	return nil
}

// Writes returns how many Set calls have been made.
func (m *Memory) Writes() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.writes
}

// Close is a no-op.
func (m *Memory) Close() error { return nil }
