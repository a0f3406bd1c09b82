// Package prefs implements the simple preference store that holds named
// string maps.
package prefs

import (
	"context"
	"fmt"
	"maps"
)

// Provider is the interface for preference storage.
type Provider interface {
	// Get returns a copy of the named entry, or nil if it does not exist.
	Get(ctx context.Context, name string) (map[string]string, error)
	// Set replaces the named entry with values in a single write.
	Set(ctx context.Context, name string, values map[string]string) error
	// Close releases any underlying resources.
	Close() error
}

// Backend names accepted by New.
const (
	BackendJSON   = "json"
	BackendSQLite = "sqlite"
	BackendMemory = "memory"
)

// New creates a Provider based on the backend name.
//
// Supported backends:
//
//	"json"   - a single JSON file at path (default)
//	"sqlite" - a SQLite database at path
//	"memory" - in-memory (ephemeral, for testing)
func New(backend, path string) (Provider, error) {
	switch backend {
	case BackendJSON, "":
		return NewFile(path)
	case BackendSQLite:
		return OpenSQLite(path)
	case BackendMemory:
		return NewMemory(), nil
	default:
		return nil, fmt.Errorf("prefs: unknown backend %q (supported: json, sqlite, memory)", backend)
	}
}

func clone(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	return maps.Clone(m)
}
