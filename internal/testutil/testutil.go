// Package testutil provides shared test helpers for wiring an action service
// over an in-memory preference store.
package testutil

import (
	"context"
	"net/url"
	"sync"
	"testing"

	"github.com/starford/automaton/internal/action"
	"github.com/starford/automaton/internal/actionservice"
	"github.com/starford/automaton/internal/actionstore"
	"github.com/starford/automaton/internal/prefs"
)

// RecordingOpener accepts every URL and records what was opened.
type RecordingOpener struct {
	mu     sync.Mutex
	opened []string
}

// CanOpen always reports true.
func (r *RecordingOpener) CanOpen(*url.URL) bool { return true }

// Open records u.
func (r *RecordingOpener) Open(u *url.URL) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.opened = append(r.opened, u.String())
}

// Opened returns the URLs opened so far.
func (r *RecordingOpener) Opened() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.opened...)
}

// TestService builds a loaded service whitelisting https and tel.
func TestService(t *testing.T) (*actionservice.Service, *prefs.Memory, *RecordingOpener) {
	t.Helper()
	mem := prefs.NewMemory()
	t.Cleanup(func() { _ = mem.Close() })
	store := actionstore.New(mem, nil)
	store.Load(context.Background())
	o := &RecordingOpener{}
	return actionservice.NewService(store, action.NewSchemes("https", "tel"), o), mem, o
}
