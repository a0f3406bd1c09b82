// Package actionstore keeps the ordered list of intent actions in memory and
// synchronises it with the preference store.
package actionstore

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"

	"github.com/starford/automaton/internal/action"
	"github.com/starford/automaton/internal/apperr"
	"github.com/starford/automaton/internal/prefs"
)

// SettingsKey is the preference entry holding the key→URL mapping.
const SettingsKey = "IntentActions"

// Event kinds delivered to subscribers.
const (
	EventCreated  = "created"
	EventUpdated  = "updated"
	EventDeleted  = "deleted"
	EventReloaded = "reloaded"
)

// Event describes one change to the store. Key is empty for EventReloaded.
type Event struct {
	Kind string `json:"kind"`
	Key  string `json:"key,omitempty"`
}

// Store is the in-memory source of truth for all actions.
//
// Records are sorted by key after Load; Append adds to the end. Persistence
// happens only on explicit Load and Save calls.
type Store struct {
	prefs  prefs.Provider
	logger *slog.Logger

	mu      sync.RWMutex
	actions []action.Record

	subMu  sync.Mutex
	nextID int
	subs   map[int]func(Event)
}

// New creates an empty store over p. Call Load to read persisted state.
func New(p prefs.Provider, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		prefs:  p,
		logger: logger,
		subs:   make(map[int]func(Event)),
	}
}

// Load replaces the in-memory list with the persisted mapping. Entries whose
// URL does not parse are dropped and logged. Load never fails; an unreadable
// entry yields an empty list.
func (s *Store) Load(ctx context.Context) {
	raw, err := s.prefs.Get(ctx, SettingsKey)
	if err != nil {
		s.logger.Error("load actions failed", slog.String("error", err.Error()))
		raw = nil
	}

	loaded := make([]action.Record, 0, len(raw))
	for key, rawURL := range raw {
		if _, err := action.ParseURL(rawURL); err != nil {
			s.logger.Warn("dropping invalid persisted url",
				slog.String("kind", "InvalidPersistedURL"),
				slog.String("key", key),
				slog.String("url", rawURL),
				slog.String("error", err.Error()))
			continue
		}
		loaded = append(loaded, action.New(key, rawURL))
	}
	slices.SortFunc(loaded, action.Compare)

	s.mu.Lock()
	s.actions = loaded
	s.mu.Unlock()

	s.logger.Debug("actions loaded", slog.Int("count", len(loaded)))
	s.notify(Event{Kind: EventReloaded})
}

// Save overwrites the persisted mapping with the current records. Records
// with an empty key or URL are left out.
func (s *Store) Save(ctx context.Context) error {
	m := s.Mapping()
	if err := s.prefs.Set(ctx, SettingsKey, m); err != nil {
		s.logger.Error("save actions failed", slog.String("error", err.Error()))
		return fmt.Errorf("actionstore: save: %w", err)
	}
	return nil
}

// Mapping returns the key→URL map that Save would persist.
func (s *Store) Mapping() map[string]string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m := make(map[string]string, len(s.actions))
	for _, a := range s.actions {
		if a.Key() == "" || a.URL == "" {
			continue
		}
		m[a.Key()] = a.URL
	}
	return m
}

// Append adds rec to the end of the list. Empty and duplicate keys are
// rejected. The caller is responsible for Save.
func (s *Store) Append(rec action.Record) error {
	key := rec.Key()
	if strings.TrimSpace(key) == "" {
		return fmt.Errorf("actionstore: append: %w", apperr.ErrInvalidKey)
	}

	s.mu.Lock()
	if s.indexOf(key) >= 0 {
		s.mu.Unlock()
		return fmt.Errorf("actionstore: append %q: %w", key, apperr.ErrAlreadyExists)
	}
	s.actions = append(s.actions, rec)
	s.mu.Unlock()

	s.notify(Event{Kind: EventCreated, Key: key})
	return nil
}

// Update sets the URL of the record with key. The caller is responsible for
// Save.
func (s *Store) Update(key, rawURL string) error {
	s.mu.Lock()
	i := s.indexOf(key)
	if i < 0 {
		s.mu.Unlock()
		return fmt.Errorf("actionstore: update %q: %w", key, apperr.ErrNotFound)
	}
	s.actions[i].URL = rawURL
	s.mu.Unlock()

	s.notify(Event{Kind: EventUpdated, Key: key})
	return nil
}

// Delete removes the record with key. The caller is responsible for Save.
func (s *Store) Delete(key string) error {
	s.mu.Lock()
	i := s.indexOf(key)
	if i < 0 {
		s.mu.Unlock()
		return fmt.Errorf("actionstore: delete %q: %w", key, apperr.ErrNotFound)
	}
	s.actions = slices.Delete(s.actions, i, i+1)
	s.mu.Unlock()

	s.notify(Event{Kind: EventDeleted, Key: key})
	return nil
}

// Get returns the record with key.
func (s *Store) Get(key string) (action.Record, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if i := s.indexOf(key); i >= 0 {
		return s.actions[i], true
	}
	return action.Record{}, false
}

// Actions returns a snapshot of the list in its current order.
func (s *Store) Actions() []action.Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.actions)
}

// Len returns the number of records.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.actions)
}

// indexOf must be called with mu held.
func (s *Store) indexOf(key string) int {
	return slices.IndexFunc(s.actions, func(a action.Record) bool { return a.Key() == key })
}
