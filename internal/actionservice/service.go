// Package actionservice coordinates the action store, the scheme whitelist
// and the URL opener for every presentation surface.
package actionservice

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"net/url"
	"slices"

	"github.com/starford/automaton/internal/action"
	"github.com/starford/automaton/internal/actionfile"
	"github.com/starford/automaton/internal/actionstore"
	"github.com/starford/automaton/internal/apperr"
)

// ActionDetail is the presentation view of one action.
type ActionDetail struct {
	Key        string `json:"key"`
	URL        string `json:"url"`
	Valid      bool   `json:"valid"`
	Followable bool   `json:"followable"`
	Error      string `json:"error,omitempty"`
}

// ImportResult counts what an import changed.
type ImportResult struct {
	Created int `json:"created"`
	Updated int `json:"updated"`
}

// Service coordinates store and opener operations. Every mutation is saved
// before returning.
type Service struct {
	store   *actionstore.Store
	schemes action.Schemes
	opener  action.Opener
}

// NewService creates a new action service.
func NewService(store *actionstore.Store, schemes action.Schemes, o action.Opener) *Service {
	return &Service{store: store, schemes: schemes, opener: o}
}

// Store returns the underlying action store.
func (s *Service) Store() *actionstore.Store {
	return s.store
}

// Schemes returns the scheme whitelist.
func (s *Service) Schemes() action.Schemes {
	return s.schemes
}

// ListActions returns every action in store order.
func (s *Service) ListActions(_ context.Context) []ActionDetail {
	recs := s.store.Actions()
	out := make([]ActionDetail, len(recs))
	for i, r := range recs {
		out[i] = s.detail(r)
	}
	return out
}

// GetAction returns a single action.
func (s *Service) GetAction(_ context.Context, key string) (*ActionDetail, error) {
	r, ok := s.store.Get(key)
	if !ok {
		return nil, fmt.Errorf("action %q: %w", key, apperr.ErrNotFound)
	}
	d := s.detail(r)
	return &d, nil
}

// CreateAction appends a new action and saves.
func (s *Service) CreateAction(ctx context.Context, key, rawURL string) (*ActionDetail, error) {
	if err := s.store.Append(action.New(key, rawURL)); err != nil {
		return nil, err
	}
	if err := s.store.Save(ctx); err != nil {
		return nil, err
	}
	return s.GetAction(ctx, key)
}

// UpdateAction changes an action's URL and saves.
func (s *Service) UpdateAction(ctx context.Context, key, rawURL string) (*ActionDetail, error) {
	if err := s.store.Update(key, rawURL); err != nil {
		return nil, err
	}
	if err := s.store.Save(ctx); err != nil {
		return nil, err
	}
	return s.GetAction(ctx, key)
}

// DeleteAction removes an action by key and saves.
func (s *Service) DeleteAction(ctx context.Context, key string) error {
	if err := s.store.Delete(key); err != nil {
		return err
	}
	return s.store.Save(ctx)
}

// CheckAction reports whether the action's URL can be followed without
// opening it.
func (s *Service) CheckAction(_ context.Context, key string) (*url.URL, error) {
	r, ok := s.store.Get(key)
	if !ok {
		return nil, fmt.Errorf("action %q: %w", key, apperr.ErrNotFound)
	}
	return r.CanFollow(s.schemes, s.opener)
}

// FollowAction opens the action's URL if it can be followed.
func (s *Service) FollowAction(_ context.Context, key string) (*url.URL, error) {
	r, ok := s.store.Get(key)
	if !ok {
		return nil, fmt.Errorf("action %q: %w", key, apperr.ErrNotFound)
	}
	return r.Follow(s.schemes, s.opener)
}

// Reload re-reads persisted state, discarding unsaved changes.
func (s *Service) Reload(ctx context.Context) {
	s.store.Load(ctx)
}

// Import merges a YAML action document: new keys are appended, existing keys
// get the new URL. The store is saved once at the end.
func (s *Service) Import(ctx context.Context, data []byte) (*ImportResult, error) {
	incoming, err := actionfile.Parse(data)
	if err != nil {
		return nil, err
	}
	res := &ImportResult{}
	for _, key := range slices.Sorted(maps.Keys(incoming)) {
		rawURL := incoming[key]
		if _, ok := s.store.Get(key); ok {
			if err := s.store.Update(key, rawURL); err != nil {
				return nil, err
			}
			res.Updated++
			continue
		}
		if err := s.store.Append(action.New(key, rawURL)); err != nil {
			return nil, err
		}
		res.Created++
	}
	if err := s.store.Save(ctx); err != nil {
		return nil, err
	}
	return res, nil
}

// Export renders the persistable mapping as a YAML action document.
func (s *Service) Export(_ context.Context) ([]byte, error) {
	return actionfile.Render(s.store.Mapping())
}

func (s *Service) detail(r action.Record) ActionDetail {
	d := ActionDetail{Key: r.Key(), URL: r.URL}
	_, err := r.CanFollow(s.schemes, s.opener)
	d.Valid = !errors.Is(err, action.ErrInvalidURL)
	d.Followable = err == nil
	d.Error = action.Message(err)
	return d
}
