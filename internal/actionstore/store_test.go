package actionstore

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"maps"
	"slices"
	"strings"
	"testing"

	"github.com/starford/automaton/internal/action"
	"github.com/starford/automaton/internal/apperr"
	"github.com/starford/automaton/internal/prefs"
)

func testStore(t *testing.T) (*Store, *prefs.Memory, *bytes.Buffer) {
	t.Helper()
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	mem := prefs.NewMemory()
	return New(mem, logger), mem, &buf
}

func persisted(t *testing.T, p prefs.Provider) map[string]string {
	t.Helper()
	m, err := p.Get(context.Background(), SettingsKey)
	if err != nil {
		t.Fatal(err)
	}
	return m
}

func keys(recs []action.Record) []string {
	out := make([]string, len(recs))
	for i, r := range recs {
		out[i] = r.Key()
	}
	return out
}

func TestAppendEmptyURLNotPersisted(t *testing.T) {
	s, mem, _ := testStore(t)
	ctx := context.Background()
	s.Load(ctx)

	if err := s.Append(action.New("phone", "")); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if err := s.Save(ctx); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if got := persisted(t, mem); len(got) != 0 {
		t.Fatalf("persisted = %v, want {}", got)
	}

	if err := s.Update("phone", "tel:12345"); err != nil {
		t.Fatalf("Update: %v", err)
	}
	if err := s.Save(ctx); err != nil {
		t.Fatalf("Save: %v", err)
	}
	want := map[string]string{"phone": "tel:12345"}
	if got := persisted(t, mem); !maps.Equal(got, want) {
		t.Fatalf("persisted = %v, want %v", got, want)
	}
}

func TestLoadDropsInvalidURL(t *testing.T) {
	s, mem, logs := testStore(t)
	ctx := context.Background()
	_ = mem.Set(ctx, SettingsKey, map[string]string{"a": "not a url", "b": "https://example.com"})

	s.Load(ctx)

	got := s.Actions()
	if len(got) != 1 || got[0].Key() != "b" {
		t.Fatalf("actions = %v, want only b", keys(got))
	}
	if !strings.Contains(logs.String(), "InvalidPersistedURL") || !strings.Contains(logs.String(), `"key":"a"`) {
		t.Errorf("missing diagnostic for a in %s", logs.String())
	}
}

func TestLoadSortsByKey(t *testing.T) {
	s, mem, _ := testStore(t)
	ctx := context.Background()
	_ = mem.Set(ctx, SettingsKey, map[string]string{
		"zeta":  "https://z.example",
		"alpha": "https://a.example",
		"Mid":   "tel:1",
		"beta":  "https://b.example",
	})
	s.Load(ctx)
	if got, want := keys(s.Actions()), []string{"Mid", "alpha", "beta", "zeta"}; !slices.Equal(got, want) {
		t.Fatalf("order = %v, want %v", got, want)
	}

	// Appends go to the end until the next load.
	_ = s.Append(action.New("aaa", "tel:2"))
	if got := keys(s.Actions()); got[len(got)-1] != "aaa" {
		t.Fatalf("append not at end: %v", got)
	}
	_ = s.Save(ctx)
	s.Load(ctx)
	if got := keys(s.Actions()); got[1] != "aaa" {
		t.Fatalf("reload should re-sort: %v", got)
	}
}

func TestLoadMissingEntryIsEmpty(t *testing.T) {
	s, _, _ := testStore(t)
	_ = s.Append(action.New("x", "tel:1"))
	s.Load(context.Background())
	if s.Len() != 0 {
		t.Fatalf("Len = %d, want 0", s.Len())
	}
}

type failingProvider struct{}

func (failingProvider) Get(context.Context, string) (map[string]string, error) {
	return nil, errors.New("disk on fire")
}
func (failingProvider) Set(context.Context, string, map[string]string) error {
	return errors.New("disk on fire")
}
func (failingProvider) Close() error { return nil }

func TestLoadReadErrorIsEmpty(t *testing.T) {
	var buf bytes.Buffer
	s := New(failingProvider{}, slog.New(slog.NewJSONHandler(&buf, nil)))
	s.Load(context.Background())
	if s.Len() != 0 {
		t.Fatalf("Len = %d, want 0", s.Len())
	}
	if !strings.Contains(buf.String(), "disk on fire") {
		t.Errorf("read error not logged: %s", buf.String())
	}
	if err := s.Save(context.Background()); err == nil {
		t.Error("expected save error")
	}
}

func TestRoundTrip(t *testing.T) {
	s, mem, _ := testStore(t)
	ctx := context.Background()
	_ = s.Append(action.New("web", "https://example.com"))
	_ = s.Append(action.New("phone", "tel:12345"))
	_ = s.Append(action.New("blank", ""))
	if err := s.Save(ctx); err != nil {
		t.Fatal(err)
	}

	other := New(mem, nil)
	other.Load(ctx)
	want := map[string]string{"web": "https://example.com", "phone": "tel:12345"}
	if got := other.Mapping(); !maps.Equal(got, want) {
		t.Fatalf("round trip = %v, want %v", got, want)
	}
}

func TestSaveIdempotent(t *testing.T) {
	s, mem, _ := testStore(t)
	ctx := context.Background()
	_ = s.Append(action.New("web", "https://example.com"))
	_ = s.Save(ctx)
	first := persisted(t, mem)
	_ = s.Save(ctx)
	second := persisted(t, mem)
	if !maps.Equal(first, second) {
		t.Fatalf("first %v != second %v", first, second)
	}
	if mem.Writes() != 2 {
		t.Errorf("writes = %d, want one per Save", mem.Writes())
	}
}

func TestAppendRejectsDuplicateAndEmpty(t *testing.T) {
	s, _, _ := testStore(t)
	if err := s.Append(action.New("", "tel:1")); !errors.Is(err, apperr.ErrInvalidKey) {
		t.Errorf("empty key err = %v", err)
	}
	if err := s.Append(action.New("  ", "tel:1")); !errors.Is(err, apperr.ErrInvalidKey) {
		t.Errorf("blank key err = %v", err)
	}
	_ = s.Append(action.New("a", "tel:1"))
	if err := s.Append(action.New("a", "tel:2")); !errors.Is(err, apperr.ErrAlreadyExists) {
		t.Errorf("duplicate err = %v", err)
	}
	if s.Len() != 1 {
		t.Errorf("Len = %d, want 1", s.Len())
	}
}

func TestUpdateAndDeleteByKey(t *testing.T) {
	s, _, _ := testStore(t)
	for _, k := range []string{"a", "b", "c"} {
		_ = s.Append(action.New(k, "tel:"+k))
	}
	if err := s.Update("missing", "tel:1"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("Update missing err = %v", err)
	}
	if err := s.Delete("b"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := s.Delete("b"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("second Delete err = %v", err)
	}
	if got := keys(s.Actions()); !slices.Equal(got, []string{"a", "c"}) {
		t.Fatalf("keys = %v", got)
	}
	if err := s.Update("c", "https://c.example"); err != nil {
		t.Fatal(err)
	}
	rec, ok := s.Get("c")
	if !ok || rec.URL != "https://c.example" {
		t.Fatalf("Get(c) = %+v, %v", rec, ok)
	}
	if _, ok := s.Get("b"); ok {
		t.Error("b should be gone")
	}
}

func TestActionsIsSnapshot(t *testing.T) {
	s, _, _ := testStore(t)
	_ = s.Append(action.New("a", "tel:1"))
	snap := s.Actions()
	snap[0].URL = "tel:999"
	if rec, _ := s.Get("a"); rec.URL != "tel:1" {
		t.Fatalf("store mutated through snapshot: %q", rec.URL)
	}
}

func TestSubscribe(t *testing.T) {
	s, mem, _ := testStore(t)
	ctx := context.Background()
	_ = mem.Set(ctx, SettingsKey, map[string]string{"x": "tel:1"})

	var events []Event
	var lens []int
	cancel := s.Subscribe(func(ev Event) {
		events = append(events, ev)
		lens = append(lens, s.Len())
	})

	s.Load(ctx)
	_ = s.Append(action.New("y", ""))
	_ = s.Update("y", "tel:2")
	_ = s.Delete("x")
	_ = s.Append(action.New("y", "dup")) // rejected, no event

	want := []Event{
		{Kind: EventReloaded},
		{Kind: EventCreated, Key: "y"},
		{Kind: EventUpdated, Key: "y"},
		{Kind: EventDeleted, Key: "x"},
	}
	if !slices.Equal(events, want) {
		t.Fatalf("events = %v, want %v", events, want)
	}
	if !slices.Equal(lens, []int{1, 2, 2, 1}) {
		t.Errorf("snapshot lengths seen by subscriber = %v", lens)
	}

	cancel()
	_ = s.Delete("y")
	if len(events) != len(want) {
		t.Errorf("event delivered after cancel: %v", events[len(want):])
	}
}
