package prefs_test

import (
	"context"
	"log/slog"
	"maps"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/starford/automaton/internal/prefs"
)

// runProviderTests runs a common test suite against any Provider implementation.
func runProviderTests(t *testing.T, p prefs.Provider) {
	t.Helper()
	ctx := context.Background()

	t.Run("Get missing", func(t *testing.T) {
		got, err := p.Get(ctx, "IntentActions")
		if err != nil {
			t.Fatal(err)
		}
		if got != nil {
			t.Fatalf("expected nil, got %v", got)
		}
	})

	t.Run("Set and Get", func(t *testing.T) {
		want := map[string]string{"phone": "tel:12345", "web": "https://example.com"}
		if err := p.Set(ctx, "IntentActions", want); err != nil {
			t.Fatal(err)
		}
		got, err := p.Get(ctx, "IntentActions")
		if err != nil {
			t.Fatal(err)
		}
		if !maps.Equal(got, want) {
			t.Fatalf("got %v, want %v", got, want)
		}
	})

	t.Run("Set replaces wholesale", func(t *testing.T) {
		want := map[string]string{"web": "https://example.org"}
		if err := p.Set(ctx, "IntentActions", want); err != nil {
			t.Fatal(err)
		}
		got, err := p.Get(ctx, "IntentActions")
		if err != nil {
			t.Fatal(err)
		}
		if !maps.Equal(got, want) {
			t.Fatalf("got %v, want %v", got, want)
		}
	})

	t.Run("Set empty keeps entry", func(t *testing.T) {
		if err := p.Set(ctx, "IntentActions", map[string]string{}); err != nil {
			t.Fatal(err)
		}
		got, err := p.Get(ctx, "IntentActions")
		if err != nil {
			t.Fatal(err)
		}
		if got == nil || len(got) != 0 {
			t.Fatalf("expected empty non-nil map, got %#v", got)
		}
	})

	t.Run("Entries isolated", func(t *testing.T) {
		if err := p.Set(ctx, "Other", map[string]string{"a": "b"}); err != nil {
			t.Fatal(err)
		}
		got, _ := p.Get(ctx, "IntentActions")
		if len(got) != 0 {
			t.Fatalf("IntentActions changed: %v", got)
		}
	})

	t.Run("Get returns copy", func(t *testing.T) {
		got, _ := p.Get(ctx, "Other")
		got["a"] = "mutated"
		again, _ := p.Get(ctx, "Other")
		if again["a"] != "b" {
			t.Fatalf("provider state mutated through returned map: %v", again)
		}
	})
}

func TestMemory(t *testing.T) {
	runProviderTests(t, prefs.NewMemory())
}

func TestFile(t *testing.T) {
	f, err := prefs.NewFile(filepath.Join(t.TempDir(), "sub", "preferences.json"))
	if err != nil {
		t.Fatal(err)
	}
	runProviderTests(t, f)
}

func TestSQLite(t *testing.T) {
	s, err := prefs.OpenSQLite(filepath.Join(t.TempDir(), "preferences.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()
	runProviderTests(t, s)
}

func TestFactory(t *testing.T) {
	dir := t.TempDir()
	for _, backend := range []string{"json", "sqlite", "memory", ""} {
		t.Run(backend, func(t *testing.T) {
			p, err := prefs.New(backend, filepath.Join(dir, "prefs-"+backend))
			if err != nil {
				t.Fatal(err)
			}
			_ = p.Close()
		})
	}

	t.Run("unknown", func(t *testing.T) {
		if _, err := prefs.New("redis", dir); err == nil {
			t.Fatal("expected error for unknown backend")
		}
	})
}

func TestFile_PersistsAcrossInstances(t *testing.T) {
	path := filepath.Join(t.TempDir(), "preferences.json")
	ctx := context.Background()
	a, _ := prefs.NewFile(path)
	if err := a.Set(ctx, "IntentActions", map[string]string{"k": "tel:1"}); err != nil {
		t.Fatal(err)
	}
	b, _ := prefs.NewFile(path)
	got, err := b.Get(ctx, "IntentActions")
	if err != nil {
		t.Fatal(err)
	}
	if got["k"] != "tel:1" {
		t.Fatalf("got %v", got)
	}

	matches, _ := filepath.Glob(filepath.Join(filepath.Dir(path), ".automaton-tmp-*"))
	if len(matches) != 0 {
		t.Errorf("leftover temp files: %v", matches)
	}
}

func TestFile_CorruptDocument(t *testing.T) {
	path := filepath.Join(t.TempDir(), "preferences.json")
	_ = os.WriteFile(path, []byte("{not json"), 0o644)
	f, _ := prefs.NewFile(path)
	if _, err := f.Get(context.Background(), "IntentActions"); err == nil {
		t.Fatal("expected decode error")
	}
}

func TestNewFile_Directory(t *testing.T) {
	if _, err := prefs.NewFile(t.TempDir()); err == nil {
		t.Fatal("expected error when path is a directory")
	}
}

// eventually polls fn every tick until it returns true or timeout elapses.
func eventually(t *testing.T, timeout, tick time.Duration, fn func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if fn() {
			return
		}
		time.Sleep(tick)
	}
	t.Error(msg)
}

func TestWatch_ExternalChange(t *testing.T) {
	path := filepath.Join(t.TempDir(), "preferences.json")
	f, err := prefs.NewFile(path)
	if err != nil {
		t.Fatal(err)
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var calls atomic.Int32
	go prefs.Watch(ctx, f, logger, func() { calls.Add(1) })
	time.Sleep(100 * time.Millisecond)

	_ = os.WriteFile(path, []byte(`{"IntentActions":{"x":"https://example.com"}}`), 0o644)

	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		return calls.Load() >= 1
	}, "external write not reported")
}

func TestWatch_OwnWriteIgnored(t *testing.T) {
	path := filepath.Join(t.TempDir(), "preferences.json")
	f, err := prefs.NewFile(path)
	if err != nil {
		t.Fatal(err)
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var calls atomic.Int32
	go prefs.Watch(ctx, f, logger, func() { calls.Add(1) })
	time.Sleep(100 * time.Millisecond)

	if err := f.Set(context.Background(), "IntentActions", map[string]string{"x": "tel:1"}); err != nil {
		t.Fatal(err)
	}
	time.Sleep(600 * time.Millisecond)
	if n := calls.Load(); n != 0 {
		t.Errorf("callback fired %d times for own write", n)
	}
}
