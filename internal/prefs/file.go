package prefs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// File implements Provider backed by one JSON document on disk:
//
//	{
//	  "IntentActions": {"phone": "tel:12345"}
//	}
type File struct {
	mu      sync.Mutex
	path    string // absolute path to the JSON file
	written string // checksum of the last content written by Set
}

// NewFile creates a file provider at path. The parent directory is created
// if missing; the file itself is created on the first Set.
func NewFile(path string) (*File, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("prefs: resolve path: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		return nil, fmt.Errorf("prefs: mkdir: %w", err)
	}
	if info, err := os.Stat(abs); err == nil && info.IsDir() {
		return nil, fmt.Errorf("prefs: path is a directory: %s", abs)
	}
	return &File{path: abs}, nil
}

// Path returns the absolute path of the backing file.
func (f *File) Path() string {
	return f.path
}

// Get returns the named entry.
func (f *File) Get(_ context.Context, name string) (map[string]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	doc, err := f.load()
	if err != nil {
		return nil, err
	}
	return clone(doc[name]), nil
}

// Set replaces the named entry and rewrites the file atomically.
func (f *File) Set(_ context.Context, name string, values map[string]string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	doc, err := f.load()
	if err != nil {
		return err
	}
	if values == nil {
		values = map[string]string{}
	}
	doc[name] = clone(values)
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("prefs: encode: %w", err)
	}
	data = append(data, '\n')
	if err := writeAtomic(f.path, data); err != nil {
		return err
	}
	f.written = contentSum(data)
	return nil
}

func (f *File) writtenSum() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.written
}

// Close is a no-op.
func (f *File) Close() error { return nil }

func (f *File) load() (map[string]map[string]string, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return map[string]map[string]string{}, nil
		}
		return nil, fmt.Errorf("prefs: read %s: %w", f.path, err)
	}
	doc := map[string]map[string]string{}
	if len(data) == 0 {
		return doc, nil
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("prefs: decode %s: %w", f.path, err)
	}
	return doc, nil
}

// writeAtomic writes content: tmp file → fsync → rename.
func writeAtomic(path string, content []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".automaton-tmp-*")
	if err != nil {
		return fmt.Errorf("prefs: create temp: %w", err)
	}
	tmpName := tmp.Name()

	// Clean up on any failure path.
	success := false
	defer func() {
		if !success {
			_ = tmp.Close()
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(content); err != nil {
		return fmt.Errorf("prefs: write temp: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("prefs: fsync: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("prefs: close temp: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("prefs: rename: %w", err)
	}
	success = true
	return nil
}
