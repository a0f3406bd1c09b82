package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

type sample struct {
	Name  string `yaml:"name"`
	Count int    `yaml:"count"`
}

func (s *sample) Validate() error {
	if s.Name == "" {
		return errors.New("name is required")
	}
	return nil
}

func writeFile(t *testing.T, data string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadExpandsEnv(t *testing.T) {
	t.Setenv("SAMPLE_NAME", "automaton")
	var s sample
	if err := Load(writeFile(t, "name: ${SAMPLE_NAME}\ncount: 3\n"), &s); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if s.Name != "automaton" || s.Count != 3 {
		t.Errorf("got %+v", s)
	}
}

func TestLoadValidates(t *testing.T) {
	var s sample
	err := Load(writeFile(t, "count: 1\n"), &s)
	if err == nil || !strings.Contains(err.Error(), "name is required") {
		t.Fatalf("err = %v, want validation error", err)
	}
}

func TestLoadMissingFile(t *testing.T) {
	var s sample
	if err := Load(filepath.Join(t.TempDir(), "nope.yaml"), &s); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestLoadOptional(t *testing.T) {
	s := sample{Name: "default"}
	if err := LoadOptional(filepath.Join(t.TempDir(), "nope.yaml"), &s); err != nil {
		t.Fatalf("missing file should keep defaults: %v", err)
	}
	if s.Name != "default" {
		t.Errorf("name = %q", s.Name)
	}

	empty := sample{}
	if err := LoadOptional(filepath.Join(t.TempDir(), "nope.yaml"), &empty); err == nil {
		t.Fatal("defaults should still be validated")
	}

	if err := LoadOptional(writeFile(t, "name: file\n"), &s); err != nil || s.Name != "file" {
		t.Fatalf("LoadOptional = %+v, %v", s, err)
	}
}
