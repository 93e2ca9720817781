package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestSettings_SetPersistsAndReloads(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	s, err := OpenSettings(path)
	if err != nil {
		t.Fatalf("open settings: %v", err)
	}

	if err := s.Set("opensearch.index", "docs_v2"); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := s.Set("chunk.size", "800"); err != nil {
		t.Fatalf("set: %v", err)
	}

	// Reopen from disk to prove persistence.
	s2, err := OpenSettings(path)
	if err != nil {
		t.Fatalf("reopen settings: %v", err)
	}
	if got := s2.GetString("opensearch.index"); got != "docs_v2" {
		t.Errorf("expected docs_v2, got %q", got)
	}
	if n, ok := s2.GetInt("chunk.size"); !ok || n != 800 {
		t.Errorf("expected 800, got %d (ok=%v)", n, ok)
	}
}

func TestSettings_FlattensNestedTables(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	content := "[opensearch]\nindex = \"nested\"\ntimeout = \"120s\"\n"
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("write file: %v", err)
	}

	s, err := OpenSettings(path)
	if err != nil {
		t.Fatalf("open settings: %v", err)
	}
	if got := s.GetString("opensearch.index"); got != "nested" {
		t.Errorf("expected nested, got %q", got)
	}
	if got := s.GetString("opensearch.timeout"); got != "120s" {
		t.Errorf("expected 120s, got %q", got)
	}
}

func TestSettings_CoercesTypedValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	s, err := OpenSettings(path)
	if err != nil {
		t.Fatalf("open settings: %v", err)
	}

	if err := s.Set("blob.use_ssl", "true"); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := s.Set("filters.blank_ratio", "0.1"); err != nil {
		t.Fatalf("set: %v", err)
	}

	if b, ok := s.GetBool("blob.use_ssl"); !ok || !b {
		t.Errorf("expected bool true, got %v (ok=%v)", b, ok)
	}
	if f, ok := s.GetFloat("filters.blank_ratio"); !ok || f != 0.1 {
		t.Errorf("expected 0.1, got %f (ok=%v)", f, ok)
	}

	// File round-trips as nested TOML tables.
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read file: %v", err)
	}
	if !strings.Contains(string(data), "[blob]") {
		t.Errorf("expected nested [blob] table in file, got:\n%s", data)
	}
}

func TestSettings_MissingFileStartsEmpty(t *testing.T) {
	s, err := OpenSettings(filepath.Join(t.TempDir(), "absent.toml"))
	if err != nil {
		t.Fatalf("open settings: %v", err)
	}
	if len(s.Keys()) != 0 {
		t.Errorf("expected no keys, got %v", s.Keys())
	}
}
