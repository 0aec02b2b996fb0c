package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/pyvm/pyvm/internal/config"
)

func TestLoadMissingFileReturnsZeroValueNotError(t *testing.T) {
	dir := t.TempDir()
	cfg, err := config.Load(dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg == nil {
		t.Fatal("expected a non-nil zero-value Config")
	}
	if len(cfg.SearchPath) != 0 || cfg.Trace {
		t.Errorf("got %+v, want zero value", cfg)
	}
}

func TestLoadParsesSearchPathAndTrace(t *testing.T) {
	dir := t.TempDir()
	content := "search_path:\n  - ./vendor\n  - ./lib\ntrace: true\n"
	if err := os.WriteFile(filepath.Join(dir, "pyvm.yaml"), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := config.Load(dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !cfg.Trace {
		t.Error("expected Trace to be true")
	}
	if len(cfg.SearchPath) != 2 || cfg.SearchPath[0] != "./vendor" || cfg.SearchPath[1] != "./lib" {
		t.Errorf("got %v", cfg.SearchPath)
	}
}

func TestLoadMalformedYAMLReturnsError(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "pyvm.yaml"), []byte("search_path: [unterminated\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := config.Load(dir); err == nil {
		t.Error("expected an error for malformed YAML")
	}
}
