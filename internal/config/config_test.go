package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
)

func TestLoad_NoFile(t *testing.T) {
	t.Parallel()

	log := slog.Default()
	path, err := Load("/nonexistent/path/config.yaml", log)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if path != "" {
		t.Errorf("expected empty path, got %q", path)
	}
}

func TestLoad_ValidFile(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")

	content := []byte(`
embedding:
  provider: gemini
  model: text-embedding-004
  dimensions: 768
qdrant:
  host: qdrant.internal
  port: 6334
  collection: surgical-cases
database:
  path: /var/lib/casematch/cases.db
retrieval:
  feature_weight: 0.6
  embedding_weight: 0.4
  breadth: 20
logging:
  level: debug
  format: text
`)

	if err := os.WriteFile(cfgPath, content, 0o644); err != nil {
		t.Fatal(err)
	}

	// Clear env vars that the YAML should set.
	envKeys := []string{
		"EMBEDDING_PROVIDER", "EMBEDDING_MODEL", "EMBEDDING_DIMENSIONS",
		"QDRANT_HOST", "QDRANT_PORT", "QDRANT_COLLECTION",
		"CASEMATCH_DB",
		"RETRIEVAL_FEATURE_WEIGHT", "RETRIEVAL_EMBEDDING_WEIGHT", "RETRIEVAL_BREADTH",
		"LOG_LEVEL", "LOG_FORMAT",
	}
	for _, k := range envKeys {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}

	log := slog.Default()
	loaded, err := Load(cfgPath, log)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded != cfgPath {
		t.Errorf("loaded path: got %q, want %q", loaded, cfgPath)
	}

	checks := map[string]string{
		"EMBEDDING_PROVIDER":         "gemini",
		"EMBEDDING_MODEL":            "text-embedding-004",
		"EMBEDDING_DIMENSIONS":       "768",
		"QDRANT_HOST":                "qdrant.internal",
		"QDRANT_PORT":                "6334",
		"QDRANT_COLLECTION":          "surgical-cases",
		"CASEMATCH_DB":               "/var/lib/casematch/cases.db",
		"RETRIEVAL_FEATURE_WEIGHT":   "0.6",
		"RETRIEVAL_EMBEDDING_WEIGHT": "0.4",
		"RETRIEVAL_BREADTH":          "20",
		"LOG_LEVEL":                  "debug",
		"LOG_FORMAT":                 "text",
	}
	for k, want := range checks {
		got := os.Getenv(k)
		if got != want {
			t.Errorf("%s: got %q, want %q", k, got, want)
		}
	}
}

func TestLoad_EnvOverridesYAML(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")

	content := []byte(`
embedding:
  provider: ollama
`)
	if err := os.WriteFile(cfgPath, content, 0o644); err != nil {
		t.Fatal(err)
	}

	// Set env var BEFORE loading — it should NOT be overwritten.
	t.Setenv("EMBEDDING_PROVIDER", "gemini")

	log := slog.Default()
	_, err := Load(cfgPath, log)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if got := os.Getenv("EMBEDDING_PROVIDER"); got != "gemini" {
		t.Errorf("EMBEDDING_PROVIDER: expected env override %q, got %q", "gemini", got)
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")

	if err := os.WriteFile(cfgPath, []byte("{{invalid yaml"), 0o644); err != nil {
		t.Fatal(err)
	}

	log := slog.Default()
	_, err := Load(cfgPath, log)
	if err == nil {
		t.Fatal("expected error for invalid YAML")
	}
}

func TestFloatStr(t *testing.T) {
	t.Parallel()
	tests := []struct {
		in   float64
		want string
	}{
		{0.0, ""},
		{0.2, "0.2"},
		{0.6, "0.6"},
		{1.0, "1"},
	}
	for _, tt := range tests {
		if got := floatStr(tt.in); got != tt.want {
			t.Errorf("floatStr(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
