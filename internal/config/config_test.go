package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
)

func TestLoad_NoFile(t *testing.T) {
	t.Parallel()

	path, err := Load("/nonexistent/path/config.yaml", slog.Default())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if path != "" {
		t.Errorf("expected empty path, got %q", path)
	}
}

// clearEnv empties keys for the duration of the test so Load can set them.
func clearEnv(t *testing.T, keys ...string) {
	t.Helper()
	for _, k := range keys {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}
}

func TestLoad_ValidYAML(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")

	content := []byte(`
model:
  provider: ollama
  max_tokens: 2048
embedding:
  provider: hash
index:
  backend: qdrant
  top_k: 8
  qdrant:
    host: qdrant.internal
    port: 6334
    collection: council-docs
data:
  dir: /srv/civic/data
classifier:
  mode: embedding
web:
  ttl: 3h
  cache_db: /var/lib/civic/web.db
server:
  rate_limit_rps: 2.5
logging:
  level: debug
  format: text
`)
	if err := os.WriteFile(cfgPath, content, 0o644); err != nil {
		t.Fatal(err)
	}

	clearEnv(t,
		"MODEL_PROVIDER", "MODEL_MAX_TOKENS", "EMBEDDING_PROVIDER",
		"CIVIC_VECTOR_BACKEND", "CIVIC_TOP_K", "QDRANT_HOST", "QDRANT_PORT", "QDRANT_COLLECTION",
		"CIVIC_DATA_DIR", "CIVIC_CLASSIFIER_MODE", "CIVIC_WEB_TTL", "CIVIC_WEB_CACHE_DB",
		"CIVIC_RATE_LIMIT_RPS", "LOG_LEVEL", "LOG_FORMAT",
	)

	loaded, err := Load(cfgPath, slog.Default())
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded != cfgPath {
		t.Errorf("loaded path: got %q, want %q", loaded, cfgPath)
	}

	checks := map[string]string{
		"MODEL_PROVIDER":        "ollama",
		"MODEL_MAX_TOKENS":      "2048",
		"EMBEDDING_PROVIDER":    "hash",
		"CIVIC_VECTOR_BACKEND":  "qdrant",
		"CIVIC_TOP_K":           "8",
		"QDRANT_HOST":           "qdrant.internal",
		"QDRANT_PORT":           "6334",
		"QDRANT_COLLECTION":     "council-docs",
		"CIVIC_DATA_DIR":        "/srv/civic/data",
		"CIVIC_CLASSIFIER_MODE": "embedding",
		"CIVIC_WEB_TTL":         "3h",
		"CIVIC_WEB_CACHE_DB":    "/var/lib/civic/web.db",
		"CIVIC_RATE_LIMIT_RPS":  "2.5",
		"LOG_LEVEL":             "debug",
		"LOG_FORMAT":            "text",
	}
	for k, want := range checks {
		if got := os.Getenv(k); got != want {
			t.Errorf("%s: got %q, want %q", k, got, want)
		}
	}
}

func TestLoad_ValidTOML(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "civic.toml")

	content := []byte(`
[index]
backend = "pgvector"

[index.pgvector]
dsn = "postgres://civic@localhost/civic"

[web]
base_url = "https://example.org/"
`)
	if err := os.WriteFile(cfgPath, content, 0o644); err != nil {
		t.Fatal(err)
	}
	clearEnv(t, "CIVIC_VECTOR_BACKEND", "PGVECTOR_DSN", "CIVIC_WEB_BASE_URL")

	if _, err := Load(cfgPath, slog.Default()); err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if got := os.Getenv("CIVIC_VECTOR_BACKEND"); got != "pgvector" {
		t.Errorf("CIVIC_VECTOR_BACKEND: got %q", got)
	}
	if got := os.Getenv("PGVECTOR_DSN"); got != "postgres://civic@localhost/civic" {
		t.Errorf("PGVECTOR_DSN: got %q", got)
	}
	if got := os.Getenv("CIVIC_WEB_BASE_URL"); got != "https://example.org/" {
		t.Errorf("CIVIC_WEB_BASE_URL: got %q", got)
	}
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")

	if err := os.WriteFile(cfgPath, []byte("index:\n  backend: memory\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	t.Setenv("CIVIC_VECTOR_BACKEND", "sqlite")

	if _, err := Load(cfgPath, slog.Default()); err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if got := os.Getenv("CIVIC_VECTOR_BACKEND"); got != "sqlite" {
		t.Errorf("CIVIC_VECTOR_BACKEND: expected env override %q, got %q", "sqlite", got)
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")

	if err := os.WriteFile(cfgPath, []byte("{{invalid yaml"), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := Load(cfgPath, slog.Default()); err == nil {
		t.Fatal("expected error for invalid YAML")
	}
}

func TestResolveConfigPath_EnvVar(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "from-env.yaml")
	if err := os.WriteFile(cfgPath, []byte("{}"), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("CIVIC_CONFIG", cfgPath)

	if got := resolveConfigPath(""); got != cfgPath {
		t.Errorf("resolveConfigPath: got %q, want %q", got, cfgPath)
	}
}

func TestFloat32Str(t *testing.T) {
	t.Parallel()
	tests := []struct {
		in   float32
		want string
	}{
		{0.0, ""},
		{0.2, "0.2"},
		{2.5, "2.5"},
		{1.0, "1"},
	}
	for _, tt := range tests {
		if got := float32Str(tt.in); got != tt.want {
			t.Errorf("float32Str(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
