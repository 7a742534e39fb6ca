package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	for _, k := range []string{"PORT", "EMBEDDER", "TOP_K", "MAX_SECTIONS_PER_DOC", "VECTOR_STORE", "EMBEDDING_TIMEOUT", "LOG_LEVEL"} {
		t.Setenv(k, "")
	}
	cfg := Load()

	if cfg.Port != "8090" {
		t.Errorf("expected port 8090, got %q", cfg.Port)
	}
	if cfg.Embedder != "hash" || cfg.VectorStore != "memory" {
		t.Errorf("unexpected backends %q/%q", cfg.Embedder, cfg.VectorStore)
	}
	if cfg.TopK != 5 || cfg.MaxSectionsPerDoc != 2 {
		t.Errorf("unexpected ranking defaults top_k=%d cap=%d", cfg.TopK, cfg.MaxSectionsPerDoc)
	}
	if cfg.EmbeddingTimeout != 30*time.Second {
		t.Errorf("unexpected timeout %v", cfg.EmbeddingTimeout)
	}
	if cfg.LogLevel != slog.LevelInfo {
		t.Errorf("unexpected log level %v", cfg.LogLevel)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("EMBEDDER", "OpenAI")
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("TOP_K", "10")
	t.Setenv("EMBEDDING_RPS", "2.5")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("WORKER_COUNT", "-3")
	t.Setenv("JOB_TTL", "not-a-duration")

	cfg := Load()
	if cfg.Embedder != "openai" || cfg.TopK != 10 || cfg.EmbeddingRPS != 2.5 {
		t.Errorf("overrides not applied: %+v", cfg)
	}
	if cfg.LogLevel != slog.LevelDebug {
		t.Errorf("expected debug level, got %v", cfg.LogLevel)
	}
	if cfg.WorkerCount != 2 {
		t.Errorf("expected invalid worker count to fall back to 2, got %d", cfg.WorkerCount)
	}
	if cfg.JobTTL != time.Hour {
		t.Errorf("expected unparseable TTL to fall back, got %v", cfg.JobTTL)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("expected valid config, got %v", err)
	}
}

func TestValidate(t *testing.T) {
	base := Config{Embedder: "hash", VectorStore: "memory", TopK: 5, MaxSectionsPerDoc: 2}
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"openai without key", func(c *Config) { c.Embedder = "openai" }, "OPENAI_API_KEY"},
		{"http without url", func(c *Config) { c.Embedder = "http" }, "EMBEDDING_URL"},
		{"unknown embedder", func(c *Config) { c.Embedder = "magic" }, "unknown EMBEDDER"},
		{"unknown store", func(c *Config) { c.VectorStore = "redis" }, "unknown VECTOR_STORE"},
		{"sqlite without path", func(c *Config) { c.VectorStore = "sqlite" }, "VECTOR_DB_PATH"},
		{"zero top k", func(c *Config) { c.TopK = 0 }, "TOP_K"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base
			tt.mutate(&cfg)
			err := cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestValidateServer_RequiresAPIKey(t *testing.T) {
	cfg := Config{Embedder: "hash", VectorStore: "memory", TopK: 5}
	if err := cfg.ValidateServer(); err == nil || !strings.Contains(err.Error(), "DOCSIFT_API_KEY") {
		t.Errorf("expected missing API key error, got %v", err)
	}
	cfg.DocsiftAPIKey = "secret"
	if err := cfg.ValidateServer(); err != nil {
		t.Errorf("expected valid server config, got %v", err)
	}
}

func TestLoadDotEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	if err := os.WriteFile(path, []byte("DOCSIFT_TEST_VALUE=from-file\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("DOCSIFT_TEST_VALUE", "")
	os.Unsetenv("DOCSIFT_TEST_VALUE")

	if err := LoadDotEnv(path); err != nil {
		t.Fatalf("load: %v", err)
	}
	if got := os.Getenv("DOCSIFT_TEST_VALUE"); got != "from-file" {
		t.Errorf("expected value from .env, got %q", got)
	}
	if err := LoadDotEnv(filepath.Join(t.TempDir(), "missing.env")); err != nil {
		t.Errorf("missing file should be ignored, got %v", err)
	}
}
