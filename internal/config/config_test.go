package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/hyperjump/shoroku/internal/models"
)

func clearEnv(t *testing.T) {
	t.Helper()
	t.Setenv("SHOROKU_DATABASE_PATH", "")
	t.Setenv("DATABASE_URL", "")
	t.Setenv("GOOGLE_API_KEY", "")
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, `
server:
  host: "127.0.0.1"
  port: 9000
storage:
  database_path: "test.db"
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Server.Host != "127.0.0.1" || cfg.Server.Port != 9000 {
		t.Errorf("unexpected server config: %+v", cfg.Server)
	}
	if cfg.Storage.DatabasePath == "" {
		t.Error("database_path should be set")
	}
	if cfg.Debug {
		t.Error("debug should default to false when unset")
	}
}

func TestLoad_expandPathDotSlashRelativeToConfigDir(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, `
storage:
  database_path: "./data/db/abstracts.db"
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	want := filepath.Join(filepath.Dir(path), "data", "db", "abstracts.db")
	if cfg.Storage.DatabasePath != want {
		t.Errorf("database_path = %s, want %s", cfg.Storage.DatabasePath, want)
	}
}

func TestLoad_explicitZeroOverlapKept(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, `
ingest:
  chunk_size: 64
  chunk_overlap: 0
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Ingest.Overlap() != 0 {
		t.Errorf("overlap = %d, want 0", cfg.Ingest.Overlap())
	}
}

func TestLoad_invalidWindow(t *testing.T) {
	clearEnv(t)
	tests := []struct {
		name    string
		content string
	}{
		{"overlap_equals_size", "ingest:\n  chunk_size: 10\n  chunk_overlap: 10\n"},
		{"overlap_larger", "ingest:\n  chunk_size: 10\n  chunk_overlap: 20\n"},
		{"negative_overlap", "ingest:\n  chunk_size: 10\n  chunk_overlap: -1\n"},
		{"negative_size", "ingest:\n  chunk_size: -5\n  chunk_overlap: 0\n"},
		{"negative_dimensions", "embedding:\n  dimensions: -1\n"},
		{"unknown_provider", "embedding:\n  provider: carrier-pigeon\n"},
		{"unknown_driver", "storage:\n  driver: postgres\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.content))
			if !errors.Is(err, models.ErrInvalidConfig) {
				t.Errorf("Load() err = %v, want ErrInvalidConfig", err)
			}
		})
	}
}

func TestApplyEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("DATABASE_URL", "sqlite3:///tmp/from-url.db")
	t.Setenv("GOOGLE_API_KEY", "secret")
	cfg := Default()
	ApplyEnv(cfg)
	if cfg.Storage.DatabasePath != "/tmp/from-url.db" {
		t.Errorf("database path = %s", cfg.Storage.DatabasePath)
	}
	if cfg.Embedding.APIKey != "secret" {
		t.Errorf("api key = %q", cfg.Embedding.APIKey)
	}

	t.Setenv("SHOROKU_DATABASE_PATH", "/tmp/explicit.db")
	ApplyEnv(cfg)
	if cfg.Storage.DatabasePath != "/tmp/explicit.db" {
		t.Errorf("SHOROKU_DATABASE_PATH should win, got %s", cfg.Storage.DatabasePath)
	}
}

func TestApplyEnv_ignoresNonSQLiteURL(t *testing.T) {
	clearEnv(t)
	t.Setenv("DATABASE_URL", "postgresql://user@localhost/pubmed")
	cfg := Default()
	before := cfg.Storage.DatabasePath
	ApplyEnv(cfg)
	if cfg.Storage.DatabasePath != before {
		t.Errorf("postgres url should be ignored, got %s", cfg.Storage.DatabasePath)
	}
}

func TestApplyDefaults(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)
	if cfg.Server.Host != "localhost" {
		t.Errorf("default host: got %s", cfg.Server.Host)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("default port: got %d", cfg.Server.Port)
	}
	if cfg.Ingest.ChunkSize != 500 || cfg.Ingest.Overlap() != 100 {
		t.Errorf("default window: got %d/%d", cfg.Ingest.ChunkSize, cfg.Ingest.Overlap())
	}
	if cfg.Embedding.Dimensions != 256 {
		t.Errorf("default dimensions: got %d", cfg.Embedding.Dimensions)
	}
	if cfg.Embedding.Model != "models/embedding-001" || cfg.Embedding.APIKeyEnv != "GOOGLE_API_KEY" {
		t.Errorf("gemini defaults: got %+v", cfg.Embedding)
	}
	if cfg.Query.DefaultLimit != 3 {
		t.Errorf("default limit: got %d", cfg.Query.DefaultLimit)
	}
	if cfg.Storage.Driver != "sqlite3" {
		t.Errorf("default driver: got %s", cfg.Storage.Driver)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}
}

func TestApplyDefaults_openAIProvider(t *testing.T) {
	cfg := &Config{Embedding: EmbeddingConfig{Provider: "openai"}}
	ApplyDefaults(cfg)
	if cfg.Embedding.BaseURL != "https://api.openai.com/v1" || cfg.Embedding.APIKeyEnv != "OPENAI_API_KEY" {
		t.Errorf("openai defaults: got %+v", cfg.Embedding)
	}
}

func TestSave(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "saved.yaml")
	cfg := Default()
	cfg.Server.Port = 9090
	cfg.Storage.DatabasePath = "/tmp/db"
	if err := Save(path, cfg); err != nil {
		t.Fatal(err)
	}
	loaded, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if loaded.Server.Port != 9090 {
		t.Errorf("loaded port: got %d", loaded.Server.Port)
	}
	if loaded.Ingest.Overlap() != 100 {
		t.Errorf("loaded overlap: got %d", loaded.Ingest.Overlap())
	}
}
