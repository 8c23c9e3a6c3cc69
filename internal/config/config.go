// Package config provides configuration loading and structs for shoroku.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/hyperjump/shoroku/internal/models"
)

// Config holds all configuration for the application.
type Config struct {
	Debug     bool            `yaml:"debug"`
	Server    ServerConfig    `yaml:"server"`
	Storage   StorageConfig   `yaml:"storage"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Ingest    IngestConfig    `yaml:"ingest"`
	Query     QueryConfig     `yaml:"query"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// StorageConfig selects the SQLite driver and database file.
// Driver is "sqlite3" (cgo, mattn) or "sqlite" (pure Go, modernc).
type StorageConfig struct {
	Driver       string `yaml:"driver"`
	DatabasePath string `yaml:"database_path"`
}

// EmbeddingConfig holds embedding provider settings.
type EmbeddingConfig struct {
	// Provider is one of "gemini", "openai", "onnx" or "mock".
	Provider  string `yaml:"provider"`
	Model     string `yaml:"model"`
	BaseURL   string `yaml:"base_url"`
	APIKeyEnv string `yaml:"api_key_env"`
	// APIKey is resolved from APIKeyEnv at load time and never written back.
	APIKey     string `yaml:"-"`
	Dimensions int    `yaml:"dimensions"`

	ModelPath string `yaml:"model_path"`
	MaxTokens int    `yaml:"max_tokens"`
	CacheSize int    `yaml:"cache_size"`

	TimeoutSecs       int     `yaml:"timeout_secs"`
	MaxRetries        int     `yaml:"max_retries"`
	RequestsPerSecond float64 `yaml:"requests_per_second"`
	Burst             int     `yaml:"burst"`
}

// IngestConfig holds chunking and embedding batch settings.
type IngestConfig struct {
	ChunkSize int `yaml:"chunk_size"`
	// ChunkOverlap is a pointer so an explicit 0 survives ApplyDefaults.
	ChunkOverlap *int `yaml:"chunk_overlap"`
	BatchSize    int  `yaml:"batch_size"`
	Workers      int  `yaml:"workers"`
}

// Overlap returns the configured overlap, or 0 when unset.
func (c *IngestConfig) Overlap() int {
	if c.ChunkOverlap != nil {
		return *c.ChunkOverlap
	}
	return 0
}

// SetOverlap sets the chunk overlap.
func (c *IngestConfig) SetOverlap(n int) {
	c.ChunkOverlap = &n
}

// QueryConfig holds query defaults.
type QueryConfig struct {
	DefaultLimit int `yaml:"default_limit"`
}

// Load reads and parses the config file at path, expands paths, applies defaults
// and environment overrides, and validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	ApplyDefaults(&cfg)
	ApplyEnv(&cfg)

	configDir := filepath.Dir(path)
	cfg.Storage.DatabasePath = expandPath(cfg.Storage.DatabasePath, configDir)
	if cfg.Embedding.ModelPath != "" {
		cfg.Embedding.ModelPath = expandPath(cfg.Embedding.ModelPath, configDir)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Save writes the config to path.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// ApplyEnv overrides cfg from the process environment. SHOROKU_DATABASE_PATH wins over
// DATABASE_URL; DATABASE_URL is only honoured when it names a sqlite file.
func ApplyEnv(cfg *Config) {
	if v := os.Getenv("SHOROKU_DATABASE_PATH"); v != "" {
		cfg.Storage.DatabasePath = v
	} else if v := os.Getenv("DATABASE_URL"); v != "" {
		if p, ok := sqlitePath(v); ok {
			cfg.Storage.DatabasePath = p
		}
	}
	if cfg.Embedding.APIKeyEnv != "" {
		if v := os.Getenv(cfg.Embedding.APIKeyEnv); v != "" {
			cfg.Embedding.APIKey = v
		}
	}
}

func sqlitePath(url string) (string, bool) {
	for _, prefix := range []string{"sqlite3://", "sqlite://", "file:"} {
		if strings.HasPrefix(url, prefix) {
			return strings.TrimPrefix(url, prefix), true
		}
	}
	return "", false
}

// Validate checks the settings the pipeline and store cannot run without.
func (c *Config) Validate() error {
	var errs []error
	if c.Embedding.Dimensions <= 0 {
		errs = append(errs, fmt.Errorf("embedding.dimensions must be positive, got %d", c.Embedding.Dimensions))
	}
	if err := c.Ingest.Validate(); err != nil {
		errs = append(errs, err)
	}
	switch c.Storage.Driver {
	case "sqlite3", "sqlite":
	default:
		errs = append(errs, fmt.Errorf("storage.driver must be sqlite3 or sqlite, got %q", c.Storage.Driver))
	}
	switch c.Embedding.Provider {
	case "gemini", "openai", "onnx", "mock":
	default:
		errs = append(errs, fmt.Errorf("unknown embedding.provider %q", c.Embedding.Provider))
	}
	if c.Query.DefaultLimit <= 0 {
		errs = append(errs, fmt.Errorf("query.default_limit must be positive, got %d", c.Query.DefaultLimit))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", models.ErrInvalidConfig, errors.Join(errs...))
	}
	return nil
}

// Validate checks the chunking window and batch settings.
func (c *IngestConfig) Validate() error {
	if c.ChunkSize <= 0 {
		return fmt.Errorf("%w: chunk_size must be positive, got %d", models.ErrInvalidConfig, c.ChunkSize)
	}
	if o := c.Overlap(); o < 0 || o >= c.ChunkSize {
		return fmt.Errorf("%w: chunk_overlap must be in [0, %d), got %d", models.ErrInvalidConfig, c.ChunkSize, o)
	}
	if c.BatchSize <= 0 {
		return fmt.Errorf("%w: batch_size must be positive, got %d", models.ErrInvalidConfig, c.BatchSize)
	}
	if c.Workers <= 0 {
		return fmt.Errorf("%w: workers must be positive, got %d", models.ErrInvalidConfig, c.Workers)
	}
	return nil
}

// expandPath converts a path to absolute. Paths starting with "./" are relative to configDir;
// other relative paths are relative to the home directory.
func expandPath(path string, configDir string) string {
	if path == ":memory:" || filepath.IsAbs(path) {
		return path
	}
	if strings.HasPrefix(path, "./") || path == "." {
		return filepath.Join(configDir, path)
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, path)
	}
	return path
}
