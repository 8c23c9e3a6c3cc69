package embedding

import (
	"fmt"
	"time"

	"github.com/hyperjump/shoroku/internal/config"
	"github.com/hyperjump/shoroku/internal/models"
	"go.uber.org/zap"
)

// ONNXConfig holds local model settings.
type ONNXConfig struct {
	ModelPath  string
	Dimensions int
	MaxTokens  int
}

// NewFromConfig builds the configured provider and wraps it with rate limiting, retries
// and the query cache. Local providers (mock, onnx) skip rate limiting and retries.
func NewFromConfig(cfg *config.EmbeddingConfig, logger *zap.Logger) (Embedder, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Dimensions <= 0 {
		return nil, fmt.Errorf("%w: embedding dimensions must be positive, got %d", models.ErrInvalidConfig, cfg.Dimensions)
	}
	timeout := time.Duration(cfg.TimeoutSecs) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	var base Embedder
	remote := false
	switch cfg.Provider {
	case "gemini":
		g, err := NewGeminiEmbedder(GeminiConfig{
			APIKey:     cfg.APIKey,
			BaseURL:    cfg.BaseURL,
			Model:      cfg.Model,
			Dimensions: cfg.Dimensions,
			Timeout:    timeout,
		})
		if err != nil {
			return nil, fmt.Errorf("%w: %w (set %s)", models.ErrInvalidConfig, err, cfg.APIKeyEnv)
		}
		base, remote = g, true
	case "openai":
		o, err := NewOpenAIEmbedder(OpenAIConfig{
			APIKey:     cfg.APIKey,
			BaseURL:    cfg.BaseURL,
			Model:      cfg.Model,
			Dimensions: cfg.Dimensions,
			Timeout:    timeout,
		})
		if err != nil {
			return nil, fmt.Errorf("%w: %w (set %s)", models.ErrInvalidConfig, err, cfg.APIKeyEnv)
		}
		base, remote = o, true
	case "onnx":
		o, err := NewONNXEmbedder(ONNXConfig{
			ModelPath:  cfg.ModelPath,
			Dimensions: cfg.Dimensions,
			MaxTokens:  cfg.MaxTokens,
		})
		if err != nil {
			return nil, err
		}
		base = o
	case "mock":
		base = NewMockEmbedder(cfg.Dimensions)
	default:
		return nil, fmt.Errorf("%w: unknown embedding provider %q", models.ErrInvalidConfig, cfg.Provider)
	}

	e := base
	if remote {
		e = NewRateLimitedEmbedder(e, RateLimitConfig{
			RequestsPerSecond: cfg.RequestsPerSecond,
			BurstSize:         cfg.Burst,
		})
		e = NewRetryEmbedder(e, &RetryConfig{
			MaxRetries: cfg.MaxRetries,
			RetryDelay: time.Second,
			MaxDelay:   30 * time.Second,
			Timeout:    timeout,
		}, logger)
	}
	if cfg.CacheSize > 0 {
		e = NewCachedEmbedder(e, cfg.CacheSize)
	}
	logger.Debug("embedding provider ready",
		zap.String("provider", cfg.Provider), zap.String("model", cfg.Model), zap.Int("dimensions", cfg.Dimensions))
	return e, nil
}
