package embedding

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/hyperjump/shoroku/internal/models"
	"go.uber.org/zap"
)

// RetryConfig configures retry behavior for provider calls.
type RetryConfig struct {
	MaxRetries int           // Maximum number of retry attempts (0 = no retries)
	RetryDelay time.Duration // Initial delay between retries
	MaxDelay   time.Duration // Cap for the exponential backoff
	Timeout    time.Duration // Per-attempt timeout
}

// DefaultRetryConfig returns the retry settings used when none are configured.
func DefaultRetryConfig() *RetryConfig {
	return &RetryConfig{
		MaxRetries: 3,
		RetryDelay: time.Second,
		MaxDelay:   30 * time.Second,
		Timeout:    30 * time.Second,
	}
}

// RetryEmbedder wraps an Embedder with per-attempt timeouts and retries of transient failures.
type RetryEmbedder struct {
	inner  Embedder
	config *RetryConfig
	logger *zap.Logger
}

// NewRetryEmbedder wraps inner with retry logic. A nil config uses DefaultRetryConfig.
func NewRetryEmbedder(inner Embedder, config *RetryConfig, logger *zap.Logger) *RetryEmbedder {
	if config == nil {
		config = DefaultRetryConfig()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RetryEmbedder{inner: inner, config: config, logger: logger}
}

// Embed embeds a query with retries.
func (r *RetryEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return withRetry(ctx, r, func(ctx context.Context) ([]float32, error) {
		return r.inner.Embed(ctx, text)
	})
}

// EmbedBatch embeds passages with retries. The whole batch is retried on failure.
func (r *RetryEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	return withRetry(ctx, r, func(ctx context.Context) ([][]float32, error) {
		return r.inner.EmbedBatch(ctx, texts)
	})
}

// Dimensions returns the wrapped embedder's dimension.
func (r *RetryEmbedder) Dimensions() int { return r.inner.Dimensions() }

// Close closes the wrapped embedder.
func (r *RetryEmbedder) Close() error { return r.inner.Close() }

func withRetry[T any](ctx context.Context, r *RetryEmbedder, call func(context.Context) (T, error)) (T, error) {
	var zero T
	var lastErr error

	for attempt := 0; attempt <= r.config.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := r.backoff(attempt, lastErr)
			r.logger.Debug("retrying embedding call",
				zap.Int("attempt", attempt), zap.Duration("delay", delay), zap.Error(lastErr))
			select {
			case <-ctx.Done():
				return zero, ctx.Err()
			case <-time.After(delay):
			}
		}

		attemptCtx, cancel := context.WithTimeout(ctx, r.config.Timeout)
		out, err := call(attemptCtx)
		cancel()
		if err == nil {
			return out, nil
		}
		if ctx.Err() != nil {
			return zero, ctx.Err()
		}
		if errors.Is(err, context.DeadlineExceeded) && !errors.Is(err, models.ErrProviderUnavailable) {
			err = fmt.Errorf("%w: attempt timed out after %s: %w", models.ErrProviderUnavailable, r.config.Timeout, err)
		}
		lastErr = err

		if !isRetryable(err) {
			return zero, err
		}
	}

	return zero, fmt.Errorf("max retries (%d) exceeded: %w", r.config.MaxRetries, lastErr)
}

// backoff returns the delay before the given attempt: RetryDelay * 2^(attempt-1) capped at
// MaxDelay, or the provider's Retry-After when that is longer.
func (r *RetryEmbedder) backoff(attempt int, lastErr error) time.Duration {
	delay := r.config.RetryDelay
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay > r.config.MaxDelay {
			delay = r.config.MaxDelay
			break
		}
	}
	var pe *ProviderError
	if errors.As(lastErr, &pe) && pe.RetryAfter > delay {
		delay = pe.RetryAfter
	}
	return delay
}

func isRetryable(err error) bool {
	if errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, models.ErrProviderUnavailable) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return netErr.Timeout()
	}
	return false
}
