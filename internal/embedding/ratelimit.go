package embedding

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateLimitConfig holds the token bucket settings for provider calls.
type RateLimitConfig struct {
	// RequestsPerSecond is the sustained rate limit.
	RequestsPerSecond float64
	// BurstSize is the maximum burst size.
	BurstSize int
	// DefaultBackoff is used after a 429 response without Retry-After.
	DefaultBackoff time.Duration
}

// RateLimitedEmbedder throttles calls to the wrapped embedder with a token bucket and
// pauses every caller after the provider reports rate limiting.
type RateLimitedEmbedder struct {
	inner   Embedder
	limiter *rate.Limiter
	backoff time.Duration

	mu      sync.Mutex
	retryAt time.Time
}

// NewRateLimitedEmbedder wraps inner. A non-positive rate disables the token bucket.
func NewRateLimitedEmbedder(inner Embedder, cfg RateLimitConfig) *RateLimitedEmbedder {
	limit := rate.Limit(cfg.RequestsPerSecond)
	if cfg.RequestsPerSecond <= 0 {
		limit = rate.Inf
	}
	burst := cfg.BurstSize
	if burst <= 0 {
		burst = 1
	}
	backoff := cfg.DefaultBackoff
	if backoff <= 0 {
		backoff = 5 * time.Second
	}
	return &RateLimitedEmbedder{
		inner:   inner,
		limiter: rate.NewLimiter(limit, burst),
		backoff: backoff,
	}
}

// Wait blocks until a request may be sent, honouring any pending 429 backoff.
func (r *RateLimitedEmbedder) Wait(ctx context.Context) error {
	r.mu.Lock()
	retryAt := r.retryAt
	r.mu.Unlock()

	if d := time.Until(retryAt); d > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(d):
		}
	}
	return r.limiter.Wait(ctx)
}

func (r *RateLimitedEmbedder) observe(err error) {
	var pe *ProviderError
	if !errors.As(err, &pe) || pe.StatusCode != http.StatusTooManyRequests {
		return
	}
	wait := pe.RetryAfter
	if wait <= 0 {
		wait = r.backoff
	}
	r.mu.Lock()
	if until := time.Now().Add(wait); until.After(r.retryAt) {
		r.retryAt = until
	}
	r.mu.Unlock()
}

// Embed embeds a query once a token is available.
func (r *RateLimitedEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := r.Wait(ctx); err != nil {
		return nil, err
	}
	v, err := r.inner.Embed(ctx, text)
	r.observe(err)
	return v, err
}

// EmbedBatch embeds passages once a token is available. One batch costs one token.
func (r *RateLimitedEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if err := r.Wait(ctx); err != nil {
		return nil, err
	}
	v, err := r.inner.EmbedBatch(ctx, texts)
	r.observe(err)
	return v, err
}

// Dimensions returns the wrapped embedder's dimension.
func (r *RateLimitedEmbedder) Dimensions() int { return r.inner.Dimensions() }

// Close closes the wrapped embedder.
func (r *RateLimitedEmbedder) Close() error { return r.inner.Close() }
