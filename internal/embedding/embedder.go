// Package embedding turns text into fixed-length vectors through remote or local models.
package embedding

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/hyperjump/shoroku/internal/models"
)

// Embedder produces vector embeddings for text. Embed is used for queries and
// EmbedBatch for stored passages; providers with task-specific modes use the
// matching mode for each. EmbedBatch returns one vector per input in input order.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimensions() int
	Close() error
}

// ProviderError is a non-200 response from a remote embedding API.
type ProviderError struct {
	Provider   string
	StatusCode int
	Body       string
	RetryAfter time.Duration
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s: API returned status %d: %s", e.Provider, e.StatusCode, e.Body)
}

// Unwrap reports rate limiting and server errors as models.ErrProviderUnavailable.
func (e *ProviderError) Unwrap() error {
	if e.Temporary() {
		return models.ErrProviderUnavailable
	}
	return nil
}

// Temporary reports whether the status is worth retrying.
func (e *ProviderError) Temporary() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

func newProviderError(provider string, resp *http.Response, body []byte) *ProviderError {
	pe := &ProviderError{Provider: provider, StatusCode: resp.StatusCode, Body: truncateBody(body)}
	if s := resp.Header.Get("Retry-After"); s != "" {
		if secs, err := strconv.Atoi(s); err == nil && secs > 0 {
			pe.RetryAfter = time.Duration(secs) * time.Second
		}
	}
	return pe
}

// transportError marks a failed round trip as transient unless the caller gave up.
func transportError(ctx context.Context, provider string, err error) error {
	if ctx.Err() != nil {
		return fmt.Errorf("%s: send request: %w", provider, err)
	}
	return fmt.Errorf("%s: send request: %w: %w", provider, models.ErrProviderUnavailable, err)
}

func truncateBody(b []byte) string {
	const max = 512
	if len(b) > max {
		return string(b[:max]) + "..."
	}
	return string(b)
}

// IsRetriable reports whether err is a transient provider failure.
func IsRetriable(err error) bool {
	return errors.Is(err, models.ErrProviderUnavailable)
}
