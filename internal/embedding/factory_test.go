package embedding

import (
	"context"
	"errors"
	"testing"

	"github.com/hyperjump/shoroku/internal/config"
	"github.com/hyperjump/shoroku/internal/models"
)

func TestNewFromConfig(t *testing.T) {
	t.Run("mock", func(t *testing.T) {
		cfg := config.Default().Embedding
		cfg.Provider = "mock"
		e, err := NewFromConfig(&cfg, nil)
		if err != nil {
			t.Fatal(err)
		}
		defer e.Close()
		if e.Dimensions() != 256 {
			t.Errorf("Dimensions = %d", e.Dimensions())
		}
		if _, ok := e.(*CachedEmbedder); !ok {
			t.Errorf("expected cached embedder, got %T", e)
		}
		v, err := e.Embed(context.Background(), "x")
		if err != nil || len(v) != 256 {
			t.Errorf("Embed: %v, len %d", err, len(v))
		}
	})
	t.Run("gemini_wrapped", func(t *testing.T) {
		cfg := config.Default().Embedding
		cfg.APIKey = "k"
		cfg.CacheSize = -1
		e, err := NewFromConfig(&cfg, nil)
		if err != nil {
			t.Fatal(err)
		}
		if _, ok := e.(*RetryEmbedder); !ok {
			t.Errorf("expected retry wrapper, got %T", e)
		}
	})
	t.Run("gemini_without_key", func(t *testing.T) {
		cfg := config.Default().Embedding
		cfg.APIKey = ""
		if _, err := NewFromConfig(&cfg, nil); !errors.Is(err, models.ErrInvalidConfig) {
			t.Errorf("err = %v, want ErrInvalidConfig", err)
		}
	})
	t.Run("unknown", func(t *testing.T) {
		cfg := config.Default().Embedding
		cfg.Provider = "word2vec"
		if _, err := NewFromConfig(&cfg, nil); !errors.Is(err, models.ErrInvalidConfig) {
			t.Errorf("err = %v, want ErrInvalidConfig", err)
		}
	})
}

func TestMockEmbedder_deterministic(t *testing.T) {
	m := NewMockEmbedder(8)
	ctx := context.Background()
	a, _ := m.Embed(ctx, "same")
	batch, _ := m.EmbedBatch(ctx, []string{"other", "same"})
	for i := range a {
		if a[i] != batch[1][i] {
			t.Fatalf("component %d differs: %v vs %v", i, a[i], batch[1][i])
		}
	}
	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	if _, err := m.EmbedBatch(cancelled, []string{"x"}); err == nil {
		t.Error("expected error on cancelled context")
	}
}
