// Package search answers exact nearest-neighbour queries over the stored passage embeddings.
package search

import (
	"context"
	"fmt"
	"time"

	"github.com/hyperjump/shoroku/internal/embedding"
	"github.com/hyperjump/shoroku/internal/models"
	"github.com/hyperjump/shoroku/internal/storage"
	"github.com/hyperjump/shoroku/internal/vector"
	"go.uber.org/zap"
)

// Engine ranks every stored record by L2 distance to a query vector.
type Engine struct {
	storage  storage.Storage
	embedder embedding.Embedder
	logger   *zap.Logger
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithLogger sets a logger for debug output.
func WithLogger(l *zap.Logger) EngineOption {
	return func(e *Engine) { e.logger = l }
}

// NewEngine creates a search engine. embedder is only needed for text queries and may be nil.
func NewEngine(storage storage.Storage, embedder embedding.Embedder, opts ...EngineOption) *Engine {
	e := &Engine{storage: storage, embedder: embedder, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Query returns at most limit records closest to vec, ordered by ascending distance with ties
// broken by (document_id, chunk_index). It scans every stored record. An empty store yields
// an empty result.
func (e *Engine) Query(ctx context.Context, vec []float32, limit int) ([]*models.Neighbor, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("query failed: %w: got %d", models.ErrInvalidLimit, limit)
	}
	if dims := e.storage.Dimensions(); len(vec) != dims {
		return nil, fmt.Errorf("query failed: %w: query has %d components, store holds %d",
			models.ErrDimensionMismatch, len(vec), dims)
	}
	if j := vector.NonFinite(vec); j >= 0 {
		return nil, fmt.Errorf("query failed: %w: query component %d is %v", models.ErrNonFiniteEmbedding, j, vec[j])
	}

	top := vector.NewTopK(limit)
	scanned := 0
	err := e.storage.ScanRecords(ctx, func(r *models.Record) error {
		d, err := vector.L2Distance(vec, r.Embedding)
		if err != nil {
			return fmt.Errorf("%w: record (%s, %d): %w", models.ErrCorruptRecord, r.DocumentID, r.ChunkIndex, err)
		}
		top.Push(vector.Candidate{Record: r, Distance: d})
		scanned++
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}

	ranked := top.Sorted()
	neighbors := make([]*models.Neighbor, len(ranked))
	for i, c := range ranked {
		neighbors[i] = &models.Neighbor{Record: c.Record, Distance: c.Distance, Rank: i + 1}
	}
	e.logger.Debug("query scanned records", zap.Int("scanned", scanned), zap.Int("returned", len(neighbors)))
	return neighbors, nil
}

// Search embeds the query text when no vector is given, runs Query and attaches each
// neighbour's source document.
func (e *Engine) Search(ctx context.Context, query *models.SearchQuery) (*models.SearchResponse, error) {
	startTime := time.Now()
	if err := query.Validate(); err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}

	vec := query.Vector
	if len(vec) == 0 {
		if e.embedder == nil {
			return nil, fmt.Errorf("query failed: no embedding provider configured for text queries")
		}
		var err error
		vec, err = e.embedder.Embed(ctx, query.Query)
		if err != nil {
			return nil, fmt.Errorf("query failed: embedding query: %w", err)
		}
	}

	neighbors, err := e.Query(ctx, vec, query.Limit)
	if err != nil {
		return nil, err
	}
	if err := e.attachDocuments(ctx, neighbors); err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}

	return &models.SearchResponse{
		Results:   neighbors,
		Total:     len(neighbors),
		QueryTime: time.Since(startTime).Milliseconds(),
		Query:     query.Query,
	}, nil
}

func (e *Engine) attachDocuments(ctx context.Context, neighbors []*models.Neighbor) error {
	docs := make(map[string]*models.Document)
	for _, n := range neighbors {
		id := n.Record.DocumentID
		doc, ok := docs[id]
		if !ok {
			var err error
			doc, err = e.storage.GetDocument(ctx, id)
			if err != nil {
				return fmt.Errorf("loading document for record (%s, %d): %w", id, n.Record.ChunkIndex, err)
			}
			docs[id] = doc
		}
		n.Document = doc
	}
	return nil
}
