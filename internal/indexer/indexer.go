package indexer

import (
	"context"
	"errors"
	"fmt"

	"github.com/hyperjump/shoroku/internal/models"
	"github.com/hyperjump/shoroku/internal/storage"
	"go.uber.org/zap"
)

// Indexer ties document storage to the ingestion pipeline for the CLI and HTTP surfaces.
type Indexer struct {
	storage  storage.Storage
	pipeline *Pipeline
	logger   *zap.Logger
}

// IndexerOption configures an Indexer.
type IndexerOption func(*Indexer)

// WithIndexerLogger sets a logger for debug output.
func WithIndexerLogger(l *zap.Logger) IndexerOption {
	return func(idx *Indexer) { idx.logger = l }
}

// errNoPipeline is returned by embedding operations of an indexer built without a pipeline.
var errNoPipeline = errors.New("indexer has no ingestion pipeline configured")

// NewIndexer creates an indexer over store that ingests through pipeline. pipeline may be
// nil for callers that only store or delete documents.
func NewIndexer(store storage.Storage, pipeline *Pipeline, opts ...IndexerOption) *Indexer {
	idx := &Indexer{storage: store, pipeline: pipeline, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(idx)
	}
	return idx
}

// AddDocuments stores docs atomically and, when embed is set, ingests them as one run.
// The returned report is nil when embed is false.
func (idx *Indexer) AddDocuments(ctx context.Context, docs []*models.Document, embed bool) (*Report, error) {
	for _, doc := range docs {
		if doc.ID == "" {
			return nil, fmt.Errorf("document id is required")
		}
	}
	if err := idx.storage.CreateDocuments(ctx, docs); err != nil {
		return nil, fmt.Errorf("failed to store documents: %w", err)
	}
	idx.logger.Debug("documents stored", zap.Int("count", len(docs)))
	if !embed {
		return nil, nil
	}
	if idx.pipeline == nil {
		return nil, errNoPipeline
	}
	return idx.pipeline.Run(ctx, docs)
}

// EmbedPending ingests up to limit stored documents that have no records yet; limit <= 0 means all.
func (idx *Indexer) EmbedPending(ctx context.Context, limit int) (*Report, error) {
	if idx.pipeline == nil {
		return nil, errNoPipeline
	}
	docs, err := idx.storage.ListDocumentsWithoutRecords(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending documents: %w", err)
	}
	idx.logger.Debug("pending documents", zap.Int("count", len(docs)))
	return idx.pipeline.Run(ctx, docs)
}

// EmbedDocuments ingests the stored documents with the given ids as one run.
func (idx *Indexer) EmbedDocuments(ctx context.Context, ids []string) (*Report, error) {
	if idx.pipeline == nil {
		return nil, errNoPipeline
	}
	docs := make([]*models.Document, 0, len(ids))
	for _, id := range ids {
		doc, err := idx.storage.GetDocument(ctx, id)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return idx.pipeline.Run(ctx, docs)
}

// DeleteDocument removes a document and its records.
func (idx *Indexer) DeleteDocument(ctx context.Context, id string) error {
	idx.logger.Debug("deleting document", zap.String("id", id))
	if err := idx.storage.DeleteDocument(ctx, id); err != nil {
		return fmt.Errorf("failed to delete document: %w", err)
	}
	return nil
}
