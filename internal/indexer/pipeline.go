package indexer

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hyperjump/shoroku/internal/config"
	"github.com/hyperjump/shoroku/internal/embedding"
	"github.com/hyperjump/shoroku/internal/models"
	"github.com/hyperjump/shoroku/internal/vector"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// State is a step of an ingestion run.
type State string

const (
	StateCollecting  State = "collecting"
	StateSplitting   State = "splitting"
	StateEmbedding   State = "embedding"
	StateAssociating State = "associating"
	StatePersisting  State = "persisting"
	StateDone        State = "done"
	StateFailed      State = "failed"
)

// RecordWriter is the part of the store the pipeline writes through.
type RecordWriter interface {
	InsertBatch(ctx context.Context, records []*models.Record) error
	Dimensions() int
}

// Report summarizes one run.
type Report struct {
	RunID     string         `json:"run_id"`
	State     State          `json:"state"`
	Documents int            `json:"documents"`
	Chunks    map[string]int `json:"chunks"`
	Records   int            `json:"records"`
	Batches   int            `json:"batches"`
	Duration  time.Duration  `json:"duration"`
}

// Pipeline splits documents, embeds the passages in bounded concurrent sub-batches and
// persists every record of a run in one atomic batch.
type Pipeline struct {
	store      RecordWriter
	embedder   embedding.Embedder
	chunker    *Chunker
	batchSize  int
	workers    int
	dimensions int
	logger     *zap.Logger
	observe    func(runID string, s State)
}

// PipelineOption configures a Pipeline.
type PipelineOption func(*Pipeline)

// WithLogger sets a logger for stage progress.
func WithLogger(l *zap.Logger) PipelineOption {
	return func(p *Pipeline) { p.logger = l }
}

// WithStateObserver registers fn to be called on every state transition.
func WithStateObserver(fn func(runID string, s State)) PipelineOption {
	return func(p *Pipeline) { p.observe = fn }
}

// NewPipeline validates cfg and the store's embedding size before any I/O.
func NewPipeline(store RecordWriter, embedder embedding.Embedder, cfg *config.IngestConfig, opts ...PipelineOption) (*Pipeline, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	chunker, err := NewChunker(cfg.ChunkSize, cfg.Overlap())
	if err != nil {
		return nil, err
	}
	dims := store.Dimensions()
	if dims <= 0 {
		return nil, fmt.Errorf("%w: missing embedding dimension", models.ErrInvalidConfig)
	}
	if d := embedder.Dimensions(); d > 0 && d != dims {
		return nil, fmt.Errorf("%w: provider produces %d dimensions, store holds %d", models.ErrInvalidConfig, d, dims)
	}
	p := &Pipeline{
		store:      store,
		embedder:   embedder,
		chunker:    chunker,
		batchSize:  cfg.BatchSize,
		workers:    cfg.Workers,
		dimensions: dims,
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Chunker returns the splitter the pipeline uses.
func (p *Pipeline) Chunker() *Chunker { return p.chunker }

// Run ingests docs as one batch. Nothing is written unless every passage was embedded
// and validated; cancelling ctx before the persisting stage leaves the store untouched.
func (p *Pipeline) Run(ctx context.Context, docs []*models.Document) (*Report, error) {
	started := time.Now()
	report := &Report{
		RunID:     uuid.NewString(),
		Documents: len(docs),
		Chunks:    make(map[string]int, len(docs)),
	}
	log := p.logger.With(zap.String("run_id", report.RunID))

	fail := func(err error) (*Report, error) {
		p.transition(report, StateFailed)
		report.Duration = time.Since(started)
		log.Warn("ingestion failed", zap.Error(err))
		return report, err
	}

	p.transition(report, StateCollecting)
	if len(docs) == 0 {
		p.transition(report, StateDone)
		report.Duration = time.Since(started)
		return report, nil
	}

	p.transition(report, StateSplitting)
	var chunks []*models.Chunk
	for _, doc := range docs {
		if err := ctx.Err(); err != nil {
			return fail(&StageError{Stage: StateSplitting, Err: err})
		}
		if _, ok := report.Chunks[doc.ID]; ok {
			return fail(&StageError{Stage: StateSplitting, DocumentIDs: []string{doc.ID},
				Err: fmt.Errorf("%w: %s appears twice in run", models.ErrDuplicateDocument, doc.ID)})
		}
		docChunks := p.chunker.Chunk(doc.ID, doc.Abstract)
		report.Chunks[doc.ID] = len(docChunks)
		chunks = append(chunks, docChunks...)
	}
	log.Debug("documents split", zap.Int("documents", len(docs)), zap.Int("chunks", len(chunks)))
	if len(chunks) == 0 {
		p.transition(report, StateDone)
		report.Duration = time.Since(started)
		return report, nil
	}

	p.transition(report, StateEmbedding)
	batches := partition(chunks, p.batchSize)
	report.Batches = len(batches)
	embedded := make([][]*models.Record, len(batches))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.workers)
	for i, batch := range batches {
		i, batch := i, batch
		g.Go(func() error {
			records, err := p.embedBatch(gctx, batch)
			if err != nil {
				return err
			}
			embedded[i] = records
			log.Debug("sub-batch embedded", zap.Int("batch", i), zap.Int("chunks", len(batch)))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return fail(err)
	}

	p.transition(report, StateAssociating)
	records := make([]*models.Record, 0, len(chunks))
	for _, batch := range embedded {
		records = append(records, batch...)
	}
	if err := ctx.Err(); err != nil {
		return fail(&StageError{Stage: StateAssociating, DocumentIDs: documentIDs(chunks), Err: err})
	}

	p.transition(report, StatePersisting)
	if err := p.store.InsertBatch(ctx, records); err != nil {
		return fail(&StageError{Stage: StatePersisting, DocumentIDs: documentIDs(chunks), Err: err})
	}

	report.Records = len(records)
	p.transition(report, StateDone)
	report.Duration = time.Since(started)
	log.Info("ingestion complete",
		zap.Int("documents", report.Documents),
		zap.Int("records", report.Records),
		zap.Int("batches", report.Batches),
		zap.Duration("duration", report.Duration))
	return report, nil
}

// embedBatch embeds one sub-batch and pairs each vector with the chunk at the same
// position in that sub-batch.
func (p *Pipeline) embedBatch(ctx context.Context, batch []*models.Chunk) ([]*models.Record, error) {
	texts := make([]string, len(batch))
	for i, c := range batch {
		texts[i] = c.Text
	}
	vectors, err := p.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return nil, &StageError{Stage: StateEmbedding, DocumentIDs: documentIDs(batch), Err: err}
	}
	if len(vectors) != len(batch) {
		return nil, &StageError{Stage: StateEmbedding, DocumentIDs: documentIDs(batch),
			Err: fmt.Errorf("%w: got %d, want %d", models.ErrCountMismatch, len(vectors), len(batch))}
	}
	records := make([]*models.Record, len(batch))
	for i, c := range batch {
		if len(vectors[i]) != p.dimensions {
			return nil, &StageError{Stage: StateEmbedding, DocumentIDs: []string{c.DocumentID},
				Err: fmt.Errorf("%w: chunk (%s, %d) has %d components, want %d",
					models.ErrDimensionMismatch, c.DocumentID, c.ChunkIndex, len(vectors[i]), p.dimensions)}
		}
		if j := vector.NonFinite(vectors[i]); j >= 0 {
			return nil, &StageError{Stage: StateEmbedding, DocumentIDs: []string{c.DocumentID},
				Err: fmt.Errorf("%w: chunk (%s, %d) component %d is %v",
					models.ErrNonFiniteEmbedding, c.DocumentID, c.ChunkIndex, j, vectors[i][j])}
		}
		records[i] = models.NewRecord(c, vectors[i])
	}
	return records, nil
}

func (p *Pipeline) transition(r *Report, s State) {
	r.State = s
	p.logger.Debug("ingestion state", zap.String("run_id", r.RunID), zap.String("state", string(s)))
	if p.observe != nil {
		p.observe(r.RunID, s)
	}
}

func partition(chunks []*models.Chunk, size int) [][]*models.Chunk {
	batches := make([][]*models.Chunk, 0, (len(chunks)+size-1)/size)
	for start := 0; start < len(chunks); start += size {
		end := start + size
		if end > len(chunks) {
			end = len(chunks)
		}
		batches = append(batches, chunks[start:end])
	}
	return batches
}
