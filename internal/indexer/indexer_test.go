package indexer

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hyperjump/shoroku/internal/embedding"
	"github.com/hyperjump/shoroku/internal/models"
	"github.com/hyperjump/shoroku/internal/storage"
)

func testIndexer(t *testing.T) (*Indexer, *storage.SQLiteStorage) {
	t.Helper()
	store, err := storage.NewSQLiteStorage(filepath.Join(t.TempDir(), "db.sqlite"), 8)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	p, err := NewPipeline(store, embedding.NewMockEmbedder(8), ingestConfig(16, 4, 3, 2))
	require.NoError(t, err)
	return NewIndexer(store, p), store
}

func TestIndexer_AddDocumentsAndEmbed(t *testing.T) {
	idx, store := testIndexer(t)
	ctx := context.Background()

	docs := []*models.Document{
		{ID: "p1", Title: "Heart", Abstract: "Cardiac output was measured in forty patients after surgery."},
		{ID: "p2", Title: "Lung", Abstract: "Spirometry results improved."},
	}
	report, err := idx.AddDocuments(ctx, docs, true)
	require.NoError(t, err)
	assert.Equal(t, StateDone, report.State)

	n, err := store.CountRecords(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, report.Records, n)

	records, err := store.GetRecordsByDocumentID(ctx, "p1")
	require.NoError(t, err)
	for i, r := range records {
		assert.Equal(t, i, r.ChunkIndex)
		assert.Len(t, r.Embedding, 8)
	}

	_, err = idx.EmbedDocuments(ctx, []string{"p1"})
	assert.ErrorIs(t, err, models.ErrDuplicateChunk, "re-ingesting is a new batch and collides")
	after, _ := store.CountRecords(ctx)
	assert.Equal(t, n, after, "rejected batch leaves no residue")
}

func TestIndexer_EmbedPending(t *testing.T) {
	idx, store := testIndexer(t)
	ctx := context.Background()

	_, err := idx.AddDocuments(ctx, []*models.Document{
		{ID: "a", Abstract: "first abstract text"},
		{ID: "b", Abstract: "second abstract text"},
	}, false)
	require.NoError(t, err)
	n, _ := store.CountRecords(ctx)
	assert.Zero(t, n)

	report, err := idx.EmbedPending(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Documents)

	report, err = idx.EmbedPending(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Documents)
	assert.Contains(t, report.Chunks, "b")

	report, err = idx.EmbedPending(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, 0, report.Documents)
}

func TestIndexer_EmbedDocumentsUnknown(t *testing.T) {
	idx, _ := testIndexer(t)
	_, err := idx.EmbedDocuments(context.Background(), []string{"missing"})
	assert.ErrorIs(t, err, models.ErrDocumentNotFound)
}

func TestIndexer_DeleteDocument(t *testing.T) {
	idx, store := testIndexer(t)
	ctx := context.Background()
	_, err := idx.AddDocuments(ctx, []*models.Document{{ID: "x", Abstract: "some abstract"}}, true)
	require.NoError(t, err)

	require.NoError(t, idx.DeleteDocument(ctx, "x"))
	n, _ := store.CountRecords(ctx)
	assert.Zero(t, n)
	assert.ErrorIs(t, idx.DeleteDocument(ctx, "x"), models.ErrDocumentNotFound)
}

func TestIndexer_AddDocumentsRequiresID(t *testing.T) {
	idx, _ := testIndexer(t)
	_, err := idx.AddDocuments(context.Background(), []*models.Document{{Abstract: "x"}}, false)
	assert.Error(t, err)
}

func TestIndexer_WithoutPipeline(t *testing.T) {
	store, err := storage.NewSQLiteStorage(filepath.Join(t.TempDir(), "db.sqlite"), 8)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	idx := NewIndexer(store, nil)
	ctx := context.Background()

	_, err = idx.AddDocuments(ctx, []*models.Document{{ID: "a", Abstract: "text"}}, false)
	require.NoError(t, err)
	_, err = idx.EmbedPending(ctx, 0)
	assert.ErrorIs(t, err, errNoPipeline)
	_, err = idx.EmbedDocuments(ctx, []string{"a"})
	assert.ErrorIs(t, err, errNoPipeline)
}
