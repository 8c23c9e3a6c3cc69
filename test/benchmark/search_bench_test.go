package benchmark

import (
	"context"
	"fmt"
	"math/rand"
	"path/filepath"
	"strings"
	"testing"

	"github.com/hyperjump/shoroku/internal/indexer"
	"github.com/hyperjump/shoroku/internal/models"
	"github.com/hyperjump/shoroku/internal/search"
	"github.com/hyperjump/shoroku/internal/storage"
	"github.com/hyperjump/shoroku/internal/vector"
)

const dims = 256

func randomVector(r *rand.Rand) []float32 {
	v := make([]float32, dims)
	for i := range v {
		v[i] = r.Float32()
	}
	return v
}

func BenchmarkL2Distance(b *testing.B) {
	r := rand.New(rand.NewSource(1))
	a, c := randomVector(r), randomVector(r)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = vector.L2Distance(a, c)
	}
}

func BenchmarkTopK(b *testing.B) {
	r := rand.New(rand.NewSource(1))
	cands := make([]vector.Candidate, 10000)
	for i := range cands {
		cands[i] = vector.Candidate{
			Record:   &models.Record{DocumentID: fmt.Sprintf("d%d", i%500), ChunkIndex: i / 500},
			Distance: r.Float64(),
		}
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		top := vector.NewTopK(10)
		for _, c := range cands {
			top.Push(c)
		}
		_ = top.Sorted()
	}
}

func BenchmarkChunkerSplit(b *testing.B) {
	c, err := indexer.NewChunker(500, 100)
	if err != nil {
		b.Fatal(err)
	}
	text := strings.Repeat("Cardiac output was measured in forty patients. ", 200)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = c.Split(text)
	}
}

func BenchmarkEngineQuery(b *testing.B) {
	ctx := context.Background()
	store, err := storage.NewSQLiteStorage(filepath.Join(b.TempDir(), "bench.db"), dims)
	if err != nil {
		b.Fatal(err)
	}
	defer store.Close()

	r := rand.New(rand.NewSource(1))
	var recs []*models.Record
	for d := 0; d < 200; d++ {
		id := fmt.Sprintf("doc-%03d", d)
		if err := store.CreateDocument(ctx, &models.Document{ID: id, Abstract: "x"}); err != nil {
			b.Fatal(err)
		}
		for c := 0; c < 5; c++ {
			recs = append(recs, &models.Record{DocumentID: id, ChunkIndex: c, Text: "x", Embedding: randomVector(r)})
		}
	}
	if err := store.InsertBatch(ctx, recs); err != nil {
		b.Fatal(err)
	}
	engine := search.NewEngine(store, nil)
	query := randomVector(r)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := engine.Query(ctx, query, 3); err != nil {
			b.Fatal(err)
		}
	}
}
