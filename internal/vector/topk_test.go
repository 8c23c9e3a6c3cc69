package vector

import (
	"math"
	"math/rand"
	"testing"

	"github.com/hyperjump/shoroku/internal/models"
)

func cand(doc string, idx int, dist float64) Candidate {
	return Candidate{Record: &models.Record{DocumentID: doc, ChunkIndex: idx}, Distance: dist}
}

func TestTopK_keepsBest(t *testing.T) {
	top := NewTopK(2)
	for _, c := range []Candidate{cand("a", 0, 3), cand("b", 0, 1), cand("c", 0, 2), cand("d", 0, 5)} {
		top.Push(c)
	}
	got := top.Sorted()
	if len(got) != 2 {
		t.Fatalf("len = %d", len(got))
	}
	if got[0].Record.DocumentID != "b" || got[1].Record.DocumentID != "c" {
		t.Errorf("got %s, %s", got[0].Record.DocumentID, got[1].Record.DocumentID)
	}
}

func TestTopK_tieBreak(t *testing.T) {
	top := NewTopK(3)
	for _, c := range []Candidate{cand("b", 0, 1), cand("a", 2, 1), cand("a", 1, 1), cand("a", 0, 1)} {
		top.Push(c)
	}
	got := top.Sorted()
	want := []models.Key{{DocumentID: "a", ChunkIndex: 0}, {DocumentID: "a", ChunkIndex: 1}, {DocumentID: "a", ChunkIndex: 2}}
	for i := range want {
		if got[i].Record.Key() != want[i] {
			t.Errorf("rank %d = %+v, want %+v", i, got[i].Record.Key(), want[i])
		}
	}
}

func TestTopK_fewerThanK(t *testing.T) {
	top := NewTopK(10)
	top.Push(cand("a", 0, 1))
	if top.Len() != 1 || len(top.Sorted()) != 1 {
		t.Errorf("expected 1 candidate, got %d", top.Len())
	}
}

func TestTopK_matchesFullSort(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	all := make([]Candidate, 500)
	for i := range all {
		// Few distinct distances so ties are common.
		all[i] = cand(string(rune('a'+rng.Intn(5))), rng.Intn(50), float64(rng.Intn(10)))
	}
	top := NewTopK(25)
	for _, c := range all {
		top.Push(c)
	}
	got := top.Sorted()
	for i := 1; i < len(got); i++ {
		if Before(got[i], got[i-1]) {
			t.Fatalf("result %d ranks ahead of %d", i, i-1)
		}
	}
	worst := got[len(got)-1]
	better := 0
	for _, c := range all {
		if Before(c, worst) {
			better++
		}
	}
	if better > 24 {
		t.Errorf("%d candidates rank ahead of the last kept one", better)
	}
}

func TestTopK_nanRanksLast(t *testing.T) {
	nan := math.NaN()
	if Before(cand("a", 0, nan), cand("b", 0, 5)) {
		t.Error("NaN ranked ahead of a number")
	}
	if !Before(cand("b", 0, 5), cand("a", 0, nan)) {
		t.Error("number did not rank ahead of NaN")
	}
	if !Before(cand("a", 0, nan), cand("a", 1, nan)) {
		t.Error("NaN ties not broken by key")
	}

	top := NewTopK(1)
	top.Push(cand("a", 0, nan))
	top.Push(cand("a", 1, 0))
	got := top.Sorted()
	if got[0].Record.ChunkIndex != 1 || got[0].Distance != 0 {
		t.Errorf("top = %+v at %v, want (a, 1) at 0", got[0].Record.Key(), got[0].Distance)
	}

	top = NewTopK(3)
	for _, c := range []Candidate{cand("c", 0, 2), cand("a", 0, nan), cand("b", 0, 1)} {
		top.Push(c)
	}
	got = top.Sorted()
	if got[0].Record.DocumentID != "b" || got[1].Record.DocumentID != "c" || !math.IsNaN(got[2].Distance) {
		t.Errorf("unexpected order %s, %s, %s", got[0].Record.DocumentID, got[1].Record.DocumentID, got[2].Record.DocumentID)
	}
}
