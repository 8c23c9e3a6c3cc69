package vector

import (
	"container/heap"
	"math"
	"sort"

	"github.com/hyperjump/shoroku/internal/models"
)

// Candidate is a scored record.
type Candidate struct {
	Record   *models.Record
	Distance float64
}

// Before reports whether a ranks ahead of b: smaller distance first, then
// document_id, then chunk_index. NaN distances rank after every number.
func Before(a, b Candidate) bool {
	aNaN, bNaN := math.IsNaN(a.Distance), math.IsNaN(b.Distance)
	if aNaN != bNaN {
		return bNaN
	}
	if !aNaN && a.Distance != b.Distance {
		return a.Distance < b.Distance
	}
	if a.Record.DocumentID != b.Record.DocumentID {
		return a.Record.DocumentID < b.Record.DocumentID
	}
	return a.Record.ChunkIndex < b.Record.ChunkIndex
}

// TopK keeps the best k candidates seen so far. The heap root is the worst kept candidate.
type TopK struct {
	k     int
	items candidateHeap
}

// NewTopK returns a collector for k candidates. k must be positive.
func NewTopK(k int) *TopK {
	size := k
	if size > 1024 {
		size = 1024
	}
	return &TopK{k: k, items: make(candidateHeap, 0, size)}
}

// Push offers a candidate to the collector.
func (t *TopK) Push(c Candidate) {
	if len(t.items) < t.k {
		heap.Push(&t.items, c)
		return
	}
	if Before(c, t.items[0]) {
		t.items[0] = c
		heap.Fix(&t.items, 0)
	}
}

// Len returns the number of kept candidates.
func (t *TopK) Len() int { return len(t.items) }

// Sorted returns the kept candidates best first.
func (t *TopK) Sorted() []Candidate {
	out := make([]Candidate, len(t.items))
	copy(out, t.items)
	sort.Slice(out, func(i, j int) bool { return Before(out[i], out[j]) })
	return out
}

type candidateHeap []Candidate

func (h candidateHeap) Len() int           { return len(h) }
func (h candidateHeap) Less(i, j int) bool { return Before(h[j], h[i]) }
func (h candidateHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }

func (h *candidateHeap) Push(x any) { *h = append(*h, x.(Candidate)) }

func (h *candidateHeap) Pop() any {
	old := *h
	n := len(old)
	c := old[n-1]
	*h = old[:n-1]
	return c
}
