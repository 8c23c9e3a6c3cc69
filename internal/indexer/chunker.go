// Package indexer splits document abstracts into overlapping windows and runs the
// split, embed, associate and persist pipeline over a batch of documents.
package indexer

import (
	"fmt"

	"github.com/hyperjump/shoroku/internal/models"
)

// Window is one slice of the source text. Start is a rune offset.
type Window struct {
	Text  string
	Start int
}

// Chunker splits text into overlapping character windows.
type Chunker struct {
	chunkSize    int
	chunkOverlap int
}

// NewChunker creates a chunker with the given size and overlap, both in characters (runes).
// Returns models.ErrInvalidConfig unless chunkSize > 0 and 0 <= chunkOverlap < chunkSize.
func NewChunker(chunkSize, chunkOverlap int) (*Chunker, error) {
	if chunkSize <= 0 {
		return nil, fmt.Errorf("%w: chunk size must be positive, got %d", models.ErrInvalidConfig, chunkSize)
	}
	if chunkOverlap < 0 || chunkOverlap >= chunkSize {
		return nil, fmt.Errorf("%w: chunk overlap must be in [0, %d), got %d", models.ErrInvalidConfig, chunkSize, chunkOverlap)
	}
	return &Chunker{
		chunkSize:    chunkSize,
		chunkOverlap: chunkOverlap,
	}, nil
}

// Size returns the window size.
func (c *Chunker) Size() int { return c.chunkSize }

// Overlap returns the number of characters shared by consecutive windows.
func (c *Chunker) Overlap() int { return c.chunkOverlap }

// Split returns the windows covering text. Each window after the first starts
// chunkSize-chunkOverlap characters after the previous one; the last window holds the
// remaining tail. Empty text yields nil.
func (c *Chunker) Split(text string) []Window {
	runes := []rune(text)
	if len(runes) == 0 {
		return nil
	}
	step := c.chunkSize - c.chunkOverlap
	windows := make([]Window, 0, len(runes)/step+1)
	for start := 0; ; start += step {
		end := start + c.chunkSize
		if end > len(runes) {
			end = len(runes)
		}
		windows = append(windows, Window{Text: string(runes[start:end]), Start: start})
		if end >= len(runes) {
			break
		}
	}
	return windows
}

// Chunk splits text and numbers the windows 0, 1, 2, ... for docID.
func (c *Chunker) Chunk(docID, text string) []*models.Chunk {
	windows := c.Split(text)
	if len(windows) == 0 {
		return nil
	}
	chunks := make([]*models.Chunk, len(windows))
	for i, w := range windows {
		chunks[i] = &models.Chunk{
			DocumentID:  docID,
			ChunkIndex:  i,
			Text:        w.Text,
			StartOffset: w.Start,
		}
	}
	return chunks
}
