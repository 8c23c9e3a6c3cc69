// Package models defines core data structures for documents, chunks, stored records and queries.
package models

import (
	"strings"
	"time"
)

// Document is a literature record whose abstract is split and embedded.
type Document struct {
	ID              string     `json:"id" db:"id"`
	Identifier      string     `json:"identifier,omitempty" db:"identifier"`
	Title           string     `json:"title" db:"title"`
	Abstract        string     `json:"abstract" db:"abstract"`
	Journal         string     `json:"journal,omitempty" db:"journal"`
	Language        string     `json:"language,omitempty" db:"language"`
	PublicationType string     `json:"publication_type,omitempty" db:"publication_type"`
	Authors         []string   `json:"authors,omitempty" db:"authors"`
	MeshTerms       []string   `json:"mesh_terms,omitempty" db:"mesh_terms"`
	Keywords        []string   `json:"keywords,omitempty" db:"keywords"`
	PublishedAt     *time.Time `json:"published_at,omitempty" db:"published_at"`
	CreatedAt       time.Time  `json:"created_at" db:"created_at"`
}

// HasAbstract reports whether the document carries any non-blank abstract text.
func (d *Document) HasAbstract() bool {
	return strings.TrimSpace(d.Abstract) != ""
}

// Chunk is one overlapping window of a document's abstract.
type Chunk struct {
	DocumentID  string `json:"document_id"`
	ChunkIndex  int    `json:"chunk_index"`
	Text        string `json:"text"`
	StartOffset int    `json:"start_offset"`
}

// Record is a persisted chunk together with its embedding.
type Record struct {
	ID          int64     `json:"id" db:"id"`
	DocumentID  string    `json:"document_id" db:"document_id"`
	ChunkIndex  int       `json:"chunk_index" db:"chunk_index"`
	Text        string    `json:"text" db:"text"`
	StartOffset int       `json:"start_offset" db:"start_offset"`
	Embedding   []float32 `json:"-" db:"embedding"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}

// NewRecord builds an unsaved record from a chunk and its embedding.
func NewRecord(c *Chunk, embedding []float32) *Record {
	return &Record{
		DocumentID:  c.DocumentID,
		ChunkIndex:  c.ChunkIndex,
		Text:        c.Text,
		StartOffset: c.StartOffset,
		Embedding:   embedding,
	}
}

// Key identifies a record by its natural key.
type Key struct {
	DocumentID string `json:"document_id"`
	ChunkIndex int    `json:"chunk_index"`
}

// Key returns the record's (document_id, chunk_index) pair.
func (r *Record) Key() Key {
	return Key{DocumentID: r.DocumentID, ChunkIndex: r.ChunkIndex}
}
