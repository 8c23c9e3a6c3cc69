// Package storage defines the persistence interface for documents and their embedded abstract chunks.
package storage

import (
	"context"

	"github.com/hyperjump/shoroku/internal/models"
)

// Storage defines document and record persistence operations.
type Storage interface {
	// Document operations
	CreateDocument(ctx context.Context, doc *models.Document) error
	CreateDocuments(ctx context.Context, docs []*models.Document) error
	GetDocument(ctx context.Context, id string) (*models.Document, error)
	DeleteDocument(ctx context.Context, id string) error
	ListDocuments(ctx context.Context, offset, limit int) ([]*models.Document, error)
	// ListDocumentsWithoutRecords returns documents that have no stored records yet.
	ListDocumentsWithoutRecords(ctx context.Context, limit int) ([]*models.Document, error)

	// Record operations
	// InsertBatch stores every record or none of them.
	InsertBatch(ctx context.Context, records []*models.Record) error
	// ScanRecords calls fn for every stored record ordered by (document_id, chunk_index).
	// Returning an error from fn stops the scan and is returned as is. fn must not call
	// back into the store.
	ScanRecords(ctx context.Context, fn func(*models.Record) error) error
	GetRecordsByDocumentID(ctx context.Context, docID string) ([]*models.Record, error)
	DeleteRecordsByDocumentID(ctx context.Context, docID string) error

	// Stats
	CountDocuments(ctx context.Context) (int64, error)
	CountRecords(ctx context.Context) (int64, error)

	// Dimensions is the embedding length every stored record must have.
	Dimensions() int
	Close() error
}
