// Package storage provides the SQLite implementation of the Storage interface.
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
	_ "modernc.org/sqlite"

	"github.com/hyperjump/shoroku/internal/models"
	"github.com/hyperjump/shoroku/internal/vector"
	"go.uber.org/zap"
)

const (
	// DriverCGO is the mattn/go-sqlite3 driver name.
	DriverCGO = "sqlite3"
	// DriverPure is the modernc.org/sqlite driver name.
	DriverPure = "sqlite"

	dateLayout = "2006-01-02"
)

// SQLiteStorage implements Storage using SQLite.
type SQLiteStorage struct {
	db         *sql.DB
	path       string
	driver     string
	dimensions int
	logger     *zap.Logger
}

// Option configures a SQLiteStorage.
type Option func(*SQLiteStorage)

// WithDriver selects the database/sql driver: DriverCGO (default) or DriverPure.
func WithDriver(driver string) Option {
	return func(s *SQLiteStorage) { s.driver = driver }
}

// WithLogger sets a logger for debug output.
func WithLogger(l *zap.Logger) Option {
	return func(s *SQLiteStorage) { s.logger = l }
}

// NewSQLiteStorage opens or creates a SQLite database at dbPath and initializes the schema.
// Every record inserted later must carry an embedding of exactly dimensions components.
// Parent directories are created if they do not exist; ":memory:" opens a private in-memory database.
func NewSQLiteStorage(dbPath string, dimensions int, opts ...Option) (*SQLiteStorage, error) {
	if dimensions <= 0 {
		return nil, fmt.Errorf("%w: embedding dimensions must be positive, got %d", models.ErrInvalidConfig, dimensions)
	}
	s := &SQLiteStorage{path: dbPath, driver: DriverCGO, dimensions: dimensions}
	for _, opt := range opts {
		opt(s)
	}
	if s.driver != DriverCGO && s.driver != DriverPure {
		return nil, fmt.Errorf("%w: unknown sqlite driver %q", models.ErrInvalidConfig, s.driver)
	}
	if dbPath != ":memory:" {
		if dir := filepath.Dir(dbPath); dir != "." {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return nil, fmt.Errorf("failed to create database directory: %w", err)
			}
		}
	}
	db, err := sql.Open(s.driver, dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// One connection keeps per-connection pragmas and :memory: databases consistent.
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{"PRAGMA journal_mode=WAL", "PRAGMA foreign_keys=ON", "PRAGMA busy_timeout=5000"} {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to apply %q: %w", pragma, err)
		}
	}

	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	s.db = db
	if s.logger != nil {
		s.logger.Debug("storage opened",
			zap.String("path", dbPath), zap.String("driver", s.driver), zap.Int("dimensions", dimensions))
	}
	return s, nil
}

func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS documents (
		id TEXT PRIMARY KEY,
		identifier TEXT,
		title TEXT,
		abstract TEXT NOT NULL,
		journal TEXT,
		language TEXT,
		publication_type TEXT,
		authors TEXT,
		mesh_terms TEXT,
		keywords TEXT,
		published_at TEXT,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_documents_created_at ON documents(created_at);

	CREATE TABLE IF NOT EXISTS abstracts (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		document_id TEXT NOT NULL,
		chunk_index INTEGER NOT NULL,
		text TEXT NOT NULL,
		start_offset INTEGER NOT NULL,
		embedding BLOB NOT NULL,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		UNIQUE (document_id, chunk_index),
		FOREIGN KEY (document_id) REFERENCES documents(id) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_abstracts_document_id ON abstracts(document_id);
	`
	_, err := db.Exec(schema)
	return err
}

// Path returns the database file path.
func (s *SQLiteStorage) Path() string { return s.path }

// Driver returns the database/sql driver name in use.
func (s *SQLiteStorage) Driver() string { return s.driver }

// Dimensions returns the embedding length required for stored records.
func (s *SQLiteStorage) Dimensions() int { return s.dimensions }

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func insertDocument(ctx context.Context, ex execer, doc *models.Document, now time.Time) error {
	authors, err := marshalList(doc.Authors)
	if err != nil {
		return err
	}
	mesh, err := marshalList(doc.MeshTerms)
	if err != nil {
		return err
	}
	keywords, err := marshalList(doc.Keywords)
	if err != nil {
		return err
	}
	var published sql.NullString
	if doc.PublishedAt != nil {
		published = sql.NullString{String: doc.PublishedAt.Format(dateLayout), Valid: true}
	}
	_, err = ex.ExecContext(ctx,
		`INSERT INTO documents (id, identifier, title, abstract, journal, language, publication_type,
		 authors, mesh_terms, keywords, published_at, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		doc.ID, doc.Identifier, doc.Title, doc.Abstract, doc.Journal, doc.Language, doc.PublicationType,
		authors, mesh, keywords, published, now,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: %s", models.ErrDuplicateDocument, doc.ID)
		}
		return err
	}
	return nil
}

// CreateDocument inserts a document.
func (s *SQLiteStorage) CreateDocument(ctx context.Context, doc *models.Document) error {
	now := time.Now()
	if err := insertDocument(ctx, s.db, doc, now); err != nil {
		return err
	}
	doc.CreatedAt = now
	return nil
}

// CreateDocuments inserts docs in one transaction; a duplicate id rejects all of them.
func (s *SQLiteStorage) CreateDocuments(ctx context.Context, docs []*models.Document) error {
	if len(docs) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	now := time.Now()
	for _, doc := range docs {
		if err := insertDocument(ctx, tx, doc, now); err != nil {
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	for _, doc := range docs {
		doc.CreatedAt = now
	}
	return nil
}

const documentColumns = `id, identifier, title, abstract, journal, language, publication_type,
	authors, mesh_terms, keywords, published_at, created_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanDocument(row scanner) (*models.Document, error) {
	var doc models.Document
	var identifier, title, journal, language, pubType, authors, mesh, keywords, published sql.NullString
	if err := row.Scan(&doc.ID, &identifier, &title, &doc.Abstract, &journal, &language, &pubType,
		&authors, &mesh, &keywords, &published, &doc.CreatedAt); err != nil {
		return nil, err
	}
	doc.Identifier = identifier.String
	doc.Title = title.String
	doc.Journal = journal.String
	doc.Language = language.String
	doc.PublicationType = pubType.String
	var err error
	if doc.Authors, err = unmarshalList(authors.String); err != nil {
		return nil, fmt.Errorf("failed to unmarshal authors: %w", err)
	}
	if doc.MeshTerms, err = unmarshalList(mesh.String); err != nil {
		return nil, fmt.Errorf("failed to unmarshal mesh terms: %w", err)
	}
	if doc.Keywords, err = unmarshalList(keywords.String); err != nil {
		return nil, fmt.Errorf("failed to unmarshal keywords: %w", err)
	}
	if published.Valid && published.String != "" {
		t, err := time.Parse(dateLayout, published.String)
		if err != nil {
			return nil, fmt.Errorf("failed to parse published_at: %w", err)
		}
		doc.PublishedAt = &t
	}
	return &doc, nil
}

// GetDocument returns a document by ID.
func (s *SQLiteStorage) GetDocument(ctx context.Context, id string) (*models.Document, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+documentColumns+` FROM documents WHERE id = ?`, id)
	doc, err := scanDocument(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", models.ErrDocumentNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return doc, nil
}

// DeleteDocument removes a document by ID; its records are removed by the foreign key cascade.
func (s *SQLiteStorage) DeleteDocument(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM documents WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", models.ErrDocumentNotFound, id)
	}
	return nil
}

// ListDocuments returns documents ordered by id with offset and limit.
func (s *SQLiteStorage) ListDocuments(ctx context.Context, offset, limit int) ([]*models.Document, error) {
	return s.queryDocuments(ctx,
		`SELECT `+documentColumns+` FROM documents ORDER BY id LIMIT ? OFFSET ?`, limit, offset)
}

// ListDocumentsWithoutRecords returns up to limit documents that have no records; limit <= 0 means all.
func (s *SQLiteStorage) ListDocumentsWithoutRecords(ctx context.Context, limit int) ([]*models.Document, error) {
	if limit <= 0 {
		limit = -1
	}
	return s.queryDocuments(ctx,
		`SELECT `+documentColumns+` FROM documents d
		 WHERE NOT EXISTS (SELECT 1 FROM abstracts a WHERE a.document_id = d.id)
		 ORDER BY d.id LIMIT ?`, limit)
}

func (s *SQLiteStorage) queryDocuments(ctx context.Context, query string, args ...any) ([]*models.Document, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var docs []*models.Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

// InsertBatch inserts records in a single transaction. The batch is rejected as a whole when a
// record has the wrong embedding length or a non-finite component, repeats a
// (document_id, chunk_index) pair, or references an unknown document. Once started the
// transaction ignores ctx cancellation.
func (s *SQLiteStorage) InsertBatch(ctx context.Context, records []*models.Record) error {
	if len(records) == 0 {
		return nil
	}
	seen := make(map[models.Key]struct{}, len(records))
	for _, r := range records {
		if len(r.Embedding) != s.dimensions {
			return fmt.Errorf("%w: record (%s, %d) has %d components, want %d",
				models.ErrDimensionMismatch, r.DocumentID, r.ChunkIndex, len(r.Embedding), s.dimensions)
		}
		if j := vector.NonFinite(r.Embedding); j >= 0 {
			return fmt.Errorf("%w: record (%s, %d) component %d is %v",
				models.ErrNonFiniteEmbedding, r.DocumentID, r.ChunkIndex, j, r.Embedding[j])
		}
		if _, ok := seen[r.Key()]; ok {
			return fmt.Errorf("%w: (%s, %d) appears twice in batch", models.ErrDuplicateChunk, r.DocumentID, r.ChunkIndex)
		}
		seen[r.Key()] = struct{}{}
	}

	ctx = context.WithoutCancel(ctx)
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO abstracts (document_id, chunk_index, text, start_offset, embedding, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return err
	}
	defer stmt.Close()

	now := time.Now()
	ids := make([]int64, len(records))
	for i, r := range records {
		res, err := stmt.ExecContext(ctx, r.DocumentID, r.ChunkIndex, r.Text, r.StartOffset,
			vector.EncodeEmbedding(r.Embedding), now)
		if err != nil {
			return classifyInsertError(err, r)
		}
		ids[i], _ = res.LastInsertId()
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	for i, r := range records {
		r.ID = ids[i]
		r.CreatedAt = now
	}
	if s.logger != nil {
		s.logger.Debug("storage batch inserted", zap.Int("records", len(records)))
	}
	return nil
}

func classifyInsertError(err error, r *models.Record) error {
	switch {
	case isUniqueViolation(err):
		return fmt.Errorf("%w: (%s, %d) already stored", models.ErrDuplicateChunk, r.DocumentID, r.ChunkIndex)
	case strings.Contains(err.Error(), "FOREIGN KEY constraint failed"):
		return fmt.Errorf("%w: %s", models.ErrUnknownDocument, r.DocumentID)
	default:
		return fmt.Errorf("failed to insert record (%s, %d): %w", r.DocumentID, r.ChunkIndex, err)
	}
}

func isUniqueViolation(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") || strings.Contains(msg, "PRIMARY KEY constraint failed")
}

const recordColumns = `id, document_id, chunk_index, text, start_offset, embedding, created_at`

func scanRecord(row scanner) (*models.Record, error) {
	var r models.Record
	var blob []byte
	if err := row.Scan(&r.ID, &r.DocumentID, &r.ChunkIndex, &r.Text, &r.StartOffset, &blob, &r.CreatedAt); err != nil {
		return nil, err
	}
	emb, err := vector.DecodeEmbedding(blob)
	if err != nil {
		return nil, fmt.Errorf("%w: record (%s, %d): %w", models.ErrCorruptRecord, r.DocumentID, r.ChunkIndex, err)
	}
	r.Embedding = emb
	return &r, nil
}

// ScanRecords streams every record ordered by (document_id, chunk_index).
func (s *SQLiteStorage) ScanRecords(ctx context.Context, fn func(*models.Record) error) error {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+recordColumns+` FROM abstracts ORDER BY document_id, chunk_index`)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return err
		}
		if err := fn(r); err != nil {
			return err
		}
	}
	return rows.Err()
}

// GetRecordsByDocumentID returns all records for a document ordered by chunk_index.
func (s *SQLiteStorage) GetRecordsByDocumentID(ctx context.Context, docID string) ([]*models.Record, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+recordColumns+` FROM abstracts WHERE document_id = ? ORDER BY chunk_index`, docID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []*models.Record
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

// DeleteRecordsByDocumentID removes all records for a document.
func (s *SQLiteStorage) DeleteRecordsByDocumentID(ctx context.Context, docID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM abstracts WHERE document_id = ?`, docID)
	return err
}

// CountDocuments returns the total number of documents.
func (s *SQLiteStorage) CountDocuments(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM documents`).Scan(&count)
	return count, err
}

// CountRecords returns the total number of stored records.
func (s *SQLiteStorage) CountRecords(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM abstracts`).Scan(&count)
	return count, err
}

// Close closes the database connection.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

func marshalList(items []string) (sql.NullString, error) {
	if len(items) == 0 {
		return sql.NullString{}, nil
	}
	data, err := json.Marshal(items)
	if err != nil {
		return sql.NullString{}, fmt.Errorf("failed to marshal list: %w", err)
	}
	return sql.NullString{String: string(data), Valid: true}, nil
}

func unmarshalList(s string) ([]string, error) {
	if s == "" {
		return nil, nil
	}
	var items []string
	if err := json.Unmarshal([]byte(s), &items); err != nil {
		return nil, err
	}
	return items, nil
}
