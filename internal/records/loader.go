// Package records loads literature records from local files into documents ready for ingestion.
package records

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/hyperjump/shoroku/internal/models"
	"go.uber.org/zap"
)

// Result is the outcome of loading one or more files.
type Result struct {
	Documents []*models.Document
	// Skipped lists records dropped because they had no abstract, as "file: id/title".
	Skipped []string
}

// Merge appends other's documents and skipped entries to r.
func (r *Result) Merge(other *Result) {
	r.Documents = append(r.Documents, other.Documents...)
	r.Skipped = append(r.Skipped, other.Skipped...)
}

// Loader reads record collections (.json, .jsonl, .xlsx) and single-document files
// (.txt, .md, .rst, .pdf, .docx).
type Loader struct {
	logger *zap.Logger
}

// Option configures a Loader.
type Option func(*Loader)

// WithLogger sets a logger for debug output.
func WithLogger(l *zap.Logger) Option {
	return func(ld *Loader) { ld.logger = l }
}

// NewLoader returns a Loader.
func NewLoader(opts ...Option) *Loader {
	ld := &Loader{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(ld)
	}
	return ld
}

// Supported reports whether the loader handles files with the given extension.
func Supported(ext string) bool {
	switch strings.ToLower(ext) {
	case ".json", ".jsonl", ".xlsx", ".txt", ".md", ".rst", ".pdf", ".docx":
		return true
	}
	return false
}

// LoadPath loads a single file, or every supported file below a directory in lexical order.
func (ld *Loader) LoadPath(path string) (*Result, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}
	if !info.IsDir() {
		return ld.LoadFile(path)
	}

	var files []string
	err = filepath.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if p != path && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if Supported(filepath.Ext(p)) {
			files = append(files, p)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", path, err)
	}
	sort.Strings(files)

	result := &Result{}
	for _, f := range files {
		r, err := ld.LoadFile(f)
		if err != nil {
			return nil, err
		}
		result.Merge(r)
	}
	return result, nil
}

// LoadFile loads the records held in one file.
func (ld *Loader) LoadFile(path string) (*Result, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}
	ext := strings.ToLower(filepath.Ext(path))

	var entries []*entry
	switch ext {
	case ".json":
		entries, err = parseJSON(content)
	case ".jsonl":
		entries, err = parseJSONLines(content)
	case ".xlsx":
		entries, err = parseSheet(content)
	case ".txt", ".md", ".rst", ".pdf", ".docx":
		var e *entry
		e, err = fileEntry(path, content, ext)
		entries = []*entry{e}
	default:
		return nil, fmt.Errorf("unsupported file type %q", ext)
	}
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}

	result := &Result{}
	for i, e := range entries {
		doc, err := e.document()
		if err != nil {
			return nil, fmt.Errorf("load %s: record %d: %w", path, i+1, err)
		}
		if !doc.HasAbstract() {
			result.Skipped = append(result.Skipped, fmt.Sprintf("%s: %s/%s", filepath.Base(path), doc.Identifier, doc.Title))
			continue
		}
		result.Documents = append(result.Documents, doc)
	}
	ld.logger.Debug("records loaded",
		zap.String("path", path),
		zap.Int("documents", len(result.Documents)),
		zap.Int("skipped", len(result.Skipped)))
	return result, nil
}
