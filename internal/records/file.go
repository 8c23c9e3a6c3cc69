package records

import (
	"archive/zip"
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"
)

const fileIDPrefix = "file:"

// FileDocumentID returns a stable document id for a file path. The path is made absolute
// and cleaned first, so the same file always yields the same id.
func FileDocumentID(path string) string {
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	hash := sha256.Sum256([]byte(filepath.Clean(path)))
	return fileIDPrefix + hex.EncodeToString(hash[:])
}

// fileEntry turns a whole file into one record: its text is the abstract and its
// name without extension is the title.
func fileEntry(path string, content []byte, ext string) (*entry, error) {
	var (
		text string
		err  error
	)
	switch ext {
	case ".pdf":
		text, err = extractPDF(content)
	case ".docx":
		text, err = extractDOCX(content)
	default:
		text = extractPlain(content)
	}
	if err != nil {
		return nil, err
	}
	base := filepath.Base(path)
	return &entry{
		ID:       FileDocumentID(path),
		Title:    strings.TrimSuffix(base, filepath.Ext(base)),
		Abstract: abstract{strings.TrimSpace(text)},
	}, nil
}

// extractPlain returns content as a string, replacing invalid UTF-8 sequences.
func extractPlain(content []byte) string {
	if !utf8.Valid(content) {
		return strings.ToValidUTF8(string(content), "\ufffd")
	}
	return string(content)
}

func extractPDF(content []byte) (string, error) {
	r, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return "", fmt.Errorf("open PDF: %w", err)
	}
	pages := make([]string, 0, r.NumPage())
	for i := 1; i <= r.NumPage(); i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			return "", fmt.Errorf("extract page %d: %w", i, err)
		}
		if text = strings.TrimSpace(text); text != "" {
			pages = append(pages, text)
		}
	}
	return strings.Join(pages, paragraphSeparator), nil
}

const docxDocumentPath = "word/document.xml"

var (
	// docxParagraph matches one <w:p ...>...</w:p> element, attributes included.
	docxParagraph = regexp.MustCompile(`(?s)<w:p[ >].*?</w:p>`)
	docxText      = regexp.MustCompile(`<w:t[^>]*>([^<]*)</w:t>`)
)

// extractDOCX returns the paragraphs of word/document.xml joined by a blank line.
func extractDOCX(content []byte) (string, error) {
	zr, err := zip.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return "", fmt.Errorf("extract DOCX: not a zip: %w", err)
	}
	var body []byte
	for _, f := range zr.File {
		if f.Name != docxDocumentPath {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return "", fmt.Errorf("extract DOCX: open %s: %w", f.Name, err)
		}
		var buf bytes.Buffer
		_, err = buf.ReadFrom(rc)
		_ = rc.Close()
		if err != nil {
			return "", fmt.Errorf("extract DOCX: read %s: %w", f.Name, err)
		}
		body = buf.Bytes()
		break
	}
	if body == nil {
		return "", fmt.Errorf("extract DOCX: %s not found", docxDocumentPath)
	}

	var paragraphs []string
	for _, p := range docxParagraph.FindAll(body, -1) {
		var b strings.Builder
		for _, m := range docxText.FindAllSubmatch(p, -1) {
			b.Write(m[1])
		}
		if text := strings.TrimSpace(b.String()); text != "" {
			paragraphs = append(paragraphs, text)
		}
	}
	return strings.Join(paragraphs, paragraphSeparator), nil
}
