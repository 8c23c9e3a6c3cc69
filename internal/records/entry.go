package records

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/hyperjump/shoroku/internal/models"
)

const dateLayout = "2006-01-02"

// paragraphSeparator joins the sections of a structured abstract.
const paragraphSeparator = "\n\n"

// entry is one record as it appears in a source file.
type entry struct {
	ID              string   `json:"id"`
	Identifier      string   `json:"identifier"`
	Title           string   `json:"title"`
	Abstract        abstract `json:"abstract"`
	Journal         string   `json:"journal"`
	Language        string   `json:"language"`
	PublicationType string   `json:"publication_type"`
	Authors         []string `json:"authors"`
	MeshTerms       []string `json:"mesh_terms"`
	Keywords        []string `json:"keywords"`
	Date            string   `json:"date"`
}

// abstract accepts either a string or a list of paragraphs.
type abstract []string

func (a *abstract) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*a = nil
		return nil
	}
	if len(data) > 0 && data[0] == '[' {
		var parts []string
		if err := json.Unmarshal(data, &parts); err != nil {
			return fmt.Errorf("abstract: %w", err)
		}
		*a = parts
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("abstract: %w", err)
	}
	*a = abstract{s}
	return nil
}

func (a abstract) text() string {
	parts := make([]string, 0, len(a))
	for _, p := range a {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, paragraphSeparator)
}

func (e *entry) document() (*models.Document, error) {
	id := strings.TrimSpace(e.ID)
	if id == "" {
		id = strings.TrimSpace(e.Identifier)
	}
	if id == "" {
		return nil, fmt.Errorf("record has neither id nor identifier")
	}
	doc := &models.Document{
		ID:              id,
		Identifier:      strings.TrimSpace(e.Identifier),
		Title:           strings.TrimSpace(e.Title),
		Abstract:        e.Abstract.text(),
		Journal:         strings.TrimSpace(e.Journal),
		Language:        strings.TrimSpace(e.Language),
		PublicationType: strings.TrimSpace(e.PublicationType),
		Authors:         e.Authors,
		MeshTerms:       e.MeshTerms,
		Keywords:        e.Keywords,
	}
	if d := strings.TrimSpace(e.Date); d != "" {
		t, err := time.Parse(dateLayout, d)
		if err != nil {
			return nil, fmt.Errorf("record %s: invalid date %q: %w", id, d, err)
		}
		doc.PublishedAt = &t
	}
	return doc, nil
}

func parseJSON(content []byte) ([]*entry, error) {
	var entries []*entry
	if err := json.Unmarshal(content, &entries); err != nil {
		return nil, fmt.Errorf("decode JSON records: %w", err)
	}
	return entries, nil
}

func parseJSONLines(content []byte) ([]*entry, error) {
	var entries []*entry
	sc := bufio.NewScanner(bytes.NewReader(content))
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	line := 0
	for sc.Scan() {
		line++
		raw := bytes.TrimSpace(sc.Bytes())
		if len(raw) == 0 {
			continue
		}
		var e entry
		if err := json.Unmarshal(raw, &e); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		entries = append(entries, &e)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("scan JSON lines: %w", err)
	}
	return entries, nil
}
