// Package cli formats command output for Shoroku.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/hyperjump/shoroku/internal/indexer"
	"github.com/hyperjump/shoroku/internal/models"
	"github.com/hyperjump/shoroku/pkg/utils"
)

// OutputFormat is the format for command output.
type OutputFormat string

const (
	// OutputText is human-readable text (default).
	OutputText OutputFormat = "text"
	// OutputJSON is structured JSON for machine consumption.
	OutputJSON OutputFormat = "json"
)

// ParseOutputFormat validates a --output flag value.
func ParseOutputFormat(s string) (OutputFormat, error) {
	switch OutputFormat(strings.ToLower(s)) {
	case OutputText, "":
		return OutputText, nil
	case OutputJSON:
		return OutputJSON, nil
	}
	return "", fmt.Errorf("invalid output format %q (want text or json)", s)
}

const resultSeparator = "\n---------------------------------------------\n"

// WriteSearchResults writes query results to w. In text mode each result lists its
// distance, passage, chunk index, document title and full abstract; maxText > 0 cuts
// the abstract to that many characters.
func WriteSearchResults(w io.Writer, response *models.SearchResponse, format OutputFormat, maxText int) error {
	if format == OutputJSON {
		return writeJSON(w, response)
	}
	if len(response.Results) == 0 {
		_, err := fmt.Fprintln(w, "No results.")
		return err
	}
	var b strings.Builder
	for _, n := range response.Results {
		fmt.Fprintf(&b, "distance: %.6f\n", n.Distance)
		fmt.Fprintf(&b, "chunk: %s\n", n.Record.Text)
		fmt.Fprintf(&b, "chunk index: %d\n", n.Record.ChunkIndex)
		title, abstract := "", ""
		if n.Document != nil {
			title, abstract = n.Document.Title, n.Document.Abstract
		}
		fmt.Fprintf(&b, "document title: %s\n", title)
		fmt.Fprintf(&b, "full text: %s\n", utils.Truncate(abstract, maxText))
		b.WriteString(resultSeparator)
		b.WriteByte('\n')
	}
	_, err := io.WriteString(w, b.String())
	return err
}

// WriteReport writes an ingestion run summary.
func WriteReport(w io.Writer, report *indexer.Report, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, report)
	}
	fmt.Fprintf(w, "Run %s: %s\n", report.RunID, report.State)
	fmt.Fprintf(w, "  documents: %d\n", report.Documents)
	fmt.Fprintf(w, "  records:   %d\n", report.Records)
	fmt.Fprintf(w, "  batches:   %d\n", report.Batches)
	fmt.Fprintf(w, "  duration:  %s\n", report.Duration.Round(time.Millisecond))
	ids := make([]string, 0, len(report.Chunks))
	for id := range report.Chunks {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		fmt.Fprintf(w, "  %s: %d chunks\n", id, report.Chunks[id])
	}
	return nil
}

// Status holds the counters shown by the status command.
type Status struct {
	Documents      int64  `json:"documents"`
	Records        int64  `json:"records"`
	Dimensions     int    `json:"embedding_dimensions"`
	DiskUsageBytes int64  `json:"disk_usage_bytes"`
	DatabasePath   string `json:"database_path"`
	Driver         string `json:"storage_driver"`
	Provider       string `json:"embedding_provider"`
	Model          string `json:"embedding_model"`
}

// WriteStatus writes index status.
func WriteStatus(w io.Writer, s *Status, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, s)
	}
	fmt.Fprintf(w, "Database:   %s (%s, %s)\n", s.DatabasePath, s.Driver, FormatBytes(s.DiskUsageBytes))
	fmt.Fprintf(w, "Embeddings: %s %s, %d dimensions\n", s.Provider, s.Model, s.Dimensions)
	fmt.Fprintf(w, "Documents:  %d\n", s.Documents)
	fmt.Fprintf(w, "Records:    %d\n", s.Records)
	return nil
}

// FormatBytes renders n as a human-readable size.
func FormatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
