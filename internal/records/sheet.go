package records

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"
)

// listSeparator splits multi-valued cells such as authors or keywords.
const listSeparator = ";"

// parseSheet reads records from every sheet of a workbook. The first row of each sheet
// names the columns; unknown columns are ignored.
func parseSheet(content []byte) ([]*entry, error) {
	f, err := excelize.OpenReader(bytes.NewReader(content))
	if err != nil {
		return nil, fmt.Errorf("open Excel: %w", err)
	}
	defer f.Close()

	var entries []*entry
	for _, sheet := range f.GetSheetList() {
		rows, err := f.GetRows(sheet)
		if err != nil {
			return nil, fmt.Errorf("get rows for sheet %q: %w", sheet, err)
		}
		if len(rows) < 2 {
			continue
		}
		header := make([]string, len(rows[0]))
		for i, h := range rows[0] {
			header[i] = strings.ToLower(strings.TrimSpace(h))
		}
		for _, row := range rows[1:] {
			e := rowEntry(header, row)
			if e.ID == "" && e.Identifier == "" && e.Title == "" {
				continue
			}
			entries = append(entries, e)
		}
	}
	return entries, nil
}

func rowEntry(header, row []string) *entry {
	e := &entry{}
	for i, cell := range row {
		if i >= len(header) {
			break
		}
		cell = strings.TrimSpace(cell)
		switch header[i] {
		case "id":
			e.ID = cell
		case "identifier":
			e.Identifier = cell
		case "title":
			e.Title = cell
		case "abstract":
			e.Abstract = abstract{cell}
		case "journal":
			e.Journal = cell
		case "language":
			e.Language = cell
		case "publication_type":
			e.PublicationType = cell
		case "authors":
			e.Authors = splitList(cell)
		case "mesh_terms":
			e.MeshTerms = splitList(cell)
		case "keywords":
			e.Keywords = splitList(cell)
		case "date":
			e.Date = cell
		}
	}
	return e
}

func splitList(cell string) []string {
	var out []string
	for _, item := range strings.Split(cell, listSeparator) {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
