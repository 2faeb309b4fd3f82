// Package export writes ranked results as CSV, JSON, XLSX or into a SQLite
// history file.
package export

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/jszwec/csvutil"
	"github.com/tealeg/xlsx/v2"

	"github.com/hazyhaar/docudata/pkg/match"
)

// Format is an export file format.
type Format string

const (
	CSV  Format = "csv"
	JSON Format = "json"
	XLSX Format = "xlsx"
)

// ErrUnknownFormat is returned for formats other than csv, json and xlsx.
var ErrUnknownFormat = errors.New("unknown export format")

// ParseFormat accepts a format name or a file extension (".csv").
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimPrefix(strings.TrimSpace(s), "."))); f {
	case CSV, JSON, XLSX:
		return f, nil
	case "":
		return JSON, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownFormat, s)
}

// ContentType is the HTTP media type of the format.
func (f Format) ContentType() string {
	switch f {
	case CSV:
		return "text/csv; charset=utf-8"
	case XLSX:
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	}
	return "application/json"
}

// Row is the flat form of a result used by the tabular formats.
type Row struct {
	Rank          int     `csv:"rank"`
	Type          string  `csv:"type"`
	Kind          string  `csv:"kind"`
	ID            string  `csv:"id"`
	Score         float64 `csv:"score"`
	Matched       string  `csv:"matched_attributes"`
	Description   string  `csv:"description"`
	CodeReference string  `csv:"code_reference"`
	Jurisdiction  string  `csv:"jurisdiction"`
}

var header = []string{"rank", "type", "kind", "id", "score", "matched_attributes", "description", "code_reference", "jurisdiction"}

// Rows flattens views, ranked from 1. Attributes render as
// "name=display" pairs joined by "; ", matched ones marked with "*".
func Rows(views []match.View) []Row {
	rows := make([]Row, len(views))
	for i, v := range views {
		attrs := make([]string, 0, len(v.MatchedAttributes))
		for _, a := range v.MatchedAttributes {
			s := a.Name + "=" + a.DisplayValue
			if a.ClauseMatched {
				s += "*"
			}
			attrs = append(attrs, s)
		}
		rows[i] = Row{
			Rank:          i + 1,
			Type:          string(v.Type),
			Kind:          string(v.Kind),
			ID:            v.ID,
			Score:         v.Score,
			Matched:       strings.Join(attrs, "; "),
			Description:   v.Description,
			CodeReference: v.CodeReference,
			Jurisdiction:  v.Jurisdiction,
		}
	}
	return rows
}

// Write encodes views to w in the given format.
func Write(w io.Writer, f Format, views []match.View) error {
	switch f {
	case CSV:
		return WriteCSV(w, views)
	case JSON:
		return WriteJSON(w, views)
	case XLSX:
		return WriteXLSX(w, views)
	}
	return fmt.Errorf("%w: %q", ErrUnknownFormat, f)
}

// WriteJSON writes the views as an indented JSON array.
func WriteJSON(w io.Writer, views []match.View) error {
	if views == nil {
		views = []match.View{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(views); err != nil {
		return fmt.Errorf("export json: %w", err)
	}
	return nil
}

// WriteCSV writes a header line followed by one line per view.
func WriteCSV(w io.Writer, views []match.View) error {
	cw := csv.NewWriter(w)
	enc := csvutil.NewEncoder(cw)
	enc.AutoHeader = false
	if err := enc.EncodeHeader(Row{}); err != nil {
		return fmt.Errorf("export csv header: %w", err)
	}
	for _, r := range Rows(views) {
		if err := enc.Encode(r); err != nil {
			return fmt.Errorf("export csv row %d: %w", r.Rank, err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("export csv: %w", err)
	}
	return nil
}

// WriteXLSX writes a single "results" sheet.
func WriteXLSX(w io.Writer, views []match.View) error {
	f := xlsx.NewFile()
	sheet, err := f.AddSheet("results")
	if err != nil {
		return fmt.Errorf("export xlsx: %w", err)
	}
	row := sheet.AddRow()
	for _, h := range header {
		row.AddCell().SetString(h)
	}
	for _, r := range Rows(views) {
		row := sheet.AddRow()
		row.AddCell().SetInt(r.Rank)
		for _, s := range []string{r.Type, r.Kind, r.ID} {
			row.AddCell().SetString(s)
		}
		row.AddCell().SetFloat(r.Score)
		for _, s := range []string{r.Matched, r.Description, r.CodeReference, r.Jurisdiction} {
			row.AddCell().SetString(s)
		}
	}
	if err := f.Write(w); err != nil {
		return fmt.Errorf("export xlsx: %w", err)
	}
	return nil
}
