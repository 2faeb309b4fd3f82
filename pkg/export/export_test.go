package export

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/tealeg/xlsx/v2"

	"github.com/hazyhaar/docudata/pkg/catalog"
	"github.com/hazyhaar/docudata/pkg/match"
)

func sampleViews() []match.View {
	return []match.View{
		{
			Type: catalog.Wall, Kind: catalog.ComponentKind, ID: "W2", Score: 11,
			MatchedAttributes: []match.AttributeView{
				{Name: "height", StoredValue: "3 m", DisplayValue: "3 m", ClauseMatched: true},
				{Name: "material", StoredValue: "brick", DisplayValue: "brick"},
			},
			Jurisdiction: "california",
		},
		{
			Type: catalog.Wall, Kind: catalog.RequirementKind, ID: "structural.walls.external", Score: 1,
			MatchedAttributes: []match.AttributeView{},
			Description:       "Minimum thickness, for external walls",
			CodeReference:     "IBC 2021 Section 2109",
		},
	}
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in   string
		want Format
	}{
		{"csv", CSV}, {".CSV", CSV}, {"json", JSON}, {"", JSON}, {"xlsx", XLSX},
	}
	for _, tt := range tests {
		got, err := ParseFormat(tt.in)
		if err != nil || got != tt.want {
			t.Errorf("ParseFormat(%q) = %q, %v; want %q", tt.in, got, err, tt.want)
		}
	}
	if _, err := ParseFormat("pdf"); !errors.Is(err, ErrUnknownFormat) {
		t.Errorf("ParseFormat(pdf) err = %v, want ErrUnknownFormat", err)
	}
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	if err := Write(&buf, CSV, sampleViews()); err != nil {
		t.Fatalf("Write: %v", err)
	}
	records, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("records = %d, want header + 2", len(records))
	}
	if !reflect.DeepEqual(records[0], header) {
		t.Errorf("header = %q, want %q", records[0], header)
	}
	if got := records[1]; got[0] != "1" || got[3] != "W2" || got[4] != "11" || got[5] != "height=3 m*; material=brick" {
		t.Errorf("row 1 = %q", got)
	}
	if got := records[2][6]; got != "Minimum thickness, for external walls" {
		t.Errorf("description with a comma = %q", got)
	}
}

func TestWriteCSV_Empty(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteCSV(&buf, nil); err != nil {
		t.Fatalf("WriteCSV: %v", err)
	}
	if got := strings.TrimSpace(buf.String()); got != strings.Join(header, ",") {
		t.Errorf("output = %q, want header only", got)
	}
}

func TestWriteJSON(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteJSON(&buf, nil); err != nil {
		t.Fatalf("WriteJSON: %v", err)
	}
	if strings.TrimSpace(buf.String()) != "[]" {
		t.Errorf("empty output = %q, want []", buf.String())
	}

	buf.Reset()
	if err := WriteJSON(&buf, sampleViews()); err != nil {
		t.Fatalf("WriteJSON: %v", err)
	}
	var got []map[string]any
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got[0]["id"] != "W2" || got[0]["type"] != "Wall" {
		t.Errorf("first = %v", got[0])
	}
	if _, ok := got[0]["code_reference"]; ok {
		t.Error("empty code_reference should be omitted")
	}
	if got[1]["code_reference"] != "IBC 2021 Section 2109" {
		t.Errorf("second = %v", got[1])
	}
}

func TestWriteXLSX(t *testing.T) {
	var buf bytes.Buffer
	if err := Write(&buf, XLSX, sampleViews()); err != nil {
		t.Fatalf("Write: %v", err)
	}
	f, err := xlsx.OpenBinary(buf.Bytes())
	if err != nil {
		t.Fatalf("OpenBinary: %v", err)
	}
	if len(f.Sheets) != 1 || f.Sheets[0].Name != "results" {
		t.Fatalf("sheets = %d", len(f.Sheets))
	}
	rows := f.Sheets[0].Rows
	if len(rows) != 3 {
		t.Fatalf("rows = %d, want 3", len(rows))
	}
	if got := rows[0].Cells[3].Value; got != "id" {
		t.Errorf("header cell = %q", got)
	}
	if got := rows[2].Cells[3].Value; got != "structural.walls.external" {
		t.Errorf("id cell = %q", got)
	}
}

func TestHistory(t *testing.T) {
	h, err := OpenHistory(filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatalf("OpenHistory: %v", err)
	}
	defer h.Close()

	first, err := h.Save("walls", "tower.json", sampleViews())
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	second, err := h.Save("doors", "tower.json", nil)
	if err != nil {
		t.Fatalf("Save empty: %v", err)
	}

	runs, err := h.Runs()
	if err != nil {
		t.Fatalf("Runs: %v", err)
	}
	if len(runs) != 2 || runs[0].ID != second || runs[1].ID != first {
		t.Fatalf("runs = %+v, want newest first", runs)
	}
	if runs[1].Query != "walls" || runs[1].Results != 2 || runs[1].Dataset != "tower.json" {
		t.Errorf("run = %+v", runs[1])
	}

	views, err := h.Results(first)
	if err != nil {
		t.Fatalf("Results: %v", err)
	}
	if !reflect.DeepEqual(views, sampleViews()) {
		t.Errorf("views = %+v\nwant %+v", views, sampleViews())
	}

	empty, err := h.Results(second)
	if err != nil || len(empty) != 0 {
		t.Errorf("Results(empty run) = %v, %v", empty, err)
	}
}
