package compliance

import (
	"reflect"
	"strings"
	"testing"

	"github.com/hazyhaar/docudata/pkg/catalog"
	"github.com/hazyhaar/docudata/pkg/units"
)

const building = `{
  "walls": [
    {"id": "W1", "type": "External", "thickness": "200mm"},
    {"id": "W2", "type": "external", "thickness": "300mm"},
    {"id": "W3", "type": "internal", "thickness": "100mm"},
    {"id": "W4", "thickness": "150mm"},
    {"id": "W5", "type": "external", "thickness": "thick"}
  ],
  "doors": [
    {"id": "D1", "width": "36 in"},
    {"id": "D2", "width": "42 in", "jurisdiction": "NY"}
  ],
  "slabs": [
    {"id": "S1", "thickness": "150mm"}
  ]
}`

const codes = `{
  "structural": {
    "walls": {
      "external": {
        "description": "Minimum thickness for external walls",
        "min_thickness": 0.23,
        "code_reference": "IBC 2021 Section 2109"
      },
      "internal": {
        "description": "Internal partitions shall have a fire rating of at least 1 hour"
      }
    }
  },
  "accessibility": {
    "doors": {"description": "Clear width of 32 inches minimum", "code_reference": "ADA 404.2.3"}
  },
  "california": {
    "doors": {"description": "Wider doors", "min_width": "40 in"}
  }
}`

func load(t *testing.T, doc string) *catalog.Catalog {
	t.Helper()
	c, err := catalog.Load([]byte(doc), catalog.LoadOptions{Name: "test.json"})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	return c
}

func findingIDs(fs []Finding) []string {
	out := []string{}
	for _, f := range fs {
		out = append(out, f.ID)
	}
	return out
}

func TestCheck(t *testing.T) {
	comps, reqs := load(t, building), load(t, codes)
	r := Check(comps.Components(), reqs.Requirements(), Options{Jurisdiction: "texas"})

	if got, want := findingIDs(r.Compliant), []string{"W2", "D1", "D2"}; !reflect.DeepEqual(got, want) {
		t.Errorf("compliant = %v, want %v", got, want)
	}
	if got, want := findingIDs(r.NonCompliant), []string{"W1"}; !reflect.DeepEqual(got, want) {
		t.Errorf("non-compliant = %v, want %v", got, want)
	}
	if got, want := findingIDs(r.Warnings), []string{"W3", "W4", "W5"}; !reflect.DeepEqual(got, want) {
		t.Errorf("warnings = %v, want %v", got, want)
	}
	if !reflect.DeepEqual(r.Unchecked, []string{"S1"}) {
		t.Errorf("unchecked = %v, want [S1]", r.Unchecked)
	}
	if r.Total() != 7 {
		t.Errorf("Total = %d, want 7", r.Total())
	}

	w1 := r.NonCompliant[0]
	if len(w1.Details) != 1 || w1.Details[0] != "thickness: required ≥ 230 mm, found 200 mm" {
		t.Errorf("details = %q", w1.Details)
	}
	if len(w1.Recommendations) != 1 || !strings.Contains(w1.Recommendations[0], "IBC 2021 Section 2109") {
		t.Errorf("recommendations = %q", w1.Recommendations)
	}
}

func TestCheck_MissingDataIsWarning(t *testing.T) {
	comps, reqs := load(t, building), load(t, codes)
	r := Check(comps.Components(), reqs.Requirements(), Options{})

	for _, f := range r.Warnings {
		if f.ID != "W3" {
			continue
		}
		if len(f.Details) != 1 || !strings.HasPrefix(f.Details[0], "fire_rating: no data") {
			t.Errorf("W3 details = %q", f.Details)
		}
		return
	}
	t.Errorf("W3 not among warnings %v", findingIDs(r.Warnings))
}

func TestCheck_JurisdictionRequirements(t *testing.T) {
	comps, reqs := load(t, building), load(t, codes)

	// Without a selector the California door rule applies to untagged doors.
	r := Check(comps.Components(), reqs.Requirements(), Options{})
	if got := findingIDs(r.NonCompliant); !reflect.DeepEqual(got, []string{"W1", "D1"}) {
		t.Errorf("non-compliant = %v, want [W1 D1]", got)
	}
	// D2 is in New York and never sees it.
	found := false
	for _, f := range r.Compliant {
		if f.ID == "D2" {
			found = true
			if !reflect.DeepEqual(f.Requirements, []string{"accessibility.doors"}) {
				t.Errorf("D2 requirements = %v", f.Requirements)
			}
		}
	}
	if !found {
		t.Error("D2 should be compliant")
	}

	for _, f := range r.NonCompliant {
		if f.ID == "D1" && !strings.Contains(f.Recommendations[0], "california.doors") {
			t.Errorf("recommendation should cite the requirement id: %q", f.Recommendations)
		}
	}
}

func TestCheck_ImperialMessages(t *testing.T) {
	comps, reqs := load(t, building), load(t, codes)
	r := Check(comps.Components(), reqs.Requirements(), Options{Jurisdiction: "texas", System: units.Imperial})
	if len(r.NonCompliant) != 1 || strings.Contains(r.NonCompliant[0].Details[0], "mm") {
		t.Errorf("details = %v, want imperial units", r.NonCompliant)
	}
}

func TestCheck_Empty(t *testing.T) {
	r := Check(nil, nil, Options{})
	if r.Total() != 0 || r.Compliant == nil || r.NonCompliant == nil || r.Warnings == nil {
		t.Errorf("report = %+v, want empty non-nil lists", r)
	}
}

func TestTagMatches(t *testing.T) {
	tests := []struct {
		comp, req string
		want      bool
	}{
		{"external", "external", true},
		{"External", "external", true},
		{"external", "external.load_bearing", true},
		{"external_load_bearing", "external", true},
		{"internal", "external", false},
		{"", "external", false},
	}
	for _, tt := range tests {
		if got := tagMatches(tt.comp, tt.req); got != tt.want {
			t.Errorf("tagMatches(%q, %q) = %v, want %v", tt.comp, tt.req, got, tt.want)
		}
	}
}
