package query

import (
	"math"
	"reflect"
	"testing"

	"github.com/hazyhaar/docudata/pkg/catalog"
	"github.com/hazyhaar/docudata/pkg/units"
)

func TestTokenize(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{`Walls > 3.5m, fire-rated; 36" doors ≥2 hours`,
			[]string{"walls", ">", "3.5", "m", "fire", "rated", "36", `"`, "doors", "≥", "2", "hours"}},
		{"230mm", []string{"230", "mm"}},
		{"100 ft2 or 9 m²", []string{"100", "ft2", "or", "9", "m²"}},
		{"height>=3m", []string{"height", ">=", "3", "m"}},
		{"Béton door's", []string{"beton", "door", "s"}},
		{"1,000 sq ft", []string{"1000", "sq", "ft"}},
		{"12,500,000 lux", []string{"12500000", "lux"}},
		{"sizes 3,4 and 1.5,000", []string{"sizes", "3", "4", "and", "1.5", "000"}},
		{"above -3 m, fire-rated 2-hour", []string{"above", "-3", "m", "fire", "rated", "2", "hour"}},
	}
	for _, tt := range tests {
		if got := tokenize(tt.in); !reflect.DeepEqual(got, tt.want) {
			t.Errorf("tokenize(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

// clause is a compact expectation: attribute, comparator and SI value.
type clause struct {
	attr string
	cmp  catalog.Comparator
	si   float64
}

func checkClauses(t *testing.T, text string, got []catalog.Clause, want []clause) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("Parse(%q) clauses = %v, want %d", text, got, len(want))
	}
	for i, w := range want {
		g := got[i]
		if g.Attribute != w.attr || g.Comparator != w.cmp {
			t.Errorf("Parse(%q) clause %d = %s, want %s %s", text, i, g, w.attr, w.cmp)
		}
		if g.Value.Kind == catalog.QuantityValue && math.Abs(g.Value.Quantity.Value-w.si) > 1e-9 {
			t.Errorf("Parse(%q) clause %d value = %v, want %v", text, i, g.Value.Quantity.Value, w.si)
		}
	}
}

func TestParse_WallRequirements(t *testing.T) {
	in := Parse("show me wall requirements")
	if in.Target != catalog.Wall {
		t.Errorf("Target = %q, want Wall", in.Target)
	}
	if len(in.Clauses) != 0 {
		t.Errorf("Clauses = %v, want none", in.Clauses)
	}
	if !reflect.DeepEqual(in.Keywords, []string{"requirements"}) {
		t.Errorf("Keywords = %q, want [requirements]", in.Keywords)
	}
}

func TestParse_AttributeAfterValue(t *testing.T) {
	in := Parse("walls greater than 3m height")
	if in.Target != catalog.Wall {
		t.Errorf("Target = %q, want Wall", in.Target)
	}
	checkClauses(t, in.Raw, in.Clauses, []clause{{"height", catalog.AtLeast, 3}})
	if len(in.Keywords) != 0 {
		t.Errorf("Keywords = %q, want none", in.Keywords)
	}
}

func TestParse_UnknownUnitDegradesToKeywords(t *testing.T) {
	in := Parse("door width 36 furlongs")
	if in.Target != catalog.Door {
		t.Errorf("Target = %q, want Door", in.Target)
	}
	if len(in.Clauses) != 0 {
		t.Errorf("Clauses = %v, want none", in.Clauses)
	}
	if want := []string{"width", "36", "furlongs"}; !reflect.DeepEqual(in.Keywords, want) {
		t.Errorf("Keywords = %q, want %q", in.Keywords, want)
	}
	if len(in.Warnings) != 1 {
		t.Errorf("Warnings = %q, want one", in.Warnings)
	}
}

func TestParse_KeywordOnly(t *testing.T) {
	in := Parse("external wall thickness")
	if in.Target != catalog.Wall || len(in.Clauses) != 0 {
		t.Errorf("intent = %+v", in)
	}
	if want := []string{"external", "thickness"}; !reflect.DeepEqual(in.Keywords, want) {
		t.Errorf("Keywords = %q, want %q", in.Keywords, want)
	}
}

func TestParse_Comparators(t *testing.T) {
	tests := []struct {
		text   string
		target catalog.ComponentType
		want   []clause
	}{
		{"walls with height greater than 3m and thickness at least 200 mm", catalog.Wall,
			[]clause{{"height", catalog.AtLeast, 3}, {"thickness", catalog.AtLeast, 0.2}}},
		{"stairs riser height less than 7 inches", catalog.Stair,
			[]clause{{"riser_height", catalog.AtMost, 7 * 0.0254}}},
		{"doors no more than 80 in tall", catalog.Door,
			[]clause{{"height", catalog.AtMost, 80 * 0.0254}}},
		{"rooms with area at least 9 m²", catalog.Space,
			[]clause{{"area", catalog.AtLeast, 9}}},
		{"anything with area >= 100 sq ft", catalog.AnyType,
			[]clause{{"area", catalog.AtLeast, 100 * 0.09290304}}},
		{"beams span exactly 6 m", catalog.Beam,
			[]clause{{"span", catalog.Equal, 6}}},
		{"doors rated over 1 hour", catalog.Door,
			[]clause{{"fire_rating", catalog.AtLeast, 3600}}},
	}
	for _, tt := range tests {
		in := Parse(tt.text)
		if in.Target != tt.target {
			t.Errorf("Parse(%q) target = %q, want %q", tt.text, in.Target, tt.target)
		}
		checkClauses(t, tt.text, in.Clauses, tt.want)
	}
}

func TestParse_Implicit(t *testing.T) {
	tests := []struct {
		text string
		want []clause
	}{
		{"door width 36 in", []clause{{"width", catalog.Equal, 36 * 0.0254}}},
		{"fire rating of 2 hours doors", []clause{{"fire_rating", catalog.Equal, 7200}}},
		{"2 hour fire rating doors", []clause{{"fire_rating", catalog.Equal, 7200}}},
		{"min thickness 200mm walls", []clause{{"thickness", catalog.AtLeast, 0.2}}},
		{"doors 90 minutes", []clause{{"fire_rating", catalog.Equal, 5400}}},
	}
	for _, tt := range tests {
		in := Parse(tt.text)
		checkClauses(t, tt.text, in.Clauses, tt.want)
	}
}

func TestParse_AmbiguousLengthDropped(t *testing.T) {
	in := Parse("walls 3 m")
	if len(in.Clauses) != 0 || len(in.Keywords) != 0 {
		t.Errorf("intent = %+v, want no clause and no keywords", in)
	}
	if len(in.Warnings) != 1 {
		t.Errorf("Warnings = %q, want one", in.Warnings)
	}
}

func TestParse_Jurisdiction(t *testing.T) {
	tests := []struct {
		text string
		want string
	}{
		{"fire rated doors in California", "california"},
		{"stairs nyc", "new-york"},
		{"walls in new york city", "new-york"},
		{"TX slabs", "texas"},
		{"walls", ""},
	}
	for _, tt := range tests {
		if got := Parse(tt.text).Jurisdiction; got != tt.want {
			t.Errorf("Parse(%q).Jurisdiction = %q, want %q", tt.text, got, tt.want)
		}
	}

	in := Parse("fire rated doors in California")
	if len(in.Keywords) != 0 {
		t.Errorf("Keywords = %q, want none", in.Keywords)
	}
	if len(in.Clauses) != 1 || in.Clauses[0].Attribute != "fire_rated" || !in.Clauses[0].Value.Flag {
		t.Errorf("Clauses = %v, want fire_rated is true", in.Clauses)
	}
}

func TestParse_MaterialAndBoolean(t *testing.T) {
	in := Parse("walls made of reinforced concrete")
	if len(in.Clauses) != 1 || in.Clauses[0].Comparator != catalog.HasMaterial || in.Clauses[0].Value.Raw != "reinforced concrete" {
		t.Errorf("Clauses = %v, want material has reinforced concrete", in.Clauses)
	}

	in = Parse("non load bearing partitions")
	if in.Target != catalog.Wall {
		t.Errorf("Target = %q, want Wall", in.Target)
	}
	if len(in.Clauses) != 1 || in.Clauses[0].Attribute != "load_bearing" || in.Clauses[0].Value.Flag {
		t.Errorf("Clauses = %v, want load_bearing is false", in.Clauses)
	}
}

func TestParse_LongestTypeFirst(t *testing.T) {
	if got := Parse("fire suppression terminal spacing").Target; got != catalog.FireSuppressionTerminal {
		t.Errorf("Target = %q, want FireSuppressionTerminal", got)
	}
	if got := Parse("terminal spacing").Target; got != catalog.AirTerminal {
		t.Errorf("Target = %q, want AirTerminal", got)
	}
}

func TestParse_Empty(t *testing.T) {
	for _, text := range []string{"", "   ", "show me", "in california"} {
		if in := Parse(text); !in.Empty() {
			t.Errorf("Parse(%q) = %+v, want empty intent", text, in)
		}
	}
	if Parse("in california").Jurisdiction != "california" {
		t.Error("empty intent should keep its jurisdiction")
	}
}

func TestParse_UnitKinds(t *testing.T) {
	in := Parse("light fixtures illuminance at least 500 lux")
	if in.Target != catalog.LightFixture {
		t.Errorf("Target = %q", in.Target)
	}
	if len(in.Clauses) != 1 || in.Clauses[0].Value.Quantity.Kind != units.Illuminance {
		t.Errorf("Clauses = %v", in.Clauses)
	}
}

func TestParse_ComparatorNamesAttribute(t *testing.T) {
	tests := []struct {
		text string
		want []clause
	}{
		{"doors wider than 36 in", []clause{{"width", catalog.AtLeast, 36 * 0.0254}}},
		{"walls taller than 3 m", []clause{{"height", catalog.AtLeast, 3}}},
		{"walls thicker than 200 mm", []clause{{"thickness", catalog.AtLeast, 0.2}}},
		{"beams longer than 6 m", []clause{{"length", catalog.AtLeast, 6}}},
		{"doors narrower than 30 in", []clause{{"width", catalog.AtMost, 30 * 0.0254}}},
		{"walls thinner than 100mm", []clause{{"thickness", catalog.AtMost, 0.1}}},
		{"walls taller than 3 m height", []clause{{"height", catalog.AtLeast, 3}}},
		{"fire rated doors in california wider than 36 in", []clause{
			{"fire_rated", catalog.IsBoolean, 0},
			{"width", catalog.AtLeast, 36 * 0.0254},
		}},
		{"doors with height at least 80 in and wider than 35 in", []clause{
			{"height", catalog.AtLeast, 80 * 0.0254},
			{"width", catalog.AtLeast, 35 * 0.0254},
		}},
		{"doors higher than 1 hour", []clause{{"fire_rating", catalog.AtLeast, 3600}}},
	}
	for _, tt := range tests {
		in := Parse(tt.text)
		checkClauses(t, tt.text, in.Clauses, tt.want)
		if len(in.Keywords) != 0 || len(in.Warnings) != 0 {
			t.Errorf("Parse(%q) keywords = %q, warnings = %q, want none", tt.text, in.Keywords, in.Warnings)
		}
	}
}

func TestParse_ThousandsSeparator(t *testing.T) {
	in := Parse("rooms with area greater than 1,000 sq ft")
	checkClauses(t, in.Raw, in.Clauses, []clause{{"area", catalog.AtLeast, 1000 * 0.09290304}})
	if len(in.Keywords) != 0 {
		t.Errorf("Keywords = %q, want none", in.Keywords)
	}
}

func TestParse_NegativeValue(t *testing.T) {
	in := Parse("walls with height greater than -3 m")
	checkClauses(t, in.Raw, in.Clauses, []clause{{"height", catalog.AtLeast, -3}})
}
