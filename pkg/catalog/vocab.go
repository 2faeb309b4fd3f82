package catalog

import (
	"sort"
	"strings"
	"unicode"

	"github.com/hazyhaar/docudata/pkg/units"
)

// Static vocabularies. Built once at init, never mutated afterwards, so they
// are safe for concurrent readers without locking.

var typeAliases = map[ComponentType][]string{
	Wall:                    {"wall", "walls", "ifcwall", "ifcwallstandardcase", "partition", "partitions"},
	Door:                    {"door", "doors", "ifcdoor", "doorway", "doorways"},
	Window:                  {"window", "windows", "ifcwindow"},
	Stair:                   {"stair", "stairs", "ifcstair", "staircase", "staircases", "stairway", "stairways", "stairwell", "stairwells"},
	Railing:                 {"railing", "railings", "ifcrailing", "handrail", "handrails", "guardrail", "guardrails"},
	Beam:                    {"beam", "beams", "ifcbeam", "girder", "girders"},
	Column:                  {"column", "columns", "ifccolumn", "pillar", "pillars"},
	Slab:                    {"slab", "slabs", "ifcslab", "floor slab", "floor slabs"},
	Roof:                    {"roof", "roofs", "ifcroof", "roofing"},
	Foundation:              {"foundation", "foundations", "footing", "footings", "ifcfooting"},
	Pipe:                    {"pipe", "pipes", "piping", "ifcpipesegment", "pipe segment", "pipe segments"},
	Duct:                    {"duct", "ducts", "ductwork", "ifcductsegment", "duct segment", "duct segments"},
	LightFixture:            {"light fixture", "light fixtures", "lighting fixture", "lighting fixtures", "luminaire", "luminaires", "ifclightfixture"},
	AirTerminal:             {"air terminal", "air terminals", "ifcairterminal", "terminal", "terminals", "diffuser", "diffusers"},
	FireSuppressionTerminal: {"fire suppression terminal", "fire suppression terminals", "ifcfiresuppressionterminal", "sprinkler", "sprinklers", "sprinkler head", "sprinkler heads"},
	Space:                   {"space", "spaces", "ifcspace", "room", "rooms"},
	Zone:                    {"zone", "zones", "ifczone"},
}

var typeIndex = func() map[string]ComponentType {
	m := make(map[string]ComponentType)
	for t, aliases := range typeAliases {
		for _, a := range aliases {
			m[FoldKey(a)] = t
		}
		name := FoldKey(string(t))
		m[name] = t
		m[name+"s"] = t
	}
	return m
}()

// ResolveType maps a spelling ("IfcWall", "walls", "light_fixtures",
// "LightFixture") to a known component type.
func ResolveType(s string) (ComponentType, bool) {
	t, ok := typeIndex[FoldKey(s)]
	return t, ok
}

// TypeOf resolves s like ResolveType and otherwise coins an open-set type
// from it: "curtain_panels" becomes "CurtainPanel".
func TypeOf(s string) ComponentType {
	if t, ok := ResolveType(s); ok {
		return t
	}
	words := strings.Fields(FoldKey(s))
	if len(words) == 0 {
		return AnyType
	}
	last := words[len(words)-1]
	if len(last) > 3 && strings.HasSuffix(last, "s") && !strings.HasSuffix(last, "ss") {
		words[len(words)-1] = strings.TrimSuffix(last, "s")
	}
	var b strings.Builder
	for _, w := range words {
		r := []rune(w)
		b.WriteString(string(unicode.ToUpper(r[0])) + string(r[1:]))
	}
	return ComponentType(b.String())
}

// KnownTypes lists the built-in component types, sorted.
func KnownTypes() []ComponentType {
	out := make([]ComponentType, 0, len(typeAliases))
	for t := range typeAliases {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Phrase is a multi-word vocabulary entry as a token sequence.
type Phrase[T any] struct {
	Tokens []string
	Value  T
}

// longestFirst orders phrases by token count, then alphabetically so scans
// are deterministic.
func longestFirst[T any](ps []Phrase[T]) []Phrase[T] {
	sort.SliceStable(ps, func(i, j int) bool {
		if len(ps[i].Tokens) != len(ps[j].Tokens) {
			return len(ps[i].Tokens) > len(ps[j].Tokens)
		}
		return strings.Join(ps[i].Tokens, " ") < strings.Join(ps[j].Tokens, " ")
	})
	return ps
}

var typePhrases = func() []Phrase[ComponentType] {
	var ps []Phrase[ComponentType]
	for key, t := range typeIndex {
		ps = append(ps, Phrase[ComponentType]{Tokens: strings.Fields(key), Value: t})
	}
	return longestFirst(ps)
}()

// TypePhrases returns every type alias as tokens, longest first.
func TypePhrases() []Phrase[ComponentType] { return typePhrases }

// AttributeDef names a canonical attribute and the unit assumed for bare
// numbers stored under it.
type AttributeDef struct {
	Name        string
	DefaultUnit string
}

var attributeKeywords = map[string]AttributeDef{
	"height":          {"height", "m"},
	"tall":            {"height", "m"},
	"width":           {"width", "m"},
	"wide":            {"width", "m"},
	"depth":           {"depth", "m"},
	"deep":            {"depth", "m"},
	"thickness":       {"thickness", "m"},
	"thick":           {"thickness", "m"},
	"length":          {"length", "m"},
	"long":            {"length", "m"},
	"span":            {"span", "m"},
	"diameter":        {"diameter", "m"},
	"spacing":         {"spacing", "m"},
	"clearance":       {"clearance", "m"},
	"headroom":        {"headroom", "m"},
	"sill height":     {"sill_height", "m"},
	"riser":           {"riser_height", "m"},
	"riser height":    {"riser_height", "m"},
	"tread":           {"tread_depth", "m"},
	"tread depth":     {"tread_depth", "m"},
	"area":            {"area", "m²"},
	"floor area":      {"floor_area", "m²"},
	"opening":         {"opening_area", "m²"},
	"opening area":    {"opening_area", "m²"},
	"rating":          {"fire_rating", "h"},
	"fire rating":     {"fire_rating", "h"},
	"fire resistance": {"fire_rating", "h"},
	"pressure":        {"pressure", "kPa"},
	"load":            {"load", "kPa"},
	"capacity":        {"capacity", ""},
	"current":         {"current", "A"},
	"amperage":        {"current", "A"},
	"ampacity":        {"current", "A"},
	"illuminance":     {"illuminance", "lux"},
	"light level":     {"illuminance", "lux"},
	"lighting level":  {"illuminance", "lux"},
	"material":        {"material", ""},
	"materials":       {"material", ""},
}

var attributePhrases = func() []Phrase[AttributeDef] {
	var ps []Phrase[AttributeDef]
	for k, d := range attributeKeywords {
		ps = append(ps, Phrase[AttributeDef]{Tokens: strings.Fields(k), Value: d})
	}
	return longestFirst(ps)
}()

// AttributePhrases returns the attribute keyword table, longest first.
func AttributePhrases() []Phrase[AttributeDef] { return attributePhrases }

// defsBySuffix holds canonical attribute names, longest first, for suffix
// matching of qualified dataset names such as "wall_thickness".
var defsBySuffix = func() []AttributeDef {
	seen := map[string]bool{}
	var out []AttributeDef
	for _, d := range attributeKeywords {
		if !seen[d.Name] {
			seen[d.Name] = true
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if len(out[i].Name) != len(out[j].Name) {
			return len(out[i].Name) > len(out[j].Name)
		}
		return out[i].Name < out[j].Name
	})
	return out
}()

// DefaultUnit is the unit assumed for a bare number stored under the given
// snake_case attribute name, or "" when none applies.
func DefaultUnit(attr string) string {
	for _, d := range defsBySuffix {
		if attr == d.Name || strings.HasSuffix(attr, "_"+d.Name) {
			return d.DefaultUnit
		}
	}
	return ""
}

// AttributeForKind names the attribute a bare quantity most likely refers
// to. Length is ambiguous (height, width, ...) and yields "".
func AttributeForKind(k units.Kind) string {
	switch k {
	case units.Area:
		return "area"
	case units.Pressure:
		return "pressure"
	case units.Current:
		return "current"
	case units.Illuminance:
		return "illuminance"
	case units.Time:
		return "fire_rating"
	}
	return ""
}

var materials = []string{
	"concrete", "reinforced concrete", "steel", "stainless steel", "wood", "timber", "brick",
	"masonry", "cmu", "block", "glass", "gypsum", "drywall", "aluminum", "aluminium",
	"stone", "copper", "pvc", "cast iron", "clt", "metal",
}

var materialPhrases = func() []Phrase[string] {
	ps := make([]Phrase[string], 0, len(materials))
	for _, m := range materials {
		ps = append(ps, Phrase[string]{Tokens: strings.Fields(m), Value: m})
	}
	return longestFirst(ps)
}()

// MaterialPhrases returns the known material names, longest first.
func MaterialPhrases() []Phrase[string] { return materialPhrases }

var booleanKeywords = map[string]string{
	"load bearing": "load_bearing",
	"loadbearing":  "load_bearing",
	"fire rated":   "fire_rated",
	"firerated":    "fire_rated",
}

var booleanPhrases = func() []Phrase[string] {
	var ps []Phrase[string]
	for k, attr := range booleanKeywords {
		ps = append(ps, Phrase[string]{Tokens: strings.Fields(k), Value: attr})
	}
	return longestFirst(ps)
}()

// BooleanPhrases returns flag phrases ("load bearing") and the attribute
// each one asserts, longest first.
func BooleanPhrases() []Phrase[string] { return booleanPhrases }

// MatchAt reports the first phrase whose tokens appear at tokens[i:].
func MatchAt[T any](phrases []Phrase[T], tokens []string, i int) (Phrase[T], bool) {
	for _, p := range phrases {
		if i+len(p.Tokens) > len(tokens) {
			continue
		}
		ok := true
		for j, w := range p.Tokens {
			if tokens[i+j] != w {
				ok = false
				break
			}
		}
		if ok {
			return p, true
		}
	}
	return Phrase[T]{}, false
}
