package catalog

import (
	"math"
	"strconv"
	"strings"

	"github.com/hazyhaar/docudata/pkg/units"
)

// ComponentType is a building component class such as Wall or Door. The set
// is open: unknown dataset keys become new types. The empty type means "any".
type ComponentType string

const AnyType ComponentType = ""

const (
	Wall                    ComponentType = "Wall"
	Door                    ComponentType = "Door"
	Window                  ComponentType = "Window"
	Stair                   ComponentType = "Stair"
	Railing                 ComponentType = "Railing"
	Beam                    ComponentType = "Beam"
	Column                  ComponentType = "Column"
	Slab                    ComponentType = "Slab"
	Roof                    ComponentType = "Roof"
	Foundation              ComponentType = "Foundation"
	Pipe                    ComponentType = "Pipe"
	Duct                    ComponentType = "Duct"
	LightFixture            ComponentType = "LightFixture"
	AirTerminal             ComponentType = "AirTerminal"
	FireSuppressionTerminal ComponentType = "FireSuppressionTerminal"
	Space                   ComponentType = "Space"
	Zone                    ComponentType = "Zone"
)

func (t ComponentType) IsAny() bool { return t == AnyType }

// RecordKind distinguishes catalog entries describing real components from
// entries describing code requirements.
type RecordKind string

const (
	ComponentKind   RecordKind = "component"
	RequirementKind RecordKind = "requirement"
)

// ValueKind tags the variant held by a Value.
type ValueKind int

const (
	TextValue ValueKind = iota
	QuantityValue
	NumberValue
	BoolValue
)

func (k ValueKind) String() string {
	switch k {
	case QuantityValue:
		return "quantity"
	case NumberValue:
		return "number"
	case BoolValue:
		return "bool"
	}
	return "text"
}

func (k ValueKind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

// Value is an attribute value as stored in the catalog. Quantities hold SI
// values; text keeps the dataset string untouched, including numbers whose
// unit could not be recognized.
type Value struct {
	Kind     ValueKind      `json:"kind"`
	Raw      string         `json:"raw"`
	Quantity units.Quantity `json:"quantity,omitzero"`
	Number   float64        `json:"number,omitzero"`
	Flag     bool           `json:"flag,omitzero"`
}

func QuantityOf(q units.Quantity) Value {
	return Value{Kind: QuantityValue, Raw: q.Original(), Quantity: q}
}

func TextOf(s string) Value { return Value{Kind: TextValue, Raw: s} }

func NumberOf(f float64) Value {
	return Value{Kind: NumberValue, Raw: strconv.FormatFloat(f, 'f', -1, 64), Number: f}
}

func BoolOf(b bool) Value { return Value{Kind: BoolValue, Raw: strconv.FormatBool(b), Flag: b} }

// Stored renders the value as recorded in the dataset.
func (v Value) Stored() string {
	if v.Kind == QuantityValue {
		return v.Quantity.Original()
	}
	return v.Raw
}

// Display renders the value in the requested unit system.
func (v Value) Display(system units.System) string {
	if v.Kind == QuantityValue {
		return units.Denormalize(v.Quantity.Value, v.Quantity.Kind, system)
	}
	return v.Raw
}

// Comparator is the relation a clause asserts between an attribute and a value.
type Comparator string

const (
	AtLeast     Comparator = ">="
	AtMost      Comparator = "<="
	Equal       Comparator = "="
	HasMaterial Comparator = "has-material"
	IsBoolean   Comparator = "boolean"
)

var comparatorSpellings = map[string]Comparator{
	">=": AtLeast, "≥": AtLeast, "gte": AtLeast, "min": AtLeast, "minimum": AtLeast, "at least": AtLeast,
	"<=": AtMost, "≤": AtMost, "lte": AtMost, "max": AtMost, "maximum": AtMost, "at most": AtMost,
	"=": Equal, "==": Equal, "eq": Equal, "equals": Equal, "exactly": Equal,
	"has material": HasMaterial, "material": HasMaterial,
	"boolean": IsBoolean, "bool": IsBoolean, "is": IsBoolean,
}

// ParseComparator accepts symbols (">=", "≥") and words ("minimum", "at least").
func ParseComparator(s string) (Comparator, bool) {
	c, ok := comparatorSpellings[FoldKey(s)]
	if !ok {
		c, ok = comparatorSpellings[strings.TrimSpace(s)]
	}
	return c, ok
}

// Symbol is the human-readable operator.
func (c Comparator) Symbol() string {
	switch c {
	case AtLeast:
		return "≥"
	case AtMost:
		return "≤"
	case HasMaterial:
		return "has"
	case IsBoolean:
		return "is"
	}
	return string(c)
}

// Tolerance is the relative tolerance applied to numeric boundaries, so that
// values differing only by conversion rounding compare as equal.
const Tolerance = 1e-9

func approxEqual(a, b float64) bool {
	return math.Abs(a-b) <= Tolerance*math.Max(1, math.Max(math.Abs(a), math.Abs(b)))
}

func (c Comparator) holds(stored, threshold float64) bool {
	switch c {
	case AtLeast:
		return stored >= threshold || approxEqual(stored, threshold)
	case AtMost:
		return stored <= threshold || approxEqual(stored, threshold)
	case Equal:
		return approxEqual(stored, threshold)
	}
	return false
}

// Clause is one (attribute, comparator, value) condition. Query filters and
// requirement constraints share this shape.
type Clause struct {
	Attribute  string     `json:"attribute"`
	Comparator Comparator `json:"comparator"`
	Value      Value      `json:"value"`
}

func (c Clause) String() string {
	return c.Attribute + " " + c.Comparator.Symbol() + " " + c.Value.Stored()
}

// Test evaluates the clause against a stored value. comparable is false when
// the value kinds or unit kinds disagree; such a pair never holds.
func (c Clause) Test(v Value) (holds, comparable bool) {
	switch c.Comparator {
	case HasMaterial:
		if v.Kind != TextValue {
			return false, false
		}
		return strings.Contains(Fold(v.Raw), Fold(c.Value.Raw)), true
	case IsBoolean:
		if v.Kind != BoolValue {
			return false, false
		}
		return v.Flag == c.Value.Flag, true
	}
	if v.Kind != QuantityValue || c.Value.Kind != QuantityValue || v.Quantity.Kind != c.Value.Quantity.Kind {
		return false, false
	}
	return c.Comparator.holds(v.Quantity.Value, c.Value.Quantity.Value), true
}

// Attribute is one named value of a record, in dataset order.
type Attribute struct {
	Name  string `json:"name"`
	Value Value  `json:"value"`
}

// Record is one catalog entry: either a component or a code requirement.
// Requirements carry their conditions in Constraints and keep free-form
// fields (notes, reinforcement, ...) in Attributes.
type Record struct {
	Kind          RecordKind    `json:"kind"`
	ID            string        `json:"id"`
	Type          ComponentType `json:"type"`
	Tag           string        `json:"tag,omitempty"`
	Name          string        `json:"name,omitempty"`
	Description   string        `json:"description,omitempty"`
	Jurisdiction  string        `json:"jurisdiction,omitempty"`
	Category      string        `json:"category,omitempty"`
	CodeReference string        `json:"code_reference,omitempty"`
	Attributes    []Attribute   `json:"attributes,omitempty"`
	Constraints   []Clause      `json:"constraints,omitempty"`
}

func (r *Record) IsRequirement() bool { return r.Kind == RequirementKind }

// Outcome reports how a record fared against one clause.
type Outcome struct {
	Clause    Clause `json:"clause"`
	Attribute string `json:"attribute,omitempty"` // record attribute consulted
	Stored    Value  `json:"stored"`
	Present   bool   `json:"present"`
	Matched   bool   `json:"matched"`
}

// Lookup finds the attribute a clause name refers to. Exact names win, then
// plurals ("materials"), then qualified names ending in "_<name>"
// ("wall_thickness", "gross_floor_area"). Requirement constraints are
// consulted before free-form fields.
func (r *Record) Lookup(name string) (Attribute, bool) {
	candidates := r.values()
	for _, n := range []string{name, name + "s"} {
		for _, a := range candidates {
			if a.Name == n {
				return a, true
			}
		}
	}
	for _, n := range []string{name, name + "s"} {
		for _, a := range candidates {
			if strings.HasSuffix(a.Name, "_"+n) {
				return a, true
			}
		}
	}
	return Attribute{}, false
}

func (r *Record) values() []Attribute {
	if len(r.Constraints) == 0 {
		return r.Attributes
	}
	out := make([]Attribute, 0, len(r.Constraints)+len(r.Attributes))
	for _, c := range r.Constraints {
		out = append(out, Attribute{Name: c.Attribute, Value: c.Value})
	}
	return append(out, r.Attributes...)
}

// Evaluate tests a filter clause against the record. For a requirement the
// constraint threshold stands in for the stored value: a query for "walls
// with thickness less than 300 mm" matches a "thickness ≥ 230 mm" rule.
func (r *Record) Evaluate(c Clause) Outcome {
	out := Outcome{Clause: c}
	a, ok := r.Lookup(c.Attribute)
	if !ok {
		return out
	}
	out.Attribute = a.Name
	out.Stored = a.Value
	out.Present = true
	out.Matched, _ = c.Test(a.Value)
	return out
}

// Text is the searchable text of the record: type, tag, name and description.
func (r *Record) Text() string {
	parts := []string{string(r.Type), r.Tag, r.Name, r.Description}
	return Fold(strings.Join(parts, " "))
}
