package catalog

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/transform"

	"github.com/hazyhaar/docudata/pkg/units"
)

// LoadOptions tunes Load.
type LoadOptions struct {
	// Name is the uploaded file name. A .yaml/.yml extension selects the
	// YAML decoder and .ifc the IFC stub; anything else is read as JSON.
	Name string
	// Encoding is the declared charset of the payload (e.g. "windows-1252").
	Encoding string
	// Jurisdiction tags records that carry no jurisdiction of their own.
	Jurisdiction string
	Logger       *slog.Logger
}

// Field names recognized on record objects, in snake_case.
var (
	idKeys           = []string{"id", "guid", "global_id", "globalid", "ifc_guid", "uid"}
	typeKeys         = []string{"type", "ifc_type", "ifctype", "entity", "entity_type", "component_type", "element_type"}
	tagKeys          = []string{"subtype", "predefined_type", "tag", "kind"}
	nameKeys         = []string{"name", "title", "label"}
	descKeys         = []string{"description", "desc"}
	jurisdictionKeys = []string{"jurisdiction", "location", "region"}
	refKeys          = []string{"code_reference", "code_ref", "reference", "references", "citation", "code_section", "section"}
	unitKeys         = []string{"unit", "units"}
	appliesKeys      = []string{"applies_to", "component", "component_type"}
	nestedKeys       = []string{"properties", "quantities", "attributes", "property_sets", "psets", "dimensions"}
)

func in(list []string, k string) bool {
	for _, s := range list {
		if s == k {
			return true
		}
	}
	return false
}

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Load decodes a dataset into a Catalog. Malformed records are skipped and
// counted in Catalog.Skipped; the only errors are an undecodable document
// and a document matching neither the flat nor the tree shape.
func Load(data []byte, opts LoadOptions) (*Catalog, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	name := opts.Name
	if name == "" {
		name = "dataset.json"
	}
	c := &Catalog{Name: name, byID: make(map[string]*Record)}

	if isIFC(name, data) {
		c.Shape = ShapeIFC
		c.Warnings = append(c.Warnings, "IFC geometry is not parsed; load a JSON export of the model instead")
		logger.Warn("IFC payload accepted without parsing", "dataset", name, "bytes", len(data))
		return c, nil
	}

	data, err := transcode(data, opts.Encoding)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", name, err)
	}
	data = bytes.TrimPrefix(data, utf8BOM)

	var root *node
	switch strings.ToLower(filepath.Ext(name)) {
	case ".yaml", ".yml":
		root, err = decodeYAML(data)
	default:
		root, err = decodeJSON(data)
	}
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", name, err)
	}

	b := &builder{cat: c, jurisdiction: NormalizeJurisdiction(opts.Jurisdiction)}
	switch {
	case isEmpty(root):
		c.Shape = ShapeFlat
	case isFlat(root):
		c.Shape = ShapeFlat
		b.flat(root)
	case b.tree(root):
		c.Shape = ShapeTree
	default:
		return nil, fmt.Errorf("load %s: %w", name, ErrUnrecognizedShape)
	}

	if c.Skipped > 0 {
		logger.Warn("skipped malformed records", "dataset", name, "skipped", c.Skipped)
	}
	logger.Info("dataset loaded", "dataset", name, "shape", c.Shape, "records", len(c.records))
	return c, nil
}

func isIFC(name string, data []byte) bool {
	if strings.EqualFold(filepath.Ext(name), ".ifc") {
		return true
	}
	head := data
	if len(head) > 64 {
		head = head[:64]
	}
	return bytes.HasPrefix(bytes.TrimSpace(head), []byte("ISO-10303-21"))
}

// transcode converts a payload declared in a non-UTF-8 charset.
func transcode(data []byte, enc string) ([]byte, error) {
	if enc == "" || isUTF8(enc) {
		return data, nil
	}
	e, err := htmlindex.Get(enc)
	if err != nil {
		return nil, fmt.Errorf("unsupported encoding %q: %w", enc, err)
	}
	out, _, err := transform.Bytes(e.NewDecoder(), data)
	if err != nil {
		return nil, fmt.Errorf("transcode from %s: %w", enc, err)
	}
	return out, nil
}

func isUTF8(enc string) bool {
	switch strings.ToLower(strings.ReplaceAll(enc, "-", "")) {
	case "utf8", "utf8bom":
		return true
	}
	return false
}

func isEmpty(root *node) bool {
	switch root.kind {
	case objectNode:
		return len(root.fields) == 0
	case arrayNode:
		return len(root.items) == 0
	}
	return false
}

// isFlat reports whether the document lists components: a top-level key
// naming a component type with an array value, or a top-level array of
// objects carrying a type field.
func isFlat(root *node) bool {
	switch root.kind {
	case objectNode:
		for _, f := range root.fields {
			if _, ok := ResolveType(f.key); ok && f.val.kind == arrayNode {
				return true
			}
		}
	case arrayNode:
		for _, it := range root.items {
			if v, _, ok := it.get(typeKeys...); ok {
				if s, ok := v.text(); ok && s != "" {
					return true
				}
			}
		}
	}
	return false
}

type builder struct {
	cat          *Catalog
	jurisdiction string
}

func (b *builder) add(r *Record) {
	if err := b.cat.add(r); err != nil {
		b.cat.skip(err)
	}
}

func (b *builder) skipf(format string, args ...any) {
	b.cat.skip(fmt.Errorf("%w: "+format, append([]any{ErrMalformedRecord}, args...)...))
}

func (b *builder) flat(root *node) {
	if root.kind == arrayNode {
		for i, it := range root.items {
			path := fmt.Sprintf("[%d]", i)
			if it.kind != objectNode {
				b.skipf("%s: not an object", path)
				continue
			}
			var s string
			if v, _, ok := it.get(typeKeys...); ok {
				s, _ = v.text()
			}
			if strings.TrimSpace(s) == "" {
				b.skipf("%s: no component type", path)
				continue
			}
			b.add(b.component(it, TypeOf(s), path, true))
		}
		return
	}

	for _, f := range root.fields {
		switch f.val.kind {
		case arrayNode:
			t, known := ResolveType(f.key)
			if !known && !hasObject(f.val) {
				continue
			}
			if !known {
				t = TypeOf(f.key)
			}
			for i, it := range f.val.items {
				path := fmt.Sprintf("%s[%d]", f.key, i)
				if it.kind != objectNode {
					b.skipf("%s: not an object", path)
					continue
				}
				b.add(b.component(it, t, path, false))
			}
		case objectNode:
			// Requirement trees may sit next to component lists.
			b.walk(f.val, []string{f.key})
		}
	}
}

func hasObject(n *node) bool {
	for _, it := range n.items {
		if it.kind == objectNode {
			return true
		}
	}
	return false
}

// component builds a component record. typed is set when the object's own
// type field chose t; otherwise a "type" field is read as a subtype tag.
func (b *builder) component(n *node, t ComponentType, path string, typed bool) *Record {
	r := &Record{Kind: ComponentKind, Type: t, ID: path}
	hint := unitOf(n)
	for _, f := range n.fields {
		k := SnakeCase(f.key)
		s, _ := f.val.text()
		switch {
		case in(idKeys, k):
			if s != "" {
				r.ID = s
			}
		case k == "type" && !typed:
			r.Tag = strings.ToLower(strings.TrimSpace(s))
		case in(typeKeys, k):
		case in(tagKeys, k):
			r.Tag = strings.ToLower(strings.TrimSpace(s))
		case in(nameKeys, k):
			r.Name = s
		case in(descKeys, k):
			r.Description = s
		case in(jurisdictionKeys, k):
			r.Jurisdiction = NormalizeJurisdiction(s)
		case in(refKeys, k):
			r.CodeReference = s
		case in(unitKeys, k):
		default:
			appendAttributes(&r.Attributes, k, f.val, hint)
		}
	}
	if r.Jurisdiction == "" {
		r.Jurisdiction = b.jurisdiction
	}
	return r
}

// appendAttributes flattens n into dst. Property containers ("properties",
// "quantities", ...) vanish from names; other nested objects prefix them.
func appendAttributes(dst *[]Attribute, name string, n *node, hint string) {
	if n.kind == objectNode {
		prefix := name
		if in(nestedKeys, name) {
			prefix = ""
		}
		if u := unitOf(n); u != "" {
			hint = u
		}
		for _, f := range n.fields {
			k := SnakeCase(f.key)
			if in(unitKeys, k) {
				continue
			}
			if prefix != "" {
				k = prefix + "_" + k
			}
			appendAttributes(dst, k, f.val, hint)
		}
		return
	}
	if v, ok := valueOf(name, n, hint); ok {
		*dst = append(*dst, Attribute{Name: name, Value: v})
	}
}

// unitOf returns a recognized unit declared by a "unit" field of n.
func unitOf(n *node) string {
	v, _, ok := n.get(unitKeys...)
	if !ok {
		return ""
	}
	s, _ := v.text()
	sym, _, ok := units.Lookup(strings.TrimSpace(s))
	if !ok {
		return ""
	}
	return sym
}

func valueOf(name string, n *node, hint string) (Value, bool) {
	switch n.kind {
	case boolNode:
		return BoolOf(n.flag), true
	case numberNode:
		return numberValue(name, n.num, hint), true
	case stringNode:
		return textValue(name, n.str, hint), true
	case arrayNode:
		s, ok := n.text()
		if !ok {
			return Value{}, false
		}
		return TextOf(s), true
	}
	return Value{}, false
}

// numberValue attaches a unit to a bare number: the declared unit when its
// kind fits the attribute, otherwise the attribute's default unit.
func numberValue(name string, f float64, hint string) Value {
	unit := DefaultUnit(name)
	if hint != "" {
		_, hk, _ := units.Lookup(hint)
		_, dk, ok := units.Lookup(unit)
		if !ok || hk == dk {
			unit = hint
		}
	}
	if unit != "" {
		if q, err := units.FromValue(f, unit); err == nil {
			return QuantityOf(q)
		}
	}
	return NumberOf(f)
}

func textValue(name, s, hint string) Value {
	s = strings.TrimSpace(s)
	q, err := units.Parse(s)
	if err == nil {
		return QuantityOf(q)
	}
	if errors.Is(err, units.ErrUnrecognizedUnit) {
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return numberValue(name, f, hint)
		}
		return TextOf(s)
	}
	switch strings.ToLower(s) {
	case "true", "yes":
		return BoolOf(true)
	case "false", "no":
		return BoolOf(false)
	}
	return TextOf(s)
}

// tree walks a requirement tree. It fails when no leaf is found.
func (b *builder) tree(root *node) bool {
	if root.kind != objectNode && root.kind != arrayNode {
		return false
	}
	return b.walk(root, nil) > 0
}

// walk visits n depth-first and returns the number of leaves seen.
func (b *builder) walk(n *node, path []string) int {
	switch n.kind {
	case objectNode:
		if d, _, ok := n.get(descKeys...); ok {
			b.requirement(n, d, path)
			return 1
		}
		count := 0
		for _, f := range n.fields {
			count += b.walk(f.val, append(path[:len(path):len(path)], f.key))
		}
		return count
	case arrayNode:
		count := 0
		for i, it := range n.items {
			p := append([]string(nil), path...)
			idx := fmt.Sprintf("[%d]", i)
			if len(p) == 0 {
				p = []string{idx}
			} else {
				p[len(p)-1] += idx
			}
			count += b.walk(it, p)
		}
		return count
	}
	return 0
}

func stripIndex(seg string) string {
	if i := strings.IndexByte(seg, '['); i >= 0 {
		return seg[:i]
	}
	return seg
}

func (b *builder) requirement(n, desc *node, path []string) {
	id := strings.Join(path, ".")
	if desc.kind != stringNode {
		b.skipf("%s: description is not a string", id)
		return
	}
	if id == "" {
		id = "$"
	}
	r := &Record{Kind: RequirementKind, ID: id, Description: strings.TrimSpace(desc.str)}

	if v, _, ok := n.get(appliesKeys...); ok {
		if s, ok := v.text(); ok && s != "" {
			r.Type = TypeOf(s)
		}
	}
	typeAt := -1
	if r.Type == AnyType {
		for i, seg := range path {
			if t, ok := ResolveType(stripIndex(seg)); ok {
				r.Type, typeAt = t, i
				break
			}
		}
	}
	if r.Type == AnyType {
		b.skipf("%s: no component type in path", id)
		return
	}
	if typeAt >= 0 {
		var cat, tag []string
		for _, seg := range path[:typeAt] {
			cat = append(cat, stripIndex(seg))
		}
		for _, seg := range path[typeAt+1:] {
			tag = append(tag, stripIndex(seg))
		}
		r.Category = strings.ToLower(strings.Join(cat, "."))
		r.Tag = strings.ToLower(strings.Join(tag, "."))
	}

	if v, _, ok := n.get(jurisdictionKeys...); ok {
		s, _ := v.text()
		r.Jurisdiction = NormalizeJurisdiction(s)
	}
	if r.Jurisdiction == "" {
		for i, seg := range path {
			if i == typeAt {
				continue
			}
			if j, ok := ResolveJurisdiction(stripIndex(seg)); ok {
				r.Jurisdiction = j.ID
				break
			}
		}
	}
	if r.Jurisdiction == "" {
		r.Jurisdiction = b.jurisdiction
	}

	hint := unitOf(n)
	consumed := map[string]bool{}
	if c, ok := explicitConstraint(n, hint); ok {
		r.Constraints = append(r.Constraints, c)
		for _, k := range []string{"attribute", "comparator", "operator", "value", "threshold"} {
			consumed[k] = true
		}
	}
	for _, f := range n.fields {
		k := SnakeCase(f.key)
		s, _ := f.val.text()
		switch {
		case consumed[k], in(descKeys, k), in(idKeys, k), in(unitKeys, k), in(appliesKeys, k), in(jurisdictionKeys, k):
		case in(refKeys, k):
			r.CodeReference = s
		case in(nameKeys, k):
			r.Name = s
		default:
			if c, ok := constraintOf(k, f.val, hint); ok {
				r.Constraints = append(r.Constraints, c)
			} else {
				appendAttributes(&r.Attributes, k, f.val, hint)
			}
		}
	}
	if len(r.Constraints) == 0 {
		r.Constraints = inferConstraints(r.Description)
	}
	b.add(r)
}

// explicitConstraint reads {"attribute": ..., "comparator": ..., "value": ...}.
func explicitConstraint(n *node, hint string) (Clause, bool) {
	a, _, ok := n.get("attribute")
	if !ok {
		return Clause{}, false
	}
	op, _, ok := n.get("comparator", "operator")
	if !ok {
		return Clause{}, false
	}
	val, _, ok := n.get("value", "threshold")
	if !ok {
		return Clause{}, false
	}
	attrText, _ := a.text()
	opText, _ := op.text()
	cmp, ok := ParseComparator(opText)
	if !ok || attrText == "" {
		return Clause{}, false
	}
	attr := SnakeCase(attrText)
	switch cmp {
	case HasMaterial:
		s, ok := val.text()
		return Clause{Attribute: attr, Comparator: cmp, Value: TextOf(s)}, ok
	case IsBoolean:
		v, ok := valueOf(attr, val, hint)
		return Clause{Attribute: attr, Comparator: cmp, Value: v}, ok && v.Kind == BoolValue
	}
	v, ok := valueOf(attr, val, hint)
	return Clause{Attribute: attr, Comparator: cmp, Value: v}, ok && v.Kind == QuantityValue
}

var boundPrefixes = []struct {
	prefix, suffix string
	cmp            Comparator
}{
	{"min_", "_min", AtLeast},
	{"minimum_", "_minimum", AtLeast},
	{"max_", "_max", AtMost},
	{"maximum_", "_maximum", AtMost},
}

// constraintOf turns a leaf field into a constraint: "min_thickness" gives
// thickness ≥ value, "max_riser_height" gives riser_height ≤ value,
// "materials" gives has-material, booleans give a flag, plain quantities
// give equality.
func constraintOf(k string, n *node, hint string) (Clause, bool) {
	attr, cmp := k, Equal
	for _, bp := range boundPrefixes {
		if strings.HasPrefix(k, bp.prefix) {
			attr, cmp = strings.TrimPrefix(k, bp.prefix), bp.cmp
			break
		}
		if strings.HasSuffix(k, bp.suffix) {
			attr, cmp = strings.TrimSuffix(k, bp.suffix), bp.cmp
			break
		}
	}
	if attr == "material" || attr == "materials" {
		s, ok := n.text()
		return Clause{Attribute: "material", Comparator: HasMaterial, Value: TextOf(s)}, ok && s != ""
	}
	v, ok := valueOf(attr, n, hint)
	if !ok {
		return Clause{}, false
	}
	switch v.Kind {
	case QuantityValue:
		return Clause{Attribute: attr, Comparator: cmp, Value: v}, true
	case BoolValue:
		return Clause{Attribute: attr, Comparator: IsBoolean, Value: v}, cmp == Equal
	case TextValue:
		// "8 inches for concrete, 6 inches for CMU"
		if cmp != Equal {
			if ms := units.Extract(v.Raw); len(ms) > 0 {
				return Clause{Attribute: attr, Comparator: cmp, Value: QuantityOf(ms[0].Quantity)}, true
			}
		}
	}
	return Clause{}, false
}

var (
	atLeastWords = []string{"minimum", "at least", "not less than", "no less than", "min."}
	atMostWords  = []string{"maximum", "at most", "not exceed", "no more than", "not more than", "max."}
)

// inferConstraints reads constraints out of requirement prose such as
// "Minimum thickness for external walls is 230 mm".
func inferConstraints(desc string) []Clause {
	mentions := units.Extract(desc)
	if len(mentions) == 0 {
		return nil
	}
	folded := Fold(desc)
	cmp := Equal
	switch {
	case containsAny(folded, atLeastWords):
		cmp = AtLeast
	case containsAny(folded, atMostWords):
		cmp = AtMost
	}

	tokens := strings.FieldsFunc(folded, func(r rune) bool { return !unicode.IsLetter(r) && !unicode.IsDigit(r) })
	var named AttributeDef
	for i := range tokens {
		if p, ok := MatchAt(attributePhrases, tokens, i); ok && p.Value.DefaultUnit != "" {
			named = p.Value
			break
		}
	}

	var out []Clause
	for _, m := range mentions {
		attr := named.Name
		if _, k, ok := units.Lookup(named.DefaultUnit); !ok || k != m.Quantity.Kind {
			attr = AttributeForKind(m.Quantity.Kind)
		}
		if attr == "" {
			continue
		}
		out = append(out, Clause{Attribute: attr, Comparator: cmp, Value: QuantityOf(m.Quantity)})
	}
	return out
}

func containsAny(s string, words []string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}
