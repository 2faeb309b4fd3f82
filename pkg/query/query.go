// Package query turns a free-text search such as "fire rated doors in
// california wider than 36 in" into a structured Intent: a target component
// type, attribute filter clauses, a jurisdiction and residual keywords.
package query

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/hazyhaar/docudata/pkg/catalog"
	"github.com/hazyhaar/docudata/pkg/units"
)

// Intent is the parsed form of a query.
type Intent struct {
	Raw          string                `json:"raw"`
	Target       catalog.ComponentType `json:"target"`
	Clauses      []catalog.Clause      `json:"clauses"`
	Jurisdiction string                `json:"jurisdiction,omitempty"`
	Keywords     []string              `json:"keywords"`
	Warnings     []string              `json:"warnings,omitempty"`
}

// Empty reports an intent with nothing to rank by. A jurisdiction alone
// still narrows the catalog but does not score it.
func (in Intent) Empty() bool {
	return in.Target.IsAny() && len(in.Clauses) == 0 && len(in.Keywords) == 0
}

type role int

const (
	free role = iota
	typeRole
	jurisdictionRole
	attributeRole
	clauseRole
)

type span struct {
	start, end int
	def        catalog.AttributeDef
}

type posClause struct {
	pos    int
	clause catalog.Clause
}

type parser struct {
	toks     []string
	roles    []role
	clauses  []posClause
	warnings []string
	warned   map[int]bool
}

// Parse interprets text. It never fails: unparseable fragments fall back to
// keywords and are reported in Intent.Warnings.
func Parse(text string) Intent {
	p := &parser{toks: tokenize(text), warned: map[int]bool{}}
	p.roles = make([]role, len(p.toks))
	in := Intent{Raw: text, Target: catalog.AnyType}

	if ph, at, ok := find(p, catalog.TypePhrases()); ok {
		in.Target = ph.Value
		p.mark(at, len(ph.Tokens), typeRole)
	}
	if ph, at, ok := find(p, catalog.JurisdictionPhrases()); ok {
		in.Jurisdiction = ph.Value
		p.mark(at, len(ph.Tokens), jurisdictionRole)
	}

	p.booleans()
	p.materials()
	spans := p.attributeSpans()
	p.comparators(spans)
	p.implicit(spans)
	p.standalone()

	sort.SliceStable(p.clauses, func(i, j int) bool { return p.clauses[i].pos < p.clauses[j].pos })
	for _, c := range p.clauses {
		in.Clauses = append(in.Clauses, c.clause)
	}
	in.Keywords = p.residual()
	in.Warnings = p.warnings
	return in
}

// masked returns the tokens with claimed ones blanked out so phrase tables
// only match free text.
func (p *parser) masked() []string {
	out := make([]string, len(p.toks))
	for i, t := range p.toks {
		if p.roles[i] == free {
			out[i] = t
		} else {
			out[i] = "\x00"
		}
	}
	return out
}

func (p *parser) isFree(i int) bool { return i >= 0 && i < len(p.toks) && p.roles[i] == free }

func (p *parser) mark(at, n int, r role) {
	for i := at; i < at+n && i < len(p.roles); i++ {
		p.roles[i] = r
	}
}

func (p *parser) add(pos int, c catalog.Clause) {
	p.clauses = append(p.clauses, posClause{pos: pos, clause: c})
}

func (p *parser) warnAt(pos int, format string, args ...any) {
	if p.warned[pos] {
		return
	}
	p.warned[pos] = true
	p.warnings = append(p.warnings, fmt.Sprintf(format, args...))
}

// find returns the first phrase occurrence scanning left to right; at each
// position the table order decides (tables are longest first).
func find[T any](p *parser, phrases []catalog.Phrase[T]) (catalog.Phrase[T], int, bool) {
	toks := p.masked()
	for i := range toks {
		if ph, ok := catalog.MatchAt(phrases, toks, i); ok {
			return ph, i, true
		}
	}
	return catalog.Phrase[T]{}, 0, false
}

// quantityAt reads "<number> <unit>" starting at token j, preferring a
// two-word unit ("sq ft"). end is the index after the consumed tokens; on
// failure only the number is consumed.
func (p *parser) quantityAt(j int) (q units.Quantity, end int, err error) {
	if !p.isFree(j) || !isNumber(p.toks[j]) {
		return units.Quantity{}, j, units.ErrNotQuantity
	}
	for n := 2; n >= 1; n-- {
		if j+n >= len(p.toks) {
			continue
		}
		unit := p.toks[j+1 : j+1+n]
		usable := true
		for k := range unit {
			if !p.isFree(j+1+k) || isNumber(unit[k]) {
				usable = false
			}
		}
		if !usable {
			continue
		}
		got, perr := units.Parse(p.toks[j] + " " + strings.Join(unit, " "))
		if perr == nil {
			return got, j + 1 + n, nil
		}
		if n == 1 {
			err = perr
		}
	}
	if err == nil {
		_, err = units.Parse(p.toks[j])
	}
	return units.Quantity{}, j + 1, err
}

func (p *parser) dropUnit(pos int, err error) {
	var ue *units.UnitError
	if errors.As(err, &ue) && ue.Suffix != "" {
		p.warnAt(pos, "unrecognized unit %q in %q; clause dropped", ue.Suffix, ue.Raw)
	}
}

var negations = map[string]bool{"non": true, "not": true}

// booleans reads flag phrases: "load bearing", "non load bearing".
func (p *parser) booleans() {
	for i := range p.toks {
		ph, ok := catalog.MatchAt(catalog.BooleanPhrases(), p.masked(), i)
		if !ok {
			continue
		}
		start, flag := i, true
		if p.isFree(i-1) && negations[p.toks[i-1]] {
			start, flag = i-1, false
		}
		p.mark(start, i+len(ph.Tokens)-start, clauseRole)
		p.add(start, catalog.Clause{Attribute: ph.Value, Comparator: catalog.IsBoolean, Value: catalog.BoolOf(flag)})
	}
}

var materialMarkers = []catalog.Phrase[struct{}]{
	{Tokens: []string{"made", "of"}},
	{Tokens: []string{"made", "from"}},
	{Tokens: []string{"built", "of"}},
	{Tokens: []string{"built", "from"}},
	{Tokens: []string{"constructed", "of"}},
	{Tokens: []string{"constructed", "from"}},
	{Tokens: []string{"material"}},
	{Tokens: []string{"materials"}},
}

var fillers = map[string]bool{"of": true, "is": true, "=": true, "are": true}

// materials reads "made of brick" and "material concrete".
func (p *parser) materials() {
	for i := range p.toks {
		m, ok := catalog.MatchAt(materialMarkers, p.masked(), i)
		if !ok {
			continue
		}
		j := i + len(m.Tokens)
		if p.isFree(j) && fillers[p.toks[j]] {
			j++
		}
		var value string
		n := 0
		if ph, ok := catalog.MatchAt(catalog.MaterialPhrases(), p.masked(), j); ok {
			value, n = ph.Value, len(ph.Tokens)
		} else if p.isFree(j) && !stopwords[p.toks[j]] && !isNumber(p.toks[j]) && !isSymbol(p.toks[j]) {
			value, n = p.toks[j], 1
		}
		if value == "" {
			continue
		}
		p.mark(i, j+n-i, clauseRole)
		p.add(i, catalog.Clause{Attribute: "material", Comparator: catalog.HasMaterial, Value: catalog.TextOf(value)})
	}
}

// attributeSpans finds attribute keywords among free tokens, greedily and
// longest first ("fire rating" over "rating").
func (p *parser) attributeSpans() []span {
	toks := p.masked()
	var out []span
	for i := 0; i < len(toks); {
		if ph, ok := catalog.MatchAt(catalog.AttributePhrases(), toks, i); ok {
			out = append(out, span{start: i, end: i + len(ph.Tokens), def: ph.Value})
			i += len(ph.Tokens)
			continue
		}
		i++
	}
	return out
}

func (p *parser) spanUsable(s span) bool {
	for i := s.start; i < s.end; i++ {
		if p.roles[i] != free && p.roles[i] != attributeRole {
			return false
		}
	}
	return true
}

// fits reports whether an attribute can hold a quantity of kind k.
func fits(def catalog.AttributeDef, k units.Kind) bool {
	if def.Name == "material" {
		return false
	}
	if def.DefaultUnit == "" {
		return true
	}
	_, dk, _ := units.Lookup(def.DefaultUnit)
	return dk == k
}

// attributeFor picks the attribute a clause spanning [start, end) refers
// to: the nearest preceding keyword, else the nearest following one, else
// the attribute implied by the unit kind. A comparator that names its own
// attribute ("wider than") only yields to a keyword right before it.
func (p *parser) attributeFor(spans []span, start, end int, k units.Kind, implied string) string {
	for i := len(spans) - 1; i >= 0; i-- {
		s := spans[i]
		if s.end <= start && p.spanUsable(s) {
			if (implied == "" || s.end == start) && fits(s.def, k) {
				p.mark(s.start, s.end-s.start, attributeRole)
				return s.def.Name
			}
			break
		}
	}
	if implied != "" && k == units.Length {
		for _, s := range spans {
			if s.start == end && s.def.Name == implied && p.spanUsable(s) {
				p.mark(s.start, s.end-s.start, attributeRole)
			}
		}
		return implied
	}
	for _, s := range spans {
		if s.start >= end && p.spanUsable(s) {
			if fits(s.def, k) {
				p.mark(s.start, s.end-s.start, attributeRole)
				return s.def.Name
			}
			break
		}
	}
	return catalog.AttributeForKind(k)
}

// comparison is a comparator phrase, with the length attribute it names
// when it names one.
type comparison struct {
	cmp     catalog.Comparator
	implied string
}

var comparatorPhrases = []catalog.Phrase[comparison]{
	{Tokens: []string{"greater", "than", "or", "equal", "to"}, Value: comparison{cmp: catalog.AtLeast}},
	{Tokens: []string{"more", "than", "or", "equal", "to"}, Value: comparison{cmp: catalog.AtLeast}},
	{Tokens: []string{"less", "than", "or", "equal", "to"}, Value: comparison{cmp: catalog.AtMost}},
	{Tokens: []string{"no", "more", "than"}, Value: comparison{cmp: catalog.AtMost}},
	{Tokens: []string{"not", "more", "than"}, Value: comparison{cmp: catalog.AtMost}},
	{Tokens: []string{"no", "less", "than"}, Value: comparison{cmp: catalog.AtLeast}},
	{Tokens: []string{"not", "less", "than"}, Value: comparison{cmp: catalog.AtLeast}},
	{Tokens: []string{"not", "exceeding"}, Value: comparison{cmp: catalog.AtMost}},
	{Tokens: []string{"greater", "than"}, Value: comparison{cmp: catalog.AtLeast}},
	{Tokens: []string{"more", "than"}, Value: comparison{cmp: catalog.AtLeast}},
	{Tokens: []string{"larger", "than"}, Value: comparison{cmp: catalog.AtLeast}},
	{Tokens: []string{"higher", "than"}, Value: comparison{catalog.AtLeast, "height"}},
	{Tokens: []string{"taller", "than"}, Value: comparison{catalog.AtLeast, "height"}},
	{Tokens: []string{"wider", "than"}, Value: comparison{catalog.AtLeast, "width"}},
	{Tokens: []string{"thicker", "than"}, Value: comparison{catalog.AtLeast, "thickness"}},
	{Tokens: []string{"longer", "than"}, Value: comparison{catalog.AtLeast, "length"}},
	{Tokens: []string{"over"}, Value: comparison{cmp: catalog.AtLeast}},
	{Tokens: []string{"above"}, Value: comparison{cmp: catalog.AtLeast}},
	{Tokens: []string{">="}, Value: comparison{cmp: catalog.AtLeast}},
	{Tokens: []string{"≥"}, Value: comparison{cmp: catalog.AtLeast}},
	{Tokens: []string{">"}, Value: comparison{cmp: catalog.AtLeast}},
	{Tokens: []string{"less", "than"}, Value: comparison{cmp: catalog.AtMost}},
	{Tokens: []string{"fewer", "than"}, Value: comparison{cmp: catalog.AtMost}},
	{Tokens: []string{"smaller", "than"}, Value: comparison{cmp: catalog.AtMost}},
	{Tokens: []string{"lower", "than"}, Value: comparison{catalog.AtMost, "height"}},
	{Tokens: []string{"shorter", "than"}, Value: comparison{catalog.AtMost, "height"}},
	{Tokens: []string{"narrower", "than"}, Value: comparison{catalog.AtMost, "width"}},
	{Tokens: []string{"thinner", "than"}, Value: comparison{catalog.AtMost, "thickness"}},
	{Tokens: []string{"under"}, Value: comparison{cmp: catalog.AtMost}},
	{Tokens: []string{"below"}, Value: comparison{cmp: catalog.AtMost}},
	{Tokens: []string{"up", "to"}, Value: comparison{cmp: catalog.AtMost}},
	{Tokens: []string{"<="}, Value: comparison{cmp: catalog.AtMost}},
	{Tokens: []string{"≤"}, Value: comparison{cmp: catalog.AtMost}},
	{Tokens: []string{"<"}, Value: comparison{cmp: catalog.AtMost}},
	{Tokens: []string{"at", "least"}, Value: comparison{cmp: catalog.AtLeast}},
	{Tokens: []string{"minimum", "of"}, Value: comparison{cmp: catalog.AtLeast}},
	{Tokens: []string{"at", "most"}, Value: comparison{cmp: catalog.AtMost}},
	{Tokens: []string{"maximum", "of"}, Value: comparison{cmp: catalog.AtMost}},
	{Tokens: []string{"exactly"}, Value: comparison{cmp: catalog.Equal}},
	{Tokens: []string{"equal", "to"}, Value: comparison{cmp: catalog.Equal}},
	{Tokens: []string{"equals"}, Value: comparison{cmp: catalog.Equal}},
	{Tokens: []string{"="}, Value: comparison{cmp: catalog.Equal}},
}

// comparators reads "<comparator phrase> <number> <unit>" clauses. "greater
// than" is inclusive: a 3.0 m wall satisfies "greater than 3m".
func (p *parser) comparators(spans []span) {
	for i := 0; i < len(p.toks); i++ {
		ph, ok := catalog.MatchAt(comparatorPhrases, p.masked(), i)
		if !ok {
			continue
		}
		numAt := i + len(ph.Tokens)
		if !p.isFree(numAt) || !isNumber(p.toks[numAt]) {
			continue
		}
		start := i
		p.mark(start, len(ph.Tokens), clauseRole)
		q, end, err := p.quantityAt(numAt)
		i = end - 1
		if err != nil {
			p.dropUnit(numAt, err)
			continue
		}
		attr := p.attributeFor(spans, start, end, q.Kind, ph.Value.implied)
		p.mark(numAt, end-numAt, clauseRole)
		if attr == "" {
			p.warnAt(numAt, "no attribute named for %s; clause dropped", q.Original())
			continue
		}
		p.add(start, catalog.Clause{Attribute: attr, Comparator: ph.Value.cmp, Value: catalog.QuantityOf(q)})
	}
}

var bounds = map[string]catalog.Comparator{
	"min": catalog.AtLeast, "minimum": catalog.AtLeast,
	"max": catalog.AtMost, "maximum": catalog.AtMost,
}

// implicit reads clauses with no comparator phrase: "door width 36 in",
// "fire rating of 2 hours", "2 hour fire rating", "min thickness 200mm".
func (p *parser) implicit(spans []span) {
	for _, s := range spans {
		if !p.spanUsable(s) {
			continue
		}
		if p.implicitAfter(s) {
			continue
		}
		p.implicitBefore(s)
	}
}

func (p *parser) implicitAfter(s span) bool {
	j := s.end
	if p.isFree(j) && fillers[p.toks[j]] {
		j++
	}
	if !p.isFree(j) || !isNumber(p.toks[j]) {
		return false
	}
	q, end, err := p.quantityAt(j)
	if err != nil {
		p.dropUnit(j, err)
		return true
	}
	attr := s.def.Name
	if !fits(s.def, q.Kind) {
		if attr = catalog.AttributeForKind(q.Kind); attr == "" {
			return false
		}
	}
	start, cmp := s.start, catalog.Equal
	if c, ok := bounds[p.tokAt(s.start-1)]; ok && p.isFree(s.start-1) {
		start, cmp = s.start-1, c
	}
	p.mark(start, s.start-start, clauseRole)
	p.mark(s.start, s.end-s.start, attributeRole)
	p.mark(s.end, end-s.end, clauseRole)
	p.add(start, catalog.Clause{Attribute: attr, Comparator: cmp, Value: catalog.QuantityOf(q)})
	return true
}

func (p *parser) implicitBefore(s span) {
	for k := s.start - 3; k <= s.start-2; k++ {
		if !p.isFree(k) || !isNumber(p.toks[k]) {
			continue
		}
		q, end, err := p.quantityAt(k)
		if err != nil || end != s.start || !fits(s.def, q.Kind) {
			continue
		}
		p.mark(k, end-k, clauseRole)
		p.mark(s.start, s.end-s.start, attributeRole)
		p.add(k, catalog.Clause{Attribute: s.def.Name, Comparator: catalog.Equal, Value: catalog.QuantityOf(q)})
		return
	}
}

// standalone handles quantities with no attribute keyword. Units that imply
// an attribute ("2 hours" is a fire rating) become equality clauses;
// lengths are ambiguous and dropped.
func (p *parser) standalone() {
	for i := 0; i < len(p.toks); i++ {
		if !p.isFree(i) || !isNumber(p.toks[i]) {
			continue
		}
		q, end, err := p.quantityAt(i)
		if err != nil {
			p.dropUnit(i, err)
			continue
		}
		attr := catalog.AttributeForKind(q.Kind)
		p.mark(i, end-i, clauseRole)
		if attr == "" {
			p.warnAt(i, "no attribute named for %s; clause dropped", q.Original())
		} else {
			p.add(i, catalog.Clause{Attribute: attr, Comparator: catalog.Equal, Value: catalog.QuantityOf(q)})
		}
		i = end - 1
	}
}

func (p *parser) tokAt(i int) string {
	if i < 0 || i >= len(p.toks) {
		return ""
	}
	return p.toks[i]
}

var stopwords = func() map[string]bool {
	m := map[string]bool{}
	for _, w := range strings.Fields(`
		a an the and or of for with without in on at to by from into per
		is are be been being was were has have having do does
		i me my we our you your it its this that these those there their which what where who whose
		show find list get give display search tell need want please can could should must shall will
		all any every some each than then also only
		greater more less fewer larger smaller higher lower taller shorter wider narrower thicker thinner longer
		least most exactly equal equals over under above below up not no non min max minimum maximum
		made built constructed`) {
		m[w] = true
	}
	return m
}()

// residual collects unclaimed tokens as keywords, without stopwords,
// symbols, stray single letters or duplicates.
func (p *parser) residual() []string {
	var out []string
	seen := map[string]bool{}
	for i, t := range p.toks {
		if p.roles[i] != free || stopwords[t] || isSymbol(t) || seen[t] {
			continue
		}
		if rs := []rune(t); len(rs) == 1 && !isNumber(t) {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}
