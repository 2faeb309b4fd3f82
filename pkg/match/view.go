package match

import (
	"github.com/hazyhaar/docudata/pkg/catalog"
	"github.com/hazyhaar/docudata/pkg/units"
)

// AttributeView is one attribute of a result as shown to callers.
type AttributeView struct {
	Name          string `json:"name"`
	StoredValue   string `json:"stored_value"`
	DisplayValue  string `json:"display_value"`
	ClauseMatched bool   `json:"clause_matched"`
}

// View is the presentation form of a Result.
type View struct {
	Type              catalog.ComponentType `json:"type"`
	Kind              catalog.RecordKind    `json:"kind"`
	ID                string                `json:"id"`
	MatchedAttributes []AttributeView       `json:"matched_attributes"`
	Score             float64               `json:"score"`
	Description       string                `json:"description,omitempty"`
	CodeReference     string                `json:"code_reference,omitempty"`
	Jurisdiction      string                `json:"jurisdiction,omitempty"`
}

// View renders the result with quantities in the given unit system. Clause
// outcomes come first, then the remaining attributes of the record.
func (r Result) View(system units.System) View {
	rec := r.Record
	v := View{
		Type:          rec.Type,
		Kind:          rec.Kind,
		ID:            rec.ID,
		Score:         r.Score,
		Description:   rec.Description,
		CodeReference: rec.CodeReference,
		Jurisdiction:  rec.Jurisdiction,
	}
	bounds := map[string]catalog.Comparator{}
	for _, c := range rec.Constraints {
		if _, ok := bounds[c.Attribute]; !ok {
			bounds[c.Attribute] = c.Comparator
		}
	}
	attr := func(name string, val catalog.Value, matched bool) AttributeView {
		av := AttributeView{Name: name, StoredValue: val.Stored(), DisplayValue: val.Display(system), ClauseMatched: matched}
		if cmp, ok := bounds[name]; ok && cmp != catalog.Equal {
			av.StoredValue = cmp.Symbol() + " " + av.StoredValue
			av.DisplayValue = cmp.Symbol() + " " + av.DisplayValue
		}
		return av
	}

	shown := map[string]bool{}
	for _, o := range r.Outcomes {
		if !o.Present || shown[o.Attribute] {
			continue
		}
		shown[o.Attribute] = true
		v.MatchedAttributes = append(v.MatchedAttributes, attr(o.Attribute, o.Stored, o.Matched))
	}
	for _, c := range rec.Constraints {
		if !shown[c.Attribute] {
			shown[c.Attribute] = true
			v.MatchedAttributes = append(v.MatchedAttributes, attr(c.Attribute, c.Value, false))
		}
	}
	for _, a := range rec.Attributes {
		if !shown[a.Name] {
			shown[a.Name] = true
			v.MatchedAttributes = append(v.MatchedAttributes, attr(a.Name, a.Value, false))
		}
	}
	if v.MatchedAttributes == nil {
		v.MatchedAttributes = []AttributeView{}
	}
	return v
}

// Views renders a result list.
func Views(results []Result, system units.System) []View {
	out := make([]View, len(results))
	for i, r := range results {
		out[i] = r.View(system)
	}
	return out
}
