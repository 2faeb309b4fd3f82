package catalog

import (
	"sort"
	"strings"
)

// Template lists what an IFC entity is expected to carry, so that callers
// can show which attributes a component is missing.
type Template struct {
	Entity        string            `json:"entity"`
	Type          ComponentType     `json:"type"`
	Properties    []string          `json:"properties"`
	Quantities    []string          `json:"quantities"`
	Relationships []string          `json:"relationships"`
	Units         map[string]string `json:"units"`
}

var propertyUnits = map[string]string{
	"Height":      "mm",
	"Width":       "mm",
	"Length":      "mm",
	"Depth":       "mm",
	"Thickness":   "mm",
	"Area":        "m²",
	"Volume":      "m³",
	"Weight":      "kg",
	"LoadBearing": "boolean",
	"FireRating":  "hours",
}

var templates = []Template{
	{
		Entity: "IfcWall", Type: Wall,
		Properties:    []string{"Height", "Width", "Length", "Material", "FireRating", "LoadBearing"},
		Quantities:    []string{"NetVolume", "GrossVolume", "NetSideArea", "GrossSideArea"},
		Relationships: []string{"ContainedInStructure", "HasOpenings", "ConnectedTo"},
	},
	{
		Entity: "IfcBeam", Type: Beam,
		Properties:    []string{"Length", "Material", "CrossSectionArea", "LoadBearing"},
		Quantities:    []string{"NetVolume", "GrossVolume", "NetWeight"},
		Relationships: []string{"ContainedInStructure", "ConnectedTo"},
	},
	{
		Entity: "IfcColumn", Type: Column,
		Properties:    []string{"Height", "Material", "CrossSectionArea", "LoadBearing"},
		Quantities:    []string{"NetVolume", "GrossVolume", "NetWeight"},
		Relationships: []string{"ContainedInStructure", "ConnectedTo"},
	},
	{
		Entity: "IfcSlab", Type: Slab,
		Properties:    []string{"Thickness", "Material", "LoadBearing"},
		Quantities:    []string{"NetVolume", "GrossVolume", "NetArea", "GrossArea"},
		Relationships: []string{"ContainedInStructure", "HasOpenings"},
	},
}

func withUnits(t Template) Template {
	t.Units = map[string]string{}
	for _, p := range append(append([]string{}, t.Properties...), t.Quantities...) {
		for name, u := range propertyUnits {
			if strings.HasSuffix(p, name) {
				t.Units[p] = u
			}
		}
	}
	return t
}

// Templates returns every known entity template, sorted by entity name.
func Templates() []Template {
	out := make([]Template, 0, len(templates))
	for _, t := range templates {
		out = append(out, withUnits(t))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Entity < out[j].Entity })
	return out
}

// TemplateFor returns the template of a component type or IFC entity name.
func TemplateFor(s string) (Template, bool) {
	t := TypeOf(s)
	for _, tpl := range templates {
		if tpl.Type == t {
			return withUnits(tpl), true
		}
	}
	return Template{}, false
}

// Missing lists template properties a component record does not carry.
func (t Template) Missing(r *Record) []string {
	var out []string
	for _, p := range t.Properties {
		if _, ok := r.Lookup(SnakeCase(p)); !ok {
			out = append(out, p)
		}
	}
	return out
}
