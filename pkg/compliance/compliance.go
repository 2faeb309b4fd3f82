// Package compliance checks catalog components against code requirements.
//
// A component is checked against every requirement of its type whose tag and
// jurisdiction are compatible with it. Each requirement constraint is looked
// up on the component: a violated constraint makes the component
// non-compliant, a missing or incomparable value only raises a warning.
package compliance

import (
	"fmt"
	"strings"

	"github.com/hazyhaar/docudata/pkg/catalog"
	"github.com/hazyhaar/docudata/pkg/units"
)

// Status is the verdict for one component.
type Status string

const (
	Compliant    Status = "compliant"
	NonCompliant Status = "non_compliant"
	Warning      Status = "warnings"
)

// Finding is the verdict for one component with its supporting detail.
type Finding struct {
	Component       catalog.ComponentType `json:"component"`
	ID              string                `json:"id"`
	Status          Status                `json:"status"`
	Requirements    []string              `json:"requirements"`
	Details         []string              `json:"details"`
	Recommendations []string              `json:"recommendations"`
}

// Report groups findings by status. Components whose type no requirement
// covers are listed in Unchecked.
type Report struct {
	Compliant    []Finding `json:"compliant"`
	NonCompliant []Finding `json:"non_compliant"`
	Warnings     []Finding `json:"warnings"`
	Unchecked    []string  `json:"unchecked,omitempty"`
}

// Total is the number of components with a verdict.
func (r Report) Total() int {
	return len(r.Compliant) + len(r.NonCompliant) + len(r.Warnings)
}

func (r *Report) add(f Finding) {
	switch f.Status {
	case Compliant:
		r.Compliant = append(r.Compliant, f)
	case NonCompliant:
		r.NonCompliant = append(r.NonCompliant, f)
	default:
		r.Warnings = append(r.Warnings, f)
	}
}

// Options tune a check.
type Options struct {
	// Jurisdiction restricts the requirements consulted; tagged requirements
	// of other jurisdictions are ignored.
	Jurisdiction string
	// System selects the units used in messages.
	System units.System
}

// Check evaluates components against requirements. Records of the wrong kind
// in either list are ignored.
func Check(components, requirements []*catalog.Record, opts Options) Report {
	report := Report{
		Compliant:    []Finding{},
		NonCompliant: []Finding{},
		Warnings:     []Finding{},
	}
	filter := catalog.NormalizeJurisdiction(opts.Jurisdiction)

	byType := map[catalog.ComponentType][]*catalog.Record{}
	for _, req := range requirements {
		if !req.IsRequirement() || !catalog.Compatible(req.Jurisdiction, filter) {
			continue
		}
		byType[req.Type] = append(byType[req.Type], req)
	}

	for _, comp := range components {
		if comp.IsRequirement() {
			continue
		}
		candidates, ok := byType[comp.Type]
		if !ok {
			report.Unchecked = append(report.Unchecked, comp.ID)
			continue
		}
		report.add(check(comp, applicable(comp, candidates), opts.System))
	}
	return report
}

// applicable keeps the requirements that apply to the component's tag and
// jurisdiction. Untagged requirements apply to every subtype.
func applicable(comp *catalog.Record, reqs []*catalog.Record) []*catalog.Record {
	var out []*catalog.Record
	for _, req := range reqs {
		if !catalog.Compatible(req.Jurisdiction, comp.Jurisdiction) {
			continue
		}
		if req.Tag != "" && !tagMatches(comp.Tag, req.Tag) {
			continue
		}
		out = append(out, req)
	}
	return out
}

// tagMatches compares a component subtype with a requirement tag, which may
// be a dotted path ("external.load_bearing").
func tagMatches(compTag, reqTag string) bool {
	if compTag == "" {
		return false
	}
	c, r := catalog.FoldKey(compTag), catalog.FoldKey(reqTag)
	return c == r || strings.HasPrefix(r, c+" ") || strings.HasPrefix(c, r+" ")
}

func check(comp *catalog.Record, reqs []*catalog.Record, system units.System) Finding {
	f := Finding{
		Component:       comp.Type,
		ID:              comp.ID,
		Status:          Compliant,
		Requirements:    []string{},
		Details:         []string{},
		Recommendations: []string{},
	}
	if len(reqs) == 0 {
		f.Status = Warning
		f.Details = append(f.Details, fmt.Sprintf("no requirement covers subtype %q", comp.Tag))
		f.Recommendations = append(f.Recommendations, "Verify component classification")
		return f
	}

	checked, warned := 0, false
	for _, req := range reqs {
		if len(req.Constraints) == 0 {
			continue
		}
		f.Requirements = append(f.Requirements, req.ID)
		for _, c := range req.Constraints {
			a, ok := comp.Lookup(c.Attribute)
			if !ok {
				warned = true
				f.Details = append(f.Details, fmt.Sprintf("%s: no data, required %s", c.Attribute, bound(c, system)))
				continue
			}
			holds, comparable := c.Test(a.Value)
			switch {
			case !comparable:
				warned = true
				f.Details = append(f.Details, fmt.Sprintf("%s: cannot compare %q with %s", c.Attribute, a.Value.Stored(), bound(c, system)))
			case !holds:
				f.Status = NonCompliant
				checked++
				f.Details = append(f.Details, fmt.Sprintf("%s: required %s, found %s", c.Attribute, bound(c, system), a.Value.Display(system)))
				f.Recommendations = append(f.Recommendations, fmt.Sprintf("Adjust %s to meet %s per %s", c.Attribute, bound(c, system), reference(req)))
			default:
				checked++
			}
		}
	}
	if f.Status == NonCompliant {
		return f
	}
	if warned || checked == 0 {
		f.Status = Warning
		if checked == 0 && !warned {
			f.Details = append(f.Details, "no checkable constraint applies")
		}
	}
	return f
}

func bound(c catalog.Clause, system units.System) string {
	if c.Comparator == catalog.Equal {
		return c.Value.Display(system)
	}
	return c.Comparator.Symbol() + " " + c.Value.Display(system)
}

func reference(req *catalog.Record) string {
	if req.CodeReference != "" {
		return req.CodeReference
	}
	return req.ID
}
