package session

import (
	"github.com/hazyhaar/docudata/pkg/catalog"
	"github.com/hazyhaar/docudata/pkg/match"
	"github.com/hazyhaar/docudata/pkg/query"
	"github.com/hazyhaar/docudata/pkg/units"
)

// Options control one search.
type Options struct {
	Jurisdiction string
	System       units.System
	Limit        int
}

// Interpretation is how the query text was understood.
type Interpretation struct {
	Target       catalog.ComponentType `json:"target,omitempty"`
	Clauses      []string              `json:"clauses"`
	Jurisdiction string                `json:"jurisdiction,omitempty"`
	Keywords     []string              `json:"keywords"`
}

// Response is the answer to a search.
type Response struct {
	Query          string         `json:"query"`
	Interpretation Interpretation `json:"interpretation"`
	Results        []match.View   `json:"results"`
	Total          int            `json:"total"`
	Warnings       []string       `json:"warnings,omitempty"`
}

// Query parses text, ranks the catalog against it and renders the results.
func Query(cat *catalog.Catalog, text string, opts Options) Response {
	in := query.Parse(text)
	results := match.Match(cat, in, match.Options{Jurisdiction: opts.Jurisdiction, Limit: opts.Limit})

	interp := Interpretation{
		Target:       in.Target,
		Clauses:      make([]string, len(in.Clauses)),
		Jurisdiction: in.Jurisdiction,
		Keywords:     in.Keywords,
	}
	for i, c := range in.Clauses {
		interp.Clauses[i] = c.String()
	}
	if interp.Keywords == nil {
		interp.Keywords = []string{}
	}
	return Response{
		Query:          text,
		Interpretation: interp,
		Results:        match.Views(results, opts.System),
		Total:          len(results),
		Warnings:       in.Warnings,
	}
}
