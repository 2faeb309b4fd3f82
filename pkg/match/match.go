// Package match scores catalog records against a parsed query and returns
// them best first.
package match

import (
	"sort"
	"strings"

	"github.com/hazyhaar/docudata/pkg/catalog"
	"github.com/hazyhaar/docudata/pkg/query"
)

// Score weights.
const (
	ClauseWeight  = 10
	KeywordWeight = 1
	// TargetWeight rewards a record of the type the query names, so "show me
	// wall requirements" lists walls even when no other word matches.
	TargetWeight = 1
)

// Options narrow a match beyond what the query text says.
type Options struct {
	// Jurisdiction is the selector value. It applies on top of any
	// jurisdiction named in the query.
	Jurisdiction string
	// Limit caps the result count; 0 means no cap.
	Limit int
}

// Result is one ranked record.
type Result struct {
	Record   *catalog.Record
	Score    float64
	Outcomes []catalog.Outcome
	Keywords []string // residual keywords found in the record
}

// Matched returns the clauses the record satisfied.
func (r Result) Matched() []catalog.Clause {
	var out []catalog.Clause
	for _, o := range r.Outcomes {
		if o.Matched {
			out = append(out, o.Clause)
		}
	}
	return out
}

// Eligible applies the type and jurisdiction filters.
func Eligible(r *catalog.Record, in query.Intent, opts Options) bool {
	if !in.Target.IsAny() && r.Type != in.Target {
		return false
	}
	if !catalog.Compatible(r.Jurisdiction, in.Jurisdiction) {
		return false
	}
	return catalog.Compatible(r.Jurisdiction, catalog.NormalizeJurisdiction(opts.Jurisdiction))
}

// Match ranks the catalog against an intent. Records of another type or an
// explicitly different jurisdiction are excluded; the rest score
// ClauseWeight per satisfied clause, KeywordWeight per keyword found in the
// record text and TargetWeight for matching a named type. The record text
// covers its tag and name as well as its type and description, so a
// keyword can hit on either. Zero scores are
// dropped and ties keep catalog order. An empty intent returns every
// eligible record, unscored, in catalog order.
func Match(cat *catalog.Catalog, in query.Intent, opts Options) []Result {
	var out []Result
	for _, r := range cat.Records() {
		if !Eligible(r, in, opts) {
			continue
		}
		if in.Empty() {
			out = append(out, Result{Record: r})
			continue
		}
		res := score(r, in)
		if res.Score > 0 {
			out = append(out, res)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	if opts.Limit > 0 && len(out) > opts.Limit {
		out = out[:opts.Limit]
	}
	return out
}

func score(r *catalog.Record, in query.Intent) Result {
	res := Result{Record: r}
	if !in.Target.IsAny() {
		res.Score += TargetWeight
	}
	for _, c := range in.Clauses {
		o := r.Evaluate(c)
		res.Outcomes = append(res.Outcomes, o)
		if o.Matched {
			res.Score += ClauseWeight
		}
	}
	text := r.Text()
	for _, kw := range in.Keywords {
		if strings.Contains(text, catalog.Fold(kw)) {
			res.Score += KeywordWeight
			res.Keywords = append(res.Keywords, kw)
		}
	}
	return res
}
