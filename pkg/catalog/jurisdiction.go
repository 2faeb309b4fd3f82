package catalog

import (
	"strings"
)

// Jurisdiction is a governing building-code authority.
type Jurisdiction struct {
	ID            string   `json:"id"`
	Name          string   `json:"name"`
	Abbreviations []string `json:"abbreviations"`
	Code          string   `json:"code"`
	Authority     string   `json:"authority"`
}

// Two-letter abbreviations that collide with common English words (in, me,
// or, ok, hi) are deliberately absent.
var jurisdictions = []Jurisdiction{
	{
		ID: "california", Name: "California", Abbreviations: []string{"ca", "calif"},
		Code: "2022 California Building Code", Authority: "California Building Standards Commission",
	},
	{
		ID: "new-york", Name: "New York", Abbreviations: []string{"ny", "nyc", "new york city"},
		Code: "2022 NYC Building Code", Authority: "NYC Department of Buildings",
	},
	{
		ID: "texas", Name: "Texas", Abbreviations: []string{"tx"},
		Code: "2021 International Building Code with Texas Amendments", Authority: "Texas Department of Licensing and Regulation",
	},
	{
		ID: "florida", Name: "Florida", Abbreviations: []string{"fl", "fla"},
		Code: "2023 Florida Building Code", Authority: "Florida Building Commission",
	},
	{
		ID: "washington", Name: "Washington", Abbreviations: []string{"wa"},
		Code: "2021 International Building Code with Washington Amendments", Authority: "Washington State Building Code Council",
	},
	{
		ID: "illinois", Name: "Illinois", Abbreviations: []string{"il", "chicago"},
		Code: "2019 Chicago Building Code", Authority: "Chicago Department of Buildings",
	},
}

var jurisdictionIndex = func() map[string]int {
	m := make(map[string]int)
	for i, j := range jurisdictions {
		m[FoldKey(j.ID)] = i
		m[FoldKey(j.Name)] = i
		for _, a := range j.Abbreviations {
			m[FoldKey(a)] = i
		}
	}
	return m
}()

var jurisdictionPhrases = func() []Phrase[string] {
	var ps []Phrase[string]
	for key, i := range jurisdictionIndex {
		ps = append(ps, Phrase[string]{Tokens: strings.Fields(key), Value: jurisdictions[i].ID})
	}
	return longestFirst(ps)
}()

// Jurisdictions returns the directory of known jurisdictions.
func Jurisdictions() []Jurisdiction {
	out := make([]Jurisdiction, len(jurisdictions))
	copy(out, jurisdictions)
	return out
}

// ResolveJurisdiction finds a jurisdiction by id, name or abbreviation.
func ResolveJurisdiction(s string) (Jurisdiction, bool) {
	i, ok := jurisdictionIndex[FoldKey(s)]
	if !ok {
		return Jurisdiction{}, false
	}
	return jurisdictions[i], true
}

// JurisdictionPhrases returns every jurisdiction spelling as tokens mapped
// to its id, longest first.
func JurisdictionPhrases() []Phrase[string] { return jurisdictionPhrases }

// NormalizeJurisdiction maps a dataset or selector tag to a canonical id.
// Unknown tags are kept, folded, so that two spellings of the same unknown
// authority still compare equal. "", "all" and "any" mean untagged.
func NormalizeJurisdiction(tag string) string {
	key := FoldKey(tag)
	switch key {
	case "", "all", "any", "*":
		return ""
	}
	if j, ok := ResolveJurisdiction(key); ok {
		return j.ID
	}
	return strings.ReplaceAll(key, " ", "-")
}

// Compatible reports whether a record tagged recordTag is eligible under a
// jurisdiction filter. Untagged records are universal.
func Compatible(recordTag, filter string) bool {
	return filter == "" || recordTag == "" || recordTag == filter
}
