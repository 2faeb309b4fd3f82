package catalog

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var stripAccents = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// Fold lowercases and strips accents (e.g. "Béton Armé" -> "beton arme").
func Fold(s string) string {
	result, _, _ := transform.String(stripAccents, strings.ToLower(s))
	return result
}

// FoldKey folds s and turns '_', '-', '.' and '/' into single spaces, so
// "Light_Fixtures", "light-fixtures" and "light fixtures" share one key.
func FoldKey(s string) string {
	s = strings.Map(func(r rune) rune {
		switch r {
		case '_', '-', '.', '/':
			return ' '
		}
		return r
	}, Fold(s))
	return strings.Join(strings.Fields(s), " ")
}

// SnakeCase canonicalizes an attribute name: "FireRating", "fire-rating" and
// "Fire Rating" all become "fire_rating".
func SnakeCase(s string) string {
	rs := []rune(norm.NFC.String(strings.TrimSpace(s)))
	var b strings.Builder
	for i, r := range rs {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			b.WriteByte('_')
			continue
		}
		if unicode.IsUpper(r) && i > 0 {
			p := rs[i-1]
			nextLower := i+1 < len(rs) && unicode.IsLower(rs[i+1])
			if unicode.IsLower(p) || unicode.IsDigit(p) || (unicode.IsUpper(p) && nextLower) {
				b.WriteByte('_')
			}
		}
		b.WriteRune(r)
	}
	parts := strings.FieldsFunc(Fold(b.String()), func(r rune) bool { return r == '_' })
	return strings.Join(parts, "_")
}
