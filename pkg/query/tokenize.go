package query

import (
	"strconv"
	"strings"
	"unicode"

	"github.com/hazyhaar/docudata/pkg/catalog"
)

// tokenize folds text and splits it into words, numbers and comparison
// symbols. Numbers are split from a trailing unit ("230mm" -> "230", "mm")
// but letters keep trailing digits ("ft2"). Hyphens and other punctuation
// separate tokens, except a minus sign opening a number and a comma
// grouping thousands ("1,000"). A quote right after a number is kept as an
// inch or foot mark.
func tokenize(text string) []string {
	var (
		toks []string
		cur  []rune
		num  bool
	)
	flush := func() {
		if len(cur) > 0 {
			toks = append(toks, string(cur))
		}
		cur, num = cur[:0], false
	}

	rs := []rune(catalog.Fold(text))
	for i := 0; i < len(rs); i++ {
		r := rs[i]
		nextDigit := i+1 < len(rs) && unicode.IsDigit(rs[i+1])
		switch {
		case unicode.IsDigit(r):
			if len(cur) == 0 {
				num = true
			}
			cur = append(cur, r)
		case r == '.' && nextDigit && (num || len(cur) == 0):
			num = true
			cur = append(cur, r)
		case r == '-' && nextDigit && len(cur) == 0:
			num = true
			cur = append(cur, r)
		case r == ',' && num && thousands(rs[i+1:]) && !strings.ContainsRune(string(cur), '.'):
			// thousands separator, dropped
		case unicode.IsLetter(r) || r == '²' || r == '³':
			if num {
				flush()
			}
			cur = append(cur, r)
		case r == '"' || r == '\'':
			wasNum := num
			flush()
			if wasNum {
				toks = append(toks, string(r))
			}
		case r == '>' || r == '<':
			flush()
			if i+1 < len(rs) && rs[i+1] == '=' {
				toks = append(toks, string(r)+"=")
				i++
			} else {
				toks = append(toks, string(r))
			}
		case r == '=' || r == '≥' || r == '≤':
			flush()
			toks = append(toks, string(r))
		default:
			flush()
		}
	}
	flush()
	return toks
}

// thousands reports whether rs opens with exactly three digits.
func thousands(rs []rune) bool {
	if len(rs) < 3 {
		return false
	}
	for _, r := range rs[:3] {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return len(rs) == 3 || !unicode.IsDigit(rs[3])
}

func isNumber(tok string) bool {
	_, err := strconv.ParseFloat(tok, 64)
	return err == nil
}

func isSymbol(tok string) bool {
	switch tok {
	case ">", "<", ">=", "<=", "=", "≥", "≤", `"`, "'":
		return true
	}
	return false
}
