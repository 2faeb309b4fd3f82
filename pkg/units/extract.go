package units

import (
	"regexp"
	"strings"
)

// Mention is a quantity found inside free text.
type Mention struct {
	Quantity Quantity
	Text     string // the matched "<number> <unit>" span
	Start    int
	End      int
}

// mentionRe captures a number followed by one or two unit-looking words.
// The second word lets "5.7 sq ft" resolve before falling back to "sq".
var mentionRe = regexp.MustCompile(`(\d+(?:\.\d+)?)\s*([\p{L}²³"'^]+\.?)(?:\s+([\p{L}²³]+\.?))?`)

// Extract returns every quantity mentioned in text, in order of appearance.
// Numbers followed by an unknown word are ignored.
func Extract(text string) []Mention {
	var out []Mention
	for _, idx := range mentionRe.FindAllStringSubmatchIndex(text, -1) {
		num := text[idx[2]:idx[3]]
		first := text[idx[4]:idx[5]]

		if idx[6] >= 0 {
			second := text[idx[6]:idx[7]]
			if q, err := Parse(num + " " + first + " " + second); err == nil {
				out = append(out, Mention{Quantity: q, Text: text[idx[0]:idx[7]], Start: idx[0], End: idx[7]})
				continue
			}
		}
		if q, err := Parse(num + " " + first); err == nil {
			out = append(out, Mention{Quantity: q, Text: text[idx[0]:idx[5]], Start: idx[0], End: idx[5]})
			continue
		}
		// "0.23m." style trailing punctuation.
		if trimmed := strings.TrimRight(first, "."); trimmed != first {
			if q, err := Parse(num + " " + trimmed); err == nil {
				end := idx[4] + len(trimmed)
				out = append(out, Mention{Quantity: q, Text: text[idx[0]:end], Start: idx[0], End: end})
			}
		}
	}
	return out
}
