// Package normalize canonicalizes personal names, committee names, and
// chamber/party/state codes, and derives the comparison keys the matchers use.
package normalize

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var multiSpaceRe = regexp.MustCompile(`\s{2,}`)

var quoteReplacer = strings.NewReplacer(
	"‘", "'",
	"’", "'",
	"“", `"`,
	"”", `"`,
	"\u00a0", " ",
)

// Fold removes diacritics ("Sánchez" → "Sanchez") and normalizes typographic quotes.
func Fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		out = s
	}
	return quoteReplacer.Replace(out)
}

// Key derives a lowercase, folded comparison key that ignores punctuation.
// Hyphens and underscores become spaces so "Hyde-Smith" and "Hyde Smith" compare equal.
func Key(s string) string {
	s = strings.ToLower(Fold(s))
	s = strings.Map(func(r rune) rune {
		switch {
		case unicode.IsLetter(r), unicode.IsDigit(r):
			return r
		case r == '-', r == '_', unicode.IsSpace(r):
			return ' '
		default:
			return -1
		}
	}, s)
	return collapse(s)
}

func collapse(s string) string {
	return strings.TrimSpace(multiSpaceRe.ReplaceAllString(s, " "))
}
