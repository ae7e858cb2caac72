package parser

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var (
	stripAccents = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	multiSpace   = regexp.MustCompile(`\s+`)
)

// Normalize prepares a field for hashing and comparison: strips diacritics,
// collapses whitespace and uppercases. "São  Paulo" → "SAO PAULO".
func Normalize(s string) string {
	base, _, err := transform.String(stripAccents, strings.TrimSpace(s))
	if err != nil {
		base = strings.TrimSpace(s)
	}
	base = multiSpace.ReplaceAllString(base, " ")
	return strings.ToUpper(base)
}
