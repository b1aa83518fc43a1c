package utils

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// NormalizeAnswer folds case, strips combining diacritics, trims and collapses
// internal whitespace. Used for fill-in keys at snapshot time and for student
// answers at scoring time, so both sides must go through the same function.
func NormalizeAnswer(s string) string {
	folded := cases.Fold().String(s)

	stripper := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	stripped, _, err := transform.String(stripper, folded)
	if err != nil {
		stripped = folded
	}

	return strings.Join(strings.Fields(stripped), " ")
}

// SquashLabel reduces a label to lowercase letters and digits only, so that
// "300-Fragen", "300 fragen" and "300Fragen" compare equal.
func SquashLabel(s string) string {
	normalized := NormalizeAnswer(s)

	var b strings.Builder
	b.Grow(len(normalized))
	for _, r := range normalized {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}
