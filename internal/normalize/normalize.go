// Package normalize holds the canonical string forms used for reference
// lookups. Extract files and reference tables disagree on casing,
// whitespace and separators, so every lookup key passes through here on
// both sides of the comparison.
package normalize

import (
	"strings"
	"unicode"
)

// Plate reduces a vehicle plate to uppercase letters and digits.
// "lv-1234 ab" and "LV1234AB" normalize to the same key.
func Plate(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(unicode.ToUpper(r))
		}
	}
	return b.String()
}

// CardNumber trims surrounding whitespace and uppercases a card number.
func CardNumber(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

// PAN trims and uppercases a primary account number. When stripEquals is
// set, a trailing '=' track separator is removed first; some terminal
// firmware includes it and some does not.
func PAN(s string, stripEquals bool) string {
	s = strings.TrimSpace(s)
	if stripEquals {
		s = strings.TrimSuffix(s, "=")
	}
	return strings.ToUpper(s)
}

// Key lowercases and trims a generic business key for case-insensitive
// index lookups.
func Key(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
