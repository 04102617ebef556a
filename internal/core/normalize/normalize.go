// Package normalize canonicalizes entity labels and strips characters that
// storage backends reject.
package normalize

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// SanitizeString removes NUL and the C0, DEL and C1 control characters,
// keeping tab, newline and carriage return.
func SanitizeString(s string) string {
	if strings.IndexFunc(s, isControl) < 0 {
		return s
	}
	return strings.Map(func(r rune) rune {
		if isControl(r) {
			return -1
		}
		return r
	}, s)
}

func isControl(r rune) bool {
	return unicode.IsControl(r) && r != '\t' && r != '\n' && r != '\r'
}

// Label returns the canonical form of a raw entity label: sanitized,
// whitespace collapsed and trimmed, each token title-cased unless it is an
// all-uppercase acronym of two or more characters. Empty input yields "".
func Label(raw string) string {
	words := strings.Fields(SanitizeString(raw))
	if len(words) == 0 {
		return ""
	}
	for i, w := range words {
		if isAcronym(w) {
			continue
		}
		words[i] = capitalize(w)
	}
	return strings.Join(words, " ")
}

// Key is the case-insensitive identity of a label within a node type.
func Key(raw string) string {
	return strings.ToLower(Label(raw))
}

func isAcronym(w string) bool {
	if utf8.RuneCountInString(w) < 2 {
		return false
	}
	cased := false
	for _, r := range w {
		if unicode.IsLower(r) {
			return false
		}
		if unicode.IsUpper(r) || unicode.IsTitle(r) {
			cased = true
		}
	}
	return cased
}

func capitalize(w string) string {
	first, size := utf8.DecodeRuneInString(w)
	return string(unicode.ToTitle(first)) + strings.ToLower(w[size:])
}
