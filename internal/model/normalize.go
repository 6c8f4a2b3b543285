package model

import (
	"regexp"
	"strings"
)

var (
	nonWordPattern    = regexp.MustCompile(`[^\w\s]`)
	whitespacePattern = regexp.MustCompile(`\s+`)
)

// NormalizeCodeName reduces a code name to its comparison form: lowercase,
// punctuation stripped, internal whitespace collapsed to single spaces.
// Idempotent: NormalizeCodeName(NormalizeCodeName(x)) == NormalizeCodeName(x).
func NormalizeCodeName(name string) string {
	s := strings.ToLower(name)
	s = nonWordPattern.ReplaceAllString(s, "")
	s = whitespacePattern.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}
