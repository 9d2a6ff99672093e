// Package textx provides small text utilities used across the project.
package textx

import (
	"sort"
	"strings"
	"unicode"
)

// SanitizeText removes control characters except tab/newline/CR and trims spaces.
func SanitizeText(s string) string {
	// strip control chars outside tab/newline/carriage return
	var b strings.Builder
	for _, r := range s {
		if r == '\n' || r == '\r' || r == '\t' || (r >= 32 && r != 127) {
			b.WriteRune(r)
		}
	}
	return strings.TrimSpace(b.String())
}

// NormalizeLabel lower-cases a label and strips everything that is not a
// letter or digit, so "Fire-Fly!" and "firefly" normalize identically.
func NormalizeLabel(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// NotableSymbols extracts the sorted set of non-textual symbols (pictographs,
// arrows, math and other symbol runes) present in s.
func NotableSymbols(s string) []string {
	seen := make(map[string]bool)
	for _, r := range s {
		if !isNotable(r) {
			continue
		}
		seen[string(r)] = true
	}
	out := make([]string, 0, len(seen))
	for sym := range seen {
		out = append(out, sym)
	}
	sort.Strings(out)
	return out
}

func isNotable(r rune) bool {
	if unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsSpace(r) {
		return false
	}
	// Plain ASCII punctuation is too common to be a distinguishing symbol.
	if r < 128 {
		return false
	}
	return unicode.IsSymbol(r) || unicode.IsMark(r) || unicode.In(r, unicode.So, unicode.Sk, unicode.Po)
}

// Tokens lower-cases s, splits on non-alphanumeric runes and returns the
// sorted set of tokens longer than one rune.
func Tokens(s string) []string {
	fields := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	seen := make(map[string]bool)
	for _, f := range fields {
		if len([]rune(f)) > 1 {
			seen[f] = true
		}
	}
	out := make([]string, 0, len(seen))
	for tok := range seen {
		out = append(out, tok)
	}
	sort.Strings(out)
	return out
}
