package units

import (
	"strings"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

// Clean prepares raw OCR output for Normalize: compatibility-folds the text
// (fullwidth digits, ligatures), lowercases it and joins all lines into a
// single space-separated line.
func Clean(raw string) string {
	t := norm.NFKC.String(raw)
	t = strings.ToLower(t)
	return strings.Join(strings.Fields(t), " ")
}

// Snippet shortens s to at most max bytes plus an ellipsis, never splitting
// a rune.
func Snippet(s string, max int) string {
	if len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "…"
}
