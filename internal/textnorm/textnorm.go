// Package textnorm provides the unicode normalization and tokenization shared
// by the classifier, the similarity matcher, and the dedup tracker. Both sides
// of every comparison must pass through the same pipeline or scores drift.
package textnorm

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Clean lowercases text, strips diacritics, replaces non-alphanumeric runes
// with spaces, and collapses runs of whitespace. The result is empty when the
// input carries no letters or digits.
func Clean(text string) string {
	text = stripDiacritics(text)
	text = strings.ToLower(text)

	var b strings.Builder
	b.Grow(len(text))
	for _, r := range text {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		} else {
			b.WriteByte(' ')
		}
	}

	return strings.Join(strings.Fields(b.String()), " ")
}

// Tokens returns the cleaned text split into tokens.
func Tokens(text string) []string {
	cleaned := Clean(text)
	if cleaned == "" {
		return nil
	}
	return strings.Fields(cleaned)
}

// stripDiacritics decomposes, removes combining marks, and recomposes,
// so "drenaje año" and "drenaje ano" tokenize identically.
func stripDiacritics(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	result, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return result
}
