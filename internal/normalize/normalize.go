// SPDX-License-Identifier: MIT

// Package normalize provides text-cleaning helpers for inbound user input.
// The conversation core treats its output as opaque normalized text.
package normalize

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Token normalizes a string token for matching:
// - trims Unicode whitespace + invisible edge characters
// - lowercases for case-insensitive comparisons
func Token(s string) string {
	return strings.ToLower(strings.TrimFunc(s, func(r rune) bool {
		return unicode.IsSpace(r) ||
			r == '\u200B' || // Zero Width Space
			r == '\u200C' || // Zero Width Non-Joiner
			r == '\u200D' || // Zero Width Joiner
			r == '\uFEFF' // Zero Width Non-Breaking Space (BOM)
	}))
}

var stripper = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// StripDiacritics removes combining marks so accented Spanish input
// ("conexión", "compú") matches its plain form.
func StripDiacritics(s string) string {
	out, _, err := transform.String(stripper, s)
	if err != nil {
		return s
	}
	return out
}

// Text produces the canonical normalized form of free text: trimmed,
// lowercased, diacritics stripped, inner whitespace collapsed.
func Text(s string) string {
	return strings.Join(strings.Fields(StripDiacritics(Token(s))), " ")
}
