// Package textnorm folds free text into the comparison form used by the lexical classifier.
package textnorm

import (
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Normalize lowercases text, decomposes it (NFD) and drops combining marks,
// so "Ânion" becomes "anion". The result is stable under a second pass.
func Normalize(text string) string {
	if text == "" {
		return ""
	}

	// Transformers carry state; build a fresh chain per call.
	t := transform.Chain(
		cases.Lower(language.Portuguese),
		norm.NFD,
		runes.Remove(runes.In(unicode.Mn)),
	)

	out, _, err := transform.String(t, text)
	if err != nil {
		// Only reachable on invalid UTF-8; fall back to lowercasing alone.
		return cases.Lower(language.Portuguese).String(text)
	}
	return out
}
