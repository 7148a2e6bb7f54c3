// Package resolve groups vendor records that likely describe the same
// real-world business, using a fuzzy key built from normalized names, cities,
// and rounded coordinates. It powers coverage reporting across sources; the
// storage layer applies its own stricter exact key.
package resolve

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// stopTokens lists generic business-suffix tokens dropped during name
// normalization. Legal-form abbreviations plus Italian filler words that
// carry no identity signal.
var stopTokens = map[string]struct{}{
	"srl": {}, "spa": {}, "sas": {}, "snc": {},
	"ltd": {}, "co": {}, "inc": {},
	"di": {}, "del": {}, "della": {}, "dei": {}, "degli": {},
	"studio": {}, "the": {},
}

// asciiPunct mirrors the classic ASCII punctuation set.
const asciiPunct = "!\"#$%&'()*+,-./:;<=>?@[\\]^_`{|}~"

// stripDiacritics removes combining marks after NFD decomposition, so
// "Cefalù" and "Cefalu" normalize identically.
var stripDiacritics = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// normalizeText lowercases, strips diacritics, replaces punctuation with
// spaces, and collapses whitespace.
func normalizeText(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return ""
	}

	if out, _, err := transform.String(stripDiacritics, s); err == nil {
		s = out
	}

	s = strings.Map(func(r rune) rune {
		if strings.ContainsRune(asciiPunct, r) {
			return ' '
		}
		return r
	}, s)

	return strings.Join(strings.Fields(s), " ")
}

// NormalizeName standardizes a vendor name for fuzzy matching. On top of the
// shared text normalization it drops generic business-suffix tokens, so
// "Fioreria Rossi SRL" and "fioreria di rossi" key the same.
// The result is stable under re-normalization.
func NormalizeName(name string) string {
	s := normalizeText(name)
	if s == "" {
		return ""
	}

	fields := strings.Fields(s)
	kept := fields[:0]
	for _, tok := range fields {
		if _, drop := stopTokens[tok]; !drop {
			kept = append(kept, tok)
		}
	}
	return strings.Join(kept, " ")
}

// NormalizeCity standardizes a city string for fuzzy matching. Cities keep
// all their tokens; the suffix stoplist applies to names only.
func NormalizeCity(city string) string {
	return normalizeText(city)
}
