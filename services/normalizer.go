package services

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// spellingRule rewrites a regional spelling or alias to its canonical form.
type spellingRule struct {
	variant   string
	canonical string
}

// spellingRules is applied in order; the first matching variant wins.
// No canonical form may contain a variant, otherwise Normalize would not
// reach a fixpoint.
var spellingRules = []spellingRule{
	{"xàbia", "javea"},
	{"xabia", "javea"},
	{"jávea", "javea"},
	{"old town", "casco antiguo"},
	{"pueblo", "casco antiguo"},
	{"arenal beach", "arenal"},
	{"puerto", "port"},
	{"portichol", "portitxol"},
	{"montgó", "montgo"},
	{"cap martí", "cap marti"},
	{"gràcia", "gracia"},
	{"balcón", "balcon"},
}

// maxNormalizePasses bounds the fixpoint loop in Normalize.
const maxNormalizePasses = 8

// Normalize lower-cases and trims text, collapses whitespace and maps the
// Valencian and alias spellings in spellingRules onto their canonical
// Spanish form. Normalize(Normalize(s)) == Normalize(s).
func Normalize(text string) string {
	s := text
	for pass := 0; pass < maxNormalizePasses; pass++ {
		next := normalizeOnce(s)
		if next == s {
			break
		}
		s = next
	}
	return s
}

// normalizeOnce lower-cases before composing: lower-casing can decompose
// (İ becomes i + U+0307), so NFC has to run on the lower-cased text.
func normalizeOnce(s string) string {
	s = collapseSpace(norm.NFC.String(strings.ToLower(s)))
	return applySpellingRules(s)
}

func applySpellingRules(s string) string {
	for _, r := range spellingRules {
		if strings.Contains(s, r.variant) {
			s = strings.ReplaceAll(s, r.variant, r.canonical)
		}
	}
	return s
}

// collapseSpace strips leading/trailing whitespace and collapses internal runs.
func collapseSpace(s string) string {
	return strings.Join(strings.FieldsFunc(s, unicode.IsSpace), " ")
}

// wordSet splits normalized text on whitespace.
func wordSet(s string) map[string]struct{} {
	words := strings.Fields(s)
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		set[w] = struct{}{}
	}
	return set
}
