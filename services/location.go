package services

import (
	"strings"

	"javea-listings/models"
)

// AreaRule maps a keyword found in normalized location text to an area slug.
type AreaRule struct {
	Keyword string
	Slug    string
}

// areaRules is scanned top to bottom and the first keyword contained in the
// text wins, regardless of where it appears in the text. Keywords are in
// normalized form. Multi-word and specific keywords must stay above the
// generic ones at the bottom (arenal, marina, port, beach).
var areaRules = []AreaRule{
	{"cumbres del tosalet", "tosalet"},
	{"el tosalet", "tosalet"},
	{"tosalet", "tosalet"},
	{"cala granadella", "granadella"},
	{"granadella", "granadella"},
	{"balcon al mar", "balcon-al-mar"},
	{"cap marti", "cap-marti"},
	{"casco antiguo", "casco-antiguo"},
	{"historic center", "casco-antiguo"},
	{"costa nova", "costa-nova"},
	{"cala blanca", "cala-blanca"},
	{"la lluca", "la-lluca"},
	{"la corona", "la-corona"},
	{"puerta fenicia", "puerta-fenicia"},
	{"villes del vent", "villes-del-vent"},
	{"portitxol", "portitxol"},
	{"montgo", "montgo"},
	{"gracia", "gracia"},
	{"adsubia", "adsubia"},
	{"pinosol", "pinosol"},
	{"toscamar", "toscamar"},
	{"piver", "piver"},
	{"rafalet", "rafalet"},
	{"capsades", "capsades"},
	{"cansalades", "cansalades"},
	{"senioles", "senioles"},
	{"playa arenal", "arenal"},
	{"arenal", "arenal"},
	{"marina", "puerto"},
	{"port", "puerto"},
	{"beach", "arenal"},
}

// AreaRules returns a copy of the ordered area table.
func AreaRules() []AreaRule {
	out := make([]AreaRule, len(areaRules))
	copy(out, areaRules)
	return out
}

// KnownAreas returns the set of slugs the extractor can produce.
func KnownAreas() map[string]struct{} {
	set := make(map[string]struct{}, len(areaRules))
	for _, r := range areaRules {
		set[r.Slug] = struct{}{}
	}
	return set
}

// municipalityRule maps a normalized spelling to the municipality name.
type municipalityRule struct {
	keyword string
	name    string
}

var municipalityRules = []municipalityRule{
	{"javea", "Javea"},
	{"denia", "Denia"},
	{"dénia", "Denia"},
	{"dènia", "Denia"},
	{"moraira", "Moraira"},
	{"benitachell", "Benitachell"},
	{"benitatxell", "Benitachell"},
	{"jesus pobre", "Jesus Pobre"},
	{"jesús pobre", "Jesus Pobre"},
	{"teulada", "Teulada"},
	{"gata de gorgos", "Gata de Gorgos"},
	{"pedreguer", "Pedreguer"},
	{"ondara", "Ondara"},
	{"calpe", "Calpe"},
	{"calp", "Calpe"},
}

// LocationExtractor derives municipality and area from free text.
type LocationExtractor struct {
	defaultMunicipality string
}

// NewLocationExtractor creates an extractor for the given default municipality.
func NewLocationExtractor(defaultMunicipality string) *LocationExtractor {
	if defaultMunicipality == "" {
		defaultMunicipality = "Javea"
	}
	return &LocationExtractor{defaultMunicipality: defaultMunicipality}
}

// DefaultMunicipality is the municipality used when none is detected.
func (e *LocationExtractor) DefaultMunicipality() string {
	return e.defaultMunicipality
}

// Extract returns the default municipality and the slug of the first area
// rule whose keyword occurs in the normalized text. The slug is empty when
// nothing matches.
func (e *LocationExtractor) Extract(locationText string) (municipality, areaSlug string) {
	return e.defaultMunicipality, matchArea(Normalize(locationText))
}

// ExtractListing resolves the location of a listing from its location field
// ("Municipality, Area") and title. A municipality named in the title wins
// over the location field. The title's area is only used when the location
// field has none.
func (e *LocationExtractor) ExtractListing(title, locationText string) models.ResolvedLocation {
	loc := models.ResolvedLocation{Municipality: e.defaultMunicipality}

	parts := strings.Split(locationText, ",")
	if muni := matchMunicipality(Normalize(parts[0])); muni != "" {
		loc.Municipality = muni
	}
	if slug := matchArea(Normalize(locationText)); slug != "" {
		loc.AreaSlug = slug
		if len(parts) >= 2 {
			loc.AreaDisplay = strings.TrimSpace(strings.Join(parts[1:], ","))
		}
	}

	normalizedTitle := Normalize(title)
	if muni := matchMunicipality(normalizedTitle); muni != "" {
		loc.Municipality = muni
	}
	if loc.AreaSlug == "" {
		loc.AreaSlug = matchArea(normalizedTitle)
	}
	return loc
}

func matchArea(normalized string) string {
	if normalized == "" {
		return ""
	}
	for _, r := range areaRules {
		if strings.Contains(normalized, r.Keyword) {
			return r.Slug
		}
	}
	return ""
}

func matchMunicipality(normalized string) string {
	if normalized == "" {
		return ""
	}
	for _, r := range municipalityRules {
		if strings.Contains(normalized, r.keyword) {
			return r.name
		}
	}
	return ""
}

// stripMunicipality drops comma-separated parts of normalized text that are
// just the municipality, e.g. "javea, cansalades" -> "cansalades".
func stripMunicipality(normalized, municipality string) string {
	muni := Normalize(municipality)
	var kept []string
	for _, p := range strings.Split(normalized, ",") {
		p = strings.TrimSpace(p)
		if p == "" || p == muni {
			continue
		}
		kept = append(kept, p)
	}
	return strings.Join(kept, ", ")
}
