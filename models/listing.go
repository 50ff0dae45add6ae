package models

import (
	"fmt"
	"math"
	"regexp"
	"strings"
	"time"
)

// PropertyType is the normalised property category of a listing.
type PropertyType string

const (
	TypeApartment  PropertyType = "apartment"
	TypeHouse      PropertyType = "house"
	TypeTownhouse  PropertyType = "townhouse"
	TypePlot       PropertyType = "plot"
	TypeFinca      PropertyType = "finca"
	TypeCommercial PropertyType = "commercial"
)

var idSanitizer = regexp.MustCompile(`[^a-z0-9]+`)

// ParsePropertyType maps the free-text type shown by the source site onto a PropertyType.
// Unknown text falls back to TypeHouse.
func ParsePropertyType(text string) PropertyType {
	lower := strings.ToLower(text)
	switch {
	case containsAny(lower, "apartment", "penthouse", "flat"):
		return TypeApartment
	case containsAny(lower, "townhouse", "town house", "adosado"):
		return TypeTownhouse
	case containsAny(lower, "villa", "house", "chalet"):
		return TypeHouse
	case containsAny(lower, "plot", "land", "terreno"):
		return TypePlot
	case containsAny(lower, "finca", "country"):
		return TypeFinca
	case containsAny(lower, "commercial", "local"):
		return TypeCommercial
	}
	return TypeHouse
}

// StoreType returns the coarse category accepted by the public site's
// properties table: house, plot or investment.
func (t PropertyType) StoreType() string {
	switch t {
	case TypePlot:
		return "plot"
	case TypeCommercial:
		return "investment"
	default:
		return "house"
	}
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

// GenerateID builds a URL-safe listing id from the upstream reference.
// Listings without a reference get a time-based id.
func GenerateID(reference string, now time.Time) string {
	id := strings.Trim(idSanitizer.ReplaceAllString(strings.ToLower(reference), "-"), "-")
	if id == "" {
		return fmt.Sprintf("prop-%d", now.Unix())
	}
	return id
}

// Specs holds the optional numeric facts scraped from the detail page.
type Specs struct {
	Bedrooms    *int `json:"bedrooms"`
	Bathrooms   *int `json:"bathrooms"`
	BuildSize   *int `json:"build_size"`
	PlotSize    *int `json:"plot_size"`
	TerraceSize *int `json:"terrace_size"`
}

// ListingCandidate is a record produced by the scraper. The core never
// mutates it; derived data lives on Listing.
type ListingCandidate struct {
	ID              string       `json:"id"`
	SourceReference string       `json:"source_reference"`
	SourceURL       string       `json:"source_url"`
	Title           string       `json:"title"`
	LocationText    string       `json:"location"`
	Price           int64        `json:"price"`
	Type            PropertyType `json:"type"`
	Description     string       `json:"description"`
	Specs           Specs        `json:"specs"`
	Features        []string     `json:"features"`
	Images          []string     `json:"images"`
	Status          string       `json:"status"`
	ScrapedAt       time.Time    `json:"scraped_at"`
}

// Validate reports records the pipeline cannot work with.
func (c *ListingCandidate) Validate() error {
	if c == nil {
		return fmt.Errorf("nil candidate")
	}
	if c.Price < 0 {
		return fmt.Errorf("candidate %s: negative price %d", c.Ref(), c.Price)
	}
	return nil
}

// Ref returns the best identifier for log lines.
func (c *ListingCandidate) Ref() string {
	switch {
	case c == nil:
		return "<nil>"
	case c.SourceReference != "":
		return c.SourceReference
	case c.ID != "":
		return c.ID
	default:
		return c.SourceURL
	}
}

// Coordinates is a WGS84 point in degrees.
type Coordinates struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Valid reports whether c is a usable lat/lon pair.
func (c Coordinates) Valid() bool {
	if math.IsNaN(c.Lat) || math.IsNaN(c.Lon) {
		return false
	}
	return c.Lat >= -90 && c.Lat <= 90 && c.Lon >= -180 && c.Lon <= 180
}

// ResolvedLocation is the location data the core attaches to a candidate.
type ResolvedLocation struct {
	Municipality string       `json:"municipality"`
	AreaSlug     string       `json:"area,omitempty"`
	AreaDisplay  string       `json:"area_display,omitempty"`
	Coordinates  *Coordinates `json:"coordinates,omitempty"`
}

// Display renders the location the way the public site shows it.
func (l ResolvedLocation) Display(fallback string) string {
	area := l.AreaDisplay
	if area == "" {
		area = l.AreaSlug
	}
	switch {
	case area != "" && l.Municipality != "":
		return l.Municipality + ", " + area
	case fallback != "":
		return fallback
	default:
		return l.Municipality
	}
}

// Translations holds the multilingual text attached after deduplication.
type Translations struct {
	Title       map[string]string `json:"title,omitempty"`
	Description map[string]string `json:"description,omitempty"`
}

// Listing is a candidate plus everything derived from it during a run.
type Listing struct {
	Candidate    *ListingCandidate `json:"candidate"`
	Location     ResolvedLocation  `json:"location"`
	Translations Translations      `json:"translations"`
	Failed       bool              `json:"failed,omitempty"`
	Error        string            `json:"error,omitempty"`
}

// NewListing wraps a candidate with the default municipality.
func NewListing(c *ListingCandidate, municipality string) *Listing {
	return &Listing{
		Candidate: c,
		Location:  ResolvedLocation{Municipality: municipality},
	}
}

// DuplicateMatch records why a candidate was discarded.
type DuplicateMatch struct {
	Candidate *Listing `json:"candidate"`
	Existing  *Listing `json:"existing"`
	Tier      string   `json:"tier"`
}

// RunReport holds the counters of one deduplication pass.
type RunReport struct {
	Processed  int `json:"processed"`
	Accepted   int `json:"accepted"`
	Duplicates int `json:"duplicates"`
	Failed     int `json:"failed"`
	Geocoded   int `json:"geocoded"`
}

// RunResult is the output of one pipeline run.
type RunResult struct {
	Accepted   []*Listing       `json:"accepted"`
	Duplicates []DuplicateMatch `json:"duplicates"`
	Report     RunReport        `json:"report"`
}

// InsightReport holds the summary computed over a set of listings.
type InsightReport struct {
	TotalListings  int
	ByStatus       map[string]int
	ByMunicipality map[string]int
	ByArea         map[string]int
	ByType         map[string]int
	MinPrice       int64
	MaxPrice       int64
	AveragePrice   int64
	MostExpensive  *Listing
	Geocoded       int
	Translated     map[string]int
}
