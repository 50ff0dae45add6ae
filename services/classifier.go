package services

import (
	"math"
	"strings"

	"javea-listings/models"
	"javea-listings/utils"
)

// Tier names the rule that classified a pair of listings as duplicates.
type Tier string

const (
	TierNone       Tier = ""
	TierReference  Tier = "reference"
	TierGeospatial Tier = "geospatial"
	TierText       Tier = "text"
)

const earthRadiusMeters = 6371000.0

// ClassifierConfig holds the duplicate thresholds.
type ClassifierConfig struct {
	// MaxDistanceMeters is the exclusive upper bound for a geospatial match.
	MaxDistanceMeters float64
	// SimilarityThreshold is the exclusive lower bound on title word overlap.
	SimilarityThreshold float64
	// PriceTolerance is the inclusive relative price difference for a text match.
	PriceTolerance float64
}

// DefaultClassifierConfig returns the strict thresholds used in production.
func DefaultClassifierConfig() ClassifierConfig {
	return ClassifierConfig{
		MaxDistanceMeters:   5,
		SimilarityThreshold: 0.8,
		PriceTolerance:      0.05,
	}
}

// Classifier decides whether a candidate duplicates an accepted listing.
type Classifier struct {
	cfg    ClassifierConfig
	logger *utils.Logger
}

// NewClassifier creates a Classifier.
func NewClassifier(cfg ClassifierConfig, logger *utils.Logger) *Classifier {
	return &Classifier{cfg: cfg, logger: logger}
}

// Compare runs the tier cascade for one pair and returns the first tier
// that fires, or TierNone.
func (c *Classifier) Compare(candidate, existing *models.Listing) Tier {
	if candidate == nil || existing == nil || candidate.Candidate == nil || existing.Candidate == nil {
		return TierNone
	}
	a, b := candidate.Candidate, existing.Candidate

	ref := strings.TrimSpace(a.SourceReference)
	if ref != "" && ref == strings.TrimSpace(b.SourceReference) {
		return TierReference
	}

	if c.geospatialMatch(candidate, existing) {
		return TierGeospatial
	}

	if c.textMatch(a, b) {
		return TierText
	}
	return TierNone
}

// IsDuplicate reports whether any tier fires for the pair.
func (c *Classifier) IsDuplicate(candidate, existing *models.Listing) bool {
	return c.Compare(candidate, existing) != TierNone
}

// FindDuplicate compares the candidate against accepted in insertion order
// and returns the first match.
func (c *Classifier) FindDuplicate(candidate *models.Listing, accepted []*models.Listing) (*models.Listing, Tier) {
	for _, existing := range accepted {
		if tier := c.Compare(candidate, existing); tier != TierNone {
			c.logger.Debug("[classifier] %s duplicates %s (%s)",
				candidate.Candidate.Ref(), existing.Candidate.Ref(), tier)
			return existing, tier
		}
	}
	return nil, TierNone
}

func (c *Classifier) geospatialMatch(candidate, existing *models.Listing) bool {
	p, q := candidate.Location.Coordinates, existing.Location.Coordinates
	if p == nil || q == nil {
		return false
	}
	a, b := candidate.Candidate, existing.Candidate
	if a.Price <= 0 || a.Price != b.Price || a.Type != b.Type {
		return false
	}
	return Haversine(*p, *q) < c.cfg.MaxDistanceMeters
}

func (c *Classifier) textMatch(a, b *models.ListingCandidate) bool {
	if Normalize(a.LocationText) != Normalize(b.LocationText) {
		return false
	}

	titleA, titleB := Normalize(a.Title), Normalize(b.Title)
	if titleA == "" || titleB == "" {
		return false
	}
	if titleA == titleB && a.Price == b.Price {
		return true
	}

	return TitleSimilarity(titleA, titleB) > c.cfg.SimilarityThreshold &&
		relativePriceDiff(a.Price, b.Price) <= c.cfg.PriceTolerance
}

// TitleSimilarity is the size of the word intersection over the size of the
// larger word set of two normalized titles.
func TitleSimilarity(a, b string) float64 {
	wa, wb := wordSet(a), wordSet(b)
	larger := max(len(wa), len(wb))
	if larger == 0 {
		return 0
	}
	common := 0
	for w := range wa {
		if _, ok := wb[w]; ok {
			common++
		}
	}
	return float64(common) / float64(larger)
}

func relativePriceDiff(a, b int64) float64 {
	hi := max(a, b)
	if hi <= 0 {
		return 0
	}
	diff := a - b
	if diff < 0 {
		diff = -diff
	}
	return float64(diff) / float64(hi)
}

// Haversine returns the great-circle distance between two points in meters.
func Haversine(p, q models.Coordinates) float64 {
	lat1, lat2 := toRadians(p.Lat), toRadians(q.Lat)
	dLat := lat2 - lat1
	dLon := toRadians(q.Lon - p.Lon)

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * earthRadiusMeters * math.Asin(math.Min(1, math.Sqrt(h)))
}

func toRadians(deg float64) float64 {
	return deg * math.Pi / 180
}
