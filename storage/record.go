package storage

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"javea-listings/models"
)

// PropertyRecord is one row of the public site's properties table.
type PropertyRecord struct {
	ID              string
	Type            string
	Title           string
	TitleEN         string
	TitleRU         string
	Price           int64
	Location        string
	Description     string
	DescriptionEN   string
	DescriptionRU   string
	Images          []string
	Features        []string
	Specs           map[string]any
	SourceURL       string
	SourceReference string
	Status          string
	ScrapedAt       time.Time
	UpdatedAt       time.Time
}

// NewPropertyRecord maps a processed listing onto the table layout. The
// table has no municipality or area columns, so both go into Location and
// the area slug and original type are kept in Specs.
func NewPropertyRecord(l *models.Listing, now time.Time) *PropertyRecord {
	c := l.Candidate

	specs := map[string]any{"original_type": string(c.Type)}
	for key, v := range map[string]*int{
		"bedrooms":     c.Specs.Bedrooms,
		"bathrooms":    c.Specs.Bathrooms,
		"build_size":   c.Specs.BuildSize,
		"plot_size":    c.Specs.PlotSize,
		"terrace_size": c.Specs.TerraceSize,
	} {
		if v != nil {
			specs[key] = *v
		}
	}
	if l.Location.AreaSlug != "" {
		specs["area_slug"] = l.Location.AreaSlug
	}
	if coords := l.Location.Coordinates; coords != nil {
		specs["lat"] = coords.Lat
		specs["lng"] = coords.Lon
	}

	status := c.Status
	if status == "" {
		status = "available"
	}

	return &PropertyRecord{
		ID:              c.ID,
		Type:            c.Type.StoreType(),
		Title:           c.Title,
		TitleEN:         c.Title,
		TitleRU:         l.Translations.Title["ru"],
		Price:           c.Price,
		Location:        l.Location.Display(c.LocationText),
		Description:     c.Description,
		DescriptionEN:   c.Description,
		DescriptionRU:   l.Translations.Description["ru"],
		Images:          nonNil(c.Images),
		Features:        nonNil(c.Features),
		Specs:           specs,
		SourceURL:       c.SourceURL,
		SourceReference: c.SourceReference,
		Status:          status,
		ScrapedAt:       c.ScrapedAt,
		UpdatedAt:       now,
	}
}

// The public site stores Spanish in the untagged columns.
func (r *PropertyRecord) applySpanish(l *models.Listing) {
	if es := l.Translations.Title["es"]; es != "" {
		r.Title = es
	}
	if es := l.Translations.Description["es"]; es != "" {
		r.Description = es
	}
}

// Validate reports whether the record can be uploaded.
func (r *PropertyRecord) Validate() error {
	if strings.TrimSpace(r.ID) == "" {
		return fmt.Errorf("missing id")
	}
	if r.Price <= 0 {
		return fmt.Errorf("%s: missing price", r.ID)
	}
	return nil
}

// Listing converts a stored row back into a listing for reporting.
func (r *PropertyRecord) Listing() *models.Listing {
	c := &models.ListingCandidate{
		ID:              r.ID,
		SourceReference: r.SourceReference,
		SourceURL:       r.SourceURL,
		Title:           r.TitleEN,
		LocationText:    r.Location,
		Price:           r.Price,
		Type:            models.ParsePropertyType(r.Type),
		Description:     r.DescriptionEN,
		Features:        r.Features,
		Images:          r.Images,
		Status:          r.Status,
		ScrapedAt:       r.ScrapedAt,
	}
	if t, ok := r.Specs["original_type"].(string); ok && t != "" {
		c.Type = models.PropertyType(t)
	}

	l := models.NewListing(c, "")
	if i := strings.Index(r.Location, ","); i >= 0 {
		l.Location.Municipality = strings.TrimSpace(r.Location[:i])
		l.Location.AreaDisplay = strings.TrimSpace(r.Location[i+1:])
	} else {
		l.Location.Municipality = strings.TrimSpace(r.Location)
	}
	if slug, ok := r.Specs["area_slug"].(string); ok {
		l.Location.AreaSlug = slug
	}
	lat, okLat := r.Specs["lat"].(float64)
	lng, okLng := r.Specs["lng"].(float64)
	if okLat && okLng {
		l.Location.Coordinates = &models.Coordinates{Lat: lat, Lon: lng}
	}
	return l
}

// PrepareRecords maps listings to records, splitting out the ones that
// fail validation.
func PrepareRecords(listings []*models.Listing, now time.Time) (valid []*PropertyRecord, invalid []error) {
	for _, l := range listings {
		if l == nil || l.Candidate == nil {
			invalid = append(invalid, fmt.Errorf("nil listing"))
			continue
		}
		r := NewPropertyRecord(l, now)
		r.applySpanish(l)
		if err := r.Validate(); err != nil {
			invalid = append(invalid, err)
			continue
		}
		valid = append(valid, r)
	}
	return valid, invalid
}

// encodedColumns returns the JSON-encoded list and object columns.
func (r *PropertyRecord) encodedColumns() (images, features, specs string, err error) {
	b, err := json.Marshal(nonNil(r.Images))
	if err != nil {
		return "", "", "", fmt.Errorf("encode images: %w", err)
	}
	images = string(b)
	if b, err = json.Marshal(nonNil(r.Features)); err != nil {
		return "", "", "", fmt.Errorf("encode features: %w", err)
	}
	features = string(b)
	if b, err = json.Marshal(r.Specs); err != nil {
		return "", "", "", fmt.Errorf("encode specs: %w", err)
	}
	specs = string(b)
	return images, features, specs, nil
}

func (r *PropertyRecord) decodeColumns(images, features, specs string) error {
	if err := json.Unmarshal([]byte(images), &r.Images); err != nil {
		return fmt.Errorf("decode images: %w", err)
	}
	if err := json.Unmarshal([]byte(features), &r.Features); err != nil {
		return fmt.Errorf("decode features: %w", err)
	}
	if err := json.Unmarshal([]byte(specs), &r.Specs); err != nil {
		return fmt.Errorf("decode specs: %w", err)
	}
	return nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
