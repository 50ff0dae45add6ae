package services

import (
	"testing"

	"javea-listings/models"
	"javea-listings/utils"
)

// threeMetersLat is roughly three meters of latitude in degrees.
const threeMetersLat = 0.000027

func listing(ref, title, location string, price int64, typ models.PropertyType, coords *models.Coordinates) *models.Listing {
	l := models.NewListing(&models.ListingCandidate{
		SourceReference: ref,
		Title:           title,
		LocationText:    location,
		Price:           price,
		Type:            typ,
	}, "Javea")
	l.Location.Coordinates = coords
	return l
}

func newTestClassifier() *Classifier {
	return NewClassifier(DefaultClassifierConfig(), utils.NewLogger())
}

func TestClassifierReferenceMatch(t *testing.T) {
	c := newTestClassifier()
	a := listing("REF-100", "Villa with pool", "Javea, Arenal", 450000, models.TypeHouse, nil)
	b := listing(" REF-100 ", "Completely different", "Denia", 99000, models.TypePlot, nil)

	if got := c.Compare(a, b); got != TierReference {
		t.Errorf("Compare: got %q, want %q", got, TierReference)
	}

	empty := listing("", "x", "y", 1, models.TypeHouse, nil)
	if c.IsDuplicate(empty, listing("", "z", "w", 2, models.TypeHouse, nil)) {
		t.Error("empty references must not match")
	}
}

func TestClassifierGeospatialExactPrice(t *testing.T) {
	c := newTestClassifier()
	here := &models.Coordinates{Lat: 38.7700, Lon: 0.1500}
	near := &models.Coordinates{Lat: 38.7700 + threeMetersLat, Lon: 0.1500}

	if d := Haversine(*here, *near); d < 2.5 || d > 3.5 {
		t.Fatalf("fixture distance: got %.2f m, want ~3 m", d)
	}

	a := listing("A-1", "Villa with sea views", "Javea, Cansalades", 320000, models.TypeHouse, here)
	b := listing("B-2", "Detached house near the Montgo", "Javea, Granadella", 320000, models.TypeHouse, near)
	if got := c.Compare(a, b); got != TierGeospatial {
		t.Errorf("same price: got %q, want %q", got, TierGeospatial)
	}

	b = listing("B-2", "Detached house near the Montgo", "Javea, Granadella", 320001, models.TypeHouse, near)
	if c.IsDuplicate(a, b) {
		t.Error("price 320001 must not match 320000")
	}

	b = listing("B-2", "Detached house near the Montgo", "Javea, Granadella", 320000, models.TypeApartment, near)
	if c.IsDuplicate(a, b) {
		t.Error("different types must not match")
	}
}

func TestClassifierGeospatialDistance(t *testing.T) {
	c := newTestClassifier()
	here := &models.Coordinates{Lat: 38.7700, Lon: 0.1500}

	for _, meters := range []float64{6, 20, 500} {
		far := &models.Coordinates{Lat: 38.7700 + meters*threeMetersLat/3, Lon: 0.1500}
		a := listing("", "Villa A", "Javea, Cansalades", 320000, models.TypeHouse, here)
		b := listing("", "Plot B", "Javea, Granadella", 320000, models.TypeHouse, far)
		if c.IsDuplicate(a, b) {
			t.Errorf("listings %.0f m apart must not match", meters)
		}
	}
}

func TestClassifierGeospatialNeedsPrice(t *testing.T) {
	c := newTestClassifier()
	here := &models.Coordinates{Lat: 38.7700, Lon: 0.1500}
	a := listing("", "Villa A", "Javea, Cansalades", 0, models.TypeHouse, here)
	b := listing("", "Plot B", "Javea, Granadella", 0, models.TypeHouse, here)
	if c.IsDuplicate(a, b) {
		t.Error("price on request listings must not match on position alone")
	}
}

func TestClassifierTextMatch(t *testing.T) {
	c := newTestClassifier()

	tests := []struct {
		name string
		a, b *models.Listing
		want Tier
	}{
		{
			name: "same title and price, spelling variants",
			a:    listing("", "Villa in Xàbia", "Xàbia, Cansalades", 500000, models.TypeHouse, nil),
			b:    listing("", "Villa in Javea", "Javea, Cansalades", 500000, models.TypeHouse, nil),
			want: TierText,
		},
		{
			name: "similar title within tolerance",
			a:    listing("", "Villa with pool in Cansalades", "Javea, Cansalades", 500000, models.TypeHouse, nil),
			b:    listing("", "Villa with pool in Cansalades area", "Javea, Cansalades", 510000, models.TypeHouse, nil),
			want: TierText,
		},
		{
			name: "similar title outside tolerance",
			a:    listing("", "Villa with pool in Cansalades", "Javea, Cansalades", 500000, models.TypeHouse, nil),
			b:    listing("", "Villa with pool in Cansalades area", "Javea, Cansalades", 600000, models.TypeHouse, nil),
			want: TierNone,
		},
		{
			name: "different locations",
			a:    listing("", "Villa with pool", "Javea, Cansalades", 500000, models.TypeHouse, nil),
			b:    listing("", "Villa with pool", "Javea, Arenal", 500000, models.TypeHouse, nil),
			want: TierNone,
		},
		{
			name: "dissimilar titles",
			a:    listing("", "Villa with sea views", "Javea, Cansalades", 500000, models.TypeHouse, nil),
			b:    listing("", "Apartment near the port", "Javea, Cansalades", 500000, models.TypeHouse, nil),
			want: TierNone,
		},
		{
			name: "empty titles",
			a:    listing("", "", "Javea", 500000, models.TypeHouse, nil),
			b:    listing("", "", "Javea", 500000, models.TypeHouse, nil),
			want: TierNone,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := c.Compare(tt.a, tt.b); got != tt.want {
				t.Errorf("Compare: got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestClassifierFindDuplicateOrder(t *testing.T) {
	c := newTestClassifier()
	first := listing("REF-1", "Villa", "Javea", 1, models.TypeHouse, nil)
	second := listing("REF-1", "Villa", "Javea", 1, models.TypeHouse, nil)
	other := listing("REF-2", "Plot", "Denia", 2, models.TypePlot, nil)

	got, tier := c.FindDuplicate(listing("REF-1", "", "", 0, models.TypeHouse, nil), []*models.Listing{other, first, second})
	if got != first || tier != TierReference {
		t.Errorf("FindDuplicate: got (%p, %q), want first accepted match", got, tier)
	}

	if got, tier := c.FindDuplicate(listing("REF-3", "", "", 0, models.TypeHouse, nil), []*models.Listing{other}); got != nil || tier != TierNone {
		t.Errorf("FindDuplicate: got (%v, %q), want no match", got, tier)
	}
}

func TestTitleSimilarity(t *testing.T) {
	tests := []struct {
		a, b string
		want float64
	}{
		{"villa with pool", "villa with pool", 1},
		{"villa with pool", "villa with garden", 2.0 / 3.0},
		{"a b c d", "a b", 0.5},
		{"", "villa", 0},
	}
	for _, tt := range tests {
		if got := TitleSimilarity(tt.a, tt.b); got != tt.want {
			t.Errorf("TitleSimilarity(%q, %q) = %v; want %v", tt.a, tt.b, got, tt.want)
		}
	}
}
