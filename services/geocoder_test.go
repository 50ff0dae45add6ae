package services

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"testing"
	"unicode/utf8"
	"time"

	"javea-listings/models"
	"javea-listings/utils"
)

// fakeLookup answers from a map and records every query it receives.
type fakeLookup struct {
	results map[string]*models.Coordinates
	errs    map[string][]error
	calls   []string
	times   []time.Time
}

func (f *fakeLookup) Geocode(_ context.Context, query string, _ time.Duration) (*models.Coordinates, error) {
	f.calls = append(f.calls, query)
	f.times = append(f.times, time.Now())
	if queued := f.errs[query]; len(queued) > 0 {
		f.errs[query] = queued[1:]
		return nil, queued[0]
	}
	return f.results[query], nil
}

func (f *fakeLookup) count(query string) int {
	n := 0
	for _, c := range f.calls {
		if c == query {
			n++
		}
	}
	return n
}

func testGeocodeConfig() GeocodeConfig {
	cfg := DefaultGeocodeConfig()
	cfg.MinInterval = 0
	cfg.BaseDelay = 2 * time.Second
	return cfg
}

func newTestResolver(lookup GeocodeLookup, cfg GeocodeConfig) (*GeocodeResolver, *[]time.Duration) {
	r := NewGeocodeResolver(lookup, NewGeocodeCache(), cfg, utils.NewLogger())
	waits := &[]time.Duration{}
	r.retry.Sleep = func(_ context.Context, d time.Duration) error {
		*waits = append(*waits, d)
		return nil
	}
	return r, waits
}

func TestGeocodeQueriesOrder(t *testing.T) {
	r, _ := newTestResolver(&fakeLookup{}, testGeocodeConfig())

	got := r.Queries("Penthouse Arenal Beach", "Xàbia, Cansalades")
	want := []string{
		"arenal, Javea, Alicante, Spain",
		"arenal, Javea, Spain",
		"cansalades, Javea, Alicante, Spain",
		"cansalades, Javea, Spain",
		"cansalades, Alicante, Valencia, Spain",
		"cansalades, Valencia, Spain",
		"Alicante, Valencia, Spain",
	}

	if len(got) != len(want) {
		t.Fatalf("queries: got %d %v, want %d", len(got), got, len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("query[%d] = %q; want %q", i, got[i], want[i])
		}
	}
}

func TestGeocodeQueriesWithoutAnchor(t *testing.T) {
	cfg := testGeocodeConfig()
	cfg.AnchorFallback = false
	r, _ := newTestResolver(&fakeLookup{}, cfg)

	if got := r.Queries("", "Javea"); len(got) != 0 {
		t.Errorf("expected no queries for bare municipality, got %v", got)
	}
}

func TestGeocodeCacheHitAvoidsSecondLookup(t *testing.T) {
	lookup := &fakeLookup{results: map[string]*models.Coordinates{
		"cansalades, Javea, Alicante, Spain": {Lat: 38.77, Lon: 0.15},
	}}
	r, _ := newTestResolver(lookup, testGeocodeConfig())

	first, err := r.Resolve(context.Background(), "Villa", "Javea, Cansalades")
	if err != nil || first == nil {
		t.Fatalf("first resolve: got %v, %v", first, err)
	}
	second, err := r.Resolve(context.Background(), "Villa", "Javea, Cansalades")
	if err != nil || second == nil {
		t.Fatalf("second resolve: got %v, %v", second, err)
	}

	if len(lookup.calls) != 1 {
		t.Errorf("external lookups: got %d, want 1", len(lookup.calls))
	}
	if *first != *second {
		t.Errorf("cached result differs: %+v vs %+v", *first, *second)
	}
	if r.Cache().Len() != 1 {
		t.Errorf("cache size: got %d, want 1", r.Cache().Len())
	}
}

func TestGeocodeStopsAtFirstResult(t *testing.T) {
	lookup := &fakeLookup{results: map[string]*models.Coordinates{
		"cansalades, Javea, Spain":              {Lat: 38.77, Lon: 0.15},
		"cansalades, Alicante, Valencia, Spain": {Lat: 1, Lon: 1},
	}}
	r, _ := newTestResolver(lookup, testGeocodeConfig())

	got, _ := r.Resolve(context.Background(), "", "Cansalades")
	if got == nil || got.Lat != 38.77 {
		t.Fatalf("expected the more specific result, got %+v", got)
	}
	if len(lookup.calls) != 2 {
		t.Errorf("calls: got %v, want 2 queries", lookup.calls)
	}
}

func TestGeocodeBackoffThenAdvances(t *testing.T) {
	first := "cansalades, Javea, Alicante, Spain"
	next := "cansalades, Javea, Spain"
	rateLimited := fmt.Errorf("nominatim: status 429: %w", ErrTransient)

	lookup := &fakeLookup{
		results: map[string]*models.Coordinates{next: {Lat: 38.77, Lon: 0.15}},
		errs:    map[string][]error{first: {rateLimited, rateLimited, rateLimited}},
	}
	r, waits := newTestResolver(lookup, testGeocodeConfig())

	got, err := r.Resolve(context.Background(), "", "Javea, Cansalades")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got == nil {
		t.Fatal("expected the next query to resolve")
	}

	if n := lookup.count(first); n != 3 {
		t.Errorf("attempts on first query: got %d, want 3", n)
	}
	if n := lookup.count(next); n != 1 {
		t.Errorf("attempts on next query: got %d, want 1", n)
	}
	// two waits between attempts, then a cool-down before the next query
	wantWaits := []time.Duration{2 * time.Second, 4 * time.Second, 8 * time.Second}
	if fmt.Sprint(*waits) != fmt.Sprint(wantWaits) {
		t.Errorf("waits: got %v, want %v", *waits, wantWaits)
	}
	if lookup.calls[len(lookup.calls)-1] != next {
		t.Errorf("last query: got %q, want %q", lookup.calls[len(lookup.calls)-1], next)
	}
}

func TestGeocodePermanentErrorSkipsQuery(t *testing.T) {
	first := "cansalades, Javea, Alicante, Spain"
	lookup := &fakeLookup{
		results: map[string]*models.Coordinates{"cansalades, Javea, Spain": {Lat: 38.77, Lon: 0.15}},
		errs:    map[string][]error{first: {errors.New("nominatim: status 400: bad query")}},
	}
	r, waits := newTestResolver(lookup, testGeocodeConfig())

	got, _ := r.Resolve(context.Background(), "", "Cansalades")
	if got == nil {
		t.Fatal("expected next query to resolve")
	}
	if n := lookup.count(first); n != 1 {
		t.Errorf("permanent error should not be retried: %d attempts", n)
	}
	if len(*waits) != 0 {
		t.Errorf("no back-off expected, got %v", *waits)
	}
}

func TestGeocodeExhaustedReturnsNil(t *testing.T) {
	lookup := &fakeLookup{}
	r, _ := newTestResolver(lookup, testGeocodeConfig())

	got, err := r.Resolve(context.Background(), "Villa", "Somewhere Unknown")
	if err != nil || got != nil {
		t.Errorf("expected (nil, nil), got (%v, %v)", got, err)
	}
	if r.Cache().Len() != 0 {
		t.Error("misses should not be cached")
	}
}

func TestGeocodeIgnoresInvalidCoordinates(t *testing.T) {
	lookup := &fakeLookup{results: map[string]*models.Coordinates{
		"cansalades, Javea, Alicante, Spain": {Lat: 123, Lon: 0},
		"cansalades, Javea, Spain":           {Lat: 38.77, Lon: 0.15},
	}}
	r, _ := newTestResolver(lookup, testGeocodeConfig())

	got, _ := r.Resolve(context.Background(), "", "Cansalades")
	if got == nil || got.Lat != 38.77 {
		t.Errorf("expected the valid result, got %+v", got)
	}
}

func TestGeocodeEnforcesMinInterval(t *testing.T) {
	cfg := testGeocodeConfig()
	cfg.MinInterval = 50 * time.Millisecond
	cfg.AnchorFallback = false
	lookup := &fakeLookup{}
	r, _ := newTestResolver(lookup, cfg)

	r.Resolve(context.Background(), "", "Cansalades")

	if len(lookup.times) != 4 {
		t.Fatalf("calls: got %d, want 4", len(lookup.times))
	}
	for i := 1; i < len(lookup.times); i++ {
		gap := lookup.times[i].Sub(lookup.times[i-1])
		if gap < cfg.MinInterval-5*time.Millisecond {
			t.Errorf("gap %d: %v < %v", i, gap, cfg.MinInterval)
		}
	}
}

func TestGeocodeCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	r, _ := newTestResolver(&fakeLookup{}, testGeocodeConfig())

	if _, err := r.Resolve(ctx, "Villa", "Cansalades"); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestIsTransient(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{nil, false},
		{fmt.Errorf("wrap: %w", ErrTransient), true},
		{errors.New("HTTP Error 403: Forbidden"), true},
		{errors.New("503 Service Unavailable"), true},
		{errors.New("Too Many Requests"), true},
		{errors.New("400 bad request"), false},
		{&url.Error{Op: "Get", URL: "https://nominatim.test/search?q=calle+503", Err: errors.New("connection refused")}, false},
		{fmt.Errorf("request failed: %w", &url.Error{Op: "Get", URL: "https://x.test/?q=429", Err: timeoutError{}}), true},
	}
	for _, tt := range tests {
		if got := IsTransient(tt.err); got != tt.want {
			t.Errorf("IsTransient(%v) = %v; want %v", tt.err, got, tt.want)
		}
	}
}

type timeoutError struct{}

func (timeoutError) Error() string { return "i/o timeout" }
func (timeoutError) Timeout() bool { return true }
func (timeoutError) Temporary() bool { return true }

func TestGeocodeNetworkErrorWithNumberInQuery(t *testing.T) {
	first := "calle 503, Javea, Alicante, Spain"
	refused := fmt.Errorf("request failed: %w", &url.Error{
		Op:  "Get",
		URL: "https://nominatim.test/search?q=calle+503%2C+Javea",
		Err: errors.New("dial tcp: connection refused"),
	})
	lookup := &fakeLookup{
		results: map[string]*models.Coordinates{"calle 503, Javea, Spain": {Lat: 38.79, Lon: 0.17}},
		errs:    map[string][]error{first: {refused, refused, refused}},
	}
	r, waits := newTestResolver(lookup, testGeocodeConfig())

	got, err := r.Resolve(context.Background(), "", "Calle 503")
	if err != nil || got == nil {
		t.Fatalf("got (%v, %v), want the next query to resolve", got, err)
	}
	if n := lookup.count(first); n != 1 {
		t.Errorf("attempts on %q: got %d, want 1", first, n)
	}
	if len(*waits) != 0 {
		t.Errorf("no back-off expected, got %v", *waits)
	}
}

func TestGeocodeCacheKeysDoNotCollide(t *testing.T) {
	c := NewGeocodeCache()
	c.Put("a_b", "c", models.Coordinates{Lat: 38.7, Lon: 0.1})

	if _, ok := c.Get("a", "b_c"); ok {
		t.Error(`("a", "b_c") should not hit the entry for ("a_b", "c")`)
	}
	if got, ok := c.Get("a_b", "c"); !ok || got.Lat != 38.7 {
		t.Errorf("Get: got %v, %v", got, ok)
	}
}

func TestTruncateKeepsRunesWhole(t *testing.T) {
	tests := []struct {
		in   string
		max  int
		want string
	}{
		{"Cansalades", 20, "Cansalades"},
		{"Balcón al Mar", 8, "Balc..."},
		{"Gràcia, Xàbia", 6, "Gr..."},
		{"ññññ", 6, "ñ..."},
	}
	for _, tt := range tests {
		got := truncate(tt.in, tt.max)
		if got != tt.want {
			t.Errorf("truncate(%q, %d) = %q; want %q", tt.in, tt.max, got, tt.want)
		}
		if !utf8.ValidString(got) || len(got) > tt.max {
			t.Errorf("truncate(%q, %d) = %q is not a valid prefix", tt.in, tt.max, got)
		}
		if !strings.HasPrefix(tt.in, strings.TrimSuffix(got, "...")) {
			t.Errorf("truncate(%q, %d) = %q does not prefix the input", tt.in, tt.max, got)
		}
	}
}
