package services

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"golang.org/x/time/rate"

	"javea-listings/models"
	"javea-listings/utils"
)

// ErrTransient marks lookup failures worth retrying (rate limiting, timeouts).
var ErrTransient = errors.New("transient geocode failure")

// IsTransient reports whether err signals a rate limit or other temporary
// failure of the external lookup.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrTransient) {
		return true
	}
	// Transport errors quote the request URL, query string included.
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return urlErr.Timeout()
	}
	msg := strings.ToLower(err.Error())
	for _, marker := range []string{"403", "429", "503", "too many"} {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}

// GeocodeLookup is the external geocoding service. A nil result with a nil
// error means the query matched nothing.
type GeocodeLookup interface {
	Geocode(ctx context.Context, query string, timeout time.Duration) (*models.Coordinates, error)
}

// GeocodeCache maps a (title, location) pair to resolved coordinates for the
// lifetime of one run.
type GeocodeCache struct {
	mu      sync.RWMutex
	entries map[cacheKey]models.Coordinates
}

// NewGeocodeCache creates an empty cache.
func NewGeocodeCache() *GeocodeCache {
	return &GeocodeCache{entries: make(map[cacheKey]models.Coordinates)}
}

// Get returns the cached coordinates for a title and location pair.
func (c *GeocodeCache) Get(title, location string) (models.Coordinates, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	coords, ok := c.entries[cacheKey{title, location}]
	return coords, ok
}

// Put stores coordinates for a title and location pair.
func (c *GeocodeCache) Put(title, location string, coords models.Coordinates) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[cacheKey{title, location}] = coords
}

// Len returns the number of cached entries.
func (c *GeocodeCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

type cacheKey struct {
	title    string
	location string
}

// GeocodeConfig describes the geographic hierarchy and the request policy.
type GeocodeConfig struct {
	Municipality string
	Province     string
	Region       string
	Country      string
	// AnchorFallback appends the bare province/region/country query.
	AnchorFallback bool

	MinInterval time.Duration
	Timeout     time.Duration
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

// DefaultGeocodeConfig matches the public Nominatim usage policy for Javea.
func DefaultGeocodeConfig() GeocodeConfig {
	return GeocodeConfig{
		Municipality:   "Javea",
		Province:       "Alicante",
		Region:         "Valencia",
		Country:        "Spain",
		AnchorFallback: true,
		MinInterval:    1200 * time.Millisecond,
		Timeout:        10 * time.Second,
		MaxAttempts:    3,
		BaseDelay:      2 * time.Second,
		MaxDelay:       16 * time.Second,
	}
}

// titleKeywords are sub-localities worth geocoding when they appear in a
// title. Matching is case-insensitive; matches are normalized before use.
var titleKeywords = []string{
	"Costa Nova", "Cala Blanca", "Cala Granadella", "Granadella",
	"Cumbres Del Tosalet", "Tosalet", "Balcon al Mar", "Balcón al Mar",
	"Cap Marti", "Cap Martí", "Portichol", "Portitxol",
	"Arenal", "Arenal Beach", "Playa Arenal",
	"Pinosol", "Adsubia", "La Lluca",
	"Montgo", "Montgó", "Monte Pego",
	"Pueblo", "Old Town", "Casco Antiguo",
	"Puerto", "Port", "Marina",
	"Gracia", "Gràcia",
	"Toscamar", "El Tosalet", "Piver",
	"La Corona", "Rafalet", "Capsades",
}

// GeocodeResolver turns a listing's title and location into coordinates
// through a cached, rate-limited, hierarchical lookup.
type GeocodeResolver struct {
	lookup  GeocodeLookup
	cache   *GeocodeCache
	limiter *rate.Limiter
	retry   *utils.RetryConfig
	cfg     GeocodeConfig
	logger  *utils.Logger
}

// NewGeocodeResolver wires a resolver. The cache is owned by the caller so
// independent runs or shards never share state.
func NewGeocodeResolver(lookup GeocodeLookup, cache *GeocodeCache, cfg GeocodeConfig, logger *utils.Logger) *GeocodeResolver {
	if cache == nil {
		cache = NewGeocodeCache()
	}
	return &GeocodeResolver{
		lookup:  lookup,
		cache:   cache,
		limiter: utils.NewLimiter(cfg.MinInterval),
		retry: &utils.RetryConfig{
			MaxAttempts: cfg.MaxAttempts,
			BaseDelay:   cfg.BaseDelay,
			MaxDelay:    cfg.MaxDelay,
			Logger:      logger,
			Retryable:   IsTransient,
		},
		cfg:    cfg,
		logger: logger,
	}
}

// Cache exposes the resolver's cache.
func (r *GeocodeResolver) Cache() *GeocodeCache {
	return r.cache
}

// Resolve returns coordinates for the listing, or nil when no query produced
// a result. The only error returned is context cancellation.
func (r *GeocodeResolver) Resolve(ctx context.Context, title, location string) (*models.Coordinates, error) {
	label := title + " / " + location
	if coords, ok := r.cache.Get(title, location); ok {
		r.logger.Debug("[geocoder] Cache hit: %s", truncate(label, 80))
		return &coords, nil
	}

	for _, query := range r.Queries(title, location) {
		coords, err := r.lookupQuery(ctx, query)
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		if err != nil {
			r.logger.Warn("[geocoder] Giving up on %q: %v", query, err)
			continue
		}
		if coords == nil {
			continue
		}
		if !coords.Valid() {
			r.logger.Warn("[geocoder] Ignoring invalid coordinates for %q: %+v", query, *coords)
			continue
		}

		r.cache.Put(title, location, *coords)
		r.logger.Debug("[geocoder] Found %q: (%.6f, %.6f)", query, coords.Lat, coords.Lon)
		return coords, nil
	}

	r.logger.Warn("[geocoder] Could not geocode: %s", truncate(label, 100))
	return nil, nil
}

// lookupQuery issues one query, retrying transient failures with back-off.
// Every external call first waits for the minimum interval. When the
// attempts run out on a transient failure, the next back-off step is still
// waited so the following query does not land on an active rate limit.
func (r *GeocodeResolver) lookupQuery(ctx context.Context, query string) (*models.Coordinates, error) {
	var result *models.Coordinates
	var lastErr error
	err := r.retry.Do(ctx, fmt.Sprintf("geocode %q", query), func() error {
		if err := r.limiter.Wait(ctx); err != nil {
			return err
		}
		r.logger.Debug("[geocoder] Querying: %s", query)
		coords, err := r.lookup.Geocode(ctx, query, r.cfg.Timeout)
		lastErr = err
		if err != nil {
			return err
		}
		result = coords
		return nil
	})
	if err != nil && ctx.Err() == nil && IsTransient(lastErr) {
		attempts := r.retry.MaxAttempts
		if attempts < 1 {
			attempts = 1
		}
		cool := r.retry.Backoff(attempts)
		r.logger.Warn("[geocoder] Still rate limited on %q, cooling down %v", query, cool)
		if serr := r.retry.Pause(ctx, cool); serr != nil {
			return nil, serr
		}
	}
	return result, err
}

// Queries builds the ordered, de-duplicated search queries for a listing,
// most specific first.
func (r *GeocodeResolver) Queries(title, location string) []string {
	c := r.cfg
	var queries []string

	for _, kw := range extractTitleKeywords(title) {
		queries = append(queries,
			joinQuery(kw, c.Municipality, c.Province, c.Country),
			joinQuery(kw, c.Municipality, c.Country),
		)
	}

	if loc := stripMunicipality(Normalize(location), c.Municipality); loc != "" {
		queries = append(queries,
			joinQuery(loc, c.Municipality, c.Province, c.Country),
			joinQuery(loc, c.Municipality, c.Country),
			joinQuery(loc, c.Province, c.Region, c.Country),
			joinQuery(loc, c.Region, c.Country),
		)
	}

	if c.AnchorFallback {
		queries = append(queries, joinQuery(c.Province, c.Region, c.Country))
	}

	return dedupeStrings(queries)
}

func extractTitleKeywords(title string) []string {
	if title == "" {
		return nil
	}
	upper := strings.ToUpper(title)
	var found []string
	for _, kw := range titleKeywords {
		if strings.Contains(upper, strings.ToUpper(kw)) {
			found = append(found, Normalize(kw))
		}
	}
	return found
}

func joinQuery(parts ...string) string {
	kept := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, ", ")
}

func dedupeStrings(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s == "" {
			continue
		}
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}

// truncate shortens s to at most max bytes, cutting on a rune boundary.
func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	cut := max - 3
	if cut < 0 {
		cut = 0
	}
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}
