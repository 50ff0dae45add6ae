package nominatim

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"javea-listings/models"
	"javea-listings/services"
)

// DefaultEndpoint is the public OpenStreetMap search API.
const DefaultEndpoint = "https://nominatim.openstreetmap.org/search"

// Client queries a Nominatim search endpoint.
type Client struct {
	endpoint  string
	userAgent string
	client    *http.Client
}

// NewClient creates a Client. Nominatim rejects requests without a
// User-Agent, so an empty one falls back to the project name.
func NewClient(endpoint, userAgent string) *Client {
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	if userAgent == "" {
		userAgent = "javea-real-estate-processor"
	}
	return &Client{
		endpoint:  endpoint,
		userAgent: userAgent,
		client:    &http.Client{},
	}
}

type searchResult struct {
	Lat         string `json:"lat"`
	Lon         string `json:"lon"`
	DisplayName string `json:"display_name"`
}

// Geocode returns the first match for query, or nil when nothing matched.
// Rate limiting and server overload wrap services.ErrTransient.
func (c *Client) Geocode(ctx context.Context, query string, timeout time.Duration) (*models.Coordinates, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	params := url.Values{}
	params.Set("q", query)
	params.Set("format", "json")
	params.Set("limit", "1")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: request timed out", services.ErrTransient)
		}
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusTooManyRequests, http.StatusServiceUnavailable, http.StatusForbidden:
		return nil, fmt.Errorf("%w: HTTP %d", services.ErrTransient, resp.StatusCode)
	default:
		return nil, fmt.Errorf("nominatim returned HTTP %d", resp.StatusCode)
	}

	var results []searchResult
	if err := json.Unmarshal(body, &results); err != nil {
		return nil, fmt.Errorf("parse response: %w", err)
	}
	if len(results) == 0 {
		return nil, nil
	}

	lat, err := strconv.ParseFloat(results[0].Lat, 64)
	if err != nil {
		return nil, fmt.Errorf("parse lat %q: %w", results[0].Lat, err)
	}
	lon, err := strconv.ParseFloat(results[0].Lon, 64)
	if err != nil {
		return nil, fmt.Errorf("parse lon %q: %w", results[0].Lon, err)
	}
	return &models.Coordinates{Lat: lat, Lon: lon}, nil
}

var _ services.GeocodeLookup = (*Client)(nil)
