package libretranslate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"javea-listings/services"
)

// Client calls the /translate endpoint of a LibreTranslate server.
type Client struct {
	endpoint string
	apiKey   string
	client   *http.Client
}

// NewClient creates a Client for the server at baseURL.
func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		endpoint: strings.TrimRight(baseURL, "/") + "/translate",
		apiKey:   apiKey,
		client:   &http.Client{Timeout: 30 * time.Second},
	}
}

type translateRequest struct {
	Q      string `json:"q"`
	Source string `json:"source"`
	Target string `json:"target"`
	Format string `json:"format"`
	APIKey string `json:"api_key,omitempty"`
}

type translateResponse struct {
	TranslatedText string `json:"translatedText"`
	Error          string `json:"error"`
}

// Translate returns text translated from source to target.
func (c *Client) Translate(ctx context.Context, text, source, target string) (string, error) {
	jsonBody, err := json.Marshal(translateRequest{
		Q:      text,
		Source: source,
		Target: target,
		Format: "text",
		APIKey: c.apiKey,
	})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(jsonBody))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}

	var out translateResponse
	if resp.StatusCode != http.StatusOK {
		if json.Unmarshal(body, &out) == nil && out.Error != "" {
			return "", fmt.Errorf("libretranslate HTTP %d: %s", resp.StatusCode, out.Error)
		}
		return "", fmt.Errorf("libretranslate HTTP %d", resp.StatusCode)
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return "", fmt.Errorf("parse response: %w", err)
	}
	if out.TranslatedText == "" {
		return "", fmt.Errorf("empty translation for %s→%s", source, target)
	}
	return out.TranslatedText, nil
}

var _ services.TranslationProvider = (*Client)(nil)
