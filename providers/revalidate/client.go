package revalidate

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"javea-listings/utils"
)

// Client asks the public site to drop its cached property pages.
type Client struct {
	url    string
	secret string
	client *http.Client
	logger *utils.Logger
}

// NewClient creates a Client. An empty url makes Trigger a no-op.
func NewClient(url, secret string, logger *utils.Logger) *Client {
	return &Client{
		url:    url,
		secret: secret,
		client: &http.Client{Timeout: 10 * time.Second},
		logger: logger,
	}
}

// Enabled reports whether a revalidation endpoint is configured.
func (c *Client) Enabled() bool {
	return c.url != ""
}

// Trigger posts to the revalidation endpoint.
func (c *Client) Trigger(ctx context.Context) error {
	if !c.Enabled() {
		c.logger.Debug("[revalidate] No endpoint configured, skipping")
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("x-revalidate-secret", c.secret)

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("revalidate: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<16))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("revalidate: HTTP %d", resp.StatusCode)
	}
	c.logger.Info("[revalidate] Site cache dropped (HTTP %d)", resp.StatusCode)
	return nil
}
