package camera

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// ErrNoControlURL is returned when overrides are applied without a control endpoint.
var ErrNoControlURL = errors.New("camera: control url not configured")

// Client pushes settings to the camera's /config endpoint.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient creates a client for the camera at baseURL, e.g. "http://10.0.0.7".
func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: timeout},
	}
}

// Apply sends every set field of s in a single GET request. Empty settings are a no-op.
func (c *Client) Apply(ctx context.Context, s Settings) error {
	if s.IsEmpty() {
		return nil
	}
	if c == nil || c.baseURL == "" {
		return ErrNoControlURL
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/config?"+s.Query(), nil)
	if err != nil {
		return fmt.Errorf("build camera request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("send camera config: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("send camera config: unexpected status %s", resp.Status)
	}
	return nil
}
