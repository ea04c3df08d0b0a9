package renderer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

// HTTPShortener posts the long URL to a configured shortening endpoint and
// expects a JSON body containing the short URL. Grounded on WebhookProvider:
// base URL injected for testability, a bounded-timeout http.Client, POST
// with a JSON body.
type HTTPShortener struct {
	endpoint   string
	httpClient *http.Client
}

func NewHTTPShortener(endpoint string, timeout time.Duration) *HTTPShortener {
	return &HTTPShortener{
		endpoint:   endpoint,
		httpClient: &http.Client{Timeout: timeout},
	}
}

type shortenRequest struct {
	URL string `json:"url"`
}

type shortenResponse struct {
	ShortURL string `json:"short_url"`
}

// Shorten validates that longURL parses, then POSTs it to the configured
// endpoint. Any failure — invalid URL, transport error, non-2xx, malformed
// response — returns an error, and the caller is expected to keep the
// original URL rather than fail the render.
func (s *HTTPShortener) Shorten(ctx context.Context, longURL string) (string, error) {
	if _, err := url.ParseRequestURI(longURL); err != nil {
		return "", fmt.Errorf("invalid url %q: %w", longURL, err)
	}

	body, err := json.Marshal(shortenRequest{URL: longURL})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("shorten request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("unexpected shortener status: %d", resp.StatusCode)
	}

	var out shortenResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode shortener response: %w", err)
	}
	if out.ShortURL == "" {
		return "", fmt.Errorf("shortener returned empty short_url")
	}
	return out.ShortURL, nil
}

var _ Shortener = (*HTTPShortener)(nil)
