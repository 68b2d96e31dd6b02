package lookup

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// DefaultShortenURL is the TinyURL create endpoint.
const DefaultShortenURL = "https://tinyurl.com/api-create.php"

// Shorten returns a short alias for the given URL via TinyURL. baseURL
// defaults to DefaultShortenURL; the https:// scheme is added when missing.
func Shorten(ctx context.Context, hc *http.Client, baseURL, longURL string) (string, error) {
	if strings.TrimSpace(longURL) == "" {
		return "", fmt.Errorf("lookup: url is required")
	}
	longURL = NormalizeURL(longURL)
	if baseURL == "" {
		baseURL = DefaultShortenURL
	}
	if hc == nil {
		hc = &http.Client{Timeout: 10 * time.Second}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		baseURL+"?url="+url.QueryEscape(longURL), nil)
	if err != nil {
		return "", fmt.Errorf("lookup: build request: %w", err)
	}
	resp, err := hc.Do(req)
	if err != nil {
		return "", fmt.Errorf("lookup: shorten: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("lookup: shortener returned %d", resp.StatusCode)
	}
	short, err := io.ReadAll(io.LimitReader(resp.Body, 1024))
	if err != nil {
		return "", fmt.Errorf("lookup: read short url: %w", err)
	}
	return strings.TrimSpace(string(short)), nil
}
