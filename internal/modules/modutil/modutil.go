// Package modutil holds the small pieces the built-in modules share: the
// HTTP fetch used by every network-bound scraper and readers for the
// schemaless per-source config map.
package modutil

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"unicode/utf8"
)

// FetchResult is one HTTP response body with the attributes the scraped_data
// row records.
type FetchResult struct {
	Body        []byte
	StatusCode  int
	ContentType string
}

// Fetch GETs url with the pipehub user agent and returns the body. Responses
// outside the 2xx range are an error; the status code still comes back so a
// scraper can record it on a failed capture if it chooses to keep one.
func Fetch(ctx context.Context, client *http.Client, url, userAgent string) (*FetchResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request for %s: %w", url, err)
	}
	if userAgent != "" {
		req.Header.Set("User-Agent", userAgent)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", url, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", url, err)
	}
	result := &FetchResult{
		Body:        body,
		StatusCode:  resp.StatusCode,
		ContentType: resp.Header.Get("Content-Type"),
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return result, fmt.Errorf("fetch %s: unexpected status %d", url, resp.StatusCode)
	}
	return result, nil
}

// Str reads a string-valued config key, falling back to def when the key is
// absent or not a string.
func Str(cfg map[string]any, key, def string) string {
	if v, ok := cfg[key].(string); ok && v != "" {
		return v
	}
	return def
}

// Int reads an integer-valued config key. JSON round-trips numbers as
// float64, so both shapes are accepted.
func Int(cfg map[string]any, key string, def int) int {
	switch v := cfg[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	default:
		return def
	}
}

// Bool reads a boolean-valued config key.
func Bool(cfg map[string]any, key string, def bool) bool {
	if v, ok := cfg[key].(bool); ok {
		return v
	}
	return def
}

// Truncate shortens s to at most n runes, appending an ellipsis when
// anything was cut.
func Truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return strings.TrimSpace(string(runes[:n])) + "..."
}
