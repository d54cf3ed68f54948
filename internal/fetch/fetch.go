// Package fetch provides the HTTP transport strategies shared by the
// platform adapters: a plain client for ordinary sites and a "stealth"
// client with full browser headers for sites that reject bare requests.
package fetch

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"
	"unicode/utf8"

	"golang.org/x/text/encoding/korean"
)

const (
	// UserAgent mirrors a current desktop Chrome build.
	UserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

	plainTimeout   = 10 * time.Second
	stealthTimeout = 15 * time.Second
)

// Global HTTP clients for reuse across adapters
var (
	plainClient     *http.Client
	plainClientOnce sync.Once
	plainClientNew  = func() *http.Client { return &http.Client{Timeout: plainTimeout} }

	stealthClient     *http.Client
	stealthClientOnce sync.Once
	stealthClientNew  = func() *http.Client { return &http.Client{Timeout: stealthTimeout} }
)

// Client returns the singleton plain HTTP client.
func Client() *http.Client {
	plainClientOnce.Do(func() {
		plainClient = plainClientNew()
	})
	return plainClient
}

// stealthHTTPClient returns the singleton client used for header-heavy fetches.
func stealthHTTPClient() *http.Client {
	stealthClientOnce.Do(func() {
		stealthClient = stealthClientNew()
	})
	return stealthClient
}

// Get fetches a URL with a browser User-Agent and returns the decoded body.
// Korean retail sites occasionally serve EUC-KR; invalid UTF-8 falls back
// to an EUC-KR decode.
func Get(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", UserAgent)

	start := time.Now()
	resp, err := Client().Do(req)
	if err != nil {
		return "", err
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response body: %w", err)
	}
	slog.Debug("HTTP GET", "url", MaskURL(url), "status", resp.StatusCode,
		"size", len(body), "elapsed_ms", time.Since(start).Milliseconds())

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("unexpected status %d for %s", resp.StatusCode, MaskURL(url))
	}
	return decodeBody(body), nil
}

// StealthGet fetches a URL with a full browser header set, following
// redirects and retrying transient failures. It returns the body and the
// final URL after redirects (some sites redirect searches straight to a
// detail page, which callers detect via the URL).
func StealthGet(ctx context.Context, url string, retries int) (body, finalURL string, err error) {
	var lastErr error
	for attempt := 0; attempt <= retries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return "", "", ctx.Err()
			case <-time.After(time.Second):
			}
		}

		req, reqErr := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if reqErr != nil {
			return "", "", fmt.Errorf("failed to create request: %w", reqErr)
		}
		applyStealthHeaders(req)

		resp, doErr := stealthHTTPClient().Do(req)
		if doErr != nil {
			lastErr = doErr
			continue
		}

		raw, readErr := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		if readErr != nil {
			lastErr = readErr
			continue
		}
		if resp.StatusCode >= http.StatusInternalServerError {
			lastErr = fmt.Errorf("server returned status %d", resp.StatusCode)
			continue
		}
		return decodeBody(raw), resp.Request.URL.String(), nil
	}
	return "", "", fmt.Errorf("fetch failed after %d attempts: %w", retries+1, lastErr)
}

func applyStealthHeaders(req *http.Request) {
	headers := map[string]string{
		"User-Agent":                UserAgent,
		"Accept":                    "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,*/*;q=0.8",
		"Accept-Language":           "en-US,en;q=0.9",
		"Connection":                "keep-alive",
		"Upgrade-Insecure-Requests": "1",
		"Sec-Fetch-Dest":            "document",
		"Sec-Fetch-Mode":            "navigate",
		"Sec-Fetch-Site":            "none",
		"Sec-Fetch-User":            "?1",
		"Cache-Control":             "max-age=0",
		"sec-ch-ua":                 `"Not_A Brand";v="8", "Chromium";v="120", "Google Chrome";v="120"`,
		"sec-ch-ua-mobile":          "?0",
		"sec-ch-ua-platform":        `"macOS"`,
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
}

var maskedParams = map[string]bool{
	"ttbkey": true,
	"key":    true,
}

// MaskURL redacts API key query parameters so raw credentials never
// reach the logs.
func MaskURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	q := u.Query()
	changed := false
	for param := range q {
		if maskedParams[param] {
			q.Set(param, "***")
			changed = true
		}
	}
	if !changed {
		return raw
	}
	u.RawQuery = q.Encode()
	return u.String()
}

// decodeBody interprets the payload as UTF-8 when valid, otherwise as EUC-KR.
func decodeBody(raw []byte) string {
	if utf8.Valid(raw) {
		return string(raw)
	}
	decoded, err := korean.EUCKR.NewDecoder().Bytes(raw)
	if err != nil {
		return string(raw)
	}
	return string(decoded)
}
