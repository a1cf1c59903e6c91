// Package resource fetches the bytes behind URLs: documents, stylesheets,
// and scripts. It is the only package that touches the network or the
// filesystem on behalf of content.
package resource

import (
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"
)

const (
	defaultUserAgent = "plover/1.0 (compatible; Go)"
	defaultTimeout   = 30 * time.Second
)

// Response is one fetched resource. URL is the final url after redirects,
// which callers use as the base for relative references in the body.
type Response struct {
	URL         string
	Body        string
	ContentType string
}

// Fetcher retrieves resources by URL.
type Fetcher interface {
	Fetch(rawURL string) (*Response, error)
}

// DefaultFetcher fetches http and https URLs over the network and file
// URLs (or bare paths) from the local filesystem.
type DefaultFetcher struct {
	client    *http.Client
	userAgent string
}

func NewFetcher() *DefaultFetcher {
	return NewCustomFetcher(0, "")
}

// NewCustomFetcher builds a fetcher with an explicit timeout and User-Agent.
// Zero values select the defaults.
func NewCustomFetcher(timeout time.Duration, userAgent string) *DefaultFetcher {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	if userAgent == "" {
		userAgent = defaultUserAgent
	}
	return &DefaultFetcher{
		client:    &http.Client{Timeout: timeout},
		userAgent: userAgent,
	}
}

// Fetch retrieves the resource at the given URL.
func (f *DefaultFetcher) Fetch(rawURL string) (*Response, error) {
	if IsNetworkURL(rawURL) {
		return f.fetchHTTP(rawURL)
	}
	return fetchFile(rawURL)
}

func (f *DefaultFetcher) fetchHTTP(rawURL string) (*Response, error) {
	req, err := http.NewRequest("GET", rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", f.userAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching %s: %w", rawURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("HTTP %d fetching %s", resp.StatusCode, rawURL)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response body: %w", err)
	}

	return &Response{
		URL:         resp.Request.URL.String(),
		Body:        string(body),
		ContentType: resp.Header.Get("Content-Type"),
	}, nil
}

func fetchFile(rawURL string) (*Response, error) {
	path := strings.TrimPrefix(rawURL, "file://")
	body, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return &Response{URL: rawURL, Body: string(body)}, nil
}

// FetchText fetches a URL whose body is expected to be text, such as a
// stylesheet or a script. Non-text content types are rejected.
func FetchText(f Fetcher, rawURL string) (string, error) {
	resp, err := f.Fetch(rawURL)
	if err != nil {
		return "", err
	}
	ct := strings.ToLower(resp.ContentType)
	if ct != "" && !strings.HasPrefix(ct, "text/") &&
		!strings.Contains(ct, "css") && !strings.Contains(ct, "javascript") {
		return "", fmt.Errorf("unexpected content type %s for %s", resp.ContentType, rawURL)
	}
	return resp.Body, nil
}

// Resolve resolves a possibly-relative reference against a base URL. If
// ref is already absolute, or the base does not parse, ref is returned
// unchanged.
func Resolve(base, ref string) string {
	if base == "" {
		return ref
	}
	baseURL, err := url.Parse(base)
	if err != nil {
		return ref
	}
	refURL, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	return baseURL.ResolveReference(refURL).String()
}

// SplitFragment separates a URL from its fragment identifier.
func SplitFragment(rawURL string) (base, fragment string) {
	if i := strings.IndexByte(rawURL, '#'); i >= 0 {
		return rawURL[:i], rawURL[i+1:]
	}
	return rawURL, ""
}

// IsNetworkURL reports whether the string is an http or https URL.
func IsNetworkURL(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}
