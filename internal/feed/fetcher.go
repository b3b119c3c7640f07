package feed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/MarkoPoloResearchLab/offerfeed/internal/mapping"
)

const (
	// DefaultTimeout bounds a single feed download.
	DefaultTimeout = 30 * time.Second
	// DefaultMaxBytes bounds the size of a feed document.
	DefaultMaxBytes int64 = 32 << 20

	schemeHTTP    = "http"
	schemeHTTPS   = "https"
	headerAccept  = "Accept"
	mediaTypeJSON = "application/json"
)

var (
	ErrInvalidFeedURL    = errors.New("feed: invalid url")
	ErrUnexpectedStatus  = errors.New("feed: unexpected status")
	ErrFeedTooLarge      = errors.New("feed: document too large")
	ErrInvalidFeedJSON   = errors.New("feed: invalid json")
	ErrFeedRequestFailed = errors.New("feed: request failed")
)

// Config tunes the Fetcher.
type Config struct {
	Timeout  time.Duration
	MaxBytes int64
}

// Fetcher downloads JSON feeds from operator-supplied URLs.
type Fetcher struct {
	httpClient *http.Client
	maxBytes   int64
}

// NewFetcher creates a Fetcher; zero config values fall back to the package defaults.
func NewFetcher(configuration Config) *Fetcher {
	timeout := configuration.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	maxBytes := configuration.MaxBytes
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	return &Fetcher{
		httpClient: &http.Client{Timeout: timeout},
		maxBytes:   maxBytes,
	}
}

// WithHTTPClient overrides the HTTP client used for downloads.
func (fetcher *Fetcher) WithHTTPClient(httpClient *http.Client) *Fetcher {
	if httpClient != nil {
		fetcher.httpClient = httpClient
	}
	return fetcher
}

// Fetch downloads and decodes the feed at feedURL.
func (fetcher *Fetcher) Fetch(ctx context.Context, feedURL string) (Document, error) {
	normalizedURL, validationErr := ValidateURL(feedURL)
	if validationErr != nil {
		return Document{}, validationErr
	}

	request, requestErr := http.NewRequestWithContext(ctx, http.MethodGet, normalizedURL, nil)
	if requestErr != nil {
		return Document{}, fmt.Errorf("%w: %v", ErrInvalidFeedURL, requestErr)
	}
	request.Header.Set(headerAccept, mediaTypeJSON)

	response, responseErr := fetcher.httpClient.Do(request)
	if responseErr != nil {
		return Document{}, fmt.Errorf("%w: %v", ErrFeedRequestFailed, responseErr)
	}
	defer response.Body.Close()

	if response.StatusCode != http.StatusOK {
		return Document{}, fmt.Errorf("%w: %d", ErrUnexpectedStatus, response.StatusCode)
	}

	body, readErr := io.ReadAll(io.LimitReader(response.Body, fetcher.maxBytes+1))
	if readErr != nil {
		return Document{}, fmt.Errorf("%w: %v", ErrFeedRequestFailed, readErr)
	}
	if int64(len(body)) > fetcher.maxBytes {
		return Document{}, fmt.Errorf("%w: limit %d bytes", ErrFeedTooLarge, fetcher.maxBytes)
	}

	return Parse(body)
}

// ValidateURL trims feedURL and requires an absolute http(s) URL.
func ValidateURL(feedURL string) (string, error) {
	trimmed := strings.TrimSpace(feedURL)
	if trimmed == "" {
		return "", fmt.Errorf("%w: empty", ErrInvalidFeedURL)
	}
	parsed, parseErr := url.Parse(trimmed)
	if parseErr != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidFeedURL, parseErr)
	}
	scheme := strings.ToLower(parsed.Scheme)
	if (scheme != schemeHTTP && scheme != schemeHTTPS) || parsed.Host == "" {
		return "", fmt.Errorf("%w: %s", ErrInvalidFeedURL, trimmed)
	}
	return trimmed, nil
}

// Document is a decoded feed payload.
type Document struct {
	raw     []byte
	decoded any
}

// Parse validates and decodes a raw JSON feed.
func Parse(raw []byte) (Document, error) {
	if !gjson.ValidBytes(raw) {
		return Document{}, ErrInvalidFeedJSON
	}
	var decoded any
	if decodeErr := json.Unmarshal(raw, &decoded); decodeErr != nil {
		return Document{}, fmt.Errorf("%w: %v", ErrInvalidFeedJSON, decodeErr)
	}
	return Document{raw: raw, decoded: decoded}, nil
}

// Raw returns the document bytes as received.
func (document Document) Raw() []byte {
	return document.raw
}

// Value returns the decoded JSON value.
func (document Document) Value() any {
	return document.decoded
}

// IsArray reports whether the document is a JSON array of records.
func (document Document) IsArray() bool {
	_, isArray := document.decoded.([]any)
	return isArray
}

// Sample returns the record used to preview the feed shape.
func (document Document) Sample() (any, error) {
	return mapping.SampleRecord(document.decoded)
}

// Records returns every array element, or the whole document when it is not an array.
func (document Document) Records() []gjson.Result {
	parsed := gjson.ParseBytes(document.raw)
	if parsed.IsArray() {
		return parsed.Array()
	}
	return []gjson.Result{parsed}
}

// SampleKeys lists the top-level keys of an object sample in document order.
func SampleKeys(document Document) []string {
	parsed := gjson.ParseBytes(document.raw)
	if parsed.IsArray() {
		parsed = parsed.Get("0")
	}
	if !parsed.IsObject() {
		return nil
	}
	var keys []string
	parsed.ForEach(func(key, _ gjson.Result) bool {
		keys = append(keys, key.String())
		return true
	})
	return keys
}
