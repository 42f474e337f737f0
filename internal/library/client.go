// Package library talks to the Radarr and Sonarr v3 APIs.
//
// Only two calls are needed: a title search used to detect items that are
// already in the library, and a create that adds a new item by title. Each
// call is a single attempt bounded by the client timeout.
package library

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/text/cases"

	"github.com/tbourn/go-reqlarr/internal/observability"
)

const (
	searchPathTemplate = "%s/api/v3/search?term=%s"
	createPathTemplate = "%s/api/v3/%s"

	apiKeyHeader = "X-Api-Key"

	// maxSearchBody caps how much of a search response is decoded.
	maxSearchBody = 8 << 20
)

// Resource is the collection a create call targets.
type Resource string

const (
	ResourceMovie  Resource = "movie"
	ResourceSeries Resource = "series"
)

// Endpoint identifies one media service instance and its credential.
type Endpoint struct {
	Service string // "radarr" or "sonarr", used for metrics and errors
	BaseURL string
	APIKey  string
}

type searchItem struct {
	Title string `json:"title"`
}

type createBody struct {
	Title string `json:"title"`
}

// Client performs search and create calls. It is safe for concurrent use.
type Client struct {
	http *http.Client
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client entirely.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// New returns a Client whose requests time out after timeout and are traced
// through otelhttp.
func New(timeout time.Duration, opts ...Option) *Client {
	c := &Client{
		http: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Exists reports whether the service already knows an item whose title equals
// title under Unicode case folding. The first match wins; there is no partial
// matching. Any failure is returned wrapped in ErrUnreachable.
func (c *Client) Exists(ctx context.Context, ep Endpoint, title string) (bool, error) {
	u := fmt.Sprintf(searchPathTemplate, baseURL(ep), url.QueryEscape(title))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return false, c.fail(ep, "search", fmt.Errorf("%w: %w", ErrUnreachable, err))
	}
	req.Header.Set(apiKeyHeader, ep.APIKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return false, c.fail(ep, "search", fmt.Errorf("%s search: %w: %w", ep.Service, ErrUnreachable, err))
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return false, c.fail(ep, "search", &StatusError{Service: ep.Service, Op: "search", StatusCode: resp.StatusCode, Err: ErrUnreachable})
	}

	var items []searchItem
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxSearchBody)).Decode(&items); err != nil {
		return false, c.fail(ep, "search", fmt.Errorf("%s search: decode: %w: %w", ep.Service, ErrUnreachable, err))
	}
	return matchTitle(items, title), nil
}

// Create asks the service to add title. Only 201 Created counts as success;
// any other status is a *StatusError wrapping ErrRejected.
func (c *Client) Create(ctx context.Context, ep Endpoint, res Resource, title string) error {
	body, err := json.Marshal(createBody{Title: title})
	if err != nil {
		return c.fail(ep, "create", fmt.Errorf("%s create: %w", ep.Service, err))
	}

	u := fmt.Sprintf(createPathTemplate, baseURL(ep), res)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(body))
	if err != nil {
		return c.fail(ep, "create", fmt.Errorf("%w: %w", ErrUnreachable, err))
	}
	req.Header.Set(apiKeyHeader, ep.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return c.fail(ep, "create", fmt.Errorf("%s create: %w: %w", ep.Service, ErrUnreachable, err))
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	if resp.StatusCode != http.StatusCreated {
		return c.fail(ep, "create", &StatusError{Service: ep.Service, Op: "create", StatusCode: resp.StatusCode, Err: ErrRejected})
	}
	return nil
}

func (c *Client) fail(ep Endpoint, op string, err error) error {
	service := ep.Service
	if service == "" {
		service = "unknown"
	}
	observability.LibraryErrors.WithLabelValues(service, op).Inc()
	return err
}

func matchTitle(items []searchItem, title string) bool {
	fold := cases.Fold()
	want := fold.String(title)
	for _, it := range items {
		if fold.String(it.Title) == want {
			return true
		}
	}
	return false
}

func baseURL(ep Endpoint) string {
	return strings.TrimRight(strings.TrimSpace(ep.BaseURL), "/")
}
