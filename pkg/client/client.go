// Package client is the HTTP/WebSocket client for the narration server's
// override and preview API.
//
// Every write endpoint answers with the full authoritative override state
// (an [override.Payload]); callers are expected to replace their local
// state with it wholesale rather than patching incrementally.
//
// Typical usage:
//
//	c, err := client.New("http://127.0.0.1:7851",
//	    client.WithTimeout(15*time.Second),
//	)
//	payload, err := c.UpsertOverride(ctx, client.UpsertRequest{
//	    Token:         "Kaelith",
//	    Pronunciation: "KAY-lith",
//	    Voice:         "af_bella*0.60+af_sky*0.40",
//	    Source:        override.SourceManual,
//	})
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/narravoxlabs/narravox/pkg/override"
)

// API endpoint paths, relative to the server base URL.
const (
	overridesEndpoint      = "/api/overrides"
	searchEndpoint         = "/api/overrides/search"
	entitiesEndpoint       = "/api/entities"
	speakerPreviewEndpoint = "/api/speaker-preview"
	profilePreviewEndpoint = "/api/voice-profiles/preview"
	eventsEndpoint         = "/api/events"

	defaultTimeout   = 15 * time.Second
	defaultUserAgent = "narravox"

	// maxErrorBody bounds how much of an error response is kept for the
	// error message.
	maxErrorBody = 512
)

// APIError is returned when the server answers with a non-2xx status.
type APIError struct {
	// Status is the HTTP status code.
	Status int

	// Body is the response body, truncated to a short snippet.
	Body string
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("server returned status %d", e.Status)
	}
	return fmt.Sprintf("server returned status %d: %s", e.Status, e.Body)
}

// Option is a functional option for configuring a [Client].
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client, e.g. to install an
// instrumented transport. The client's Timeout is preserved unless the
// replacement sets its own.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithTimeout sets the per-request timeout. Defaults to 15s.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.httpClient.Timeout = d
	}
}

// WithUserAgent overrides the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(c *Client) {
		c.userAgent = ua
	}
}

// WithLogger sets the logger for request-level debug logging. Defaults to
// [slog.Default].
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// Client talks to one narration server. It is safe for concurrent use.
type Client struct {
	baseURL    string
	httpClient *http.Client
	userAgent  string
	logger     *slog.Logger
}

// New creates a [Client] for the server at baseURL (e.g.
// "http://127.0.0.1:7851"). baseURL must be non-empty.
func New(baseURL string, opts ...Option) (*Client, error) {
	if baseURL == "" {
		return nil, errors.New("client: baseURL must not be empty")
	}
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		userAgent:  defaultUserAgent,
		logger:     slog.Default(),
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
	for _, o := range opts {
		o(c)
	}
	return c, nil
}

// BaseURL returns the normalized server base URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// UpsertRequest is the body of an override create/update call.
type UpsertRequest struct {
	// ID targets an existing override; leave empty to create one.
	ID string `json:"id,omitempty"`

	Token         string          `json:"token"`
	Normalized    string          `json:"normalized"`
	Context       string          `json:"context,omitempty"`
	Pronunciation string          `json:"pronunciation,omitempty"`
	Voice         string          `json:"voice,omitempty"`
	Notes         string          `json:"notes,omitempty"`
	Source        override.Source `json:"source"`
}

// UpsertOverride creates or updates an override and returns the new
// authoritative state. Normalized is derived from Token when empty, and the
// request is validated client-side before any network traffic.
func (c *Client) UpsertOverride(ctx context.Context, req UpsertRequest) (*override.Payload, error) {
	if req.Normalized == "" {
		req.Normalized = override.Canonicalize(req.Token)
	}
	if err := override.Validate(override.Override{
		ID:            req.ID,
		Token:         req.Token,
		Normalized:    req.Normalized,
		Context:       req.Context,
		Pronunciation: req.Pronunciation,
		Voice:         req.Voice,
		Notes:         req.Notes,
		Source:        req.Source,
	}); err != nil {
		return nil, fmt.Errorf("client: upsert override: %w", err)
	}

	return c.doPayload(ctx, http.MethodPost, overridesEndpoint, nil, req)
}

// DeleteOverride removes an override by id and returns the new
// authoritative state.
func (c *Client) DeleteOverride(ctx context.Context, id string) (*override.Payload, error) {
	if id == "" {
		return nil, errors.New("client: delete override: id must not be empty")
	}
	return c.doPayload(ctx, http.MethodDelete, overridesEndpoint+"/"+url.PathEscape(id), nil, nil)
}

// RefreshEntities re-reads entity detection state. With force, the server
// recomputes from scratch; otherwise cacheKey (from the last payload) lets
// it answer from cache when nothing changed.
func (c *Client) RefreshEntities(ctx context.Context, force bool, cacheKey string) (*override.Payload, error) {
	query := url.Values{}
	if force {
		query.Set("refresh", "1")
	}
	if cacheKey != "" {
		query.Set("cache_key", cacheKey)
	}
	return c.doPayload(ctx, http.MethodGet, entitiesEndpoint, query, nil)
}

// searchResponse is the body of GET /api/overrides/search.
type searchResponse struct {
	Results []override.Override `json:"results"`
}

// SearchOverrides queries the server's override index.
func (c *Client) SearchOverrides(ctx context.Context, q string) ([]override.Override, error) {
	query := url.Values{}
	query.Set("q", q)

	body, err := c.do(ctx, http.MethodGet, searchEndpoint, query, nil, "application/json")
	if err != nil {
		return nil, err
	}

	var resp searchResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("client: decode search response: %w", err)
	}
	return resp.Results, nil
}

// doPayload performs a request whose response body is an [override.Payload].
func (c *Client) doPayload(ctx context.Context, method, path string, query url.Values, reqBody any) (*override.Payload, error) {
	body, err := c.do(ctx, method, path, query, reqBody, "application/json")
	if err != nil {
		return nil, err
	}

	var payload override.Payload
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("client: decode payload from %s %s: %w", method, path, err)
	}
	return &payload, nil
}

// do executes one HTTP request and returns the raw response body. Non-2xx
// statuses become an [*APIError].
func (c *Client) do(ctx context.Context, method, path string, query url.Values, reqBody any, accept string) ([]byte, error) {
	reqURL := c.baseURL + path
	if len(query) > 0 {
		reqURL += "?" + query.Encode()
	}

	var bodyReader io.Reader
	if reqBody != nil {
		data, err := json.Marshal(reqBody)
		if err != nil {
			return nil, fmt.Errorf("client: marshal %s %s request: %w", method, path, err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, reqURL, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("client: create %s %s request: %w", method, path, err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", accept)
	if reqBody != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	c.logger.Debug("api request", "method", method, "path", path)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("client: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("client: read %s %s response: %w", method, path, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet := strings.TrimSpace(string(body))
		if len(snippet) > maxErrorBody {
			snippet = snippet[:maxErrorBody]
		}
		return nil, fmt.Errorf("client: %s %s: %w", method, path, &APIError{
			Status: resp.StatusCode,
			Body:   snippet,
		})
	}

	return body, nil
}
