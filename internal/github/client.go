package github

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/juju/clock"

	"charmcraftcache/internal/logging"
	"charmcraftcache/internal/store"
)

// apiVersion pins the GitHub REST API version header.
const apiVersion = "2022-11-28"

const (
	maxResponseBytes      = 32 << 20
	defaultRequestTimeout = 30 * time.Second
)

// ResponseCache persists ETag validated bodies between invocations.
type ResponseCache interface {
	Response(ctx context.Context, url string) (store.CachedResponse, bool, error)
	SaveResponse(ctx context.Context, url, etag string, body []byte) error
}

// Option configures the client.
type Option func(*Client)

// WithHTTPClient overrides the HTTP client used for all requests.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithToken authenticates API requests with a bearer token.
func WithToken(token string) Option {
	return func(c *Client) {
		c.token = strings.TrimSpace(token)
	}
}

// WithCache enables conditional GET requests backed by cache.
func WithCache(cache ResponseCache) Option {
	return func(c *Client) {
		c.cache = cache
	}
}

// WithRequestTimeout bounds API and document requests. Asset downloads are
// bounded by the caller's context instead.
func WithRequestTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.requestTimeout = timeout
		}
	}
}

// WithClock overrides the clock used for rate limit reporting.
func WithClock(clk clock.Clock) Option {
	return func(c *Client) {
		if clk != nil {
			c.clock = clk
		}
	}
}

// WithLogger attaches a logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// Client talks to the GitHub REST API and downloads release assets.
type Client struct {
	baseURL        string
	token          string
	httpClient     *http.Client
	requestTimeout time.Duration
	cache          ResponseCache
	clock          clock.Clock
	logger         *slog.Logger
}

// New constructs a client for the API rooted at baseURL.
func New(baseURL string, opts ...Option) (*Client, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		baseURL = "https://api.github.com"
	}
	if _, err := url.Parse(baseURL); err != nil {
		return nil, fmt.Errorf("github: parse base url: %w", err)
	}
	client := &Client{
		baseURL:        baseURL,
		httpClient:     &http.Client{},
		requestTimeout: defaultRequestTimeout,
		clock:          clock.WallClock,
		logger:         logging.NewNop(),
	}
	for _, opt := range opts {
		opt(client)
	}
	client.logger = logging.NewComponentLogger(client.logger, "github")
	return client, nil
}

// HasToken reports whether requests are authenticated.
func (c *Client) HasToken() bool {
	return c.token != ""
}

// Fetch performs a conditional GET of an absolute URL. A 304 response
// returns the cached body. Non-2xx responses return *APIError.
func (c *Client) Fetch(ctx context.Context, rawURL string) ([]byte, error) {
	return c.get(ctx, rawURL, false)
}

// ReleaseByTag returns the release tagged tag in repository (owner/name).
func (c *Client) ReleaseByTag(ctx context.Context, repository, tag string) (*Release, error) {
	endpoint := fmt.Sprintf("%s/repos/%s/releases/tags/%s", c.baseURL, repository, url.PathEscape(tag))
	body, err := c.get(ctx, endpoint, true)
	if err != nil {
		return nil, err
	}
	var release Release
	if err := json.Unmarshal(body, &release); err != nil {
		return nil, fmt.Errorf("github: decode release %s: %w", tag, err)
	}
	return &release, nil
}

// OpenAsset starts a download of a release asset. The caller closes the
// returned body. Non-2xx responses return *APIError.
func (c *Client) OpenAsset(ctx context.Context, downloadURL string) (io.ReadCloser, int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, downloadURL, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("github: build request: %w", err)
	}
	req.Header.Set("Accept", "application/octet-stream")
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("github: GET %s: %w", downloadURL, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		defer resp.Body.Close()
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		return nil, 0, c.apiError(resp, body)
	}
	return resp.Body, resp.ContentLength, nil
}

func (c *Client) get(ctx context.Context, rawURL string, api bool) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, c.requestTimeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("github: build request: %w", err)
	}
	if api {
		req.Header.Set("Accept", "application/vnd.github+json")
		req.Header.Set("X-GitHub-Api-Version", apiVersion)
		if c.token != "" {
			req.Header.Set("Authorization", "Bearer "+c.token)
		}
	}

	var cached store.CachedResponse
	var haveCached bool
	if c.cache != nil {
		cached, haveCached, err = c.cache.Response(ctx, rawURL)
		if err != nil {
			c.logger.Debug("response cache unavailable", logging.Error(err))
			haveCached = false
		}
		if haveCached {
			req.Header.Set("If-None-Match", cached.ETag)
		}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("github: GET %s: %w", rawURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotModified && haveCached {
		c.logger.Debug("http cache hit", logging.String("url", rawURL))
		return cached.Body, nil
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("github: read response body: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, c.apiError(resp, body)
	}

	if c.cache != nil {
		if err := c.cache.SaveResponse(ctx, rawURL, resp.Header.Get("ETag"), body); err != nil {
			c.logger.Debug("store response failed", logging.Error(err))
		}
	}
	c.logger.Debug("http cache miss", logging.String("url", rawURL))
	return body, nil
}
