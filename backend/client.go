package backend

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

	"golang.org/x/time/rate"

	"github.com/use-agent/productlens/cache"
	"github.com/use-agent/productlens/extract"
	"github.com/use-agent/productlens/models"
)

// maxResponseBytes caps how much of a backend reply is read.
const maxResponseBytes = 8 << 20

// Options configures a Client.
type Options struct {
	BaseURL string // e.g. "http://127.0.0.1:8081"
	APIKey  string

	// Timeout bounds a single HTTP call.
	Timeout time.Duration

	// RequestsPerSecond and Burst rate-limit outbound calls. Zero disables limiting.
	RequestsPerSecond float64
	Burst             int

	// CacheTTL is how long a successful reply is reused. Zero disables caching.
	CacheTTL time.Duration
}

// Client talks to an advanced extraction service through
// POST /api/v1/scrape, which returns {success, content, metadata, images}.
type Client struct {
	httpClient *http.Client
	opts       Options
	limiter    *rate.Limiter
	store      cache.Store
	registry   *extract.Registry
}

// NewClient creates a Client. store may be nil to disable caching.
func NewClient(opts Options, store cache.Store, registry *extract.Registry) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	var limiter *rate.Limiter
	if opts.RequestsPerSecond > 0 {
		burst := opts.Burst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), burst)
	}
	if registry == nil {
		registry = extract.DefaultRegistry()
	}
	return &Client{
		httpClient: &http.Client{Timeout: opts.Timeout},
		opts:       opts,
		limiter:    limiter,
		store:      store,
		registry:   registry,
	}
}

// scrapeRequest is the body sent to the backend.
type scrapeRequest struct {
	URL          string `json:"url"`
	OutputFormat string `json:"output_format"`
	ExtractMode  string `json:"extract_mode"`
	FetchMode    string `json:"fetch_mode"`
}

// errorResponse captures a structured error from the backend.
type errorResponse struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// Scrape asks the backend for pageURL. Transport failures and non-2xx
// statuses return a BACKEND_FAILED error; a malformed or empty body returns a
// Miss. Only StructuredHit and PartialHit replies are cached.
func (c *Client) Scrape(ctx context.Context, pageURL string) (*Response, error) {
	u, err := url.Parse(pageURL)
	if err != nil {
		return nil, models.NewCrawlError(models.ErrCodeBackendFailed, "invalid page url", err)
	}
	noise := c.registry.Lookup(u.Hostname()).Noise
	key := cache.Key(c.opts.BaseURL, pageURL)

	if c.store != nil {
		if body, ok := c.store.Get(ctx, key); ok {
			if r := Parse(body, u, noise); r.Kind != Miss {
				r.Cached = true
				return r, nil
			}
		}
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, models.NewCrawlError(models.ErrCodeBackendFailed, "rate limit wait aborted", err)
		}
	}

	body, err := c.post(ctx, pageURL)
	if err != nil {
		return nil, err
	}

	r := Parse(body, u, noise)
	if r.Kind != Miss && c.store != nil && c.opts.CacheTTL > 0 {
		c.store.Set(ctx, key, body, c.opts.CacheTTL)
	}
	return r, nil
}

func (c *Client) post(ctx context.Context, pageURL string) ([]byte, error) {
	reqBody, err := json.Marshal(scrapeRequest{
		URL:          pageURL,
		OutputFormat: "markdown",
		ExtractMode:  "raw",
		FetchMode:    "auto",
	})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	endpoint := strings.TrimRight(c.opts.BaseURL, "/") + "/api/v1/scrape"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(reqBody))
	if err != nil {
		return nil, models.NewCrawlError(models.ErrCodeBackendFailed, "create request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.opts.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.opts.APIKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, models.NewCrawlError(models.ErrCodeBackendFailed, "backend request failed", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, models.NewCrawlError(models.ErrCodeBackendFailed, "failed to read backend response", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, classifyBackendError(resp.StatusCode, body)
	}
	return body, nil
}

// classifyBackendError turns a non-2xx reply into a CrawlError carrying the
// backend's own message when it sent one.
func classifyBackendError(status int, body []byte) error {
	var er errorResponse
	msg := fmt.Sprintf("backend returned HTTP %d", status)
	if json.Unmarshal(body, &er) == nil && er.Error.Message != "" {
		msg = fmt.Sprintf("%s: %s", msg, er.Error.Message)
	}
	return models.NewCrawlError(models.ErrCodeBackendFailed, msg, nil)
}
