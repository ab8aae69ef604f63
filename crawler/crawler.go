package crawler

import (
	"context"
	"log/slog"
	"net/url"
	"time"

	"github.com/google/uuid"

	"github.com/use-agent/productlens/backend"
	"github.com/use-agent/productlens/engine"
	"github.com/use-agent/productlens/extract"
	"github.com/use-agent/productlens/metrics"
	"github.com/use-agent/productlens/models"
	"github.com/use-agent/productlens/validator"
)

// Backend is the advanced extraction service.
type Backend interface {
	Scrape(ctx context.Context, pageURL string) (*backend.Response, error)
}

// Describer receives the validated images of every successful crawl.
// Describe must not block.
type Describer interface {
	Describe(requestID string, in models.DescribeInput)
}

// Deps wires a Crawler. Backend, Memory, Describer and Metrics are optional.
type Deps struct {
	Pages     engine.PageFetcher
	Validator *validator.Validator
	Backend   Backend
	Memory    *engine.DomainMemory
	Describer Describer
	Registry  *extract.Registry
	Metrics   *metrics.Metrics

	// BackendDeadline is how long the advanced backend may take before the
	// direct pipeline takes over.
	BackendDeadline time.Duration

	// CandidateLimit caps raw image candidates before validation.
	CandidateLimit int
	SiblingViews   int
	MinDimension   int

	// DigestRunes truncates the Markdown digest; 0 means unlimited.
	DigestRunes int
}

// Crawler turns a product-page URL into a CrawlResult. It holds no
// per-request state and is safe for concurrent use.
type Crawler struct {
	pages      engine.PageFetcher
	validator  *validator.Validator
	backend    Backend
	memory     *engine.DomainMemory
	describer  Describer
	registry   *extract.Registry
	metrics    *metrics.Metrics
	categories *extract.CategoryExtractor
	discoverer *extract.ImageDiscoverer
	digester   *extract.Digester

	deadline       time.Duration
	candidateLimit int
}

// New creates a Crawler.
func New(d Deps) *Crawler {
	if d.Registry == nil {
		d.Registry = extract.DefaultRegistry()
	}
	if d.BackendDeadline <= 0 {
		d.BackendDeadline = 15 * time.Second
	}
	if d.CandidateLimit <= 0 {
		d.CandidateLimit = 20
	}
	return &Crawler{
		pages:          d.Pages,
		validator:      d.Validator,
		backend:        d.Backend,
		memory:         d.Memory,
		describer:      d.Describer,
		registry:       d.Registry,
		metrics:        d.Metrics,
		categories:     extract.NewCategoryExtractor(),
		discoverer:     extract.NewImageDiscoverer(d.CandidateLimit, d.SiblingViews, d.MinDimension),
		digester:       extract.NewDigester(d.DigestRunes),
		deadline:       d.BackendDeadline,
		candidateLimit: d.CandidateLimit,
	}
}

// BackendEnabled reports whether an advanced backend is wired.
func (c *Crawler) BackendEnabled() bool { return c.backend != nil }

// crawl carries the state of one request.
type crawl struct {
	id     string
	url    *url.URL
	raw    string
	site   *extract.SiteProfile
	log    *slog.Logger
	page   *extract.Page
	result *models.CrawlResult

	// fetchedTitle is the <title> the fetcher read, empty when absent.
	fetchedTitle string
}

// Crawl runs the pipeline for rawURL. It returns INVALID_INPUT for a bad URL
// and FETCH_FAILED when the page cannot be retrieved at all. When no image
// survives validation it returns the fully assembled result together with a
// NO_IMAGES_FOUND error.
func (c *Crawler) Crawl(ctx context.Context, rawURL string) (*models.CrawlResult, error) {
	start := time.Now()
	req := models.CrawlRequest{URL: rawURL}
	u, err := req.Validate()
	if err != nil {
		return nil, err
	}

	id := uuid.NewString()
	cr := &crawl{
		id:   id,
		url:  u,
		raw:  u.String(),
		site: c.registry.Lookup(u.Hostname()),
		log:  slog.With("request_id", id, "url", u.String()),
		result: &models.CrawlResult{
			URL:       rawURL,
			RequestID: id,
		},
	}
	cr.log.Info("crawl started", "site", cr.site.Name, "backend", c.backend != nil)

	var pipelineErr error
	if resp, ok := c.tryAdvanced(ctx, cr); ok {
		c.assembleAdvanced(ctx, cr, resp)
	} else {
		if err := ctx.Err(); err != nil {
			pipelineErr = models.NewCrawlError(models.ErrCodeInternal, "crawl cancelled", err)
		} else {
			pipelineErr = c.runDirect(ctx, cr)
		}
	}
	if pipelineErr != nil {
		outcome := "internal_error"
		if models.HasCode(pipelineErr, models.ErrCodeFetchFailed) {
			outcome = "fetch_failed"
		}
		c.metrics.ObserveCrawl(cr.result.Source, outcome, time.Since(start))
		cr.log.Warn("crawl failed", "error", pipelineErr, "elapsed", time.Since(start).String())
		return nil, pipelineErr
	}

	c.overrideNoisyCategory(cr)

	res := cr.result
	if res.Images == nil {
		res.Images = []models.ImageAsset{}
	}
	cr.log.Info("crawl finished",
		"source", res.Source,
		"language", res.Language,
		"category", res.Category,
		"images", len(res.Images),
		"elapsed", time.Since(start).String(),
	)

	if len(res.Images) == 0 {
		c.metrics.ObserveCrawl(res.Source, "no_images", time.Since(start))
		return res, models.NewCrawlError(models.ErrCodeNoImages, "no product images found on page", nil)
	}
	c.metrics.ObserveCrawl(res.Source, "ok", time.Since(start))
	if c.describer != nil {
		c.describer.Describe(id, res.DescribeInput())
	}
	return res, nil
}
