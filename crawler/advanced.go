package crawler

import (
	"context"
	"errors"

	"github.com/use-agent/productlens/backend"
	"github.com/use-agent/productlens/engine"
	"github.com/use-agent/productlens/extract"
	"github.com/use-agent/productlens/models"
)

// tryAdvanced races the backend against the deadline. It reports false when
// the direct pipeline has to take over; the losing call is cancelled and
// never awaited.
func (c *Crawler) tryAdvanced(ctx context.Context, cr *crawl) (*backend.Response, bool) {
	if c.backend == nil {
		return nil, false
	}
	if c.memory != nil && c.memory.Skip(cr.raw) {
		c.metrics.ObserveBackend("skipped")
		cr.log.Info("backend skipped, host is cooling down")
		return nil, false
	}

	resp, err := engine.Race(ctx, c.deadline, func(ctx context.Context) (*backend.Response, error) {
		return c.backend.Scrape(ctx, cr.raw)
	})
	switch {
	case errors.Is(err, engine.ErrDeadline):
		c.metrics.ObserveBackend("deadline")
		c.markFailed(cr)
		cr.log.Warn("backend deadline elapsed, using direct pipeline", "deadline", c.deadline.String())
		return nil, false
	case err != nil:
		if ctx.Err() != nil {
			return nil, false
		}
		c.metrics.ObserveBackend("error")
		c.markFailed(cr)
		cr.log.Warn("backend failed, using direct pipeline", "error", err)
		return nil, false
	case resp == nil || resp.Kind == backend.Miss:
		c.metrics.ObserveBackend("miss")
		cr.log.Info("backend returned nothing usable, using direct pipeline")
		return nil, false
	}

	if c.memory != nil {
		c.memory.Clear(cr.raw)
	}
	c.metrics.ObserveBackend(resp.Kind.String())
	cr.log.Info("backend hit", "kind", resp.Kind.String(), "cached", resp.Cached)
	return resp, true
}

func (c *Crawler) markFailed(cr *crawl) {
	if c.memory != nil {
		c.memory.MarkFailed(cr.raw)
	}
}

// assembleAdvanced builds the result from backend signals and fills whichever
// of category and images the backend left empty from the page itself.
func (c *Crawler) assembleAdvanced(ctx context.Context, cr *crawl, resp *backend.Response) {
	res := cr.result
	res.Source = models.SourceAdvanced
	res.Title = resp.Title
	res.Description = resp.Description
	res.Markdown = c.digester.Trim(resp.Markdown)

	res.Category = extract.Normalize(resp.Category)
	if res.Category != "" {
		c.metrics.ObserveStrategy("category", "backend")
	}

	set := extract.NewCandidateSet(cr.site, c.candidateLimit)
	for _, img := range resp.Images {
		set.Add(img.URL, img.Alt)
	}
	if set.Len() > 0 {
		c.metrics.ObserveStrategy("image", "backend")
		res.Images = c.validator.Validate(ctx, set.Items())
	}

	if res.Category == "" || len(res.Images) == 0 {
		c.supplement(ctx, cr)
	}
	res.Language = extract.DetectLanguage(cr.url, cr.page, resp.Language)
}

// supplement fetches the page and runs the direct strategies for the missing
// signals. A failed fetch keeps whatever the backend supplied.
func (c *Crawler) supplement(ctx context.Context, cr *crawl) {
	page, err := c.fetchPage(ctx, cr)
	if err != nil {
		cr.log.Warn("supplementary page fetch failed, keeping backend signals", "error", err)
		return
	}
	cr.page = page

	res := cr.result
	res.Source = models.SourceMixed
	if res.Category == "" {
		res.Category = c.extractCategory(cr)
	}
	if len(res.Images) == 0 {
		res.Images = c.discoverAndValidate(ctx, cr)
	}
	if res.Title == "" {
		res.Title = pageTitle(cr)
	}
	if res.Description == "" {
		res.Description = extract.Description(page)
	}
	if res.Markdown == "" {
		res.Markdown = c.digester.Digest(page)
	}
}
