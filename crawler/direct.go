package crawler

import (
	"context"
	"net/url"

	"github.com/use-agent/productlens/extract"
	"github.com/use-agent/productlens/models"
)

// runDirect is the local fetch, detect, extract, discover and validate
// sequence. Only a page that cannot be retrieved fails it.
func (c *Crawler) runDirect(ctx context.Context, cr *crawl) error {
	page, err := c.fetchPage(ctx, cr)
	if err != nil {
		return models.NewCrawlError(models.ErrCodeFetchFailed, "could not retrieve page", err)
	}
	cr.page = page

	res := cr.result
	res.Source = models.SourceDirect
	res.Language = extract.DetectLanguage(cr.url, page)
	res.Category = c.extractCategory(cr)
	res.Images = c.discoverAndValidate(ctx, cr)
	res.Title = pageTitle(cr)
	res.Description = extract.Description(page)
	res.Markdown = c.digester.Digest(page)
	return nil
}

// fetchPage retrieves and parses the product page. Relative URLs resolve
// against the final URL after redirects.
func (c *Crawler) fetchPage(ctx context.Context, cr *crawl) (*extract.Page, error) {
	raw, err := c.pages.FetchPage(ctx, cr.raw)
	if err != nil {
		return nil, err
	}
	cr.fetchedTitle = raw.Title
	base := cr.url
	if raw.FinalURL != "" {
		if u, err := url.Parse(raw.FinalURL); err == nil && u.Host != "" {
			base = u
		}
	}
	return extract.NewPage(base, raw.HTML)
}

// pageTitle prefers the <title> read during the fetch over the parsed
// document's fallbacks.
func pageTitle(cr *crawl) string {
	if cr.fetchedTitle != "" {
		return cr.fetchedTitle
	}
	return extract.Title(cr.page)
}

func (c *Crawler) extractCategory(cr *crawl) string {
	category, strategy := c.categories.Extract(cr.page, cr.site)
	c.metrics.ObserveStrategy("category", strategy)
	cr.log.Debug("category extracted", "category", category, "strategy", strategy)
	return category
}

func (c *Crawler) discoverAndValidate(ctx context.Context, cr *crawl) []models.ImageAsset {
	candidates, strategy := c.discoverer.Discover(cr.page, cr.site)
	c.metrics.ObserveStrategy("image", strategy)
	cr.log.Debug("images discovered", "candidates", len(candidates), "strategy", strategy)
	if len(candidates) == 0 {
		return nil
	}
	return c.validator.Validate(ctx, candidates)
}
