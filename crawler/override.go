package crawler

import (
	"github.com/use-agent/productlens/extract"
)

// overrideNoisyCategory replaces a category that looks like promotional text
// for vendors whose pages leak it into category slots. The replacement comes
// from the keyword table only; when nothing matches the category is cleared.
func (c *Crawler) overrideNoisyCategory(cr *crawl) {
	res := cr.result
	if !cr.site.OverrideNoisyCategory || res.Category == "" || !cr.site.Noise.Noisy(res.Category) {
		return
	}

	var derived string
	if cr.page != nil {
		derived = extract.KeywordCategory(cr.page)
	}
	if derived == "" {
		for _, text := range []string{res.Title, res.Description} {
			if cat, ok := extract.MatchKeywords(text); ok {
				derived = cat
				break
			}
		}
	}

	cr.log.Info("noisy category overridden", "was", res.Category, "now", derived)
	c.metrics.ObserveStrategy("category", "override")
	res.Category = extract.Normalize(derived)
}
