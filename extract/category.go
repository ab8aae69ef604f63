package extract

import (
	"encoding/json"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
)

// CategoryStrategy is one step of the category chain. Run returns an empty
// string when the strategy has nothing clean to offer.
type CategoryStrategy struct {
	Name string
	Run  func(p *Page, site *SiteProfile) string
}

// CategoryExtractor tries its strategies in order; the first non-empty
// result wins and is normalized.
type CategoryExtractor struct {
	Strategies []CategoryStrategy
}

// NewCategoryExtractor returns the default strategy chain.
func NewCategoryExtractor() *CategoryExtractor {
	return &CategoryExtractor{Strategies: []CategoryStrategy{
		{Name: "breadcrumb", Run: breadcrumbCategory},
		{Name: "structured_data", Run: structuredCategory},
		{Name: "meta_property", Run: metaPropertyCategory},
		{Name: "heading_keywords", Run: headingKeywordCategory},
		{Name: "headline", Run: headlineCategory},
		{Name: "meta_description", Run: metaDescriptionCategory},
		{Name: "legacy_selectors", Run: legacyCategory},
	}}
}

// Extract returns the normalized category and the name of the strategy that
// produced it. Both are empty when the category is undetermined.
func (e *CategoryExtractor) Extract(p *Page, site *SiteProfile) (category, strategy string) {
	if site == nil {
		site = GenericProfile()
	}
	for _, s := range e.Strategies {
		if raw := s.Run(p, site); raw != "" {
			return Normalize(raw), s.Name
		}
	}
	return "", ""
}

// KeywordCategory re-derives a category from the page heading, title and meta
// description using only the keyword table.
func KeywordCategory(p *Page) string {
	if c := headingKeywordCategory(p, nil); c != "" {
		return c
	}
	if c, ok := MatchKeywords(p.metaContent("description")); ok {
		return c
	}
	return ""
}

var breadcrumbSelector = cascadia.MustCompile(
	`nav[aria-label*="readcrumb"] li, .breadcrumb li, .breadcrumbs li, ol.breadcrumb > *, ` +
		`[itemtype*="BreadcrumbList"] [itemprop="itemListElement"], [class*="breadcrumb"] a`)

func breadcrumbCategory(p *Page, site *SiteProfile) string {
	items := p.Doc.FindMatcher(breadcrumbSelector)
	if items.Length() == 0 {
		return ""
	}
	last := collapseSpace(items.Last().Text())
	if last == "" || site.isBrand(last, p) || site.Noise.Noisy(last) {
		return ""
	}
	return last
}

func structuredCategory(p *Page, site *SiteProfile) string {
	var found string
	p.Doc.Find(`script[type="application/ld+json"]`).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		var doc any
		if err := json.Unmarshal([]byte(s.Text()), &doc); err != nil {
			return true
		}
		found = productCategory(doc)
		return found == ""
	})
	if found == "" {
		found = collapseSpace(p.Doc.Find(`[itemprop="category"]`).First().Text())
		if found == "" {
			found = p.metaContent("category")
		}
	}
	if found == "" || site.Noise.Noisy(found) || site.isBrand(found, p) {
		return ""
	}
	return found
}

// productCategory walks decoded JSON-LD looking for a Product node and returns
// its category or productType. Only string-typed values are trusted.
func productCategory(v any) string {
	switch t := v.(type) {
	case []any:
		for _, item := range t {
			if c := productCategory(item); c != "" {
				return c
			}
		}
	case map[string]any:
		if isProductType(t["@type"]) {
			for _, key := range []string{"category", "productType"} {
				if c := jsonLabel(t[key]); c != "" {
					return c
				}
			}
		}
		if g, ok := t["@graph"]; ok {
			return productCategory(g)
		}
	}
	return ""
}

func isProductType(v any) bool {
	switch t := v.(type) {
	case string:
		return strings.EqualFold(t, "Product") || strings.EqualFold(t, "ProductGroup")
	case []any:
		for _, item := range t {
			if isProductType(item) {
				return true
			}
		}
	}
	return false
}

// jsonLabel accepts "A > B", {"name": ...} or a list, returning the most
// specific segment.
func jsonLabel(v any) string {
	switch t := v.(type) {
	case string:
		parts := strings.FieldsFunc(t, func(r rune) bool { return r == '>' || r == '/' || r == '|' })
		if len(parts) == 0 {
			return ""
		}
		return collapseSpace(parts[len(parts)-1])
	case map[string]any:
		return jsonLabel(t["name"])
	case []any:
		for i := len(t) - 1; i >= 0; i-- {
			if c := jsonLabel(t[i]); c != "" {
				return c
			}
		}
	}
	return ""
}

var categoryMetaKeys = []string{"product:category", "og:product:category", "product:type", "product_type", "product-category"}

func metaPropertyCategory(p *Page, site *SiteProfile) string {
	for _, key := range categoryMetaKeys {
		if c := p.metaContent(key); c != "" && !site.Noise.Noisy(c) {
			return jsonLabel(c)
		}
	}
	return ""
}

func headingKeywordCategory(p *Page, _ *SiteProfile) string {
	h1 := collapseSpace(p.Doc.Find("h1").First().Text())
	if c, ok := MatchKeywords(h1); ok {
		return c
	}
	title := collapseSpace(p.Doc.Find("title").First().Text())
	if c, ok := MatchKeywords(title); ok {
		return c
	}
	return ""
}

const headlineStrip = "script, style, noscript, meta, sup, [itemprop]"

func headlineCategory(p *Page, site *SiteProfile) string {
	if site.Headline == nil {
		return ""
	}
	return containerText(p, site, site.Headline)
}

var legacySelector = cascadia.MustCompile(".product-category, .category-name, [data-category], h2.category, .product-type")

func legacyCategory(p *Page, site *SiteProfile) string {
	if c := containerText(p, site, legacySelector); c != "" {
		return c
	}
	if v, ok := p.Doc.Find("[data-category]").First().Attr("data-category"); ok {
		v = collapseSpace(v)
		if v != "" && !site.Noise.Noisy(v) {
			return v
		}
	}
	return ""
}

// containerText returns the first clean text of a matching container with
// its nested metadata removed.
func containerText(p *Page, site *SiteProfile, m goquery.Matcher) string {
	var out string
	p.Doc.FindMatcher(m).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		c := s.Clone()
		c.Find(headlineStrip).Remove()
		text := collapseSpace(c.Text())
		if text == "" || site.Noise.Noisy(text) || site.isBrand(text, p) {
			return true
		}
		out = text
		return false
	})
	return out
}

func metaDescriptionCategory(p *Page, site *SiteProfile) string {
	desc := p.metaContent("description")
	if desc == "" {
		if og := p.OpenGraph(); og != nil {
			desc = og.Description
		}
	}
	if desc == "" {
		return ""
	}
	if c, ok := MatchKeywords(desc); ok {
		return c
	}
	if site.Noise.Noisy(desc) || site.isBrand(desc, p) {
		return ""
	}
	return collapseSpace(desc)
}
