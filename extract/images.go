package extract

import (
	"net/url"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Candidate is a discovered image URL awaiting validation.
type Candidate struct {
	URL string
	Alt string
	Key string
}

// CandidateSet collects candidates in discovery order, rejecting duplicate
// identity keys and stopping at a limit.
type CandidateSet struct {
	site  *SiteProfile
	limit int
	seen  map[string]struct{}
	items []Candidate
}

// NewCandidateSet creates a set keyed by site's image identity.
func NewCandidateSet(site *SiteProfile, limit int) *CandidateSet {
	return &CandidateSet{site: site, limit: limit, seen: make(map[string]struct{})}
}

// Add inserts an absolute URL. It reports false when the URL is unusable or
// a duplicate, or the set is already full.
func (c *CandidateSet) Add(rawURL, alt string) bool {
	if c.Full() {
		return false
	}
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return false
	}
	key := c.site.ImageKey(u)
	if _, dup := c.seen[key]; dup {
		return false
	}
	c.seen[key] = struct{}{}
	c.items = append(c.items, Candidate{URL: rawURL, Alt: collapseSpace(alt), Key: key})
	return true
}

// Full reports whether the limit has been reached.
func (c *CandidateSet) Full() bool {
	return c.limit > 0 && len(c.items) >= c.limit
}

// Len returns the number of collected candidates.
func (c *CandidateSet) Len() int { return len(c.items) }

// Items returns the candidates in discovery order.
func (c *CandidateSet) Items() []Candidate { return c.items }

// ImageStrategy is one step of the discovery chain.
type ImageStrategy struct {
	Name string
	Run  func(d *ImageDiscoverer, p *Page, site *SiteProfile, set *CandidateSet)
}

// ImageDiscoverer locates candidate product images on a page. The first
// strategy that yields at least one candidate short-circuits the rest.
type ImageDiscoverer struct {
	// Limit caps the number of raw candidates.
	Limit int

	// SiblingViews is how many neighbouring views the primary strategy
	// synthesizes from a confirmed main image.
	SiblingViews int

	// MinDimension rejects generic-fallback images whose declared width or
	// height is below it.
	MinDimension int

	Strategies []ImageStrategy
}

// NewImageDiscoverer returns a discoverer with the default strategy chain.
func NewImageDiscoverer(limit, siblingViews, minDimension int) *ImageDiscoverer {
	return &ImageDiscoverer{
		Limit:        limit,
		SiblingViews: siblingViews,
		MinDimension: minDimension,
		Strategies: []ImageStrategy{
			{Name: "primary", Run: primaryImages},
			{Name: "carousel", Run: carouselImages},
			{Name: "generic", Run: genericImages},
		},
	}
}

// Discover returns the candidates and the name of the strategy that found them.
func (d *ImageDiscoverer) Discover(p *Page, site *SiteProfile) ([]Candidate, string) {
	if site == nil {
		site = GenericProfile()
	}
	for _, s := range d.Strategies {
		set := NewCandidateSet(site, d.Limit)
		s.Run(d, p, site, set)
		if set.Len() > 0 {
			return set.Items(), s.Name
		}
	}
	return nil, ""
}

func primaryImages(d *ImageDiscoverer, p *Page, site *SiteProfile, set *CandidateSet) {
	if site.MainImage == nil {
		return
	}
	p.Doc.FindMatcher(site.MainImage).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		src, ok := imageSource(p.URL, s)
		if !ok {
			return true
		}
		alt := s.AttrOr("alt", "")
		set.Add(src, alt)
		if u, err := url.Parse(src); err == nil {
			for _, sib := range site.SiblingViews(u, d.SiblingViews) {
				set.Add(sib, alt)
			}
		}
		return false
	})
}

func carouselImages(_ *ImageDiscoverer, p *Page, site *SiteProfile, set *CandidateSet) {
	if site.Carousel == nil {
		return
	}
	p.Doc.FindMatcher(site.Carousel).Find("img, source").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		alt := s.AttrOr("alt", "")
		if goquery.NodeName(s) == "source" {
			for _, attr := range []string{"srcset", "data-srcset"} {
				if v, ok := s.Attr(attr); ok {
					if u, ok := ResolveImageURL(p.URL, bestSrcset(v)); ok {
						set.Add(u, alt)
						break
					}
				}
			}
			return !set.Full()
		}
		if src, ok := imageSource(p.URL, s); ok {
			set.Add(src, alt)
		}
		return !set.Full()
	})
}

var genericImageSelectors = []string{
	`img[class*="product"]`, `img[id*="product"]`,
	`[class*="product"] img`, `[id*="product"] img`,
	`[class*="gallery"] img`, `[id*="gallery"] img`,
	`img[alt*="product"]`, `img[alt*="Product"]`,
}

// excludedImageTokens mark decorative or promotional assets by URL or alt text.
var excludedImageTokens = []string{
	"logo", "banner", "icon", "sprite", "promo", "badge", "placeholder",
	"spinner", "loader", "avatar", "payment", "flag", "social", "tracking", "pixel",
}

// excludedContainers hold navigation and suggested-item carousels.
const excludedContainers = `header, footer, nav, [class*="recommend"], [class*="related"], ` +
	`[class*="suggest"], [class*="upsell"], [class*="recently"], [class*="also-like"], ` +
	`[id*="recommend"], [id*="related"]`

func genericImages(d *ImageDiscoverer, p *Page, site *SiteProfile, set *CandidateSet) {
	selectors := append(append([]string(nil), genericImageSelectors...), site.ExtraImageSelectors...)
	p.Doc.Find(strings.Join(selectors, ", ")).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if goquery.NodeName(s) != "img" {
			return true
		}
		src, ok := imageSource(p.URL, s)
		if !ok {
			return true
		}
		alt := s.AttrOr("alt", "")
		if hasExcludedToken(src, alt) {
			return true
		}
		if s.Closest(excludedContainers).Length() > 0 {
			return true
		}
		if d.tooSmall(s) {
			return true
		}
		set.Add(src, alt)
		return !set.Full()
	})
}

// hasExcludedToken matches whole words only: URL path segments split on
// punctuation and alt-text words. "silicone" does not contain "icon".
func hasExcludedToken(src, alt string) bool {
	padded := " " + wordText(src+" "+alt) + " "
	for _, t := range excludedImageTokens {
		if containsWord(padded, t) {
			return true
		}
	}
	return false
}

// tooSmall reports whether the markup declares a width or height below the
// minimum. Missing or unparseable dimensions pass.
func (d *ImageDiscoverer) tooSmall(s *goquery.Selection) bool {
	if d.MinDimension <= 0 {
		return false
	}
	for _, attr := range []string{"width", "height"} {
		v, ok := s.Attr(attr)
		if !ok {
			continue
		}
		n, err := strconv.Atoi(strings.TrimSuffix(strings.TrimSpace(v), "px"))
		if err == nil && n > 0 && n < d.MinDimension {
			return true
		}
	}
	return false
}
