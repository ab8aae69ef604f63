package extract

import (
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/andybalholm/cascadia"
)

// SiteProfile holds everything vendor-specific about a storefront: which
// containers carry the category and the product images, how its CDN encodes
// image identity, and which noise rules apply. Adding a vendor is a matter of
// registering another profile.
type SiteProfile struct {
	Name string

	// Domains are host suffixes served by this profile ("triumph.com"
	// matches "uk.triumph.com").
	Domains []string

	// Brands are lowercase names that must never be returned as a category.
	Brands []string

	// Headline matches semantic containers whose text is the category.
	Headline cascadia.Selector

	// MainImage matches the confirmed main product <img>.
	MainImage cascadia.Selector

	// Carousel matches product image carousel containers.
	Carousel cascadia.Selector

	// ExtraImageSelectors are appended to the generic fallback selectors.
	ExtraImageSelectors []string

	// ImagePattern recognises the vendor CDN naming scheme. It must define the
	// named groups "id", "view" and "variant".
	ImagePattern *regexp.Regexp

	// OverrideNoisyCategory enables the post-pass that replaces a category
	// that looks like scraped promotional text.
	OverrideNoisyCategory bool

	Noise NoiseFilter
}

// ImageKey returns the identity used to deduplicate images: the
// product-id/view-type/variant triple when the URL matches the CDN pattern,
// otherwise the URL without its query string.
func (s *SiteProfile) ImageKey(u *url.URL) string {
	if s != nil && s.ImagePattern != nil {
		if m := s.ImagePattern.FindStringSubmatch(u.Path); m != nil {
			id := m[s.ImagePattern.SubexpIndex("id")]
			view := strings.ToUpper(m[s.ImagePattern.SubexpIndex("view")])
			variant, err := strconv.Atoi(m[s.ImagePattern.SubexpIndex("variant")])
			if err == nil {
				return fmt.Sprintf("%s:%s:%d", id, view, variant)
			}
		}
	}
	return stripQuery(u)
}

// SiblingViews synthesizes up to n URLs for neighbouring views of the same
// product by incrementing the variant number in a recognised CDN URL.
// Unrecognised URLs yield nothing.
func (s *SiteProfile) SiblingViews(u *url.URL, n int) []string {
	if s == nil || s.ImagePattern == nil || n <= 0 {
		return nil
	}
	idx := s.ImagePattern.FindStringSubmatchIndex(u.Path)
	if idx == nil {
		return nil
	}
	g := s.ImagePattern.SubexpIndex("variant")
	start, end := idx[2*g], idx[2*g+1]
	digits := u.Path[start:end]
	current, err := strconv.Atoi(digits)
	if err != nil {
		return nil
	}

	out := make([]string, 0, n)
	for i := 1; i <= n; i++ {
		next := fmt.Sprintf("%0*d", len(digits), current+i)
		c := *u
		c.Path = u.Path[:start] + next + u.Path[end:]
		c.RawPath = ""
		out = append(out, c.String())
	}
	return out
}

// Matches reports whether host belongs to this profile.
func (s *SiteProfile) Matches(host string) bool {
	host = strings.ToLower(strings.TrimSuffix(host, "."))
	for _, d := range s.Domains {
		if host == d || strings.HasSuffix(host, "."+d) {
			return true
		}
	}
	return false
}

// isBrand reports whether text is, or merely echoes, the site or brand name.
func (s *SiteProfile) isBrand(text string, p *Page) bool {
	t := strings.ToLower(collapseSpace(text))
	if t == "" {
		return false
	}
	names := append([]string(nil), s.Brands...)
	if p != nil {
		if label := siteLabel(p.URL); label != "" {
			names = append(names, label)
		}
		if og := p.OpenGraph(); og != nil && og.SiteName != "" {
			names = append(names, strings.ToLower(og.SiteName))
		}
	}
	for _, n := range names {
		if n == "" {
			continue
		}
		if t == n || strings.HasPrefix(t, n+" ") || strings.HasSuffix(t, " "+n) {
			return true
		}
	}
	return false
}

// siteLabel is the registrable label of the host ("triumph" for uk.triumph.com).
func siteLabel(u *url.URL) string {
	if u == nil {
		return ""
	}
	parts := strings.Split(strings.ToLower(u.Hostname()), ".")
	if len(parts) < 2 {
		return ""
	}
	label := parts[len(parts)-2]
	// co.uk style suffixes
	if len(parts) >= 3 && (label == "co" || label == "com") && len(parts[len(parts)-1]) == 2 {
		label = parts[len(parts)-3]
	}
	return label
}

// Registry resolves a host to its SiteProfile.
type Registry struct {
	profiles []*SiteProfile
	fallback *SiteProfile
}

// NewRegistry builds a registry; fallback serves unrecognised hosts.
func NewRegistry(fallback *SiteProfile, profiles ...*SiteProfile) *Registry {
	return &Registry{profiles: profiles, fallback: fallback}
}

// Lookup returns the profile for host, or the fallback.
func (r *Registry) Lookup(host string) *SiteProfile {
	for _, p := range r.profiles {
		if p.Matches(host) {
			return p
		}
	}
	return r.fallback
}

// DefaultRegistry knows the Triumph group storefronts and falls back to the
// generic profile.
func DefaultRegistry() *Registry {
	return NewRegistry(GenericProfile(), TriumphProfile(), SloggiProfile())
}

// triumphImagePattern matches CDN names like 10214534_0004_MOD01.jpg:
// product id, colour code, view type, view variant.
var triumphImagePattern = regexp.MustCompile(`(?i)(?P<id>\d{6,})[_-](?P<colour>[0-9a-z]{2,6})[_-](?P<view>[a-z]{2,6})(?P<variant>\d{1,3})\.(?:jpe?g|png|webp)$`)

// TriumphProfile serves triumph.com storefronts.
func TriumphProfile() *SiteProfile {
	return &SiteProfile{
		Name:                  "triumph",
		Domains:               []string{"triumph.com"},
		Brands:                []string{"triumph"},
		Headline:              cascadia.MustCompile(".headline.headline--h9-rs"),
		MainImage:             cascadia.MustCompile(".product-detail__main-image img, .pdp-main-image img, [data-testid=product-main-image] img"),
		Carousel:              cascadia.MustCompile(".product-carousel, .pdp-image-carousel, [data-testid=product-image-carousel]"),
		ExtraImageSelectors:   []string{`img[src*="contentstore"]`, `img[src*="triumph"]`},
		ImagePattern:          triumphImagePattern,
		OverrideNoisyCategory: true,
		Noise:                 DefaultNoise.With("new in", "bestseller", "member price"),
	}
}

// SloggiProfile serves sloggi.com, which shares Triumph's storefront platform.
func SloggiProfile() *SiteProfile {
	p := TriumphProfile()
	p.Name = "sloggi"
	p.Domains = []string{"sloggi.com"}
	p.Brands = []string{"sloggi"}
	p.ExtraImageSelectors = []string{`img[src*="contentstore"]`, `img[src*="sloggi"]`}
	return p
}

// GenericProfile serves unrecognised hosts with the conventional product-page selectors.
func GenericProfile() *SiteProfile {
	return &SiteProfile{
		Name:      "generic",
		Headline:  cascadia.MustCompile(".product-category, .category-name, [data-category], h2.category, .product-type"),
		MainImage: cascadia.MustCompile(".product-main-image img, .main-product-image img, img.main-product-image, #main-image"),
		Carousel:  cascadia.MustCompile(".product-carousel, .product-images, .product-gallery, [data-product-images]"),
		Noise:     DefaultNoise,
	}
}
