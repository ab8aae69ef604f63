package extract

import (
	"fmt"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustURL(t *testing.T, raw string) *url.URL {
	t.Helper()
	u, err := url.Parse(raw)
	require.NoError(t, err)
	return u
}

func candidateURLs(cs []Candidate) []string {
	out := make([]string, len(cs))
	for i, c := range cs {
		out[i] = c.URL
	}
	return out
}

func TestSiteProfile_ImageKey(t *testing.T) {
	triumph := TriumphProfile()

	k1 := triumph.ImageKey(mustURL(t, "https://images.triumph.com/is/image/Triumph/10214534_0004_MOD01.jpg?wid=400"))
	k2 := triumph.ImageKey(mustURL(t, "https://cdn.triumph.com/media/10214534-0004-mod1.jpg"))
	assert.Equal(t, "10214534:MOD:1", k1)
	assert.Equal(t, k1, k2)

	generic := triumph.ImageKey(mustURL(t, "https://CDN.example.com/a/b.jpg?w=300#x"))
	assert.Equal(t, "https://cdn.example.com/a/b.jpg", generic)
	assert.Equal(t, generic, GenericProfile().ImageKey(mustURL(t, "https://cdn.example.com/a/b.jpg?w=1200")))
}

func TestSiteProfile_SiblingViews(t *testing.T) {
	triumph := TriumphProfile()
	u := mustURL(t, "https://images.triumph.com/Triumph/10214534_0004_MOD01.jpg?wid=800")

	assert.Equal(t, []string{
		"https://images.triumph.com/Triumph/10214534_0004_MOD02.jpg?wid=800",
		"https://images.triumph.com/Triumph/10214534_0004_MOD03.jpg?wid=800",
		"https://images.triumph.com/Triumph/10214534_0004_MOD04.jpg?wid=800",
	}, triumph.SiblingViews(u, 3))

	assert.Empty(t, triumph.SiblingViews(mustURL(t, "https://cdn.example.com/a.jpg"), 3))
	assert.Empty(t, GenericProfile().SiblingViews(u, 3))
}

func TestRegistry_Lookup(t *testing.T) {
	r := DefaultRegistry()
	assert.Equal(t, "triumph", r.Lookup("uk.triumph.com").Name)
	assert.Equal(t, "triumph", r.Lookup("triumph.com").Name)
	assert.Equal(t, "sloggi", r.Lookup("www.sloggi.com").Name)
	assert.Equal(t, "generic", r.Lookup("nottriumph.com").Name)
	assert.Equal(t, "generic", r.Lookup("shop.example.com").Name)
}

func TestResolveImageURL(t *testing.T) {
	base := mustURL(t, "https://shop.example.com/en/p/1")
	tests := []struct {
		raw  string
		want string
		ok   bool
	}{
		{"//cdn.example.com/a.jpg", "https://cdn.example.com/a.jpg", true},
		{"/media/a.jpg", "https://shop.example.com/media/a.jpg", true},
		{"a.jpg#zoom", "https://shop.example.com/en/p/a.jpg", true},
		{"data:image/gif;base64,R0lGODlhAQABAAAAACw=", "", false},
		{"javascript:void(0)", "", false},
		{"  ", "", false},
		{"ftp://example.com/a.jpg", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, ok := ResolveImageURL(base, tt.raw)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestBestSrcset(t *testing.T) {
	assert.Equal(t, "/b.jpg", bestSrcset("/a.jpg 400w, /b.jpg 1200w, /c.jpg 800w"))
	assert.Equal(t, "/hi.jpg", bestSrcset("/lo.jpg 1x, /hi.jpg 2x"))
	assert.Equal(t, "/only.jpg", bestSrcset("/only.jpg"))
	assert.Empty(t, bestSrcset(""))
}

func TestImageDiscoverer_PrimaryWithSiblingViews(t *testing.T) {
	p := newTestPage(t, "https://www.triumph.com/en/p/1", `<html><body>
<div class="product-detail__main-image">
  <img src="data:image/gif;base64,R0lGODlhAQABAAAAACw=" data-src="//images.triumph.com/Triumph/10214534_0004_MOD01.jpg" alt="Front">
</div>
<div class="product-carousel"><img src="/x/other.jpg"></div>
</body></html>`)

	d := NewImageDiscoverer(20, 3, 100)
	got, strategy := d.Discover(p, TriumphProfile())

	assert.Equal(t, "primary", strategy)
	assert.Equal(t, []string{
		"https://images.triumph.com/Triumph/10214534_0004_MOD01.jpg",
		"https://images.triumph.com/Triumph/10214534_0004_MOD02.jpg",
		"https://images.triumph.com/Triumph/10214534_0004_MOD03.jpg",
		"https://images.triumph.com/Triumph/10214534_0004_MOD04.jpg",
	}, candidateURLs(got))
	assert.Equal(t, "Front", got[0].Alt)
}

func TestImageDiscoverer_CarouselDedupesBySiteKey(t *testing.T) {
	p := newTestPage(t, "https://www.triumph.com/en/p/1", `<html><body>
<div class="product-carousel">
  <picture>
    <source srcset="https://images.triumph.com/Triumph/10214534_0004_MOD01.webp 600w, https://images.triumph.com/Triumph/10214534_0004_MOD01.jpg?wid=1200 1200w">
    <img src="https://images.triumph.com/Triumph/10214534_0004_MOD01.jpg?wid=400">
  </picture>
  <img src="https://images.triumph.com/Triumph/10214534_0004_MOD02.jpg">
  <img src="https://other-cdn.triumph.com/10214534-0004-mod2.jpg">
  <img srcset="/media/detail.jpg 1x, /media/detail@2x.jpg 2x">
</div>
</body></html>`)

	got, strategy := NewImageDiscoverer(20, 3, 100).Discover(p, TriumphProfile())

	assert.Equal(t, "carousel", strategy)
	assert.Equal(t, []string{
		"https://images.triumph.com/Triumph/10214534_0004_MOD01.jpg?wid=1200",
		"https://images.triumph.com/Triumph/10214534_0004_MOD02.jpg",
		"https://www.triumph.com/media/detail@2x.jpg",
	}, candidateURLs(got))
}

func TestImageDiscoverer_GenericFiltersDecoys(t *testing.T) {
	p := newTestPage(t, "https://shop.example.com/en/p/1", `<html><body>
<header><img class="product-logo" src="/h.jpg"></header>
<div id="product-media">
  <img src="/img/logo.png">
  <img src="/img/front.jpg" alt="Front view">
  <img src="/img/thumb.jpg" width="50" height="50">
  <img src="data:image/png;base64,iVBORw0KGgo=">
  <img src="//cdn.example.com/img/back.jpg" width="800">
  <img src="/img/front.jpg?size=large">
</div>
<section class="related-products"><div class="product-tile"><img src="/img/other.jpg"></div></section>
<div class="product-info"><img src="/img/promo-banner.jpg" alt="Summer"></div>
</body></html>`)

	got, strategy := NewImageDiscoverer(20, 3, 100).Discover(p, GenericProfile())

	assert.Equal(t, "generic", strategy)
	assert.Equal(t, []string{
		"https://shop.example.com/img/front.jpg",
		"https://cdn.example.com/img/back.jpg",
	}, candidateURLs(got))
}

func TestImageDiscoverer_DecoyTokensMatchWholeWords(t *testing.T) {
	p := newTestPage(t, "https://shop.example.com/en/p/2", `<html><body>
<div class="product-media">
  <img src="/img/silicone-free-bra.jpg" alt="Silicone-free comfort bra">
  <img src="/img/flagship_iconic-lace.jpg" alt="Our flagship lace">
  <img src="/img/icons/cart.svg">
  <img src="https://pixel.tracker.example.net/t.gif">
  <img src="/img/payment_logos.png" alt="Payment">
</div>
</body></html>`)

	got, strategy := NewImageDiscoverer(20, 3, 100).Discover(p, GenericProfile())

	assert.Equal(t, "generic", strategy)
	assert.Equal(t, []string{
		"https://shop.example.com/img/silicone-free-bra.jpg",
		"https://shop.example.com/img/flagship_iconic-lace.jpg",
	}, candidateURLs(got))
}

func TestImageDiscoverer_CapKeepsDiscoveryOrder(t *testing.T) {
	var b strings.Builder
	b.WriteString(`<html><body><div class="product-images">`)
	for i := 1; i <= 25; i++ {
		fmt.Fprintf(&b, `<img src="/img/%02d.jpg">`, i)
	}
	b.WriteString(`</div></body></html>`)
	p := newTestPage(t, "https://shop.example.com/p/1", b.String())

	got, _ := NewImageDiscoverer(20, 3, 100).Discover(p, GenericProfile())

	require.Len(t, got, 20)
	for i, c := range got {
		assert.Equal(t, fmt.Sprintf("https://shop.example.com/img/%02d.jpg", i+1), c.URL)
	}
}

func TestImageDiscoverer_NothingFound(t *testing.T) {
	p := newTestPage(t, "https://shop.example.com/p/1", `<html><body><p>Out of stock</p></body></html>`)

	got, strategy := NewImageDiscoverer(20, 3, 100).Discover(p, GenericProfile())
	assert.Empty(t, got)
	assert.Empty(t, strategy)
}
