package extract

import (
	"fmt"
	"net/url"
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"
	"github.com/dyatlov/go-opengraph/opengraph"
)

// Page is a parsed product page. It is read-only once built and safe to
// share between strategies.
type Page struct {
	URL  *url.URL
	HTML string
	Doc  *goquery.Document

	ogOnce sync.Once
	og     *opengraph.OpenGraph
}

// NewPage parses rawHTML fetched from pageURL.
func NewPage(pageURL *url.URL, rawHTML string) (*Page, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(rawHTML))
	if err != nil {
		return nil, fmt.Errorf("extract: parse html: %w", err)
	}
	return &Page{URL: pageURL, HTML: rawHTML, Doc: doc}, nil
}

// OpenGraph returns the page's Open Graph tags, parsed on first use.
// A parse failure yields an empty value.
func (p *Page) OpenGraph() *opengraph.OpenGraph {
	p.ogOnce.Do(func() {
		og := opengraph.NewOpenGraph()
		if err := og.ProcessHTML(strings.NewReader(p.HTML)); err != nil {
			og = opengraph.NewOpenGraph()
		}
		p.og = og
	})
	return p.og
}

// metaContent returns the content of the first <meta> whose name, property or
// http-equiv attribute equals key (case-insensitive).
func (p *Page) metaContent(key string) string {
	var out string
	p.Doc.Find("meta").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		for _, attr := range []string{"name", "property", "http-equiv", "itemprop"} {
			v, ok := s.Attr(attr)
			if !ok || !strings.EqualFold(strings.TrimSpace(v), key) {
				continue
			}
			if content := strings.TrimSpace(s.AttrOr("content", "")); content != "" {
				out = content
				return false
			}
		}
		return true
	})
	return out
}

// collapseSpace trims s and folds internal whitespace runs to single spaces.
func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
