package extract

import (
	"log/slog"
	"net/url"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/table"
	readability "github.com/go-shiori/go-readability"
)

// minArticleText is the readability text length below which the main-content
// extraction is considered to have missed and the whole body is converted.
const minArticleText = 50

// Digester renders the main content of a page as Markdown for the
// downstream describer. The converter is goroutine-safe and reused.
type Digester struct {
	conv     *converter.Converter
	maxRunes int
}

// NewDigester creates a Digester whose output is truncated to maxRunes
// (0 means unlimited).
func NewDigester(maxRunes int) *Digester {
	return &Digester{
		conv: converter.NewConverter(
			converter.WithPlugins(
				base.NewBasePlugin(),
				commonmark.NewCommonmarkPlugin(),
				table.NewTablePlugin(table.WithCellPaddingBehavior(table.CellPaddingBehaviorMinimal)),
			),
		),
		maxRunes: maxRunes,
	}
}

// Digest returns the page's main content as Markdown. Failures yield an
// empty string; the digest is best-effort.
func (d *Digester) Digest(p *Page) string {
	content := p.HTML
	article, err := readability.FromReader(strings.NewReader(p.HTML), p.URL)
	if err != nil {
		slog.Debug("digest: readability failed, converting full page", "url", p.URL.String(), "error", err)
	} else if len(strings.TrimSpace(article.TextContent)) >= minArticleText {
		content = article.Content
	}

	md, err := d.conv.ConvertString(content, converter.WithDomain(p.URL.Scheme+"://"+p.URL.Host))
	if err != nil {
		slog.Debug("digest: markdown conversion failed", "url", p.URL.String(), "error", err)
		return ""
	}
	return d.Trim(md)
}

// Trim applies the digest length limit to Markdown produced elsewhere.
func (d *Digester) Trim(md string) string {
	md = strings.TrimSpace(md)
	if d.maxRunes > 0 && utf8.RuneCountInString(md) > d.maxRunes {
		md = string([]rune(md)[:d.maxRunes])
	}
	return md
}

var markdownImage = regexp.MustCompile(`!\[([^\]]*)\]\(\s*<?([^)\s>]+)>?(?:\s+"[^"]*")?\s*\)`)

// MarkdownImage is an image reference found in Markdown.
type MarkdownImage struct {
	URL string
	Alt string
}

// MarkdownImages returns the ![alt](url) references in md, resolved against
// base, in document order.
func MarkdownImages(md string, base *url.URL) []MarkdownImage {
	var out []MarkdownImage
	for _, m := range markdownImage.FindAllStringSubmatch(md, -1) {
		if u, ok := ResolveImageURL(base, m[2]); ok {
			out = append(out, MarkdownImage{URL: u, Alt: m[1]})
		}
	}
	return out
}

// markdownCategoryPatterns pick category text out of extractor output that
// kept raw HTML fragments around the storefront headline.
var markdownCategoryPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)headline--h9-rs[^>]*>([^<]+)`),
	regexp.MustCompile(`(?i)product-type[^>]*>([^<]+)`),
	regexp.MustCompile(`(?i)class="[^"]*category[^"]*"[^>]*>([^<]+)`),
}

// MarkdownCategory returns the first category found by the headline patterns,
// or the empty string.
func MarkdownCategory(md string, noise NoiseFilter) string {
	for _, re := range markdownCategoryPatterns {
		if m := re.FindStringSubmatch(md); m != nil {
			if c := collapseSpace(m[1]); c != "" && !noise.Noisy(c) {
				return c
			}
		}
	}
	return ""
}
