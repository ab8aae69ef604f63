package backend

import (
	"encoding/json"
	"net/url"
	"strings"

	"github.com/use-agent/productlens/extract"
)

// Kind tags how much usable signal a backend response carried.
type Kind int

const (
	// Miss carries nothing usable: failure flag, malformed body or empty content.
	Miss Kind = iota
	// PartialHit carries some signals but lacks a category or images.
	PartialHit
	// StructuredHit carries both a category and at least one image.
	StructuredHit
)

func (k Kind) String() string {
	switch k {
	case StructuredHit:
		return "structured"
	case PartialHit:
		return "partial"
	default:
		return "miss"
	}
}

// Response is the typed view of an advanced-backend reply. Only fields that
// were present with the expected JSON type are populated.
type Response struct {
	Kind Kind

	// Category is the raw category text, not yet normalized.
	Category string
	Images   []extract.MarkdownImage

	// Language is the language the backend declared, unmapped.
	Language    string
	Title       string
	Description string
	Markdown    string
	FinalURL    string

	// Cached is true when the response was served from the cache.
	Cached bool
}

// Parse decodes a backend body defensively. It accepts the flat shape
// ({"success":true,"content":...,"metadata":{...},"images":[...]}) and the
// wrapped shape ({"success":true,"data":{"markdown":...}}). Anything it
// cannot make sense of is a Miss, never an error.
func Parse(body []byte, pageURL *url.URL, noise extract.NoiseFilter) *Response {
	var root map[string]any
	if err := json.Unmarshal(body, &root); err != nil {
		return &Response{Kind: Miss}
	}
	if ok, present := root["success"].(bool); present && !ok {
		return &Response{Kind: Miss}
	}
	obj := root
	if data, ok := root["data"].(map[string]any); ok {
		obj = data
	}

	r := &Response{}
	r.Markdown = firstString(obj, "content", "markdown")
	r.FinalURL = firstString(obj, "final_url", "url")

	meta, _ := obj["metadata"].(map[string]any)
	og, _ := obj["og_metadata"].(map[string]any)
	r.Title = firstString(meta, "title", "ogTitle")
	if r.Title == "" {
		r.Title = firstString(og, "title")
	}
	r.Description = firstString(meta, "description", "ogDescription")
	if r.Description == "" {
		r.Description = firstString(og, "description")
	}
	r.Language = firstString(meta, "language", "lang")

	r.Category = firstString(obj, "category", "product_type")
	if r.Category == "" {
		r.Category = firstString(meta, "category", "product:category")
	}
	if r.Category == "" && r.Markdown != "" {
		r.Category = extract.MarkdownCategory(r.Markdown, noise)
	}
	if noise.Noisy(r.Category) {
		r.Category = ""
	}

	base := pageURL
	if r.FinalURL != "" {
		if u, err := url.Parse(r.FinalURL); err == nil && u.Host != "" {
			base = u
		}
	}
	r.Images = imageList(obj["images"], base)
	if r.Markdown != "" {
		r.Images = append(r.Images, extract.MarkdownImages(r.Markdown, base)...)
	}
	if u := firstString(og, "image"); u != "" {
		if abs, ok := extract.ResolveImageURL(base, u); ok {
			r.Images = append(r.Images, extract.MarkdownImage{URL: abs})
		}
	}

	switch {
	case r.Category != "" && len(r.Images) > 0:
		r.Kind = StructuredHit
	case r.Category != "" || len(r.Images) > 0 || r.Markdown != "" || r.Title != "":
		r.Kind = PartialHit
	default:
		r.Kind = Miss
	}
	return r
}

// imageList accepts ["url", ...] or [{"src":..,"alt":..}, ...].
func imageList(v any, base *url.URL) []extract.MarkdownImage {
	list, ok := v.([]any)
	if !ok {
		return nil
	}
	var out []extract.MarkdownImage
	for _, item := range list {
		var src, alt string
		switch t := item.(type) {
		case string:
			src = t
		case map[string]any:
			src = firstString(t, "src", "url")
			alt = firstString(t, "alt")
		}
		if abs, ok := extract.ResolveImageURL(base, src); ok {
			out = append(out, extract.MarkdownImage{URL: abs, Alt: alt})
		}
	}
	return out
}

// firstString returns the first key of m holding a non-blank string.
func firstString(m map[string]any, keys ...string) string {
	for _, k := range keys {
		if s, ok := m[k].(string); ok {
			if s = strings.TrimSpace(s); s != "" {
				return s
			}
		}
	}
	return ""
}
