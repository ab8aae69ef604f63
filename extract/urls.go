package extract

import (
	"net/url"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// ResolveImageURL turns a raw src/srcset value into an absolute http(s) URL
// relative to base. Inline (data:) and non-web schemes are rejected.
func ResolveImageURL(base *url.URL, raw string) (string, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", false
	}
	lower := strings.ToLower(raw)
	for _, prefix := range []string{"data:", "javascript:", "about:", "blob:"} {
		if strings.HasPrefix(lower, prefix) {
			return "", false
		}
	}

	var resolved *url.URL
	var err error
	if base != nil {
		resolved, err = base.Parse(raw)
	} else {
		resolved, err = url.Parse(raw)
	}
	if err != nil {
		return "", false
	}
	if resolved.Scheme != "http" && resolved.Scheme != "https" {
		return "", false
	}
	if resolved.Host == "" {
		return "", false
	}
	resolved.Fragment = ""
	return resolved.String(), true
}

// imageSource returns the first usable URL on an <img>, preferring the
// lazy-load attributes over a placeholder src, then the largest srcset entry.
func imageSource(base *url.URL, s *goquery.Selection) (string, bool) {
	for _, attr := range []string{"src", "data-src", "data-lazy", "data-original", "data-zoom-image"} {
		if v, ok := s.Attr(attr); ok {
			if u, ok := ResolveImageURL(base, v); ok {
				return u, true
			}
		}
	}
	for _, attr := range []string{"srcset", "data-srcset"} {
		if v, ok := s.Attr(attr); ok {
			if u, ok := ResolveImageURL(base, bestSrcset(v)); ok {
				return u, true
			}
		}
	}
	return "", false
}

// bestSrcset picks the entry with the largest width or density descriptor.
func bestSrcset(srcset string) string {
	best := ""
	bestScore := -1.0
	for _, entry := range strings.Split(srcset, ",") {
		fields := strings.Fields(strings.TrimSpace(entry))
		if len(fields) == 0 {
			continue
		}
		score := 0.0
		if len(fields) > 1 {
			d := fields[len(fields)-1]
			if n, err := strconv.ParseFloat(d[:len(d)-1], 64); err == nil && len(d) > 1 {
				score = n
				if strings.HasSuffix(d, "x") {
					score *= 1000
				}
			}
		}
		if score > bestScore {
			best, bestScore = fields[0], score
		}
	}
	return best
}

// stripQuery is the generic image identity: the URL without query or fragment.
func stripQuery(u *url.URL) string {
	c := *u
	c.RawQuery = ""
	c.ForceQuery = false
	c.Fragment = ""
	c.Host = strings.ToLower(c.Host)
	return c.String()
}
