package extract

import (
	"net/url"
	"regexp"
	"strings"
)

// DefaultLanguage is returned when no locale signal is found.
const DefaultLanguage = "en"

// languageCodes maps raw two-letter locale or country codes to canonical
// language codes. Country-style codes that conventionally denote a language
// (uk, us, at, dk, ...) are folded onto that language.
var languageCodes = map[string]string{
	"en": "en", "uk": "en", "gb": "en", "us": "en", "ie": "en", "au": "en",
	"it": "it",
	"es": "es",
	"fr": "fr", "be": "fr",
	"de": "de", "at": "de", "ch": "de",
	"pt": "pt", "br": "pt",
	"nl": "nl",
	"pl": "pl",
	"ru": "ru",
	"ja": "ja", "jp": "ja",
	"ko": "ko", "kr": "ko",
	"zh": "zh", "cn": "zh",
	"cs": "cs", "cz": "cs",
	"hu": "hu",
	"da": "da", "dk": "da",
	"sv": "sv", "se": "sv",
}

// localeSegment matches "en", "en-gb" or "en_GB" style path segments.
var localeSegment = regexp.MustCompile(`^(?i)([a-z]{2})(?:[-_][a-z]{2})?$`)

// DetectLanguage derives the canonical language of a product page. Signals in
// priority order: a locale in the URL (subdomain, then leading path segments),
// the root lang attribute, content-language/language meta, og:locale, then any
// codes declared by an upstream extractor. It never fails.
func DetectLanguage(u *url.URL, p *Page, declared ...string) string {
	for _, raw := range urlLocales(u) {
		if code, ok := languageCodes[raw]; ok {
			return code
		}
	}

	var signals []string
	if p != nil {
		signals = append(signals,
			p.Doc.Find("html").First().AttrOr("lang", ""),
			p.metaContent("content-language"),
			p.metaContent("language"),
		)
		if og := p.OpenGraph(); og != nil {
			signals = append(signals, og.Locale)
		}
	}
	signals = append(signals, declared...)

	for _, s := range signals {
		if code, ok := canonicalLanguage(s); ok {
			return code
		}
	}
	return DefaultLanguage
}

// canonicalLanguage reduces a declared language value ("en-GB", "de_AT",
// "fr, en") to a canonical code.
func canonicalLanguage(raw string) (string, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", false
	}
	if i := strings.IndexAny(raw, ",;"); i >= 0 {
		raw = raw[:i]
	}
	m := localeSegment.FindStringSubmatch(strings.TrimSpace(raw))
	if m == nil {
		return "", false
	}
	code := strings.ToLower(m[1])
	if c, ok := languageCodes[code]; ok {
		return c, true
	}
	return "", false
}

// urlLocales lists two-letter locale candidates from the URL: a subdomain
// label on hosts with at least three labels, then the first two path segments.
func urlLocales(u *url.URL) []string {
	if u == nil {
		return nil
	}
	var out []string
	labels := strings.Split(strings.ToLower(u.Hostname()), ".")
	if len(labels) >= 3 && len(labels[0]) == 2 {
		out = append(out, labels[0])
	}
	segs := strings.Split(strings.Trim(u.EscapedPath(), "/"), "/")
	for i, seg := range segs {
		if i >= 2 {
			break
		}
		if m := localeSegment.FindStringSubmatch(seg); m != nil {
			out = append(out, strings.ToLower(m[1]))
		}
	}
	return out
}
