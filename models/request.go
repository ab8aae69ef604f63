package models

import (
	"fmt"
	"net/url"
	"strings"
)

// CrawlRequest is the payload for POST /api/v1/crawl.
type CrawlRequest struct {
	// URL is the product page to extract. Required, absolute http(s).
	URL string `json:"url" binding:"required,url"`
}

// Validate checks that the target is a well-formed absolute http(s) URL
// and returns the parsed form.
func (r CrawlRequest) Validate() (*url.URL, error) {
	raw := strings.TrimSpace(r.URL)
	if raw == "" {
		return nil, NewCrawlError(ErrCodeInvalidInput, "url is required", nil)
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, NewCrawlError(ErrCodeInvalidInput, "url is not parseable", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, NewCrawlError(ErrCodeInvalidInput, fmt.Sprintf("unsupported url scheme %q", u.Scheme), nil)
	}
	if u.Host == "" {
		return nil, NewCrawlError(ErrCodeInvalidInput, "url must be absolute", nil)
	}
	return u, nil
}
