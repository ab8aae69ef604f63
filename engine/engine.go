package engine

import (
	"context"
)

// PageFetcher retrieves product pages.
type PageFetcher interface {
	// FetchPage performs a single GET of an HTML document.
	// Failures are returned as *models.FetchError.
	FetchPage(ctx context.Context, url string) (*Page, error)
}

// AssetFetcher retrieves binary assets such as images.
type AssetFetcher interface {
	// FetchAsset performs a single GET and returns the raw body.
	// Failures are returned as *models.FetchError.
	FetchAsset(ctx context.Context, url string) (*Asset, error)
}

// Page is the output of a successful page fetch.
type Page struct {
	HTML       string
	Title      string
	StatusCode int
	FinalURL   string
}

// Asset is the output of a successful asset fetch.
type Asset struct {
	Body        []byte
	ContentType string
	StatusCode  int
}
