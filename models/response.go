package models

// Result sources recorded in CrawlResult.Source.
const (
	SourceAdvanced = "advanced"
	SourceDirect   = "direct"
	SourceMixed    = "advanced+direct"
)

// Media types accepted for ImageAsset payloads.
const (
	MediaTypeJPEG = "image/jpeg"
	MediaTypePNG  = "image/png"
	MediaTypeWebP = "image/webp"
)

// CrawlResult is the single output of one crawl. It is fully assembled before
// it is returned and is not mutated afterwards.
type CrawlResult struct {
	// URL echoes the requested URL.
	URL string `json:"url"`

	// Language is a canonical language code, "en" when no signal was found.
	Language string `json:"language"`

	// Category is a normalized category label, empty when undetermined.
	Category string `json:"category"`

	// Images holds the validated images in discovery order.
	Images []ImageAsset `json:"images"`

	Title       string `json:"title,omitempty"`
	Description string `json:"description,omitempty"`

	// Markdown is a best-effort digest of the main page content.
	Markdown string `json:"markdown,omitempty"`

	// Source records which path produced the signals: "advanced", "direct"
	// or "advanced+direct".
	Source string `json:"source"`

	// RequestID correlates the result with log lines.
	RequestID string `json:"request_id"`
}

// ImageAsset is one candidate image. Payload and MediaType are set together
// once the image has been validated.
type ImageAsset struct {
	SourceURL string `json:"source_url"`
	AltText   string `json:"alt_text,omitempty"`
	Payload   []byte `json:"payload,omitempty"`
	MediaType string `json:"media_type,omitempty"`
	Width     int    `json:"width,omitempty"`
	Height    int    `json:"height,omitempty"`
}

// DescribeImage is one payload handed to the description generator.
type DescribeImage struct {
	Payload   []byte `json:"payload"`
	MediaType string `json:"media_type"`
}

// DescribeInput is what the description generator consumes.
type DescribeInput struct {
	Images   []DescribeImage `json:"images"`
	Language string          `json:"language"`
	Category string          `json:"category,omitempty"`
}

// DescribeInput builds the hand-off for the description generator from the
// validated images only.
func (r *CrawlResult) DescribeInput() DescribeInput {
	in := DescribeInput{Language: r.Language, Category: r.Category}
	for _, img := range r.Images {
		if len(img.Payload) == 0 {
			continue
		}
		in.Images = append(in.Images, DescribeImage{Payload: img.Payload, MediaType: img.MediaType})
	}
	return in
}

// CrawlResponse is the response for POST /api/v1/crawl.
type CrawlResponse struct {
	// Success is false when the page could not be retrieved or no images survived.
	Success bool `json:"success"`

	// Result is present on success and on NO_IMAGES_FOUND.
	Result *CrawlResult `json:"result,omitempty"`

	// Timing provides duration breakdowns for the operation.
	Timing TimingInfo `json:"timing"`

	// Error is populated only when Success is false.
	Error *ErrorDetail `json:"error,omitempty"`
}

// TimingInfo breaks down the time spent serving a request.
type TimingInfo struct {
	TotalMs int64 `json:"total_ms"`
}

// HealthResponse is the response for GET /api/v1/health.
type HealthResponse struct {
	Status         string `json:"status"` // "healthy" or "degraded"
	Uptime         string `json:"uptime"`
	BackendEnabled bool   `json:"backend_enabled"`
	CacheEntries   int    `json:"cache_entries"`
	Version        string `json:"version"`
}
