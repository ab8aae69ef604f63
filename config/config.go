package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig
	Auth      AuthConfig
	RateLimit RateLimitConfig
	Fetch     FetchConfig
	Images    ImageConfig
	Backend   BackendConfig
	Cache     CacheConfig
	Describer DescriberConfig
	Log       LogConfig
	Metrics   MetricsConfig
}

// ServerConfig controls the HTTP server.
type ServerConfig struct {
	Host string // default: "0.0.0.0"
	Port int    // default: 8080
	Mode string // "debug", "release", "test"; default: "release"

	// CrawlTimeout bounds one POST /api/v1/crawl end to end.
	CrawlTimeout time.Duration // default: 60s
}

// AuthConfig controls API key authentication.
type AuthConfig struct {
	Enabled bool // default: false
	APIKeys []string
}

// RateLimitConfig controls per-key rate limiting of the API.
type RateLimitConfig struct {
	RequestsPerSecond float64 // default: 5
	Burst             int     // default: 10
}

// FetchConfig controls page and image retrieval.
type FetchConfig struct {
	// UserAgent is sent on every request. Defaults to a desktop Chrome string.
	UserAgent string

	// PageTimeout is the hard deadline for the product page GET.
	PageTimeout time.Duration // default: 12s

	// ImageTimeout is the per-image deadline, independent of other images.
	ImageTimeout time.Duration // default: 10s

	// MaxPageBytes caps how much of the page body is read.
	MaxPageBytes int64 // default: 10 MB

	// MaxImageBytes caps how much of an image body is read.
	MaxImageBytes int64 // default: 15 MB
}

// ImageConfig controls discovery and validation limits.
type ImageConfig struct {
	// MaxImages is the cap on validated images in a result.
	MaxImages int // default: 10

	// CandidateLimit caps raw candidates collected by discovery. Validation
	// runs on all of them before MaxImages truncation.
	CandidateLimit int // default: 20

	// Concurrency bounds in-flight image fetches for one crawl.
	Concurrency int // default: 10

	// MinBytes rejects payloads smaller than this (placeholders are tiny).
	MinBytes int // default: 2000

	// MinDimension rejects images whose decoded width or height is smaller.
	MinDimension int // default: 100

	// SiblingViews is how many extra view URLs are synthesized from a main image.
	SiblingViews int // default: 3

	// Dedup drops visually near-identical images served under different URLs.
	Dedup         bool // default: true
	DedupDistance int  // default: 4
}

// BackendConfig controls the advanced extraction service.
type BackendConfig struct {
	Enabled bool   // default: false
	BaseURL string // e.g. "http://127.0.0.1:8081"
	APIKey  string

	// Deadline is how long the orchestrator waits before falling back.
	Deadline time.Duration // default: 15s

	// RequestTimeout bounds a single backend HTTP call.
	RequestTimeout time.Duration // default: 30s

	// RequestsPerSecond and Burst rate-limit outbound backend calls.
	RequestsPerSecond float64 // default: 2
	Burst             int     // default: 4

	// CacheTTL is how long a backend response is reused for the same URL.
	CacheTTL time.Duration // default: 1h

	// Cooldown is how long a host skips the backend after a failure.
	Cooldown time.Duration // default: 10m
}

// CacheConfig controls the backend response cache.
type CacheConfig struct {
	// MaxEntries is the maximum number of in-memory entries.
	MaxEntries int // default: 1000

	// RedisAddr switches the cache to Redis when set.
	RedisAddr     string
	RedisPassword string
	RedisDB       int
}

// DescriberConfig controls the hand-off of validated images to the
// description generator. Disabled when URL is empty.
type DescriberConfig struct {
	URL    string
	Secret string // signs the webhook body when set
}

// LogConfig controls structured logging.
type LogConfig struct {
	Level  string // default: "info"
	Format string // "json" or "text"; default: "json"
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   // default: true
	Path    string // default: "/metrics"
}

// DefaultUserAgent is a current desktop Chrome identity.
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36"

// Load reads configuration from environment variables with sane defaults.
func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Host: envOr("PRODUCTLENS_HOST", "0.0.0.0"),
			Port: envIntOr("PRODUCTLENS_PORT", 8080),
			Mode: envOr("PRODUCTLENS_MODE", "release"),

			CrawlTimeout: envDurationOr("PRODUCTLENS_CRAWL_TIMEOUT", 60*time.Second),
		},
		Auth: AuthConfig{
			Enabled: envBoolOr("PRODUCTLENS_AUTH_ENABLED", false),
			APIKeys: envSliceOr("PRODUCTLENS_API_KEYS", nil),
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: envFloatOr("PRODUCTLENS_RATE_RPS", 5.0),
			Burst:             envIntOr("PRODUCTLENS_RATE_BURST", 10),
		},
		Fetch: FetchConfig{
			UserAgent:     envOr("PRODUCTLENS_USER_AGENT", DefaultUserAgent),
			PageTimeout:   envDurationOr("PRODUCTLENS_PAGE_TIMEOUT", 12*time.Second),
			ImageTimeout:  envDurationOr("PRODUCTLENS_IMAGE_TIMEOUT", 10*time.Second),
			MaxPageBytes:  int64(envIntOr("PRODUCTLENS_MAX_PAGE_BYTES", 10<<20)),
			MaxImageBytes: int64(envIntOr("PRODUCTLENS_MAX_IMAGE_BYTES", 15<<20)),
		},
		Images: ImageConfig{
			MaxImages:      envIntOr("PRODUCTLENS_MAX_IMAGES", 10),
			CandidateLimit: envIntOr("PRODUCTLENS_CANDIDATE_LIMIT", 20),
			Concurrency:    envIntOr("PRODUCTLENS_IMAGE_CONCURRENCY", 10),
			MinBytes:       envIntOr("PRODUCTLENS_IMAGE_MIN_BYTES", 2000),
			MinDimension:   envIntOr("PRODUCTLENS_IMAGE_MIN_DIMENSION", 100),
			SiblingViews:   envIntOr("PRODUCTLENS_SIBLING_VIEWS", 3),
			Dedup:          envBoolOr("PRODUCTLENS_IMAGE_DEDUP", true),
			DedupDistance:  envIntOr("PRODUCTLENS_IMAGE_DEDUP_DISTANCE", 4),
		},
		Backend: BackendConfig{
			Enabled:           envBoolOr("PRODUCTLENS_BACKEND_ENABLED", false),
			BaseURL:           os.Getenv("PRODUCTLENS_BACKEND_URL"),
			APIKey:            os.Getenv("PRODUCTLENS_BACKEND_API_KEY"),
			Deadline:          envDurationOr("PRODUCTLENS_BACKEND_DEADLINE", 15*time.Second),
			RequestTimeout:    envDurationOr("PRODUCTLENS_BACKEND_TIMEOUT", 30*time.Second),
			RequestsPerSecond: envFloatOr("PRODUCTLENS_BACKEND_RPS", 2),
			Burst:             envIntOr("PRODUCTLENS_BACKEND_BURST", 4),
			CacheTTL:          envDurationOr("PRODUCTLENS_BACKEND_CACHE_TTL", time.Hour),
			Cooldown:          envDurationOr("PRODUCTLENS_BACKEND_COOLDOWN", 10*time.Minute),
		},
		Cache: CacheConfig{
			MaxEntries:    envIntOr("PRODUCTLENS_CACHE_MAX_ENTRIES", 1000),
			RedisAddr:     os.Getenv("PRODUCTLENS_REDIS_ADDR"),
			RedisPassword: os.Getenv("PRODUCTLENS_REDIS_PASSWORD"),
			RedisDB:       envIntOr("PRODUCTLENS_REDIS_DB", 0),
		},
		Describer: DescriberConfig{
			URL:    os.Getenv("PRODUCTLENS_DESCRIBER_URL"),
			Secret: os.Getenv("PRODUCTLENS_DESCRIBER_SECRET"),
		},
		Log: LogConfig{
			Level:  envOr("PRODUCTLENS_LOG_LEVEL", "info"),
			Format: envOr("PRODUCTLENS_LOG_FORMAT", "json"),
		},
		Metrics: MetricsConfig{
			Enabled: envBoolOr("PRODUCTLENS_METRICS_ENABLED", true),
			Path:    envOr("PRODUCTLENS_METRICS_PATH", "/metrics"),
		},
	}
}

// Validate rejects settings the pipeline cannot run with.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("config: server port must be > 0")
	}
	if c.Fetch.PageTimeout <= 0 || c.Fetch.ImageTimeout <= 0 {
		return fmt.Errorf("config: fetch timeouts must be > 0")
	}
	if c.Auth.Enabled && len(c.Auth.APIKeys) == 0 {
		return fmt.Errorf("config: auth enabled but PRODUCTLENS_API_KEYS is empty")
	}
	if c.RateLimit.RequestsPerSecond <= 0 || c.RateLimit.Burst <= 0 {
		return fmt.Errorf("config: rate limit rps and burst must be > 0")
	}
	if c.Images.MaxImages <= 0 {
		return fmt.Errorf("config: max images must be > 0")
	}
	if c.Images.CandidateLimit < c.Images.MaxImages {
		return fmt.Errorf("config: candidate limit (%d) must be >= max images (%d)",
			c.Images.CandidateLimit, c.Images.MaxImages)
	}
	if c.Images.Concurrency <= 0 {
		return fmt.Errorf("config: image concurrency must be > 0")
	}
	if c.Backend.Enabled {
		if strings.TrimSpace(c.Backend.BaseURL) == "" {
			return fmt.Errorf("config: backend enabled but PRODUCTLENS_BACKEND_URL is empty")
		}
		if c.Backend.Deadline <= 0 {
			return fmt.Errorf("config: backend deadline must be > 0")
		}
	}
	return nil
}

// --- helper functions ---

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envIntOr(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func envBoolOr(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envFloatOr(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envDurationOr(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func envSliceOr(key string, fallback []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
