package api

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/productlens/api/handler"
	"github.com/use-agent/productlens/api/middleware"
	"github.com/use-agent/productlens/cache"
	"github.com/use-agent/productlens/config"
	"github.com/use-agent/productlens/crawler"
	"github.com/use-agent/productlens/metrics"
)

// NewRouter creates a configured Gin engine with all routes and middleware.
//
// Middleware chain:
//
//	Global:  Recovery → Logger → Metrics
//	API:     Auth (if enabled) → RateLimit
//
// Health and metrics stay outside auth.
// store and m may be nil.
func NewRouter(cr *crawler.Crawler, cfg *config.Config, store cache.Store, m *metrics.Metrics, startTime time.Time) *gin.Engine {
	gin.SetMode(cfg.Server.Mode)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(gin.Logger())
	r.Use(middleware.Metrics(m))

	if cfg.Metrics.Enabled && m != nil {
		r.GET(cfg.Metrics.Path, gin.WrapH(m.Handler()))
	}

	v1 := r.Group("/api/v1")

	// Health: no auth required.
	v1.GET("/health", handler.Health(store, cr.BackendEnabled(), startTime))

	// Protected group: auth + rate limit.
	protected := v1.Group("")
	if cfg.Auth.Enabled {
		protected.Use(middleware.Auth(cfg.Auth.APIKeys))
	}
	protected.Use(middleware.RateLimit(cfg.RateLimit))

	protected.POST("/crawl", handler.Crawl(cr, cfg.Server.CrawlTimeout))

	return r
}
