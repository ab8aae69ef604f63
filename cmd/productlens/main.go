package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/use-agent/productlens/api"
	"github.com/use-agent/productlens/backend"
	"github.com/use-agent/productlens/cache"
	"github.com/use-agent/productlens/config"
	"github.com/use-agent/productlens/crawler"
	"github.com/use-agent/productlens/engine"
	"github.com/use-agent/productlens/extract"
	"github.com/use-agent/productlens/metrics"
	"github.com/use-agent/productlens/validator"
	"github.com/use-agent/productlens/webhook"
)

func main() {
	// ── 1. Load configuration ───────────────────────────────────────
	cfg := config.Load()

	// ── 2. Initialise structured logging ────────────────────────────
	initLogger(cfg.Log)
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	slog.Info("productlens starting",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
		"mode", cfg.Server.Mode,
		"backend", cfg.Backend.Enabled,
		"maxImages", cfg.Images.MaxImages,
	)

	// ── 3. Metrics ──────────────────────────────────────────────────
	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		m = metrics.New()
	}

	// ── 4. Fetcher and image validator ──────────────────────────────
	httpEngine := engine.NewHTTPEngine(engine.HTTPOptions{
		UserAgent:     cfg.Fetch.UserAgent,
		PageTimeout:   cfg.Fetch.PageTimeout,
		MaxPageBytes:  cfg.Fetch.MaxPageBytes,
		MaxImageBytes: cfg.Fetch.MaxImageBytes,
	})
	v := validator.New(httpEngine, validator.Options{
		Concurrency:  cfg.Images.Concurrency,
		Timeout:      cfg.Fetch.ImageTimeout,
		MinBytes:     cfg.Images.MinBytes,
		MinDimension: cfg.Images.MinDimension,
		MaxImages:    cfg.Images.MaxImages,

		Dedup:         cfg.Images.Dedup,
		DedupDistance: cfg.Images.DedupDistance,
	}, m)

	registry := extract.DefaultRegistry()
	deps := crawler.Deps{
		Pages:           httpEngine,
		Validator:       v,
		Registry:        registry,
		Metrics:         m,
		BackendDeadline: cfg.Backend.Deadline,
		CandidateLimit:  cfg.Images.CandidateLimit,
		SiblingViews:    cfg.Images.SiblingViews,
		MinDimension:    cfg.Images.MinDimension,
		DigestRunes:     20000,
	}

	// ── 5. Advanced backend, its cache and cool-down memory ─────────
	var store cache.Store
	if cfg.Backend.Enabled {
		store = openCache(cfg.Cache)
		defer store.Close()

		memory := engine.NewDomainMemory(cfg.Backend.Cooldown)
		defer memory.Stop()

		deps.Backend = backend.NewClient(backend.Options{
			BaseURL:           cfg.Backend.BaseURL,
			APIKey:            cfg.Backend.APIKey,
			Timeout:           cfg.Backend.RequestTimeout,
			RequestsPerSecond: cfg.Backend.RequestsPerSecond,
			Burst:             cfg.Backend.Burst,
			CacheTTL:          cfg.Backend.CacheTTL,
		}, store, registry)
		deps.Memory = memory
		slog.Info("advanced backend enabled",
			"url", cfg.Backend.BaseURL,
			"deadline", cfg.Backend.Deadline,
			"cacheTTL", cfg.Backend.CacheTTL,
		)
	}
	if cfg.Describer.URL != "" {
		deps.Describer = webhook.NewNotifier(cfg.Describer.URL, cfg.Describer.Secret)
		slog.Info("describer hand-off enabled", "url", cfg.Describer.URL)
	}
	cr := crawler.New(deps)

	// ── 6. Setup router ─────────────────────────────────────────────
	startTime := time.Now()
	router := api.NewRouter(cr, cfg, store, m, startTime)

	// ── 7. Start HTTP server ────────────────────────────────────────
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	go func() {
		slog.Info("HTTP server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("HTTP server error", "error", err)
			os.Exit(1)
		}
	}()

	// ── 8. Graceful shutdown ────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	slog.Info("shutdown signal received", "signal", sig.String())

	// Give in-flight crawls 5 seconds to complete.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("HTTP server forced shutdown", "error", err)
	} else {
		slog.Info("HTTP server drained gracefully")
	}

	slog.Info("productlens stopped")
}

// openCache returns a Redis store when configured and reachable, otherwise
// the in-memory store.
func openCache(cfg config.CacheConfig) cache.Store {
	if cfg.RedisAddr != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		r, err := cache.NewRedis(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err == nil {
			slog.Info("backend cache: redis", "addr", cfg.RedisAddr)
			return r
		}
		slog.Warn("backend cache: redis unreachable, using memory", "addr", cfg.RedisAddr, "error", err)
	}
	return cache.NewMemory(cfg.MaxEntries)
}

// initLogger configures slog based on the LogConfig.
func initLogger(cfg config.LogConfig) {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if cfg.Format == "text" {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	slog.SetDefault(slog.New(handler))
}
