package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the Prometheus collectors for the extraction pipeline.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	CrawlsTotal     *prometheus.CounterVec
	CrawlDuration   *prometheus.HistogramVec
	BackendOutcomes *prometheus.CounterVec
	ImageOutcomes   *prometheus.CounterVec
	StrategyHits    *prometheus.CounterVec
	HTTPRequests    *prometheus.CounterVec
}

// New registers the collectors on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,
		CrawlsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "productlens_crawls_total",
			Help: "Crawls served, labeled by result source and outcome.",
		}, []string{"source", "outcome"}),
		CrawlDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "productlens_crawl_duration_seconds",
			Help:    "End-to-end crawl latency.",
			Buckets: []float64{0.25, 0.5, 1, 2, 5, 10, 15, 20, 30},
		}, []string{"source"}),
		BackendOutcomes: f.NewCounterVec(prometheus.CounterOpts{
			Name: "productlens_backend_outcomes_total",
			Help: "Advanced backend attempts, labeled by outcome (structured, partial, miss, deadline, error, skipped).",
		}, []string{"outcome"}),
		ImageOutcomes: f.NewCounterVec(prometheus.CounterOpts{
			Name: "productlens_image_validations_total",
			Help: "Image validation results, labeled by outcome or rejection reason.",
		}, []string{"outcome"}),
		StrategyHits: f.NewCounterVec(prometheus.CounterOpts{
			Name: "productlens_strategy_hits_total",
			Help: "Which extraction strategy produced a signal, labeled by kind and strategy.",
		}, []string{"kind", "strategy"}),
		HTTPRequests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "productlens_http_requests_total",
			Help: "API requests, labeled by route and status code.",
		}, []string{"route", "code"}),
	}
}

// Handler exposes the registry.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveCrawl records one finished crawl.
func (m *Metrics) ObserveCrawl(source, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	if source == "" {
		source = "none"
	}
	m.CrawlsTotal.WithLabelValues(source, outcome).Inc()
	m.CrawlDuration.WithLabelValues(source).Observe(elapsed.Seconds())
}

// ObserveBackend records how an advanced backend attempt ended.
func (m *Metrics) ObserveBackend(outcome string) {
	if m == nil {
		return
	}
	m.BackendOutcomes.WithLabelValues(outcome).Inc()
}

// ObserveImage records one image validation outcome.
func (m *Metrics) ObserveImage(outcome string) {
	if m == nil {
		return
	}
	m.ImageOutcomes.WithLabelValues(outcome).Inc()
}

// ObserveStrategy records which strategy produced a category or image set.
func (m *Metrics) ObserveStrategy(kind, strategy string) {
	if m == nil || strategy == "" {
		return
	}
	m.StrategyHits.WithLabelValues(kind, strategy).Inc()
}

// ObserveRequest records one API request.
func (m *Metrics) ObserveRequest(route, code string) {
	if m == nil {
		return
	}
	m.HTTPRequests.WithLabelValues(route, code).Inc()
}
