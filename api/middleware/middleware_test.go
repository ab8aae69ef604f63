package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"github.com/use-agent/productlens/config"
	"github.com/use-agent/productlens/metrics"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func okRouter(mw ...gin.HandlerFunc) *gin.Engine {
	r := gin.New()
	r.Use(mw...)
	r.GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })
	return r
}

func TestAuth(t *testing.T) {
	r := okRouter(Auth([]string{"key-a", "", "key-b"}))

	tests := []struct {
		name   string
		header string
		value  string
		want   int
	}{
		{"missing", "", "", http.StatusUnauthorized},
		{"x-api-key", "X-API-Key", "key-a", http.StatusOK},
		{"bearer", "Authorization", "Bearer key-b", http.StatusOK},
		{"wrong key", "X-API-Key", "key-c", http.StatusUnauthorized},
		{"prefix of key", "X-API-Key", "key", http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/ping", nil)
			if tt.header != "" {
				req.Header.Set(tt.header, tt.value)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			assert.Equal(t, tt.want, w.Code)
		})
	}
}

func TestAuth_NoKeysIsOpen(t *testing.T) {
	w := httptest.NewRecorder()
	okRouter(Auth(nil)).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRateLimit_PerIdentity(t *testing.T) {
	r := okRouter(RateLimit(config.RateLimitConfig{RequestsPerSecond: 0.001, Burst: 2}))

	do := func(ip string) int {
		req := httptest.NewRequest(http.MethodGet, "/ping", nil)
		req.RemoteAddr = ip + ":1234"
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w.Code
	}

	assert.Equal(t, http.StatusOK, do("10.0.0.1"))
	assert.Equal(t, http.StatusOK, do("10.0.0.1"))
	assert.Equal(t, http.StatusTooManyRequests, do("10.0.0.1"))
	assert.Equal(t, http.StatusOK, do("10.0.0.2"), "other identities keep their own bucket")
}

func TestLimiterSet_Evict(t *testing.T) {
	s := &limiterSet{limiters: map[string]*limiterEntry{}, rps: 1, burst: 1}
	now := time.Now()
	s.get("old", now.Add(-2*time.Hour))
	s.get("fresh", now)

	s.evict(now.Add(-time.Hour))

	assert.Len(t, s.limiters, 1)
	assert.Contains(t, s.limiters, "fresh")
}

func TestMetrics_CountsByRoute(t *testing.T) {
	m := metrics.New()
	r := okRouter(Metrics(m))

	for _, path := range []string{"/ping", "/ping", "/missing"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}

	assert.Equal(t, float64(2), testutil.ToFloat64(m.HTTPRequests.WithLabelValues("/ping", "200")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.HTTPRequests.WithLabelValues("unmatched", "404")))
}
