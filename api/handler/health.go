package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/productlens/cache"
	"github.com/use-agent/productlens/models"
)

// Version is reported by the health endpoint.
const Version = "0.1.0"

// Health returns a handler for GET /api/v1/health.
//
// Reports degraded when the backend response cache cannot be reached.
// store may be nil when the backend is disabled.
func Health(store cache.Store, backendEnabled bool, startTime time.Time) gin.HandlerFunc {
	return func(c *gin.Context) {
		status := "healthy"
		entries := 0
		if store != nil {
			ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
			defer cancel()
			if err := store.Ping(ctx); err != nil {
				slog.Warn("health: cache unreachable", "error", err)
				status = "degraded"
			}
			entries = store.Len()
		}

		c.JSON(http.StatusOK, models.HealthResponse{
			Status:         status,
			Uptime:         time.Since(startTime).Round(time.Second).String(),
			BackendEnabled: backendEnabled,
			CacheEntries:   entries,
			Version:        Version,
		})
	}
}
