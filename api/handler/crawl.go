package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/productlens/models"
)

// Crawler extracts one product page.
type Crawler interface {
	Crawl(ctx context.Context, rawURL string) (*models.CrawlResult, error)
}

// Crawl returns a handler for POST /api/v1/crawl.
//
// Flow:
//  1. Bind the request body.
//  2. Crawler.Crawl under the per-request timeout.
//  3. Map the outcome to a status code. NO_IMAGES_FOUND still carries the
//     assembled result so callers can use the language and category.
func Crawl(cr Crawler, timeout time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		var req models.CrawlRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondError(c, models.NewCrawlError(models.ErrCodeInvalidInput, err.Error(), err), nil, start)
			return
		}

		ctx := c.Request.Context()
		if timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, timeout)
			defer cancel()
		}

		result, err := cr.Crawl(ctx, req.URL)
		if err != nil {
			respondError(c, err, result, start)
			return
		}

		c.JSON(http.StatusOK, models.CrawlResponse{
			Success: true,
			Result:  result,
			Timing:  models.TimingInfo{TotalMs: time.Since(start).Milliseconds()},
		})
	}
}

// respondError maps a CrawlError to the correct HTTP status code and writes
// a structured JSON error response.
func respondError(c *gin.Context, err error, result *models.CrawlResult, start time.Time) {
	var crawlErr *models.CrawlError
	if !errors.As(err, &crawlErr) {
		slog.Error("unclassified crawl error", "error", err)
		crawlErr = models.NewCrawlError(models.ErrCodeInternal, "internal error", err)
	}

	c.JSON(mapErrorToStatus(crawlErr), models.CrawlResponse{
		Success: false,
		Result:  result,
		Error:   crawlErr.ToDetail(),
		Timing:  models.TimingInfo{TotalMs: time.Since(start).Milliseconds()},
	})
}

// mapErrorToStatus translates error codes to HTTP status codes.
func mapErrorToStatus(e *models.CrawlError) int {
	switch e.Code {
	case models.ErrCodeInvalidInput:
		return http.StatusBadRequest // 400
	case models.ErrCodeFetchFailed:
		return http.StatusBadGateway // 502
	case models.ErrCodeNoImages:
		return http.StatusUnprocessableEntity // 422
	case models.ErrCodeRateLimited:
		return http.StatusTooManyRequests // 429
	case models.ErrCodeUnauthorized:
		return http.StatusUnauthorized // 401
	default:
		return http.StatusInternalServerError // 500
	}
}
