package middleware

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/productlens/metrics"
)

// Metrics counts requests by matched route and status code.
func Metrics(m *metrics.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.ObserveRequest(route, strconv.Itoa(c.Writer.Status()))
	}
}
