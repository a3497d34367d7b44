package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/charlesng35/studynotify/internal/monitoring"
)

// Metrics observes request latency per route pattern. Routes listed in skip (the websocket
// feed, the scrape endpoint) are not observed; their durations are connection lifetimes.
func Metrics(skip ...string) gin.HandlerFunc {
	skipped := make(map[string]struct{}, len(skip))
	for _, route := range skip {
		skipped[route] = struct{}{}
	}

	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if _, ok := skipped[route]; ok {
			return
		}
		if route == "" {
			route = "unmatched"
		}
		monitoring.ObserveAPILatency(c.Request.Method, route, strconv.Itoa(c.Writer.Status()), time.Since(start))
	}
}
