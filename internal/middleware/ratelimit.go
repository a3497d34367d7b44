package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/charlesng35/studynotify/pkg/errors"
	"github.com/charlesng35/studynotify/pkg/logger"
	"github.com/charlesng35/studynotify/pkg/response"
)

// RateLimit limits requests per (caller, route) within a fixed window. Authenticated
// requests are keyed by token subject, anonymous ones by client IP. Store failures
// fail open.
func RateLimit(store RateStore, maxRequests int, window time.Duration) gin.HandlerFunc {
	if store == nil {
		store = NewMemoryRateStore()
	}

	return func(c *gin.Context) {
		if maxRequests <= 0 || window <= 0 {
			c.Next()
			return
		}

		caller := c.GetString(CtxSubjectKey)
		if caller == "" {
			caller = c.ClientIP()
		}
		route := c.FullPath()
		if route == "" {
			route = c.Request.URL.Path
		}

		count, ttl, err := store.Increment(c.Request.Context(), caller+"|"+route, window)
		if err != nil {
			logger.WithModule("http").Warn("rate limit store unavailable", zap.Error(err))
			c.Next()
			return
		}

		remaining := maxRequests - count
		if remaining < 0 {
			remaining = 0
		}
		c.Header("X-RateLimit-Limit", strconv.Itoa(maxRequests))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(remaining))
		c.Header("X-RateLimit-Reset", strconv.Itoa(int(ttl.Seconds())))

		if count > maxRequests {
			c.Header("Retry-After", strconv.Itoa(int(ttl.Seconds())+1))
			response.Error(c, errors.ErrTooManyRequests)
			c.Abort()
			return
		}

		c.Next()
	}
}
