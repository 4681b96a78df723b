package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"salesbi/pkg/logger"
)

// RequestObserver records request durations, e.g. into Prometheus.
type RequestObserver interface {
	ObserveRequest(method, route, status string, seconds float64)
}

// Logger middleware logs HTTP requests with timing and status.
// When obs is non-nil the request duration is also observed by route.
func Logger(log *logger.Logger, obs RequestObserver) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		c.Next()

		latency := time.Since(start)
		status := c.Writer.Status()

		if obs != nil {
			route := c.FullPath()
			if route == "" {
				route = "unmatched"
			}
			obs.ObserveRequest(c.Request.Method, route, strconv.Itoa(status), latency.Seconds())
		}

		log.WithContext(c.Request.Context()).Infow("http request",
			"method", c.Request.Method,
			"path", path,
			"query", query,
			"status", status,
			"latency_ms", latency.Milliseconds(),
			"client_ip", c.ClientIP(),
			"user_agent", c.Request.UserAgent(),
			"error", c.Errors.ByType(gin.ErrorTypePrivate).String(),
		)
	}
}
