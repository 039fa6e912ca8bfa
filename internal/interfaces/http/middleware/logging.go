package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"quell/internal/shared/logger"
)

// Logger logs each request through the shared slog logger. Denied requests
// surface as normal 429 responses here, not as errors.
func Logger(log logger.Interface) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		latency := time.Since(start)

		args := []any{
			"method", c.Request.Method,
			"path", path,
			"status", c.Writer.Status(),
			"latency", latency,
			"client_ip", c.ClientIP(),
		}

		switch {
		case c.Writer.Status() >= 500:
			log.Errorw("request completed", args...)
		case c.Writer.Status() >= 400:
			log.Warnw("request completed", args...)
		default:
			log.Infow("request completed", args...)
		}
	}
}
