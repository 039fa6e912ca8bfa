package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"quell/internal/infrastructure/ratelimit"
	"quell/internal/shared/logger"
	"quell/internal/shared/utils"
)

// RateLimiter enforces the per-IP request limit through the admission
// registry. Checks fail open: if the limiter itself errors, the request is
// served rather than rejected.
type RateLimiter struct {
	limiter ratelimit.Limiter
	limit   int
	window  time.Duration
	logger  logger.Interface
}

// NewRateLimiter creates the middleware. limit and window come from process
// configuration and are fixed for the process lifetime.
func NewRateLimiter(limiter ratelimit.Limiter, limit int, window time.Duration, log logger.Interface) *RateLimiter {
	return &RateLimiter{
		limiter: limiter,
		limit:   limit,
		window:  window,
		logger:  log,
	}
}

// Limit returns a Gin middleware that enforces the rate limit per client IP.
func (rl *RateLimiter) Limit() gin.HandlerFunc {
	return func(c *gin.Context) {
		clientIP := c.ClientIP()

		dec, err := rl.limiter.Acquire(c.Request.Context(), clientIP, rl.limit, rl.window)
		if err != nil {
			rl.logger.Errorw("rate limit check failed, allowing request",
				"client_ip", clientIP,
				"error", err,
			)
			c.Next()
			return
		}

		remaining := dec.Remaining
		if remaining < 0 {
			remaining = 0
		}
		c.Header("X-RateLimit-Limit", strconv.Itoa(rl.limit))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(remaining))

		if !dec.Allowed {
			retryAfter := int64((dec.RetryAfter + time.Second - 1) / time.Second)
			c.Header("Retry-After", strconv.FormatInt(retryAfter, 10))

			rl.logger.Warnw("rate limit exceeded",
				"client_ip", clientIP,
				"limit", rl.limit,
				"retry_after", dec.RetryAfter,
			)

			utils.ErrorResponse(c, http.StatusTooManyRequests, "rate limit exceeded, please try again later")
			c.Abort()
			return
		}

		c.Next()
	}
}
