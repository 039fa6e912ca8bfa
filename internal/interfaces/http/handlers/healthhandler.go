package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"quell/internal/infrastructure/ratelimit"
	"quell/internal/shared/version"
)

// StatsSource exposes a snapshot of a limit registry for the health payload.
type StatsSource interface {
	Stats() ratelimit.Stats
}

// HealthHandler serves liveness and observability endpoints. The rate limit
// counters are part of the health payload so operators can watch registry
// growth without a separate metrics surface.
type HealthHandler struct {
	requests    StatsSource
	otpAttempts StatsSource
	otpResends  StatsSource
}

func NewHealthHandler(requests, otpAttempts, otpResends StatsSource) *HealthHandler {
	return &HealthHandler{
		requests:    requests,
		otpAttempts: otpAttempts,
		otpResends:  otpResends,
	}
}

// HealthCheck handles GET /health
func (h *HealthHandler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": "quell",
		"rate_limit": gin.H{
			"requests":     snapshot(h.requests),
			"otp_attempts": snapshot(h.otpAttempts),
			"otp_resends":  snapshot(h.otpResends),
		},
	})
}

// snapshot tolerates a missing source so the probe stays green when a
// registry has no local counters, as with the Redis-backed limiter.
func snapshot(s StatsSource) ratelimit.Stats {
	if s == nil {
		return ratelimit.Stats{}
	}
	return s.Stats()
}

// Version handles GET /version to return the current application version
func (h *HealthHandler) Version(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"version": version.Current,
	})
}
