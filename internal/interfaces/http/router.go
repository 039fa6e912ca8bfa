package http

import (
	"github.com/gin-gonic/gin"

	"quell/internal/infrastructure/config"
	"quell/internal/infrastructure/otp"
	"quell/internal/infrastructure/ratelimit"
	"quell/internal/interfaces/http/handlers"
	"quell/internal/interfaces/http/middleware"
	"quell/internal/shared/logger"
)

// Router represents the HTTP router configuration
type Router struct {
	engine        *gin.Engine
	healthHandler *handlers.HealthHandler
	limitHandler  *handlers.LimitHandler
	otpHandler    *handlers.OTPHandler
	rateLimiter   *middleware.RateLimiter
	logger        logger.Interface
}

// NewRouter creates a new HTTP router with all dependencies
func NewRouter(
	requests ratelimit.Limiter,
	otpAttempts ratelimit.Limiter,
	otpResends ratelimit.Limiter,
	requestStats, attemptStats, resendStats handlers.StatsSource,
	cfg *config.Config,
	log logger.Interface,
) *Router {
	engine := gin.New()

	throttle := otp.NewThrottle(otp.Config{
		CodeLength:     cfg.OTP.Length,
		Expiry:         cfg.OTP.Expiry(),
		MaxAttempts:    cfg.OTP.MaxAttempts,
		ResendCooldown: cfg.OTP.ResendCooldown(),
	}, otpAttempts, otpResends, log)

	healthHandler := handlers.NewHealthHandler(requestStats, attemptStats, resendStats)
	limitHandler := handlers.NewLimitHandler(requests, cfg.RateLimit.Requests, cfg.RateLimit.Window(), log)
	otpHandler := handlers.NewOTPHandler(throttle, log)

	rateLimiter := middleware.NewRateLimiter(requests, cfg.RateLimit.Requests, cfg.RateLimit.Window(), log)

	return &Router{
		engine:        engine,
		healthHandler: healthHandler,
		limitHandler:  limitHandler,
		otpHandler:    otpHandler,
		rateLimiter:   rateLimiter,
		logger:        log,
	}
}

// SetupRoutes configures all HTTP routes
func (r *Router) SetupRoutes() {
	r.engine.Use(middleware.Logger(r.logger))
	r.engine.Use(middleware.Recovery())
	r.engine.Use(middleware.ErrorHandler())
	r.engine.Use(middleware.SecurityHeaders())

	// probes stay outside the limiter so a saturated client cannot mask
	// the process as unhealthy
	r.engine.GET("/health", r.healthHandler.HealthCheck)
	r.engine.GET("/version", r.healthHandler.Version)

	api := r.engine.Group("/api/v1")
	api.Use(r.rateLimiter.Limit())
	{
		limits := api.Group("/limits")
		{
			limits.POST("/check", r.limitHandler.Check)
			limits.DELETE("/:identifier", r.limitHandler.Reset)
		}

		otpRoutes := api.Group("/otp")
		{
			otpRoutes.POST("/attempts/check", r.otpHandler.CheckAttempt)
			otpRoutes.POST("/resends/check", r.otpHandler.CheckResend)
			otpRoutes.POST("/clear", r.otpHandler.Clear)
		}
	}
}

// GetEngine returns the Gin engine
func (r *Router) GetEngine() *gin.Engine {
	return r.engine
}
