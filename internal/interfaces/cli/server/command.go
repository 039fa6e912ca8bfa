package server

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"quell/internal/infrastructure/config"
	"quell/internal/infrastructure/ratelimit"
	httpRouter "quell/internal/interfaces/http"
	"quell/internal/interfaces/http/handlers"
	"quell/internal/shared/logger"
	"quell/internal/shared/version"
)

var env string

func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "server",
		Short: "Start the HTTP server",
		Long:  `Start the Quell rate limiting server with the specified configuration.`,
		RunE:  run,
	}

	cmd.Flags().StringVarP(&env, "env", "e", "development", "Environment (development, test, production)")

	return cmd
}

func run(cmd *cobra.Command, args []string) error {
	if envVar := os.Getenv("ENV"); envVar != "" {
		env = envVar
	}

	ginMode := mapEnvToGinMode(env)

	cfg, err := config.Load(env)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	cfg.Server.Mode = ginMode

	if err := logger.Init(&cfg.Logger, cfg.Server.Mode); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer logger.Sync()

	logger.Info("starting server",
		"environment", env,
		"version", version.Current)

	gin.SetMode(cfg.Server.Mode)

	gin.DefaultWriter = io.Discard
	gin.DebugPrintRouteFunc = func(httpMethod, absolutePath, handlerName string, nuHandlers int) {
	}

	log := logger.NewLogger()

	// janitor goroutines stop when this context is cancelled during shutdown
	janitorCtx, stopJanitors := context.WithCancel(context.Background())
	defer stopJanitors()

	sweep := ratelimit.WithSweepInterval(cfg.RateLimit.CleanupInterval())

	otpAttempts := ratelimit.NewMemoryLimiter(log.Named("otp-attempts"), sweep)
	otpAttempts.StartJanitor(janitorCtx)

	otpResends := ratelimit.NewMemoryLimiter(log.Named("otp-resends"), sweep)
	otpResends.StartJanitor(janitorCtx)

	var (
		requests     ratelimit.Limiter
		requestStats handlers.StatsSource
	)
	if cfg.Redis.Enabled {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.GetAddr(),
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := client.Ping(pingCtx).Err(); err != nil {
			return fmt.Errorf("failed to connect to redis: %w", err)
		}
		defer client.Close()

		logger.Info("using redis-backed request limiter", "addr", cfg.Redis.GetAddr())
		requests = ratelimit.NewRedisLimiter(client, log.Named("requests"))
	} else {
		memory := ratelimit.NewMemoryLimiter(log.Named("requests"), sweep)
		memory.StartJanitor(janitorCtx)
		requests = memory
		requestStats = memory
	}

	router := httpRouter.NewRouter(requests, otpAttempts, otpResends,
		requestStats, otpAttempts, otpResends, cfg, log)
	router.SetupRoutes()

	srv := &http.Server{
		Addr:         cfg.Server.GetAddr(),
		Handler:      router.GetEngine(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server starting",
			"address", cfg.Server.GetAddr(),
			"mode", cfg.Server.Mode)

		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("failed to start server", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		return err
	}

	stopJanitors()

	logger.Info("server exited gracefully")
	return nil
}

func mapEnvToGinMode(environment string) string {
	switch environment {
	case "production", "prod":
		return "release"
	case "development", "dev":
		return "debug"
	case "test", "testing":
		return "test"
	case "debug":
		return "debug"
	case "release":
		return "release"
	default:
		return "debug"
	}
}
