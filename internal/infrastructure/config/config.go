package config

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/spf13/viper"

	sharedConfig "quell/internal/shared/config"
)

type Config struct {
	Server    sharedConfig.ServerConfig    `mapstructure:"server"`
	Logger    sharedConfig.LoggerConfig    `mapstructure:"logger"`
	RateLimit sharedConfig.RateLimitConfig `mapstructure:"rate_limit"`
	OTP       sharedConfig.OTPConfig       `mapstructure:"otp"`
	Redis     sharedConfig.RedisConfig     `mapstructure:"redis"`
}

var (
	appConfig   *Config
	appConfigMu sync.RWMutex
)

// Load loads configuration from file and environment variables.
// The config file is optional; environment variables alone are enough to run.
func Load(env string) (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("./configs")
	viper.AddConfigPath("../configs")
	viper.AddConfigPath("../../configs")

	viper.SetEnvPrefix("QUELL")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	bindLegacyEnvNames()
	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	if env != "" && env != "default" {
		viper.Set("server.mode", env)
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := sharedConfig.Validate(&config); err != nil {
		return nil, err
	}

	appConfigMu.Lock()
	appConfig = &config
	appConfigMu.Unlock()

	return &config, nil
}

// Get returns the loaded configuration
func Get() *Config {
	appConfigMu.RLock()
	defer appConfigMu.RUnlock()
	return appConfig
}

// bindLegacyEnvNames keeps the flat variable names from the deployment
// templates working alongside the QUELL_* prefixed form.
func bindLegacyEnvNames() {
	_ = viper.BindEnv("rate_limit.requests", "QUELL_RATE_LIMIT_REQUESTS", "RATE_LIMIT_REQUESTS")
	_ = viper.BindEnv("rate_limit.window_seconds", "QUELL_RATE_LIMIT_WINDOW_SECONDS", "RATE_LIMIT_WINDOW")
	_ = viper.BindEnv("otp.length", "QUELL_OTP_LENGTH", "OTP_LENGTH")
	_ = viper.BindEnv("otp.expiry_minutes", "QUELL_OTP_EXPIRY_MINUTES", "OTP_EXPIRY_MINUTES")
	_ = viper.BindEnv("otp.max_attempts", "QUELL_OTP_MAX_ATTEMPTS", "OTP_MAX_ATTEMPTS")
	_ = viper.BindEnv("otp.resend_cooldown_minutes", "QUELL_OTP_RESEND_COOLDOWN_MINUTES", "OTP_RESEND_COOLDOWN_MINUTES")
}

// setDefaults sets default configuration values
func setDefaults() {
	// Server defaults
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.mode", "debug")

	// Logger defaults
	viper.SetDefault("logger.level", "info")
	viper.SetDefault("logger.format", "console")
	viper.SetDefault("logger.output_path", "stdout")

	// Rate limit defaults: 100 requests per hour per client, sweep every 5 minutes
	viper.SetDefault("rate_limit.requests", 100)
	viper.SetDefault("rate_limit.window_seconds", 3600)
	viper.SetDefault("rate_limit.cleanup_interval_seconds", 300)

	// OTP defaults
	viper.SetDefault("otp.length", 6)
	viper.SetDefault("otp.expiry_minutes", 10)
	viper.SetDefault("otp.max_attempts", 3)
	viper.SetDefault("otp.resend_cooldown_minutes", 2)

	// Redis defaults (disabled: single-instance deployments use the in-memory limiter)
	viper.SetDefault("redis.enabled", false)
	viper.SetDefault("redis.host", "localhost")
	viper.SetDefault("redis.port", 6379)
	viper.SetDefault("redis.password", "")
	viper.SetDefault("redis.db", 0)
}
