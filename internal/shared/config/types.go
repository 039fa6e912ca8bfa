package config

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
)

type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port" validate:"gt=0,lte=65535"`
	Mode string `mapstructure:"mode"`
}

func (s *ServerConfig) GetAddr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

type LoggerConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	OutputPath string `mapstructure:"output_path"`
}

// RateLimitConfig holds the request admission limits. Limits and windows are
// fixed for the process lifetime; they are not hot-reloaded.
type RateLimitConfig struct {
	Requests               int `mapstructure:"requests" validate:"gt=0"`
	WindowSeconds          int `mapstructure:"window_seconds" validate:"gt=0"`
	CleanupIntervalSeconds int `mapstructure:"cleanup_interval_seconds" validate:"gt=0"`
}

func (r *RateLimitConfig) Window() time.Duration {
	return time.Duration(r.WindowSeconds) * time.Second
}

func (r *RateLimitConfig) CleanupInterval() time.Duration {
	return time.Duration(r.CleanupIntervalSeconds) * time.Second
}

// OTPConfig holds attempt and resend throttling parameters for one-time
// passcodes. ExpiryMinutes bounds the attempt counter window since a code is
// only verifiable while it is alive.
type OTPConfig struct {
	Length                int `mapstructure:"length" validate:"gt=0,lte=10"`
	ExpiryMinutes         int `mapstructure:"expiry_minutes" validate:"gt=0"`
	MaxAttempts           int `mapstructure:"max_attempts" validate:"gt=0"`
	ResendCooldownMinutes int `mapstructure:"resend_cooldown_minutes" validate:"gt=0"`
}

func (o *OTPConfig) Expiry() time.Duration {
	return time.Duration(o.ExpiryMinutes) * time.Minute
}

func (o *OTPConfig) ResendCooldown() time.Duration {
	return time.Duration(o.ResendCooldownMinutes) * time.Minute
}

type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

func (r *RedisConfig) GetAddr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

var validate = validator.New()

// Validate checks the struct tags on cfg. A failure here is fatal at startup;
// limits are never re-checked on the request path.
func Validate(cfg interface{}) error {
	if err := validate.Struct(cfg); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}
