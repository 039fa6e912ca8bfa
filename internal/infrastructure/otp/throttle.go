// Package otp enforces attempt and resend limits for one-time passcodes.
// It does not generate emails or persist codes; it only answers whether a
// verification attempt or a resend request may proceed right now.
package otp

import (
	"context"
	"time"

	"quell/internal/infrastructure/ratelimit"
	"quell/internal/shared/logger"
	"quell/internal/shared/utils"
)

type Config struct {
	CodeLength     int
	Expiry         time.Duration
	MaxAttempts    int
	ResendCooldown time.Duration
}

// Throttle tracks OTP verification attempts and resend cooldowns per
// email+purpose identity. Attempts and resends are two separate instances of
// the same bounded-counter abstraction: attempts are capped per code (the
// counter restarts when a resend replaces the code, and its window matches
// the code expiry), resends are capped at one per cooldown window.
//
// Like the rate limit registry it is built on, the throttle fails open: an
// internal fault admits the action instead of locking a user out.
type Throttle struct {
	cfg      Config
	attempts ratelimit.Limiter
	resends  ratelimit.Limiter
	logger   logger.Interface
}

func NewThrottle(cfg Config, attempts, resends ratelimit.Limiter, log logger.Interface) *Throttle {
	return &Throttle{
		cfg:      cfg,
		attempts: attempts,
		resends:  resends,
		logger:   log,
	}
}

// AllowAttempt reports whether another verification attempt for the identity
// is admitted. The counter window matches the code expiry, so attempts are
// effectively capped per live code.
func (t *Throttle) AllowAttempt(ctx context.Context, email, purpose string) ratelimit.Decision {
	dec, err := t.attempts.Acquire(ctx, identity(email, purpose), t.cfg.MaxAttempts, t.cfg.Expiry)
	if err != nil {
		t.logger.Errorw("otp attempt check failed, allowing",
			"email", utils.MaskEmail(email),
			"purpose", purpose,
			"error", err,
		)
		return ratelimit.Decision{Allowed: true}
	}
	return dec
}

// AllowResend reports whether a new code may be sent to the identity. At most
// one resend is admitted per cooldown window. An admitted resend replaces the
// code, so the attempt budget starts over with it.
func (t *Throttle) AllowResend(ctx context.Context, email, purpose string) ratelimit.Decision {
	id := identity(email, purpose)
	dec, err := t.resends.Acquire(ctx, id, 1, t.cfg.ResendCooldown)
	if err != nil {
		t.logger.Errorw("otp resend check failed, allowing",
			"email", utils.MaskEmail(email),
			"purpose", purpose,
			"error", err,
		)
		return ratelimit.Decision{Allowed: true}
	}

	if dec.Allowed {
		// The attempt cap is per code, not per window. A fresh code must
		// not inherit the attempts spent on the one it replaces.
		if err := t.attempts.Reset(ctx, id); err != nil {
			t.logger.Errorw("otp attempt counter reset failed on resend",
				"email", utils.MaskEmail(email),
				"purpose", purpose,
				"error", err,
			)
		}
	}
	return dec
}

// Clear drops both counters for the identity, typically after the code was
// verified successfully.
func (t *Throttle) Clear(ctx context.Context, email, purpose string) error {
	id := identity(email, purpose)
	if err := t.attempts.Reset(ctx, id); err != nil {
		return err
	}
	return t.resends.Reset(ctx, id)
}

func identity(email, purpose string) string {
	return email + ":" + purpose
}
