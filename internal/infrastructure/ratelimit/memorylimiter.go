package ratelimit

import (
	"context"
	"sync"
	"time"

	"quell/internal/shared/errors"
	"quell/internal/shared/goroutine"
	"quell/internal/shared/logger"
)

// cleanupBatchSize bounds how many entries a sweep examines per lock
// acquisition so request-path checks interleave with the sweep.
const cleanupBatchSize = 256

type entry struct {
	windowStart time.Time
	window      time.Duration
	count       int
}

func (e *entry) expiredAt(now time.Time) bool {
	return !now.Before(e.windowStart.Add(e.window))
}

// MemoryLimiter is the process-local rate limit registry: a fixed-window
// counter per identifier with periodic expiry cleanup. All state is lost on
// restart; multi-instance deployments should use RedisLimiter or rate limit
// at the edge instead.
//
// The limiter fails open: an internal fault during a check admits the request
// and is logged, it never turns into a denial for legitimate traffic.
type MemoryLimiter struct {
	mu      sync.Mutex
	entries map[string]*entry
	logger  logger.Interface

	sweepEvery time.Duration

	// now is swapped out in tests for deterministic window expiry.
	now func() time.Time
}

type MemoryOption func(*MemoryLimiter)

// WithSweepInterval overrides how often the janitor removes expired entries.
func WithSweepInterval(d time.Duration) MemoryOption {
	return func(l *MemoryLimiter) { l.sweepEvery = d }
}

// WithClock overrides the time source. Tests use it to step through windows
// deterministically.
func WithClock(now func() time.Time) MemoryOption {
	return func(l *MemoryLimiter) { l.now = now }
}

func NewMemoryLimiter(log logger.Interface, opts ...MemoryOption) *MemoryLimiter {
	l := &MemoryLimiter{
		entries:    make(map[string]*entry),
		logger:     log,
		sweepEvery: 5 * time.Minute,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Acquire implements Limiter. The check and increment happen in one critical
// section, so concurrent callers with the same identifier never over-admit.
func (l *MemoryLimiter) Acquire(_ context.Context, identifier string, limit int, window time.Duration) (Decision, error) {
	if identifier == "" {
		return Decision{}, errors.NewValidationError("identifier must not be empty")
	}
	if limit <= 0 || window <= 0 {
		return Decision{}, errors.NewValidationError("limit and window must be positive")
	}

	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	e, ok := l.entries[identifier]
	if ok && (e.count < 0 || e.windowStart.IsZero()) {
		// Corrupted entry: reset it and admit the request (fail open).
		l.logger.Errorw("resetting corrupted rate limit entry",
			"identifier", identifier,
			"count", e.count,
			"window_start", e.windowStart,
		)
		l.entries[identifier] = &entry{windowStart: now, window: window, count: 1}
		return Decision{Allowed: true, Remaining: limit - 1}, nil
	}

	// An expired entry is equivalent to an absent one.
	if !ok || e.expiredAt(now) {
		l.entries[identifier] = &entry{windowStart: now, window: window, count: 1}
		return Decision{Allowed: true, Remaining: limit - 1}, nil
	}

	if e.count < limit {
		e.count++
		e.window = window
		return Decision{Allowed: true, Remaining: limit - e.count}, nil
	}

	return Decision{RetryAfter: e.windowStart.Add(window).Sub(now)}, nil
}

// Reset implements Limiter.
func (l *MemoryLimiter) Reset(_ context.Context, identifier string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.entries, identifier)
	return nil
}

// CleanupExpired removes entries whose window has elapsed and returns how
// many were removed. Active entries are never touched. The sweep snapshots
// the key set first and deletes in batches so it never holds the lock for the
// whole scan.
func (l *MemoryLimiter) CleanupExpired() int {
	now := l.now()

	l.mu.Lock()
	keys := make([]string, 0, len(l.entries))
	for k := range l.entries {
		keys = append(keys, k)
	}
	l.mu.Unlock()

	removed := 0
	for start := 0; start < len(keys); start += cleanupBatchSize {
		end := min(start+cleanupBatchSize, len(keys))

		l.mu.Lock()
		for _, k := range keys[start:end] {
			if e, ok := l.entries[k]; ok && e.expiredAt(now) {
				delete(l.entries, k)
				removed++
			}
		}
		l.mu.Unlock()
	}

	if removed > 0 {
		l.logger.Debugw("cleaned up expired rate limit entries", "removed", removed)
	}
	return removed
}

// Stats returns a consistent snapshot taken under a single short lock.
func (l *MemoryLimiter) Stats() Stats {
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	stats := Stats{TotalIdentifiers: len(l.entries)}
	for _, e := range l.entries {
		stats.TotalRequests += int64(e.count)
		if e.expiredAt(now) {
			stats.ExpiredKeys++
		}
	}
	return stats
}

// StartJanitor runs the periodic sweep until ctx is cancelled. The sweep runs
// off the request path; cancelling ctx is the shutdown signal.
func (l *MemoryLimiter) StartJanitor(ctx context.Context) {
	if l.sweepEvery <= 0 {
		return
	}

	goroutine.SafeGo(l.logger, "ratelimit-janitor", func() {
		ticker := time.NewTicker(l.sweepEvery)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				l.CleanupExpired()
			}
		}
	})
}
