package ratelimit

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quell/internal/shared/logger"
)

// nopLogger is a no-op logger for testing.
type nopLogger struct{}

func newNopLogger() logger.Interface { return &nopLogger{} }

func (l *nopLogger) Debug(msg string, args ...any)                   {}
func (l *nopLogger) Info(msg string, args ...any)                    {}
func (l *nopLogger) Warn(msg string, args ...any)                    {}
func (l *nopLogger) Error(msg string, args ...any)                   {}
func (l *nopLogger) With(args ...any) logger.Interface               { return l }
func (l *nopLogger) Named(name string) logger.Interface              { return l }
func (l *nopLogger) Debugw(msg string, keysAndValues ...interface{}) {}
func (l *nopLogger) Infow(msg string, keysAndValues ...interface{})  {}
func (l *nopLogger) Warnw(msg string, keysAndValues ...interface{})  {}
func (l *nopLogger) Errorw(msg string, keysAndValues ...interface{}) {}

// fakeClock drives the limiter's clock for deterministic window tests.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestLimiter() (*MemoryLimiter, *fakeClock) {
	limiter := NewMemoryLimiter(newNopLogger())
	clock := newFakeClock()
	limiter.now = clock.Now
	return limiter, clock
}

func TestMemoryLimiter_AllowsUpToLimitThenDenies(t *testing.T) {
	limiter, _ := newTestLimiter()
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		dec, err := limiter.Acquire(ctx, "10.0.0.1", 5, time.Minute)
		require.NoError(t, err)
		assert.True(t, dec.Allowed, "request %d should be allowed", i+1)
		assert.Equal(t, 5-i-1, dec.Remaining)
	}

	dec, err := limiter.Acquire(ctx, "10.0.0.1", 5, time.Minute)
	require.NoError(t, err)
	assert.False(t, dec.Allowed, "6th request should be denied")
	assert.Greater(t, dec.RetryAfter, time.Duration(0))
	assert.LessOrEqual(t, dec.RetryAfter, time.Minute)
}

func TestMemoryLimiter_WindowResetScenario(t *testing.T) {
	// limit=3, window=60s; calls at t=0,10,20,30 then t=61
	limiter, clock := newTestLimiter()
	ctx := context.Background()

	dec, err := limiter.Acquire(ctx, "client", 3, time.Minute)
	require.NoError(t, err)
	assert.True(t, dec.Allowed)

	for _, step := range []time.Duration{10 * time.Second, 10 * time.Second} {
		clock.Advance(step)
		dec, err = limiter.Acquire(ctx, "client", 3, time.Minute)
		require.NoError(t, err)
		assert.True(t, dec.Allowed)
	}

	clock.Advance(10 * time.Second)
	dec, err = limiter.Acquire(ctx, "client", 3, time.Minute)
	require.NoError(t, err)
	assert.False(t, dec.Allowed)
	assert.Equal(t, 30*time.Second, dec.RetryAfter)

	// after the window elapses the next call starts a fresh window,
	// prior denial state notwithstanding
	clock.Advance(31 * time.Second)
	dec, err = limiter.Acquire(ctx, "client", 3, time.Minute)
	require.NoError(t, err)
	assert.True(t, dec.Allowed)
	assert.Equal(t, 2, dec.Remaining)
}

func TestMemoryLimiter_ExactlyAtWindowBoundaryResets(t *testing.T) {
	limiter, clock := newTestLimiter()
	ctx := context.Background()

	_, err := limiter.Acquire(ctx, "client", 1, time.Minute)
	require.NoError(t, err)

	// now == windowStart + window counts as expired
	clock.Advance(time.Minute)
	dec, err := limiter.Acquire(ctx, "client", 1, time.Minute)
	require.NoError(t, err)
	assert.True(t, dec.Allowed)
}

func TestMemoryLimiter_ConcurrentAcquiresDoNotOverAdmit(t *testing.T) {
	limiter, _ := newTestLimiter()
	ctx := context.Background()

	const workers = 50
	const limit = 10

	var wg sync.WaitGroup
	results := make(chan bool, workers)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			dec, err := limiter.Acquire(ctx, "shared", limit, time.Minute)
			assert.NoError(t, err)
			results <- dec.Allowed
		}()
	}
	wg.Wait()
	close(results)

	allowed := 0
	for ok := range results {
		if ok {
			allowed++
		}
	}
	assert.Equal(t, limit, allowed, "exactly limit acquires should be admitted")
}

func TestMemoryLimiter_CleanupRemovesOnlyExpired(t *testing.T) {
	limiter, clock := newTestLimiter()
	ctx := context.Background()

	_, err := limiter.Acquire(ctx, "short-lived", 10, 30*time.Second)
	require.NoError(t, err)
	_, err = limiter.Acquire(ctx, "long-lived", 10, time.Hour)
	require.NoError(t, err)

	clock.Advance(time.Minute)

	before := limiter.Stats()
	require.Equal(t, 2, before.TotalIdentifiers)
	require.Equal(t, 1, before.ExpiredKeys)

	removed := limiter.CleanupExpired()
	assert.Equal(t, 1, removed)

	after := limiter.Stats()
	assert.Equal(t, before.TotalIdentifiers-removed, after.TotalIdentifiers)
	assert.Equal(t, 0, after.ExpiredKeys)

	// the active entry keeps its count
	dec, err := limiter.Acquire(ctx, "long-lived", 10, time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 8, dec.Remaining)
}

func TestMemoryLimiter_StatsCountsRequests(t *testing.T) {
	limiter, _ := newTestLimiter()
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := limiter.Acquire(ctx, "a", 10, time.Minute)
		require.NoError(t, err)
	}
	_, err := limiter.Acquire(ctx, "b", 10, time.Minute)
	require.NoError(t, err)

	stats := limiter.Stats()
	assert.Equal(t, 2, stats.TotalIdentifiers)
	assert.Equal(t, int64(4), stats.TotalRequests)
	assert.Equal(t, 0, stats.ExpiredKeys)
}

func TestMemoryLimiter_CorruptedEntryFailsOpen(t *testing.T) {
	limiter, _ := newTestLimiter()
	ctx := context.Background()

	_, err := limiter.Acquire(ctx, "client", 1, time.Minute)
	require.NoError(t, err)

	limiter.mu.Lock()
	limiter.entries["client"].count = -7
	limiter.mu.Unlock()

	// limit already reached, but the corrupted entry must be reset and the
	// request admitted rather than denied
	dec, err := limiter.Acquire(ctx, "client", 1, time.Minute)
	require.NoError(t, err)
	assert.True(t, dec.Allowed)

	dec, err = limiter.Acquire(ctx, "client", 1, time.Minute)
	require.NoError(t, err)
	assert.False(t, dec.Allowed, "entry should be healthy again after the reset")
}

func TestMemoryLimiter_RejectsInvalidArguments(t *testing.T) {
	limiter, _ := newTestLimiter()
	ctx := context.Background()

	_, err := limiter.Acquire(ctx, "", 10, time.Minute)
	assert.Error(t, err)

	_, err = limiter.Acquire(ctx, "client", 0, time.Minute)
	assert.Error(t, err)

	_, err = limiter.Acquire(ctx, "client", 10, 0)
	assert.Error(t, err)
}

func TestMemoryLimiter_Reset(t *testing.T) {
	limiter, _ := newTestLimiter()
	ctx := context.Background()

	_, err := limiter.Acquire(ctx, "client", 1, time.Minute)
	require.NoError(t, err)

	dec, err := limiter.Acquire(ctx, "client", 1, time.Minute)
	require.NoError(t, err)
	require.False(t, dec.Allowed)

	require.NoError(t, limiter.Reset(ctx, "client"))

	dec, err = limiter.Acquire(ctx, "client", 1, time.Minute)
	require.NoError(t, err)
	assert.True(t, dec.Allowed)
}

func TestMemoryLimiter_JanitorStopsOnCancel(t *testing.T) {
	limiter := NewMemoryLimiter(newNopLogger(), WithSweepInterval(10*time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	limiter.StartJanitor(ctx)

	_, err := limiter.Acquire(ctx, "client", 10, 5*time.Millisecond)
	require.NoError(t, err)

	assert.Eventually(t, func() bool {
		return limiter.Stats().TotalIdentifiers == 0
	}, time.Second, 5*time.Millisecond, "janitor should sweep the expired entry")

	cancel()
}
