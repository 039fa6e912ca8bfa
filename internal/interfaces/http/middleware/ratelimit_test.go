package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"quell/internal/infrastructure/ratelimit"
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

func newTestRouter(rl *RateLimiter) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/ping", rl.Limit(), func(c *gin.Context) {
		c.String(http.StatusOK, "pong")
	})
	return r
}

func doRequest(r *gin.Engine, ip string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.RemoteAddr = ip + ":12345"
	r.ServeHTTP(w, req)
	return w
}

func TestRateLimitMiddleware_AllowsThenDenies(t *testing.T) {
	limiter := ratelimit.NewMemoryLimiter(newNopLogger())
	rl := NewRateLimiter(limiter, 2, time.Minute, newNopLogger())
	r := newTestRouter(rl)

	w := doRequest(r, "10.0.0.1")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "2", w.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "1", w.Header().Get("X-RateLimit-Remaining"))

	w = doRequest(r, "10.0.0.1")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "0", w.Header().Get("X-RateLimit-Remaining"))

	w = doRequest(r, "10.0.0.1")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.NotEmpty(t, w.Header().Get("Retry-After"))
	assert.Contains(t, w.Body.String(), "rate limit exceeded")
}

func TestRateLimitMiddleware_ClientsAreIndependent(t *testing.T) {
	limiter := ratelimit.NewMemoryLimiter(newNopLogger())
	rl := NewRateLimiter(limiter, 1, time.Minute, newNopLogger())
	r := newTestRouter(rl)

	assert.Equal(t, http.StatusOK, doRequest(r, "10.0.0.1").Code)
	assert.Equal(t, http.StatusTooManyRequests, doRequest(r, "10.0.0.1").Code)

	assert.Equal(t, http.StatusOK, doRequest(r, "10.0.0.2").Code)
}

// failingLimiter always errors, to exercise the fail-open path.
type failingLimiter struct{}

func (f *failingLimiter) Acquire(ctx context.Context, identifier string, limit int, window time.Duration) (ratelimit.Decision, error) {
	return ratelimit.Decision{}, errors.New("store unavailable")
}

func (f *failingLimiter) Reset(ctx context.Context, identifier string) error {
	return errors.New("store unavailable")
}

func TestRateLimitMiddleware_FailsOpenOnLimiterError(t *testing.T) {
	rl := NewRateLimiter(&failingLimiter{}, 1, time.Minute, newNopLogger())
	r := newTestRouter(rl)

	// every request must be served when the limiter is broken
	for i := 0; i < 5; i++ {
		assert.Equal(t, http.StatusOK, doRequest(r, "10.0.0.1").Code)
	}
}
