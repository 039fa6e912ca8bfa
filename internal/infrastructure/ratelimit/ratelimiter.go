package ratelimit

import (
	"context"
	"time"
)

// Decision is the outcome of an admission check. A denied decision is a
// normal outcome communicated to the caller, not an error.
type Decision struct {
	Allowed    bool
	Remaining  int
	RetryAfter time.Duration
}

// Stats is a point-in-time snapshot of the registry for observability.
type Stats struct {
	TotalIdentifiers int   `json:"total_identifiers"`
	TotalRequests    int64 `json:"total_requests"`
	ExpiredKeys      int   `json:"expired_keys"`
}

// Limiter decides whether an action by identifier is admitted within a fixed
// time window. limit is the maximum number of admissions per window.
// Implementations must be safe for concurrent use and must not lose updates
// for the same identifier.
type Limiter interface {
	Acquire(ctx context.Context, identifier string, limit int, window time.Duration) (Decision, error)
	Reset(ctx context.Context, identifier string) error
}
