// Package rate provides fixed-window rate limiters used to throttle
// credential guessing on the auth endpoints. Two implementations exist: an
// in-process one for single-instance deployments and tests, and a Redis one
// that shares counters across replicas.
package rate

import (
	"context"
	"time"
)

// Limiter is a fixed-window rate limiter. Allow reports whether the caller
// identified by key may proceed at time now and, when it may not, how long to
// wait before retrying.
type Limiter interface {
	Allow(ctx context.Context, key string, now time.Time) (allowed bool, retryAfter time.Duration, err error)
}
