// Package ratelimit throttles requests per key over a fixed window, in memory
// for a single instance or in Redis when several instances share the budget.
package ratelimit

import (
	"context"
	"time"
)

type Limiter interface {
	// Allow counts one request for key. When it returns false, retryAfter is
	// the time left in the current window.
	Allow(ctx context.Context, key string, now time.Time) (allowed bool, retryAfter time.Duration, err error)
}
