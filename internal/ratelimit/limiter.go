// Package ratelimit spaces out calls to the video platform API.
package ratelimit

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// Limiter enforces a minimum interval between permitted calls. It is safe
// for concurrent use.
type Limiter struct {
	limiter     *rate.Limiter
	minInterval time.Duration
}

// New returns a limiter that lets one call through every minInterval.
// A non-positive interval disables limiting.
func New(minInterval time.Duration) *Limiter {
	limit := rate.Inf
	if minInterval > 0 {
		limit = rate.Every(minInterval)
	}
	return &Limiter{
		limiter:     rate.NewLimiter(limit, 1),
		minInterval: minInterval,
	}
}

// Wait blocks until the next call is allowed or ctx is done.
func (l *Limiter) Wait(ctx context.Context) error {
	return l.limiter.Wait(ctx)
}

func (l *Limiter) MinInterval() time.Duration {
	return l.minInterval
}
