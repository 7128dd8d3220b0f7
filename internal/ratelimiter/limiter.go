package ratelimiter

import (
	"context"

	"golang.org/x/time/rate"
)

// Limiter paces outbound mail with a token bucket shared by every job.
// Burst is set equal to the rate so no extra burst capacity is allowed
// beyond the configured per-second maximum.
type Limiter struct {
	limiter *rate.Limiter
}

// New creates a Limiter granting ratePerSec tokens per second.
// A non-positive rate disables pacing.
func New(ratePerSec int) *Limiter {
	if ratePerSec <= 0 {
		return &Limiter{limiter: rate.NewLimiter(rate.Inf, 0)}
	}
	return &Limiter{limiter: rate.NewLimiter(rate.Limit(ratePerSec), ratePerSec)}
}

// Wait blocks until a token is granted.
// Returns a non-nil error only if ctx is cancelled while waiting.
func (l *Limiter) Wait(ctx context.Context) error {
	return l.limiter.Wait(ctx)
}
