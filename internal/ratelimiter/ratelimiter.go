// Package ratelimiter throttles how fast the daemon accepts new connections.
package ratelimiter

import (
	"context"
	"math"

	"golang.org/x/time/rate"
)

// RateLimiter is a token bucket. A nil *RateLimiter never throttles.
//
// Thread safety:
// All methods are safe for concurrent use.
type RateLimiter struct {
	limiter *rate.Limiter
}

// New returns a limiter allowing perSecond events sustained and burst
// events at once. perSecond == 0 disables limiting. A burst below 1 is
// raised to 1 so a limited bucket can ever grant a token.
func New(perSecond float64, burst int) *RateLimiter {
	if perSecond <= 0 {
		return &RateLimiter{limiter: rate.NewLimiter(rate.Inf, 0)}
	}
	if burst < 1 {
		burst = 1
	}
	return &RateLimiter{limiter: rate.NewLimiter(rate.Limit(perSecond), burst)}
}

// Limited reports whether the limiter enforces a finite rate.
func (r *RateLimiter) Limited() bool {
	return r != nil && r.limiter.Limit() != rate.Inf
}

// Allow consumes a token if one is available.
func (r *RateLimiter) Allow() bool {
	if !r.Limited() {
		return true
	}
	return r.limiter.Allow()
}

// Wait blocks until a token is available or ctx is done.
func (r *RateLimiter) Wait(ctx context.Context) error {
	if !r.Limited() {
		return ctx.Err()
	}
	return r.limiter.Wait(ctx)
}

// Throttle takes a token, calling onThrottle first when the caller is
// about to block. It returns ctx's error if ctx ends while waiting.
func (r *RateLimiter) Throttle(ctx context.Context, onThrottle func()) error {
	if r.Allow() {
		return nil
	}
	if onThrottle != nil {
		onThrottle()
	}
	return r.Wait(ctx)
}

// Tokens returns the tokens currently in the bucket. Unlimited limiters
// report +Inf.
func (r *RateLimiter) Tokens() float64 {
	if !r.Limited() {
		return math.Inf(1)
	}
	return r.limiter.Tokens()
}
