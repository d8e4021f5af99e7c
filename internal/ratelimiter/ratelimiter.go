package ratelimiter

import (
	"time"

	"golang.org/x/time/rate"
)

// RateLimiter is a token bucket used for per-session flood control.
//
// Time is passed in explicitly rather than read from the wall clock so that
// callers driven by a simulated clock (the chat room's tick loop in tests)
// get deterministic decisions.
//
// A nil *RateLimiter allows everything.
type RateLimiter struct {
	limiter *rate.Limiter
}

// New creates a limiter refilling perSecond tokens per second with a bucket of
// burst tokens. A perSecond of zero disables limiting and returns nil. A burst
// of zero is raised to one, otherwise no event could ever pass.
func New(perSecond float64, burst uint) *RateLimiter {
	if perSecond <= 0 {
		return nil
	}
	if burst == 0 {
		burst = 1
	}
	return &RateLimiter{
		limiter: rate.NewLimiter(rate.Limit(perSecond), int(burst)),
	}
}

// AllowAt reports whether one event may happen at now, consuming a token if so.
func (r *RateLimiter) AllowAt(now time.Time) bool {
	if r == nil {
		return true
	}
	return r.limiter.AllowN(now, 1)
}

// Allow is AllowAt(time.Now()).
func (r *RateLimiter) Allow() bool {
	return r.AllowAt(time.Now())
}

// TokensAt returns the number of tokens available at now.
func (r *RateLimiter) TokensAt(now time.Time) float64 {
	if r == nil {
		return float64(rate.Inf)
	}
	return r.limiter.TokensAt(now)
}
