package ratelimit

import (
	"time"

	"golang.org/x/time/rate"
)

// RateLimiter holds one token bucket per limited route. Routes it was not
// built with are always allowed.
type RateLimiter struct {
	buckets map[string]*rate.Limiter
	now     func() time.Time
}

// NewRateLimiter creates buckets for routes. A burst below 1 defaults to rps.
func NewRateLimiter(rps, burst int, routes []string) *RateLimiter {
	return newRateLimiter(rps, burst, routes, time.Now)
}

func newRateLimiter(rps, burst int, routes []string, now func() time.Time) *RateLimiter {
	if burst < 1 {
		burst = rps
	}
	rl := &RateLimiter{
		buckets: make(map[string]*rate.Limiter, len(routes)),
		now:     now,
	}
	for _, route := range routes {
		rl.buckets[route] = rate.NewLimiter(rate.Limit(rps), burst)
	}
	return rl
}

// Limits reports whether route has a bucket.
func (rl *RateLimiter) Limits(route string) bool {
	_, ok := rl.buckets[route]
	return ok
}

// Allow checks if a request for the given route is allowed
func (rl *RateLimiter) Allow(route string) bool {
	bucket, ok := rl.buckets[route]
	if !ok {
		return true
	}
	return bucket.AllowN(rl.now(), 1)
}
