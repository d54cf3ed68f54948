package ratelimit

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"
)

// Limiter paces calls against one API-backed provider. Scraped sites use
// the randomized Delay instead; official APIs get a token bucket sized to
// their documented quota.
type Limiter struct {
	name   string
	bucket *rate.Limiter
}

// PerSecond creates a named limiter allowing n requests per second, with
// an equal burst so short runs of calls are not throttled.
func PerSecond(name string, n int) *Limiter {
	return &Limiter{
		name:   name,
		bucket: rate.NewLimiter(rate.Limit(n), n),
	}
}

// Wait blocks until the next request may proceed or the context ends.
func (l *Limiter) Wait(ctx context.Context) error {
	if err := l.bucket.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait for %s: %w", l.name, err)
	}
	return nil
}

// Allow reports whether a request can proceed right now without blocking.
func (l *Limiter) Allow() bool {
	return l.bucket.Allow()
}

// Name identifies the limiter in logs.
func (l *Limiter) Name() string {
	return l.name
}
