package ratelimit

import (
	"context"
	"math/rand"
	"time"
)

// DelayRange bounds the randomized politeness delay injected between
// consecutive requests against one external host.
type DelayRange struct {
	Min time.Duration
	Max time.Duration
}

// Standard delay profiles. HTTP adapters fire lighter requests and get the
// shorter bound; browser-automation adapters load full pages and wait longer.
var (
	HTTPDelay    = DelayRange{Min: 500 * time.Millisecond, Max: 1500 * time.Millisecond}
	BrowserDelay = DelayRange{Min: 1 * time.Second, Max: 3 * time.Second}
	// NoDelay is for API-backed adapters where back-to-back calls are fine.
	NoDelay = DelayRange{}
)

// sleep is swappable in tests to avoid real waiting.
var sleep = func(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Delay sleeps for a random duration within the range, honoring context
// cancellation. A zero range returns immediately.
func Delay(ctx context.Context, r DelayRange) error {
	if r.Max <= 0 {
		return nil
	}
	d := r.Min
	if span := r.Max - r.Min; span > 0 {
		d += time.Duration(rand.Int63n(int64(span)))
	}
	return sleep(ctx, d)
}
