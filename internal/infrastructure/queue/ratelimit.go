package queue

import (
	"context"
	"sync"
	"time"
)

// rateLimiter hands out up to maxPermits permits and restores one permit
// per refillRate.
type rateLimiter struct {
	mu         sync.Mutex
	permits    int
	maxPermits int
	refillRate time.Duration
	lastRefill time.Time
}

func newRateLimiter(maxPermits int, refillRate time.Duration) *rateLimiter {
	return &rateLimiter{
		permits:    maxPermits,
		maxPermits: maxPermits,
		refillRate: refillRate,
		lastRefill: time.Now(),
	}
}

// refill must be called with mu held.
func (rl *rateLimiter) refill(now time.Time) {
	restored := int(now.Sub(rl.lastRefill) / rl.refillRate)
	if restored <= 0 {
		return
	}
	rl.permits = min(rl.permits+restored, rl.maxPermits)
	rl.lastRefill = rl.lastRefill.Add(time.Duration(restored) * rl.refillRate)
	if rl.permits == rl.maxPermits {
		rl.lastRefill = now
	}
}

// Wait blocks until a permit is available or ctx is done.
func (rl *rateLimiter) Wait(ctx context.Context) error {
	for {
		rl.mu.Lock()
		now := time.Now()
		rl.refill(now)
		if rl.permits > 0 {
			rl.permits--
			rl.mu.Unlock()
			return nil
		}
		wait := rl.refillRate - now.Sub(rl.lastRefill)
		rl.mu.Unlock()

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}
