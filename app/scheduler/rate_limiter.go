// Package scheduler
package scheduler

import (
	"context"
	"math/rand"
	"sync"
	"time"
)

// TokenBucket paces dispatch at a configured hourly rate. Tokens refill
// continuously at rate/hour up to the burst capacity, so a campaign that
// stalled briefly can catch up without ever exceeding its hourly budget.
type TokenBucket struct {
	mu         sync.Mutex
	tokens     float64
	capacity   float64
	refillRate float64 // tokens per second
	lastRefill time.Time
}

// NewTokenBucket creates a bucket for the given hourly rate. Capacity is one
// tenth of the hourly rate (at least 1) so bursts stay small relative to the
// budget.
func NewTokenBucket(ratePerHour uint) *TokenBucket {
	if ratePerHour == 0 {
		ratePerHour = 1
	}
	capacity := float64(ratePerHour) / 10
	if capacity < 1 {
		capacity = 1
	}
	return &TokenBucket{
		tokens:     1,
		capacity:   capacity,
		refillRate: float64(ratePerHour) / 3600,
		lastRefill: time.Now(),
	}
}

// Wait blocks until a token is available or the context is cancelled
func (b *TokenBucket) Wait(ctx context.Context) error {
	for {
		if d := b.take(); d <= 0 {
			return nil
		} else {
			timer := time.NewTimer(d)
			select {
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			case <-timer.C:
			}
		}
	}
}

// take consumes a token if available, otherwise returns how long to wait
// before the next token arrives
func (b *TokenBucket) take() time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := time.Now()
	elapsed := now.Sub(b.lastRefill).Seconds()
	b.tokens += elapsed * b.refillRate
	if b.tokens > b.capacity {
		b.tokens = b.capacity
	}
	b.lastRefill = now

	if b.tokens >= 1 {
		b.tokens--
		return 0
	}

	missing := 1 - b.tokens
	return time.Duration(missing / b.refillRate * float64(time.Second))
}

// sendJitter returns a random delay in [0, slot) where slot is the average
// inter-send gap at the given hourly rate. Spreading sends inside their slot
// keeps a batch of simulated phishing emails from arriving in one burst.
func sendJitter(ratePerHour uint, rng *rand.Rand) time.Duration {
	if ratePerHour == 0 {
		return 0
	}
	slot := time.Hour / time.Duration(ratePerHour)
	if slot <= 0 {
		return 0
	}
	return time.Duration(rng.Int63n(int64(slot)))
}
