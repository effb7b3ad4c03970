package ratelimit

import "time"

// bucket is a token bucket with whole-token refill. It gates sub-second
// spikes that the windowed quotas under-penalize. Callers hold the Guard
// lock; bucket itself is not synchronized.
type bucket struct {
	capacity    int
	tokens      int
	refillEvery time.Duration
	lastRefill  time.Time
}

func newBucket(capacity int, refillEvery time.Duration, now time.Time) *bucket {
	return &bucket{
		capacity:    capacity,
		tokens:      capacity,
		refillEvery: refillEvery,
		lastRefill:  now,
	}
}

// refill adds one token per elapsed whole refill interval, capped at
// capacity. lastRefill advances only by the intervals actually converted to
// tokens, so fractional leftover time is preserved across calls.
func (b *bucket) refill(now time.Time) {
	if b.capacity == 0 {
		return
	}
	elapsed := now.Sub(b.lastRefill)
	if elapsed < b.refillEvery {
		return
	}
	n := int(elapsed / b.refillEvery)
	b.tokens += n
	if b.tokens >= b.capacity {
		b.tokens = b.capacity
		b.lastRefill = now
		return
	}
	b.lastRefill = b.lastRefill.Add(time.Duration(n) * b.refillEvery)
}

// available reports the token count a refill at now would produce, without
// mutating the bucket. Used by read-only stats.
func (b *bucket) available(now time.Time) int {
	if b.capacity == 0 {
		return 0
	}
	elapsed := now.Sub(b.lastRefill)
	if elapsed < b.refillEvery {
		return b.tokens
	}
	tokens := b.tokens + int(elapsed/b.refillEvery)
	if tokens > b.capacity {
		tokens = b.capacity
	}
	return tokens
}

// take consumes n tokens if available. Never blocks. A zero-capacity bucket
// always refuses: the burst gate is fully closed.
func (b *bucket) take(n int) bool {
	if b.tokens < n {
		return false
	}
	b.tokens -= n
	return true
}
