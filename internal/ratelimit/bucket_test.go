package ratelimit

import (
	"testing"
	"time"
)

func TestBucketExhaustionAndRecovery(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	b := newBucket(5, time.Second, now)

	for i := 0; i < 5; i++ {
		if !b.take(1) {
			t.Fatalf("take %d should succeed", i)
		}
	}
	if b.take(1) {
		t.Fatal("expected empty bucket to refuse")
	}
	if b.tokens != 0 {
		t.Fatalf("expected 0 tokens, got %d", b.tokens)
	}

	now = now.Add(5 * time.Second)
	b.refill(now)
	if b.tokens != 5 {
		t.Fatalf("expected full refill after 5s, got %d", b.tokens)
	}
}

func TestBucketNeverExceedsCapacity(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	b := newBucket(3, time.Second, now)

	now = now.Add(time.Hour)
	b.refill(now)
	if b.tokens != 3 {
		t.Fatalf("expected cap at capacity, got %d", b.tokens)
	}
}

func TestBucketNoRefillWithoutElapsedTime(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	b := newBucket(5, time.Second, now)
	b.take(3)

	b.refill(now)
	if b.tokens != 2 {
		t.Fatalf("expected no refill without elapsed time, got %d", b.tokens)
	}
}

func TestBucketFractionalElapsedPreserved(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	b := newBucket(10, time.Second, now)
	b.take(10)

	// 1.5 intervals: one token, half an interval carried over.
	now = now.Add(1500 * time.Millisecond)
	b.refill(now)
	if b.tokens != 1 {
		t.Fatalf("expected 1 token after 1.5s, got %d", b.tokens)
	}

	// Another 0.5s completes the second interval.
	now = now.Add(500 * time.Millisecond)
	b.refill(now)
	if b.tokens != 2 {
		t.Fatalf("expected carried fraction to complete a token, got %d", b.tokens)
	}
}

func TestBucketZeroCapacityAlwaysCloses(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	b := newBucket(0, time.Second, now)

	now = now.Add(time.Hour)
	b.refill(now)
	if b.take(1) {
		t.Fatal("expected zero-capacity bucket to refuse")
	}
	if b.available(now) != 0 {
		t.Fatalf("expected 0 available, got %d", b.available(now))
	}
}
