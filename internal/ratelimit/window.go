package ratelimit

import (
	"sync"
	"time"
)

// trackedEvent is one recorded request in a category log.
type trackedEvent struct {
	at      time.Time
	success bool
	meta    map[string]any
}

// Tracker is a generic sliding-window event log keyed by category. It knows
// nothing about identities or bans; the Guard composes it with that policy.
type Tracker struct {
	mu    sync.Mutex
	nowFn func() time.Time

	events        map[string][]trackedEvent
	totalRequests uint64
	totalFailures uint64
}

// NewTracker constructs a Tracker. A nil nowFn selects time.Now.
func NewTracker(nowFn func() time.Time) *Tracker {
	if nowFn == nil {
		nowFn = time.Now
	}
	return &Tracker{
		nowFn:  nowFn,
		events: make(map[string][]trackedEvent),
	}
}

// Record appends an event with the current timestamp to the category log.
func (t *Tracker) Record(category string, success bool, meta map[string]any) {
	if t == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.events[category] = append(t.events[category], trackedEvent{at: t.nowFn(), success: success, meta: meta})
	t.totalRequests++
	if !success {
		t.totalFailures++
	}
}

// CountSince reports how many events in the category fall within the
// trailing window. The lower bound is open: an event exactly at now-window
// is excluded.
func (t *Tracker) CountSince(category string, window time.Duration) int {
	if t == nil || window <= 0 {
		return 0
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return countAfter(t.events[category], t.nowFn().Add(-window))
}

// Stats returns a read-only snapshot with per-category window breakdowns.
func (t *Tracker) Stats() TrackerStats {
	if t == nil {
		return TrackerStats{}
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.nowFn()
	stats := TrackerStats{
		TotalRequests: t.totalRequests,
		TotalFailures: t.totalFailures,
		SuccessRate:   1,
	}
	if t.totalRequests > 0 {
		stats.SuccessRate = float64(t.totalRequests-t.totalFailures) / float64(t.totalRequests)
	}
	if len(t.events) > 0 {
		stats.Categories = make(map[string]CategoryStats, len(t.events))
		for category, log := range t.events {
			stats.Categories[category] = CategoryStats{
				LastSecond: countAfter(log, now.Add(-time.Second)),
				LastMinute: countAfter(log, now.Add(-time.Minute)),
				LastHour:   countAfter(log, now.Add(-time.Hour)),
			}
		}
	}
	return stats
}

// Prune drops events older than the given window from every category log.
// Totals are monotonic and unaffected.
func (t *Tracker) Prune(window time.Duration) {
	if t == nil || window <= 0 {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	cutoff := t.nowFn().Add(-window)
	for category, log := range t.events {
		kept := pruneBefore(log, cutoff)
		if len(kept) == 0 {
			delete(t.events, category)
			continue
		}
		t.events[category] = kept
	}
}

// Reset releases all category logs. Idempotent.
func (t *Tracker) Reset() {
	if t == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.events = make(map[string][]trackedEvent)
}

// countAfter counts events strictly after the cutoff. Logs are append-only
// in temporal order, so it scans from the newest end.
func countAfter(log []trackedEvent, cutoff time.Time) int {
	n := 0
	for i := len(log) - 1; i >= 0; i-- {
		if !log[i].at.After(cutoff) {
			break
		}
		n++
	}
	return n
}

// pruneBefore drops events at or before the cutoff, keeping temporal order.
func pruneBefore(log []trackedEvent, cutoff time.Time) []trackedEvent {
	idx := 0
	for idx < len(log) && !log[idx].at.After(cutoff) {
		idx++
	}
	if idx == 0 {
		return log
	}
	kept := make([]trackedEvent, len(log)-idx)
	copy(kept, log[idx:])
	return kept
}
