package ratelimit

import (
	"sort"
	"strings"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

// Suspicion patterns recorded when a heuristic fires.
const (
	patternPerSecond   = "per-second quota exceeded"
	patternPerMinute   = "per-minute quota exceeded"
	patternFailureRate = "high failure rate"
)

// identityEvent is one request recorded for a single identity.
type identityEvent struct {
	at      time.Time
	kind    string
	success bool
	meta    map[string]any
}

// identityRecord tracks the request and failure history of one identity.
// Slices are oldest-first; totals are monotonic and survive pruning.
type identityRecord struct {
	requests []identityEvent
	failures []identityEvent

	firstSeen time.Time
	lastSeen  time.Time

	totalRequests uint64
	totalFailures uint64
}

// requestsAfter counts requests strictly newer than the cutoff.
func (r *identityRecord) requestsAfter(cutoff time.Time) int {
	n := 0
	for i := len(r.requests) - 1; i >= 0; i-- {
		if !r.requests[i].at.After(cutoff) {
			break
		}
		n++
	}
	return n
}

// failuresAfter counts failures strictly newer than the cutoff.
func (r *identityRecord) failuresAfter(cutoff time.Time) int {
	n := 0
	for i := len(r.failures) - 1; i >= 0; i-- {
		if !r.failures[i].at.After(cutoff) {
			break
		}
		n++
	}
	return n
}

// oldestRequestAfter returns the timestamp of the oldest request inside the
// window, used to compute when quota capacity frees up again.
func (r *identityRecord) oldestRequestAfter(cutoff time.Time) (time.Time, bool) {
	for _, ev := range r.requests {
		if ev.at.After(cutoff) {
			return ev.at, true
		}
	}
	return time.Time{}, false
}

// prune drops request and failure entries at or before the cutoff.
func (r *identityRecord) prune(cutoff time.Time) {
	r.requests = pruneIdentityEvents(r.requests, cutoff)
	r.failures = pruneIdentityEvents(r.failures, cutoff)
}

func pruneIdentityEvents(log []identityEvent, cutoff time.Time) []identityEvent {
	idx := 0
	for idx < len(log) && !log[idx].at.After(cutoff) {
		idx++
	}
	if idx == 0 {
		return log
	}
	kept := make([]identityEvent, len(log)-idx)
	copy(kept, log[idx:])
	return kept
}

// Guard is the DoS protection limiter. It composes the sliding-window
// tracker and a single shared burst bucket with per-identity tracking, ban
// and suspicion state, and a periodic sweep.
//
// The burst bucket is one global budget across all identities, not a
// per-identity one. A sweep goroutine owned by the Guard expires bans and
// evicts stale identities; Close stops it.
type Guard struct {
	opts  Options
	nowFn func() time.Time

	tracker *Tracker

	mu         sync.Mutex
	identities map[string]*identityRecord
	bans       map[string]*BanRecord
	suspicious map[string][]string
	burst      *bucket

	stop      chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

// NewGuard constructs a Guard and starts its sweep loop. A nil nowFn selects
// time.Now. Malformed options fail fast here.
func NewGuard(opts Options, nowFn func() time.Time) (*Guard, error) {
	if nowFn == nil {
		nowFn = time.Now
	}
	opts = opts.withDefaults()
	if errValidate := opts.validate(); errValidate != nil {
		return nil, errValidate
	}
	g := &Guard{
		opts:       opts,
		nowFn:      nowFn,
		tracker:    NewTracker(nowFn),
		identities: make(map[string]*identityRecord),
		bans:       make(map[string]*BanRecord),
		suspicious: make(map[string][]string),
		burst:      newBucket(opts.Burst, opts.RefillInterval, nowFn()),
		stop:       make(chan struct{}),
		done:       make(chan struct{}),
	}
	go g.run()
	return g, nil
}

func (g *Guard) run() {
	defer close(g.done)
	ticker := time.NewTicker(g.opts.SweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-g.stop:
			return
		case <-ticker.C:
			g.Sweep()
		}
	}
}

// Check decides whether the identity may proceed with a request of the
// given kind. It is advisory: apart from suspicion marking on quota denials
// it mutates nothing; Record is the only burst-token consumer. The first
// failing layer wins: ban, per-second quota, per-minute quota, burst gate,
// suspicion flag. The per-hour quota is tracked for reporting but does not
// gate admission.
func (g *Guard) Check(identity, kind string) (Decision, error) {
	identity = strings.TrimSpace(identity)
	if identity == "" {
		return Decision{}, ErrEmptyIdentity
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	now := g.nowFn()

	if ban, banned := g.bans[identity]; banned {
		if now.Before(ban.ExpiresAt) {
			return Decision{
				Allowed:    false,
				Reason:     ReasonBanned,
				RetryAfter: ban.ExpiresAt.Sub(now),
				Details: map[string]any{
					"ban_reason": ban.Reason,
					"banned_at":  ban.BannedAt,
					"expires_at": ban.ExpiresAt,
				},
			}, nil
		}
		// Expired ban: clear it and evaluate under normal rules.
		delete(g.bans, identity)
	}

	if rec := g.identities[identity]; rec != nil {
		if deny, denied := g.quotaDenialLocked(identity, rec, now, g.opts.WindowSecond, g.opts.PerSecond, ReasonPerSecond, patternPerSecond); denied {
			return deny, nil
		}
		if deny, denied := g.quotaDenialLocked(identity, rec, now, g.opts.WindowMinute, g.opts.PerMinute, ReasonPerMinute, patternPerMinute); denied {
			return deny, nil
		}
	}

	g.burst.refill(now)
	if g.burst.tokens <= 0 {
		return Decision{
			Allowed:    false,
			Reason:     ReasonBurst,
			RetryAfter: g.opts.RefillInterval,
		}, nil
	}

	if patterns, flagged := g.suspicious[identity]; flagged {
		return Decision{
			Allowed:    false,
			Reason:     ReasonSuspicious,
			RetryAfter: 30 * time.Second,
			Details:    map[string]any{"patterns": append([]string(nil), patterns...)},
		}, nil
	}

	return Decision{Allowed: true}, nil
}

// quotaDenialLocked evaluates one windowed quota and, when exceeded, marks
// the identity suspicious and builds the denial.
func (g *Guard) quotaDenialLocked(identity string, rec *identityRecord, now time.Time, window time.Duration, limit int, reason, pattern string) (Decision, bool) {
	cutoff := now.Add(-window)
	count := rec.requestsAfter(cutoff)
	if count < limit {
		return Decision{}, false
	}
	g.markSuspiciousLocked(identity, pattern)

	retry := window
	if oldest, found := rec.oldestRequestAfter(cutoff); found {
		retry = oldest.Add(window).Sub(now)
	}
	return Decision{
		Allowed:    false,
		Reason:     reason,
		RetryAfter: retry,
		Details:    map[string]any{"count": count, "limit": limit, "window": window.String()},
	}, true
}

// Record reports the outcome of a request. It always appends to both the
// generic tracker and the identity's own log, consumes one burst token if
// available, and on failure runs the failure heuristics.
func (g *Guard) Record(identity, kind string, success bool, meta map[string]any) error {
	identity = strings.TrimSpace(identity)
	if identity == "" {
		return ErrEmptyIdentity
	}
	if kind == "" {
		kind = "general"
	}

	g.tracker.Record(kind, success, meta)

	g.mu.Lock()
	defer g.mu.Unlock()
	now := g.nowFn()

	rec := g.identities[identity]
	if rec == nil {
		rec = &identityRecord{firstSeen: now}
		g.identities[identity] = rec
	}
	rec.lastSeen = now
	rec.totalRequests++
	rec.requests = append(rec.requests, identityEvent{at: now, kind: kind, success: success, meta: meta})

	g.burst.refill(now)
	g.burst.take(1)

	if !success {
		rec.totalFailures++
		rec.failures = append(rec.failures, identityEvent{at: now, kind: kind, meta: meta})
		g.handleFailureLocked(identity, rec, now)
	}
	return nil
}

// handleFailureLocked applies the failure heuristics: enough failures in
// the trailing minute bans the identity (banning supersedes suspicion);
// otherwise a failure rate at or above the threshold flags it suspicious.
func (g *Guard) handleFailureLocked(identity string, rec *identityRecord, now time.Time) {
	cutoff := now.Add(-g.opts.WindowMinute)
	recentFailures := rec.failuresAfter(cutoff)

	if recentFailures >= g.opts.MaxConsecutiveFailures {
		g.banLocked(identity, BanReasonFailures, map[string]any{
			"failures": recentFailures,
			"window":   g.opts.WindowMinute.String(),
		}, now)
		return
	}

	recentRequests := rec.requestsAfter(cutoff)
	if recentRequests == 0 {
		return
	}
	rate := float64(recentFailures) / float64(recentRequests)
	if rate >= g.opts.SuspiciousThreshold {
		g.markSuspiciousLocked(identity, patternFailureRate)
	}
}

func (g *Guard) markSuspiciousLocked(identity, pattern string) {
	for _, existing := range g.suspicious[identity] {
		if existing == pattern {
			return
		}
	}
	g.suspicious[identity] = append(g.suspicious[identity], pattern)
}

func (g *Guard) banLocked(identity, reason string, details map[string]any, now time.Time) {
	g.bans[identity] = &BanRecord{
		Identity:  identity,
		Reason:    reason,
		BannedAt:  now,
		ExpiresAt: now.Add(g.opts.BanDuration),
		Details:   details,
	}
	// A ban is a strict superset of suspicion.
	delete(g.suspicious, identity)
}

// BanIdentity imposes a manual ban.
func (g *Guard) BanIdentity(identity, reason string, details map[string]any) error {
	identity = strings.TrimSpace(identity)
	if identity == "" {
		return ErrEmptyIdentity
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.banLocked(identity, reason, details, g.nowFn())
	return nil
}

// Unban lifts a ban. Removing a non-existent ban is not an error.
func (g *Guard) Unban(identity string) {
	identity = strings.TrimSpace(identity)
	if identity == "" {
		return
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.bans, identity)
}

// IsBanned reports whether the identity currently has an unexpired ban.
func (g *Guard) IsBanned(identity string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	ban, banned := g.bans[identity]
	return banned && g.nowFn().Before(ban.ExpiresAt)
}

// IsSuspicious reports whether the identity is currently flagged.
func (g *Guard) IsSuspicious(identity string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, flagged := g.suspicious[identity]
	return flagged
}

// Bans returns the active ban records, ordered by identity.
func (g *Guard) Bans() []BanRecord {
	g.mu.Lock()
	defer g.mu.Unlock()
	now := g.nowFn()
	out := make([]BanRecord, 0, len(g.bans))
	for _, ban := range g.bans {
		if now.Before(ban.ExpiresAt) {
			out = append(out, *ban)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Identity < out[j].Identity })
	return out
}

// Sweep expires bans, evicts identities idle past the retention window
// together with their suspicion flags, and prunes surviving logs down to
// the hour window. It never propagates internal errors; a bad entry must
// not stop future sweeps.
func (g *Guard) Sweep() {
	defer func() {
		if r := recover(); r != nil {
			log.Errorf("ratelimit: sweep recovered: %v", r)
		}
	}()

	g.mu.Lock()
	now := g.nowFn()
	for identity, ban := range g.bans {
		if !now.Before(ban.ExpiresAt) {
			delete(g.bans, identity)
		}
	}
	for identity, rec := range g.identities {
		if now.Sub(rec.lastSeen) > g.opts.Retention {
			delete(g.identities, identity)
			delete(g.suspicious, identity)
			continue
		}
		rec.prune(now.Add(-g.opts.WindowHour))
	}
	g.mu.Unlock()

	g.tracker.Prune(g.opts.WindowHour)
}

// Stats returns a read-only snapshot of guard state for reporting.
func (g *Guard) Stats() Stats {
	g.mu.Lock()
	now := g.nowFn()
	stats := Stats{
		ActiveIdentities:     len(g.identities),
		SuspiciousIdentities: len(g.suspicious),
		BurstTokens:          g.burst.available(now),
		Limits:               g.opts.limits(),
	}
	for _, ban := range g.bans {
		if now.Before(ban.ExpiresAt) {
			stats.BannedIdentities++
			stats.Bans = append(stats.Bans, *ban)
		}
	}
	g.mu.Unlock()

	sort.Slice(stats.Bans, func(i, j int) bool { return stats.Bans[i].Identity < stats.Bans[j].Identity })
	stats.Tracker = g.tracker.Stats()
	return stats
}

// Close stops the sweep loop and releases all tracked state. Safe to call
// more than once.
func (g *Guard) Close() {
	g.closeOnce.Do(func() {
		close(g.stop)
		<-g.done
	})
	g.mu.Lock()
	g.identities = make(map[string]*identityRecord)
	g.bans = make(map[string]*BanRecord)
	g.suspicious = make(map[string][]string)
	g.mu.Unlock()
	g.tracker.Reset()
}
