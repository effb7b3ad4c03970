package ratelimit

import (
	"errors"
	"strings"
	"testing"
	"time"
)

// testGuard builds a Guard on a controllable clock. The returned advance
// function moves the clock forward.
func testGuard(t *testing.T, opts Options) (*Guard, func(time.Duration)) {
	t.Helper()
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	g, errNew := NewGuard(opts, func() time.Time { return now })
	if errNew != nil {
		t.Fatalf("expected guard, got %v", errNew)
	}
	t.Cleanup(g.Close)
	return g, func(d time.Duration) { now = now.Add(d) }
}

func TestGuardPerSecondQuota(t *testing.T) {
	g, _ := testGuard(t, Options{PerSecond: 10, Burst: 100})

	for i := 0; i < 10; i++ {
		dec, errCheck := g.Check("1.2.3.4", "api")
		if errCheck != nil {
			t.Fatalf("check %d: %v", i, errCheck)
		}
		if !dec.Allowed {
			t.Fatalf("check %d unexpectedly denied: %s", i, dec.Reason)
		}
		if errRecord := g.Record("1.2.3.4", "api", true, nil); errRecord != nil {
			t.Fatalf("record %d: %v", i, errRecord)
		}
	}

	dec, _ := g.Check("1.2.3.4", "api")
	if dec.Allowed {
		t.Fatal("expected denial after quota reached")
	}
	if dec.Reason != ReasonPerSecond {
		t.Fatalf("expected %q, got %q", ReasonPerSecond, dec.Reason)
	}
	if dec.RetryAfter <= 0 || dec.RetryAfter > time.Second {
		t.Fatalf("expected retry-after within the window, got %v", dec.RetryAfter)
	}
}

func TestGuardQuotaWindowSlides(t *testing.T) {
	g, advance := testGuard(t, Options{PerSecond: 10, Burst: 100})

	for i := 0; i < 10; i++ {
		if errRecord := g.Record("1.2.3.4", "api", true, nil); errRecord != nil {
			t.Fatalf("record %d: %v", i, errRecord)
		}
	}

	advance(1100 * time.Millisecond)
	dec, _ := g.Check("1.2.3.4", "api")
	if !dec.Allowed {
		t.Fatalf("expected old requests aged out, got denial: %s", dec.Reason)
	}
}

func TestGuardQuotaDenialMarksSuspicious(t *testing.T) {
	g, advance := testGuard(t, Options{PerSecond: 5, Burst: 100})

	for i := 0; i < 5; i++ {
		_ = g.Record("5.6.7.8", "api", true, nil)
	}
	if dec, _ := g.Check("5.6.7.8", "api"); dec.Allowed {
		t.Fatal("expected quota denial")
	}
	if !g.IsSuspicious("5.6.7.8") {
		t.Fatal("expected quota denial to flag identity")
	}

	// After the window slides the flag still denies admission.
	advance(2 * time.Second)
	dec, _ := g.Check("5.6.7.8", "api")
	if dec.Allowed {
		t.Fatal("expected suspicion denial")
	}
	if dec.Reason != ReasonSuspicious {
		t.Fatalf("expected %q, got %q", ReasonSuspicious, dec.Reason)
	}
	if dec.RetryAfter != 30*time.Second {
		t.Fatalf("expected 30s retry-after, got %v", dec.RetryAfter)
	}
}

func TestGuardBanAfterConsecutiveFailures(t *testing.T) {
	g, _ := testGuard(t, Options{PerSecond: 100, MaxConsecutiveFailures: 5, Burst: 100, BanDuration: time.Hour})

	for i := 0; i < 5; i++ {
		if errRecord := g.Record("9.9.9.9", "login", false, nil); errRecord != nil {
			t.Fatalf("record %d: %v", i, errRecord)
		}
	}

	if !g.IsBanned("9.9.9.9") {
		t.Fatal("expected identity banned after 5 failures")
	}
	if g.IsSuspicious("9.9.9.9") {
		t.Fatal("expected ban to supersede suspicion")
	}

	dec, _ := g.Check("9.9.9.9", "login")
	if dec.Allowed {
		t.Fatal("expected banned identity denied")
	}
	if !strings.Contains(strings.ToLower(dec.Reason), "banned") {
		t.Fatalf("expected ban reason, got %q", dec.Reason)
	}
	if dec.RetryAfter != time.Hour {
		t.Fatalf("expected retry-after equal to ban duration, got %v", dec.RetryAfter)
	}
	if dec.Details["ban_reason"] != BanReasonFailures {
		t.Fatalf("expected ban details, got %v", dec.Details)
	}
}

func TestGuardBanExpiry(t *testing.T) {
	g, advance := testGuard(t, Options{PerSecond: 100, Burst: 100, BanDuration: time.Hour})

	if errBan := g.BanIdentity("4.4.4.4", "manual", nil); errBan != nil {
		t.Fatalf("ban: %v", errBan)
	}

	advance(30 * time.Minute)
	if dec, _ := g.Check("4.4.4.4", "api"); dec.Allowed {
		t.Fatal("expected denial before expiry")
	}

	advance(31 * time.Minute)
	dec, _ := g.Check("4.4.4.4", "api")
	if !dec.Allowed {
		t.Fatalf("expected expired ban cleared, got %s", dec.Reason)
	}
	if g.IsBanned("4.4.4.4") {
		t.Fatal("expected ban record removed after expiry")
	}
}

func TestGuardUnbanIdempotent(t *testing.T) {
	g, _ := testGuard(t, Options{})

	g.Unban("not-banned")
	if errBan := g.BanIdentity("2.2.2.2", "manual", nil); errBan != nil {
		t.Fatalf("ban: %v", errBan)
	}
	g.Unban("2.2.2.2")
	g.Unban("2.2.2.2")
	if g.IsBanned("2.2.2.2") {
		t.Fatal("expected identity unbanned")
	}
}

func TestGuardSuspiciousFailureRate(t *testing.T) {
	g, _ := testGuard(t, Options{PerSecond: 100, MaxConsecutiveFailures: 100, SuspiciousThreshold: 0.8, Burst: 100})

	_ = g.Record("8.8.8.8", "api", true, nil)
	_ = g.Record("8.8.8.8", "api", true, nil)
	for i := 0; i < 8; i++ {
		_ = g.Record("8.8.8.8", "api", false, nil)
	}

	if !g.IsSuspicious("8.8.8.8") {
		t.Fatal("expected 8/10 failure rate to flag identity")
	}
	dec, _ := g.Check("8.8.8.8", "api")
	if dec.Allowed || dec.Reason != ReasonSuspicious {
		t.Fatalf("expected suspicion denial, got allowed=%v reason=%q", dec.Allowed, dec.Reason)
	}
	patterns, _ := dec.Details["patterns"].([]string)
	if len(patterns) == 0 {
		t.Fatalf("expected triggering patterns in details, got %v", dec.Details)
	}
}

func TestGuardBurstExhaustionThenRecovery(t *testing.T) {
	g, advance := testGuard(t, Options{PerSecond: 100, Burst: 3})

	for i := 0; i < 3; i++ {
		_ = g.Record("7.7.7.7", "api", true, nil)
	}

	dec, _ := g.Check("7.7.7.7", "api")
	if dec.Allowed {
		t.Fatal("expected burst denial")
	}
	if dec.Reason != ReasonBurst {
		t.Fatalf("expected %q, got %q", ReasonBurst, dec.Reason)
	}
	if dec.RetryAfter != time.Second {
		t.Fatalf("expected 1s retry-after, got %v", dec.RetryAfter)
	}

	advance(3 * time.Second)
	if dec, _ := g.Check("7.7.7.7", "api"); !dec.Allowed {
		t.Fatalf("expected burst recovered, got %s", dec.Reason)
	}
}

func TestGuardBurstIsSharedAcrossIdentities(t *testing.T) {
	g, _ := testGuard(t, Options{PerSecond: 100, Burst: 2})

	_ = g.Record("a", "api", true, nil)
	_ = g.Record("b", "api", true, nil)

	// One global budget: a third identity finds the bucket empty.
	dec, _ := g.Check("c", "api")
	if dec.Allowed || dec.Reason != ReasonBurst {
		t.Fatalf("expected shared burst exhausted, got allowed=%v reason=%q", dec.Allowed, dec.Reason)
	}
}

func TestGuardPerHourQuotaNotEnforced(t *testing.T) {
	g, advance := testGuard(t, Options{PerSecond: 100, PerMinute: 1000, PerHour: 5, Burst: 100})

	for i := 0; i < 10; i++ {
		_ = g.Record("6.6.6.6", "api", true, nil)
		advance(2 * time.Second)
	}

	dec, _ := g.Check("6.6.6.6", "api")
	if !dec.Allowed {
		t.Fatalf("expected per-hour quota to not gate admission, got %s", dec.Reason)
	}
}

func TestGuardSweepEvictsStaleIdentities(t *testing.T) {
	g, advance := testGuard(t, Options{PerSecond: 2, Burst: 100})

	for i := 0; i < 2; i++ {
		_ = g.Record("stale", "api", true, nil)
	}
	if dec, _ := g.Check("stale", "api"); dec.Allowed {
		t.Fatal("expected quota denial")
	}
	if !g.IsSuspicious("stale") {
		t.Fatal("expected suspicion flag")
	}

	advance(25 * time.Hour)
	g.Sweep()

	stats := g.Stats()
	if stats.ActiveIdentities != 0 {
		t.Fatalf("expected stale identity evicted, got %d", stats.ActiveIdentities)
	}
	if g.IsSuspicious("stale") {
		t.Fatal("expected suspicion flag evicted with identity")
	}
}

func TestGuardSweepExpiresBans(t *testing.T) {
	g, advance := testGuard(t, Options{BanDuration: time.Minute})

	_ = g.BanIdentity("3.3.3.3", "manual", nil)
	advance(2 * time.Minute)
	g.Sweep()

	if len(g.Bans()) != 0 {
		t.Fatalf("expected expired ban swept, got %d", len(g.Bans()))
	}
}

func TestGuardSweepPrunesIdentityLogs(t *testing.T) {
	g, advance := testGuard(t, Options{PerSecond: 100, PerMinute: 1000, Burst: 100})

	_ = g.Record("keep", "api", true, nil)
	advance(2 * time.Hour)
	_ = g.Record("keep", "api", true, nil)
	g.Sweep()

	g.mu.Lock()
	rec := g.identities["keep"]
	kept := len(rec.requests)
	total := rec.totalRequests
	g.mu.Unlock()

	if kept != 1 {
		t.Fatalf("expected hour-old entries pruned, got %d", kept)
	}
	if total != 2 {
		t.Fatalf("expected monotonic total preserved, got %d", total)
	}
}

func TestGuardEmptyIdentity(t *testing.T) {
	g, _ := testGuard(t, Options{})

	if _, errCheck := g.Check("  ", "api"); !errors.Is(errCheck, ErrEmptyIdentity) {
		t.Fatalf("expected ErrEmptyIdentity, got %v", errCheck)
	}
	if errRecord := g.Record("", "api", true, nil); !errors.Is(errRecord, ErrEmptyIdentity) {
		t.Fatalf("expected ErrEmptyIdentity, got %v", errRecord)
	}
}

func TestGuardInvalidOptions(t *testing.T) {
	if _, errNew := NewGuard(Options{SuspiciousThreshold: 1.5}, nil); errNew == nil {
		t.Fatal("expected threshold validation error")
	}
	if _, errNew := NewGuard(Options{PerSecond: -1}, nil); errNew == nil {
		t.Fatal("expected negative quota error")
	}
}

func TestGuardStats(t *testing.T) {
	g, _ := testGuard(t, Options{PerSecond: 10, Burst: 5})

	_ = g.Record("1.1.1.1", "api", true, nil)
	_ = g.Record("2.2.2.2", "api", false, nil)
	_ = g.BanIdentity("2.2.2.2", "manual", nil)

	stats := g.Stats()
	if stats.ActiveIdentities != 2 {
		t.Fatalf("expected 2 identities, got %d", stats.ActiveIdentities)
	}
	if stats.BannedIdentities != 1 || len(stats.Bans) != 1 {
		t.Fatalf("expected 1 ban, got %d/%d", stats.BannedIdentities, len(stats.Bans))
	}
	if stats.BurstTokens != 3 {
		t.Fatalf("expected 3 burst tokens left, got %d", stats.BurstTokens)
	}
	if stats.Limits.PerSecond != 10 {
		t.Fatalf("expected configured limits echoed, got %+v", stats.Limits)
	}
	if stats.Tracker.TotalRequests != 2 || stats.Tracker.TotalFailures != 1 {
		t.Fatalf("expected tracker totals 2/1, got %d/%d", stats.Tracker.TotalRequests, stats.Tracker.TotalFailures)
	}
}

func TestGuardCloseIdempotent(t *testing.T) {
	g, errNew := NewGuard(Options{}, nil)
	if errNew != nil {
		t.Fatalf("expected guard, got %v", errNew)
	}
	g.Close()
	g.Close()
}
