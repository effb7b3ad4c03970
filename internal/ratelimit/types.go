package ratelimit

import (
	"errors"
	"time"
)

// Denial reasons surfaced through Decision.Reason.
const (
	ReasonBanned     = "Identity is banned"
	ReasonPerSecond  = "Too many requests per second"
	ReasonPerMinute  = "Too many requests per minute"
	ReasonBurst      = "Burst limit exceeded"
	ReasonSuspicious = "Suspicious activity detected"
)

// BanReasonFailures is recorded on automatically issued bans.
const BanReasonFailures = "too many consecutive failures"

// ErrEmptyIdentity indicates a check or record call with no identity.
var ErrEmptyIdentity = errors.New("ratelimit: empty identity")

// Decision reports the outcome of an admission check. Policy denials are
// values, never errors.
type Decision struct {
	Allowed    bool           `json:"allowed"`
	Reason     string         `json:"reason,omitempty"`
	RetryAfter time.Duration  `json:"retry_after,omitempty"`
	Details    map[string]any `json:"details,omitempty"`
}

// BanRecord describes an active ban for one identity.
type BanRecord struct {
	Identity  string         `json:"identity"`
	Reason    string         `json:"reason"`
	BannedAt  time.Time      `json:"banned_at"`
	ExpiresAt time.Time      `json:"expires_at"`
	Details   map[string]any `json:"details,omitempty"`
}

// Limits echoes the configured quotas in stats output.
type Limits struct {
	PerSecond              int           `json:"per_second"`
	PerMinute              int           `json:"per_minute"`
	PerHour                int           `json:"per_hour"`
	Burst                  int           `json:"burst"`
	MaxConsecutiveFailures int           `json:"max_consecutive_failures"`
	FailuresPerMinute      int           `json:"failures_per_minute"`
	BanDuration            time.Duration `json:"ban_duration"`
	SuspiciousThreshold    float64       `json:"suspicious_threshold"`
}

// Stats is a read-only snapshot of the guard state.
type Stats struct {
	ActiveIdentities     int          `json:"active_identities"`
	BannedIdentities     int          `json:"banned_identities"`
	SuspiciousIdentities int          `json:"suspicious_identities"`
	BurstTokens          int          `json:"burst_tokens"`
	Limits               Limits       `json:"limits"`
	Tracker              TrackerStats `json:"tracker"`
	Bans                 []BanRecord  `json:"bans,omitempty"`
}

// CategoryStats breaks request counts down per trailing window.
type CategoryStats struct {
	LastSecond int `json:"last_second"`
	LastMinute int `json:"last_minute"`
	LastHour   int `json:"last_hour"`
}

// TrackerStats is a read-only snapshot of the sliding-window tracker.
type TrackerStats struct {
	TotalRequests uint64                   `json:"total_requests"`
	TotalFailures uint64                   `json:"total_failures"`
	SuccessRate   float64                  `json:"success_rate"`
	Categories    map[string]CategoryStats `json:"categories,omitempty"`
}
