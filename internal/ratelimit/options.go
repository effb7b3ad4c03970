package ratelimit

import (
	"fmt"
	"time"
)

// Default option values applied for zero-value fields.
const (
	DefaultPerSecond              = 10
	DefaultPerMinute              = 100
	DefaultPerHour                = 1000
	DefaultBurst                  = 20
	DefaultMaxConsecutiveFailures = 5
	DefaultFailuresPerMinute      = 10
	DefaultBanDuration            = time.Hour
	DefaultSuspiciousThreshold    = 0.8
	DefaultWindowSecond           = time.Second
	DefaultWindowMinute           = time.Minute
	DefaultWindowHour             = time.Hour
	DefaultSweepInterval          = time.Minute
	DefaultRetention              = 24 * time.Hour
	DefaultRefillInterval         = time.Second
)

// Options configures a Guard. The zero value of any field selects its
// default; negative values are rejected.
type Options struct {
	PerSecond              int
	PerMinute              int
	PerHour                int
	Burst                  int
	MaxConsecutiveFailures int
	FailuresPerMinute      int
	BanDuration            time.Duration
	SuspiciousThreshold    float64
	WindowSecond           time.Duration
	WindowMinute           time.Duration
	WindowHour             time.Duration
	SweepInterval          time.Duration
	Retention              time.Duration
	RefillInterval         time.Duration

	// BurstDisabled distinguishes "no burst gate tokens at all" from the
	// zero value, which means DefaultBurst.
	BurstDisabled bool
}

// withDefaults returns a copy of o with zero-value fields replaced by
// defaults.
func (o Options) withDefaults() Options {
	if o.PerSecond == 0 {
		o.PerSecond = DefaultPerSecond
	}
	if o.PerMinute == 0 {
		o.PerMinute = DefaultPerMinute
	}
	if o.PerHour == 0 {
		o.PerHour = DefaultPerHour
	}
	if o.Burst == 0 && !o.BurstDisabled {
		o.Burst = DefaultBurst
	}
	if o.BurstDisabled {
		o.Burst = 0
	}
	if o.MaxConsecutiveFailures == 0 {
		o.MaxConsecutiveFailures = DefaultMaxConsecutiveFailures
	}
	if o.FailuresPerMinute == 0 {
		o.FailuresPerMinute = DefaultFailuresPerMinute
	}
	if o.BanDuration == 0 {
		o.BanDuration = DefaultBanDuration
	}
	if o.SuspiciousThreshold == 0 {
		o.SuspiciousThreshold = DefaultSuspiciousThreshold
	}
	if o.WindowSecond == 0 {
		o.WindowSecond = DefaultWindowSecond
	}
	if o.WindowMinute == 0 {
		o.WindowMinute = DefaultWindowMinute
	}
	if o.WindowHour == 0 {
		o.WindowHour = DefaultWindowHour
	}
	if o.SweepInterval == 0 {
		o.SweepInterval = DefaultSweepInterval
	}
	if o.Retention == 0 {
		o.Retention = DefaultRetention
	}
	if o.RefillInterval == 0 {
		o.RefillInterval = DefaultRefillInterval
	}
	return o
}

// validate rejects malformed options after defaults were applied.
func (o Options) validate() error {
	if o.PerSecond < 0 || o.PerMinute < 0 || o.PerHour < 0 {
		return fmt.Errorf("ratelimit: negative quota (per-second=%d per-minute=%d per-hour=%d)", o.PerSecond, o.PerMinute, o.PerHour)
	}
	if o.Burst < 0 {
		return fmt.Errorf("ratelimit: negative burst: %d", o.Burst)
	}
	if o.MaxConsecutiveFailures < 0 || o.FailuresPerMinute < 0 {
		return fmt.Errorf("ratelimit: negative failure threshold")
	}
	if o.SuspiciousThreshold < 0 || o.SuspiciousThreshold > 1 {
		return fmt.Errorf("ratelimit: suspicious threshold out of range [0,1]: %v", o.SuspiciousThreshold)
	}
	if o.BanDuration < 0 || o.SweepInterval < 0 || o.Retention < 0 || o.RefillInterval < 0 {
		return fmt.Errorf("ratelimit: negative duration option")
	}
	if o.WindowSecond <= 0 || o.WindowMinute <= 0 || o.WindowHour <= 0 {
		return fmt.Errorf("ratelimit: non-positive window option")
	}
	return nil
}

// limits converts the options into the stats Limits view.
func (o Options) limits() Limits {
	return Limits{
		PerSecond:              o.PerSecond,
		PerMinute:              o.PerMinute,
		PerHour:                o.PerHour,
		Burst:                  o.Burst,
		MaxConsecutiveFailures: o.MaxConsecutiveFailures,
		FailuresPerMinute:      o.FailuresPerMinute,
		BanDuration:            o.BanDuration,
		SuspiciousThreshold:    o.SuspiciousThreshold,
	}
}
