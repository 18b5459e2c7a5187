// Package backoff computes retry timing for failed follow-up dispatches.
// Everything here is pure: next-attempt times are deterministic given the
// inputs, which keeps retry behavior testable without a clock.
package backoff

import (
	"time"

	"github.com/avolkmer/chaser/internal/config"
	"github.com/avolkmer/chaser/internal/models"
)

// Policy holds per-priority base intervals. Higher priorities retry sooner;
// the delay grows linearly with the attempt counter so repeated failures
// never produce a reminder storm.
type Policy struct {
	CriticalBase time.Duration
	UrgentBase   time.Duration
	NormalBase   time.Duration
	Cap          time.Duration
}

// DefaultPolicy returns the stock backoff intervals.
func DefaultPolicy() Policy {
	return Policy{
		CriticalBase: 30 * time.Minute,
		UrgentBase:   2 * time.Hour,
		NormalBase:   6 * time.Hour,
		Cap:          24 * time.Hour,
	}
}

// FromConfig builds a Policy from the retry configuration block.
func FromConfig(cfg config.RetryConfig) Policy {
	return Policy{
		CriticalBase: time.Duration(cfg.CriticalBaseMinutes) * time.Minute,
		UrgentBase:   time.Duration(cfg.UrgentBaseMinutes) * time.Minute,
		NormalBase:   time.Duration(cfg.NormalBaseMinutes) * time.Minute,
		Cap:          time.Duration(cfg.CapHours) * time.Hour,
	}
}

// Next computes the next attempt time after a failed dispatch. attemptCount
// is the number of attempts already consumed before this failure. When the
// failing attempt exhausts maxAttempts the second return is true and the
// next-attempt time is the zero value: the schedule is terminally failed.
func (p Policy) Next(priority models.Priority, attemptCount, maxAttempts int, now time.Time) (time.Time, bool) {
	if attemptCount+1 >= maxAttempts {
		return time.Time{}, true
	}
	return now.Add(p.Delay(priority, attemptCount)), false
}

// Delay returns the wait before retry number attemptCount+1. Monotonically
// non-decreasing in attemptCount.
func (p Policy) Delay(priority models.Priority, attemptCount int) time.Duration {
	if attemptCount < 0 {
		attemptCount = 0
	}
	base := p.base(priority)
	d := base * time.Duration(attemptCount+1)
	if p.Cap > 0 && d > p.Cap {
		d = p.Cap
	}
	return d
}

func (p Policy) base(priority models.Priority) time.Duration {
	switch priority {
	case models.PriorityCritical:
		return p.CriticalBase
	case models.PriorityUrgent:
		return p.UrgentBase
	default:
		return p.NormalBase
	}
}
