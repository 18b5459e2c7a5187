// Package escalation derives severity tiers for overdue requests and fires
// operator-facing alerts on tier transitions.
package escalation

import (
	"time"

	"github.com/avolkmer/chaser/internal/config"
	"github.com/avolkmer/chaser/internal/models"
)

// Level is an escalation severity tier derived from priority and overdue
// duration. Levels only ever ratchet upward while a request is unresolved.
type Level int

const (
	LevelOnTrack Level = iota
	LevelWarning
	LevelOverdue
	LevelCritical
)

// String returns the operator-facing name for a level.
func (l Level) String() string {
	switch l {
	case LevelOnTrack:
		return "on_track"
	case LevelWarning:
		return "warning"
	case LevelOverdue:
		return "overdue"
	case LevelCritical:
		return "critical_overdue"
	}
	return "unknown"
}

// Thresholds are the overdue durations past the deadline at which each
// level engages, for one priority.
type Thresholds struct {
	Warning  time.Duration
	Overdue  time.Duration
	Critical time.Duration
}

// Rules maps each priority to its thresholds. Config validation guarantees
// critical ≤ urgent ≤ normal at every level.
type Rules struct {
	Critical Thresholds
	Urgent   Thresholds
	Normal   Thresholds
}

// DefaultRules returns the stock escalation thresholds.
func DefaultRules() Rules {
	return Rules{
		Critical: Thresholds{Warning: 30 * time.Minute, Overdue: 1 * time.Hour, Critical: 2 * time.Hour},
		Urgent:   Thresholds{Warning: 4 * time.Hour, Overdue: 24 * time.Hour, Critical: 72 * time.Hour},
		Normal:   Thresholds{Warning: 24 * time.Hour, Overdue: 72 * time.Hour, Critical: 168 * time.Hour},
	}
}

// FromConfig builds Rules from the escalation configuration block.
func FromConfig(cfg config.EscalationConfig) Rules {
	return Rules{
		Critical: fromLevelHours(cfg.Critical),
		Urgent:   fromLevelHours(cfg.Urgent),
		Normal:   fromLevelHours(cfg.Normal),
	}
}

func fromLevelHours(lh config.LevelHours) Thresholds {
	return Thresholds{
		Warning:  time.Duration(lh.Warning * float64(time.Hour)),
		Overdue:  time.Duration(lh.Overdue * float64(time.Hour)),
		Critical: time.Duration(lh.Critical * float64(time.Hour)),
	}
}

// Evaluate maps (priority, overdue duration) to an escalation level.
// Before the deadline everything is on track.
func (r Rules) Evaluate(priority models.Priority, deadline, now time.Time) Level {
	if !now.After(deadline) {
		return LevelOnTrack
	}
	overdue := now.Sub(deadline)
	t := r.thresholds(priority)
	switch {
	case overdue > t.Critical:
		return LevelCritical
	case overdue > t.Overdue:
		return LevelOverdue
	case overdue > t.Warning:
		return LevelWarning
	}
	return LevelOnTrack
}

func (r Rules) thresholds(priority models.Priority) Thresholds {
	switch priority {
	case models.PriorityCritical:
		return r.Critical
	case models.PriorityUrgent:
		return r.Urgent
	default:
		return r.Normal
	}
}

// ShouldEscalate reports whether an escalation action must fire: only on a
// level increase, so actions are idempotent and fire at most once per
// transition, never repeatedly at the same level.
func ShouldEscalate(level, previous Level) bool {
	return level > previous
}
