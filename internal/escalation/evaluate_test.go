package escalation

import (
	"testing"
	"time"

	"github.com/avolkmer/chaser/internal/config"
	"github.com/avolkmer/chaser/internal/models"
)

func TestEvaluate_BeforeDeadline(t *testing.T) {
	rules := DefaultRules()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	deadline := now.Add(1 * time.Hour)

	if got := rules.Evaluate(models.PriorityCritical, deadline, now); got != LevelOnTrack {
		t.Errorf("Evaluate before deadline = %v, want on_track", got)
	}
	// Exactly at the deadline is still on track.
	if got := rules.Evaluate(models.PriorityCritical, now, now); got != LevelOnTrack {
		t.Errorf("Evaluate at deadline = %v, want on_track", got)
	}
}

func TestEvaluate_CriticalPriorityTiers(t *testing.T) {
	rules := DefaultRules()
	deadline := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	cases := []struct {
		overdue time.Duration
		want    Level
	}{
		{20 * time.Minute, LevelOnTrack},
		{45 * time.Minute, LevelWarning},
		{90 * time.Minute, LevelOverdue},
		// Deadline T+1h, now T+4h: three hours overdue is the top tier.
		{3 * time.Hour, LevelCritical},
		{48 * time.Hour, LevelCritical},
	}
	for _, c := range cases {
		got := rules.Evaluate(models.PriorityCritical, deadline, deadline.Add(c.overdue))
		if got != c.want {
			t.Errorf("Evaluate(critical, overdue %v) = %v, want %v", c.overdue, got, c.want)
		}
	}
}

func TestEvaluate_NormalPriorityIsSlower(t *testing.T) {
	rules := DefaultRules()
	deadline := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	now := deadline.Add(5 * time.Hour)

	// Five hours overdue: critical priority is already at the top tier,
	// normal priority has not even warned yet.
	if got := rules.Evaluate(models.PriorityCritical, deadline, now); got != LevelCritical {
		t.Errorf("critical priority = %v, want critical_overdue", got)
	}
	if got := rules.Evaluate(models.PriorityNormal, deadline, now); got != LevelOnTrack {
		t.Errorf("normal priority = %v, want on_track", got)
	}

	// Same overdue duration never maps to a lower level at higher priority.
	for _, overdue := range []time.Duration{time.Hour, 6 * time.Hour, 30 * time.Hour, 100 * time.Hour} {
		at := deadline.Add(overdue)
		crit := rules.Evaluate(models.PriorityCritical, deadline, at)
		urg := rules.Evaluate(models.PriorityUrgent, deadline, at)
		norm := rules.Evaluate(models.PriorityNormal, deadline, at)
		if crit < urg || urg < norm {
			t.Errorf("overdue %v: levels critical=%v urgent=%v normal=%v not monotone", overdue, crit, urg, norm)
		}
	}
}

func TestShouldEscalate(t *testing.T) {
	if !ShouldEscalate(LevelWarning, LevelOnTrack) {
		t.Error("on_track -> warning should escalate")
	}
	if !ShouldEscalate(LevelCritical, LevelWarning) {
		t.Error("warning -> critical_overdue should escalate")
	}
	if ShouldEscalate(LevelWarning, LevelWarning) {
		t.Error("same level should not escalate again")
	}
	if ShouldEscalate(LevelOnTrack, LevelOverdue) {
		t.Error("levels never ratchet downward")
	}
}

func TestFromConfig(t *testing.T) {
	rules := FromConfig(config.EscalationConfig{
		Critical: config.LevelHours{Warning: 0.5, Overdue: 1, Critical: 2},
		Urgent:   config.LevelHours{Warning: 2, Overdue: 12, Critical: 36},
		Normal:   config.LevelHours{Warning: 12, Overdue: 36, Critical: 96},
	})
	if rules.Critical.Warning != 30*time.Minute {
		t.Errorf("Critical.Warning = %v, want 30m", rules.Critical.Warning)
	}
	if rules.Normal.Critical != 96*time.Hour {
		t.Errorf("Normal.Critical = %v, want 96h", rules.Normal.Critical)
	}
}

func TestLevelString(t *testing.T) {
	cases := map[Level]string{
		LevelOnTrack:  "on_track",
		LevelWarning:  "warning",
		LevelOverdue:  "overdue",
		LevelCritical: "critical_overdue",
		Level(9):      "unknown",
	}
	for level, want := range cases {
		if got := level.String(); got != want {
			t.Errorf("Level(%d).String() = %q, want %q", int(level), got, want)
		}
	}
}
