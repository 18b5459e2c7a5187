package scheduler

import (
	"context"
	"fmt"
	"io"
	"log"
	"time"

	"github.com/avolkmer/chaser/internal/approval"
	"github.com/avolkmer/chaser/internal/escalation"
	"github.com/robfig/cron/v3"
)

const defaultPollInterval = 5 * time.Minute

// cronParser uses standard 5-field cron expressions (minute, hour, dom, month, dow).
var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// DaemonOpts configures the background processing loop.
type DaemonOpts struct {
	Cron           string // 5-field cron expression for the cadence
	Rules          escalation.Rules
	ThresholdCents int64
	Out            io.Writer
}

// RunDaemon runs the processing loop until ctx is cancelled. Each cycle runs
// due follow-ups, then the escalation sweep, then the auto-approval sweep,
// and sleeps until the next cron fire. The loop owns no business timers;
// every phase is an idempotent batch that an external trigger may also run
// concurrently at any time.
func RunDaemon(ctx context.Context, p *Processor, opts DaemonOpts) error {
	if p == nil {
		return fmt.Errorf("scheduler: processor is required")
	}
	if err := p.normalize(); err != nil {
		return err
	}
	out := opts.Out
	if out == nil {
		out = io.Discard
	}
	rules := opts.Rules
	if rules == (escalation.Rules{}) {
		rules = escalation.DefaultRules()
	}

	sched, err := cronParser.Parse(opts.Cron)
	if err != nil {
		return fmt.Errorf("scheduler: parse cron %q: %w", opts.Cron, err)
	}

	fmt.Fprintf(out, "Chaser daemon starting (cadence %q)...\n", opts.Cron)

	for {
		select {
		case <-ctx.Done():
			fmt.Fprintf(out, "Chaser daemon stopped.\n")
			return nil
		default:
		}

		// Phase 1: process due follow-ups.
		if result, err := p.ProcessDue(ctx); err != nil {
			log.Printf("daemon: process due: %v", err)
		} else if result.Processed > 0 || result.Skipped > 0 {
			fmt.Fprintf(out, "Cycle: processed=%d sent=%d retried=%d failed=%d skipped=%d\n",
				result.Processed, result.Sent, result.Retried, result.Failed, result.Skipped)
		}

		// Phase 2: escalate unresponsive requests.
		if n, err := escalation.Sweep(ctx, p.DB, rules, p.Notifier, p.Resolver, time.Now(), out); err != nil {
			log.Printf("daemon: escalation sweep: %v", err)
		} else if n > 0 {
			fmt.Fprintf(out, "Cycle: escalated %d request(s)\n", n)
		}

		// Phase 3: auto-approve qualifying decisions.
		if opts.ThresholdCents > 0 {
			if n, err := approval.Sweep(p.DB, opts.ThresholdCents, time.Now(), out); err != nil {
				log.Printf("daemon: approval sweep: %v", err)
			} else if n > 0 {
				fmt.Fprintf(out, "Cycle: auto-approved %d decision(s)\n", n)
			}
		}

		sleepWithContext(ctx, nextFire(sched))
	}
}

// nextFire returns the duration until the cron schedule's next fire time,
// falling back to the default poll interval on a degenerate result.
func nextFire(sched cron.Schedule) time.Duration {
	d := time.Until(sched.Next(time.Now()))
	if d <= 0 {
		return defaultPollInterval
	}
	return d
}

// sleepWithContext sleeps for duration d, returning early if ctx is cancelled.
func sleepWithContext(ctx context.Context, d time.Duration) {
	select {
	case <-ctx.Done():
	case <-time.After(d):
	}
}
