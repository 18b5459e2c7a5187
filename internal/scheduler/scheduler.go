// Package scheduler is the processing loop that turns due follow-up
// schedules into delivered notifications. The claim step, a compare-and-set
// on schedule status at the store level, is the sole synchronization point,
// so overlapping runs (a cron tick racing a manual trigger) never
// double-send a reminder.
package scheduler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"time"

	"github.com/avolkmer/chaser/internal/backoff"
	"github.com/avolkmer/chaser/internal/models"
	"github.com/avolkmer/chaser/internal/notify"
	"github.com/avolkmer/chaser/internal/store"
	"gorm.io/gorm"
)

const (
	defaultBatchSize       = 100
	defaultDispatchTimeout = 15 * time.Second
)

// BatchResult summarizes one processing cycle. A single item's failure never
// aborts the batch; it lands in these counters instead.
type BatchResult struct {
	Processed int `json:"processed"`
	Sent      int `json:"sent"`
	Retried   int `json:"retried"`
	Failed    int `json:"failed"`
	Skipped   int `json:"skipped"`
}

// Processor executes the follow-up pipeline over claimed schedules.
type Processor struct {
	DB       *gorm.DB
	Notifier notify.Notifier
	Renderer notify.Renderer
	Resolver notify.RecipientResolver
	Backoff  backoff.Policy

	BatchSize       int
	DispatchTimeout time.Duration
	// RetryPermanent keeps retrying deliveries classified as permanent.
	// Default false: permanent failures are terminal immediately.
	RetryPermanent bool
	Out            io.Writer
}

func (p *Processor) normalize() error {
	if p.DB == nil {
		return fmt.Errorf("scheduler: db is required")
	}
	if p.Notifier == nil {
		return fmt.Errorf("scheduler: notifier is required")
	}
	if p.Renderer == nil {
		p.Renderer = notify.TextRenderer{}
	}
	if p.Resolver == nil {
		p.Resolver = notify.StaticResolver{}
	}
	if p.Backoff == (backoff.Policy{}) {
		p.Backoff = backoff.DefaultPolicy()
	}
	if p.BatchSize <= 0 {
		p.BatchSize = defaultBatchSize
	}
	if p.DispatchTimeout <= 0 {
		p.DispatchTimeout = defaultDispatchTimeout
	}
	if p.Out == nil {
		p.Out = io.Discard
	}
	return nil
}

// ProcessDue claims and processes schedules whose scheduled_for has passed.
func (p *Processor) ProcessDue(ctx context.Context) (*BatchResult, error) {
	if err := p.normalize(); err != nil {
		return nil, err
	}
	items, err := store.ListDue(p.DB, time.Now(), p.BatchSize)
	if err != nil {
		return nil, fmt.Errorf("scheduler: %w", err)
	}
	return p.process(ctx, items), nil
}

// ProcessAll claims and processes every pending schedule regardless of
// scheduled_for, the manual override / backfill path. It shares the claim
// protocol with ProcessDue, so calling both concurrently is safe.
func (p *Processor) ProcessAll(ctx context.Context) (*BatchResult, error) {
	if err := p.normalize(); err != nil {
		return nil, err
	}
	items, err := store.ListPending(p.DB, p.BatchSize)
	if err != nil {
		return nil, fmt.Errorf("scheduler: %w", err)
	}
	return p.process(ctx, items), nil
}

func (p *Processor) process(ctx context.Context, items []models.FollowUpSchedule) *BatchResult {
	result := &BatchResult{}
	for i := range items {
		outcome := p.processItem(ctx, &items[i])
		result.Processed++
		switch outcome {
		case outcomeSent:
			result.Sent++
		case outcomeRetried:
			result.Retried++
		case outcomeFailed:
			result.Failed++
		case outcomeSkipped:
			result.Processed--
			result.Skipped++
		}
	}
	return result
}

type itemOutcome int

const (
	outcomeSkipped itemOutcome = iota
	outcomeSent
	outcomeRetried
	outcomeFailed
)

// processItem runs the pipeline for one schedule: claim, resolve references,
// render, dispatch, persist the outcome.
func (p *Processor) processItem(ctx context.Context, sched *models.FollowUpSchedule) itemOutcome {
	now := time.Now()

	claimed, err := store.Claim(p.DB, sched.ID, now)
	if err != nil {
		log.Printf("scheduler: claim %s: %v", sched.ID, err)
		return outcomeSkipped
	}
	if !claimed {
		// Lost the compare-and-set race: another run owns this item now.
		return outcomeSkipped
	}

	var req models.ServiceRequest
	if err := p.DB.First(&req, "id = ?", sched.RequestID).Error; err != nil {
		return p.failIntegrity(sched, fmt.Sprintf("request %s not found", sched.RequestID))
	}
	var sup models.Supplier
	if err := p.DB.First(&sup, "id = ?", sched.SupplierID).Error; err != nil {
		return p.failIntegrity(sched, fmt.Sprintf("supplier %s not found", sched.SupplierID))
	}

	subject, body, err := p.Renderer.Render(notify.RenderContext{
		Kind:     sched.Kind,
		Request:  req,
		Supplier: sup,
		Attempt:  sched.AttemptCount,
		Metadata: decodeMetadata(sched.Metadata),
	})
	if err != nil {
		return p.failIntegrity(sched, fmt.Sprintf("render: %v", err))
	}

	dispatchCtx, cancel := context.WithTimeout(ctx, p.DispatchTimeout)
	err = p.Notifier.Send(dispatchCtx, notify.Message{
		Recipient: p.Resolver.Supplier(sup),
		Subject:   subject,
		Body:      body,
	})
	cancel()

	if err == nil {
		sentAt := time.Now()
		if err := store.MarkSent(p.DB, sched.ID, sentAt); err != nil {
			log.Printf("scheduler: %v", err)
			return outcomeFailed
		}
		store.Audit(p.DB, store.AuditOpts{
			Action:     "follow_up_sent",
			RequestID:  sched.RequestID,
			ScheduleID: sched.ID,
			SupplierID: sched.SupplierID,
			Detail:     fmt.Sprintf("%s sent via %s on attempt %d", sched.Kind, p.Notifier.Name(), sched.AttemptCount+1),
		})
		fmt.Fprintf(p.Out, "Sent %s for request %s (schedule %s)\n", sched.Kind, sched.RequestID, sched.ID)
		return outcomeSent
	}

	return p.handleDispatchFailure(sched, err, now)
}

// handleDispatchFailure routes a failed dispatch to fail-fast, terminal
// failure, or a time-scheduled retry.
func (p *Processor) handleDispatchFailure(sched *models.FollowUpSchedule, dispatchErr error, now time.Time) itemOutcome {
	attempts := sched.AttemptCount + 1
	reason := dispatchErr.Error()

	if notify.IsPermanent(dispatchErr) && !p.RetryPermanent {
		if err := store.MarkFailed(p.DB, sched.ID, attempts, reason); err != nil {
			log.Printf("scheduler: %v", err)
		}
		p.auditFailure(sched, "permanent: "+reason)
		fmt.Fprintf(p.Out, "Failed %s for request %s: %s\n", sched.Kind, sched.RequestID, reason)
		return outcomeFailed
	}

	if errors.Is(dispatchErr, context.DeadlineExceeded) {
		reason = fmt.Sprintf("dispatch timed out after %s", p.DispatchTimeout)
	}

	nextAt, terminal := p.Backoff.Next(sched.Priority, sched.AttemptCount, sched.MaxAttempts, now)
	if terminal {
		if err := store.MarkFailed(p.DB, sched.ID, attempts, reason); err != nil {
			log.Printf("scheduler: %v", err)
		}
		p.auditFailure(sched, fmt.Sprintf("retries exhausted (%d/%d): %s", attempts, sched.MaxAttempts, reason))
		fmt.Fprintf(p.Out, "Exhausted %s for request %s after %d attempts\n", sched.Kind, sched.RequestID, attempts)
		return outcomeFailed
	}

	if err := store.ScheduleRetry(p.DB, sched.ID, attempts, nextAt, reason); err != nil {
		log.Printf("scheduler: %v", err)
		return outcomeFailed
	}
	store.Audit(p.DB, store.AuditOpts{
		Action:     "follow_up_retry_scheduled",
		RequestID:  sched.RequestID,
		ScheduleID: sched.ID,
		SupplierID: sched.SupplierID,
		Detail:     fmt.Sprintf("attempt %d/%d failed, retry at %s: %s", attempts, sched.MaxAttempts, nextAt.Format(time.RFC3339), reason),
	})
	return outcomeRetried
}

// failIntegrity marks a claimed schedule as failed due to a data integrity
// violation. Integrity failures are fatal for the item and consume no retry.
func (p *Processor) failIntegrity(sched *models.FollowUpSchedule, reason string) itemOutcome {
	if err := store.MarkFailed(p.DB, sched.ID, sched.AttemptCount, reason); err != nil {
		log.Printf("scheduler: %v", err)
	}
	p.auditFailure(sched, "integrity: "+reason)
	log.Printf("scheduler: schedule %s: %s", sched.ID, reason)
	return outcomeFailed
}

func (p *Processor) auditFailure(sched *models.FollowUpSchedule, detail string) {
	store.Audit(p.DB, store.AuditOpts{
		Action:     "follow_up_failed",
		RequestID:  sched.RequestID,
		ScheduleID: sched.ID,
		SupplierID: sched.SupplierID,
		Detail:     detail,
	})
}

// decodeMetadata parses the schedule's metadata bag, tolerating malformed
// JSON. The bag is audit context, never load-bearing.
func decodeMetadata(raw string) map[string]string {
	if raw == "" || raw == "{}" {
		return nil
	}
	m := make(map[string]string)
	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		return nil
	}
	return m
}
