package escalation

import (
	"context"
	"fmt"
	"io"
	"log"
	"strconv"
	"time"

	"github.com/avolkmer/chaser/internal/models"
	"github.com/avolkmer/chaser/internal/notify"
	"github.com/avolkmer/chaser/internal/store"
	"gorm.io/gorm"
)

// Sweep evaluates escalation for every unresolved request with a response
// deadline and fires operator alerts on level transitions. Returns the
// number of requests escalated this pass. Individual failures are logged
// and never abort the sweep.
func Sweep(ctx context.Context, db *gorm.DB, rules Rules, notifier notify.Notifier, resolver notify.RecipientResolver, now time.Time, out io.Writer) (int, error) {
	if db == nil {
		return 0, fmt.Errorf("escalation: db is required")
	}
	if out == nil {
		out = io.Discard
	}

	var requests []models.ServiceRequest
	if err := db.Where("status NOT IN ? AND response_deadline IS NOT NULL",
		[]models.RequestStatus{models.RequestCompleted, models.RequestCancelled}).
		Find(&requests).Error; err != nil {
		return 0, fmt.Errorf("escalation: list unresolved requests: %w", err)
	}

	escalated := 0
	for _, req := range requests {
		level := rules.Evaluate(req.Priority, *req.ResponseDeadline, now)
		if !ShouldEscalate(level, Level(req.EscalationLevel)) {
			continue
		}
		if err := escalate(ctx, db, &req, level, notifier, resolver, now, out); err != nil {
			log.Printf("escalation: request %s: %v", req.ID, err)
			continue
		}
		escalated++
	}
	return escalated, nil
}

// escalate applies the side effects of one level transition: bump the stored
// level, stamp escalated_at on the first escalation only, raise the request
// priority one tier, write an audit entry, and alert the operator.
func escalate(ctx context.Context, db *gorm.DB, req *models.ServiceRequest, level Level, notifier notify.Notifier, resolver notify.RecipientResolver, now time.Time, out io.Writer) error {
	overdue := now.Sub(*req.ResponseDeadline)

	updates := map[string]interface{}{
		"escalation_level": int(level),
	}
	if req.EscalatedAt == nil {
		updates["escalated_at"] = now
	}
	raised := req.Priority.Raise()
	if raised != req.Priority {
		updates["priority"] = raised
	}

	// Guard on the stored level so two overlapping sweeps cannot both act
	// on the same transition.
	result := db.Model(&models.ServiceRequest{}).
		Where("id = ? AND escalation_level < ?", req.ID, int(level)).
		Updates(updates)
	if result.Error != nil {
		return fmt.Errorf("update request: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return nil
	}

	store.Audit(db, store.AuditOpts{
		Action:     "request_escalated",
		RequestID:  req.ID,
		SupplierID: req.SupplierID,
		Detail:     fmt.Sprintf("level %d (%s), %s overdue", int(level), level, overdue.Round(time.Minute)),
		Metadata: map[string]string{
			"level":          strconv.Itoa(int(level)),
			"previous_level": strconv.Itoa(req.EscalationLevel),
			"overdue":        overdue.String(),
		},
	})

	fmt.Fprintf(out, "Escalated request %s (%s) to level %d (%s)\n", req.ID, req.Title, int(level), level)

	if notifier == nil || resolver == nil {
		return nil
	}
	msg := notify.Message{
		Recipient: resolver.Operator(),
		Subject:   fmt.Sprintf("Escalation %s: %s", level, req.Title),
		Body: fmt.Sprintf("Request %s is %s past its response deadline (priority %s, supplier %s). Level %d.",
			req.ID, overdue.Round(time.Minute), req.Priority, req.SupplierID, int(level)),
	}
	if err := notifier.Send(ctx, msg); err != nil {
		// The level transition is already persisted; a lost alert is logged
		// but does not roll it back.
		log.Printf("escalation: operator alert for %s: %v", req.ID, err)
	}
	return nil
}

// Clear manually resets a request's escalation state to level 0.
func Clear(db *gorm.DB, requestID, actor string) error {
	if requestID == "" {
		return fmt.Errorf("escalation: requestID is required")
	}
	result := db.Model(&models.ServiceRequest{}).
		Where("id = ?", requestID).
		Updates(map[string]interface{}{
			"escalation_level": 0,
			"escalated_at":     nil,
		})
	if result.Error != nil {
		return fmt.Errorf("escalation: clear request %s: %w", requestID, result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("escalation: request %s not found", requestID)
	}
	store.Audit(db, store.AuditOpts{
		Action:    "escalation_cleared",
		RequestID: requestID,
		Actor:     actor,
		Detail:    "escalation state manually cleared",
	})
	return nil
}
