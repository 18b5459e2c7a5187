// Package approval implements the fixed auto-approval policy for pending
// monetary decisions. The policy is deliberately small: amount strictly
// under the threshold and priority below critical. Critical decisions always
// wait for a human, whatever the amount.
package approval

import (
	"fmt"
	"io"
	"log"
	"strconv"
	"time"

	"github.com/avolkmer/chaser/internal/models"
	"github.com/avolkmer/chaser/internal/store"
	"gorm.io/gorm"
)

// SystemActor is stamped as the approver on automated approvals.
const SystemActor = "system"

// Evaluate reports whether a pending monetary decision qualifies for
// automatic approval.
func Evaluate(amountCents, thresholdCents int64, priority models.Priority) bool {
	return amountCents < thresholdCents && priority != models.PriorityCritical
}

// Apply approves a single decision under the policy. The transition is a
// conditional write on status=pending so an automated sweep never overrides
// a human who decided in the meantime. This is the only automated state
// change that bypasses human review, so the audit entry records the exact
// numeric comparison that triggered it.
func Apply(db *gorm.DB, decision *models.ApprovalDecision, thresholdCents int64, now time.Time) error {
	if decision == nil {
		return fmt.Errorf("approval: decision is required")
	}
	if !Evaluate(decision.AmountCents, thresholdCents, decision.Priority) {
		return fmt.Errorf("approval: decision %s does not qualify", decision.ID)
	}

	result := db.Model(&models.ApprovalDecision{}).
		Where("id = ? AND status = ?", decision.ID, models.DecisionPending).
		Updates(map[string]interface{}{
			"status":      models.DecisionApproved,
			"approved_at": now,
			"approved_by": SystemActor,
			"reason":      "under_threshold",
		})
	if result.Error != nil {
		return fmt.Errorf("approval: approve decision %s: %w", decision.ID, result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("approval: decision %s no longer pending", decision.ID)
	}

	store.Audit(db, store.AuditOpts{
		Action:    "decision_auto_approved",
		RequestID: decision.RequestID,
		Actor:     SystemActor,
		Detail: fmt.Sprintf("auto-approved: amount_cents=%d < threshold_cents=%d, priority=%s",
			decision.AmountCents, thresholdCents, decision.Priority),
		Metadata: map[string]string{
			"decision_id":     decision.ID,
			"amount_cents":    strconv.FormatInt(decision.AmountCents, 10),
			"threshold_cents": strconv.FormatInt(thresholdCents, 10),
			"reason":          "under_threshold",
		},
	})
	return nil
}

// Sweep scans pending decisions and applies auto-approval to every one that
// qualifies. Returns the number approved. Individual failures are logged
// and never abort the sweep.
func Sweep(db *gorm.DB, thresholdCents int64, now time.Time, out io.Writer) (int, error) {
	if db == nil {
		return 0, fmt.Errorf("approval: db is required")
	}
	if out == nil {
		out = io.Discard
	}

	var pending []models.ApprovalDecision
	if err := db.Where("status = ?", models.DecisionPending).
		Find(&pending).Error; err != nil {
		return 0, fmt.Errorf("approval: list pending decisions: %w", err)
	}

	approved := 0
	for i := range pending {
		d := &pending[i]
		if !Evaluate(d.AmountCents, thresholdCents, d.Priority) {
			continue
		}
		if err := Apply(db, d, thresholdCents, now); err != nil {
			log.Printf("approval: decision %s: %v", d.ID, err)
			continue
		}
		fmt.Fprintf(out, "Auto-approved decision %s (%d cents, %s)\n", d.ID, d.AmountCents, d.Priority)
		approved++
	}
	return approved, nil
}
