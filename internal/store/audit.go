package store

import (
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/avolkmer/chaser/internal/models"
	"gorm.io/gorm"
)

// AuditOpts holds fields for one audit entry. Action is required; reference
// fields are filled in where they apply.
type AuditOpts struct {
	Action     string
	RequestID  string
	ScheduleID string
	SupplierID string
	Actor      string
	Detail     string
	Metadata   map[string]string
}

// AppendAudit writes one entry to the append-only audit log.
func AppendAudit(db *gorm.DB, opts AuditOpts) error {
	if opts.Action == "" {
		return fmt.Errorf("store: audit action is required")
	}
	actor := opts.Actor
	if actor == "" {
		actor = "system"
	}
	metadata := "{}"
	if len(opts.Metadata) > 0 {
		data, err := json.Marshal(opts.Metadata)
		if err != nil {
			return fmt.Errorf("store: marshal audit metadata: %w", err)
		}
		metadata = string(data)
	}

	entry := models.AuditEntry{
		Action:     opts.Action,
		RequestID:  opts.RequestID,
		ScheduleID: opts.ScheduleID,
		SupplierID: opts.SupplierID,
		Actor:      actor,
		Detail:     opts.Detail,
		Metadata:   metadata,
		CreatedAt:  time.Now(),
	}
	if err := db.Create(&entry).Error; err != nil {
		return fmt.Errorf("store: append audit: %w", err)
	}
	return nil
}

// Audit writes an audit entry best-effort. Audit logging never blocks the
// decision it describes; failures are logged and swallowed.
func Audit(db *gorm.DB, opts AuditOpts) {
	if err := AppendAudit(db, opts); err != nil {
		log.Printf("audit: %v", err)
	}
}

// AuditForRequest returns the audit trail for one request, oldest first.
func AuditForRequest(db *gorm.DB, requestID string) ([]models.AuditEntry, error) {
	if requestID == "" {
		return nil, fmt.Errorf("store: requestID is required")
	}
	var entries []models.AuditEntry
	if err := db.Where("request_id = ?", requestID).
		Order("created_at ASC, id ASC").Find(&entries).Error; err != nil {
		return nil, fmt.Errorf("store: audit for request %s: %w", requestID, err)
	}
	return entries, nil
}
