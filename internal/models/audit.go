package models

import "time"

// AuditEntry records one automated or supplier-triggered action. The log is
// append-only; nothing in the codebase updates or deletes rows.
type AuditEntry struct {
	ID         uint   `gorm:"primaryKey;autoIncrement"`
	Action     string `gorm:"size:64;not null;index"`
	RequestID  string `gorm:"size:36;index"`
	ScheduleID string `gorm:"size:36;index"`
	SupplierID string `gorm:"size:36"`
	Actor      string `gorm:"size:64"`
	Detail     string `gorm:"type:text"`
	Metadata   string `gorm:"type:json"`
	CreatedAt  time.Time
}
