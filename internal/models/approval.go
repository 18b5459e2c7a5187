package models

import "time"

// ApprovalDecision is a pending monetary decision on a supplier quotation.
// Amounts are stored in cents to keep comparisons exact.
type ApprovalDecision struct {
	ID          string         `gorm:"primaryKey;size:36"`
	RequestID   string         `gorm:"size:36;index"`
	AmountCents int64          `gorm:"not null"`
	Priority    Priority       `gorm:"size:16;default:normal"`
	Status      DecisionStatus `gorm:"size:16;default:pending;index"`
	ApprovedBy  string         `gorm:"size:64"`
	ApprovedAt  *time.Time
	Reason      string `gorm:"size:128"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
