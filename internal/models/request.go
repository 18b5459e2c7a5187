package models

import "time"

// ServiceRequest is a unit of work an operator has asked a supplier to
// respond to, quote, and execute. The response deadline drives both SLA
// classification and escalation.
type ServiceRequest struct {
	ID               string        `gorm:"primaryKey;size:36"`
	Title            string        `gorm:"size:256;not null"`
	Description      string        `gorm:"type:text"`
	SupplierID       string        `gorm:"size:36;index"`
	Priority         Priority      `gorm:"size:16;default:normal;index"`
	Status           RequestStatus `gorm:"size:16;default:open;index"`
	ResponseDeadline *time.Time
	EscalationLevel  int `gorm:"default:0"`
	EscalatedAt      *time.Time
	CompletedAt      *time.Time
	CreatedAt        time.Time
	UpdatedAt        time.Time

	Supplier *Supplier `gorm:"foreignKey:SupplierID"`
}
