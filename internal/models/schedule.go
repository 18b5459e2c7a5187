package models

import "time"

// FollowUpSchedule is a persisted obligation to send one reminder
// notification at or after a specific time. Schedules are never deleted;
// they stay behind as part of the audit trail once sent, cancelled, or
// exhausted.
type FollowUpSchedule struct {
	ID            string         `gorm:"primaryKey;size:36"`
	RequestID     string         `gorm:"size:36;not null;index"`
	SupplierID    string         `gorm:"size:36;not null;index"`
	Kind          FollowUpKind   `gorm:"size:32;not null"`
	Priority      Priority       `gorm:"size:16;default:normal"`
	Status        ScheduleStatus `gorm:"size:16;default:pending;index"`
	ScheduledFor  time.Time      `gorm:"index"`
	SentAt        *time.Time
	AttemptCount  int `gorm:"default:0"`
	MaxAttempts   int `gorm:"default:3"`
	NextAttemptAt *time.Time
	LastError     string `gorm:"type:text"`
	Metadata      string `gorm:"type:json"`
	CreatedAt     time.Time
	UpdatedAt     time.Time

	Request  *ServiceRequest `gorm:"foreignKey:RequestID"`
	Supplier *Supplier       `gorm:"foreignKey:SupplierID"`
}
