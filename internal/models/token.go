package models

import "time"

// AccessToken is a short-lived random code granting one supplier scoped
// access, optionally narrowed to a single request. Validation inside the
// grace window after nominal expiry extends the token instead of rejecting
// it, so a stale email link still works after a legitimate delay.
type AccessToken struct {
	Code       string  `gorm:"primaryKey;size:16"`
	SupplierID string  `gorm:"size:36;not null;index"`
	RequestID  *string `gorm:"size:36"`
	IssuedAt   time.Time
	ExpiresAt  time.Time `gorm:"index"`
	Extensions int       `gorm:"default:0"`
}
