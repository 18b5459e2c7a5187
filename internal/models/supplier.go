package models

import "time"

// Supplier is an external party that responds to, quotes, and executes
// service requests. Suppliers interact episodically through access codes,
// never through full accounts.
type Supplier struct {
	ID        string `gorm:"primaryKey;size:36"`
	Name      string `gorm:"size:128;not null"`
	Email     string `gorm:"size:256"`
	Phone     string `gorm:"size:32"`
	Active    bool   `gorm:"default:true"`
	CreatedAt time.Time
	UpdatedAt time.Time
}
