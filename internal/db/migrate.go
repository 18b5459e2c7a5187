package db

import (
	"fmt"
	"time"

	"github.com/avolkmer/chaser/internal/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// AllModels returns the list of all GORM models for migration.
func AllModels() []interface{} {
	return []interface{}{
		&models.Supplier{},
		&models.ServiceRequest{},
		&models.FollowUpSchedule{},
		&models.AccessToken{},
		&models.ApprovalDecision{},
		&models.AuditEntry{},
	}
}

// AutoMigrate creates or updates all tables.
func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(AllModels()...); err != nil {
		return fmt.Errorf("db: auto-migrate: %w", err)
	}
	return nil
}

// SeedDemo inserts a small set of suppliers and requests for local
// development. Idempotent-ish: skips seeding if any supplier exists.
func SeedDemo(db *gorm.DB) error {
	var count int64
	if err := db.Model(&models.Supplier{}).Count(&count).Error; err != nil {
		return fmt.Errorf("db: seed precheck: %w", err)
	}
	if count > 0 {
		return nil
	}

	now := time.Now()
	suppliers := []models.Supplier{
		{ID: uuid.NewString(), Name: "Hartmann Facility Services", Email: "dispatch@hartmann-fs.example", Active: true},
		{ID: uuid.NewString(), Name: "Nordlicht Electrical", Email: "office@nordlicht-elektro.example", Active: true},
	}
	for i := range suppliers {
		if err := db.Create(&suppliers[i]).Error; err != nil {
			return fmt.Errorf("db: seed supplier %q: %w", suppliers[i].Name, err)
		}
	}

	deadline := now.Add(48 * time.Hour)
	requests := []models.ServiceRequest{
		{
			ID:               uuid.NewString(),
			Title:            "Replace lobby entrance door closer",
			SupplierID:       suppliers[0].ID,
			Priority:         models.PriorityNormal,
			Status:           models.RequestOpen,
			ResponseDeadline: &deadline,
		},
		{
			ID:               uuid.NewString(),
			Title:            "Emergency: distribution board tripping",
			SupplierID:       suppliers[1].ID,
			Priority:         models.PriorityCritical,
			Status:           models.RequestOpen,
			ResponseDeadline: &deadline,
		},
	}
	for i := range requests {
		if err := db.Create(&requests[i]).Error; err != nil {
			return fmt.Errorf("db: seed request %q: %w", requests[i].Title, err)
		}
	}
	return nil
}
