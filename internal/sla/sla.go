// Package sla computes rolling compliance statistics over a trailing window
// of service requests. Everything here is read-only and safe to call
// concurrently with the processing loop.
package sla

import (
	"fmt"
	"time"

	"github.com/avolkmer/chaser/internal/models"
	"gorm.io/gorm"
)

// Snapshot is an ephemeral aggregate recomputed on demand; it is never
// persisted.
type Snapshot struct {
	WindowDays           int     `json:"window_days"`
	Total                int     `json:"total"`
	WithinSLA            int     `json:"within_sla"`
	BreachedSLA          int     `json:"breached_sla"`
	CriticalOverdue      int     `json:"critical_overdue"`
	AverageResponseHours float64 `json:"average_response_time_hours"`
}

// Compute classifies every request created within the trailing window that
// carries a response deadline. A request is within SLA when it completed
// before its deadline, or is still open with the deadline ahead. The average
// response time covers only requests that reached a terminal state.
func Compute(db *gorm.DB, windowDays int, now time.Time) (*Snapshot, error) {
	if windowDays <= 0 {
		return nil, fmt.Errorf("sla: windowDays must be positive")
	}

	since := now.AddDate(0, 0, -windowDays)
	var requests []models.ServiceRequest
	if err := db.Where("created_at >= ? AND response_deadline IS NOT NULL", since).
		Find(&requests).Error; err != nil {
		return nil, fmt.Errorf("sla: list windowed requests: %w", err)
	}

	snap := Snapshot{WindowDays: windowDays, Total: len(requests)}
	var terminalCount int
	var responseHours float64

	for _, req := range requests {
		deadline := *req.ResponseDeadline

		reference := now
		if req.CompletedAt != nil {
			reference = *req.CompletedAt
		}
		if !reference.After(deadline) {
			snap.WithinSLA++
		} else {
			snap.BreachedSLA++
			if req.Priority == models.PriorityCritical {
				snap.CriticalOverdue++
			}
		}

		if req.Status.Terminal() && req.CompletedAt != nil {
			terminalCount++
			responseHours += req.CompletedAt.Sub(req.CreatedAt).Hours()
		}
	}

	if terminalCount > 0 {
		snap.AverageResponseHours = responseHours / float64(terminalCount)
	}
	return &snap, nil
}
