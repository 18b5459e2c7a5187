// Package store is the durable-store adapter for follow-up schedules and the
// append-only audit log. All mutating schedule operations are conditional
// writes keyed on the current status, so concurrent processing runs never
// step on each other.
package store

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/avolkmer/chaser/internal/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// DefaultMaxAttempts is used when a schedule is created without an explicit
// retry ceiling.
const DefaultMaxAttempts = 3

// CreateOpts holds parameters for creating a follow-up schedule.
type CreateOpts struct {
	RequestID    string
	SupplierID   string
	Kind         models.FollowUpKind
	Priority     models.Priority
	ScheduledFor time.Time
	MaxAttempts  int
	Metadata     map[string]string
}

// Create persists a new pending follow-up schedule. Required references are
// validated through the schema, not the metadata bag.
func Create(db *gorm.DB, opts CreateOpts) (*models.FollowUpSchedule, error) {
	if opts.RequestID == "" {
		return nil, fmt.Errorf("store: requestID is required")
	}
	if opts.SupplierID == "" {
		return nil, fmt.Errorf("store: supplierID is required")
	}
	if !opts.Kind.Valid() {
		return nil, fmt.Errorf("store: unknown follow-up kind %q", opts.Kind)
	}
	if opts.ScheduledFor.IsZero() {
		return nil, fmt.Errorf("store: scheduledFor is required")
	}

	priority := opts.Priority
	if priority == "" {
		priority = models.PriorityNormal
	}
	if !priority.Valid() {
		return nil, fmt.Errorf("store: unknown priority %q", priority)
	}
	maxAttempts := opts.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = DefaultMaxAttempts
	}

	metadata, err := marshalMetadata(opts.Metadata)
	if err != nil {
		return nil, fmt.Errorf("store: marshal metadata: %w", err)
	}

	sched := models.FollowUpSchedule{
		ID:           uuid.NewString(),
		RequestID:    opts.RequestID,
		SupplierID:   opts.SupplierID,
		Kind:         opts.Kind,
		Priority:     priority,
		Status:       models.SchedulePending,
		ScheduledFor: opts.ScheduledFor,
		MaxAttempts:  maxAttempts,
		Metadata:     metadata,
	}
	if err := db.Create(&sched).Error; err != nil {
		return nil, fmt.Errorf("store: create schedule: %w", err)
	}
	return &sched, nil
}

// Get returns a schedule by ID.
func Get(db *gorm.DB, id string) (*models.FollowUpSchedule, error) {
	var sched models.FollowUpSchedule
	if err := db.First(&sched, "id = ?", id).Error; err != nil {
		return nil, fmt.Errorf("store: get schedule %s: %w", id, err)
	}
	return &sched, nil
}

// ListFilters narrows List results. Zero values mean "no filter".
type ListFilters struct {
	Status     models.ScheduleStatus
	RequestID  string
	SupplierID string
	Limit      int
}

// List returns schedules matching the filters, oldest scheduled first.
func List(db *gorm.DB, f ListFilters) ([]models.FollowUpSchedule, error) {
	q := db.Model(&models.FollowUpSchedule{}).Order("scheduled_for ASC")
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	if f.RequestID != "" {
		q = q.Where("request_id = ?", f.RequestID)
	}
	if f.SupplierID != "" {
		q = q.Where("supplier_id = ?", f.SupplierID)
	}
	if f.Limit > 0 {
		q = q.Limit(f.Limit)
	}
	var scheds []models.FollowUpSchedule
	if err := q.Find(&scheds).Error; err != nil {
		return nil, fmt.Errorf("store: list schedules: %w", err)
	}
	return scheds, nil
}

// ListDue returns pending schedules whose scheduled_for has passed.
func ListDue(db *gorm.DB, now time.Time, limit int) ([]models.FollowUpSchedule, error) {
	q := db.Where("status = ? AND scheduled_for <= ?", models.SchedulePending, now).
		Order("scheduled_for ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var scheds []models.FollowUpSchedule
	if err := q.Find(&scheds).Error; err != nil {
		return nil, fmt.Errorf("store: list due schedules: %w", err)
	}
	return scheds, nil
}

// ListPending returns all pending schedules regardless of scheduled_for,
// for manual override / backfill processing.
func ListPending(db *gorm.DB, limit int) ([]models.FollowUpSchedule, error) {
	return List(db, ListFilters{Status: models.SchedulePending, Limit: limit})
}

// Claim atomically transitions a schedule from pending to processing.
// Returns false when the row was not in pending state anymore: a concurrent
// run claimed it first, which is not an error.
func Claim(db *gorm.DB, id string, now time.Time) (bool, error) {
	result := db.Model(&models.FollowUpSchedule{}).
		Where("id = ? AND status = ?", id, models.SchedulePending).
		Updates(map[string]interface{}{
			"status":     models.ScheduleProcessing,
			"updated_at": now,
		})
	if result.Error != nil {
		return false, fmt.Errorf("store: claim schedule %s: %w", id, result.Error)
	}
	return result.RowsAffected > 0, nil
}

// MarkSent records a successful dispatch: processing→sent with sent_at set.
func MarkSent(db *gorm.DB, id string, now time.Time) error {
	result := db.Model(&models.FollowUpSchedule{}).
		Where("id = ? AND status = ?", id, models.ScheduleProcessing).
		Updates(map[string]interface{}{
			"status":          models.ScheduleSent,
			"sent_at":         now,
			"next_attempt_at": nil,
			"last_error":      "",
		})
	if result.Error != nil {
		return fmt.Errorf("store: mark sent %s: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("store: mark sent %s: schedule not in processing state", id)
	}
	return nil
}

// MarkFailed records a terminal dispatch failure: processing→failed.
// attemptCount is the total attempts consumed, including the failing one.
func MarkFailed(db *gorm.DB, id string, attemptCount int, reason string) error {
	result := db.Model(&models.FollowUpSchedule{}).
		Where("id = ? AND status = ?", id, models.ScheduleProcessing).
		Updates(map[string]interface{}{
			"status":          models.ScheduleFailed,
			"attempt_count":   attemptCount,
			"next_attempt_at": nil,
			"last_error":      reason,
		})
	if result.Error != nil {
		return fmt.Errorf("store: mark failed %s: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("store: mark failed %s: schedule not in processing state", id)
	}
	return nil
}

// ScheduleRetry returns a schedule to pending after a transient dispatch
// failure, bumping the attempt counter and time-shifting the next attempt.
// Retries are time-scheduled, never immediately re-queued.
func ScheduleRetry(db *gorm.DB, id string, attemptCount int, nextAt time.Time, reason string) error {
	result := db.Model(&models.FollowUpSchedule{}).
		Where("id = ? AND status = ?", id, models.ScheduleProcessing).
		Updates(map[string]interface{}{
			"status":          models.SchedulePending,
			"attempt_count":   attemptCount,
			"next_attempt_at": nextAt,
			"scheduled_for":   nextAt,
			"last_error":      reason,
		})
	if result.Error != nil {
		return fmt.Errorf("store: schedule retry %s: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("store: schedule retry %s: schedule not in processing state", id)
	}
	return nil
}

// Cancel transitions a pending schedule to cancelled. Only pending schedules
// can be cancelled; anything else is already in flight or terminal.
func Cancel(db *gorm.DB, id string) error {
	result := db.Model(&models.FollowUpSchedule{}).
		Where("id = ? AND status = ?", id, models.SchedulePending).
		Update("status", models.ScheduleCancelled)
	if result.Error != nil {
		return fmt.Errorf("store: cancel schedule %s: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("store: cancel schedule %s: not pending", id)
	}
	return nil
}

// Reschedule moves a schedule to a new time. A pending schedule is simply
// re-timed; a failed schedule is revived (failed→pending) with its attempt
// counter reset. This is the only path out of the failed state.
func Reschedule(db *gorm.DB, id string, newTime time.Time) error {
	sched, err := Get(db, id)
	if err != nil {
		return err
	}

	switch sched.Status {
	case models.SchedulePending:
		result := db.Model(&models.FollowUpSchedule{}).
			Where("id = ? AND status = ?", id, models.SchedulePending).
			Updates(map[string]interface{}{
				"scheduled_for":   newTime,
				"next_attempt_at": nil,
			})
		if result.Error != nil {
			return fmt.Errorf("store: reschedule %s: %w", id, result.Error)
		}
		if result.RowsAffected == 0 {
			return fmt.Errorf("store: reschedule %s: lost race, no longer pending", id)
		}
		return nil
	case models.ScheduleFailed:
		result := db.Model(&models.FollowUpSchedule{}).
			Where("id = ? AND status = ?", id, models.ScheduleFailed).
			Updates(map[string]interface{}{
				"status":          models.SchedulePending,
				"scheduled_for":   newTime,
				"attempt_count":   0,
				"next_attempt_at": nil,
				"last_error":      "",
			})
		if result.Error != nil {
			return fmt.Errorf("store: reschedule %s: %w", id, result.Error)
		}
		if result.RowsAffected == 0 {
			return fmt.Errorf("store: reschedule %s: lost race, no longer failed", id)
		}
		return nil
	default:
		return fmt.Errorf("store: reschedule %s: status %s cannot be rescheduled", id, sched.Status)
	}
}

// ProcessingStats summarizes the schedule queue for operational visibility.
type ProcessingStats struct {
	TotalPending int64 `json:"total_pending"`
	DueNow       int64 `json:"due_now"`
	SentToday    int64 `json:"sent_today"`
	FailedToday  int64 `json:"failed_today"`
}

// Stats computes queue counters. "Today" is the local calendar day of now.
func Stats(db *gorm.DB, now time.Time) (*ProcessingStats, error) {
	var s ProcessingStats
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())

	if err := db.Model(&models.FollowUpSchedule{}).
		Where("status = ?", models.SchedulePending).
		Count(&s.TotalPending).Error; err != nil {
		return nil, fmt.Errorf("store: stats pending: %w", err)
	}
	if err := db.Model(&models.FollowUpSchedule{}).
		Where("status = ? AND scheduled_for <= ?", models.SchedulePending, now).
		Count(&s.DueNow).Error; err != nil {
		return nil, fmt.Errorf("store: stats due: %w", err)
	}
	if err := db.Model(&models.FollowUpSchedule{}).
		Where("status = ? AND sent_at >= ?", models.ScheduleSent, midnight).
		Count(&s.SentToday).Error; err != nil {
		return nil, fmt.Errorf("store: stats sent today: %w", err)
	}
	if err := db.Model(&models.FollowUpSchedule{}).
		Where("status = ? AND updated_at >= ?", models.ScheduleFailed, midnight).
		Count(&s.FailedToday).Error; err != nil {
		return nil, fmt.Errorf("store: stats failed today: %w", err)
	}
	return &s, nil
}

// marshalMetadata serializes the opaque metadata bag, returning "{}" for nil.
func marshalMetadata(m map[string]string) (string, error) {
	if len(m) == 0 {
		return "{}", nil
	}
	data, err := json.Marshal(m)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
