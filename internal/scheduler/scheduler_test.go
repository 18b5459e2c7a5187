package scheduler

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/avolkmer/chaser/internal/backoff"
	"github.com/avolkmer/chaser/internal/db"
	"github.com/avolkmer/chaser/internal/models"
	"github.com/avolkmer/chaser/internal/notify"
	"github.com/avolkmer/chaser/internal/store"
	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	gdb, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(gdb); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return gdb
}

type env struct {
	db       *gorm.DB
	mock     *notify.MockNotifier
	proc     *Processor
	supplier models.Supplier
	request  models.ServiceRequest
}

func newEnv(t *testing.T) *env {
	t.Helper()
	gdb := openTestDB(t)

	supplier := models.Supplier{ID: uuid.NewString(), Name: "Hartmann", Email: "dispatch@hartmann.example", Active: true}
	if err := gdb.Create(&supplier).Error; err != nil {
		t.Fatalf("create supplier: %v", err)
	}
	deadline := time.Now().Add(48 * time.Hour)
	request := models.ServiceRequest{
		ID: uuid.NewString(), Title: "Repair gate", SupplierID: supplier.ID,
		Priority: models.PriorityNormal, Status: models.RequestOpen, ResponseDeadline: &deadline,
	}
	if err := gdb.Create(&request).Error; err != nil {
		t.Fatalf("create request: %v", err)
	}

	mock := notify.NewMockNotifier()
	return &env{
		db:   gdb,
		mock: mock,
		proc: &Processor{
			DB:       gdb,
			Notifier: mock,
			Resolver: notify.StaticResolver{OperatorName: "ops", OperatorAddress: "C999"},
			Backoff:  backoff.DefaultPolicy(),
		},
		supplier: supplier,
		request:  request,
	}
}

func (e *env) schedule(t *testing.T, at time.Time, metadata map[string]string) *models.FollowUpSchedule {
	t.Helper()
	sched, err := store.Create(e.db, store.CreateOpts{
		RequestID:    e.request.ID,
		SupplierID:   e.supplier.ID,
		Kind:         models.KindQuotationReminder,
		Priority:     models.PriorityNormal,
		ScheduledFor: at,
		Metadata:     metadata,
	})
	if err != nil {
		t.Fatalf("create schedule: %v", err)
	}
	return sched
}

func (e *env) reload(t *testing.T, id string) *models.FollowUpSchedule {
	t.Helper()
	sched, err := store.Get(e.db, id)
	if err != nil {
		t.Fatalf("reload schedule: %v", err)
	}
	return sched
}

func TestProcessDue_SendsDueSchedule(t *testing.T) {
	e := newEnv(t)
	sched := e.schedule(t, time.Now().Add(-time.Minute), map[string]string{"access_code": "ABCD123456"})

	result, err := e.proc.ProcessDue(context.Background())
	if err != nil {
		t.Fatalf("ProcessDue: %v", err)
	}
	if result.Sent != 1 || result.Processed != 1 {
		t.Fatalf("result = %+v, want 1 sent", result)
	}

	sent := e.mock.Sent()
	if len(sent) != 1 {
		t.Fatalf("deliveries = %d, want 1", len(sent))
	}
	if sent[0].Recipient.Address != e.supplier.Email {
		t.Errorf("recipient = %q, want supplier email", sent[0].Recipient.Address)
	}
	if !strings.Contains(sent[0].Body, "ABCD123456") {
		t.Errorf("body missing access code:\n%s", sent[0].Body)
	}

	got := e.reload(t, sched.ID)
	if got.Status != models.ScheduleSent {
		t.Errorf("Status = %s, want sent", got.Status)
	}
	if got.SentAt == nil {
		t.Error("SentAt not stamped")
	}

	var audits int64
	e.db.Model(&models.AuditEntry{}).Where("action = ? AND schedule_id = ?", "follow_up_sent", sched.ID).Count(&audits)
	if audits != 1 {
		t.Errorf("audit entries = %d, want 1", audits)
	}
}

func TestProcessDue_SecondRunDoesNotDoubleSend(t *testing.T) {
	e := newEnv(t)
	e.schedule(t, time.Now().Add(-time.Minute), nil)

	if _, err := e.proc.ProcessDue(context.Background()); err != nil {
		t.Fatalf("first ProcessDue: %v", err)
	}
	result, err := e.proc.ProcessDue(context.Background())
	if err != nil {
		t.Fatalf("second ProcessDue: %v", err)
	}
	if result.Sent != 0 {
		t.Errorf("second run sent = %d, want 0", result.Sent)
	}
	if len(e.mock.Sent()) != 1 {
		t.Errorf("deliveries = %d, want exactly 1", len(e.mock.Sent()))
	}
}

func TestProcessDue_IgnoresFutureSchedules(t *testing.T) {
	e := newEnv(t)
	e.schedule(t, time.Now().Add(time.Hour), nil)

	result, err := e.proc.ProcessDue(context.Background())
	if err != nil {
		t.Fatalf("ProcessDue: %v", err)
	}
	if result.Processed != 0 {
		t.Errorf("processed = %d, want 0 for future-dated schedule", result.Processed)
	}
}

func TestProcessAll_IncludesFutureSchedules(t *testing.T) {
	e := newEnv(t)
	sched := e.schedule(t, time.Now().Add(time.Hour), nil)

	result, err := e.proc.ProcessAll(context.Background())
	if err != nil {
		t.Fatalf("ProcessAll: %v", err)
	}
	if result.Sent != 1 {
		t.Fatalf("sent = %d, want 1 in override mode", result.Sent)
	}
	got := e.reload(t, sched.ID)
	if got.Status != models.ScheduleSent {
		t.Errorf("Status = %s, want sent", got.Status)
	}
}

func TestProcess_TransientFailureSchedulesRetry(t *testing.T) {
	e := newEnv(t)
	sched := e.schedule(t, time.Now().Add(-time.Minute), nil)
	e.mock.FailWith = errors.New("slack: rate limited")

	result, err := e.proc.ProcessDue(context.Background())
	if err != nil {
		t.Fatalf("ProcessDue: %v", err)
	}
	if result.Retried != 1 || result.Failed != 0 {
		t.Fatalf("result = %+v, want 1 retried", result)
	}

	got := e.reload(t, sched.ID)
	if got.Status != models.SchedulePending {
		t.Errorf("Status = %s, want pending", got.Status)
	}
	if got.AttemptCount != 1 {
		t.Errorf("AttemptCount = %d, want 1", got.AttemptCount)
	}
	if got.NextAttemptAt == nil {
		t.Fatal("NextAttemptAt not set")
	}
	if !got.ScheduledFor.After(time.Now()) {
		t.Error("retry must be time-shifted into the future")
	}
	if !strings.Contains(got.LastError, "rate limited") {
		t.Errorf("LastError = %q", got.LastError)
	}

	// The retried item is not due yet, so an immediate re-run is a no-op.
	result, _ = e.proc.ProcessDue(context.Background())
	if result.Processed != 0 {
		t.Errorf("immediate re-run processed = %d, want 0", result.Processed)
	}
}

func TestProcess_ExhaustionFailsTerminally(t *testing.T) {
	e := newEnv(t)
	sched := e.schedule(t, time.Now().Add(-time.Minute), nil)
	e.mock.FailWith = errors.New("slack: rate limited")

	// Burn through all attempts by rewinding scheduled_for between runs.
	for i := 0; i < 3; i++ {
		if _, err := e.proc.ProcessDue(context.Background()); err != nil {
			t.Fatalf("ProcessDue #%d: %v", i+1, err)
		}
		e.db.Model(&models.FollowUpSchedule{}).Where("id = ?", sched.ID).
			Update("scheduled_for", time.Now().Add(-time.Minute))
	}

	got := e.reload(t, sched.ID)
	if got.Status != models.ScheduleFailed {
		t.Fatalf("Status = %s, want failed after exhaustion", got.Status)
	}
	if got.AttemptCount != 3 {
		t.Errorf("AttemptCount = %d, want 3", got.AttemptCount)
	}
	if got.NextAttemptAt != nil {
		t.Error("NextAttemptAt must be cleared on terminal failure")
	}

	var audit models.AuditEntry
	if err := e.db.Where("action = ? AND schedule_id = ?", "follow_up_failed", sched.ID).First(&audit).Error; err != nil {
		t.Fatalf("failure audit entry: %v", err)
	}
	if !strings.Contains(audit.Detail, "retries exhausted") {
		t.Errorf("audit detail = %q", audit.Detail)
	}
}

func TestProcess_PermanentFailureFailsFast(t *testing.T) {
	e := newEnv(t)
	sched := e.schedule(t, time.Now().Add(-time.Minute), nil)
	e.mock.FailWith = &notify.PermanentError{Reason: "channel_not_found"}

	result, err := e.proc.ProcessDue(context.Background())
	if err != nil {
		t.Fatalf("ProcessDue: %v", err)
	}
	if result.Failed != 1 || result.Retried != 0 {
		t.Fatalf("result = %+v, want 1 failed without retry", result)
	}

	got := e.reload(t, sched.ID)
	if got.Status != models.ScheduleFailed {
		t.Errorf("Status = %s, want failed on first permanent failure", got.Status)
	}
	if got.NextAttemptAt != nil {
		t.Error("no retry may be scheduled for a permanent failure")
	}
}

func TestProcess_PermanentFailureRetriedWhenConfigured(t *testing.T) {
	e := newEnv(t)
	sched := e.schedule(t, time.Now().Add(-time.Minute), nil)
	e.mock.FailWith = &notify.PermanentError{Reason: "channel_not_found"}
	e.proc.RetryPermanent = true

	result, err := e.proc.ProcessDue(context.Background())
	if err != nil {
		t.Fatalf("ProcessDue: %v", err)
	}
	if result.Retried != 1 {
		t.Fatalf("result = %+v, want 1 retried with retry_permanent_failures", result)
	}
	got := e.reload(t, sched.ID)
	if got.Status != models.SchedulePending {
		t.Errorf("Status = %s, want pending", got.Status)
	}
}

func TestProcess_MissingRequestIsIntegrityFailure(t *testing.T) {
	e := newEnv(t)
	sched, err := store.Create(e.db, store.CreateOpts{
		RequestID:    uuid.NewString(), // no such request
		SupplierID:   e.supplier.ID,
		Kind:         models.KindWorkReminder,
		ScheduledFor: time.Now().Add(-time.Minute),
	})
	if err != nil {
		t.Fatalf("create schedule: %v", err)
	}

	result, err := e.proc.ProcessDue(context.Background())
	if err != nil {
		t.Fatalf("ProcessDue: %v", err)
	}
	if result.Failed != 1 {
		t.Fatalf("result = %+v, want 1 failed", result)
	}

	got := e.reload(t, sched.ID)
	if got.Status != models.ScheduleFailed {
		t.Errorf("Status = %s, want failed", got.Status)
	}
	// Integrity failures consume no retry attempt.
	if got.AttemptCount != 0 {
		t.Errorf("AttemptCount = %d, want 0", got.AttemptCount)
	}
	if len(e.mock.Sent()) != 0 {
		t.Error("nothing may be delivered for a dangling schedule")
	}
}

func TestProcess_OneFailureDoesNotAbortBatch(t *testing.T) {
	e := newEnv(t)
	bad := e.schedule(t, time.Now().Add(-2*time.Minute), nil)
	good := e.schedule(t, time.Now().Add(-time.Minute), nil)

	// Point the first schedule at a dangling supplier so only it fails.
	e.db.Model(&models.FollowUpSchedule{}).Where("id = ?", bad.ID).
		Update("supplier_id", uuid.NewString())

	result, err := e.proc.ProcessDue(context.Background())
	if err != nil {
		t.Fatalf("ProcessDue: %v", err)
	}
	if result.Failed != 1 || result.Sent != 1 {
		t.Fatalf("result = %+v, want 1 failed and 1 sent", result)
	}
	if got := e.reload(t, good.ID); got.Status != models.ScheduleSent {
		t.Errorf("good schedule status = %s, want sent", got.Status)
	}
}

func TestProcessor_RequiresDBAndNotifier(t *testing.T) {
	p := &Processor{}
	if _, err := p.ProcessDue(context.Background()); err == nil {
		t.Error("expected error without db")
	}
	p.DB = openTestDB(t)
	if _, err := p.ProcessDue(context.Background()); err == nil {
		t.Error("expected error without notifier")
	}
}

func TestDecodeMetadata(t *testing.T) {
	if m := decodeMetadata(`{"access_code":"X"}`); m["access_code"] != "X" {
		t.Errorf("decodeMetadata = %v", m)
	}
	if m := decodeMetadata("{}"); m != nil {
		t.Errorf("empty bag = %v, want nil", m)
	}
	if m := decodeMetadata("not json"); m != nil {
		t.Errorf("malformed bag = %v, want nil", m)
	}
}
