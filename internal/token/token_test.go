package token

import (
	"strings"
	"testing"
	"time"

	"github.com/avolkmer/chaser/internal/db"
	"github.com/avolkmer/chaser/internal/models"
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

func TestIssue(t *testing.T) {
	gdb := openTestDB(t)
	supplierID := uuid.NewString()
	requestID := uuid.NewString()

	tok, err := Issue(gdb, IssueOpts{
		SupplierID: supplierID,
		RequestID:  requestID,
		TTL:        168 * time.Hour,
	})
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	if len(tok.Code) != DefaultCodeLength {
		t.Errorf("code length = %d, want %d", len(tok.Code), DefaultCodeLength)
	}
	for _, r := range tok.Code {
		if !strings.ContainsRune(codeAlphabet, r) {
			t.Errorf("code %q contains %q outside the alphabet", tok.Code, r)
		}
	}
	if tok.SupplierID != supplierID {
		t.Errorf("SupplierID = %q", tok.SupplierID)
	}
	if tok.RequestID == nil || *tok.RequestID != requestID {
		t.Errorf("RequestID = %v, want %q", tok.RequestID, requestID)
	}
	if want := tok.IssuedAt.Add(168 * time.Hour); !tok.ExpiresAt.Equal(want) {
		t.Errorf("ExpiresAt = %v, want %v", tok.ExpiresAt, want)
	}

	var audit models.AuditEntry
	if err := gdb.First(&audit, "action = ?", "token_issued").Error; err != nil {
		t.Fatalf("audit entry: %v", err)
	}
	if strings.Contains(audit.Detail, tok.Code) {
		t.Error("full code must never appear in the audit log")
	}
	if !strings.Contains(audit.Detail, tok.Code[:4]) {
		t.Errorf("audit detail %q missing code prefix", audit.Detail)
	}
}

func TestIssue_Validation(t *testing.T) {
	gdb := openTestDB(t)

	if _, err := Issue(gdb, IssueOpts{TTL: time.Hour}); err == nil {
		t.Error("expected error without supplier")
	}
	if _, err := Issue(gdb, IssueOpts{SupplierID: "s", TTL: 0}); err == nil {
		t.Error("expected error with zero TTL")
	}
	if _, err := Issue(gdb, IssueOpts{SupplierID: "s", TTL: time.Hour, CodeLength: 6}); err == nil {
		t.Error("expected error with short code length")
	}
}

func TestValidate_UnknownCode(t *testing.T) {
	gdb := openTestDB(t)

	v, err := Validate(gdb, "NOSUCHCODE", 24*time.Hour)
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if v.Valid {
		t.Error("unknown code must be invalid")
	}

	var audits int64
	gdb.Model(&models.AuditEntry{}).Where("action = ?", "token_denied").Count(&audits)
	if audits != 1 {
		t.Errorf("denial audit entries = %d, want 1", audits)
	}
}

func TestValidate_EmptyCode(t *testing.T) {
	gdb := openTestDB(t)
	v, err := Validate(gdb, "", 24*time.Hour)
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if v.Valid {
		t.Error("empty code must be invalid")
	}
}

func TestValidate_WithinWindow(t *testing.T) {
	gdb := openTestDB(t)
	supplierID := uuid.NewString()
	tok, err := Issue(gdb, IssueOpts{SupplierID: supplierID, TTL: time.Hour})
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	v, err := Validate(gdb, tok.Code, 24*time.Hour)
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if !v.Valid {
		t.Fatal("code within its window must be valid")
	}
	if v.Extended {
		t.Error("no extension before nominal expiry")
	}
	if v.SupplierID != supplierID {
		t.Errorf("SupplierID = %q", v.SupplierID)
	}
}

func TestValidate_GraceWindowExtends(t *testing.T) {
	gdb := openTestDB(t)
	tok, err := Issue(gdb, IssueOpts{SupplierID: uuid.NewString(), TTL: time.Hour})
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	// Push the token one hour past nominal expiry.
	expired := time.Now().Add(-time.Hour)
	if err := gdb.Model(&models.AccessToken{}).Where("code = ?", tok.Code).
		Update("expires_at", expired).Error; err != nil {
		t.Fatalf("backdate token: %v", err)
	}

	v, err := Validate(gdb, tok.Code, 24*time.Hour)
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if !v.Valid || !v.Extended {
		t.Fatalf("grace validation = %+v, want valid and extended", v)
	}
	if !v.ExpiresAt.After(time.Now()) {
		t.Errorf("extended expiry %v should be in the future", v.ExpiresAt)
	}

	var got models.AccessToken
	gdb.First(&got, "code = ?", tok.Code)
	if got.Extensions != 1 {
		t.Errorf("Extensions = %d, want 1", got.Extensions)
	}

	var audits int64
	gdb.Model(&models.AuditEntry{}).Where("action = ?", "token_extended").Count(&audits)
	if audits != 1 {
		t.Errorf("extension audit entries = %d, want 1", audits)
	}
}

func TestValidate_BeyondGrace(t *testing.T) {
	gdb := openTestDB(t)
	tok, err := Issue(gdb, IssueOpts{SupplierID: uuid.NewString(), TTL: time.Hour})
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	expired := time.Now().Add(-48 * time.Hour)
	if err := gdb.Model(&models.AccessToken{}).Where("code = ?", tok.Code).
		Update("expires_at", expired).Error; err != nil {
		t.Fatalf("backdate token: %v", err)
	}

	v, err := Validate(gdb, tok.Code, 24*time.Hour)
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if v.Valid {
		t.Error("code beyond the grace window must be invalid")
	}

	var got models.AccessToken
	gdb.First(&got, "code = ?", tok.Code)
	if got.Extensions != 0 {
		t.Errorf("Extensions = %d, expiry must not slide beyond grace", got.Extensions)
	}
}

func TestGenerateCode_Uniform(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		code, err := generateCode(10)
		if err != nil {
			t.Fatalf("generateCode: %v", err)
		}
		if len(code) != 10 {
			t.Fatalf("length = %d", len(code))
		}
		if seen[code] {
			t.Fatalf("duplicate code %q in 50 draws", code)
		}
		seen[code] = true
	}
}
