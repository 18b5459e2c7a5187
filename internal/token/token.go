// Package token issues and validates the magic access codes that gate
// supplier actions. A code is a short random credential sent in an email
// link; because suppliers follow those links after arbitrary delays, expiry
// is softened by a bounded grace window with sliding extension.
package token

import (
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/avolkmer/chaser/internal/models"
	"github.com/avolkmer/chaser/internal/store"
	gomysql "github.com/go-sql-driver/mysql"
	"gorm.io/gorm"
)

const (
	// codeAlphabet is the uniform source for access codes. Uppercase
	// alphanumeric keeps codes readable when typed from an email.
	codeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

	// DefaultCodeLength yields ~51 bits of entropy, far beyond the
	// collision ceiling for this population of codes.
	DefaultCodeLength = 10

	// maxIssueAttempts bounds regeneration on a duplicate-key collision.
	maxIssueAttempts = 3

	// mysqlDupEntry is the MySQL error number for duplicate key.
	mysqlDupEntry = 1062
)

// IssueOpts holds parameters for issuing an access token.
type IssueOpts struct {
	SupplierID string
	RequestID  string // optional: narrows the code to one request
	TTL        time.Duration
	CodeLength int
}

// Issue generates a high-entropy access code bound to one supplier and
// persists it with expires_at = now + TTL.
func Issue(db *gorm.DB, opts IssueOpts) (*models.AccessToken, error) {
	if opts.SupplierID == "" {
		return nil, fmt.Errorf("token: supplierID is required")
	}
	if opts.TTL <= 0 {
		return nil, fmt.Errorf("token: ttl must be positive")
	}
	length := opts.CodeLength
	if length == 0 {
		length = DefaultCodeLength
	}
	if length < 8 {
		return nil, fmt.Errorf("token: code length %d below minimum 8", length)
	}

	now := time.Now()
	var requestID *string
	if opts.RequestID != "" {
		requestID = &opts.RequestID
	}

	var lastErr error
	for attempt := 0; attempt < maxIssueAttempts; attempt++ {
		code, err := generateCode(length)
		if err != nil {
			return nil, fmt.Errorf("token: generate code: %w", err)
		}

		tok := models.AccessToken{
			Code:       code,
			SupplierID: opts.SupplierID,
			RequestID:  requestID,
			IssuedAt:   now,
			ExpiresAt:  now.Add(opts.TTL),
		}
		err = db.Create(&tok).Error
		if err == nil {
			store.Audit(db, store.AuditOpts{
				Action:     "token_issued",
				RequestID:  opts.RequestID,
				SupplierID: opts.SupplierID,
				Detail:     fmt.Sprintf("code %s… expires %s", codePrefix(code), tok.ExpiresAt.Format(time.RFC3339)),
			})
			return &tok, nil
		}
		if !isDuplicateKey(err) {
			return nil, fmt.Errorf("token: persist code: %w", err)
		}
		lastErr = err
	}
	return nil, fmt.Errorf("token: code collision after %d attempts: %w", maxIssueAttempts, lastErr)
}

// Validation is the typed outcome of a validation attempt. Invalid codes are
// an expected, frequent result, not an error.
type Validation struct {
	Valid      bool
	Extended   bool
	SupplierID string
	RequestID  string
	ExpiresAt  time.Time
}

// Validate checks an access code against the current time. Within the normal
// window the code is simply valid. Within the grace window after nominal
// expiry the code is valid and its expiry slides forward to now + grace,
// applied as a conditional write so two near-simultaneous validations extend
// exactly once. Outside both windows the code is invalid.
//
// Every attempt is written to the audit log; audit failures never change the
// validation outcome.
func Validate(db *gorm.DB, code string, grace time.Duration) (*Validation, error) {
	now := time.Now()

	if code == "" {
		return &Validation{}, nil
	}

	var tok models.AccessToken
	err := db.First(&tok, "code = ?", code).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		store.Audit(db, store.AuditOpts{
			Action: "token_denied",
			Detail: fmt.Sprintf("code %s… unknown", codePrefix(code)),
		})
		return &Validation{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("token: lookup code: %w", err)
	}

	requestID := ""
	if tok.RequestID != nil {
		requestID = *tok.RequestID
	}

	switch {
	case !now.After(tok.ExpiresAt):
		store.Audit(db, store.AuditOpts{
			Action:     "token_validated",
			RequestID:  requestID,
			SupplierID: tok.SupplierID,
			Detail:     fmt.Sprintf("code %s… valid", codePrefix(code)),
		})
		return &Validation{
			Valid:      true,
			SupplierID: tok.SupplierID,
			RequestID:  requestID,
			ExpiresAt:  tok.ExpiresAt,
		}, nil

	case !now.After(tok.ExpiresAt.Add(grace)):
		newExpiry := now.Add(grace)
		result := db.Model(&models.AccessToken{}).
			Where("code = ? AND expires_at = ?", tok.Code, tok.ExpiresAt).
			Updates(map[string]interface{}{
				"expires_at": newExpiry,
				"extensions": gorm.Expr("extensions + 1"),
			})
		if result.Error != nil {
			return nil, fmt.Errorf("token: extend code: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			// A concurrent validation extended the token first. The code is
			// valid either way; report the stored expiry.
			if err := db.First(&tok, "code = ?", code).Error; err != nil {
				return nil, fmt.Errorf("token: re-read extended code: %w", err)
			}
			newExpiry = tok.ExpiresAt
		}
		store.Audit(db, store.AuditOpts{
			Action:     "token_extended",
			RequestID:  requestID,
			SupplierID: tok.SupplierID,
			Detail: fmt.Sprintf("code %s… validated in grace window, expiry extended to %s",
				codePrefix(code), newExpiry.Format(time.RFC3339)),
		})
		return &Validation{
			Valid:      true,
			Extended:   true,
			SupplierID: tok.SupplierID,
			RequestID:  requestID,
			ExpiresAt:  newExpiry,
		}, nil

	default:
		store.Audit(db, store.AuditOpts{
			Action:     "token_denied",
			RequestID:  requestID,
			SupplierID: tok.SupplierID,
			Detail:     fmt.Sprintf("code %s… expired beyond grace", codePrefix(code)),
		})
		return &Validation{}, nil
	}
}

// generateCode draws n characters from the code alphabet using crypto/rand.
func generateCode(n int) (string, error) {
	buf := make([]byte, n)
	max := big.NewInt(int64(len(codeAlphabet)))
	for i := range buf {
		idx, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		buf[i] = codeAlphabet[idx.Int64()]
	}
	return string(buf), nil
}

// codePrefix returns the loggable prefix of a code. Full codes never appear
// in the audit log.
func codePrefix(code string) string {
	if len(code) <= 4 {
		return code
	}
	return code[:4]
}

// isDuplicateKey detects a primary-key collision on insert across the MySQL
// driver and GORM's translated error.
func isDuplicateKey(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var myErr *gomysql.MySQLError
	return errors.As(err, &myErr) && myErr.Number == mysqlDupEntry
}
