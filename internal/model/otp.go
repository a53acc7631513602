package model

import (
	"context"
	"time"
)

// OTPStatus enumerates the lifecycle states of an issued code.
type OTPStatus string

const (
	// OTPStatusPending is the only live state; at most one pending row per
	// phone exists, enforced by a partial unique index.
	OTPStatusPending OTPStatus = "pending"
	// OTPStatusVerified marks a code confirmed by its owner but not yet
	// consumed by a session exchange.
	OTPStatusVerified OTPStatus = "verified"
	// OTPStatusSessionPending marks a verified code with an outstanding
	// handoff token, so it cannot be mistaken for a redeemable record.
	OTPStatusSessionPending OTPStatus = "session_pending"
	// OTPStatusExpired is terminal: timed out, attempt-limited, or
	// invalidated by a newer issue.
	OTPStatusExpired OTPStatus = "expired"
	// OTPStatusUsed is terminal: the code completed a login.
	OTPStatusUsed OTPStatus = "used"
)

// IsTerminal reports whether no further transition may leave the state.
func (s OTPStatus) IsTerminal() bool {
	return s == OTPStatusExpired || s == OTPStatusUsed
}

// OTPRecord is one row per issued code. Plaintext codes are never persisted;
// only the peppered digest is stored.
type OTPRecord struct {
	ID          string    `json:"id" db:"id"`
	Phone       string    `json:"phone" db:"phone"`
	CodeHash    string    `json:"-" db:"code_hash"`
	Status      OTPStatus `json:"status" db:"status"`
	Attempts    int       `json:"attempts" db:"attempts"`
	MaxAttempts int       `json:"max_attempts" db:"max_attempts"`
	ExpiresAt   time.Time `json:"expires_at" db:"expires_at"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}

// Expired reports whether the record's validity window has passed.
func (o *OTPRecord) Expired(now time.Time) bool {
	return now.After(o.ExpiresAt)
}

// OTPRepository defines the interface for OTP data operations
type OTPRepository interface {
	// CreateInvalidatingPrevious expires every pending row for the record's
	// phone and inserts the new row in a single transaction.
	CreateInvalidatingPrevious(ctx context.Context, otp *OTPRecord) error
	// GetLatestPending returns the most recently created pending row for the
	// phone, or ErrNoRows.
	GetLatestPending(ctx context.Context, phone string) (*OTPRecord, error)
	IncrementAttempts(ctx context.Context, id string) (int, error)
	UpdateStatus(ctx context.Context, id string, from, to OTPStatus) error
	CountPending(ctx context.Context) (int, error)
	// DeleteTerminal removes expired/used rows older than the cutoff. Runs
	// from the out-of-band sweeper, never on the request path.
	DeleteTerminal(ctx context.Context, olderThan time.Time) (int64, error)
}
