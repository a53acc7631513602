package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"eventsite-service/internal/model"
	"eventsite-service/internal/otp"
	"eventsite-service/internal/util"
)

// OTPRepository persists issued codes. It is the only writer of the
// otp_codes table; a partial unique index keeps at most one pending row per
// phone, and invalidation plus insert run in one transaction.
type OTPRepository struct {
	db DB
}

func NewOTPRepository(db DB) *OTPRepository {
	return &OTPRepository{db: db}
}

var _ model.OTPRepository = (*OTPRepository)(nil)

const otpColumns = `id, phone, code_hash, status, attempts, max_attempts, expires_at, created_at`

// CreateInvalidatingPrevious expires every pending row for the phone and
// inserts the new pending row atomically. If the transaction aborts, neither
// the invalidation nor the insert is visible.
func (r *OTPRepository) CreateInvalidatingPrevious(ctx context.Context, rec *model.OTPRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	rec.CreatedAt = now
	if rec.ExpiresAt.IsZero() {
		rec.ExpiresAt = now.Add(5 * time.Minute)
	}
	rec.Status = model.OTPStatusPending

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin otp transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx,
		`UPDATE otp_codes SET status = $1 WHERE phone = $2 AND status = $3`,
		model.OTPStatusExpired, rec.Phone, model.OTPStatusPending,
	); err != nil {
		return fmt.Errorf("failed to invalidate previous codes: %w", err)
	}

	if _, err := tx.Exec(ctx,
		`INSERT INTO otp_codes (id, phone, code_hash, status, attempts, max_attempts, expires_at, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		rec.ID, rec.Phone, rec.CodeHash, rec.Status,
		rec.Attempts, rec.MaxAttempts, rec.ExpiresAt, rec.CreatedAt,
	); err != nil {
		return fmt.Errorf("failed to insert otp record: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit otp transaction: %w", err)
	}

	util.Debug("OTP record created",
		zap.String("otp_id", rec.ID),
		zap.String("phone_hash", otp.HashPhone(rec.Phone)),
		zap.Time("expires_at", rec.ExpiresAt))

	return nil
}

// GetLatestPending returns the newest pending row for the phone. Selection
// orders by created_at so a racing stale row can never shadow a newer code.
func (r *OTPRepository) GetLatestPending(ctx context.Context, phone string) (*model.OTPRecord, error) {
	rec := &model.OTPRecord{}

	row := r.db.QueryRow(ctx,
		`SELECT `+otpColumns+` FROM otp_codes
		 WHERE phone = $1 AND status = $2
		 ORDER BY created_at DESC LIMIT 1`,
		phone, model.OTPStatusPending,
	)

	err := row.Scan(
		&rec.ID, &rec.Phone, &rec.CodeHash, &rec.Status,
		&rec.Attempts, &rec.MaxAttempts, &rec.ExpiresAt, &rec.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNoRows
		}
		return nil, fmt.Errorf("failed to get pending otp: %w", err)
	}

	return rec, nil
}

// IncrementAttempts bumps the attempt counter and returns the new value.
func (r *OTPRepository) IncrementAttempts(ctx context.Context, id string) (int, error) {
	var attempts int
	err := r.db.QueryRow(ctx,
		`UPDATE otp_codes SET attempts = attempts + 1 WHERE id = $1 RETURNING attempts`,
		id,
	).Scan(&attempts)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrNoRows
		}
		return 0, fmt.Errorf("failed to increment otp attempts: %w", err)
	}
	return attempts, nil
}

// UpdateStatus transitions a record from one status to another. The guard on
// the current status makes terminal states sticky: an update from a state
// the row no longer holds affects zero rows and reports ErrConflict.
func (r *OTPRepository) UpdateStatus(ctx context.Context, id string, from, to model.OTPStatus) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE otp_codes SET status = $1 WHERE id = $2 AND status = $3`,
		to, id, from,
	)
	if err != nil {
		return fmt.Errorf("failed to update otp status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrConflict
	}
	return nil
}

// CountPending reports the number of live codes, used by the admin dashboard.
func (r *OTPRepository) CountPending(ctx context.Context) (int, error) {
	var count int
	err := r.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM otp_codes WHERE status = $1`,
		model.OTPStatusPending,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count pending otps: %w", err)
	}
	return count, nil
}

// DeleteTerminal removes terminal-state rows older than the cutoff. Runs
// from the sweeper only.
func (r *OTPRepository) DeleteTerminal(ctx context.Context, olderThan time.Time) (int64, error) {
	tag, err := r.db.Exec(ctx,
		`DELETE FROM otp_codes WHERE status IN ($1, $2) AND created_at < $3`,
		model.OTPStatusExpired, model.OTPStatusUsed, olderThan,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to delete terminal otp rows: %w", err)
	}
	return tag.RowsAffected(), nil
}
