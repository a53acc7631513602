package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"eventsite-service/internal/model"
)

// UserRepository persists principals. Phone numbers are stored encrypted
// alongside a deterministic hash used for lookups.
type UserRepository struct {
	db DB
}

func NewUserRepository(db DB) *UserRepository {
	return &UserRepository{db: db}
}

var _ model.UserRepository = (*UserRepository)(nil)

const userColumns = `id, phone_hash, phone_encrypted, phone_key_id, full_name, role, password_hash, is_active, last_login_at, created_at, updated_at`

func (r *UserRepository) Create(ctx context.Context, user *model.User) error {
	if user.ID == "" {
		user.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	user.CreatedAt = now
	user.UpdatedAt = now
	if user.Role == "" {
		user.Role = model.RoleUser
	}

	_, err := r.db.Exec(ctx,
		`INSERT INTO users (id, phone_hash, phone_encrypted, phone_key_id, full_name, role, password_hash, is_active, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		user.ID, user.PhoneHash, user.PhoneEncrypted, user.PhoneKeyID,
		user.FullName, user.Role, user.PasswordHash, user.IsActive,
		user.CreatedAt, user.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

func (r *UserRepository) GetByID(ctx context.Context, id string) (*model.User, error) {
	return r.scanOne(r.db.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1`, id))
}

func (r *UserRepository) GetByPhoneHash(ctx context.Context, phoneHash string) (*model.User, error) {
	return r.scanOne(r.db.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE phone_hash = $1`, phoneHash))
}

func (r *UserRepository) UpdateProfile(ctx context.Context, id, fullName string) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE users SET full_name = $1, updated_at = $2 WHERE id = $3`,
		fullName, time.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("failed to update profile: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNoRows
	}
	return nil
}

func (r *UserRepository) UpdateLastLogin(ctx context.Context, id string) error {
	now := time.Now().UTC()
	_, err := r.db.Exec(ctx,
		`UPDATE users SET last_login_at = $1, updated_at = $1 WHERE id = $2`,
		now, id,
	)
	if err != nil {
		return fmt.Errorf("failed to update last login: %w", err)
	}
	return nil
}

// HasRole is the role gate: a pure read of the principal's role assignment.
// A lookup error propagates so callers can treat it as deny, never allow.
func (r *UserRepository) HasRole(ctx context.Context, id string, role model.Role) (bool, error) {
	var stored model.Role
	err := r.db.QueryRow(ctx,
		`SELECT role FROM users WHERE id = $1 AND is_active = true`, id,
	).Scan(&stored)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("role lookup failed: %w", err)
	}
	return stored == role, nil
}

func (r *UserRepository) List(ctx context.Context, limit, offset int) ([]*model.User, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+userColumns+` FROM users ORDER BY created_at DESC LIMIT $1 OFFSET $2`,
		limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	var users []*model.User
	for rows.Next() {
		user, err := r.scanOne(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	return users, rows.Err()
}

func (r *UserRepository) Count(ctx context.Context) (int, error) {
	var count int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM users`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count users: %w", err)
	}
	return count, nil
}

func (r *UserRepository) scanOne(row pgx.Row) (*model.User, error) {
	user := &model.User{}
	err := row.Scan(
		&user.ID, &user.PhoneHash, &user.PhoneEncrypted, &user.PhoneKeyID,
		&user.FullName, &user.Role, &user.PasswordHash, &user.IsActive,
		&user.LastLoginAt, &user.CreatedAt, &user.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNoRows
		}
		return nil, fmt.Errorf("failed to scan user: %w", err)
	}
	return user, nil
}
