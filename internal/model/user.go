package model

import (
	"context"
	"time"
)

// Role is a closed enumeration; membership is checked on every privileged
// request, never cached.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// User is a principal identified by a phone number. The phone is stored
// encrypted at rest alongside a deterministic hash used for lookups.
type User struct {
	ID             string     `json:"id" db:"id"`
	Phone          string     `json:"phone" db:"phone"`
	PhoneHash      string     `json:"-" db:"phone_hash"`
	PhoneEncrypted []byte     `json:"-" db:"phone_encrypted"`
	PhoneKeyID     string     `json:"-" db:"phone_key_id"`
	FullName       string     `json:"full_name" db:"full_name"`
	Role           Role       `json:"role" db:"role"`
	PasswordHash   string     `json:"-" db:"password_hash"` // set for admins only
	IsActive       bool       `json:"is_active" db:"is_active"`
	LastLoginAt    *time.Time `json:"last_login_at,omitempty" db:"last_login_at"`
	CreatedAt      time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at" db:"updated_at"`
}

// UserRepository defines the interface for user data operations
type UserRepository interface {
	Create(ctx context.Context, user *User) error
	GetByID(ctx context.Context, id string) (*User, error)
	GetByPhoneHash(ctx context.Context, phoneHash string) (*User, error)
	UpdateProfile(ctx context.Context, id, fullName string) error
	UpdateLastLogin(ctx context.Context, id string) error
	HasRole(ctx context.Context, id string, role Role) (bool, error)
	List(ctx context.Context, limit, offset int) ([]*User, error)
	Count(ctx context.Context) (int, error)
}
