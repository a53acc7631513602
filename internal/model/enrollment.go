package model

import (
	"context"
	"time"
)

// EnrollmentStatus tracks a cart item through checkout.
type EnrollmentStatus string

const (
	EnrollmentStatusCart      EnrollmentStatus = "cart"
	EnrollmentStatusEnrolled  EnrollmentStatus = "enrolled"
	EnrollmentStatusCancelled EnrollmentStatus = "cancelled"
)

// Enrollment links a user to a course, first as a cart item and then as a
// confirmed enrollment.
type Enrollment struct {
	ID        string           `json:"id" db:"id"`
	UserID    string           `json:"user_id" db:"user_id"`
	CourseID  string           `json:"course_id" db:"course_id"`
	Status    EnrollmentStatus `json:"status" db:"status"`
	CreatedAt time.Time        `json:"created_at" db:"created_at"`
	UpdatedAt time.Time        `json:"updated_at" db:"updated_at"`
}

type EnrollmentRepository interface {
	Create(ctx context.Context, e *Enrollment) error
	GetByID(ctx context.Context, id string) (*Enrollment, error)
	ListByUser(ctx context.Context, userID string, status EnrollmentStatus) ([]*Enrollment, error)
	ListAll(ctx context.Context, limit, offset int) ([]*Enrollment, error)
	UpdateStatus(ctx context.Context, id string, status EnrollmentStatus) error
	Delete(ctx context.Context, id string) error
	Count(ctx context.Context) (int, error)
}
