package service

import (
	"context"
	"errors"
	"strconv"

	"eventsite-service/internal/model"
	"eventsite-service/internal/repository/postgres"
	"eventsite-service/internal/util"
)

// EnrollmentService manages the cart and checkout flow. A course moves
// user-side through cart -> enrolled, and either state can be cancelled.
type EnrollmentService struct {
	enrollments model.EnrollmentRepository
	courses     model.CourseRepository
	settings    model.SettingsRepository
}

func NewEnrollmentService(
	enrollments model.EnrollmentRepository,
	courses model.CourseRepository,
	settings model.SettingsRepository,
) *EnrollmentService {
	return &EnrollmentService{
		enrollments: enrollments,
		courses:     courses,
		settings:    settings,
	}
}

// AddToCart puts a published course in the user's cart. Duplicate cart rows
// for the same user and course are rejected by a unique constraint.
func (s *EnrollmentService) AddToCart(ctx context.Context, userID, courseID string) (*model.Enrollment, error) {
	course, err := s.courses.GetByID(ctx, courseID)
	if err != nil {
		if errors.Is(err, postgres.ErrNoRows) {
			return nil, ErrNotFound
		}
		util.Error("failed to load course for cart", util.ErrorField(err))
		return nil, ErrServer
	}
	if !course.IsPublished {
		return nil, ErrNotFound
	}

	enrollment := &model.Enrollment{
		UserID:   userID,
		CourseID: courseID,
		Status:   model.EnrollmentStatusCart,
	}
	if err := s.enrollments.Create(ctx, enrollment); err != nil {
		if errors.Is(err, postgres.ErrConflict) {
			return nil, ErrConflict
		}
		util.Error("failed to add cart item", util.ErrorField(err))
		return nil, ErrServer
	}
	return enrollment, nil
}

// ListCart returns the user's open cart items.
func (s *EnrollmentService) ListCart(ctx context.Context, userID string) ([]*model.Enrollment, error) {
	items, err := s.enrollments.ListByUser(ctx, userID, model.EnrollmentStatusCart)
	if err != nil {
		util.Error("failed to list cart", util.ErrorField(err))
		return nil, ErrServer
	}
	return items, nil
}

// RemoveFromCart deletes a cart row. Only the owning user may remove it,
// and only while it is still a cart item.
func (s *EnrollmentService) RemoveFromCart(ctx context.Context, userID, enrollmentID string) error {
	enrollment, err := s.enrollments.GetByID(ctx, enrollmentID)
	if err != nil {
		if errors.Is(err, postgres.ErrNoRows) {
			return ErrNotFound
		}
		util.Error("failed to load cart item", util.ErrorField(err))
		return ErrServer
	}
	if enrollment.UserID != userID {
		return ErrForbidden
	}
	if enrollment.Status != model.EnrollmentStatusCart {
		return ErrConflict
	}
	if err := s.enrollments.Delete(ctx, enrollmentID); err != nil {
		util.Error("failed to remove cart item", util.ErrorField(err))
		return ErrServer
	}
	return nil
}

// Checkout confirms every cart item as an enrollment. Registration must be
// open site-wide for checkout to proceed.
func (s *EnrollmentService) Checkout(ctx context.Context, userID string) ([]*model.Enrollment, error) {
	open, err := s.registrationOpen(ctx)
	if err != nil {
		return nil, err
	}
	if !open {
		return nil, ErrForbidden
	}

	items, err := s.enrollments.ListByUser(ctx, userID, model.EnrollmentStatusCart)
	if err != nil {
		util.Error("failed to list cart for checkout", util.ErrorField(err))
		return nil, ErrServer
	}
	if len(items) == 0 {
		return nil, ErrInvalidInput
	}

	for _, item := range items {
		if err := s.enrollments.UpdateStatus(ctx, item.ID, model.EnrollmentStatusEnrolled); err != nil {
			util.Error("failed to confirm enrollment", util.ErrorField(err))
			return nil, ErrServer
		}
		item.Status = model.EnrollmentStatusEnrolled
	}
	return items, nil
}

// ListEnrollments returns the user's confirmed enrollments.
func (s *EnrollmentService) ListEnrollments(ctx context.Context, userID string) ([]*model.Enrollment, error) {
	items, err := s.enrollments.ListByUser(ctx, userID, model.EnrollmentStatusEnrolled)
	if err != nil {
		util.Error("failed to list enrollments", util.ErrorField(err))
		return nil, ErrServer
	}
	return items, nil
}

// CancelEnrollment moves a confirmed enrollment to cancelled.
func (s *EnrollmentService) CancelEnrollment(ctx context.Context, userID, enrollmentID string) error {
	enrollment, err := s.enrollments.GetByID(ctx, enrollmentID)
	if err != nil {
		if errors.Is(err, postgres.ErrNoRows) {
			return ErrNotFound
		}
		util.Error("failed to load enrollment", util.ErrorField(err))
		return ErrServer
	}
	if enrollment.UserID != userID {
		return ErrForbidden
	}
	if enrollment.Status != model.EnrollmentStatusEnrolled {
		return ErrConflict
	}
	if err := s.enrollments.UpdateStatus(ctx, enrollmentID, model.EnrollmentStatusCancelled); err != nil {
		util.Error("failed to cancel enrollment", util.ErrorField(err))
		return ErrServer
	}
	return nil
}

func (s *EnrollmentService) registrationOpen(ctx context.Context) (bool, error) {
	setting, err := s.settings.Get(ctx, model.SettingRegistrationOpen)
	if err != nil {
		if errors.Is(err, postgres.ErrNoRows) {
			return true, nil // unset means open
		}
		util.Error("failed to read registration setting", util.ErrorField(err))
		return false, ErrServer
	}
	open, err := strconv.ParseBool(setting.Value)
	if err != nil {
		return true, nil
	}
	return open, nil
}
