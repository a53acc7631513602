package service

import (
	"context"
	"errors"

	"golang.org/x/sync/errgroup"

	"eventsite-service/internal/model"
	"eventsite-service/internal/repository/postgres"
	"eventsite-service/internal/util"
)

// DashboardStats is the admin overview: table counts gathered in parallel.
type DashboardStats struct {
	Users       int `json:"users"`
	Courses     int `json:"courses"`
	Enrollments int `json:"enrollments"`
	PendingOTPs int `json:"pending_otps"`
}

// AdminService serves the admin-only surfaces: dashboard stats and user
// management.
type AdminService struct {
	users       model.UserRepository
	courses     model.CourseRepository
	enrollments model.EnrollmentRepository
	otps        model.OTPRepository
}

func NewAdminService(
	users model.UserRepository,
	courses model.CourseRepository,
	enrollments model.EnrollmentRepository,
	otps model.OTPRepository,
) *AdminService {
	return &AdminService{
		users:       users,
		courses:     courses,
		enrollments: enrollments,
		otps:        otps,
	}
}

// DashboardStats fans the four counts out concurrently; the first failure
// cancels the rest.
func (s *AdminService) DashboardStats(ctx context.Context) (*DashboardStats, error) {
	stats := &DashboardStats{}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		n, err := s.users.Count(gctx)
		stats.Users = n
		return err
	})
	g.Go(func() error {
		n, err := s.courses.Count(gctx)
		stats.Courses = n
		return err
	})
	g.Go(func() error {
		n, err := s.enrollments.Count(gctx)
		stats.Enrollments = n
		return err
	})
	g.Go(func() error {
		n, err := s.otps.CountPending(gctx)
		stats.PendingOTPs = n
		return err
	})

	if err := g.Wait(); err != nil {
		util.Error("failed to gather dashboard stats", util.ErrorField(err))
		return nil, ErrServer
	}
	return stats, nil
}

// ListUsers pages through registered accounts.
func (s *AdminService) ListUsers(ctx context.Context, limit, offset int) ([]*model.User, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	users, err := s.users.List(ctx, limit, offset)
	if err != nil {
		util.Error("failed to list users", util.ErrorField(err))
		return nil, ErrServer
	}
	return users, nil
}

// ListAllEnrollments pages through every enrollment for admin review.
func (s *AdminService) ListAllEnrollments(ctx context.Context, limit, offset int) ([]*model.Enrollment, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	enrollments, err := s.enrollments.ListAll(ctx, limit, offset)
	if err != nil {
		util.Error("failed to list enrollments", util.ErrorField(err))
		return nil, ErrServer
	}
	return enrollments, nil
}

// GetUser loads one account by id.
func (s *AdminService) GetUser(ctx context.Context, id string) (*model.User, error) {
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, postgres.ErrNoRows) {
			return nil, ErrNotFound
		}
		util.Error("failed to get user", util.ErrorField(err))
		return nil, ErrServer
	}
	return user, nil
}
