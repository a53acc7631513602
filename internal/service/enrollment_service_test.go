package service

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"eventsite-service/internal/model"
	"eventsite-service/internal/repository/postgres"
)

type fakeEnrollmentRepo struct {
	mu   sync.Mutex
	rows map[string]*model.Enrollment
	seq  int
}

func newFakeEnrollmentRepo() *fakeEnrollmentRepo {
	return &fakeEnrollmentRepo{rows: make(map[string]*model.Enrollment)}
}

func (f *fakeEnrollmentRepo) Create(_ context.Context, e *model.Enrollment) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.rows {
		if r.UserID == e.UserID && r.CourseID == e.CourseID && r.Status == e.Status {
			return postgres.ErrConflict
		}
	}
	f.seq++
	e.ID = fmt.Sprintf("enr-%d", f.seq)
	e.CreatedAt = time.Now().UTC()
	clone := *e
	f.rows[e.ID] = &clone
	return nil
}

func (f *fakeEnrollmentRepo) GetByID(_ context.Context, id string) (*model.Enrollment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.rows[id]
	if !ok {
		return nil, postgres.ErrNoRows
	}
	clone := *r
	return &clone, nil
}

func (f *fakeEnrollmentRepo) ListByUser(_ context.Context, userID string, status model.EnrollmentStatus) ([]*model.Enrollment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*model.Enrollment
	for _, r := range f.rows {
		if r.UserID == userID && r.Status == status {
			clone := *r
			out = append(out, &clone)
		}
	}
	return out, nil
}

func (f *fakeEnrollmentRepo) ListAll(_ context.Context, _, _ int) ([]*model.Enrollment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*model.Enrollment
	for _, r := range f.rows {
		clone := *r
		out = append(out, &clone)
	}
	return out, nil
}

func (f *fakeEnrollmentRepo) UpdateStatus(_ context.Context, id string, status model.EnrollmentStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.rows[id]
	if !ok {
		return postgres.ErrNoRows
	}
	r.Status = status
	return nil
}

func (f *fakeEnrollmentRepo) Delete(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.rows[id]; !ok {
		return postgres.ErrNoRows
	}
	delete(f.rows, id)
	return nil
}

func (f *fakeEnrollmentRepo) Count(_ context.Context) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.rows), nil
}

func newEnrollmentFixture(t *testing.T) (*EnrollmentService, *fakeCourseRepo, *fakeEnrollmentRepo, *fakeSettingsRepo) {
	t.Helper()
	courses := newFakeCourseRepo()
	enrollments := newFakeEnrollmentRepo()
	settings := newFakeSettingsRepo()
	svc := NewEnrollmentService(enrollments, courses, settings)
	return svc, courses, enrollments, settings
}

func seedCourse(t *testing.T, courses *fakeCourseRepo, published bool) *model.Course {
	t.Helper()
	course := &model.Course{Title: "Go Workshop", IsPublished: published}
	require.NoError(t, courses.Create(context.Background(), course))
	return course
}

func TestAddToCart(t *testing.T) {
	svc, courses, _, _ := newEnrollmentFixture(t)
	course := seedCourse(t, courses, true)
	ctx := context.Background()

	item, err := svc.AddToCart(ctx, "user-1", course.ID)
	require.NoError(t, err)
	assert.Equal(t, model.EnrollmentStatusCart, item.Status)

	// Adding the same course twice is a conflict.
	_, err = svc.AddToCart(ctx, "user-1", course.ID)
	assert.ErrorIs(t, err, ErrConflict)
}

func TestAddToCart_UnpublishedOrMissing(t *testing.T) {
	svc, courses, _, _ := newEnrollmentFixture(t)
	draft := seedCourse(t, courses, false)
	ctx := context.Background()

	_, err := svc.AddToCart(ctx, "user-1", draft.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = svc.AddToCart(ctx, "user-1", "no-such-course")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRemoveFromCart_OwnershipEnforced(t *testing.T) {
	svc, courses, _, _ := newEnrollmentFixture(t)
	course := seedCourse(t, courses, true)
	ctx := context.Background()

	item, err := svc.AddToCart(ctx, "user-1", course.ID)
	require.NoError(t, err)

	assert.ErrorIs(t, svc.RemoveFromCart(ctx, "user-2", item.ID), ErrForbidden)
	assert.NoError(t, svc.RemoveFromCart(ctx, "user-1", item.ID))
	assert.ErrorIs(t, svc.RemoveFromCart(ctx, "user-1", item.ID), ErrNotFound)
}

func TestCheckout(t *testing.T) {
	svc, courses, _, _ := newEnrollmentFixture(t)
	ctx := context.Background()

	first := seedCourse(t, courses, true)
	second := &model.Course{Title: "Rust Workshop", IsPublished: true}
	require.NoError(t, courses.Create(ctx, second))

	_, err := svc.AddToCart(ctx, "user-1", first.ID)
	require.NoError(t, err)
	_, err = svc.AddToCart(ctx, "user-1", second.ID)
	require.NoError(t, err)

	confirmed, err := svc.Checkout(ctx, "user-1")
	require.NoError(t, err)
	assert.Len(t, confirmed, 2)
	for _, e := range confirmed {
		assert.Equal(t, model.EnrollmentStatusEnrolled, e.Status)
	}

	cart, err := svc.ListCart(ctx, "user-1")
	require.NoError(t, err)
	assert.Empty(t, cart)

	enrolled, err := svc.ListEnrollments(ctx, "user-1")
	require.NoError(t, err)
	assert.Len(t, enrolled, 2)
}

func TestCheckout_EmptyCart(t *testing.T) {
	svc, _, _, _ := newEnrollmentFixture(t)

	_, err := svc.Checkout(context.Background(), "user-1")
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestCheckout_RegistrationClosed(t *testing.T) {
	svc, courses, _, settings := newEnrollmentFixture(t)
	ctx := context.Background()

	course := seedCourse(t, courses, true)
	_, err := svc.AddToCart(ctx, "user-1", course.ID)
	require.NoError(t, err)

	require.NoError(t, settings.Upsert(ctx, &model.Setting{
		Key: model.SettingRegistrationOpen, Value: "false",
	}))

	_, err = svc.Checkout(ctx, "user-1")
	assert.ErrorIs(t, err, ErrForbidden)

	// Reopening lets the same cart through.
	require.NoError(t, settings.Upsert(ctx, &model.Setting{
		Key: model.SettingRegistrationOpen, Value: "true",
	}))
	confirmed, err := svc.Checkout(ctx, "user-1")
	require.NoError(t, err)
	assert.Len(t, confirmed, 1)
}

func TestCancelEnrollment(t *testing.T) {
	svc, courses, _, _ := newEnrollmentFixture(t)
	ctx := context.Background()

	course := seedCourse(t, courses, true)
	item, err := svc.AddToCart(ctx, "user-1", course.ID)
	require.NoError(t, err)

	// Cart items cannot be cancelled, only removed.
	assert.ErrorIs(t, svc.CancelEnrollment(ctx, "user-1", item.ID), ErrConflict)

	_, err = svc.Checkout(ctx, "user-1")
	require.NoError(t, err)

	assert.ErrorIs(t, svc.CancelEnrollment(ctx, "user-2", item.ID), ErrForbidden)
	assert.NoError(t, svc.CancelEnrollment(ctx, "user-1", item.ID))
	assert.ErrorIs(t, svc.CancelEnrollment(ctx, "user-1", item.ID), ErrConflict)
}
