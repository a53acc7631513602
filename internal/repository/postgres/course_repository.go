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

type CourseRepository struct {
	db DB
}

func NewCourseRepository(db DB) *CourseRepository {
	return &CourseRepository{db: db}
}

var _ model.CourseRepository = (*CourseRepository)(nil)

const courseColumns = `id, title, description, instructor, price, capacity, is_published, created_at, updated_at`

func (r *CourseRepository) Create(ctx context.Context, course *model.Course) error {
	if course.ID == "" {
		course.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	course.CreatedAt = now
	course.UpdatedAt = now

	_, err := r.db.Exec(ctx,
		`INSERT INTO courses (id, title, description, instructor, price, capacity, is_published, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		course.ID, course.Title, course.Description, course.Instructor,
		course.Price, course.Capacity, course.IsPublished,
		course.CreatedAt, course.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create course: %w", err)
	}
	return nil
}

func (r *CourseRepository) GetByID(ctx context.Context, id string) (*model.Course, error) {
	return r.scanOne(r.db.QueryRow(ctx,
		`SELECT `+courseColumns+` FROM courses WHERE id = $1`, id))
}

func (r *CourseRepository) List(ctx context.Context, publishedOnly bool, limit, offset int) ([]*model.Course, error) {
	query := `SELECT ` + courseColumns + ` FROM courses`
	if publishedOnly {
		query += ` WHERE is_published = true`
	}
	query += ` ORDER BY created_at DESC LIMIT $1 OFFSET $2`

	rows, err := r.db.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list courses: %w", err)
	}
	defer rows.Close()

	return r.scanMany(rows)
}

// Search is the SQL fallback used when the search index is unavailable.
func (r *CourseRepository) Search(ctx context.Context, query string, limit int) ([]*model.Course, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+courseColumns+` FROM courses
		 WHERE is_published = true
		   AND (title ILIKE '%' || $1 || '%' OR description ILIKE '%' || $1 || '%' OR instructor ILIKE '%' || $1 || '%')
		 ORDER BY created_at DESC LIMIT $2`,
		query, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to search courses: %w", err)
	}
	defer rows.Close()

	return r.scanMany(rows)
}

func (r *CourseRepository) Update(ctx context.Context, course *model.Course) error {
	course.UpdatedAt = time.Now().UTC()
	tag, err := r.db.Exec(ctx,
		`UPDATE courses SET title = $1, description = $2, instructor = $3, price = $4, capacity = $5, is_published = $6, updated_at = $7
		 WHERE id = $8`,
		course.Title, course.Description, course.Instructor,
		course.Price, course.Capacity, course.IsPublished,
		course.UpdatedAt, course.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update course: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNoRows
	}
	return nil
}

func (r *CourseRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM courses WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete course: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNoRows
	}
	return nil
}

func (r *CourseRepository) Count(ctx context.Context) (int, error) {
	var count int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM courses`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count courses: %w", err)
	}
	return count, nil
}

func (r *CourseRepository) scanOne(row pgx.Row) (*model.Course, error) {
	course := &model.Course{}
	err := row.Scan(
		&course.ID, &course.Title, &course.Description, &course.Instructor,
		&course.Price, &course.Capacity, &course.IsPublished,
		&course.CreatedAt, &course.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNoRows
		}
		return nil, fmt.Errorf("failed to scan course: %w", err)
	}
	return course, nil
}

func (r *CourseRepository) scanMany(rows pgx.Rows) ([]*model.Course, error) {
	var courses []*model.Course
	for rows.Next() {
		course, err := r.scanOne(rows)
		if err != nil {
			return nil, err
		}
		courses = append(courses, course)
	}
	return courses, rows.Err()
}
