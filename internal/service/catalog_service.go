package service

import (
	"context"
	"errors"
	"net/mail"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"eventsite-service/internal/model"
	"eventsite-service/internal/repository/postgres"
	"eventsite-service/internal/util"
)

// CourseSearcher is the full-text index over courses. Searches that fail
// fall back to the database.
type CourseSearcher interface {
	IndexCourse(ctx context.Context, course *model.Course) error
	DeleteCourse(ctx context.Context, courseID string) error
	SearchCourses(ctx context.Context, query string, limit int) ([]string, error)
}

// CatalogService manages the public site content: courses, gallery, the
// event schedule, and the typed settings map.
type CatalogService struct {
	courses   model.CourseRepository
	gallery   model.GalleryRepository
	schedules model.ScheduleRepository
	settings  model.SettingsRepository
	searcher  CourseSearcher
}

func NewCatalogService(
	courses model.CourseRepository,
	gallery model.GalleryRepository,
	schedules model.ScheduleRepository,
	settings model.SettingsRepository,
	searcher CourseSearcher,
) *CatalogService {
	return &CatalogService{
		courses:   courses,
		gallery:   gallery,
		schedules: schedules,
		settings:  settings,
		searcher:  searcher,
	}
}

func (s *CatalogService) CreateCourse(ctx context.Context, course *model.Course) error {
	if err := validateCourse(course); err != nil {
		return err
	}
	if err := s.courses.Create(ctx, course); err != nil {
		util.Error("failed to create course", util.ErrorField(err))
		return ErrServer
	}
	s.indexCourse(ctx, course)
	return nil
}

func (s *CatalogService) GetCourse(ctx context.Context, id string) (*model.Course, error) {
	course, err := s.courses.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, postgres.ErrNoRows) {
			return nil, ErrNotFound
		}
		util.Error("failed to get course", util.ErrorField(err))
		return nil, ErrServer
	}
	return course, nil
}

// ListCourses returns the catalog. Public callers see published courses
// only; admins see everything.
func (s *CatalogService) ListCourses(ctx context.Context, includeUnpublished bool, limit, offset int) ([]*model.Course, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	courses, err := s.courses.List(ctx, !includeUnpublished, limit, offset)
	if err != nil {
		util.Error("failed to list courses", util.ErrorField(err))
		return nil, ErrServer
	}
	return courses, nil
}

// SearchCourses queries the full-text index and hydrates hits from the
// database. When the index is unavailable the database ILIKE search serves
// the query instead.
func (s *CatalogService) SearchCourses(ctx context.Context, query string, limit int) ([]*model.Course, error) {
	query = strings.TrimSpace(util.SanitizeInput(query))
	if query == "" {
		return nil, ErrInvalidInput
	}
	if limit <= 0 || limit > 50 {
		limit = 20
	}

	if s.searcher != nil {
		ids, err := s.searcher.SearchCourses(ctx, query, limit)
		if err == nil {
			return s.hydrateCourses(ctx, ids), nil
		}
		util.Warn("search index unavailable, falling back to database", util.ErrorField(err))
	}

	courses, err := s.courses.Search(ctx, query, limit)
	if err != nil {
		util.Error("failed to search courses", util.ErrorField(err))
		return nil, ErrServer
	}
	return courses, nil
}

func (s *CatalogService) UpdateCourse(ctx context.Context, course *model.Course) error {
	if err := validateCourse(course); err != nil {
		return err
	}
	if err := s.courses.Update(ctx, course); err != nil {
		if errors.Is(err, postgres.ErrNoRows) {
			return ErrNotFound
		}
		util.Error("failed to update course", util.ErrorField(err))
		return ErrServer
	}
	s.indexCourse(ctx, course)
	return nil
}

func (s *CatalogService) DeleteCourse(ctx context.Context, id string) error {
	if err := s.courses.Delete(ctx, id); err != nil {
		if errors.Is(err, postgres.ErrNoRows) {
			return ErrNotFound
		}
		util.Error("failed to delete course", util.ErrorField(err))
		return ErrServer
	}
	if s.searcher != nil {
		if err := s.searcher.DeleteCourse(ctx, id); err != nil {
			util.Warn("failed to remove course from index", zap.String("course_id", id), util.ErrorField(err))
		}
	}
	return nil
}

func (s *CatalogService) AddGalleryItem(ctx context.Context, item *model.GalleryItem) error {
	if strings.TrimSpace(item.ImageURL) == "" {
		return ErrInvalidInput
	}
	if err := s.gallery.Create(ctx, item); err != nil {
		util.Error("failed to add gallery item", util.ErrorField(err))
		return ErrServer
	}
	return nil
}

func (s *CatalogService) ListGallery(ctx context.Context) ([]*model.GalleryItem, error) {
	items, err := s.gallery.List(ctx)
	if err != nil {
		util.Error("failed to list gallery", util.ErrorField(err))
		return nil, ErrServer
	}
	return items, nil
}

func (s *CatalogService) DeleteGalleryItem(ctx context.Context, id string) error {
	if err := s.gallery.Delete(ctx, id); err != nil {
		if errors.Is(err, postgres.ErrNoRows) {
			return ErrNotFound
		}
		util.Error("failed to delete gallery item", util.ErrorField(err))
		return ErrServer
	}
	return nil
}

func (s *CatalogService) CreateScheduleEntry(ctx context.Context, entry *model.ScheduleEntry) error {
	if err := validateScheduleEntry(entry); err != nil {
		return err
	}
	if err := s.schedules.Create(ctx, entry); err != nil {
		util.Error("failed to create schedule entry", util.ErrorField(err))
		return ErrServer
	}
	return nil
}

// GetSchedule returns entries for one day, or for every day when day is 0.
func (s *CatalogService) GetSchedule(ctx context.Context, day int) ([]*model.ScheduleEntry, error) {
	var (
		entries []*model.ScheduleEntry
		err     error
	)
	if day > 0 {
		entries, err = s.schedules.ListByDay(ctx, day)
	} else {
		entries, err = s.schedules.ListAll(ctx)
	}
	if err != nil {
		util.Error("failed to load schedule", util.ErrorField(err))
		return nil, ErrServer
	}
	return entries, nil
}

func (s *CatalogService) UpdateScheduleEntry(ctx context.Context, entry *model.ScheduleEntry) error {
	if err := validateScheduleEntry(entry); err != nil {
		return err
	}
	if err := s.schedules.Update(ctx, entry); err != nil {
		if errors.Is(err, postgres.ErrNoRows) {
			return ErrNotFound
		}
		util.Error("failed to update schedule entry", util.ErrorField(err))
		return ErrServer
	}
	return nil
}

func (s *CatalogService) DeleteScheduleEntry(ctx context.Context, id string) error {
	if err := s.schedules.Delete(ctx, id); err != nil {
		if errors.Is(err, postgres.ErrNoRows) {
			return ErrNotFound
		}
		util.Error("failed to delete schedule entry", util.ErrorField(err))
		return ErrServer
	}
	return nil
}

// GetSettings returns every stored setting keyed by name.
func (s *CatalogService) GetSettings(ctx context.Context) (map[model.SettingKey]string, error) {
	settings, err := s.settings.List(ctx)
	if err != nil {
		util.Error("failed to load settings", util.ErrorField(err))
		return nil, ErrServer
	}
	out := make(map[model.SettingKey]string, len(settings))
	for _, setting := range settings {
		out[setting.Key] = setting.Value
	}
	return out, nil
}

// UpdateSettings validates and upserts the given key/value pairs. Unknown
// keys and type-invalid values reject the whole batch.
func (s *CatalogService) UpdateSettings(ctx context.Context, values map[model.SettingKey]string) error {
	if len(values) == 0 {
		return ErrInvalidInput
	}
	for key, value := range values {
		if err := validateSetting(key, value); err != nil {
			return err
		}
	}
	for key, value := range values {
		if err := s.settings.Upsert(ctx, &model.Setting{Key: key, Value: value}); err != nil {
			util.Error("failed to upsert setting", zap.String("key", string(key)), util.ErrorField(err))
			return ErrServer
		}
	}
	return nil
}

func (s *CatalogService) indexCourse(ctx context.Context, course *model.Course) {
	if s.searcher == nil {
		return
	}
	if err := s.searcher.IndexCourse(ctx, course); err != nil {
		util.Warn("failed to index course", zap.String("course_id", course.ID), util.ErrorField(err))
	}
}

func (s *CatalogService) hydrateCourses(ctx context.Context, ids []string) []*model.Course {
	courses := make([]*model.Course, 0, len(ids))
	for _, id := range ids {
		course, err := s.courses.GetByID(ctx, id)
		if err != nil {
			continue // index may briefly be ahead of the database
		}
		if course.IsPublished {
			courses = append(courses, course)
		}
	}
	return courses
}

func validateCourse(course *model.Course) error {
	if strings.TrimSpace(course.Title) == "" {
		return ErrInvalidInput
	}
	if course.Price < 0 || course.Capacity < 0 {
		return ErrInvalidInput
	}
	return nil
}

func validateScheduleEntry(entry *model.ScheduleEntry) error {
	if entry.Day < 1 {
		return ErrInvalidInput
	}
	if strings.TrimSpace(entry.Title) == "" {
		return ErrInvalidInput
	}
	if _, err := time.Parse("15:04", entry.StartTime); err != nil {
		return ErrInvalidInput
	}
	if _, err := time.Parse("15:04", entry.EndTime); err != nil {
		return ErrInvalidInput
	}
	return nil
}

// validateSetting enforces the closed key set and per-key value types.
func validateSetting(key model.SettingKey, value string) error {
	known := false
	for _, k := range model.KnownSettingKeys {
		if k == key {
			known = true
			break
		}
	}
	if !known {
		return ErrInvalidInput
	}

	switch key {
	case model.SettingRegistrationOpen:
		if _, err := strconv.ParseBool(value); err != nil {
			return ErrInvalidInput
		}
	case model.SettingEventDays:
		days, err := strconv.Atoi(value)
		if err != nil || days < 1 || days > 30 {
			return ErrInvalidInput
		}
	case model.SettingEventStartDate, model.SettingEnrollmentDeadline:
		if _, err := time.Parse("2006-01-02", value); err != nil {
			return ErrInvalidInput
		}
	case model.SettingContactEmail:
		if value != "" {
			if _, err := mail.ParseAddress(value); err != nil {
				return ErrInvalidInput
			}
		}
	case model.SettingContactPhone:
		if value != "" && len(value) > 32 {
			return ErrInvalidInput
		}
	}
	return nil
}
