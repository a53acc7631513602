package model

import (
	"context"
	"time"
)

// Course is a public catalog entry users can enroll in.
type Course struct {
	ID          string    `json:"id" db:"id"`
	Title       string    `json:"title" db:"title"`
	Description string    `json:"description" db:"description"`
	Instructor  string    `json:"instructor" db:"instructor"`
	Price       int64     `json:"price" db:"price"` // smallest currency unit
	Capacity    int       `json:"capacity" db:"capacity"`
	IsPublished bool      `json:"is_published" db:"is_published"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time `json:"updated_at" db:"updated_at"`
}

type CourseRepository interface {
	Create(ctx context.Context, course *Course) error
	GetByID(ctx context.Context, id string) (*Course, error)
	List(ctx context.Context, publishedOnly bool, limit, offset int) ([]*Course, error)
	Search(ctx context.Context, query string, limit int) ([]*Course, error)
	Update(ctx context.Context, course *Course) error
	Delete(ctx context.Context, id string) error
	Count(ctx context.Context) (int, error)
}

// GalleryItem is an image reference with a caption; storage of the file
// itself lives outside this service.
type GalleryItem struct {
	ID        string    `json:"id" db:"id"`
	ImageURL  string    `json:"image_url" db:"image_url"`
	Caption   string    `json:"caption" db:"caption"`
	SortOrder int       `json:"sort_order" db:"sort_order"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

type GalleryRepository interface {
	Create(ctx context.Context, item *GalleryItem) error
	List(ctx context.Context) ([]*GalleryItem, error)
	Delete(ctx context.Context, id string) error
}

// ScheduleEntry is one slot in the multi-day event schedule.
type ScheduleEntry struct {
	ID        string    `json:"id" db:"id"`
	Day       int       `json:"day" db:"day"` // 1-based event day
	StartTime string    `json:"start_time" db:"start_time"`
	EndTime   string    `json:"end_time" db:"end_time"`
	Title     string    `json:"title" db:"title"`
	Venue     string    `json:"venue" db:"venue"`
	Speaker   string    `json:"speaker" db:"speaker"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

type ScheduleRepository interface {
	Create(ctx context.Context, entry *ScheduleEntry) error
	ListByDay(ctx context.Context, day int) ([]*ScheduleEntry, error)
	ListAll(ctx context.Context) ([]*ScheduleEntry, error)
	Update(ctx context.Context, entry *ScheduleEntry) error
	Delete(ctx context.Context, id string) error
}

// SettingKey is the closed set of recognized site settings. Unknown keys are
// rejected at the service layer instead of accepting an open string bag.
type SettingKey string

const (
	SettingSiteTitle          SettingKey = "site_title"
	SettingContactEmail       SettingKey = "contact_email"
	SettingContactPhone       SettingKey = "contact_phone"
	SettingRegistrationOpen   SettingKey = "registration_open"
	SettingEventStartDate     SettingKey = "event_start_date"
	SettingEventDays          SettingKey = "event_days"
	SettingHeroImageURL       SettingKey = "hero_image_url"
	SettingEnrollmentDeadline SettingKey = "enrollment_deadline"
)

// KnownSettingKeys lists every key the settings surface accepts.
var KnownSettingKeys = []SettingKey{
	SettingSiteTitle,
	SettingContactEmail,
	SettingContactPhone,
	SettingRegistrationOpen,
	SettingEventStartDate,
	SettingEventDays,
	SettingHeroImageURL,
	SettingEnrollmentDeadline,
}

type Setting struct {
	Key       SettingKey `json:"key" db:"key"`
	Value     string     `json:"value" db:"value"`
	UpdatedAt time.Time  `json:"updated_at" db:"updated_at"`
}

type SettingsRepository interface {
	Upsert(ctx context.Context, setting *Setting) error
	Get(ctx context.Context, key SettingKey) (*Setting, error)
	List(ctx context.Context) ([]*Setting, error)
}
