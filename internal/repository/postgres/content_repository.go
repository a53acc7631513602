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

// GalleryRepository persists gallery image references.
type GalleryRepository struct {
	db DB
}

func NewGalleryRepository(db DB) *GalleryRepository {
	return &GalleryRepository{db: db}
}

var _ model.GalleryRepository = (*GalleryRepository)(nil)

func (r *GalleryRepository) Create(ctx context.Context, item *model.GalleryItem) error {
	if item.ID == "" {
		item.ID = uuid.New().String()
	}
	item.CreatedAt = time.Now().UTC()

	_, err := r.db.Exec(ctx,
		`INSERT INTO gallery_items (id, image_url, caption, sort_order, created_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		item.ID, item.ImageURL, item.Caption, item.SortOrder, item.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create gallery item: %w", err)
	}
	return nil
}

func (r *GalleryRepository) List(ctx context.Context) ([]*model.GalleryItem, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, image_url, caption, sort_order, created_at
		 FROM gallery_items ORDER BY sort_order ASC, created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list gallery items: %w", err)
	}
	defer rows.Close()

	var items []*model.GalleryItem
	for rows.Next() {
		item := &model.GalleryItem{}
		if err := rows.Scan(&item.ID, &item.ImageURL, &item.Caption, &item.SortOrder, &item.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan gallery item: %w", err)
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func (r *GalleryRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM gallery_items WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete gallery item: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNoRows
	}
	return nil
}

// ScheduleRepository persists the multi-day event schedule.
type ScheduleRepository struct {
	db DB
}

func NewScheduleRepository(db DB) *ScheduleRepository {
	return &ScheduleRepository{db: db}
}

var _ model.ScheduleRepository = (*ScheduleRepository)(nil)

const scheduleColumns = `id, day, start_time, end_time, title, venue, speaker, created_at`

func (r *ScheduleRepository) Create(ctx context.Context, entry *model.ScheduleEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	entry.CreatedAt = time.Now().UTC()

	_, err := r.db.Exec(ctx,
		`INSERT INTO schedule_entries (id, day, start_time, end_time, title, venue, speaker, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		entry.ID, entry.Day, entry.StartTime, entry.EndTime,
		entry.Title, entry.Venue, entry.Speaker, entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create schedule entry: %w", err)
	}
	return nil
}

func (r *ScheduleRepository) ListByDay(ctx context.Context, day int) ([]*model.ScheduleEntry, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+scheduleColumns+` FROM schedule_entries WHERE day = $1 ORDER BY start_time ASC`, day)
	if err != nil {
		return nil, fmt.Errorf("failed to list schedule entries: %w", err)
	}
	defer rows.Close()
	return r.scanMany(rows)
}

func (r *ScheduleRepository) ListAll(ctx context.Context) ([]*model.ScheduleEntry, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+scheduleColumns+` FROM schedule_entries ORDER BY day ASC, start_time ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list schedule entries: %w", err)
	}
	defer rows.Close()
	return r.scanMany(rows)
}

func (r *ScheduleRepository) Update(ctx context.Context, entry *model.ScheduleEntry) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE schedule_entries SET day = $1, start_time = $2, end_time = $3, title = $4, venue = $5, speaker = $6
		 WHERE id = $7`,
		entry.Day, entry.StartTime, entry.EndTime, entry.Title, entry.Venue, entry.Speaker, entry.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update schedule entry: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNoRows
	}
	return nil
}

func (r *ScheduleRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM schedule_entries WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete schedule entry: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNoRows
	}
	return nil
}

func (r *ScheduleRepository) scanMany(rows pgx.Rows) ([]*model.ScheduleEntry, error) {
	var entries []*model.ScheduleEntry
	for rows.Next() {
		entry := &model.ScheduleEntry{}
		if err := rows.Scan(
			&entry.ID, &entry.Day, &entry.StartTime, &entry.EndTime,
			&entry.Title, &entry.Venue, &entry.Speaker, &entry.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan schedule entry: %w", err)
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// SettingsRepository persists the typed site settings map.
type SettingsRepository struct {
	db DB
}

func NewSettingsRepository(db DB) *SettingsRepository {
	return &SettingsRepository{db: db}
}

var _ model.SettingsRepository = (*SettingsRepository)(nil)

func (r *SettingsRepository) Upsert(ctx context.Context, setting *model.Setting) error {
	setting.UpdatedAt = time.Now().UTC()
	_, err := r.db.Exec(ctx,
		`INSERT INTO settings (key, value, updated_at) VALUES ($1, $2, $3)
		 ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = EXCLUDED.updated_at`,
		setting.Key, setting.Value, setting.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert setting: %w", err)
	}
	return nil
}

func (r *SettingsRepository) Get(ctx context.Context, key model.SettingKey) (*model.Setting, error) {
	setting := &model.Setting{}
	err := r.db.QueryRow(ctx,
		`SELECT key, value, updated_at FROM settings WHERE key = $1`, key,
	).Scan(&setting.Key, &setting.Value, &setting.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNoRows
		}
		return nil, fmt.Errorf("failed to get setting: %w", err)
	}
	return setting, nil
}

func (r *SettingsRepository) List(ctx context.Context) ([]*model.Setting, error) {
	rows, err := r.db.Query(ctx,
		`SELECT key, value, updated_at FROM settings ORDER BY key ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list settings: %w", err)
	}
	defer rows.Close()

	var settings []*model.Setting
	for rows.Next() {
		setting := &model.Setting{}
		if err := rows.Scan(&setting.Key, &setting.Value, &setting.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan setting: %w", err)
		}
		settings = append(settings, setting)
	}
	return settings, rows.Err()
}
