package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// Repository handles per-owner calendar settings and the calendar event log.
type Repository struct {
	db *DB
}

// NewRepository creates a new Repository
func NewRepository(db *DB) *Repository {
	return &Repository{db: db}
}

// CalendarSettings represents a row in the calendar_settings table
type CalendarSettings struct {
	OwnerID            string    `json:"-"`
	IntegrationEnabled bool      `json:"integration_enabled"`
	AutoCreateEvents   bool      `json:"auto_create_events"`
	Timezone           string    `json:"timezone"`
	CalendarID         string    `json:"calendar_id,omitempty"`
	UpdatedAt          time.Time `json:"updated_at"`
}

// CalendarEvent represents a row in the calendar_events table
type CalendarEvent struct {
	ID        int64      `json:"id"`
	OwnerID   string     `json:"-"`
	EventID   string     `json:"event_id"`
	HTMLLink  string     `json:"html_link,omitempty"`
	Summary   string     `json:"summary"`
	StartsAt  *time.Time `json:"starts_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

// GetCalendarSettings returns the owner's settings, or nil when none were saved.
func (r *Repository) GetCalendarSettings(ctx context.Context, ownerID string) (*CalendarSettings, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT owner_id, integration_enabled, auto_create_events, timezone, calendar_id, updated_at
		FROM calendar_settings
		WHERE owner_id = ?`, ownerID)

	var (
		s         CalendarSettings
		updatedAt int64
	)
	err := row.Scan(&s.OwnerID, &s.IntegrationEnabled, &s.AutoCreateEvents, &s.Timezone, &s.CalendarID, &updatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get calendar settings: %w", err)
	}
	s.UpdatedAt = fromMillis(updatedAt)
	return &s, nil
}

// SaveCalendarSettings creates or replaces the owner's settings.
func (r *Repository) SaveCalendarSettings(ctx context.Context, s *CalendarSettings) error {
	if s.OwnerID == "" {
		return fmt.Errorf("owner id is required")
	}
	if s.Timezone == "" {
		s.Timezone = "UTC"
	}
	if _, err := time.LoadLocation(s.Timezone); err != nil {
		return fmt.Errorf("invalid timezone %q: %w", s.Timezone, err)
	}
	s.UpdatedAt = time.Now().UTC().Truncate(time.Millisecond)

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO calendar_settings (owner_id, integration_enabled, auto_create_events, timezone, calendar_id, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(owner_id) DO UPDATE SET
			integration_enabled = excluded.integration_enabled,
			auto_create_events = excluded.auto_create_events,
			timezone = excluded.timezone,
			calendar_id = excluded.calendar_id,
			updated_at = excluded.updated_at`,
		s.OwnerID, s.IntegrationEnabled, s.AutoCreateEvents, s.Timezone, s.CalendarID, toMillis(s.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to save calendar settings: %w", err)
	}
	return nil
}

// InsertCalendarEvent records an event created on behalf of an owner.
func (r *Repository) InsertCalendarEvent(ctx context.Context, e *CalendarEvent) error {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC().Truncate(time.Millisecond)
	}
	var startsAt any
	if e.StartsAt != nil {
		startsAt = toMillis(*e.StartsAt)
	}
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO calendar_events (owner_id, event_id, html_link, summary, starts_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		e.OwnerID, e.EventID, e.HTMLLink, e.Summary, startsAt, toMillis(e.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to insert calendar event: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to read calendar event id: %w", err)
	}
	e.ID = id
	return nil
}

// ListCalendarEvents returns the owner's recorded events, newest first.
func (r *Repository) ListCalendarEvents(ctx context.Context, ownerID string, limit int) ([]CalendarEvent, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, owner_id, event_id, html_link, summary, starts_at, created_at
		FROM calendar_events
		WHERE owner_id = ?
		ORDER BY created_at DESC, id DESC
		LIMIT ?`, ownerID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list calendar events: %w", err)
	}
	defer rows.Close()

	var events []CalendarEvent
	for rows.Next() {
		var (
			e         CalendarEvent
			startsAt  sql.NullInt64
			createdAt int64
		)
		if err := rows.Scan(&e.ID, &e.OwnerID, &e.EventID, &e.HTMLLink, &e.Summary, &startsAt, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan calendar event: %w", err)
		}
		if startsAt.Valid {
			t := fromMillis(startsAt.Int64)
			e.StartsAt = &t
		}
		e.CreatedAt = fromMillis(createdAt)
		events = append(events, e)
	}
	return events, rows.Err()
}
