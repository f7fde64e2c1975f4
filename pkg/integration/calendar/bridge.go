package calendar

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/mklimuk/notepilot/pkg/ai"
	"github.com/mklimuk/notepilot/pkg/db"
	"github.com/mklimuk/notepilot/pkg/logger/slogx"
)

// SkipReason explains why no event was created.
type SkipReason string

const (
	SkipIntegrationDisabled SkipReason = "integration_disabled"
	SkipAutoCreateDisabled  SkipReason = "auto_create_disabled"
	SkipNoEvent             SkipReason = "no_event"
	SkipLowConfidence       SkipReason = "low_confidence"
	SkipNotConfigured       SkipReason = "not_configured"
	SkipFailed              SkipReason = "failed"
)

// Result is the outcome of MaybeCreateEvent. Exactly one of Event and
// Skipped is set.
type Result struct {
	Event   *CreatedEvent
	Skipped SkipReason
	// Err is set when Skipped is SkipFailed.
	Err error
}

// SettingsStore reads per-owner calendar settings.
type SettingsStore interface {
	GetCalendarSettings(ctx context.Context, ownerID string) (*db.CalendarSettings, error)
}

// EventLog records created events.
type EventLog interface {
	InsertCalendarEvent(ctx context.Context, e *db.CalendarEvent) error
}

// Bridge turns event hints into calendar events for owners who opted in.
type Bridge struct {
	api               CalendarAPI
	settings          SettingsStore
	events            EventLog
	defaultCalendarID string
}

// NewBridge creates a new Bridge. api may be nil when no calendar
// credentials are configured; every hint is then skipped.
func NewBridge(api CalendarAPI, settings SettingsStore, events EventLog, defaultCalendarID string) *Bridge {
	if defaultCalendarID == "" {
		defaultCalendarID = "primary"
	}
	return &Bridge{
		api:               api,
		settings:          settings,
		events:            events,
		defaultCalendarID: defaultCalendarID,
	}
}

// MaybeCreateEvent creates an event for hint when the owner's settings and
// the hint allow it. It never returns an error; failures are logged and
// reported in the Result.
func (b *Bridge) MaybeCreateEvent(ctx context.Context, ownerID string, hint ai.EventHint) Result {
	ctx = slogx.WithAttrs(ctx, slogx.OwnerID(ownerID))

	settings, err := b.settings.GetCalendarSettings(ctx, ownerID)
	if err != nil {
		slogx.Warn(ctx, "failed to load calendar settings", slogx.Err(err))
		return Result{Skipped: SkipFailed, Err: err}
	}
	if settings == nil || !settings.IntegrationEnabled {
		return skip(ctx, SkipIntegrationDisabled)
	}
	if !settings.AutoCreateEvents {
		return skip(ctx, SkipAutoCreateDisabled)
	}
	if !hint.HasEvent || strings.TrimSpace(hint.Text) == "" {
		return skip(ctx, SkipNoEvent)
	}
	if hint.Confidence < ai.EventConfidenceThreshold {
		return skip(ctx, SkipLowConfidence)
	}
	if b.api == nil {
		return skip(ctx, SkipNotConfigured)
	}

	calendarID := settings.CalendarID
	if calendarID == "" {
		calendarID = b.defaultCalendarID
	}

	created, err := b.api.QuickAdd(ctx, calendarID, hint.Text)
	if err != nil {
		slogx.Error(ctx, "failed to create calendar event", slogx.Err(err))
		return Result{Skipped: SkipFailed, Err: err}
	}

	loc := ownerLocation(settings.Timezone)
	slogx.Info(ctx, "calendar event created",
		slog.String("event_id", created.ID),
		slog.String("link", created.HTMLLink),
		slog.String("starts", formatIn(created.Start, loc)),
		slog.String("ends", formatIn(created.End, loc)),
	)

	rec := &db.CalendarEvent{
		OwnerID:  ownerID,
		EventID:  created.ID,
		HTMLLink: created.HTMLLink,
		Summary:  created.Summary,
		StartsAt: created.Start,
	}
	if err := b.events.InsertCalendarEvent(ctx, rec); err != nil {
		slogx.Warn(ctx, "failed to record calendar event", slogx.Err(err))
	}
	return Result{Event: &created}
}

func skip(ctx context.Context, reason SkipReason) Result {
	slogx.Debug(ctx, "calendar event skipped", slog.String("reason", string(reason)))
	return Result{Skipped: reason}
}

func ownerLocation(tz string) *time.Location {
	if tz == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return time.UTC
	}
	return loc
}

func formatIn(t *time.Time, loc *time.Location) string {
	if t == nil {
		return ""
	}
	return t.In(loc).Format(time.RFC3339)
}

