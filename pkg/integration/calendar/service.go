package calendar

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/avast/retry-go/v4"
	gcal "google.golang.org/api/calendar/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	googleauth "github.com/mklimuk/notepilot/pkg/integration/google"
	"github.com/mklimuk/notepilot/pkg/logger/slogx"
)

// CreatedEvent is the part of a created calendar event the bridge keeps.
type CreatedEvent struct {
	ID       string
	HTMLLink string
	Summary  string
	Start    *time.Time
	End      *time.Time
}

// CalendarAPI is the interface used by Bridge for testability.
type CalendarAPI interface {
	QuickAdd(ctx context.Context, calendarID, text string) (CreatedEvent, error)
}

// Service wraps the Google Calendar API.
type Service struct {
	srv      *gcal.Service
	attempts uint
	delay    time.Duration
}

// Ensure Service implements CalendarAPI.
var _ CalendarAPI = (*Service)(nil)

// NewService creates a new Calendar service using service account credentials.
func NewService(ctx context.Context, credentialsFile string) (*Service, error) {
	opts, err := googleauth.ClientOptions(ctx, credentialsFile, gcal.CalendarEventsScope)
	if err != nil {
		return nil, fmt.Errorf("failed to authenticate calendar client: %w", err)
	}
	return newService(ctx, opts...)
}

func newService(ctx context.Context, opts ...option.ClientOption) (*Service, error) {
	srv, err := gcal.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create calendar service: %w", err)
	}
	return &Service{srv: srv, attempts: 3, delay: 500 * time.Millisecond}, nil
}

// QuickAdd creates an event from a natural-language description. Rate
// limiting and server errors are retried.
func (s *Service) QuickAdd(ctx context.Context, calendarID, text string) (CreatedEvent, error) {
	var created *gcal.Event
	err := retry.Do(
		func() error {
			ev, err := s.srv.Events.QuickAdd(calendarID, text).Context(ctx).Do()
			if err != nil {
				return err
			}
			created = ev
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(s.attempts),
		retry.Delay(s.delay),
		retry.LastErrorOnly(true),
		retry.RetryIf(isTransient),
		retry.OnRetry(func(attempt uint, err error) {
			slogx.Warn(ctx, "calendar quick add failed, retrying",
				slogx.Err(err),
				slog.Uint64("attempt", uint64(attempt)),
			)
		}),
	)
	if err != nil {
		return CreatedEvent{}, fmt.Errorf("failed to create event: %w", err)
	}
	return toCreatedEvent(created), nil
}

func isTransient(err error) bool {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		return gerr.Code == 429 || gerr.Code >= 500
	}
	return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
}

func toCreatedEvent(item *gcal.Event) CreatedEvent {
	e := CreatedEvent{
		ID:       item.Id,
		HTMLLink: item.HtmlLink,
		Summary:  item.Summary,
	}
	if t, err := parseEventTime(item.Start); err == nil {
		e.Start = &t
	}
	if t, err := parseEventTime(item.End); err == nil {
		e.End = &t
	}
	return e
}

func parseEventTime(edt *gcal.EventDateTime) (time.Time, error) {
	if edt == nil {
		return time.Time{}, fmt.Errorf("nil event datetime")
	}
	if edt.DateTime != "" {
		return time.Parse(time.RFC3339, edt.DateTime)
	}
	if edt.Date != "" {
		return time.Parse("2006-01-02", edt.Date)
	}
	return time.Time{}, fmt.Errorf("empty event datetime")
}
