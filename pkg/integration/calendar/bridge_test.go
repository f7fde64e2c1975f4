package calendar

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/mklimuk/notepilot/pkg/ai"
	"github.com/mklimuk/notepilot/pkg/db"
)

// mockCalendarAPI is a test double for CalendarAPI.
type mockCalendarAPI struct {
	calls []quickAddCall
	err   error
}

type quickAddCall struct {
	CalendarID string
	Text       string
}

func (m *mockCalendarAPI) QuickAdd(_ context.Context, calendarID, text string) (CreatedEvent, error) {
	m.calls = append(m.calls, quickAddCall{CalendarID: calendarID, Text: text})
	if m.err != nil {
		return CreatedEvent{}, m.err
	}
	start := time.Date(2026, 5, 2, 13, 0, 0, 0, time.UTC)
	return CreatedEvent{ID: "evt-1", HTMLLink: "https://calendar/evt-1", Summary: text, Start: &start}, nil
}

func setupRepo(t *testing.T) *db.Repository {
	t.Helper()
	database, err := db.NewDB(context.Background(), db.MemoryPath, 1)
	if err != nil {
		t.Fatalf("failed to create test db: %v", err)
	}
	t.Cleanup(func() { database.Close() })

	if err := database.InitSchema(); err != nil {
		t.Fatalf("failed to init schema: %v", err)
	}
	return db.NewRepository(database)
}

func saveSettings(t *testing.T, repo *db.Repository, s db.CalendarSettings) {
	t.Helper()
	require.NoError(t, repo.SaveCalendarSettings(context.Background(), &s))
}

var confident = ai.EventHint{HasEvent: true, Text: "Dentist tomorrow 3pm", Confidence: 0.9}

func TestBridgeCreatesEvent(t *testing.T) {
	ctx := context.Background()
	repo := setupRepo(t)
	api := &mockCalendarAPI{}
	saveSettings(t, repo, db.CalendarSettings{OwnerID: "owner-a", IntegrationEnabled: true, AutoCreateEvents: true, Timezone: "Europe/Warsaw"})

	res := NewBridge(api, repo, repo, "").MaybeCreateEvent(ctx, "owner-a", confident)
	require.NotNil(t, res.Event)
	require.Empty(t, res.Skipped)
	require.Equal(t, []quickAddCall{{CalendarID: "primary", Text: "Dentist tomorrow 3pm"}}, api.calls)

	events, err := repo.ListCalendarEvents(ctx, "owner-a", 10)
	require.NoError(t, err)
	require.Len(t, events, 1)
	require.Equal(t, "evt-1", events[0].EventID)

	other, err := repo.ListCalendarEvents(ctx, "owner-b", 10)
	require.NoError(t, err)
	require.Empty(t, other)
}

func TestBridgeUsesOwnerCalendar(t *testing.T) {
	repo := setupRepo(t)
	api := &mockCalendarAPI{}
	saveSettings(t, repo, db.CalendarSettings{OwnerID: "owner-a", IntegrationEnabled: true, AutoCreateEvents: true, CalendarID: "work@group"})

	NewBridge(api, repo, repo, "primary").MaybeCreateEvent(context.Background(), "owner-a", confident)
	require.Len(t, api.calls, 1)
	require.Equal(t, "work@group", api.calls[0].CalendarID)
}

func TestBridgePreconditions(t *testing.T) {
	tests := []struct {
		name     string
		settings *db.CalendarSettings
		hint     ai.EventHint
		want     SkipReason
	}{
		{"no settings", nil, confident, SkipIntegrationDisabled},
		{"integration disabled", &db.CalendarSettings{AutoCreateEvents: true}, confident, SkipIntegrationDisabled},
		{"auto create off", &db.CalendarSettings{IntegrationEnabled: true}, confident, SkipAutoCreateDisabled},
		{"no event", &db.CalendarSettings{IntegrationEnabled: true, AutoCreateEvents: true},
			ai.EventHint{HasEvent: false, Text: "x", Confidence: 1}, SkipNoEvent},
		{"below threshold", &db.CalendarSettings{IntegrationEnabled: true, AutoCreateEvents: true},
			ai.EventHint{HasEvent: true, Text: "x", Confidence: 0.69}, SkipLowConfidence},
		// integration check comes first even when the hint is also unusable
		{"order", &db.CalendarSettings{}, ai.EventHint{}, SkipIntegrationDisabled},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := setupRepo(t)
			api := &mockCalendarAPI{}
			if tt.settings != nil {
				s := *tt.settings
				s.OwnerID = "owner-a"
				saveSettings(t, repo, s)
			}

			res := NewBridge(api, repo, repo, "").MaybeCreateEvent(context.Background(), "owner-a", tt.hint)
			require.Equal(t, tt.want, res.Skipped)
			require.Nil(t, res.Event)
			require.Empty(t, api.calls, "no external call for a failed precondition")
		})
	}
}

func TestBridgeThresholdBoundary(t *testing.T) {
	repo := setupRepo(t)
	api := &mockCalendarAPI{}
	saveSettings(t, repo, db.CalendarSettings{OwnerID: "owner-a", IntegrationEnabled: true, AutoCreateEvents: true})

	res := NewBridge(api, repo, repo, "").MaybeCreateEvent(context.Background(), "owner-a",
		ai.EventHint{HasEvent: true, Text: "Standup 9am", Confidence: 0.7})
	require.NotNil(t, res.Event)
}

func TestBridgeFailureIsAbsorbed(t *testing.T) {
	repo := setupRepo(t)
	api := &mockCalendarAPI{err: errors.New("quota exceeded")}
	saveSettings(t, repo, db.CalendarSettings{OwnerID: "owner-a", IntegrationEnabled: true, AutoCreateEvents: true})

	res := NewBridge(api, repo, repo, "").MaybeCreateEvent(context.Background(), "owner-a", confident)
	require.Equal(t, SkipFailed, res.Skipped)
	require.Error(t, res.Err)

	events, err := repo.ListCalendarEvents(context.Background(), "owner-a", 10)
	require.NoError(t, err)
	require.Empty(t, events)
}

func TestBridgeWithoutCredentials(t *testing.T) {
	repo := setupRepo(t)
	saveSettings(t, repo, db.CalendarSettings{OwnerID: "owner-a", IntegrationEnabled: true, AutoCreateEvents: true})

	res := NewBridge(nil, repo, repo, "").MaybeCreateEvent(context.Background(), "owner-a", confident)
	require.Equal(t, SkipNotConfigured, res.Skipped)
}

func TestFormatIn(t *testing.T) {
	ts := time.Date(2026, 5, 2, 13, 0, 0, 0, time.UTC)
	require.Equal(t, "2026-05-02T15:00:00+02:00", formatIn(&ts, ownerLocation("Europe/Warsaw")))
	require.Equal(t, "2026-05-02T13:00:00Z", formatIn(&ts, ownerLocation("Not/AZone")))
	require.Empty(t, formatIn(nil, time.UTC))
}
