package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/mklimuk/notepilot/pkg/ai"
	"github.com/mklimuk/notepilot/pkg/apperr"
	"github.com/mklimuk/notepilot/pkg/capture"
	"github.com/mklimuk/notepilot/pkg/db"
	"github.com/mklimuk/notepilot/pkg/logger/slogx"
	"github.com/mklimuk/notepilot/pkg/note"
	"github.com/mklimuk/notepilot/pkg/projection"
	"github.com/mklimuk/notepilot/pkg/transcribe"
)

// SettingsStore reads and writes per-owner calendar settings.
type SettingsStore interface {
	GetCalendarSettings(ctx context.Context, ownerID string) (*db.CalendarSettings, error)
	SaveCalendarSettings(ctx context.Context, s *db.CalendarSettings) error
}

// Handler holds dependencies for API handlers
type Handler struct {
	Notes    note.Store
	Captures *capture.Hub
	Settings SettingsStore
	// Lists receives note changes made through the API and backs
	// GET /notes/events. Optional.
	Lists *projection.Registry
	// Shutdown ends open event streams when closed
	Shutdown <-chan struct{}
	// MaxBodyBytes bounds uploaded audio
	MaxBodyBytes int64
}

type errorBody struct {
	Code    apperr.Code    `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, apperr.StatusOf(err), map[string]any{"error": toErrorBody(err)})
}

func toErrorBody(err error) errorBody {
	var ae *apperr.Error
	if !errors.As(err, &ae) {
		// unexpected errors are logged, not echoed
		return errorBody{Code: apperr.CodeInternal, Message: "internal error"}
	}
	return errorBody{Code: ae.Code, Message: ae.Message, Details: ae.Details}
}

func decodeJSON(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return apperr.NewInvalidRequest("invalid request body")
	}
	return nil
}

// HandleHealth handles GET /healthz
func (h *Handler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type createNoteRequest struct {
	Content string `json:"content"`
}

// HandleCreateNote handles POST /notes
func (h *Handler) HandleCreateNote(w http.ResponseWriter, r *http.Request) {
	var req createNoteRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	out := h.Captures.For(OwnerFromContext(r.Context())).SubmitText(r.Context(), req.Content)
	if out.Err != nil {
		h.logFailure(r.Context(), out.Err)
		writeError(w, out.Err)
		return
	}
	writeJSON(w, http.StatusCreated, out.Note)
}

// HandleListNotes handles GET /notes
func (h *Handler) HandleListNotes(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	sort, err := note.ParseSort(q.Get("sort"), q.Get("order"))
	if err != nil {
		writeError(w, apperr.NewInvalidRequest(err.Error()))
		return
	}

	notes, err := h.Notes.List(r.Context(), OwnerFromContext(r.Context()), note.Filter{
		Category: q.Get("category"),
		Search:   q.Get("q"),
		Tag:      q.Get("tag"),
		Sort:     sort,
	})
	if err != nil {
		h.logFailure(r.Context(), err)
		writeError(w, err)
		return
	}
	if notes == nil {
		notes = []note.Note{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"notes": notes})
}

// HandleGetNote handles GET /notes/{id}
func (h *Handler) HandleGetNote(w http.ResponseWriter, r *http.Request) {
	n, err := h.Notes.Get(r.Context(), OwnerFromContext(r.Context()), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, n)
}

// HandleUpdateNote handles PATCH /notes/{id}
func (h *Handler) HandleUpdateNote(w http.ResponseWriter, r *http.Request) {
	var patch note.Patch
	if err := decodeJSON(r, &patch); err != nil {
		writeError(w, err)
		return
	}
	if patch.Empty() {
		writeError(w, apperr.NewInvalidRequest("nothing to update"))
		return
	}

	n, err := h.Notes.Update(r.Context(), OwnerFromContext(r.Context()), r.PathValue("id"), patch)
	if err != nil {
		h.logFailure(r.Context(), err)
		writeError(w, err)
		return
	}
	if h.Lists != nil {
		h.Lists.Updated(n)
	}
	writeJSON(w, http.StatusOK, n)
}

// HandleDeleteNote handles DELETE /notes/{id}
func (h *Handler) HandleDeleteNote(w http.ResponseWriter, r *http.Request) {
	ownerID, id := OwnerFromContext(r.Context()), r.PathValue("id")
	if err := h.Notes.Delete(r.Context(), ownerID, id); err != nil {
		h.logFailure(r.Context(), err)
		writeError(w, err)
		return
	}
	if h.Lists != nil {
		h.Lists.Removed(ownerID, id)
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleTogglePin handles POST /notes/{id}/pin
func (h *Handler) HandleTogglePin(w http.ResponseWriter, r *http.Request) {
	n, err := h.Notes.TogglePin(r.Context(), OwnerFromContext(r.Context()), r.PathValue("id"))
	if err != nil {
		h.logFailure(r.Context(), err)
		writeError(w, err)
		return
	}
	if h.Lists != nil {
		h.Lists.Updated(n)
	}
	writeJSON(w, http.StatusOK, n)
}

// HandleNoteEvents handles GET /notes/events. It streams the owner's note
// list as server-sent events, the current list first and then one snapshot
// per change.
func (h *Handler) HandleNoteEvents(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	p, err := h.Lists.For(ctx, OwnerFromContext(ctx))
	if err != nil {
		h.logFailure(ctx, err)
		writeError(w, err)
		return
	}
	updates := p.Subscribe(ctx)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)
	rc := http.NewResponseController(w)

	notes := p.Notes()
	for {
		if err := writeNotesEvent(w, notes); err != nil {
			slogx.Debug(ctx, "note stream closed", slogx.Err(err))
			return
		}
		if err := rc.Flush(); err != nil {
			slogx.Debug(ctx, "note stream closed", slogx.Err(err))
			return
		}

		var ok bool
		select {
		case <-h.Shutdown:
			return
		case notes, ok = <-updates:
			if !ok {
				return
			}
		}
	}
}

func writeNotesEvent(w io.Writer, notes []note.Note) error {
	data, err := json.Marshal(map[string]any{"notes": notes})
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: notes\ndata: %s\n\n", data)
	return err
}

type suggestionBody struct {
	Title    string        `json:"title,omitempty"`
	Tags     []string      `json:"tags,omitempty"`
	Category string        `json:"category,omitempty"`
	Event    *ai.EventHint `json:"event,omitempty"`
}

type captureResponse struct {
	SessionID  string          `json:"session_id"`
	State      capture.State   `json:"state"`
	Note       *note.Note      `json:"note,omitempty"`
	Transcript string          `json:"transcript,omitempty"`
	Suggestion *suggestionBody `json:"suggestion,omitempty"`
	Error      *errorBody      `json:"error,omitempty"`
}

// HandleCapture handles POST /captures. The body is the raw audio and the
// Content-Type header its MIME type.
func (h *Handler) HandleCapture(w http.ResponseWriter, r *http.Request) {
	limit := h.MaxBodyBytes
	if limit <= 0 {
		limit = transcribe.DefaultMaxBytes
	}
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, limit))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, &apperr.Error{
				Code:    apperr.CodeInvalidRequest,
				Status:  http.StatusRequestEntityTooLarge,
				Message: "audio is too large",
			})
			return
		}
		writeError(w, apperr.NewInvalidRequest("failed to read audio"))
		return
	}
	if len(data) == 0 {
		writeError(w, apperr.NewInvalidRequest("audio is empty"))
		return
	}

	out := h.Captures.For(OwnerFromContext(r.Context())).CaptureAudio(r.Context(), transcribe.Audio{
		Data:     data,
		MIMEType: r.Header.Get("Content-Type"),
		Filename: r.URL.Query().Get("filename"),
	})

	resp := captureResponse{
		SessionID:  out.SessionID,
		State:      out.State,
		Note:       out.Note,
		Transcript: strings.TrimSpace(out.Transcript),
	}
	if s := out.Suggestion; s != nil {
		resp.Suggestion = &suggestionBody{Title: s.Title, Tags: s.Tags, Category: s.Category, Event: s.Event}
	}
	if out.Err != nil {
		h.logFailure(r.Context(), out.Err)
		eb := toErrorBody(out.Err)
		resp.Error = &eb
		writeJSON(w, apperr.StatusOf(out.Err), resp)
		return
	}
	writeJSON(w, http.StatusCreated, resp)
}

type calendarSettingsRequest struct {
	IntegrationEnabled bool   `json:"integration_enabled"`
	AutoCreateEvents   bool   `json:"auto_create_events"`
	Timezone           string `json:"timezone"`
	CalendarID         string `json:"calendar_id"`
}

// HandleGetCalendarSettings handles GET /settings/calendar
func (h *Handler) HandleGetCalendarSettings(w http.ResponseWriter, r *http.Request) {
	s, err := h.Settings.GetCalendarSettings(r.Context(), OwnerFromContext(r.Context()))
	if err != nil {
		h.logFailure(r.Context(), err)
		writeError(w, apperr.NewInternal(err))
		return
	}
	if s == nil {
		s = &db.CalendarSettings{Timezone: "UTC"}
	}
	writeJSON(w, http.StatusOK, s)
}

// HandleSaveCalendarSettings handles PUT /settings/calendar
func (h *Handler) HandleSaveCalendarSettings(w http.ResponseWriter, r *http.Request) {
	var req calendarSettingsRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	tz := strings.TrimSpace(req.Timezone)
	if tz == "" {
		tz = "UTC"
	}
	if _, err := time.LoadLocation(tz); err != nil {
		writeError(w, apperr.NewInvalidRequest("invalid timezone: "+tz))
		return
	}

	s := &db.CalendarSettings{
		OwnerID:            OwnerFromContext(r.Context()),
		IntegrationEnabled: req.IntegrationEnabled,
		AutoCreateEvents:   req.AutoCreateEvents,
		Timezone:           tz,
		CalendarID:         strings.TrimSpace(req.CalendarID),
	}
	if err := h.Settings.SaveCalendarSettings(r.Context(), s); err != nil {
		h.logFailure(r.Context(), err)
		writeError(w, apperr.NewInternal(err))
		return
	}
	writeJSON(w, http.StatusOK, s)
}

func (h *Handler) logFailure(ctx context.Context, err error) {
	if apperr.StatusOf(err) >= http.StatusInternalServerError {
		slogx.Error(ctx, "request failed", slogx.Err(err))
		return
	}
	slogx.Debug(ctx, "request rejected", slogx.Err(err))
}
