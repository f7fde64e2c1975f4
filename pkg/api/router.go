package api

import (
	"net/http"

	"github.com/mklimuk/notepilot/pkg/logger/slogx"
)

// NewRouter creates the HTTP router. Every route except /healthz requires a
// bearer token listed in tokens.
func NewRouter(h *Handler, tokens map[string]string) http.Handler {
	mux := http.NewServeMux()
	auth := RequireOwner(tokens)

	mux.HandleFunc("GET /healthz", h.HandleHealth)

	mux.Handle("POST /notes", auth(http.HandlerFunc(h.HandleCreateNote)))
	mux.Handle("GET /notes", auth(http.HandlerFunc(h.HandleListNotes)))
	mux.Handle("GET /notes/{id}", auth(http.HandlerFunc(h.HandleGetNote)))
	mux.Handle("PATCH /notes/{id}", auth(http.HandlerFunc(h.HandleUpdateNote)))
	mux.Handle("DELETE /notes/{id}", auth(http.HandlerFunc(h.HandleDeleteNote)))
	mux.Handle("POST /notes/{id}/pin", auth(http.HandlerFunc(h.HandleTogglePin)))
	if h.Lists != nil {
		mux.Handle("GET /notes/events", auth(http.HandlerFunc(h.HandleNoteEvents)))
	}

	mux.Handle("POST /captures", auth(http.HandlerFunc(h.HandleCapture)))

	mux.Handle("GET /settings/calendar", auth(http.HandlerFunc(h.HandleGetCalendarSettings)))
	mux.Handle("PUT /settings/calendar", auth(http.HandlerFunc(h.HandleSaveCalendarSettings)))

	return slogx.Middleware(mux)
}
