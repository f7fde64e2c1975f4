package slogx

import (
	"log/slog"
	"net/http"
	"time"
)

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

// Middleware logs the start and the end of every HTTP request.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		logger := Default()

		route := slog.String("route", r.Method+" "+r.URL.Path)
		logger.Debug(r.Context(), "start handling request", route)

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		durAttr := slog.Duration("duration", time.Since(start))
		status := slog.Int("status", rec.status)
		if rec.status >= http.StatusInternalServerError {
			logger.Error(r.Context(), "finish with error", route, status, durAttr)
		} else {
			logger.Info(r.Context(), "finish request", route, status, durAttr)
		}
	})
}
