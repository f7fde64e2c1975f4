package slogx

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
)

// Logger is a context-first wrapper around slog. Attributes attached to the
// context with WithAttrs are added to every record.
type Logger struct {
	l *slog.Logger
}

func New(h slog.Handler) *Logger {
	return &Logger{l: slog.New(h)}
}

// Slog exposes the underlying logger for libraries that want *slog.Logger.
func (l *Logger) Slog() *slog.Logger {
	return l.l
}

func (l *Logger) With(attrs ...slog.Attr) *Logger {
	args := make([]any, 0, len(attrs))
	for _, a := range attrs {
		args = append(args, a)
	}
	return &Logger{l: l.l.With(args...)}
}

func (l *Logger) Info(ctx context.Context, msg string, attrs ...slog.Attr) {
	l.Log(ctx, slog.LevelInfo, msg, attrs...)
}

func (l *Logger) Debug(ctx context.Context, msg string, attrs ...slog.Attr) {
	l.Log(ctx, slog.LevelDebug, msg, attrs...)
}

func (l *Logger) Warn(ctx context.Context, msg string, attrs ...slog.Attr) {
	l.Log(ctx, slog.LevelWarn, msg, attrs...)
}

func (l *Logger) Error(ctx context.Context, msg string, attrs ...slog.Attr) {
	l.Log(ctx, slog.LevelError, msg, attrs...)
}

func (l *Logger) Log(ctx context.Context, level slog.Level, msg string, attrs ...slog.Attr) {
	if ctx == nil {
		ctx = context.Background()
	}
	if ctxAttrs := attrsFromContext(ctx); len(ctxAttrs) > 0 {
		attrs = append(append(make([]slog.Attr, 0, len(ctxAttrs)+len(attrs)), ctxAttrs...), attrs...)
	}
	l.l.LogAttrs(ctx, level, msg, attrs...)
}

type attrsCtxKey struct{}

// WithAttrs returns a context whose log records carry attrs.
func WithAttrs(ctx context.Context, attrs ...slog.Attr) context.Context {
	prev := attrsFromContext(ctx)
	merged := make([]slog.Attr, 0, len(prev)+len(attrs))
	merged = append(merged, prev...)
	merged = append(merged, attrs...)
	return context.WithValue(ctx, attrsCtxKey{}, merged)
}

func attrsFromContext(ctx context.Context) []slog.Attr {
	attrs, _ := ctx.Value(attrsCtxKey{}).([]slog.Attr)
	return attrs
}

func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return 0, fmt.Errorf("unknown log level %q", s)
}
