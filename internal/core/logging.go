package core

import (
	"context"
	"log/slog"
)

type slogLogger struct {
	l *slog.Logger
}

// NewSlogLogger adapts a *slog.Logger to Logger. A nil logger uses slog.Default.
func NewSlogLogger(l *slog.Logger) Logger {
	if l == nil {
		l = slog.Default()
	}
	return slogLogger{l: l.With("component", "registry")}
}

func (s slogLogger) Debug(msg string, args ...any) { s.l.Debug(msg, args...) }
func (s slogLogger) Info(msg string, args ...any)  { s.l.Info(msg, args...) }
func (s slogLogger) Warn(msg string, args ...any)  { s.l.Warn(msg, args...) }
func (s slogLogger) Error(msg string, args ...any) { s.l.Error(msg, args...) }

// LogAuditRecorder writes audit entries to a slog logger at info level.
type LogAuditRecorder struct {
	l *slog.Logger
}

// NewLogAuditRecorder returns an AuditRecorder backed by l.
func NewLogAuditRecorder(l *slog.Logger) *LogAuditRecorder {
	if l == nil {
		l = slog.Default()
	}
	return &LogAuditRecorder{l: l.With("component", "audit")}
}

// Record implements AuditRecorder.
func (r *LogAuditRecorder) Record(ctx context.Context, entry AuditEntry) {
	level := slog.LevelInfo
	if entry.Status == AuditStatusError {
		level = slog.LevelWarn
	}
	r.l.LogAttrs(ctx, level, "registry audit",
		slog.String("operation", entry.Operation),
		slog.String("entity", string(entry.Entity)),
		slog.String("action", string(entry.Action)),
		slog.Uint64("entity_id", entry.EntityID),
		slog.String("status", string(entry.Status)),
		slog.String("error", entry.Error),
		slog.Duration("duration", entry.Duration),
		slog.Time("timestamp", entry.Timestamp),
	)
}
