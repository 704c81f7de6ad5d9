package audit

import (
	"context"
	"log/slog"
	"time"
)

type ctxKey struct{}

// WithRequestID stores the request id for audit records
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

// RequestID returns the request id stored in ctx, if any
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(ctxKey{}).(string)
	return id
}

// Audit statuses
const (
	StatusSuccess = "success"
	StatusDenied  = "denied"
	StatusFailed  = "failed"
)

type Logger struct {
	logger *slog.Logger
}

func NewLogger(logger *slog.Logger) *Logger {
	if logger == nil {
		logger = slog.Default()
	}
	return &Logger{logger: logger.With(slog.String("component", "audit"))}
}

// LogAction records one audited action. A nil *Logger discards the record.
func (al *Logger) LogAction(ctx context.Context, userID, action, resource, resourceID, status, details string) {
	if al == nil {
		return
	}
	al.logger.Info("audit",
		slog.String("action", action),
		slog.String("resource", resource),
		slog.String("resource_id", resourceID),
		slog.String("user_id", userID),
		slog.String("status", status),
		slog.String("details", details),
		slog.String("request_id", RequestID(ctx)),
		slog.Time("timestamp", time.Now()),
	)
}

func (al *Logger) LogProject(ctx context.Context, userID, action, projectID, details string) {
	al.LogAction(ctx, userID, action, "project", projectID, StatusSuccess, details)
}

func (al *Logger) LogTask(ctx context.Context, userID, action, taskID, details string) {
	al.LogAction(ctx, userID, action, "task", taskID, StatusSuccess, details)
}

func (al *Logger) LogDenied(ctx context.Context, userID, reason string) {
	al.LogAction(ctx, userID, "access_denied", "api", "", StatusDenied, reason)
}
