package logger

import (
	"context"
	"log/slog"
	"time"
)

// AuditEvent represents a security audit event
type AuditEvent struct {
	EventType     string // e.g. "login_success", "2fa_challenge", "connection_created"
	UserID        string
	Provider      string // External provider name, when relevant
	Success       bool
	FailureReason string
}

// AuditLogger provides structured audit logging for authentication events
type AuditLogger struct {
	logger *slog.Logger
}

// NewAuditLogger creates a new audit logger
func NewAuditLogger(logger *slog.Logger) *AuditLogger {
	return &AuditLogger{
		logger: logger,
	}
}

// LogAuthEvent logs an authentication flow event
func (al *AuditLogger) LogAuthEvent(event AuditEvent) {
	attrs := []slog.Attr{
		slog.String("audit_type", "auth"),
		slog.String("event_type", event.EventType),
		slog.Bool("success", event.Success),
		slog.String("timestamp", time.Now().UTC().Format(time.RFC3339)),
	}

	if event.UserID != "" {
		attrs = append(attrs, slog.String("user_id", event.UserID))
	}
	if event.Provider != "" {
		attrs = append(attrs, slog.String("provider", event.Provider))
	}
	if event.FailureReason != "" {
		attrs = append(attrs, slog.String("failure_reason", event.FailureReason))
	}

	al.logger.LogAttrs(context.Background(), slog.LevelInfo, "audit_event", attrs...)
}
