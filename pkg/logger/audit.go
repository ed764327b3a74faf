package logger

import (
	"context"
	"log/slog"
	"time"
)

// AuditEvent represents a security audit event
type AuditEvent struct {
	EventType     string
	UserID        string
	IPAddress     string
	UserAgent     string
	Path          string
	Success       bool
	FailureReason string
	Metadata      map[string]string
}

// Gate rejection reasons. Expired and invalid tokens are both 401 to the
// client; only the audit trail tells them apart.
const (
	ReasonIPBlocked        = "ip_blocked"
	ReasonMalformedHeader  = "malformed_authorization"
	ReasonTokenExpired     = "token_expired"
	ReasonTokenInvalid     = "token_invalid"
	ReasonUnknownUser      = "unknown_user"
	ReasonBanned           = "account_banned"
	ReasonLookupFailed     = "lookup_unavailable"
	ReasonLockedOut        = "locked_out"
	ReasonBadCredentials   = "bad_credentials"
	ReasonCooldown         = "cooldown"
	ReasonInsufficientRole = "insufficient_role"
)

// AuditLogger provides audit logging functionality
type AuditLogger struct {
	logger *slog.Logger
}

// NewAuditLogger creates a new audit logger
func NewAuditLogger(logger *slog.Logger) *AuditLogger {
	return &AuditLogger{
		logger: logger,
	}
}

// LogAuthAttempt logs login, refresh and signup attempts
func (al *AuditLogger) LogAuthAttempt(ctx context.Context, event AuditEvent) {
	al.log(ctx, "auth", event)
}

// LogGateRejection logs a request refused at the boundary
func (al *AuditLogger) LogGateRejection(ctx context.Context, event AuditEvent) {
	event.Success = false
	al.log(ctx, "gate", event)
}

// LogAdminAction logs IP block and account ban changes
func (al *AuditLogger) LogAdminAction(ctx context.Context, eventType, adminID, ipAddress string, metadata map[string]string) {
	al.log(ctx, "admin", AuditEvent{
		EventType: eventType,
		UserID:    adminID,
		IPAddress: ipAddress,
		Success:   true,
		Metadata:  metadata,
	})
}

func (al *AuditLogger) log(ctx context.Context, auditType string, event AuditEvent) {
	attrs := []slog.Attr{
		slog.String("audit_type", auditType),
		slog.String("event_type", event.EventType),
		slog.Bool("success", event.Success),
		slog.String("timestamp", time.Now().UTC().Format(time.RFC3339)),
	}

	if event.UserID != "" {
		attrs = append(attrs, slog.String("user_id", event.UserID))
	}
	if event.IPAddress != "" {
		attrs = append(attrs, slog.String("ip_address", event.IPAddress))
	}
	if event.UserAgent != "" {
		attrs = append(attrs, slog.String("user_agent", event.UserAgent))
	}
	if event.Path != "" {
		attrs = append(attrs, slog.String("path", event.Path))
	}
	if event.FailureReason != "" {
		attrs = append(attrs, slog.String("failure_reason", event.FailureReason))
	}
	for key, val := range event.Metadata {
		attrs = append(attrs, slog.String(key, val))
	}

	level := slog.LevelInfo
	if !event.Success {
		level = slog.LevelWarn
	}
	al.logger.LogAttrs(ctx, level, "audit", attrs...)
}
