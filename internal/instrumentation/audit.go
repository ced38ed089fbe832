package instrumentation

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"time"
)

// EventCreation captures one calendar write for the audit trail. Calendar
// events are only ever created by a confirmed negotiation, so this is the
// single mutation the service performs.
//
// User and Subject are PII and only logged when IncludePII is set.
type EventCreation struct {
	User      string
	SessionID string
	Subject   string
	Start     string
	End       string
	EventID   string

	StartTime time.Time
	Duration  time.Duration
	Success   bool
	Error     string

	TraceID string
}

// NewEventCreation starts timing an event creation.
func NewEventCreation(ctx context.Context, user, sessionID string) *EventCreation {
	return &EventCreation{
		User:      user,
		SessionID: sessionID,
		StartTime: time.Now(),
		TraceID:   GetTraceID(ctx),
	}
}

// WithEvent sets the subject and wire-format bounds being written.
func (ec *EventCreation) WithEvent(subject, start, end string) *EventCreation {
	ec.Subject = subject
	ec.Start = start
	ec.End = end
	return ec
}

// Complete records the result of the write.
func (ec *EventCreation) Complete(eventID string, err error) *EventCreation {
	ec.Duration = time.Since(ec.StartTime)
	ec.EventID = eventID
	ec.Success = err == nil
	if err != nil {
		ec.Error = err.Error()
	}
	return ec
}

// Status returns "success" or "error" based on the Success field.
func (ec *EventCreation) Status() string {
	if ec.Success {
		return StatusSuccess
	}
	return StatusError
}

func (ec *EventCreation) logAttrs(includePII bool) []any {
	attrs := []any{
		slog.String("session_id", ec.SessionID),
		slog.String("start", ec.Start),
		slog.String("end", ec.End),
		slog.Duration("duration", ec.Duration),
		slog.Bool("success", ec.Success),
	}
	if includePII {
		attrs = append(attrs, slog.String("user", ec.User), slog.String("subject", ec.Subject))
	} else {
		attrs = append(attrs, slog.String("user_hash", hashUser(ec.User)))
	}
	if ec.EventID != "" {
		attrs = append(attrs, slog.String("event_id", ec.EventID))
	}
	if ec.TraceID != "" {
		attrs = append(attrs, slog.String("trace_id", ec.TraceID))
	}
	if ec.Error != "" {
		attrs = append(attrs, slog.String("error", ec.Error))
	}
	return attrs
}

// AuditLogger writes the calendar write audit trail.
type AuditLogger struct {
	logger     *slog.Logger
	includePII bool
	enabled    bool
}

// NewAuditLogger creates an AuditLogger. A nil logger uses slog.Default().
func NewAuditLogger(logger *slog.Logger, config AuditLoggingConfig) *AuditLogger {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuditLogger{
		logger:     logger.With("component", "audit"),
		includePII: config.IncludePII,
		enabled:    config.Enabled,
	}
}

// LogEventCreation logs a completed EventCreation. A nil AuditLogger is a no-op.
func (al *AuditLogger) LogEventCreation(ec *EventCreation) {
	if al == nil || !al.enabled || ec == nil {
		return
	}
	if ec.Success {
		al.logger.Info("calendar_event_created", ec.logAttrs(al.includePII)...)
	} else {
		al.logger.Warn("calendar_event_failed", ec.logAttrs(al.includePII)...)
	}
}

// hashUser matches logging.AnonymizeUser; instrumentation does not import
// logging to keep the dependency direction one way.
func hashUser(user string) string {
	if user == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(user))
	return "user:" + hex.EncodeToString(sum[:8])
}
