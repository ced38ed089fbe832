package instrumentation

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
)

const (
	testUser    = "@jane:example.org"
	testSubject = "team coffee"
)

func newBufferLogger() (*slog.Logger, *bytes.Buffer) {
	buf := &bytes.Buffer{}
	return slog.New(slog.NewJSONHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug})), buf
}

func decodeLine(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var entry map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry); err != nil {
		t.Fatalf("failed to decode log line %q: %v", buf.String(), err)
	}
	return entry
}

func TestEventCreation_Complete(t *testing.T) {
	ec := NewEventCreation(context.Background(), testUser, "sess-1").
		WithEvent(testSubject, "2024-01-02T10:30:00Z", "2024-01-02T11:30:00Z").
		Complete("evt-1", nil)

	if !ec.Success {
		t.Error("expected Success to be true")
	}
	if ec.Status() != StatusSuccess {
		t.Errorf("Status() = %q, want %q", ec.Status(), StatusSuccess)
	}
	if ec.EventID != "evt-1" {
		t.Errorf("EventID = %q, want evt-1", ec.EventID)
	}

	failed := NewEventCreation(context.Background(), testUser, "sess-1").Complete("", errTest)
	if failed.Success || failed.Status() != StatusError || failed.Error != errTest.Error() {
		t.Errorf("unexpected failed creation: %+v", failed)
	}
}

func TestAuditLogger_AnonymizesByDefault(t *testing.T) {
	logger, buf := newBufferLogger()
	al := NewAuditLogger(logger, AuditLoggingConfig{Enabled: true})

	al.LogEventCreation(NewEventCreation(context.Background(), testUser, "sess-1").
		WithEvent(testSubject, "2024-01-02T10:30:00Z", "2024-01-02T11:30:00Z").
		Complete("evt-1", nil))

	entry := decodeLine(t, buf)
	if entry["msg"] != "calendar_event_created" {
		t.Errorf("msg = %v, want calendar_event_created", entry["msg"])
	}
	if strings.Contains(buf.String(), testUser) || strings.Contains(buf.String(), testSubject) {
		t.Errorf("expected no PII in log line: %s", buf.String())
	}
	if hash, _ := entry["user_hash"].(string); !strings.HasPrefix(hash, "user:") || len(hash) != len("user:")+16 {
		t.Errorf("unexpected user_hash %v", entry["user_hash"])
	}
	if entry["start"] != "2024-01-02T10:30:00Z" {
		t.Errorf("start = %v", entry["start"])
	}
}

func TestAuditLogger_IncludePII(t *testing.T) {
	logger, buf := newBufferLogger()
	al := NewAuditLogger(logger, AuditLoggingConfig{Enabled: true, IncludePII: true})

	al.LogEventCreation(NewEventCreation(context.Background(), testUser, "sess-1").
		WithEvent(testSubject, "2024-01-02T10:30:00Z", "2024-01-02T11:30:00Z").
		Complete("", errTest))

	entry := decodeLine(t, buf)
	if entry["msg"] != "calendar_event_failed" {
		t.Errorf("msg = %v, want calendar_event_failed", entry["msg"])
	}
	if entry["user"] != testUser || entry["subject"] != testSubject {
		t.Errorf("expected PII fields, got %v", entry)
	}
	if entry["error"] != errTest.Error() {
		t.Errorf("error = %v", entry["error"])
	}
}

func TestAuditLogger_DisabledAndNil(t *testing.T) {
	logger, buf := newBufferLogger()
	al := NewAuditLogger(logger, AuditLoggingConfig{Enabled: false})
	al.LogEventCreation(NewEventCreation(context.Background(), testUser, "s").Complete("e", nil))
	if buf.Len() != 0 {
		t.Errorf("expected nothing logged, got %s", buf.String())
	}

	var nilLogger *AuditLogger
	nilLogger.LogEventCreation(NewEventCreation(context.Background(), testUser, "s").Complete("e", nil))
}

func TestHashUserIsStable(t *testing.T) {
	if hashUser("") != "" {
		t.Error("expected empty hash for empty user")
	}
	if hashUser(testUser) != hashUser(testUser) {
		t.Error("expected stable hash")
	}
	if hashUser(testUser) == hashUser("@john:example.org") {
		t.Error("expected different users to hash differently")
	}
}
