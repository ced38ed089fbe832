package logging

import (
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"strings"
)

// Common log attribute keys for consistent naming across the codebase.
const (
	KeyOperation = "operation"
	KeyState     = "state"
	KeyUserHash  = "user_hash"
	KeySession   = "session_id"
	KeyTransport = "transport"
	KeyIntent    = "intent"
	KeyDuration  = "duration"
	KeyStatus    = "status"
	KeyError     = "error"
	KeyTool      = "tool"
)

// Status values for consistent logging.
// Note: These are intentionally duplicated from instrumentation package
// to keep logging free of OpenTelemetry imports.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// WithOperation returns a logger with the operation attribute set.
func WithOperation(logger *slog.Logger, operation string) *slog.Logger {
	return logger.With(slog.String(KeyOperation, operation))
}

// WithTransport returns a logger with the transport attribute set.
func WithTransport(logger *slog.Logger, transport string) *slog.Logger {
	return logger.With(slog.String(KeyTransport, transport))
}

// Operation returns a slog attribute for the operation name.
func Operation(op string) slog.Attr {
	return slog.String(KeyOperation, op)
}

// State returns a slog attribute for a negotiation state.
func State(state string) slog.Attr {
	return slog.String(KeyState, state)
}

// Session returns a slog attribute for a session id.
func Session(id string) slog.Attr {
	return slog.String(KeySession, id)
}

// Intent returns a slog attribute for an intent kind.
func Intent(kind string) slog.Attr {
	return slog.String(KeyIntent, kind)
}

// Tool returns a slog attribute for the tool name.
func Tool(tool string) slog.Attr {
	return slog.String(KeyTool, tool)
}

// Status returns a slog attribute for the status.
func Status(status string) slog.Attr {
	return slog.String(KeyStatus, status)
}

// Err returns a slog attribute for an error.
// If err is nil, returns an empty Group attribute that will be omitted from output.
//
// Usage:
//
//	logger.Info("operation", logging.Err(err))  // Safe even if err is nil
func Err(err error) slog.Attr {
	if err == nil {
		return slog.Group("")
	}
	return slog.String(KeyError, err.Error())
}

// AnonymizeUser returns a hashed representation of a user identifier so log
// entries can be correlated without exposing who sent them.
func AnonymizeUser(user string) string {
	if user == "" {
		return ""
	}
	hash := sha256.Sum256([]byte(user))
	return "user:" + hex.EncodeToString(hash[:8])
}

// UserHash returns a slog attribute with the anonymized user identifier.
//
// Usage:
//
//	logger.Info("session started", logging.UserHash(userID))
func UserHash(user string) slog.Attr {
	return slog.String(KeyUserHash, AnonymizeUser(user))
}

// Server returns the homeserver part of a Matrix user id ("@alice:example.org"
// yields "example.org"), or "" for other identifiers. It is a lower
// cardinality alternative to UserHash.
func Server(user string) string {
	if !strings.HasPrefix(user, "@") {
		return ""
	}
	_, server, ok := strings.Cut(user, ":")
	if !ok {
		return ""
	}
	return server
}
