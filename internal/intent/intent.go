// Package intent defines the typed result of parsing a user message and the
// oracles that produce it.
package intent

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// DefaultDurationMinutes is used when a message names no duration.
const DefaultDurationMinutes = 60

// ErrRateLimited is returned by Parser when a user exceeds their quota of
// oracle calls.
var ErrRateLimited = errors.New("too many requests")

// Kind is what the user asked for.
type Kind int

const (
	KindUnrecognized Kind = iota
	KindSchedule
	KindCheckAvailability
	KindSearchByKeyword
)

var kindNames = map[Kind]string{
	KindUnrecognized:      "unrecognized",
	KindSchedule:          "schedule",
	KindCheckAvailability: "check_availability",
	KindSearchByKeyword:   "search_by_keyword",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "unrecognized"
}

// ParseKind maps a kind name back to a Kind.
func ParseKind(s string) (Kind, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for k, name := range kindNames {
		if name == s {
			return k, nil
		}
	}
	return KindUnrecognized, fmt.Errorf("unknown intent kind %q", s)
}

// MarshalText implements encoding.TextMarshaler.
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *Kind) UnmarshalText(b []byte) error {
	parsed, err := ParseKind(string(b))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// Intent is produced once per incoming message and discarded after
// dispatch.
type Intent struct {
	Kind            Kind   `json:"kind"`
	Subject         string `json:"subject,omitempty"`
	TimePhrase      string `json:"time_phrase,omitempty"`
	DurationMinutes int    `json:"duration_minutes,omitempty"`
	SearchTerm      string `json:"search_term,omitempty"`
}

// Unrecognized is the intent for messages no oracle could classify.
func Unrecognized() Intent {
	return Intent{Kind: KindUnrecognized}
}

// Duration returns the requested length, falling back to def and then to
// DefaultDurationMinutes.
func (i Intent) Duration(def time.Duration) time.Duration {
	if i.DurationMinutes > 0 {
		return time.Duration(i.DurationMinutes) * time.Minute
	}
	if def > 0 {
		return def
	}
	return DefaultDurationMinutes * time.Minute
}

// IsFreshSchedule reports whether the intent is a complete new scheduling
// request, carrying both a subject and a time phrase.
func (i Intent) IsFreshSchedule() bool {
	return i.Kind == KindSchedule &&
		strings.TrimSpace(i.Subject) != "" &&
		strings.TrimSpace(i.TimePhrase) != ""
}

// Oracle classifies a message and extracts its slots. Messages that cannot
// be classified yield an Unrecognized intent and a nil error; errors are
// reserved for failures to reach the classifier.
type Oracle interface {
	Parse(ctx context.Context, message string) (Intent, error)
}

// OracleFunc adapts a function to the Oracle interface.
type OracleFunc func(ctx context.Context, message string) (Intent, error)

// Parse calls f.
func (f OracleFunc) Parse(ctx context.Context, message string) (Intent, error) {
	return f(ctx, message)
}
