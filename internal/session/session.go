package session

import (
	"fmt"
	"strings"
	"time"

	"github.com/teemow/agentcal/internal/timewindow"
)

// State is the position of a negotiation.
type State int

const (
	StateResolvingTime State = iota + 1
	StateCheckingAvailability
	StateAwaitingConfirmation
	StateAwaitingUserChoice
	StateConfirmed
	StateCreated
	StateAbandoned
)

var stateNames = map[State]string{
	StateResolvingTime:        "resolving_time",
	StateCheckingAvailability: "checking_availability",
	StateAwaitingConfirmation: "awaiting_confirmation",
	StateAwaitingUserChoice:   "awaiting_user_choice",
	StateConfirmed:            "confirmed",
	StateCreated:              "created",
	StateAbandoned:            "abandoned",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	if s == 0 {
		return "none"
	}
	return "unknown"
}

// ParseState maps a state name back to a State.
func ParseState(name string) (State, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	for s, n := range stateNames {
		if n == name {
			return s, nil
		}
	}
	return 0, fmt.Errorf("unknown session state %q", name)
}

// MarshalText implements encoding.TextMarshaler.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *State) UnmarshalText(b []byte) error {
	parsed, err := ParseState(string(b))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// Waiting reports whether the session is waiting for the user to answer.
func (s State) Waiting() bool {
	return s == StateAwaitingConfirmation || s == StateAwaitingUserChoice
}

// Terminal reports whether the negotiation has ended.
func (s State) Terminal() bool {
	return s == StateCreated || s == StateAbandoned
}

// Session is the negotiation record for one user.
type Session struct {
	ID           string              `json:"id"`
	User         string              `json:"user"`
	State        State               `json:"state"`
	Subject      string              `json:"subject"`
	Requested    timewindow.Window   `json:"requested_window"`
	Alternatives []timewindow.Window `json:"offered_alternatives,omitempty"`

	// Selected is the index into Alternatives the user picked, if any.
	Selected       *int      `json:"selected_alternative_index,omitempty"`
	Attempts       int       `json:"attempts"`
	CreatedAt      time.Time `json:"created_at"`
	LastActivityAt time.Time `json:"last_activity_at"`
}

// Clone returns a deep copy.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	c := *s
	c.Alternatives = append([]timewindow.Window(nil), s.Alternatives...)
	if s.Selected != nil {
		idx := *s.Selected
		c.Selected = &idx
	}
	return &c
}

// Expired reports whether the session has been idle for longer than ttl.
func (s *Session) Expired(now time.Time, ttl time.Duration) bool {
	return ttl > 0 && now.Sub(s.LastActivityAt) > ttl
}

// Select records the chosen alternative.
func (s *Session) Select(idx int) {
	s.Selected = &idx
}

// Candidate returns the window currently under negotiation: the selected
// alternative if one was chosen, otherwise the requested window.
func (s *Session) Candidate() timewindow.Window {
	if s.Selected != nil && *s.Selected >= 0 && *s.Selected < len(s.Alternatives) {
		return s.Alternatives[*s.Selected]
	}
	return s.Requested
}
