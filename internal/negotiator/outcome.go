package negotiator

import (
	"fmt"

	"github.com/teemow/agentcal/internal/calendar"
	"github.com/teemow/agentcal/internal/session"
	"github.com/teemow/agentcal/internal/timewindow"
)

// Failure classifies why a negotiation step did not go forward.
type Failure int

const (
	FailureNone Failure = iota
	// FailureNormalization means the time phrase could not be resolved.
	FailureNormalization
	// FailureAvailabilityExhausted means the slot was busy and nothing
	// nearby was free.
	FailureAvailabilityExhausted
	// FailureExternalCall means the calendar or session store failed. The
	// session is left unchanged so the user can retry.
	FailureExternalCall
	// FailureMaxRetries means too many replies could not be understood.
	FailureMaxRetries
)

func (f Failure) String() string {
	switch f {
	case FailureNone:
		return "none"
	case FailureNormalization:
		return "normalization"
	case FailureAvailabilityExhausted:
		return "availability_exhausted"
	case FailureExternalCall:
		return "external_call"
	case FailureMaxRetries:
		return "max_retries"
	default:
		return "unknown"
	}
}

// ExternalCallError wraps a failure of the calendar or session store.
type ExternalCallError struct {
	Op  string
	Err error
}

func (e *ExternalCallError) Error() string {
	return fmt.Sprintf("%s failed: %v", e.Op, e.Err)
}

func (e *ExternalCallError) Unwrap() error {
	return e.Err
}

// Outcome describes the result of one negotiation step.
type Outcome struct {
	// State is the session state after the step. Zero means no session
	// was involved.
	State   session.State
	Failure Failure
	// Reason is set when Failure is FailureNormalization.
	Reason timewindow.Reason
	// Err carries the *ExternalCallError when Failure is
	// FailureExternalCall.
	Err error

	Subject      string
	Window       timewindow.Window
	Alternatives []timewindow.Window
	Event        *calendar.Event

	// Reprompt is set when the reply was not understood and the pending
	// question is asked again.
	Reprompt    bool
	Attempts    int
	MaxAttempts int
	// Declined is set when the user said no.
	Declined bool
	// Rechecked is set when a chosen alternative turned out to be taken
	// and new alternatives are offered.
	Rechecked bool
	// Free is set by Check when the window is free.
	Free bool
}

// Terminal reports whether the negotiation ended with this step.
func (o Outcome) Terminal() bool {
	return o.State.Terminal()
}
