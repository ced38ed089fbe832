package timewindow

import (
	"errors"
	"fmt"
)

// Reason classifies why a phrase could not be turned into a window.
type Reason int

const (
	// ReasonAmbiguous means the phrase reads more than one way.
	ReasonAmbiguous Reason = iota + 1
	// ReasonUnparseable means no date or time token was found.
	ReasonUnparseable
	// ReasonPastInstant means the phrase resolved to a moment before now.
	ReasonPastInstant
)

// String returns the lowercase reason name used in logs and metrics.
func (r Reason) String() string {
	switch r {
	case ReasonAmbiguous:
		return "ambiguous"
	case ReasonUnparseable:
		return "unparseable"
	case ReasonPastInstant:
		return "past_instant"
	default:
		return "unknown"
	}
}

// NormalizationError reports a phrase the normalizer refused to resolve.
type NormalizationError struct {
	Reason Reason
	Phrase string
	Detail string
}

func (e *NormalizationError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("cannot normalize %q: %s (%s)", e.Phrase, e.Reason, e.Detail)
	}
	return fmt.Sprintf("cannot normalize %q: %s", e.Phrase, e.Reason)
}

// ReasonOf returns the reason carried by err, or 0 when err is not a
// NormalizationError.
func ReasonOf(err error) Reason {
	var nerr *NormalizationError
	if errors.As(err, &nerr) {
		return nerr.Reason
	}
	return 0
}

func ambiguous(phrase, detail string) error {
	return &NormalizationError{Reason: ReasonAmbiguous, Phrase: phrase, Detail: detail}
}

func unparseable(phrase string) error {
	return &NormalizationError{Reason: ReasonUnparseable, Phrase: phrase, Detail: "no date or time found"}
}

func pastInstant(phrase string) error {
	return &NormalizationError{Reason: ReasonPastInstant, Phrase: phrase, Detail: "resolves to a time in the past"}
}
