package calendar

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/teemow/agentcal/internal/timewindow"
)

// ErrNotFound is returned when the configured calendar does not exist or
// is not visible to the authenticated account.
var ErrNotFound = errors.New("calendar not found")

// Event is an existing calendar event. The assistant reads events and
// creates new ones but never updates or deletes them.
type Event struct {
	ID          string            `json:"id"`
	Subject     string            `json:"subject"`
	Description string            `json:"description,omitempty"`
	Window      timewindow.Window `json:"window"`
	Link        string            `json:"link,omitempty"`
	Raw         json.RawMessage   `json:"raw,omitempty"`
}

// Store is the calendar backend. All times crossing this boundary are
// rendered with timewindow.Format.
type Store interface {
	// FreeBusy returns the busy intervals that overlap w, sorted by start.
	FreeBusy(ctx context.Context, w timewindow.Window) ([]timewindow.Window, error)

	// CreateEvent inserts a new event covering w.
	CreateEvent(ctx context.Context, subject string, w timewindow.Window) (Event, error)

	// SearchEvents returns up to limit events matching term that start at
	// or after from, ordered by start.
	SearchEvents(ctx context.Context, term string, from time.Time, limit int) ([]Event, error)
}

// Overlapping returns the busy intervals in busy that overlap w.
func Overlapping(busy []timewindow.Window, w timewindow.Window) []timewindow.Window {
	var out []timewindow.Window
	for _, b := range busy {
		if b.Overlaps(w) {
			out = append(out, b)
		}
	}
	return out
}
