package timewindow

import (
	"errors"
	"fmt"
	"time"
)

// WireLayout is the only datetime format that crosses the calendar boundary:
// zero-padded, seconds always present, UTC with a literal trailing Z.
const WireLayout = "2006-01-02T15:04:05Z"

// ErrEmptyWindow is returned when a window's start is not strictly before its end.
var ErrEmptyWindow = errors.New("window start must be before end")

// Window is a half-open UTC interval [Start, End).
type Window struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// New returns a window in UTC truncated to whole seconds.
func New(start, end time.Time) (Window, error) {
	w := Window{
		Start: start.UTC().Truncate(time.Second),
		End:   end.UTC().Truncate(time.Second),
	}
	if !w.Start.Before(w.End) {
		return Window{}, fmt.Errorf("%w: %s", ErrEmptyWindow, w)
	}
	return w, nil
}

// Of returns the window starting at start and lasting d.
func Of(start time.Time, d time.Duration) (Window, error) {
	return New(start, start.Add(d))
}

// Duration returns the length of the window.
func (w Window) Duration() time.Duration {
	return w.End.Sub(w.Start)
}

// Overlaps reports whether the two windows share any instant.
// Windows that only touch at an edge do not overlap.
func (w Window) Overlaps(o Window) bool {
	return w.Start.Before(o.End) && o.Start.Before(w.End)
}

// Shift moves the window by d, keeping its duration.
func (w Window) Shift(d time.Duration) Window {
	return Window{Start: w.Start.Add(d), End: w.End.Add(d)}
}

// StartingAt returns a window of the same duration beginning at t.
func (w Window) StartingAt(t time.Time) Window {
	t = t.UTC().Truncate(time.Second)
	return Window{Start: t, End: t.Add(w.Duration())}
}

// Equal reports whether both windows cover the same instants.
func (w Window) Equal(o Window) bool {
	return w.Start.Equal(o.Start) && w.End.Equal(o.End)
}

// IsZero reports whether the window is unset.
func (w Window) IsZero() bool {
	return w.Start.IsZero() && w.End.IsZero()
}

// String renders the window as "start/end" in wire format.
func (w Window) String() string {
	return Format(w.Start) + "/" + Format(w.End)
}

// Format renders t in the strict wire format.
func Format(t time.Time) string {
	return t.UTC().Format(WireLayout)
}

// Parse reads a strict wire-format timestamp. Offsets, fractional seconds
// and missing fields are rejected.
func Parse(s string) (time.Time, error) {
	if len(s) != len(WireLayout) {
		return time.Time{}, fmt.Errorf("invalid wire timestamp %q: want layout %s", s, WireLayout)
	}
	t, err := time.Parse(WireLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid wire timestamp %q: %w", s, err)
	}
	return t.UTC(), nil
}
