package availability

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/teemow/agentcal/internal/calendar"
	"github.com/teemow/agentcal/internal/logging"
	"github.com/teemow/agentcal/internal/timewindow"
)

// Defaults for the alternative search.
const (
	DefaultCount               = 3
	DefaultStep                = 30 * time.Minute
	DefaultHorizonBusinessDays = 1
)

var (
	DefaultWorkdayStart = timewindow.Clock{Hour: 9}
	DefaultWorkdayEnd   = timewindow.Clock{Hour: 18}
)

// FreeBusyQuerier is the part of the calendar store the resolver needs.
type FreeBusyQuerier interface {
	FreeBusy(ctx context.Context, w timewindow.Window) ([]timewindow.Window, error)
}

// Config controls the alternative search.
type Config struct {
	Count int
	Step  time.Duration
	// HorizonBusinessDays is the number of business days searched after
	// the requested day. Negative limits the search to the requested day.
	HorizonBusinessDays int
	WorkdayStart        timewindow.Clock
	WorkdayEnd          timewindow.Clock
	Location            *time.Location
	Logger              *slog.Logger
}

// Result is the outcome of Check.
type Result struct {
	Free      bool
	Conflicts []timewindow.Window
}

// Resolver checks windows against a calendar.
type Resolver struct {
	store  FreeBusyQuerier
	cfg    Config
	logger *slog.Logger
}

// NewResolver returns a Resolver. Zero config fields take the package
// defaults.
func NewResolver(store FreeBusyQuerier, cfg Config) *Resolver {
	if cfg.Count <= 0 {
		cfg.Count = DefaultCount
	}
	if cfg.Step <= 0 {
		cfg.Step = DefaultStep
	}
	switch {
	case cfg.HorizonBusinessDays == 0:
		cfg.HorizonBusinessDays = DefaultHorizonBusinessDays
	case cfg.HorizonBusinessDays < 0:
		cfg.HorizonBusinessDays = 0
	}
	if cfg.WorkdayStart == (timewindow.Clock{}) && cfg.WorkdayEnd == (timewindow.Clock{}) {
		cfg.WorkdayStart = DefaultWorkdayStart
		cfg.WorkdayEnd = DefaultWorkdayEnd
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{store: store, cfg: cfg, logger: logger}
}

// Count returns the configured number of alternatives.
func (r *Resolver) Count() int {
	return r.cfg.Count
}

// Check reports whether w overlaps any busy interval. Partial overlap
// counts as busy; windows that only touch are free.
func (r *Resolver) Check(ctx context.Context, w timewindow.Window) (Result, error) {
	busy, err := r.store.FreeBusy(ctx, w)
	if err != nil {
		return Result{}, fmt.Errorf("failed to query free/busy: %w", err)
	}

	conflicts := calendar.Overlapping(busy, w)

	r.logger.DebugContext(ctx, "availability checked",
		logging.Operation("availability.check"),
		slog.String("window", w.String()),
		slog.Int("conflicts", len(conflicts)))

	return Result{Free: len(conflicts) == 0, Conflicts: conflicts}, nil
}

// SuggestAlternatives returns up to count free windows with the same
// duration as w, earliest first. A non-positive count uses the configured
// default. An empty result means nothing nearby is free and is not an
// error.
func (r *Resolver) SuggestAlternatives(ctx context.Context, w timewindow.Window, count int) ([]timewindow.Window, error) {
	if count <= 0 {
		count = r.cfg.Count
	}

	segments := r.horizon(w)
	if len(segments) == 0 {
		return nil, nil
	}
	query := timewindow.Window{Start: w.Start, End: segments[len(segments)-1].End}
	busy, err := r.store.FreeBusy(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query free/busy: %w", err)
	}

	d := w.Duration()
	first := w.Start.Add(r.cfg.Step)
	if conflicts := calendar.Overlapping(busy, w); len(conflicts) > 0 {
		first = conflicts[0].End
		for _, c := range conflicts[1:] {
			if c.End.After(first) {
				first = c.End
			}
		}
	}

	var out []timewindow.Window
	for i, seg := range segments {
		start := seg.Start
		if i == 0 {
			start = first
		}
		for !start.Add(d).After(seg.End) {
			candidate := timewindow.Window{Start: start, End: start.Add(d)}
			if len(calendar.Overlapping(busy, candidate)) == 0 {
				out = append(out, candidate)
				if len(out) == count {
					r.logSuggestions(ctx, w, out)
					return out, nil
				}
			}
			start = start.Add(r.cfg.Step)
		}
	}

	r.logSuggestions(ctx, w, out)
	return out, nil
}

func (r *Resolver) logSuggestions(ctx context.Context, w timewindow.Window, out []timewindow.Window) {
	r.logger.DebugContext(ctx, "alternatives suggested",
		logging.Operation("availability.suggest"),
		slog.String("window", w.String()),
		slog.Int("found", len(out)))
}

// horizon returns the probe segments: the remainder of the requested
// local day, then working hours on the following business days.
func (r *Resolver) horizon(w timewindow.Window) []timewindow.Window {
	loc := r.cfg.Location
	local := w.Start.In(loc)
	day := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
	midnight := day.AddDate(0, 0, 1)

	var segments []timewindow.Window
	if w.Start.Before(midnight) {
		segments = append(segments, timewindow.Window{Start: w.Start, End: midnight.UTC()})
	}

	if !r.cfg.WorkdayStart.Before(r.cfg.WorkdayEnd) {
		return segments
	}
	next := midnight
	for added := 0; added < r.cfg.HorizonBusinessDays; next = next.AddDate(0, 0, 1) {
		if wd := next.Weekday(); wd == time.Saturday || wd == time.Sunday {
			continue
		}
		segments = append(segments, timewindow.Window{
			Start: r.cfg.WorkdayStart.Of(next, loc).UTC(),
			End:   r.cfg.WorkdayEnd.Of(next, loc).UTC(),
		})
		added++
	}
	return segments
}
