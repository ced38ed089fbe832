// Package search answers keyword queries against the calendar in a
// single round trip.
package search

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/teemow/agentcal/internal/calendar"
	"github.com/teemow/agentcal/internal/logging"
)

// DefaultLimit caps results when the caller gives no limit.
const DefaultLimit = 10

// MaxLimit is the largest limit passed to the store.
const MaxLimit = 250

// ErrEmptyTerm is returned for a blank search term.
var ErrEmptyTerm = errors.New("search term is empty")

// EventSearcher is the part of the calendar store the handler reads from.
type EventSearcher interface {
	SearchEvents(ctx context.Context, term string, from time.Time, limit int) ([]calendar.Event, error)
}

// Config configures a Handler.
type Config struct {
	Limit  int
	Now    func() time.Time
	Logger *slog.Logger
}

// Handler runs keyword searches.
type Handler struct {
	store  EventSearcher
	limit  int
	now    func() time.Time
	logger *slog.Logger
}

// NewHandler returns a Handler.
func NewHandler(store EventSearcher, cfg Config) *Handler {
	if cfg.Limit <= 0 {
		cfg.Limit = DefaultLimit
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Handler{store: store, limit: cfg.Limit, now: cfg.Now, logger: cfg.Logger}
}

// Search returns up to limit events matching term that start at or after
// from, earliest first. A zero from means now and a non-positive limit
// uses the configured default.
func (h *Handler) Search(ctx context.Context, term string, from time.Time, limit int) ([]calendar.Event, error) {
	term = strings.TrimSpace(term)
	if term == "" {
		return nil, ErrEmptyTerm
	}
	if from.IsZero() {
		from = h.now()
	}
	from = from.UTC().Truncate(time.Second)
	if limit <= 0 {
		limit = h.limit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}

	events, err := h.store.SearchEvents(ctx, term, from, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to search events: %w", err)
	}

	out := make([]calendar.Event, 0, len(events))
	for _, ev := range events {
		if !ev.Window.Start.Before(from) {
			out = append(out, ev)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Window.Start.Before(out[j].Window.Start)
	})
	if len(out) > limit {
		out = out[:limit]
	}

	h.logger.DebugContext(ctx, "events searched",
		logging.Operation("search"),
		slog.Int("results", len(out)),
		slog.Int("limit", limit))
	return out, nil
}
