package calendar

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"time"

	calendar "google.golang.org/api/calendar/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/teemow/agentcal/internal/instrumentation"
	"github.com/teemow/agentcal/internal/logging"
	"github.com/teemow/agentcal/internal/textfold"
	"github.com/teemow/agentcal/internal/timewindow"
)

// searchPageSlack is added to the search page size to leave room for events
// that began before the requested start.
const searchPageSlack = 10

var errSearchFull = errors.New("search limit reached")

// GoogleConfig configures a GoogleStore.
type GoogleConfig struct {
	// CalendarID is the calendar to read and write (default: "primary").
	CalendarID string

	// Location is attached to created events and used to place all-day
	// events found by search.
	Location *time.Location

	Metrics *instrumentation.Metrics
	Logger  *slog.Logger
}

// GoogleStore is a Store backed by the Google Calendar API.
type GoogleStore struct {
	svc        *calendar.Service
	calendarID string
	loc        *time.Location
	metrics    *instrumentation.Metrics
	logger     *slog.Logger
}

// NewGoogleStore creates a store using an authenticated HTTP client.
// Extra client options, such as option.WithEndpoint, are passed through.
func NewGoogleStore(ctx context.Context, httpClient *http.Client, config GoogleConfig, opts ...option.ClientOption) (*GoogleStore, error) {
	opts = append([]option.ClientOption{option.WithHTTPClient(httpClient)}, opts...)
	svc, err := calendar.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create Calendar service: %w", err)
	}

	if config.CalendarID == "" {
		config.CalendarID = "primary"
	}
	if config.Location == nil {
		config.Location = time.UTC
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}

	return &GoogleStore{
		svc:        svc,
		calendarID: config.CalendarID,
		loc:        config.Location,
		metrics:    config.Metrics,
		logger:     config.Logger.With("component", "calendar"),
	}, nil
}

// CalendarID returns the calendar this store operates on.
func (s *GoogleStore) CalendarID() string {
	return s.calendarID
}

func (s *GoogleStore) observe(ctx context.Context, op string, start time.Time, err error) {
	s.metrics.RecordCalendarOperation(ctx, op, s.calendarID, instrumentation.StatusOf(err), time.Since(start))
	if err != nil {
		s.logger.Warn("calendar call failed", logging.Operation(op), logging.Err(err))
	}
}

// FreeBusy queries the free-busy endpoint for w.
func (s *GoogleStore) FreeBusy(ctx context.Context, w timewindow.Window) (busy []timewindow.Window, err error) {
	start := time.Now()
	ctx, span := instrumentation.StartCalendarSpan(ctx, instrumentation.CalendarOpFreeBusy, s.calendarID)
	defer func() {
		instrumentation.EndSpan(span, err)
		s.observe(ctx, instrumentation.CalendarOpFreeBusy, start, err)
	}()

	resp, err := s.svc.Freebusy.Query(&calendar.FreeBusyRequest{
		TimeMin: timewindow.Format(w.Start),
		TimeMax: timewindow.Format(w.End),
		Items:   []*calendar.FreeBusyRequestItem{{Id: s.calendarID}},
	}).Context(ctx).Do()
	if err != nil {
		return nil, s.wrap("query free-busy", err)
	}

	cal, ok := resp.Calendars[s.calendarID]
	if !ok {
		return nil, fmt.Errorf("free-busy response has no entry for %q", s.calendarID)
	}
	for _, e := range cal.Errors {
		if e.Reason == "notFound" {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, s.calendarID)
		}
		return nil, fmt.Errorf("free-busy query for %q failed: %s", s.calendarID, e.Reason)
	}

	for _, p := range cal.Busy {
		b, err := parseInterval(p.Start, p.End)
		if err != nil {
			return nil, fmt.Errorf("invalid busy interval: %w", err)
		}
		busy = append(busy, b)
	}
	sortWindows(busy)
	return busy, nil
}

// CreateEvent inserts an event with the given subject.
func (s *GoogleStore) CreateEvent(ctx context.Context, subject string, w timewindow.Window) (ev Event, err error) {
	start := time.Now()
	ctx, span := instrumentation.StartCalendarSpan(ctx, instrumentation.CalendarOpCreate, s.calendarID)
	defer func() {
		instrumentation.EndSpan(span, err)
		s.observe(ctx, instrumentation.CalendarOpCreate, start, err)
	}()

	created, err := s.svc.Events.Insert(s.calendarID, &calendar.Event{
		Summary: subject,
		Start:   &calendar.EventDateTime{DateTime: timewindow.Format(w.Start), TimeZone: s.loc.String()},
		End:     &calendar.EventDateTime{DateTime: timewindow.Format(w.End), TimeZone: s.loc.String()},
	}).Context(ctx).Do()
	if err != nil {
		return Event{}, s.wrap("create event", err)
	}

	ev, err = s.toEvent(created)
	if err != nil {
		return Event{}, err
	}
	return ev, nil
}

// SearchEvents runs a free-text query. The term is folded to plain
// lowercase ASCII letters before it is sent.
func (s *GoogleStore) SearchEvents(ctx context.Context, term string, from time.Time, limit int) (events []Event, err error) {
	start := time.Now()
	ctx, span := instrumentation.StartCalendarSpan(ctx, instrumentation.CalendarOpSearch, s.calendarID)
	defer func() {
		instrumentation.EndSpan(span, err)
		s.observe(ctx, instrumentation.CalendarOpSearch, start, err)
	}()

	call := s.svc.Events.List(s.calendarID).
		Q(textfold.Fold(term)).
		TimeMin(timewindow.Format(from)).
		SingleEvents(true).
		OrderBy("startTime")
	if limit > 0 {
		call = call.MaxResults(int64(limit + searchPageSlack))
	}

	// timeMin filters on end time, so events already in progress at from come
	// back too and are dropped here. Keep paging until limit events remain.
	cutoff := from.UTC().Truncate(time.Second)
	err = call.Pages(ctx, func(resp *calendar.Events) error {
		for _, item := range resp.Items {
			ev, err := s.toEvent(item)
			if err != nil {
				s.logger.Debug("skipping event with unreadable times", logging.Err(err))
				continue
			}
			if ev.Window.Start.Before(cutoff) {
				continue
			}
			events = append(events, ev)
		}
		if limit > 0 && len(events) >= limit {
			return errSearchFull
		}
		return nil
	})
	if err != nil && !errors.Is(err, errSearchFull) {
		return nil, s.wrap("search events", err)
	}

	sort.SliceStable(events, func(i, j int) bool { return events[i].Window.Start.Before(events[j].Window.Start) })
	if limit > 0 && len(events) > limit {
		events = events[:limit]
	}
	return events, nil
}

func (s *GoogleStore) wrap(action string, err error) error {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) && gerr.Code == http.StatusNotFound {
		return fmt.Errorf("failed to %s: %w: %s", action, ErrNotFound, s.calendarID)
	}
	return fmt.Errorf("failed to %s: %w", action, err)
}

func (s *GoogleStore) toEvent(item *calendar.Event) (Event, error) {
	if item == nil {
		return Event{}, fmt.Errorf("empty event")
	}
	startAt, err := s.eventTime(item.Start)
	if err != nil {
		return Event{}, fmt.Errorf("event %s start: %w", item.Id, err)
	}
	endAt, err := s.eventTime(item.End)
	if err != nil {
		return Event{}, fmt.Errorf("event %s end: %w", item.Id, err)
	}
	w, err := timewindow.New(startAt, endAt)
	if err != nil {
		return Event{}, fmt.Errorf("event %s: %w", item.Id, err)
	}

	raw, err := json.Marshal(item)
	if err != nil {
		return Event{}, fmt.Errorf("failed to encode event %s: %w", item.Id, err)
	}

	return Event{
		ID:          item.Id,
		Subject:     item.Summary,
		Description: item.Description,
		Window:      w,
		Link:        item.HtmlLink,
		Raw:         raw,
	}, nil
}

func (s *GoogleStore) eventTime(edt *calendar.EventDateTime) (time.Time, error) {
	if edt == nil {
		return time.Time{}, fmt.Errorf("missing time")
	}
	if edt.DateTime != "" {
		return time.Parse(time.RFC3339, edt.DateTime)
	}
	if edt.Date != "" {
		return time.ParseInLocation("2006-01-02", edt.Date, s.loc)
	}
	return time.Time{}, fmt.Errorf("missing time")
}

func parseInterval(start, end string) (timewindow.Window, error) {
	s, err := time.Parse(time.RFC3339, start)
	if err != nil {
		return timewindow.Window{}, err
	}
	e, err := time.Parse(time.RFC3339, end)
	if err != nil {
		return timewindow.Window{}, err
	}
	return timewindow.New(s, e)
}

func sortWindows(ws []timewindow.Window) {
	sort.SliceStable(ws, func(i, j int) bool {
		if !ws[i].Start.Equal(ws[j].Start) {
			return ws[i].Start.Before(ws[j].Start)
		}
		return ws[i].End.Before(ws[j].End)
	})
}
