package calendar

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/teemow/agentcal/internal/textfold"
	"github.com/teemow/agentcal/internal/timewindow"
)

// Operation names recorded by MemoryStore.
const (
	OpFreeBusy = "freebusy"
	OpCreate   = "create"
	OpSearch   = "search"
)

// Call is one recorded MemoryStore call.
type Call struct {
	Op      string
	Window  timewindow.Window
	Subject string
	Term    string
	From    time.Time
	Limit   int
}

// MemoryStore is an in-process Store used by `agentcal chat` when no
// Google account is configured, and by tests.
type MemoryStore struct {
	mu     sync.Mutex
	events []Event
	calls  []Call
	fail   map[string][]error
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{fail: make(map[string][]error)}
}

// Add seeds an event and returns it.
func (m *MemoryStore) Add(subject, description string, w timewindow.Window) Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.insertLocked(subject, description, w)
}

// FailNext makes the next call of op return err. Calls queue in order.
func (m *MemoryStore) FailNext(op string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fail[op] = append(m.fail[op], err)
}

// Calls returns a copy of the recorded calls.
func (m *MemoryStore) Calls() []Call {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Call(nil), m.calls...)
}

// CallCount returns how many times op was called.
func (m *MemoryStore) CallCount(op string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, c := range m.calls {
		if c.Op == op {
			n++
		}
	}
	return n
}

// Events returns a copy of all stored events ordered by start.
func (m *MemoryStore) Events() []Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := append([]Event(nil), m.events...)
	sortEvents(out)
	return out
}

func (m *MemoryStore) record(c Call) error {
	m.calls = append(m.calls, c)
	if queued := m.fail[c.Op]; len(queued) > 0 {
		m.fail[c.Op] = queued[1:]
		return queued[0]
	}
	return nil
}

// FreeBusy implements Store.
func (m *MemoryStore) FreeBusy(ctx context.Context, w timewindow.Window) ([]timewindow.Window, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.record(Call{Op: OpFreeBusy, Window: w}); err != nil {
		return nil, err
	}

	var busy []timewindow.Window
	for _, ev := range m.events {
		if ev.Window.Overlaps(w) {
			busy = append(busy, ev.Window)
		}
	}
	sortWindows(busy)
	return busy, nil
}

// CreateEvent implements Store.
func (m *MemoryStore) CreateEvent(ctx context.Context, subject string, w timewindow.Window) (Event, error) {
	if err := ctx.Err(); err != nil {
		return Event{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.record(Call{Op: OpCreate, Window: w, Subject: subject}); err != nil {
		return Event{}, err
	}
	return m.insertLocked(subject, "", w), nil
}

// SearchEvents implements Store. Matching folds case and accents on both
// sides.
func (m *MemoryStore) SearchEvents(ctx context.Context, term string, from time.Time, limit int) ([]Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.record(Call{Op: OpSearch, Term: term, From: from, Limit: limit}); err != nil {
		return nil, err
	}

	var out []Event
	for _, ev := range m.events {
		if ev.Window.Start.Before(from) {
			continue
		}
		if textfold.Contains(ev.Subject, term) || textfold.Contains(ev.Description, term) {
			out = append(out, ev)
		}
	}
	sortEvents(out)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MemoryStore) insertLocked(subject, description string, w timewindow.Window) Event {
	id := uuid.NewString()
	raw, _ := json.Marshal(map[string]string{
		"id":      id,
		"summary": subject,
		"start":   timewindow.Format(w.Start),
		"end":     timewindow.Format(w.End),
	})
	ev := Event{
		ID:          id,
		Subject:     subject,
		Description: description,
		Window:      w,
		Link:        "memory://events/" + id,
		Raw:         raw,
	}
	m.events = append(m.events, ev)
	return ev
}

func sortEvents(events []Event) {
	sort.SliceStable(events, func(i, j int) bool {
		return events[i].Window.Start.Before(events[j].Window.Start)
	})
}
