// Package assistanttest builds a fully wired Assistant over in-memory
// stores for transport tests.
package assistanttest

import (
	"testing"
	"time"

	"github.com/teemow/agentcal/internal/assistant"
	"github.com/teemow/agentcal/internal/availability"
	"github.com/teemow/agentcal/internal/calendar"
	"github.com/teemow/agentcal/internal/intent"
	"github.com/teemow/agentcal/internal/negotiator"
	"github.com/teemow/agentcal/internal/reply"
	"github.com/teemow/agentcal/internal/search"
	"github.com/teemow/agentcal/internal/session"
	"github.com/teemow/agentcal/internal/timewindow"
)

// Now is the fixed clock used by Fixture: Monday 2024-01-01 09:00 UTC.
var Now = time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)

// Fixture holds an Assistant and the fakes behind it.
type Fixture struct {
	Assistant *assistant.Assistant
	Search    *search.Handler
	Calendar  *calendar.MemoryStore
	Replies   *reply.Catalog
}

// New wires an Assistant in UTC with the rule oracle, a memory calendar
// and a memory session store.
func New(t testing.TB) *Fixture {
	t.Helper()
	now := func() time.Time { return Now }
	store := calendar.NewMemoryStore()

	sessions := session.NewManager(session.NewMemoryStore(), session.Config{SweepInterval: -1, Now: now})
	t.Cleanup(sessions.Stop)

	replies, err := reply.New(time.UTC, nil)
	if err != nil {
		t.Fatalf("failed to build reply catalog: %v", err)
	}

	neg := negotiator.New(
		sessions,
		timewindow.NewNormalizer(time.UTC, time.Hour),
		availability.NewResolver(store, availability.Config{}),
		store,
		negotiator.Config{Now: now},
	)
	searcher := search.NewHandler(store, search.Config{Now: now})

	a := assistant.New(
		intent.NewParser(intent.NewRuleOracle(), "rules", nil, nil),
		sessions, neg, searcher, replies, assistant.Config{},
	)
	return &Fixture{Assistant: a, Search: searcher, Calendar: store, Replies: replies}
}

// Window returns the one-hour window starting at start, which must use the
// strict UTC layout.
func Window(t testing.TB, start string) timewindow.Window {
	t.Helper()
	s, err := timewindow.Parse(start)
	if err != nil {
		t.Fatalf("bad start %q: %v", start, err)
	}
	w, err := timewindow.Of(s, time.Hour)
	if err != nil {
		t.Fatalf("bad window: %v", err)
	}
	return w
}
