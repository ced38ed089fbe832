package reply

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teemow/agentcal/internal/calendar"
	"github.com/teemow/agentcal/internal/negotiator"
	"github.com/teemow/agentcal/internal/session"
	"github.com/teemow/agentcal/internal/timewindow"
)

func mustWindow(t *testing.T, start string, d time.Duration) timewindow.Window {
	t.Helper()
	s, err := timewindow.Parse(start)
	require.NoError(t, err)
	w, err := timewindow.Of(s, d)
	require.NoError(t, err)
	return w
}

func newTestCatalog(t *testing.T, overrides map[string]string) *Catalog {
	t.Helper()
	c, err := New(time.UTC, overrides)
	require.NoError(t, err)
	return c
}

func TestNegotiationReplies(t *testing.T) {
	c := newTestCatalog(t, nil)
	w := mustWindow(t, "2024-01-02T10:30:00Z", time.Hour)
	alts := []timewindow.Window{
		mustWindow(t, "2024-01-02T11:30:00Z", time.Hour),
		mustWindow(t, "2024-01-02T12:00:00Z", time.Hour),
	}

	tests := []struct {
		name    string
		outcome negotiator.Outcome
		want    string
	}{
		{
			name:    "confirm",
			outcome: negotiator.Outcome{State: session.StateAwaitingConfirmation, Subject: "team coffee", Window: w, Free: true},
			want:    "team coffee on Tue 02/01 10:30-11:30 is free. Shall I book it? (yes/no)",
		},
		{
			name:    "choose",
			outcome: negotiator.Outcome{State: session.StateAwaitingUserChoice, Subject: "team coffee", Window: w, Alternatives: alts},
			want: "You are busy on Tue 02/01 10:30-11:30. Free times nearby:\n" +
				"1. Tue 02/01 11:30-12:30\n" +
				"2. Tue 02/01 12:00-13:00\n" +
				"Reply with a number or a time, or \"no\" to cancel.",
		},
		{
			name:    "created with link",
			outcome: negotiator.Outcome{State: session.StateCreated, Subject: "team coffee", Window: w, Event: &calendar.Event{ID: "1", Link: "https://calendar.example/e/1"}},
			want:    "Booked \"team coffee\" on Tue 02/01 10:30-11:30.\nhttps://calendar.example/e/1",
		},
		{
			name:    "declined",
			outcome: negotiator.Outcome{State: session.StateAbandoned, Subject: "team coffee", Declined: true},
			want:    "OK, I won't book \"team coffee\".",
		},
		{
			name:    "ambiguous time",
			outcome: negotiator.Outcome{State: session.StateAbandoned, Failure: negotiator.FailureNormalization, Reason: timewindow.ReasonAmbiguous},
			want:    defaultTemplates[KeyClarifyAmbiguous],
		},
		{
			name:    "past time",
			outcome: negotiator.Outcome{State: session.StateAbandoned, Failure: negotiator.FailureNormalization, Reason: timewindow.ReasonPastInstant},
			want:    defaultTemplates[KeyClarifyPast],
		},
		{
			name:    "external failure",
			outcome: negotiator.Outcome{State: session.StateCheckingAvailability, Failure: negotiator.FailureExternalCall, Err: errors.New("x")},
			want:    defaultTemplates[KeyExternalFailure],
		},
		{
			name:    "max retries",
			outcome: negotiator.Outcome{State: session.StateAbandoned, Failure: negotiator.FailureMaxRetries, Subject: "sync"},
			want:    "I couldn't understand the answer, so I dropped \"sync\". Ask again whenever you like.",
		},
		{
			name:    "reprompt confirmation",
			outcome: negotiator.Outcome{State: session.StateAwaitingConfirmation, Reprompt: true, Subject: "sync", Window: w},
			want:    "Sorry, I didn't get that. Should I book \"sync\" on Tue 02/01 10:30-11:30? Please answer yes or no.",
		},
		{
			name:    "pending",
			outcome: negotiator.Outcome{State: session.StateCheckingAvailability, Subject: "sync"},
			want:    "I'm still working on \"sync\". Send any message to try again.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, c.Negotiation(tt.outcome))
		})
	}
}

func TestRecheckedChoice(t *testing.T) {
	c := newTestCatalog(t, nil)
	out := negotiator.Outcome{
		State:        session.StateAwaitingUserChoice,
		Window:       mustWindow(t, "2024-01-02T12:00:00Z", time.Hour),
		Alternatives: []timewindow.Window{mustWindow(t, "2024-01-02T13:00:00Z", time.Hour)},
		Rechecked:    true,
	}
	assert.Contains(t, c.Negotiation(out), "Tue 02/01 12:00-13:00 was just taken.")
}

func TestRepliesUseLocalTime(t *testing.T) {
	brt := time.FixedZone("BRT", -3*60*60)
	c, err := New(brt, nil)
	require.NoError(t, err)

	out := negotiator.Outcome{Window: mustWindow(t, "2024-01-02T13:30:00Z", time.Hour), Free: true}
	assert.Equal(t, "You are free on Tue 02/01 10:30-11:30.", c.Availability(out))
}

func TestSpanAcrossMidnight(t *testing.T) {
	c := newTestCatalog(t, nil)
	assert.Equal(t, "Tue 02/01 23:30 - Wed 03/01 00:30", c.span(mustWindow(t, "2024-01-02T23:30:00Z", time.Hour)))
}

func TestAvailabilityReplies(t *testing.T) {
	c := newTestCatalog(t, nil)
	w := mustWindow(t, "2024-01-02T10:30:00Z", time.Hour)

	busy := c.Availability(negotiator.Outcome{Window: w, Alternatives: []timewindow.Window{mustWindow(t, "2024-01-02T11:30:00Z", time.Hour)}})
	assert.Equal(t, "You are busy on Tue 02/01 10:30-11:30. Free times nearby:\n1. Tue 02/01 11:30-12:30", busy)

	none := c.Availability(negotiator.Outcome{Window: w, Failure: negotiator.FailureAvailabilityExhausted})
	assert.Equal(t, "You are busy on Tue 02/01 10:30-11:30. I found no free time nearby.", none)

	assert.Equal(t, defaultTemplates[KeyClarifyUnparseable],
		c.Availability(negotiator.Outcome{Failure: negotiator.FailureNormalization, Reason: timewindow.ReasonUnparseable}))
	assert.Equal(t, defaultTemplates[KeyExternalFailure],
		c.Availability(negotiator.Outcome{Failure: negotiator.FailureExternalCall}))
}

func TestSearchReplies(t *testing.T) {
	c := newTestCatalog(t, nil)
	events := []calendar.Event{
		{Subject: "Dentist", Window: mustWindow(t, "2024-01-10T10:00:00Z", time.Hour)},
		{Subject: "Dentist follow-up", Window: mustWindow(t, "2024-02-05T16:15:00Z", time.Hour)},
	}

	assert.Equal(t, "Events matching \"dentist\":\n- Wed 10/01 10:00: Dentist\n- Mon 05/02 16:15: Dentist follow-up", c.Search("dentist", events))
	assert.Equal(t, "No upcoming events match \"yoga\".", c.Search("yoga", nil))
	assert.Equal(t, defaultTemplates[KeySearchFailed], c.SearchFailed())
}

func TestFixedReplies(t *testing.T) {
	c := newTestCatalog(t, nil)
	assert.Equal(t, defaultTemplates[KeyHelp], c.Help())
	assert.Equal(t, defaultTemplates[KeyRateLimited], c.RateLimited())
	assert.Equal(t, defaultTemplates[KeyExternalFailure], c.Unavailable())
}

func TestOverrides(t *testing.T) {
	c := newTestCatalog(t, map[string]string{
		KeyConfirm: `Posso marcar "{{.Subject}}" em {{span .Window}}?`,
		KeyHelp:    "Olá! Posso agendar, verificar e buscar eventos.",
	})

	out := negotiator.Outcome{State: session.StateAwaitingConfirmation, Subject: "café", Window: mustWindow(t, "2024-01-02T10:30:00Z", time.Hour)}
	assert.Equal(t, `Posso marcar "café" em Tue 02/01 10:30-11:30?`, c.Negotiation(out))
	assert.Equal(t, "Olá! Posso agendar, verificar e buscar eventos.", c.Help())
}

func TestOverrideExecutionFailureFallsBack(t *testing.T) {
	c := newTestCatalog(t, map[string]string{KeyDeclined: `{{.Missing}}`})
	out := negotiator.Outcome{State: session.StateAbandoned, Subject: "sync", Declined: true}
	assert.Equal(t, "OK, I won't book \"sync\".", c.Negotiation(out))
}

func TestNewRejectsBadOverrides(t *testing.T) {
	_, err := New(time.UTC, map[string]string{"greeting": "hi"})
	assert.ErrorContains(t, err, "greeting")

	_, err = New(time.UTC, map[string]string{KeyConfirm: "{{.Subject"})
	assert.Error(t, err)
}

func TestRenderUnknownTemplate(t *testing.T) {
	c := newTestCatalog(t, nil)
	_, err := c.Render("nope", nil)
	assert.Error(t, err)
}

func TestNames(t *testing.T) {
	names := Names()
	assert.Len(t, names, len(defaultTemplates))
	assert.Contains(t, names, KeyConfirm)
	assert.IsIncreasing(t, names)
}
