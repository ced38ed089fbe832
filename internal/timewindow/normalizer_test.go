package timewindow

import (
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var wirePattern = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}T\d{2}:\d{2}:\d{2}Z$`)

func mustTime(t *testing.T, s string) time.Time {
	t.Helper()
	ts, err := time.Parse(time.RFC3339, s)
	require.NoError(t, err)
	return ts
}

func TestNormalizeTomorrowAt3pm(t *testing.T) {
	n := NewNormalizer(time.UTC, time.Hour)
	now := mustTime(t, "2024-01-01T00:00:00Z")

	w, err := n.Normalize("tomorrow at 3pm", now)
	require.NoError(t, err)
	assert.Equal(t, "2024-01-02T15:00:00Z", Format(w.Start))
	assert.Equal(t, "2024-01-02T16:00:00Z", Format(w.End))
}

func TestNormalizeResolvesPhrases(t *testing.T) {
	// 2024-01-01 is a Monday.
	monday9am := mustTime(t, "2024-01-01T09:00:00Z")
	tuesday8am := mustTime(t, "2024-01-02T08:00:00Z")
	tuesday11am := mustTime(t, "2024-01-02T11:00:00Z")

	tests := []struct {
		name      string
		phrase    string
		now       time.Time
		wantStart string
		wantEnd   string
	}{
		{name: "weekday with 24h clock", phrase: "Tuesday 10:30", now: monday9am, wantStart: "2024-01-02T10:30:00Z", wantEnd: "2024-01-02T11:30:00Z"},
		{name: "weekday later today", phrase: "tuesday at 10am", now: tuesday8am, wantStart: "2024-01-02T10:00:00Z", wantEnd: "2024-01-02T11:00:00Z"},
		{name: "weekday already passed today", phrase: "tuesday at 10am", now: tuesday11am, wantStart: "2024-01-09T10:00:00Z", wantEnd: "2024-01-09T11:00:00Z"},
		{name: "next weekday skips today", phrase: "next Tuesday at 10am", now: tuesday8am, wantStart: "2024-01-09T10:00:00Z", wantEnd: "2024-01-09T11:00:00Z"},
		{name: "relative hours", phrase: "in two hours", now: mustTime(t, "2024-01-01T10:15:30Z"), wantStart: "2024-01-01T12:15:30Z", wantEnd: "2024-01-01T13:15:30Z"},
		{name: "relative minutes with digits", phrase: "in 45 minutes", now: monday9am, wantStart: "2024-01-01T09:45:00Z", wantEnd: "2024-01-01T10:45:00Z"},
		{name: "h suffix", phrase: "15h", now: monday9am, wantStart: "2024-01-01T15:00:00Z", wantEnd: "2024-01-01T16:00:00Z"},
		{name: "h suffix with minutes", phrase: "amanhã às 15h30", now: monday9am, wantStart: "2024-01-02T15:30:00Z", wantEnd: "2024-01-02T16:30:00Z"},
		{name: "clock already passed rolls to tomorrow", phrase: "10:30", now: mustTime(t, "2024-01-01T11:00:00Z"), wantStart: "2024-01-02T10:30:00Z", wantEnd: "2024-01-02T11:30:00Z"},
		{name: "explicit length", phrase: "3pm for 30 minutes", now: monday9am, wantStart: "2024-01-01T15:00:00Z", wantEnd: "2024-01-01T15:30:00Z"},
		{name: "half an hour", phrase: "tomorrow 9am for half an hour", now: monday9am, wantStart: "2024-01-02T09:00:00Z", wantEnd: "2024-01-02T09:30:00Z"},
		{name: "explicit range", phrase: "from 2pm to 4pm tomorrow", now: monday9am, wantStart: "2024-01-02T14:00:00Z", wantEnd: "2024-01-02T16:00:00Z"},
		{name: "range inherits meridiem", phrase: "tomorrow 10-11am", now: monday9am, wantStart: "2024-01-02T10:00:00Z", wantEnd: "2024-01-02T11:00:00Z"},
		{name: "part of day resolves bare hour", phrase: "tonight at 8", now: monday9am, wantStart: "2024-01-01T20:00:00Z", wantEnd: "2024-01-01T21:00:00Z"},
		{name: "noon", phrase: "tomorrow at noon", now: monday9am, wantStart: "2024-01-02T12:00:00Z", wantEnd: "2024-01-02T13:00:00Z"},
		{name: "midnight portuguese", phrase: "amanhã à meia-noite", now: monday9am, wantStart: "2024-01-02T00:00:00Z", wantEnd: "2024-01-02T01:00:00Z"},
		{name: "midnight portuguese without hyphen", phrase: "amanhã à meia noite", now: monday9am, wantStart: "2024-01-02T00:00:00Z", wantEnd: "2024-01-02T01:00:00Z"},
		{name: "iso date and time", phrase: "2024-01-05 14:00", now: monday9am, wantStart: "2024-01-05T14:00:00Z", wantEnd: "2024-01-05T15:00:00Z"},
		{name: "month name", phrase: "January 20 at 9:15", now: monday9am, wantStart: "2024-01-20T09:15:00Z", wantEnd: "2024-01-20T10:15:00Z"},
		{name: "day month portuguese", phrase: "5 de fevereiro 14h", now: monday9am, wantStart: "2024-02-05T14:00:00Z", wantEnd: "2024-02-05T15:00:00Z"},
		{name: "unambiguous slash date", phrase: "25/01 10:00", now: monday9am, wantStart: "2024-01-25T10:00:00Z", wantEnd: "2024-01-25T11:00:00Z"},
		{name: "rfc3339 instant", phrase: "2024-01-05T10:00:00Z", now: monday9am, wantStart: "2024-01-05T10:00:00Z", wantEnd: "2024-01-05T11:00:00Z"},
		{name: "redundant weekday and relative day", phrase: "tomorrow tuesday 10am", now: monday9am, wantStart: "2024-01-02T10:00:00Z", wantEnd: "2024-01-02T11:00:00Z"},
		{name: "a.m. with dots", phrase: "tomorrow 9 a.m.", now: monday9am, wantStart: "2024-01-02T09:00:00Z", wantEnd: "2024-01-02T10:00:00Z"},
	}

	n := NewNormalizer(time.UTC, time.Hour)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, err := n.Normalize(tt.phrase, tt.now)
			require.NoError(t, err)
			assert.Equal(t, tt.wantStart, Format(w.Start))
			assert.Equal(t, tt.wantEnd, Format(w.End))
			assert.Regexp(t, wirePattern, Format(w.Start))
			assert.Regexp(t, wirePattern, Format(w.End))
		})
	}
}

func TestNormalizeLocalTimezone(t *testing.T) {
	brt := time.FixedZone("BRT", -3*60*60)
	n := NewNormalizer(brt, 0)
	now := mustTime(t, "2024-01-01T12:00:00Z")

	w, err := n.Normalize("tomorrow at 3pm", now)
	require.NoError(t, err)
	assert.Equal(t, "2024-01-02T18:00:00Z", Format(w.Start))
	assert.Equal(t, DefaultDuration, w.Duration())
}

func TestNormalizeLocalDayBoundary(t *testing.T) {
	// 01:30 UTC on Jan 2 is still Jan 1 in BRT, so "tomorrow" is Jan 2 local.
	brt := time.FixedZone("BRT", -3*60*60)
	n := NewNormalizer(brt, time.Hour)
	now := mustTime(t, "2024-01-02T01:30:00Z")

	w, err := n.Normalize("tomorrow 10:00", now)
	require.NoError(t, err)
	assert.Equal(t, "2024-01-02T13:00:00Z", Format(w.Start))
}

func TestNormalizeWithDurationOverride(t *testing.T) {
	n := NewNormalizer(time.UTC, time.Hour)
	now := mustTime(t, "2024-01-01T09:00:00Z")

	w, err := n.NormalizeWithDuration("tomorrow 10:00", now, 45*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 45*time.Minute, w.Duration())

	w, err = n.NormalizeWithDuration("tomorrow 10:00 for 2 hours", now, 45*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 2*time.Hour, w.Duration())
}

func TestNormalizeErrors(t *testing.T) {
	now := mustTime(t, "2024-01-01T10:00:00Z") // Monday

	tests := []struct {
		name   string
		phrase string
		opts   []Option
		want   Reason
	}{
		{name: "empty", phrase: "   ", want: ReasonUnparseable},
		{name: "no time tokens", phrase: "whenever works", want: ReasonUnparseable},
		{name: "bare hour without meridiem", phrase: "tomorrow at 3", want: ReasonAmbiguous},
		{name: "date without time", phrase: "tomorrow", want: ReasonAmbiguous},
		{name: "weekday without time", phrase: "next Tuesday", want: ReasonAmbiguous},
		{name: "two times", phrase: "tomorrow 3pm 4pm", want: ReasonAmbiguous},
		{name: "conflicting dates", phrase: "tomorrow wednesday 10am", want: ReasonAmbiguous},
		{name: "offset and explicit time", phrase: "in 2 hours tomorrow", want: ReasonAmbiguous},
		{name: "slash date reads both ways", phrase: "03/04 10:00", want: ReasonAmbiguous},
		{name: "earlier today", phrase: "today at 9am", want: ReasonPastInstant},
		{name: "past date", phrase: "2023-12-31 10:00", want: ReasonPastInstant},
		{name: "past rfc3339", phrase: "2023-12-31T10:00:00Z", want: ReasonPastInstant},
		{name: "invalid clock", phrase: "tomorrow 25:00", want: ReasonUnparseable},
		{name: "invalid date", phrase: "2024-13-01 10:00", want: ReasonUnparseable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n := NewNormalizer(time.UTC, time.Hour, tt.opts...)
			_, err := n.Normalize(tt.phrase, now)
			require.Error(t, err)

			var nerr *NormalizationError
			require.ErrorAs(t, err, &nerr)
			assert.Equal(t, tt.want, nerr.Reason)
			assert.Equal(t, tt.want, ReasonOf(err))
		})
	}
}

func TestNormalizeDateOrder(t *testing.T) {
	now := mustTime(t, "2024-01-01T10:00:00Z")

	dmy := NewNormalizer(time.UTC, time.Hour, WithDateOrder(DateOrderDMY))
	w, err := dmy.Normalize("03/04 10:00", now)
	require.NoError(t, err)
	assert.Equal(t, "2024-04-03T10:00:00Z", Format(w.Start))

	mdy := NewNormalizer(time.UTC, time.Hour, WithDateOrder(DateOrderMDY))
	w, err = mdy.Normalize("03/04 10:00", now)
	require.NoError(t, err)
	assert.Equal(t, "2024-03-04T10:00:00Z", Format(w.Start))
}

func TestNormalizeIsDeterministic(t *testing.T) {
	n := NewNormalizer(time.UTC, time.Hour)
	now := mustTime(t, "2024-01-01T00:00:00Z")

	first, err := n.Normalize("next friday 4:45pm", now)
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		again, err := n.Normalize("next friday 4:45pm", now)
		require.NoError(t, err)
		assert.True(t, first.Equal(again))
	}
}

func TestClockCandidates(t *testing.T) {
	n := NewNormalizer(time.UTC, time.Hour)

	assert.Equal(t, []Clock{{Hour: 3}, {Hour: 15}}, n.ClockCandidates("3"))
	assert.Equal(t, []Clock{{Hour: 10, Minute: 30}}, n.ClockCandidates("the one at 10:30"))
	assert.Equal(t, []Clock{{Hour: 16}}, n.ClockCandidates("4pm please"))
	assert.Empty(t, n.ClockCandidates("the second one"))
}

func TestScanReply(t *testing.T) {
	n := NewNormalizer(time.UTC, time.Hour)

	r := n.ScanReply("11:30 works for me")
	assert.Equal(t, []Clock{{Hour: 11, Minute: 30}}, r.Clocks)
	assert.False(t, r.Dated)
	assert.Equal(t, []string{"works", "for", "me"}, r.Rest)

	r = n.ScanReply("schedule dentist on friday at 11:00")
	assert.Equal(t, []Clock{{Hour: 11}}, r.Clocks)
	assert.True(t, r.Dated)
	assert.Contains(t, r.Rest, "dentist")
	assert.NotContains(t, r.Rest, "friday")

	assert.True(t, n.ScanReply("in two hours").Dated)
	assert.True(t, n.ScanReply("3pm for 30 minutes").Dated)
	assert.Equal(t, []Clock{{Hour: 0}}, n.ScanReply("meia-noite").Clocks)
}

func TestReasonString(t *testing.T) {
	assert.Equal(t, "ambiguous", ReasonAmbiguous.String())
	assert.Equal(t, "unparseable", ReasonUnparseable.String())
	assert.Equal(t, "past_instant", ReasonPastInstant.String())
	assert.Equal(t, "unknown", Reason(0).String())
}

func TestParseClock(t *testing.T) {
	c, err := ParseClock("09:00")
	require.NoError(t, err)
	assert.Equal(t, Clock{Hour: 9}, c)
	assert.Equal(t, "09:00", c.String())

	c, err = ParseClock(" 18:30 ")
	require.NoError(t, err)
	assert.Equal(t, Clock{Hour: 18, Minute: 30}, c)
	assert.True(t, Clock{Hour: 9}.Before(c))
	assert.False(t, c.Before(Clock{Hour: 9}))

	for _, bad := range []string{"", "9", "25:00", "9am"} {
		_, err := ParseClock(bad)
		assert.Error(t, err, bad)
	}
}
