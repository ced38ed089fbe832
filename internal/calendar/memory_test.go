package calendar

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teemow/agentcal/internal/timewindow"
)

func TestMemoryStore_FreeBusy(t *testing.T) {
	m := NewMemoryStore()
	m.Add("standup", "", mustWindow(t, "2024-01-02T10:00:00Z", "2024-01-02T10:30:00Z"))
	m.Add("lunch", "", mustWindow(t, "2024-01-02T12:00:00Z", "2024-01-02T13:00:00Z"))

	busy, err := m.FreeBusy(context.Background(), mustWindow(t, "2024-01-02T10:15:00Z", "2024-01-02T12:15:00Z"))
	require.NoError(t, err)
	require.Len(t, busy, 2)
	assert.Equal(t, "2024-01-02T10:00:00Z/2024-01-02T10:30:00Z", busy[0].String())

	busy, err = m.FreeBusy(context.Background(), mustWindow(t, "2024-01-02T10:30:00Z", "2024-01-02T12:00:00Z"))
	require.NoError(t, err)
	assert.Empty(t, busy, "touching intervals do not overlap")
}

func TestMemoryStore_CreateEventRecordsCall(t *testing.T) {
	m := NewMemoryStore()
	w := mustWindow(t, "2024-01-02T10:30:00Z", "2024-01-02T11:30:00Z")

	ev, err := m.CreateEvent(context.Background(), "team coffee", w)
	require.NoError(t, err)
	assert.NotEmpty(t, ev.ID)
	assert.Equal(t, "team coffee", ev.Subject)
	assert.True(t, ev.Window.Equal(w))
	assert.Contains(t, string(ev.Raw), `"start":"2024-01-02T10:30:00Z"`)

	require.Equal(t, 1, m.CallCount(OpCreate))
	call := m.Calls()[0]
	assert.Equal(t, "team coffee", call.Subject)
	assert.True(t, call.Window.Equal(w))
	assert.Len(t, m.Events(), 1)
}

func TestMemoryStore_FailNext(t *testing.T) {
	m := NewMemoryStore()
	boom := errors.New("backend unavailable")
	m.FailNext(OpFreeBusy, boom)

	w := mustWindow(t, "2024-01-02T10:30:00Z", "2024-01-02T11:30:00Z")
	_, err := m.FreeBusy(context.Background(), w)
	assert.ErrorIs(t, err, boom)

	_, err = m.FreeBusy(context.Background(), w)
	assert.NoError(t, err)
	assert.Equal(t, 2, m.CallCount(OpFreeBusy))
}

func TestMemoryStore_SearchEvents(t *testing.T) {
	m := NewMemoryStore()
	m.Add("Reunião de equipe", "", mustWindow(t, "2024-01-03T10:00:00Z", "2024-01-03T11:00:00Z"))
	m.Add("Dentist", "reuniao anual", mustWindow(t, "2024-01-02T10:00:00Z", "2024-01-02T11:00:00Z"))
	m.Add("REUNIÃO passada", "", mustWindow(t, "2023-12-30T10:00:00Z", "2023-12-30T11:00:00Z"))
	m.Add("Lunch", "", mustWindow(t, "2024-01-02T12:00:00Z", "2024-01-02T13:00:00Z"))

	from, err := timewindow.Parse("2024-01-01T00:00:00Z")
	require.NoError(t, err)

	events, err := m.SearchEvents(context.Background(), "reunião", from, 10)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "Dentist", events[0].Subject)
	assert.Equal(t, "Reunião de equipe", events[1].Subject)

	events, err = m.SearchEvents(context.Background(), "REUNIAO", from, 1)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "Dentist", events[0].Subject)
}

func TestMemoryStore_CanceledContext(t *testing.T) {
	m := NewMemoryStore()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := m.FreeBusy(ctx, mustWindow(t, "2024-01-02T10:30:00Z", "2024-01-02T11:30:00Z"))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, m.CallCount(OpFreeBusy))
}

func TestOverlapping(t *testing.T) {
	busy := []timewindow.Window{
		mustWindow(t, "2024-01-02T09:00:00Z", "2024-01-02T10:00:00Z"),
		mustWindow(t, "2024-01-02T10:30:00Z", "2024-01-02T11:00:00Z"),
	}
	got := Overlapping(busy, mustWindow(t, "2024-01-02T10:00:00Z", "2024-01-02T10:45:00Z"))
	require.Len(t, got, 1)
	assert.Equal(t, busy[1], got[0])
}
