package session

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestManager(t *testing.T, clock *fakeClock) (*Manager, *MemoryStore) {
	t.Helper()
	store := NewMemoryStore()
	m := NewManager(store, Config{TTL: 10 * time.Minute, SweepInterval: -1, Now: clock.Now})
	t.Cleanup(m.Stop)
	return m, store
}

func TestManagerStartAndGet(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	m, _ := newTestManager(t, clock)

	got, err := m.Get(ctx, "ana")
	require.NoError(t, err)
	assert.Nil(t, got)

	w := testWindow(t, "2024-01-02T10:30:00Z", time.Hour)
	s, err := m.Start(ctx, "ana", "team coffee", w)
	require.NoError(t, err)
	assert.NotEmpty(t, s.ID)
	assert.Equal(t, StateCheckingAvailability, s.State)
	assert.Equal(t, clock.Now(), s.CreatedAt)

	got, err = m.Get(ctx, "ana")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, s.ID, got.ID)
	assert.True(t, got.Requested.Equal(w))
}

func TestManagerStartOverwrites(t *testing.T) {
	ctx := context.Background()
	m, store := newTestManager(t, newFakeClock())

	first, err := m.Start(ctx, "ana", "coffee", testWindow(t, "2024-01-02T10:30:00Z", time.Hour))
	require.NoError(t, err)
	first.Attempts = 2
	_, err = m.Advance(ctx, first, StateAwaitingConfirmation)
	require.NoError(t, err)

	second, err := m.Start(ctx, "ana", "lunch", testWindow(t, "2024-01-03T12:00:00Z", time.Hour))
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, second.ID)

	got, err := m.Get(ctx, "ana")
	require.NoError(t, err)
	assert.Equal(t, "lunch", got.Subject)
	assert.Equal(t, 0, got.Attempts)
	assert.Equal(t, 1, store.Len())
}

func TestManagerAdvance(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	m, store := newTestManager(t, clock)

	s, err := m.Start(ctx, "ana", "coffee", testWindow(t, "2024-01-02T10:30:00Z", time.Hour))
	require.NoError(t, err)

	clock.Advance(time.Minute)
	tr, err := m.Advance(ctx, s, StateAwaitingConfirmation)
	require.NoError(t, err)
	assert.Equal(t, StateCheckingAvailability, tr.From)
	assert.Equal(t, StateAwaitingConfirmation, tr.To)

	got, err := m.Get(ctx, "ana")
	require.NoError(t, err)
	assert.Equal(t, StateAwaitingConfirmation, got.State)
	assert.Equal(t, clock.Now(), got.LastActivityAt)

	_, err = m.Advance(ctx, got, StateCreated)
	require.NoError(t, err)
	assert.Equal(t, 0, store.Len())

	got, err = m.Get(ctx, "ana")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestManagerExpiredSessionIsAbsent(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	m, store := newTestManager(t, clock)

	s, err := m.Start(ctx, "ana", "coffee", testWindow(t, "2024-01-02T10:30:00Z", time.Hour))
	require.NoError(t, err)
	s.Attempts = 2
	_, err = m.Advance(ctx, s, StateAwaitingConfirmation)
	require.NoError(t, err)

	clock.Advance(10*time.Minute + time.Second)

	got, err := m.Get(ctx, "ana")
	require.NoError(t, err)
	assert.Nil(t, got)
	assert.Equal(t, 0, store.Len())

	fresh, err := m.Start(ctx, "ana", "lunch", testWindow(t, "2024-01-03T12:00:00Z", time.Hour))
	require.NoError(t, err)
	assert.NotEqual(t, s.ID, fresh.ID)
	assert.Equal(t, 0, fresh.Attempts)
	assert.Empty(t, fresh.Alternatives)
	assert.Nil(t, fresh.Selected)
}

func TestManagerTouch(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	m, _ := newTestManager(t, clock)

	s, err := m.Start(ctx, "ana", "coffee", testWindow(t, "2024-01-02T10:30:00Z", time.Hour))
	require.NoError(t, err)

	clock.Advance(9 * time.Minute)
	s.Attempts++
	require.NoError(t, m.Touch(ctx, s))

	clock.Advance(9 * time.Minute)
	got, err := m.Get(ctx, "ana")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, 1, got.Attempts)
	assert.Equal(t, StateCheckingAvailability, got.State)
}

func TestManagerClear(t *testing.T) {
	ctx := context.Background()
	m, store := newTestManager(t, newFakeClock())

	_, err := m.Start(ctx, "ana", "coffee", testWindow(t, "2024-01-02T10:30:00Z", time.Hour))
	require.NoError(t, err)
	require.NoError(t, m.Clear(ctx, "ana"))
	require.NoError(t, m.Clear(ctx, "ana"))
	assert.Equal(t, 0, store.Len())
}

func TestManagerSweep(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	m, store := newTestManager(t, clock)

	_, err := m.Start(ctx, "ana", "coffee", testWindow(t, "2024-01-02T10:30:00Z", time.Hour))
	require.NoError(t, err)
	clock.Advance(6 * time.Minute)
	_, err = m.Start(ctx, "bob", "lunch", testWindow(t, "2024-01-02T12:00:00Z", time.Hour))
	require.NoError(t, err)
	clock.Advance(5 * time.Minute)

	n, err := m.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, 1, store.Len())
}

func TestManagerSweeperRunsInBackground(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	store := NewMemoryStore()
	m := NewManager(store, Config{TTL: time.Minute, SweepInterval: 10 * time.Millisecond, Now: clock.Now})
	defer m.Stop()

	_, err := m.Start(ctx, "ana", "coffee", testWindow(t, "2024-01-02T10:30:00Z", time.Hour))
	require.NoError(t, err)
	clock.Advance(2 * time.Minute)

	assert.Eventually(t, func() bool { return store.Len() == 0 }, time.Second, 10*time.Millisecond)
}

func TestManagerStopIsIdempotent(t *testing.T) {
	m := NewManager(NewMemoryStore(), Config{SweepInterval: time.Hour})
	m.Stop()
	m.Stop()
	assert.Equal(t, DefaultTTL, m.TTL())
}

func TestManagerLockSerializesPerUser(t *testing.T) {
	m, _ := newTestManager(t, newFakeClock())

	var active, maxActive int32
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := m.Lock("ana")
			defer unlock()
			n := atomic.AddInt32(&active, 1)
			for {
				cur := atomic.LoadInt32(&maxActive)
				if n <= cur || atomic.CompareAndSwapInt32(&maxActive, cur, n) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			atomic.AddInt32(&active, -1)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), maxActive)
	m.locksMu.Lock()
	assert.Empty(t, m.locks)
	m.locksMu.Unlock()
}

func TestManagerLockAllowsOtherUsers(t *testing.T) {
	m, _ := newTestManager(t, newFakeClock())

	unlockAna := m.Lock("ana")
	defer unlockAna()

	done := make(chan struct{})
	go func() {
		unlock := m.Lock("bob")
		unlock()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("lock for bob blocked on ana")
	}
}
