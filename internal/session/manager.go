package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/teemow/agentcal/internal/instrumentation"
	"github.com/teemow/agentcal/internal/logging"
	"github.com/teemow/agentcal/internal/timewindow"
)

// Defaults for Config.
const (
	DefaultTTL           = 10 * time.Minute
	DefaultSweepInterval = time.Minute
)

// Config configures a Manager.
type Config struct {
	// TTL is the inactivity threshold after which a session is discarded.
	TTL time.Duration
	// SweepInterval is how often idle sessions are purged in the
	// background. Zero uses DefaultSweepInterval; negative disables the
	// sweeper.
	SweepInterval time.Duration

	Logger  *slog.Logger
	Metrics *instrumentation.Metrics
	Now     func() time.Time
}

// Transition is the result of Advance.
type Transition struct {
	From    State
	To      State
	Session *Session
}

type userLock struct {
	mu   sync.Mutex
	refs int
}

// Manager owns the per-user negotiation sessions.
type Manager struct {
	store   Store
	ttl     time.Duration
	now     func() time.Time
	logger  *slog.Logger
	metrics *instrumentation.Metrics

	locksMu sync.Mutex
	locks   map[string]*userLock

	sweepTicker *time.Ticker
	sweepDone   chan struct{}
	stopOnce    sync.Once
}

// NewManager creates a Manager over store and starts the sweeper. Call
// Stop to release it.
func NewManager(store Store, cfg Config) *Manager {
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}
	if cfg.SweepInterval == 0 {
		cfg.SweepInterval = DefaultSweepInterval
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	m := &Manager{
		store:   store,
		ttl:     cfg.TTL,
		now:     cfg.Now,
		logger:  cfg.Logger,
		metrics: cfg.Metrics,
		locks:   make(map[string]*userLock),
	}

	if cfg.SweepInterval > 0 {
		m.sweepTicker = time.NewTicker(cfg.SweepInterval)
		m.sweepDone = make(chan struct{})
		go m.sweepLoop()
	}
	return m
}

// TTL returns the inactivity threshold.
func (m *Manager) TTL() time.Duration {
	return m.ttl
}

// Lock acquires the user's lock and returns the function that releases
// it. Messages from one user are handled one at a time; different users
// proceed in parallel.
func (m *Manager) Lock(user string) (unlock func()) {
	m.locksMu.Lock()
	l, ok := m.locks[user]
	if !ok {
		l = &userLock{}
		m.locks[user] = l
	}
	l.refs++
	m.locksMu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		m.locksMu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(m.locks, user)
		}
		m.locksMu.Unlock()
	}
}

// Get returns the user's live session, or nil when there is none. An
// expired session is deleted and reported as absent.
func (m *Manager) Get(ctx context.Context, user string) (*Session, error) {
	s, err := m.store.Load(ctx, user)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}

	if s.Expired(m.now(), m.ttl) {
		if _, err := m.discard(ctx, user); err != nil {
			return nil, err
		}
		m.metrics.RecordNegotiationOutcome(ctx, StateAbandoned.String(), "session_expired")
		m.logger.DebugContext(ctx, "session expired",
			logging.Operation("session.get"),
			logging.UserHash(user),
			logging.Session(s.ID),
			logging.State(s.State.String()))
		return nil, nil
	}
	return s, nil
}

// Start creates a fresh session for user in CheckingAvailability,
// replacing any session the user already had.
func (m *Manager) Start(ctx context.Context, user, subject string, w timewindow.Window) (*Session, error) {
	existed, err := m.store.Delete(ctx, user)
	if err != nil {
		return nil, fmt.Errorf("failed to start session: %w", err)
	}

	now := m.now()
	s := &Session{
		ID:             uuid.NewString(),
		User:           user,
		State:          StateCheckingAvailability,
		Subject:        subject,
		Requested:      w,
		CreatedAt:      now,
		LastActivityAt: now,
	}
	if err := m.store.Save(ctx, s); err != nil {
		if existed {
			m.metrics.DecrementActiveNegotiations(ctx)
		}
		return nil, fmt.Errorf("failed to start session: %w", err)
	}
	if !existed {
		m.metrics.IncrementActiveNegotiations(ctx)
	}

	m.metrics.RecordNegotiationTransition(ctx, StateResolvingTime.String(), s.State.String())
	m.logger.DebugContext(ctx, "session started",
		logging.Operation("session.start"),
		logging.UserHash(user),
		logging.Session(s.ID),
		logging.State(s.State.String()),
		slog.Bool("replaced", existed))
	return s, nil
}

// Advance moves s to state to, refreshing its activity time. A session
// entering a terminal state is cleared; otherwise the updated record is
// saved.
func (m *Manager) Advance(ctx context.Context, s *Session, to State) (Transition, error) {
	t := Transition{From: s.State, To: to, Session: s}
	s.State = to
	s.LastActivityAt = m.now()

	if to.Terminal() {
		if _, err := m.discard(ctx, s.User); err != nil {
			return t, err
		}
	} else if err := m.store.Save(ctx, s); err != nil {
		return t, fmt.Errorf("failed to save session: %w", err)
	}

	m.metrics.RecordNegotiationTransition(ctx, t.From.String(), t.To.String())
	m.logger.DebugContext(ctx, "session advanced",
		logging.Operation("session.advance"),
		logging.UserHash(s.User),
		logging.Session(s.ID),
		slog.String("from", t.From.String()),
		logging.State(t.To.String()))
	return t, nil
}

// Touch saves s with a refreshed activity time without changing state.
func (m *Manager) Touch(ctx context.Context, s *Session) error {
	s.LastActivityAt = m.now()
	if err := m.store.Save(ctx, s); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}

// Clear removes the user's session if any.
func (m *Manager) Clear(ctx context.Context, user string) error {
	_, err := m.discard(ctx, user)
	return err
}

func (m *Manager) discard(ctx context.Context, user string) (bool, error) {
	existed, err := m.store.Delete(ctx, user)
	if err != nil {
		return false, fmt.Errorf("failed to clear session: %w", err)
	}
	if existed {
		m.metrics.DecrementActiveNegotiations(ctx)
	}
	return existed, nil
}

// Sweep removes every session idle for longer than the TTL and returns
// how many were removed.
func (m *Manager) Sweep(ctx context.Context) (int, error) {
	n, err := m.store.DeleteIdleBefore(ctx, m.now().Add(-m.ttl))
	if err != nil {
		return 0, fmt.Errorf("failed to sweep sessions: %w", err)
	}
	for i := 0; i < n; i++ {
		m.metrics.DecrementActiveNegotiations(ctx)
		m.metrics.RecordNegotiationOutcome(ctx, StateAbandoned.String(), "session_expired")
	}
	return n, nil
}

func (m *Manager) sweepLoop() {
	for {
		select {
		case <-m.sweepTicker.C:
			n, err := m.Sweep(context.Background())
			if err != nil {
				m.logger.Warn("Failed to sweep expired sessions", logging.Err(err))
				continue
			}
			if n > 0 {
				m.logger.Info("Cleaned up expired sessions", "count", n)
			}
		case <-m.sweepDone:
			return
		}
	}
}

// Stop stops the sweeper. It does not close the store.
func (m *Manager) Stop() {
	m.stopOnce.Do(func() {
		if m.sweepTicker != nil {
			m.sweepTicker.Stop()
		}
		if m.sweepDone != nil {
			close(m.sweepDone)
		}
	})
}
