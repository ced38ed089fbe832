package session

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrNotFound is returned by a Store when the user has no session.
var ErrNotFound = errors.New("session not found")

// Backend names accepted by configuration.
const (
	BackendMemory = "memory"
	BackendSQLite = "sqlite"
	BackendValkey = "valkey"
)

// Store persists sessions keyed by user. Implementations must be safe for
// concurrent use.
type Store interface {
	Load(ctx context.Context, user string) (*Session, error)
	Save(ctx context.Context, s *Session) error
	// Delete removes the user's session and reports whether one existed.
	Delete(ctx context.Context, user string) (bool, error)
	// DeleteIdleBefore removes sessions whose last activity is before
	// cutoff and returns how many were removed.
	DeleteIdleBefore(ctx context.Context, cutoff time.Time) (int, error)
	Close() error
}

// MemoryStore keeps sessions in process memory.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[string]*Session)}
}

// Load implements Store.
func (m *MemoryStore) Load(_ context.Context, user string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[user]
	if !ok {
		return nil, ErrNotFound
	}
	return s.Clone(), nil
}

// Save implements Store.
func (m *MemoryStore) Save(_ context.Context, s *Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[s.User] = s.Clone()
	return nil
}

// Delete implements Store.
func (m *MemoryStore) Delete(_ context.Context, user string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.sessions[user]
	delete(m.sessions, user)
	return ok, nil
}

// DeleteIdleBefore implements Store.
func (m *MemoryStore) DeleteIdleBefore(_ context.Context, cutoff time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for user, s := range m.sessions {
		if s.LastActivityAt.Before(cutoff) {
			delete(m.sessions, user)
			n++
		}
	}
	return n, nil
}

// Len returns the number of stored sessions.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Close implements Store.
func (m *MemoryStore) Close() error {
	return nil
}
