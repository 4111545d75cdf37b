package server

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/sanonone/digitgraph/pkg/engine"
	"github.com/sanonone/digitgraph/pkg/metrics"
)

// ErrSessionNotFound is returned for unknown or expired session ids.
var ErrSessionNotFound = errors.New("session not found")

// Session binds a viewer to its own Navigator.
type Session struct {
	ID  string
	Nav *engine.Navigator

	mu       sync.Mutex
	lastSeen time.Time
}

func (s *Session) touch(now time.Time) {
	s.mu.Lock()
	s.lastSeen = now
	s.mu.Unlock()
}

func (s *Session) idleSince() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSeen
}

// SessionManager is the registry of live viewer sessions.
type SessionManager struct {
	sessions map[string]*Session
	mu       sync.RWMutex
	now      func() time.Time
}

// NewSessionManager creates an empty registry.
func NewSessionManager() *SessionManager {
	return &SessionManager{
		sessions: make(map[string]*Session),
		now:      time.Now,
	}
}

// Create registers a new session. newNav builds the session's Navigator from
// the freshly assigned id.
func (sm *SessionManager) Create(newNav func(id string) (*engine.Navigator, error)) (*Session, error) {
	id := uuid.New().String()
	nav, err := newNav(id)
	if err != nil {
		return nil, err
	}
	sess := &Session{
		ID:       id,
		Nav:      nav,
		lastSeen: sm.now(),
	}

	sm.mu.Lock()
	sm.sessions[sess.ID] = sess
	n := len(sm.sessions)
	sm.mu.Unlock()

	metrics.ActiveSessions.Set(float64(n))
	return sess, nil
}

// Get returns the session and marks it as used.
func (sm *SessionManager) Get(id string) (*Session, error) {
	sm.mu.RLock()
	sess, ok := sm.sessions[id]
	sm.mu.RUnlock()
	if !ok {
		return nil, ErrSessionNotFound
	}
	sess.touch(sm.now())
	return sess, nil
}

// Delete removes a session. It reports whether the session existed.
func (sm *SessionManager) Delete(id string) bool {
	sm.mu.Lock()
	_, ok := sm.sessions[id]
	delete(sm.sessions, id)
	n := len(sm.sessions)
	sm.mu.Unlock()

	metrics.ActiveSessions.Set(float64(n))
	return ok
}

// Len returns the number of live sessions.
func (sm *SessionManager) Len() int {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return len(sm.sessions)
}

// Reap drops sessions idle for longer than ttl and returns how many were
// removed. A non-positive ttl keeps every session.
func (sm *SessionManager) Reap(ttl time.Duration) int {
	if ttl <= 0 {
		return 0
	}
	cutoff := sm.now().Add(-ttl)

	sm.mu.Lock()
	removed := 0
	for id, sess := range sm.sessions {
		if sess.idleSince().Before(cutoff) {
			delete(sm.sessions, id)
			removed++
		}
	}
	n := len(sm.sessions)
	sm.mu.Unlock()

	metrics.ActiveSessions.Set(float64(n))
	return removed
}
