package access

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

type session struct {
	clientID string
	lastSeen time.Time
}

// SessionStore keeps client sessions in memory with an idle timeout.
type SessionStore struct {
	mu       sync.RWMutex
	sessions map[string]*session
	timeout  time.Duration
	now      func() time.Time
}

// NewSessionStore creates a session store.
func NewSessionStore(timeout time.Duration) *SessionStore {
	if timeout <= 0 {
		timeout = 12 * time.Hour
	}
	return &SessionStore{
		sessions: make(map[string]*session),
		timeout:  timeout,
		now:      time.Now,
	}
}

// Issue creates a session for clientID and returns its token.
func (ss *SessionStore) Issue(clientID string) string {
	token := uuid.NewString()
	ss.mu.Lock()
	defer ss.mu.Unlock()
	ss.sessions[token] = &session{clientID: clientID, lastSeen: ss.now()}
	return token
}

// Resolve returns the client of a live session and refreshes it.
func (ss *SessionStore) Resolve(token string) (string, bool) {
	ss.mu.Lock()
	defer ss.mu.Unlock()

	s, ok := ss.sessions[token]
	if !ok {
		return "", false
	}
	if ss.now().Sub(s.lastSeen) > ss.timeout {
		delete(ss.sessions, token)
		return "", false
	}
	s.lastSeen = ss.now()
	return s.clientID, true
}

// Revoke removes a session.
func (ss *SessionStore) Revoke(token string) {
	ss.mu.Lock()
	defer ss.mu.Unlock()
	delete(ss.sessions, token)
}

// Cleanup removes expired sessions.
func (ss *SessionStore) Cleanup() int {
	ss.mu.Lock()
	defer ss.mu.Unlock()

	removed := 0
	for token, s := range ss.sessions {
		if ss.now().Sub(s.lastSeen) > ss.timeout {
			delete(ss.sessions, token)
			removed++
		}
	}
	return removed
}

// Count returns the number of stored sessions.
func (ss *SessionStore) Count() int {
	ss.mu.RLock()
	defer ss.mu.RUnlock()
	return len(ss.sessions)
}
