package server

import (
	"sync"
	"time"

	"github.com/marmos91/boltkit/pkg/bolt"
)

// SessionInfo is the manager's view of one live session.
type SessionInfo struct {
	Handle     SessionHandle
	PeerAddr   string
	CreatedAt  time.Time
	LastActive time.Time
}

// SessionManager tracks live sessions across all connections. It is shared
// by every connection goroutine and the idle reaper; a read-write mutex is
// enough since every operation is short and O(live sessions).
type SessionManager struct {
	mu       sync.RWMutex
	sessions map[SessionHandle]*SessionInfo
	capacity int // 0 means unlimited

	now func() time.Time // swappable for tests
}

// NewSessionManager creates a manager. capacity 0 means unlimited.
func NewSessionManager(capacity int) *SessionManager {
	return &SessionManager{
		sessions: make(map[SessionHandle]*SessionInfo),
		capacity: capacity,
		now:      time.Now,
	}
}

// Register adds a session. Fails with a resource-exhausted error when the
// capacity is already met.
func (m *SessionManager) Register(handle SessionHandle, peerAddr string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.capacity > 0 && len(m.sessions) >= m.capacity {
		return bolt.ResourceExhaustedError("session limit of %d reached", m.capacity)
	}

	now := m.now()
	m.sessions[handle] = &SessionInfo{
		Handle:     handle,
		PeerAddr:   peerAddr,
		CreatedAt:  now,
		LastActive: now,
	}
	return nil
}

// Remove drops a session. Reports whether it was present.
func (m *SessionManager) Remove(handle SessionHandle) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	_, ok := m.sessions[handle]
	delete(m.sessions, handle)
	return ok
}

// Touch marks a session as active now.
func (m *SessionManager) Touch(handle SessionHandle) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if s, ok := m.sessions[handle]; ok {
		s.LastActive = m.now()
	}
}

// Count returns the number of live sessions.
func (m *SessionManager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Get returns a copy of the session's info.
func (m *SessionManager) Get(handle SessionHandle) (SessionInfo, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.sessions[handle]
	if !ok {
		return SessionInfo{}, false
	}
	return *s, true
}

// ReapIdle atomically selects and removes every session idle for longer
// than timeout, returning their handles so the caller can close them on
// the backend.
func (m *SessionManager) ReapIdle(timeout time.Duration) []SessionHandle {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	var reaped []SessionHandle
	for handle, s := range m.sessions {
		if now.Sub(s.LastActive) > timeout {
			reaped = append(reaped, handle)
			delete(m.sessions, handle)
		}
	}
	return reaped
}
