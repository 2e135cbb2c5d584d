package session

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"example.com/miniblog/internal/models"
)

// Session binds an opaque token to a snapshot of the user row taken at
// authentication time. Later changes to the row do not propagate here.
type Session struct {
	Token     string
	User      models.User
	ExpiresAt time.Time
}

// Store is the session lifecycle: Put on login, Get on every request,
// Delete on logout. Implementations must be safe for concurrent use.
type Store interface {
	Put(s Session)
	Get(token string) (Session, bool)
	Delete(token string)
}

// NewToken returns a fresh opaque session identifier.
func NewToken() string {
	return uuid.NewString()
}

// MemoryStore keeps sessions in process memory.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]Session
	done     chan struct{}
}

func NewMemoryStore() *MemoryStore {
	m := &MemoryStore{
		sessions: make(map[string]Session),
		done:     make(chan struct{}),
	}
	go m.janitor()
	return m
}

func (m *MemoryStore) Put(s Session) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[s.Token] = s
}

// Get returns the session for token. Expired sessions are misses.
func (m *MemoryStore) Get(token string) (Session, bool) {
	m.mu.RLock()
	s, ok := m.sessions[token]
	m.mu.RUnlock()
	if !ok || time.Now().After(s.ExpiresAt) {
		return Session{}, false
	}
	return s, true
}

// Delete is idempotent; deleting an unknown token is a no-op.
func (m *MemoryStore) Delete(token string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, token)
}

// Close stops the background sweeper.
func (m *MemoryStore) Close() {
	close(m.done)
}

// janitor sweeps expired sessions so the map does not grow forever.
// Get already treats expired entries as misses; this only reclaims memory.
func (m *MemoryStore) janitor() {
	ticker := time.NewTicker(10 * time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-m.done:
			return
		case now := <-ticker.C:
			m.mu.Lock()
			for token, s := range m.sessions {
				if now.After(s.ExpiresAt) {
					delete(m.sessions, token)
				}
			}
			m.mu.Unlock()
		}
	}
}
