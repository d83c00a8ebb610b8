// Package session holds the admin session authority. Credentials are
// opaque random tokens; the backing store is injectable so sessions can
// live in memory or in the database.
package session

import (
	"context"
	"sync"
	"time"
)

type Session struct {
	UserID    string
	Username  string
	Name      string
	Role      string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Store maps a credential hash to a live session. Implementations must
// tolerate concurrent access.
type Store interface {
	Save(ctx context.Context, credHash string, s Session) error
	Get(ctx context.Context, credHash string) (*Session, error)
	Delete(ctx context.Context, credHash string) error
	// Purge removes sessions expired before now and reports how many.
	Purge(ctx context.Context, now time.Time) (int, error)
}

// MemoryStore is the default Store. Session lifetime matches the
// process lifetime, which is all the authority requires.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]Session
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[string]Session)}
}

func (m *MemoryStore) Save(_ context.Context, credHash string, s Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[credHash] = s
	return nil
}

func (m *MemoryStore) Get(_ context.Context, credHash string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[credHash]
	if !ok {
		return nil, nil
	}
	return &s, nil
}

func (m *MemoryStore) Delete(_ context.Context, credHash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, credHash)
	return nil
}

func (m *MemoryStore) Purge(_ context.Context, now time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for hash, s := range m.sessions {
		if s.ExpiresAt.Before(now) {
			delete(m.sessions, hash)
			n++
		}
	}
	return n, nil
}
