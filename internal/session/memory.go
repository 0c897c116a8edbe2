package session

import (
	"context"
	"sync"
	"time"

	"github.com/aplomb-care/aplomb/internal/domain"
)

// MemoryStore is the default in-process store. It is sufficient for a
// single-instance deployment; scaled deployments swap in the SQLite store or
// an external key-value store behind the same interface.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*domain.Session
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[string]*domain.Session)}
}

// Get retrieves a deep copy of the session, or (nil, nil) if absent.
func (m *MemoryStore) Get(_ context.Context, key string) (*domain.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	sess, ok := m.sessions[key]
	if !ok {
		return nil, nil
	}
	return sess.Clone(), nil
}

// Put stores a deep copy of the session.
func (m *MemoryStore) Put(_ context.Context, sess *domain.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := sess.Clone()
	cp.UpdatedAt = time.Now()
	m.sessions[sess.Key] = cp
	return nil
}

// Delete removes a session.
func (m *MemoryStore) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, key)
	return nil
}

// CleanupExpired removes idle sessions, keeping blocked ones.
func (m *MemoryStore) CleanupExpired(_ context.Context, ttl time.Duration) (int64, error) {
	threshold := time.Now().Add(-ttl)
	m.mu.Lock()
	defer m.mu.Unlock()

	var removed int64
	for key, sess := range m.sessions {
		if sess.Blocked() {
			continue
		}
		if sess.UpdatedAt.Before(threshold) {
			delete(m.sessions, key)
			removed++
		}
	}
	return removed, nil
}

// Ping always succeeds for the in-memory store.
func (m *MemoryStore) Ping(_ context.Context) error { return nil }

// Close is a no-op for the in-memory store.
func (m *MemoryStore) Close() error { return nil }
