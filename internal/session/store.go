// Package session provides the session store abstraction and per-key turn
// serialization.
package session

import (
	"context"
	"time"

	"github.com/aplomb-care/aplomb/internal/domain"
)

// Store persists per-conversation session state, keyed by session key.
// Implementations must be safe for concurrent use; callers serialize turns
// for the same key through Locks, so per-key read-modify-write cycles never
// overlap.
type Store interface {
	// Get retrieves a session, or (nil, nil) if the key is unknown.
	Get(ctx context.Context, key string) (*domain.Session, error)

	// Put creates or replaces a session record.
	Put(ctx context.Context, sess *domain.Session) error

	// Delete removes a session record.
	Delete(ctx context.Context, key string) error

	// CleanupExpired removes sessions idle longer than ttl. Blocked sessions
	// are never removed: a locked session must not resurrect as normal.
	CleanupExpired(ctx context.Context, ttl time.Duration) (int64, error)

	// Ping verifies the store is reachable.
	Ping(ctx context.Context) error

	// Close releases store resources.
	Close() error
}
