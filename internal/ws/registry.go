// Package ws provides the WebSocket turn transport.
package ws

import (
	"log/slog"
	"sync"

	"github.com/coder/websocket"
)

// Registry tracks active WebSocket connections per device and session key.
type Registry struct {
	mu     sync.RWMutex
	active map[string]map[string]*websocket.Conn
}

// NewRegistry creates a new connection registry.
func NewRegistry() *Registry {
	return &Registry{
		active: make(map[string]map[string]*websocket.Conn),
	}
}

// GetActive returns the active connection for a device and session key.
func (m *Registry) GetActive(anonID, sessionKey string) *websocket.Conn {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if conns, ok := m.active[anonID]; ok {
		return conns[sessionKey]
	}
	return nil
}

// Register adds a new WebSocket connection, replacing any previous one for
// the same device and session key.
func (m *Registry) Register(anonID, sessionKey string, conn *websocket.Conn) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.active[anonID]; !exists {
		m.active[anonID] = make(map[string]*websocket.Conn)
	}

	if existing, exists := m.active[anonID][sessionKey]; exists && existing != conn {
		_ = existing.Close(websocket.StatusNormalClosure, "connection replaced")
	}

	m.active[anonID][sessionKey] = conn
	slog.Info("websocket registered", "anon_id", anonID, "session_key", sessionKey)
}

// Unregister removes a WebSocket connection.
func (m *Registry) Unregister(anonID, sessionKey string, conn *websocket.Conn) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if conns, ok := m.active[anonID]; ok {
		if current, exists := conns[sessionKey]; exists && current == conn {
			delete(conns, sessionKey)
			if len(conns) == 0 {
				delete(m.active, anonID)
			}
			slog.Info("websocket unregistered", "anon_id", anonID, "session_key", sessionKey)
		}
	}
}

// CloseAll forcefully terminates every active connection for a device.
func (m *Registry) CloseAll(anonID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	conns, ok := m.active[anonID]
	if !ok {
		return
	}

	for key, conn := range conns {
		_ = conn.Close(websocket.StatusNormalClosure, "connection closed")
		slog.Info("websocket closed", "anon_id", anonID, "session_key", key)
	}
	delete(m.active, anonID)
}
