package ws

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/coder/websocket"

	"github.com/aplomb-care/aplomb/internal/agent"
	"github.com/aplomb-care/aplomb/internal/domain"
	"github.com/aplomb-care/aplomb/internal/identity"
	"github.com/aplomb-care/aplomb/internal/turn"
)

// Limiter throttles turn dispatch per anonymous device ID. Both transports
// share one limiter, so switching to WebSocket does not reset the budget.
type Limiter interface {
	Allow(key string) bool
}

// Handler accepts WebSocket connections and runs turns over them.
type Handler struct {
	coordinator   *turn.Coordinator
	registry      *Registry
	limiter       Limiter
	allowedOrigin string
	isDev         bool
}

// NewHandler creates a new WebSocket turn handler.
func NewHandler(coordinator *turn.Coordinator, registry *Registry, limiter Limiter, allowedOrigin string, isDev bool) *Handler {
	return &Handler{
		coordinator:   coordinator,
		registry:      registry,
		limiter:       limiter,
		allowedOrigin: allowedOrigin,
		isDev:         isDev,
	}
}

// frame is the WebSocket message envelope in both directions.
type frame struct {
	Type     string               `json:"type"` // "turn", "ping", "pong", "response", "error"
	Turn     *domain.TurnRequest  `json:"turn,omitempty"`
	Response *domain.TurnResponse `json:"response,omitempty"`
	Error    string               `json:"error,omitempty"`
}

// ServeHTTP implements http.Handler for WebSocket upgrade.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	anonID := identity.AnonIDFromContext(r.Context())
	sessionKey := identity.SessionKeyFromContext(r.Context())
	slog.Info("websocket connection request", "anon_id", anonID, "session_key", sessionKey, "ip", r.RemoteAddr)

	if !h.checkOrigin(r) {
		http.Error(w, "origin not allowed", http.StatusForbidden)
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		slog.Error("failed to accept websocket", "error", err, "anon_id", anonID)
		return
	}
	defer func() {
		if closeErr := conn.Close(websocket.StatusNormalClosure, "session ended"); closeErr != nil {
			slog.Debug("failed to close websocket", "error", closeErr, "anon_id", anonID)
		}
	}()

	h.registry.Register(anonID, sessionKey, conn)
	defer h.registry.Unregister(anonID, sessionKey, conn)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	h.readLoop(ctx, conn, anonID, sessionKey)
	slog.Info("websocket session ended", "anon_id", anonID, "session_key", sessionKey)
}

func (h *Handler) checkOrigin(r *http.Request) bool {
	if h.isDev {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" || h.allowedOrigin == "*" {
		return true
	}
	if origin == h.allowedOrigin {
		return true
	}
	slog.Warn("websocket origin rejected", "origin", origin, "allowed", h.allowedOrigin)
	return false
}

func (h *Handler) readLoop(ctx context.Context, conn *websocket.Conn, anonID, sessionKey string) {
	for {
		_, message, err := conn.Read(ctx)
		if err != nil {
			if websocket.CloseStatus(err) != -1 {
				slog.Debug("websocket closed by client", "anon_id", anonID)
			} else if ctx.Err() == nil {
				slog.Warn("websocket read error", "error", err, "anon_id", anonID)
			}
			return
		}

		var msg frame
		if err := json.Unmarshal(message, &msg); err != nil {
			if writeErr := h.writeJSON(ctx, conn, frame{Type: "error", Error: "invalid frame"}); writeErr != nil {
				return
			}
			continue
		}

		switch msg.Type {
		case "ping":
			if err := h.writeJSON(ctx, conn, frame{Type: "pong"}); err != nil {
				slog.Debug("failed to send pong", "error", err)
				return
			}
		case "turn":
			if msg.Turn == nil {
				if err := h.writeJSON(ctx, conn, frame{Type: "error", Error: "turn payload is required"}); err != nil {
					return
				}
				continue
			}
			if h.limiter != nil && !h.limiter.Allow(anonID) {
				if err := h.writeJSON(ctx, conn, frame{Type: "error", Error: "rate limit exceeded"}); err != nil {
					return
				}
				continue
			}
			req := *msg.Turn
			if req.SessionID == "" || !identity.ValidSessionKey(req.SessionID) {
				req.SessionID = sessionKey
			}
			if err := h.handleTurn(ctx, conn, req); err != nil {
				return
			}
		default:
			if err := h.writeJSON(ctx, conn, frame{Type: "error", Error: "unknown frame type"}); err != nil {
				return
			}
		}
	}
}

// handleTurn runs one turn and writes the result frame. A non-nil return
// means the connection is unusable and the loop must stop.
func (h *Handler) handleTurn(ctx context.Context, conn *websocket.Conn, req domain.TurnRequest) error {
	resp, err := h.coordinator.Handle(ctx, req)
	if err != nil {
		var out frame
		switch {
		case errors.Is(err, turn.ErrInvalidInput):
			out = frame{Type: "error", Error: "utterance is required"}
		case errors.Is(err, agent.ErrUnavailable):
			out = frame{Type: "error", Error: "dialogue agent unavailable, please retry"}
		default:
			slog.Error("websocket turn failed", "error", err, "session_key", req.SessionID)
			out = frame{Type: "error", Error: "internal error"}
		}
		return h.writeJSON(ctx, conn, out)
	}
	return h.writeJSON(ctx, conn, frame{Type: "response", Response: resp})
}

func (h *Handler) writeJSON(ctx context.Context, conn *websocket.Conn, v frame) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return conn.Write(ctx, websocket.MessageText, data)
}
