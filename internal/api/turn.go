package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/aplomb-care/aplomb/internal/agent"
	"github.com/aplomb-care/aplomb/internal/domain"
	"github.com/aplomb-care/aplomb/internal/identity"
	"github.com/aplomb-care/aplomb/internal/turn"
)

// maxRequestBodySize bounds turn request bodies (256KB covers long histories).
const maxRequestBodySize = 256 << 10

// HandleTurn handles POST /api/turn requests.
func (h *Handler) HandleTurn(w http.ResponseWriter, r *http.Request) {
	anonID := identity.AnonIDFromContext(r.Context())
	if anonID == "" {
		Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	// Rate-limit by device, not session key, so clients cannot bypass
	// throttling by rotating session keys.
	if !h.rateLimiter.Allow(anonID) {
		Error(w, http.StatusTooManyRequests, "rate limit exceeded")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)

	var req domain.TurnRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			Error(w, http.StatusRequestEntityTooLarge, "request body too large")
			return
		}
		Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.SessionID == "" || !identity.ValidSessionKey(req.SessionID) {
		req.SessionID = identity.SessionKeyFromContext(r.Context())
	}

	reqID := chiMiddleware.GetReqID(r.Context())
	start := time.Now()

	resp, err := h.coordinator.Handle(r.Context(), req)
	if err != nil {
		switch {
		case errors.Is(err, turn.ErrInvalidInput):
			Error(w, http.StatusBadRequest, "utterance is required")
		case errors.Is(err, agent.ErrUnavailable):
			Error(w, http.StatusServiceUnavailable, "dialogue agent unavailable, please retry")
		default:
			slog.Error("turn failed", "error", err, "request_id", reqID, "session_key", req.SessionID)
			Error(w, http.StatusInternalServerError, "internal error")
		}
		return
	}

	slog.Info("turn handled",
		"request_id", reqID,
		"session_key", req.SessionID,
		"safety", string(resp.Safety),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	JSON(w, http.StatusOK, resp)
}

// sessionView is the introspection shape for GET /api/session.
type sessionView struct {
	Key           string          `json:"key"`
	Exists        bool            `json:"exists"`
	CrisisState   string          `json:"crisisState,omitempty"`
	MedicalState  string          `json:"medicalState,omitempty"`
	Blocked       bool            `json:"blocked"`
	Aspects       []domain.Aspect `json:"aspects,omitempty"`
	CurrentAspect string          `json:"currentAspect,omitempty"`
	UpdatedAt     *time.Time      `json:"updatedAt,omitempty"`
}

// HandleGetSession handles GET /api/session requests.
func (h *Handler) HandleGetSession(w http.ResponseWriter, r *http.Request) {
	key := identity.SessionKeyFromContext(r.Context())
	if key == "" {
		Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	sess, err := h.store.Get(r.Context(), key)
	if err != nil {
		slog.Error("failed to load session", "error", err, "session_key", key)
		Error(w, http.StatusInternalServerError, "internal error")
		return
	}
	if sess == nil {
		JSON(w, http.StatusOK, sessionView{Key: key})
		return
	}

	view := sessionView{
		Key:          sess.Key,
		Exists:       true,
		CrisisState:  string(sess.Crisis.State),
		MedicalState: string(sess.Medical.State),
		Blocked:      sess.Blocked(),
		Aspects:      sess.Aspects,
		UpdatedAt:    &sess.UpdatedAt,
	}
	if cur := sess.CurrentAspect(); cur != nil {
		view.CurrentAspect = cur.Label
	}
	JSON(w, http.StatusOK, view)
}

// HandleDeleteSession handles DELETE /api/session requests. Blocked sessions
// cannot be deleted by the client.
func (h *Handler) HandleDeleteSession(w http.ResponseWriter, r *http.Request) {
	key := identity.SessionKeyFromContext(r.Context())
	if key == "" {
		Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	sess, err := h.store.Get(r.Context(), key)
	if err != nil {
		slog.Error("failed to load session", "error", err, "session_key", key)
		Error(w, http.StatusInternalServerError, "internal error")
		return
	}
	if sess != nil && sess.Blocked() {
		Error(w, http.StatusForbidden, "session is locked")
		return
	}

	if err := h.store.Delete(r.Context(), key); err != nil {
		slog.Error("failed to delete session", "error", err, "session_key", key)
		Error(w, http.StatusInternalServerError, "internal error")
		return
	}
	JSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// HandleHealthz handles GET /api/healthz with a store ping.
func (h *Handler) HandleHealthz(w http.ResponseWriter, r *http.Request) {
	if err := h.store.Ping(r.Context()); err != nil {
		slog.Error("store ping failed", "error", err)
		Error(w, http.StatusServiceUnavailable, "store unavailable")
		return
	}
	JSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// RegisterRoutes registers the gateway API routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/api", func(r chi.Router) {
		r.Post("/turn", h.HandleTurn)
		r.Get("/session", h.HandleGetSession)
		r.Delete("/session", h.HandleDeleteSession)
		r.Get("/healthz", h.HandleHealthz)
	})
}
