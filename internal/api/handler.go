// Package api provides HTTP handlers for the aplomb gateway.
package api

import (
	"encoding/json"
	"net/http"

	"github.com/aplomb-care/aplomb/internal/config"
	"github.com/aplomb-care/aplomb/internal/session"
	"github.com/aplomb-care/aplomb/internal/turn"
)

// Handler provides common handler dependencies.
type Handler struct {
	coordinator *turn.Coordinator
	store       session.Store
	rateLimiter *RateLimiter
	cfg         *config.Config
}

// NewHandler creates a new Handler with common dependencies.
func NewHandler(coordinator *turn.Coordinator, store session.Store, cfg *config.Config) *Handler {
	return &Handler{
		coordinator: coordinator,
		store:       store,
		rateLimiter: NewRateLimiter(cfg.RateLimit.RequestsPerWindow, cfg.RateLimit.Window),
		cfg:         cfg,
	}
}

// Close releases handler resources.
func (h *Handler) Close() {
	h.rateLimiter.Close()
}

// RateLimiter exposes the per-device limiter so other transports share the
// same budget.
func (h *Handler) RateLimiter() *RateLimiter {
	return h.rateLimiter
}

// JSON writes a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"error": "failed to encode response"}`, http.StatusInternalServerError)
	}
}

// Error writes a JSON error response.
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, map[string]string{"error": message})
}
