// Package identity provides anonymous per-device identity primitives.
package identity

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"net"
	"net/http"
	"regexp"
	"strings"
	"time"
)

const (
	AnonCookieName    = "aplomb_anon_id"
	SessionHeaderName = "X-Aplomb-Session-ID"
	anonCookieMaxAge  = 30 * 24 * time.Hour
)

type contextKey int

const (
	anonIDKey contextKey = iota
	sessionKeyKey
)

var (
	anonIDPattern     = regexp.MustCompile(`^anon_[a-f0-9]{32}$`)
	sessionKeyPattern = regexp.MustCompile(`^[A-Za-z0-9._:-]{1,128}$`)
)

// AnonIDFromContext extracts the anonymous device ID from the request context.
func AnonIDFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(anonIDKey).(string); ok {
		return v
	}
	return ""
}

// SessionKeyFromContext extracts the resolved conversation key from the
// request context.
func SessionKeyFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(sessionKeyKey).(string); ok {
		return v
	}
	return ""
}

// ValidSessionKey reports whether a caller-supplied key is usable as-is.
func ValidSessionKey(key string) bool {
	return sessionKeyPattern.MatchString(strings.TrimSpace(key))
}

func generateAnonID() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate anonymous id: %w", err)
	}
	return "anon_" + hex.EncodeToString(buf), nil
}

func isValidAnonID(id string) bool {
	return anonIDPattern.MatchString(id)
}

func getOrCreateAnonID(w http.ResponseWriter, r *http.Request, isDev bool) (string, error) {
	if c, err := r.Cookie(AnonCookieName); err == nil && isValidAnonID(c.Value) {
		setAnonCookie(w, c.Value, isDev)
		return c.Value, nil
	}

	id, err := generateAnonID()
	if err != nil {
		return "", err
	}
	setAnonCookie(w, id, isDev)
	return id, nil
}

func setAnonCookie(w http.ResponseWriter, id string, isDev bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     AnonCookieName,
		Value:    id,
		Path:     "/",
		MaxAge:   int(anonCookieMaxAge.Seconds()),
		Expires:  time.Now().Add(anonCookieMaxAge),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   !isDev,
	})
}

// sessionKeyFromRequest resolves the conversation key for this request:
// explicit header first, then query parameter, then the anonymous device ID.
func sessionKeyFromRequest(r *http.Request, anonID string) string {
	for _, candidate := range []string{
		r.Header.Get(SessionHeaderName),
		r.URL.Query().Get("session_id"),
	} {
		candidate = strings.TrimSpace(candidate)
		if candidate != "" && sessionKeyPattern.MatchString(candidate) {
			return candidate
		}
	}
	return anonID
}

// Middleware injects anonymous per-device identity and the resolved
// conversation key into the request context.
func Middleware(isDev bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			anonID, err := getOrCreateAnonID(w, r, isDev)
			if err != nil {
				http.Error(w, `{"error":"failed to establish anonymous identity"}`, http.StatusInternalServerError)
				return
			}

			ctx := context.WithValue(r.Context(), anonIDKey, anonID)
			ctx = context.WithValue(ctx, sessionKeyKey, sessionKeyFromRequest(r, anonID))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// IPFromRequest returns a normalized remote IP for rate limiting and tracing.
func IPFromRequest(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
