package middleware

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"log/slog"
	"net/http"
)

// CSRFCookieName is the double-submit cookie holding the CSRF token
const CSRFCookieName = "en_csrf"

// EnsureCSRFToken issues a CSRF token cookie to clients that don't have one.
// The cookie is deliberately readable by scripts so the frontend can echo it
// back in the X-CSRF-Token header.
func EnsureCSRFToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, err := r.Cookie(CSRFCookieName); err != nil {
			buf := make([]byte, 32)
			if _, err := rand.Read(buf); err == nil {
				http.SetCookie(w, &http.Cookie{
					Name:     CSRFCookieName,
					Value:    base64.RawURLEncoding.EncodeToString(buf),
					Path:     "/",
					SameSite: http.SameSiteLaxMode,
				})
			}
		}
		next.ServeHTTP(w, r)
	})
}

// CSRFProtection validates the double-submit token on state-changing requests
func CSRFProtection(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !isStateChangingMethod(r.Method) {
				next.ServeHTTP(w, r)
				return
			}

			token := r.Header.Get("X-CSRF-Token")
			cookie, err := r.Cookie(CSRFCookieName)
			if token == "" || err != nil ||
				subtle.ConstantTimeCompare([]byte(token), []byte(cookie.Value)) != 1 {
				logger.Warn("csrf token validation failed",
					slog.String("method", r.Method),
					slog.String("path", r.URL.Path))
				http.Error(w, "CSRF token invalid", http.StatusForbidden)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func isStateChangingMethod(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodPatch:
		return true
	default:
		return false
	}
}
