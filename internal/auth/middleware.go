package auth

import (
	"context"
	"errors"
	"net/http"
	"net/url"

	"github.com/saurabhp75/epic-web/internal/models"
)

// SessionFetcher resolves a session id to a live session record
type SessionFetcher interface {
	GetByID(ctx context.Context, id string) (*models.Session, error)
}

// UserFetcher resolves a user id to a user record
type UserFetcher interface {
	GetByID(ctx context.Context, id string) (*models.User, error)
}

// LoadUser decodes the session cookie and, when it resolves to a live
// unexpired session, injects the user and session into the request context.
// Requests with no cookie, a tampered cookie, or a dead session proceed
// unauthenticated; RequireUser enforces authentication where needed.
func LoadUser(codec *Codec, sessions SessionFetcher, users UserFetcher, cookies CookieConfig) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := GetCookie(r, SessionCookieName)
			if raw == "" {
				next.ServeHTTP(w, r)
				return
			}

			payload, err := codec.DecodeSession(raw)
			if err != nil {
				// Tampered or unsigned cookie: drop it
				ClearSessionCookie(w, cookies)
				next.ServeHTTP(w, r)
				return
			}

			session, err := sessions.GetByID(r.Context(), payload.SessionID)
			if err != nil {
				if errors.Is(err, models.ErrNotFound) {
					ClearSessionCookie(w, cookies)
					next.ServeHTTP(w, r)
					return
				}
				http.Error(w, "internal server error", http.StatusInternalServerError)
				return
			}

			if session.IsExpired() {
				ClearSessionCookie(w, cookies)
				next.ServeHTTP(w, r)
				return
			}

			user, err := users.GetByID(r.Context(), session.UserID)
			if err != nil {
				if errors.Is(err, models.ErrNotFound) {
					ClearSessionCookie(w, cookies)
					next.ServeHTTP(w, r)
					return
				}
				http.Error(w, "internal server error", http.StatusInternalServerError)
				return
			}

			ctx := WithUser(r.Context(), user, session, payload)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireUser redirects unauthenticated requests to the login page,
// preserving the requested path as the post-login redirect target.
func RequireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if GetUserFromContext(r) == nil {
			target := r.URL.Path
			if r.URL.RawQuery != "" {
				target += "?" + r.URL.RawQuery
			}
			http.Redirect(w, r, "/login?redirect_to="+url.QueryEscape(target), http.StatusSeeOther)
			return
		}
		next.ServeHTTP(w, r)
	})
}
