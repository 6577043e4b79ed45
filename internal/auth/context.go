package auth

import (
	"context"
	"net/http"

	"github.com/saurabhp75/epic-web/internal/models"
)

// contextKey is a custom type for context keys
type contextKey string

const (
	userContextKey    contextKey = "user"
	sessionContextKey contextKey = "session"
	payloadContextKey contextKey = "session_payload"
)

// WithUser returns a context carrying the authenticated user and session
func WithUser(ctx context.Context, user *models.User, session *models.Session, payload *SessionPayload) context.Context {
	ctx = context.WithValue(ctx, userContextKey, user)
	ctx = context.WithValue(ctx, sessionContextKey, session)
	ctx = context.WithValue(ctx, payloadContextKey, payload)
	return ctx
}

// GetUserFromContext returns the authenticated user, or nil
func GetUserFromContext(r *http.Request) *models.User {
	user, _ := r.Context().Value(userContextKey).(*models.User)
	return user
}

// GetSessionFromContext returns the live session record, or nil
func GetSessionFromContext(r *http.Request) *models.Session {
	session, _ := r.Context().Value(sessionContextKey).(*models.Session)
	return session
}

// GetSessionPayloadFromContext returns the decoded session cookie, or nil.
// Present even for requests whose session record has expired, so the
// verified-at timestamp survives re-verification flows.
func GetSessionPayloadFromContext(r *http.Request) *SessionPayload {
	payload, _ := r.Context().Value(payloadContextKey).(*SessionPayload)
	return payload
}
