package handlers

import (
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/saurabhp75/epic-web/internal/auth"
	"github.com/saurabhp75/epic-web/internal/metrics"
	"github.com/saurabhp75/epic-web/internal/models"
	pkghttp "github.com/saurabhp75/epic-web/pkg/http"
)

// SessionEstablisher turns an authenticated identity into cookies. Per
// invocation it writes exactly one of the two cookies: either the session
// cookie (login complete) or the verification cookie (two-factor challenge
// pending), never both.
type SessionEstablisher struct {
	codec           *auth.Codec
	gate            *auth.TwoFactorGate
	cookies         auth.CookieConfig
	verificationTTL time.Duration
	logger          *slog.Logger
}

// NewSessionEstablisher creates a new SessionEstablisher
func NewSessionEstablisher(codec *auth.Codec, gate *auth.TwoFactorGate, cookies auth.CookieConfig, verificationTTL time.Duration, logger *slog.Logger) *SessionEstablisher {
	return &SessionEstablisher{
		codec:           codec,
		gate:            gate,
		cookies:         cookies,
		verificationTTL: verificationTTL,
		logger:          logger,
	}
}

// HandleNewSession finalizes a freshly created session record. If the
// two-factor gate demands a challenge the session id is staged in the
// verification cookie and the user is sent to the verification page;
// otherwise the session cookie is written and the user proceeds to their
// destination. The remember flag controls whether the session cookie
// persists past the browser session.
func (e *SessionEstablisher) HandleNewSession(w http.ResponseWriter, r *http.Request, user *models.User, session *models.Session, remember bool, redirectTo string) {
	// An existing session cookie may carry a still-fresh verification
	// timestamp, which lets a re-login skip the challenge. A staged
	// challenge in the verification cookie overrides that freshness.
	prior := e.decodePrior(r)

	challenge, err := e.gate.ShouldRequestTwoFA(r.Context(), user.ID, prior, e.hasPendingChallenge(r))
	if err != nil {
		e.logger.Error("two-factor gate failed", slog.String("user_id", user.ID), slog.Any("error", err))
		pkghttp.WriteInternalError(w, "Something went wrong")
		return
	}

	if challenge {
		e.StageChallenge(w, r, user.ID, auth.VerificationPayload{
			PendingSessionID: session.ID,
			Remember:         remember,
			RedirectTo:       redirectTo,
		})
		return
	}

	payload := auth.SessionPayload{SessionID: session.ID}
	if prior != nil {
		payload.VerifiedAt = prior.VerifiedAt
	}
	e.WriteSessionCookie(w, payload, session, remember)
	pkghttp.Redirect(w, r, pkghttp.SafeRedirectTarget(redirectTo, "/"))
}

// StageChallenge writes the verification cookie and redirects to the
// verification page. The session cookie is left untouched.
func (e *SessionEstablisher) StageChallenge(w http.ResponseWriter, r *http.Request, userID string, payload auth.VerificationPayload) {
	value, err := e.codec.EncodeVerification(payload, e.verificationTTL)
	if err != nil {
		e.logger.Error("failed to encode verification cookie", slog.Any("error", err))
		pkghttp.WriteInternalError(w, "Something went wrong")
		return
	}

	auth.SetVerificationCookie(w, value, e.verificationTTL, e.cookies)
	metrics.TwoFactorChallengesTotal.Inc()

	query := url.Values{}
	query.Set("type", models.VerificationTypeTwoFA)
	query.Set("target", userID)
	if payload.RedirectTo != "" {
		query.Set("redirect_to", payload.RedirectTo)
	}
	pkghttp.Redirect(w, r, "/verify?"+query.Encode())
}

// WriteSessionCookie encodes the payload into the long-lived session cookie.
// A remembered session expires with the session record; otherwise the cookie
// lives only as long as the browser session.
func (e *SessionEstablisher) WriteSessionCookie(w http.ResponseWriter, payload auth.SessionPayload, session *models.Session, remember bool) {
	value, err := e.codec.EncodeSession(payload)
	if err != nil {
		e.logger.Error("failed to encode session cookie", slog.Any("error", err))
		pkghttp.WriteInternalError(w, "Something went wrong")
		return
	}

	expires := time.Time{}
	if remember {
		expires = session.ExpirationDate
	}
	auth.SetSessionCookie(w, value, expires, e.cookies)
}

// CookieConfig exposes the cookie settings for handlers that clear cookies
func (e *SessionEstablisher) CookieConfig() auth.CookieConfig {
	return e.cookies
}

// HasPendingChallenge reports whether the request carries a verification
// cookie with a staged session still waiting on a code.
func (e *SessionEstablisher) HasPendingChallenge(r *http.Request) bool {
	return e.hasPendingChallenge(r)
}

func (e *SessionEstablisher) hasPendingChallenge(r *http.Request) bool {
	value := auth.GetCookie(r, auth.VerificationCookieName)
	if value == "" {
		return false
	}
	payload, err := e.codec.DecodeVerification(value)
	if err != nil {
		return false
	}
	return payload.PendingSessionID != ""
}

func (e *SessionEstablisher) decodePrior(r *http.Request) *auth.SessionPayload {
	if payload := auth.GetSessionPayloadFromContext(r); payload != nil {
		return payload
	}
	value := auth.GetCookie(r, auth.SessionCookieName)
	if value == "" {
		return nil
	}
	payload, err := e.codec.DecodeSession(value)
	if err != nil {
		return nil
	}
	return payload
}
