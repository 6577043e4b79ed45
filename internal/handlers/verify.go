package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/saurabhp75/epic-web/internal/auth"
	"github.com/saurabhp75/epic-web/internal/models"
	"github.com/saurabhp75/epic-web/internal/services"
	pkghttp "github.com/saurabhp75/epic-web/pkg/http"
)

// VerificationServiceInterface defines the interface for verification logic
type VerificationServiceInterface interface {
	HasTwoFactor(ctx context.Context, userID string) (bool, error)
	StartTwoFactorEnrollment(ctx context.Context, userID, email string) (*services.TwoFactorEnrollment, error)
	ConfirmTwoFactor(ctx context.Context, userID, code string) error
	ValidateTwoFactorCode(ctx context.Context, userID, code string) error
	DisableTwoFactor(ctx context.Context, userID string) error
	ValidateSignupCode(ctx context.Context, email, code string) error
}

// VerifyHandler completes pending verifications: the two-factor login detour,
// in-session re-verification, and signup email codes
type VerifyHandler struct {
	verifications   VerificationServiceInterface
	sessions        AuthServiceInterface
	establisher     *SessionEstablisher
	codec           *auth.Codec
	verificationTTL time.Duration
}

// NewVerifyHandler creates a new VerifyHandler
func NewVerifyHandler(verifications VerificationServiceInterface, sessions AuthServiceInterface, establisher *SessionEstablisher, codec *auth.Codec, verificationTTL time.Duration) *VerifyHandler {
	return &VerifyHandler{
		verifications:   verifications,
		sessions:        sessions,
		establisher:     establisher,
		codec:           codec,
		verificationTTL: verificationTTL,
	}
}

// VerifyRequest represents the request body for submitting a code
type VerifyRequest struct {
	Code   string `json:"code" validate:"required,len=6"`
	Type   string `json:"type" validate:"required,oneof=2fa onboarding"`
	Target string `json:"target"` // Email for onboarding; ignored for 2fa
}

// Verify handles POST /verify
func (h *VerifyHandler) Verify(w http.ResponseWriter, r *http.Request) {
	var req VerifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}
	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	switch req.Type {
	case models.VerificationTypeTwoFA:
		h.verifyTwoFactor(w, r, req.Code)
	case models.VerificationTypeOnboarding:
		h.verifySignupCode(w, r, strings.ToLower(strings.TrimSpace(req.Target)), req.Code)
	}
}

// verifyTwoFactor completes a two-factor challenge. With a staged session id
// (login detour) it promotes the pending session into the session cookie,
// honoring the staged remember flag. Without one it re-stamps the current
// session's verified time. Either way the verification cookie is destroyed
// once the challenge succeeds.
func (h *VerifyHandler) verifyTwoFactor(w http.ResponseWriter, r *http.Request, code string) {
	var payload *auth.VerificationPayload
	if value := auth.GetCookie(r, auth.VerificationCookieName); value != "" {
		decoded, err := h.codec.DecodeVerification(value)
		if err != nil {
			// Expired or tampered; nothing to resume
			auth.ClearVerificationCookie(w, h.establisher.CookieConfig())
			pkghttp.RedirectWithNotice(w, r, "/login", "Your verification expired, please log in again")
			return
		}
		payload = decoded
	}

	if payload != nil && payload.PendingSessionID != "" {
		h.completeLoginDetour(w, r, payload, code)
		return
	}

	// No staged session: this is a re-verification of the active session
	user := auth.GetUserFromContext(r)
	session := auth.GetSessionFromContext(r)
	if user == nil || session == nil {
		auth.ClearVerificationCookie(w, h.establisher.CookieConfig())
		pkghttp.WriteUnauthorized(w, "Authentication required")
		return
	}

	if err := h.verifications.ValidateTwoFactorCode(r.Context(), user.ID, code); err != nil {
		h.writeCodeError(w, err)
		return
	}

	now := time.Now()
	h.establisher.WriteSessionCookie(w, auth.SessionPayload{
		SessionID:  session.ID,
		VerifiedAt: &now,
	}, session, true)
	auth.ClearVerificationCookie(w, h.establisher.CookieConfig())

	redirectTo := "/"
	if payload != nil {
		redirectTo = pkghttp.SafeRedirectTarget(payload.RedirectTo, "/")
	}
	pkghttp.Redirect(w, r, redirectTo)
}

func (h *VerifyHandler) completeLoginDetour(w http.ResponseWriter, r *http.Request, payload *auth.VerificationPayload, code string) {
	session, err := h.sessions.GetSession(r.Context(), payload.PendingSessionID)
	if err != nil {
		// The staged session died while the challenge was pending
		auth.ClearVerificationCookie(w, h.establisher.CookieConfig())
		pkghttp.RedirectWithNotice(w, r, "/login", "Your session expired, please log in again")
		return
	}

	if err := h.verifications.ValidateTwoFactorCode(r.Context(), session.UserID, code); err != nil {
		h.writeCodeError(w, err)
		return
	}

	now := time.Now()
	h.establisher.WriteSessionCookie(w, auth.SessionPayload{
		SessionID:  session.ID,
		VerifiedAt: &now,
	}, session, payload.Remember)
	auth.ClearVerificationCookie(w, h.establisher.CookieConfig())
	pkghttp.Redirect(w, r, pkghttp.SafeRedirectTarget(payload.RedirectTo, "/"))
}

// verifySignupCode checks an emailed signup code. On success the proven email
// is staged in the verification cookie for the onboarding form.
func (h *VerifyHandler) verifySignupCode(w http.ResponseWriter, r *http.Request, email, code string) {
	if email == "" {
		pkghttp.WriteBadRequest(w, "target is required")
		return
	}

	if err := h.verifications.ValidateSignupCode(r.Context(), email, code); err != nil {
		h.writeCodeError(w, err)
		return
	}

	value, err := h.codec.EncodeVerification(auth.VerificationPayload{
		Onboarding: &auth.OnboardingData{Email: email},
	}, h.verificationTTL)
	if err != nil {
		pkghttp.WriteInternalError(w, "Something went wrong")
		return
	}
	auth.SetVerificationCookie(w, value, h.verificationTTL, h.establisher.CookieConfig())
	pkghttp.Redirect(w, r, "/onboarding")
}

func (h *VerifyHandler) writeCodeError(w http.ResponseWriter, err error) {
	if errors.Is(err, models.ErrInvalidCode) {
		pkghttp.WriteBadRequest(w, "Invalid code")
		return
	}
	pkghttp.WriteInternalError(w, "Something went wrong")
}
