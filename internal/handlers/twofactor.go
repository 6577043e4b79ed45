package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/saurabhp75/epic-web/internal/auth"
	"github.com/saurabhp75/epic-web/internal/models"
	pkghttp "github.com/saurabhp75/epic-web/pkg/http"
)

// TwoFactorHandler manages authenticator enrollment and removal
type TwoFactorHandler struct {
	verifications VerificationServiceInterface
	gate          *auth.TwoFactorGate
	establisher   *SessionEstablisher
}

// NewTwoFactorHandler creates a new TwoFactorHandler
func NewTwoFactorHandler(verifications VerificationServiceInterface, gate *auth.TwoFactorGate, establisher *SessionEstablisher) *TwoFactorHandler {
	return &TwoFactorHandler{
		verifications: verifications,
		gate:          gate,
		establisher:   establisher,
	}
}

// ConfirmTwoFactorRequest represents the request body for confirming enrollment
type ConfirmTwoFactorRequest struct {
	Code string `json:"code" validate:"required,len=6"`
}

// Status handles GET /settings/two-factor
func (h *TwoFactorHandler) Status(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUserFromContext(r)
	if user == nil {
		pkghttp.WriteUnauthorized(w, "Authentication required")
		return
	}

	enabled, err := h.verifications.HasTwoFactor(r.Context(), user.ID)
	if err != nil {
		pkghttp.WriteInternalError(w, "Something went wrong")
		return
	}
	pkghttp.WriteJSON(w, http.StatusOK, map[string]bool{"enabled": enabled})
}

// Enroll handles POST /settings/two-factor: stages a new authenticator secret
// and returns the QR code to scan
func (h *TwoFactorHandler) Enroll(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUserFromContext(r)
	if user == nil {
		pkghttp.WriteUnauthorized(w, "Authentication required")
		return
	}

	enabled, err := h.verifications.HasTwoFactor(r.Context(), user.ID)
	if err != nil {
		pkghttp.WriteInternalError(w, "Something went wrong")
		return
	}
	if enabled {
		pkghttp.WriteConflict(w, "Two-factor authentication is already enabled")
		return
	}

	enrollment, err := h.verifications.StartTwoFactorEnrollment(r.Context(), user.ID, user.Email)
	if err != nil {
		pkghttp.WriteInternalError(w, "Something went wrong")
		return
	}
	pkghttp.WriteJSON(w, http.StatusOK, enrollment)
}

// Confirm handles POST /settings/two-factor/verify: proves the authenticator
// works and switches it on. The session is stamped as freshly verified, since
// the user just typed a valid code.
func (h *TwoFactorHandler) Confirm(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUserFromContext(r)
	session := auth.GetSessionFromContext(r)
	if user == nil || session == nil {
		pkghttp.WriteUnauthorized(w, "Authentication required")
		return
	}

	var req ConfirmTwoFactorRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}
	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	if err := h.verifications.ConfirmTwoFactor(r.Context(), user.ID, req.Code); err != nil {
		if errors.Is(err, models.ErrInvalidCode) {
			pkghttp.WriteBadRequest(w, "Invalid code")
			return
		}
		pkghttp.WriteInternalError(w, "Something went wrong")
		return
	}

	now := time.Now()
	h.establisher.WriteSessionCookie(w, auth.SessionPayload{
		SessionID:  session.ID,
		VerifiedAt: &now,
	}, session, true)
	pkghttp.WriteJSON(w, http.StatusOK, map[string]bool{"enabled": true})
}

// Disable handles DELETE /settings/two-factor. Turning two-factor off is
// sensitive, so a stale verification sends the user through a challenge
// first.
func (h *TwoFactorHandler) Disable(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUserFromContext(r)
	if user == nil {
		pkghttp.WriteUnauthorized(w, "Authentication required")
		return
	}

	payload := auth.GetSessionPayloadFromContext(r)
	challenge, err := h.gate.ShouldRequestTwoFA(r.Context(), user.ID, payload, h.establisher.HasPendingChallenge(r))
	if err != nil {
		pkghttp.WriteInternalError(w, "Something went wrong")
		return
	}
	if challenge {
		h.establisher.StageChallenge(w, r, user.ID, auth.VerificationPayload{
			RedirectTo: "/settings/two-factor",
		})
		return
	}

	if err := h.verifications.DisableTwoFactor(r.Context(), user.ID); err != nil {
		pkghttp.WriteInternalError(w, "Something went wrong")
		return
	}
	pkghttp.WriteJSON(w, http.StatusOK, map[string]bool{"enabled": false})
}
