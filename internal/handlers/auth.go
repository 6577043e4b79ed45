package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/saurabhp75/epic-web/internal/auth"
	"github.com/saurabhp75/epic-web/internal/models"
	"github.com/saurabhp75/epic-web/internal/services"
	pkghttp "github.com/saurabhp75/epic-web/pkg/http"
)

// AuthServiceInterface defines the interface for auth business logic
type AuthServiceInterface interface {
	Login(ctx context.Context, username, password string) (*models.User, *models.Session, error)
	NewSession(ctx context.Context, userID string) (*models.Session, error)
	GetSession(ctx context.Context, sessionID string) (*models.Session, error)
	Logout(ctx context.Context, sessionID string) error
	LogoutOtherSessions(ctx context.Context, userID, keepSessionID string) (int64, error)
	SessionCount(ctx context.Context, userID string) (int, error)
	StartSignup(ctx context.Context, email string) error
	CompleteOnboarding(ctx context.Context, input services.OnboardingInput) (*models.User, *models.Session, error)
	ChangePassword(ctx context.Context, userID, currentPassword, newPassword string) error
}

// AuthHandler handles login, logout, signup, and onboarding requests
type AuthHandler struct {
	service     AuthServiceInterface
	establisher *SessionEstablisher
	codec       *auth.Codec
}

// NewAuthHandler creates a new AuthHandler
func NewAuthHandler(service AuthServiceInterface, establisher *SessionEstablisher, codec *auth.Codec) *AuthHandler {
	return &AuthHandler{
		service:     service,
		establisher: establisher,
		codec:       codec,
	}
}

// Request DTOs

// LoginRequest represents the request body for login
type LoginRequest struct {
	Username   string `json:"username" validate:"required"`
	Password   string `json:"password" validate:"required"`
	Remember   bool   `json:"remember"`
	RedirectTo string `json:"redirect_to"`
}

// SignupRequest represents the request body for starting signup
type SignupRequest struct {
	Email string `json:"email" validate:"required,email"`
}

// OnboardingRequest represents the request body for finishing signup. The
// email comes from the verification cookie, never from the client.
type OnboardingRequest struct {
	Username   string `json:"username" validate:"required,username"`
	Name       string `json:"name" validate:"max=100"`
	Password   string `json:"password"`
	Remember   bool   `json:"remember"`
	RedirectTo string `json:"redirect_to"`
}

// Login handles POST /auth/login. On success either the session cookie is
// written or, when two-factor is required, the challenge is staged and the
// user is redirected to the verification page.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}
	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	user, session, err := h.service.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		if errors.Is(err, models.ErrInvalidCredentials) {
			pkghttp.WriteUnauthorized(w, "Invalid username or password")
			return
		}
		pkghttp.WriteInternalError(w, "Something went wrong")
		return
	}

	h.establisher.HandleNewSession(w, r, user, session, req.Remember, req.RedirectTo)
}

// Logout handles POST /auth/logout: deletes the session record and clears
// the cookie
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if session := auth.GetSessionFromContext(r); session != nil {
		if err := h.service.Logout(r.Context(), session.ID); err != nil {
			pkghttp.WriteInternalError(w, "Something went wrong")
			return
		}
	}

	auth.ClearSessionCookie(w, h.establisher.CookieConfig())
	pkghttp.Redirect(w, r, "/")
}

// LogoutOtherSessions handles POST /auth/logout-others: signs the user out
// everywhere except the current browser
func (h *AuthHandler) LogoutOtherSessions(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUserFromContext(r)
	session := auth.GetSessionFromContext(r)
	if user == nil || session == nil {
		pkghttp.WriteUnauthorized(w, "Authentication required")
		return
	}

	deleted, err := h.service.LogoutOtherSessions(r.Context(), user.ID, session.ID)
	if err != nil {
		pkghttp.WriteInternalError(w, "Something went wrong")
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, map[string]int64{"sessions_deleted": deleted})
}

// Signup handles POST /auth/signup: emails a verification code to the
// address so the visitor can prove they own it
func (h *AuthHandler) Signup(w http.ResponseWriter, r *http.Request) {
	var req SignupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}
	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))
	if err := h.service.StartSignup(r.Context(), email); err != nil {
		if errors.Is(err, models.ErrConflict) {
			pkghttp.WriteConflict(w, "A user already exists with this email")
			return
		}
		pkghttp.WriteInternalError(w, "Something went wrong")
		return
	}

	pkghttp.Redirect(w, r, "/verify?type="+models.VerificationTypeOnboarding+"&target="+email)
}

// Onboarding handles POST /auth/onboarding: creates the account described by
// the verified visitor and logs them in. The verification cookie proves which
// email (and, for OAuth signups, which external identity) was verified.
func (h *AuthHandler) Onboarding(w http.ResponseWriter, r *http.Request) {
	cookieValue := auth.GetCookie(r, auth.VerificationCookieName)
	if cookieValue == "" {
		pkghttp.RedirectWithNotice(w, r, "/signup", "Please verify your email first")
		return
	}
	payload, err := h.codec.DecodeVerification(cookieValue)
	if err != nil || payload.Onboarding == nil {
		auth.ClearVerificationCookie(w, h.establisher.CookieConfig())
		pkghttp.RedirectWithNotice(w, r, "/signup", "Please verify your email first")
		return
	}

	var req OnboardingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}
	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	input := services.OnboardingInput{
		Email:        payload.Onboarding.Email,
		Username:     req.Username,
		Name:         req.Name,
		Password:     req.Password,
		ProviderName: payload.Onboarding.ProviderName,
		ProviderID:   payload.Onboarding.ProviderID,
	}
	user, session, err := h.service.CompleteOnboarding(r.Context(), input)
	if err != nil {
		switch {
		case errors.Is(err, models.ErrConflict):
			pkghttp.WriteConflict(w, "That username or email is already taken")
		case errors.Is(err, models.ErrInternalServer):
			pkghttp.WriteInternalError(w, "Something went wrong")
		default:
			pkghttp.WriteBadRequest(w, err.Error())
		}
		return
	}

	// The staged signup state is spent
	auth.ClearVerificationCookie(w, h.establisher.CookieConfig())
	h.establisher.HandleNewSession(w, r, user, session, req.Remember, req.RedirectTo)
}
