package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/saurabhp75/epic-web/internal/auth"
	"github.com/saurabhp75/epic-web/internal/models"
	pkghttp "github.com/saurabhp75/epic-web/pkg/http"
)

// UserServiceInterface defines the interface for profile logic
type UserServiceInterface interface {
	GetByID(ctx context.Context, id string) (*models.User, error)
	GetByUsername(ctx context.Context, username string) (*models.User, error)
	UpdateProfile(ctx context.Context, userID, username, name string) (*models.User, error)
	HasPassword(ctx context.Context, userID string) (bool, error)
	DeleteAccount(ctx context.Context, userID string) error
}

// UserHandler handles profile requests
type UserHandler struct {
	service       UserServiceInterface
	sessions      AuthServiceInterface
	verifications VerificationServiceInterface
	notes         NoteServiceInterface
	cookies       auth.CookieConfig
}

// NewUserHandler creates a new UserHandler
func NewUserHandler(service UserServiceInterface, sessions AuthServiceInterface, verifications VerificationServiceInterface, notes NoteServiceInterface, cookies auth.CookieConfig) *UserHandler {
	return &UserHandler{
		service:       service,
		sessions:      sessions,
		verifications: verifications,
		notes:         notes,
		cookies:       cookies,
	}
}

// UserResponse represents a user in the HTTP response
type UserResponse struct {
	ID        string `json:"id"`
	Username  string `json:"username"`
	Name      string `json:"name"`
	CreatedAt string `json:"created_at"`
}

// ProfileResponse is the caller's own account, with private detail the
// public UserResponse omits
type ProfileResponse struct {
	UserResponse
	Email            string `json:"email"`
	HasPassword      bool   `json:"has_password"`
	TwoFactorEnabled bool   `json:"two_factor_enabled"`
	SessionCount     int    `json:"session_count"`
}

// UpdateProfileRequest represents the request body for profile updates
type UpdateProfileRequest struct {
	Username string `json:"username" validate:"required,username"`
	Name     string `json:"name" validate:"max=100"`
}

// ChangePasswordRequest represents the request body for password changes
type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password" validate:"required"`
}

func userToResponse(user *models.User) UserResponse {
	return UserResponse{
		ID:        user.ID,
		Username:  user.Username,
		Name:      user.Name,
		CreatedAt: user.CreatedAt.Format(time.RFC3339),
	}
}

// Me handles GET /me
func (h *UserHandler) Me(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUserFromContext(r)
	if user == nil {
		pkghttp.WriteUnauthorized(w, "Authentication required")
		return
	}

	hasPassword, err := h.service.HasPassword(r.Context(), user.ID)
	if err != nil {
		pkghttp.WriteInternalError(w, "Something went wrong")
		return
	}
	twoFactor, err := h.verifications.HasTwoFactor(r.Context(), user.ID)
	if err != nil {
		pkghttp.WriteInternalError(w, "Something went wrong")
		return
	}
	sessionCount, err := h.sessions.SessionCount(r.Context(), user.ID)
	if err != nil {
		pkghttp.WriteInternalError(w, "Something went wrong")
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, ProfileResponse{
		UserResponse:     userToResponse(user),
		Email:            user.Email,
		HasPassword:      hasPassword,
		TwoFactorEnabled: twoFactor,
		SessionCount:     sessionCount,
	})
}

// GetByUsername handles GET /users/{username}: the public profile
func (h *UserHandler) GetByUsername(w http.ResponseWriter, r *http.Request) {
	user, err := h.service.GetByUsername(r.Context(), chi.URLParam(r, "username"))
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			pkghttp.WriteNotFound(w, "User not found")
			return
		}
		pkghttp.WriteInternalError(w, "Something went wrong")
		return
	}
	pkghttp.WriteJSON(w, http.StatusOK, userToResponse(user))
}

// ListNotes handles GET /users/{username}/notes: anyone may read a user's
// notes
func (h *UserHandler) ListNotes(w http.ResponseWriter, r *http.Request) {
	user, err := h.service.GetByUsername(r.Context(), chi.URLParam(r, "username"))
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			pkghttp.WriteNotFound(w, "User not found")
			return
		}
		pkghttp.WriteInternalError(w, "Something went wrong")
		return
	}

	notes, err := h.notes.ListByOwner(r.Context(), user.ID)
	if err != nil {
		pkghttp.WriteInternalError(w, "Something went wrong")
		return
	}

	responses := make([]NoteResponse, 0, len(notes))
	for _, note := range notes {
		responses = append(responses, noteToResponse(note))
	}
	pkghttp.WriteJSON(w, http.StatusOK, map[string]any{"owner": userToResponse(user), "notes": responses})
}

// UpdateProfile handles PUT /me
func (h *UserHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUserFromContext(r)
	if user == nil {
		pkghttp.WriteUnauthorized(w, "Authentication required")
		return
	}

	var req UpdateProfileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}
	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	updated, err := h.service.UpdateProfile(r.Context(), user.ID, req.Username, req.Name)
	if err != nil {
		switch {
		case errors.Is(err, models.ErrConflict):
			pkghttp.WriteConflict(w, "That username is already taken")
		case errors.Is(err, models.ErrInternalServer):
			pkghttp.WriteInternalError(w, "Something went wrong")
		default:
			pkghttp.WriteBadRequest(w, err.Error())
		}
		return
	}
	pkghttp.WriteJSON(w, http.StatusOK, userToResponse(updated))
}

// ChangePassword handles POST /me/password
func (h *UserHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUserFromContext(r)
	if user == nil {
		pkghttp.WriteUnauthorized(w, "Authentication required")
		return
	}

	var req ChangePasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}
	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	err := h.sessions.ChangePassword(r.Context(), user.ID, req.CurrentPassword, req.NewPassword)
	if err != nil {
		switch {
		case errors.Is(err, models.ErrInvalidCredentials):
			pkghttp.WriteUnauthorized(w, "Current password is incorrect")
		case errors.Is(err, models.ErrInternalServer):
			pkghttp.WriteInternalError(w, "Something went wrong")
		default:
			pkghttp.WriteBadRequest(w, err.Error())
		}
		return
	}
	pkghttp.WriteJSON(w, http.StatusOK, map[string]bool{"changed": true})
}

// DeleteAccount handles DELETE /me
func (h *UserHandler) DeleteAccount(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUserFromContext(r)
	if user == nil {
		pkghttp.WriteUnauthorized(w, "Authentication required")
		return
	}

	if err := h.service.DeleteAccount(r.Context(), user.ID); err != nil {
		pkghttp.WriteInternalError(w, "Something went wrong")
		return
	}

	auth.ClearSessionCookie(w, h.cookies)
	w.WriteHeader(http.StatusNoContent)
}
