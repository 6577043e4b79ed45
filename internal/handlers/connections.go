package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/saurabhp75/epic-web/internal/auth"
	"github.com/saurabhp75/epic-web/internal/models"
	"github.com/saurabhp75/epic-web/internal/providers"
	"github.com/saurabhp75/epic-web/internal/services"
	pkghttp "github.com/saurabhp75/epic-web/pkg/http"
)

// ConnectionServiceInterface defines the interface for provider connections
type ConnectionServiceInterface interface {
	ResolveExternalLogin(ctx context.Context, providerName string, profile *providers.Profile, currentUserID string) (*services.ExternalLoginResult, error)
	List(ctx context.Context, userID string) ([]*models.Connection, error)
	Disconnect(ctx context.Context, userID, connectionID string) error
}

// ConnectionHandler runs the OAuth handshake and manages a user's connections
type ConnectionHandler struct {
	service     ConnectionServiceInterface
	sessions    AuthServiceInterface
	registry    providers.Registry
	establisher *SessionEstablisher
	codec       *auth.Codec
	baseURL     string
	logger      *slog.Logger
}

// NewConnectionHandler creates a new ConnectionHandler
func NewConnectionHandler(service ConnectionServiceInterface, sessions AuthServiceInterface, registry providers.Registry, establisher *SessionEstablisher, codec *auth.Codec, baseURL string, logger *slog.Logger) *ConnectionHandler {
	return &ConnectionHandler{
		service:     service,
		sessions:    sessions,
		registry:    registry,
		establisher: establisher,
		codec:       codec,
		baseURL:     baseURL,
		logger:      logger,
	}
}

// ConnectionResponse represents a connection in the HTTP response
type ConnectionResponse struct {
	ID           string `json:"id"`
	ProviderName string `json:"provider_name"`
	CreatedAt    string `json:"created_at"`
}

func (h *ConnectionHandler) redirectURI(providerName string) string {
	return h.baseURL + "/auth/" + providerName + "/callback"
}

// Start handles POST /auth/{provider}: sets the state cookie and sends the
// browser to the provider's authorize page
func (h *ConnectionHandler) Start(w http.ResponseWriter, r *http.Request) {
	providerName := chi.URLParam(r, "provider")
	provider, err := h.registry.Get(providerName)
	if err != nil {
		pkghttp.WriteNotFound(w, "Unknown auth provider")
		return
	}

	state, err := providers.NewState()
	if err != nil {
		h.logger.Error("failed to generate oauth state", slog.Any("error", err))
		pkghttp.WriteInternalError(w, "Something went wrong")
		return
	}

	auth.SetOAuthStateCookie(w, state, h.establisher.CookieConfig())
	pkghttp.Redirect(w, r, provider.AuthorizationURL(state, h.redirectURI(providerName)))
}

// Callback handles GET /auth/{provider}/callback: verifies the state, swaps
// the code for a profile, and resolves what the identity means locally
func (h *ConnectionHandler) Callback(w http.ResponseWriter, r *http.Request) {
	providerName := chi.URLParam(r, "provider")
	provider, err := h.registry.Get(providerName)
	if err != nil {
		pkghttp.WriteNotFound(w, "Unknown auth provider")
		return
	}

	expectedState := auth.GetCookie(r, auth.OAuthStateCookieName)
	auth.ClearOAuthStateCookie(w, h.establisher.CookieConfig())
	if expectedState == "" || r.URL.Query().Get("state") != expectedState {
		h.logger.Warn("oauth state mismatch", slog.String("provider", providerName))
		pkghttp.RedirectWithNotice(w, r, "/login", "Auth failed, please try again")
		return
	}

	code := r.URL.Query().Get("code")
	if code == "" {
		pkghttp.RedirectWithNotice(w, r, "/login", "Auth failed, please try again")
		return
	}

	profile, err := provider.HandleCallback(r.Context(), code, h.redirectURI(providerName))
	if err != nil {
		// Provider errors never surface raw to the user
		h.logger.Error("oauth handshake failed", slog.String("provider", providerName), slog.Any("error", err))
		pkghttp.RedirectWithNotice(w, r, "/login", "Auth failed, please try again")
		return
	}

	var currentUserID string
	if user := auth.GetUserFromContext(r); user != nil {
		currentUserID = user.ID
	}

	result, err := h.service.ResolveExternalLogin(r.Context(), providerName, profile, currentUserID)
	if err != nil {
		if errors.Is(err, models.ErrAlreadyConnected) {
			pkghttp.RedirectWithNotice(w, r, "/settings/connections", "That account is already connected")
			return
		}
		pkghttp.RedirectWithNotice(w, r, "/login", "Auth failed, please try again")
		return
	}

	switch result.Outcome {
	case services.OutcomeConflict:
		pkghttp.RedirectWithNotice(w, r, "/settings/connections", result.Message)

	case services.OutcomeLinkedToCurrent:
		pkghttp.RedirectWithNotice(w, r, "/settings/connections", "Your "+providerName+" account has been connected")

	case services.OutcomeLogin, services.OutcomeImplicitLink:
		h.loginAs(w, r, result.UserID)

	case services.OutcomeOnboarding:
		value, err := h.codec.EncodeVerification(auth.VerificationPayload{
			Onboarding: result.Onboarding,
		}, 10*time.Minute)
		if err != nil {
			pkghttp.WriteInternalError(w, "Something went wrong")
			return
		}
		auth.SetVerificationCookie(w, value, 10*time.Minute, h.establisher.CookieConfig())
		pkghttp.Redirect(w, r, "/onboarding")
	}
}

// loginAs creates a session for the resolved user and runs it through the
// session establisher, so the two-factor gate still applies to OAuth logins
func (h *ConnectionHandler) loginAs(w http.ResponseWriter, r *http.Request, userID string) {
	session, err := h.sessions.NewSession(r.Context(), userID)
	if err != nil {
		pkghttp.WriteInternalError(w, "Something went wrong")
		return
	}
	// An OAuth login persists like a remembered password login
	h.establisher.HandleNewSession(w, r, &models.User{ID: userID}, session, true, "/")
}

// List handles GET /settings/connections
func (h *ConnectionHandler) List(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUserFromContext(r)
	if user == nil {
		pkghttp.WriteUnauthorized(w, "Authentication required")
		return
	}

	connections, err := h.service.List(r.Context(), user.ID)
	if err != nil {
		pkghttp.WriteInternalError(w, "Something went wrong")
		return
	}

	responses := make([]ConnectionResponse, 0, len(connections))
	for _, c := range connections {
		responses = append(responses, ConnectionResponse{
			ID:           c.ID,
			ProviderName: c.ProviderName,
			CreatedAt:    c.CreatedAt.Format(time.RFC3339),
		})
	}
	pkghttp.WriteJSON(w, http.StatusOK, map[string]any{"connections": responses})
}

// Disconnect handles DELETE /settings/connections/{id}
func (h *ConnectionHandler) Disconnect(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUserFromContext(r)
	if user == nil {
		pkghttp.WriteUnauthorized(w, "Authentication required")
		return
	}

	err := h.service.Disconnect(r.Context(), user.ID, chi.URLParam(r, "id"))
	if err != nil {
		switch {
		case errors.Is(err, models.ErrForbidden):
			pkghttp.WriteForbidden(w, "You can't remove your only way to sign in")
		case errors.Is(err, models.ErrNotFound):
			pkghttp.WriteNotFound(w, "Connection not found")
		default:
			pkghttp.WriteInternalError(w, "Something went wrong")
		}
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
