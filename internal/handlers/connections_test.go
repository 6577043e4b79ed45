package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saurabhp75/epic-web/internal/auth"
	"github.com/saurabhp75/epic-web/internal/models"
	"github.com/saurabhp75/epic-web/internal/providers"
	"github.com/saurabhp75/epic-web/internal/services"
)

type stubProvider struct {
	name    string
	profile *providers.Profile
	err     error
}

func (p *stubProvider) Name() string { return p.name }

func (p *stubProvider) AuthorizationURL(state, redirectURI string) string {
	return "https://provider.example.com/authorize?state=" + state
}

func (p *stubProvider) HandleCallback(ctx context.Context, code, redirectURI string) (*providers.Profile, error) {
	if p.err != nil {
		return nil, p.err
	}
	return p.profile, nil
}

func newConnectionHandler(service *MockConnectionService, sessions *MockAuthService, provider providers.Provider) (*ConnectionHandler, *auth.Codec) {
	establisher, codec := newTestEstablisher(&MockVerificationService{})
	registry := providers.NewRegistry(provider)
	return NewConnectionHandler(service, sessions, registry, establisher, codec,
		"https://notes.example.com", slog.Default()), codec
}

func providerRequest(method, target, providerName string) *http.Request {
	req := httptest.NewRequest(method, target, nil)
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("provider", providerName)
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
}

func TestConnectionHandler_Start(t *testing.T) {
	provider := &stubProvider{name: "github"}
	handler, _ := newConnectionHandler(&MockConnectionService{}, &MockAuthService{}, provider)

	rec := httptest.NewRecorder()
	handler.Start(rec, providerRequest(http.MethodPost, "/auth/github", "github"))

	assert.Equal(t, http.StatusSeeOther, rec.Code)

	stateCookie := findCookie(rec.Result().Cookies(), auth.OAuthStateCookieName)
	require.NotNil(t, stateCookie)
	assert.NotEmpty(t, stateCookie.Value)
	assert.Contains(t, rec.Header().Get("Location"), "state="+stateCookie.Value)
}

func TestConnectionHandler_Start_UnknownProvider(t *testing.T) {
	handler, _ := newConnectionHandler(&MockConnectionService{}, &MockAuthService{}, &stubProvider{name: "github"})

	rec := httptest.NewRecorder()
	handler.Start(rec, providerRequest(http.MethodPost, "/auth/gitlab", "gitlab"))

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func callbackRequest(providerName, state, code, cookieState string) *http.Request {
	target := "/auth/" + providerName + "/callback?state=" + state + "&code=" + code
	req := providerRequest(http.MethodGet, target, providerName)
	if cookieState != "" {
		req.AddCookie(&http.Cookie{Name: auth.OAuthStateCookieName, Value: cookieState})
	}
	return req
}

func TestConnectionHandler_Callback_StateMismatch(t *testing.T) {
	provider := &stubProvider{name: "github"}
	service := &MockConnectionService{
		ResolveExternalLoginFunc: func(ctx context.Context, providerName string, profile *providers.Profile, currentUserID string) (*services.ExternalLoginResult, error) {
			t.Fatal("resolution must not run without a valid state")
			return nil, nil
		},
	}
	handler, _ := newConnectionHandler(service, &MockAuthService{}, provider)

	rec := httptest.NewRecorder()
	handler.Callback(rec, callbackRequest("github", "forged", "code123", "genuine"))

	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Contains(t, rec.Header().Get("Location"), "/login")

	stateCookie := findCookie(rec.Result().Cookies(), auth.OAuthStateCookieName)
	require.NotNil(t, stateCookie, "state cookie is single use")
	assert.Equal(t, -1, stateCookie.MaxAge)
}

func TestConnectionHandler_Callback_ProviderFailure(t *testing.T) {
	provider := &stubProvider{name: "github", err: models.ErrAuthProviderFailure}
	handler, _ := newConnectionHandler(&MockConnectionService{}, &MockAuthService{}, provider)

	rec := httptest.NewRecorder()
	handler.Callback(rec, callbackRequest("github", "state123", "code123", "state123"))

	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Contains(t, rec.Header().Get("Location"), "/login", "provider errors surface as a generic login notice")
}

func TestConnectionHandler_Callback_Login(t *testing.T) {
	provider := &stubProvider{name: "github", profile: &providers.Profile{ID: "12345", Email: "kody@example.com"}}
	service := &MockConnectionService{
		ResolveExternalLoginFunc: func(ctx context.Context, providerName string, profile *providers.Profile, currentUserID string) (*services.ExternalLoginResult, error) {
			assert.Empty(t, currentUserID)
			return &services.ExternalLoginResult{Outcome: services.OutcomeLogin, UserID: "user123"}, nil
		},
	}
	session := newTestSession("session123", "user123")
	sessions := &MockAuthService{
		NewSessionFunc: func(ctx context.Context, userID string) (*models.Session, error) {
			assert.Equal(t, "user123", userID)
			return session, nil
		},
	}
	handler, codec := newConnectionHandler(service, sessions, provider)

	rec := httptest.NewRecorder()
	handler.Callback(rec, callbackRequest("github", "state123", "code123", "state123"))

	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/", rec.Header().Get("Location"))

	sessionCookie := findCookie(rec.Result().Cookies(), auth.SessionCookieName)
	require.NotNil(t, sessionCookie)
	assert.False(t, sessionCookie.Expires.IsZero(), "oauth logins persist")
	payload, err := codec.DecodeSession(sessionCookie.Value)
	require.NoError(t, err)
	assert.Equal(t, "session123", payload.SessionID)
}

func TestConnectionHandler_Callback_LoginHitsTwoFactorGate(t *testing.T) {
	provider := &stubProvider{name: "github", profile: &providers.Profile{ID: "12345"}}
	service := &MockConnectionService{
		ResolveExternalLoginFunc: func(ctx context.Context, providerName string, profile *providers.Profile, currentUserID string) (*services.ExternalLoginResult, error) {
			return &services.ExternalLoginResult{Outcome: services.OutcomeLogin, UserID: "user123"}, nil
		},
	}
	sessions := &MockAuthService{
		NewSessionFunc: func(ctx context.Context, userID string) (*models.Session, error) {
			return newTestSession("session123", userID), nil
		},
	}
	verifications := &MockVerificationService{
		HasTwoFactorFunc: func(ctx context.Context, userID string) (bool, error) {
			return true, nil
		},
	}
	establisher, codec := newTestEstablisher(verifications)
	handler := NewConnectionHandler(service, sessions, providers.NewRegistry(provider), establisher, codec,
		"https://notes.example.com", slog.Default())

	rec := httptest.NewRecorder()
	handler.Callback(rec, callbackRequest("github", "state123", "code123", "state123"))

	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Contains(t, rec.Header().Get("Location"), "/verify?type=2fa")

	cookies := rec.Result().Cookies()
	assert.Nil(t, findCookie(cookies, auth.SessionCookieName), "no session cookie until the challenge passes")
	verificationCookie := findCookie(cookies, auth.VerificationCookieName)
	require.NotNil(t, verificationCookie)
	payload, err := codec.DecodeVerification(verificationCookie.Value)
	require.NoError(t, err)
	assert.Equal(t, "session123", payload.PendingSessionID)
	assert.True(t, payload.Remember)
}

func TestConnectionHandler_Callback_Onboarding(t *testing.T) {
	provider := &stubProvider{name: "github", profile: &providers.Profile{ID: "12345", Email: "new@example.com", Username: "Octocat", Name: "The Octocat"}}
	service := &MockConnectionService{
		ResolveExternalLoginFunc: func(ctx context.Context, providerName string, profile *providers.Profile, currentUserID string) (*services.ExternalLoginResult, error) {
			return &services.ExternalLoginResult{
				Outcome: services.OutcomeOnboarding,
				Onboarding: &auth.OnboardingData{
					Email:        "new@example.com",
					Username:     "octocat",
					Name:         "The Octocat",
					ProviderName: "github",
					ProviderID:   "12345",
				},
			}, nil
		},
	}
	handler, codec := newConnectionHandler(service, &MockAuthService{}, provider)

	rec := httptest.NewRecorder()
	handler.Callback(rec, callbackRequest("github", "state123", "code123", "state123"))

	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/onboarding", rec.Header().Get("Location"))

	verificationCookie := findCookie(rec.Result().Cookies(), auth.VerificationCookieName)
	require.NotNil(t, verificationCookie)
	payload, err := codec.DecodeVerification(verificationCookie.Value)
	require.NoError(t, err)
	require.NotNil(t, payload.Onboarding)
	assert.Equal(t, "new@example.com", payload.Onboarding.Email)
	assert.Equal(t, "github", payload.Onboarding.ProviderName)
	assert.Equal(t, "12345", payload.Onboarding.ProviderID)
}

func TestConnectionHandler_Callback_ConflictNotice(t *testing.T) {
	provider := &stubProvider{name: "github", profile: &providers.Profile{ID: "12345"}}
	service := &MockConnectionService{
		ResolveExternalLoginFunc: func(ctx context.Context, providerName string, profile *providers.Profile, currentUserID string) (*services.ExternalLoginResult, error) {
			assert.Equal(t, "user123", currentUserID)
			return &services.ExternalLoginResult{
				Outcome: services.OutcomeConflict,
				Message: "The \"12345\" github account is already connected to another account.",
			}, nil
		},
	}
	handler, _ := newConnectionHandler(service, &MockAuthService{}, provider)

	user := newTestUser("user123", "kody", "kody@example.com")
	req := requestWithUser(callbackRequest("github", "state123", "code123", "state123"),
		user, newTestSession("session123", user.ID), nil)

	rec := httptest.NewRecorder()
	handler.Callback(rec, req)

	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Contains(t, rec.Header().Get("Location"), "/settings/connections")
}

func TestConnectionHandler_Disconnect(t *testing.T) {
	user := newTestUser("user123", "kody", "kody@example.com")

	newRequest := func(connectionID string) *http.Request {
		req := httptest.NewRequest(http.MethodDelete, "/settings/connections/"+connectionID, nil)
		rctx := chi.NewRouteContext()
		rctx.URLParams.Add("id", connectionID)
		req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
		return requestWithUser(req, user, newTestSession("session123", user.ID), nil)
	}

	t.Run("last login method is refused", func(t *testing.T) {
		service := &MockConnectionService{
			DisconnectFunc: func(ctx context.Context, userID, connectionID string) error {
				return models.ErrForbidden
			},
		}
		handler, _ := newConnectionHandler(service, &MockAuthService{}, &stubProvider{name: "github"})

		rec := httptest.NewRecorder()
		handler.Disconnect(rec, newRequest("conn123"))

		assert.Equal(t, http.StatusForbidden, rec.Code)
		assert.Contains(t, rec.Body.String(), "only way to sign in")
	})

	t.Run("success", func(t *testing.T) {
		service := &MockConnectionService{
			DisconnectFunc: func(ctx context.Context, userID, connectionID string) error {
				assert.Equal(t, "user123", userID)
				assert.Equal(t, "conn123", connectionID)
				return nil
			},
		}
		handler, _ := newConnectionHandler(service, &MockAuthService{}, &stubProvider{name: "github"})

		rec := httptest.NewRecorder()
		handler.Disconnect(rec, newRequest("conn123"))

		assert.Equal(t, http.StatusNoContent, rec.Code)
	})
}
