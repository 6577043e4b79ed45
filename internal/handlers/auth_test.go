package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saurabhp75/epic-web/internal/auth"
	"github.com/saurabhp75/epic-web/internal/models"
	"github.com/saurabhp75/epic-web/internal/services"
)

func postJSON(t *testing.T, path string, body any) *http.Request {
	t.Helper()
	buf, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(buf))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func TestAuthHandler_Login_Success(t *testing.T) {
	user := newTestUser("user123", "kody", "kody@example.com")
	session := newTestSession("session123", user.ID)
	authService := &MockAuthService{
		LoginFunc: func(ctx context.Context, username, password string) (*models.User, *models.Session, error) {
			return user, session, nil
		},
	}
	establisher, codec := newTestEstablisher(&MockVerificationService{})
	handler := NewAuthHandler(authService, establisher, codec)

	rec := httptest.NewRecorder()
	handler.Login(rec, postJSON(t, "/auth/login", LoginRequest{Username: "kody", Password: "pw", Remember: true, RedirectTo: "/notes"}))

	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/notes", rec.Header().Get("Location"))

	cookies := rec.Result().Cookies()
	sessionCookie := findCookie(cookies, auth.SessionCookieName)
	require.NotNil(t, sessionCookie, "session cookie must be written")
	assert.False(t, sessionCookie.Expires.IsZero(), "remembered login persists past the browser session")
	assert.Nil(t, findCookie(cookies, auth.VerificationCookieName), "no challenge was required")

	payload, err := codec.DecodeSession(sessionCookie.Value)
	require.NoError(t, err)
	assert.Equal(t, "session123", payload.SessionID)
	assert.Nil(t, payload.VerifiedAt)
}

func TestAuthHandler_Login_NotRemembered(t *testing.T) {
	user := newTestUser("user123", "kody", "kody@example.com")
	authService := &MockAuthService{
		LoginFunc: func(ctx context.Context, username, password string) (*models.User, *models.Session, error) {
			return user, newTestSession("session123", user.ID), nil
		},
	}
	establisher, codec := newTestEstablisher(&MockVerificationService{})
	handler := NewAuthHandler(authService, establisher, codec)

	rec := httptest.NewRecorder()
	handler.Login(rec, postJSON(t, "/auth/login", LoginRequest{Username: "kody", Password: "pw"}))

	sessionCookie := findCookie(rec.Result().Cookies(), auth.SessionCookieName)
	require.NotNil(t, sessionCookie)
	assert.True(t, sessionCookie.Expires.IsZero(), "cookie should last only for the browser session")
	assert.Equal(t, 0, sessionCookie.MaxAge)
}

func TestAuthHandler_Login_TwoFactorDetour(t *testing.T) {
	user := newTestUser("user123", "kody", "kody@example.com")
	authService := &MockAuthService{
		LoginFunc: func(ctx context.Context, username, password string) (*models.User, *models.Session, error) {
			return user, newTestSession("session123", user.ID), nil
		},
	}
	verifications := &MockVerificationService{
		HasTwoFactorFunc: func(ctx context.Context, userID string) (bool, error) {
			return true, nil
		},
	}
	establisher, codec := newTestEstablisher(verifications)
	handler := NewAuthHandler(authService, establisher, codec)

	rec := httptest.NewRecorder()
	handler.Login(rec, postJSON(t, "/auth/login", LoginRequest{Username: "kody", Password: "pw", Remember: true, RedirectTo: "/notes"}))

	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.True(t, strings.HasPrefix(rec.Header().Get("Location"), "/verify?"), "should detour to the verification page, got %s", rec.Header().Get("Location"))

	cookies := rec.Result().Cookies()
	assert.Nil(t, findCookie(cookies, auth.SessionCookieName), "no session cookie until the challenge passes")

	verificationCookie := findCookie(cookies, auth.VerificationCookieName)
	require.NotNil(t, verificationCookie)
	payload, err := codec.DecodeVerification(verificationCookie.Value)
	require.NoError(t, err)
	assert.Equal(t, "session123", payload.PendingSessionID)
	assert.True(t, payload.Remember)
	assert.Equal(t, "/notes", payload.RedirectTo)
}

func TestAuthHandler_Login_PendingChallengeOverridesFreshness(t *testing.T) {
	user := newTestUser("user123", "kody", "kody@example.com")
	authService := &MockAuthService{
		LoginFunc: func(ctx context.Context, username, password string) (*models.User, *models.Session, error) {
			return user, newTestSession("session456", user.ID), nil
		},
	}
	verifications := &MockVerificationService{
		HasTwoFactorFunc: func(ctx context.Context, userID string) (bool, error) {
			return true, nil
		},
	}
	establisher, codec := newTestEstablisher(verifications)
	handler := NewAuthHandler(authService, establisher, codec)

	// A fresh verified_at on its own would skip the challenge, but the
	// request still carries a staged, uncompleted challenge cookie.
	now := time.Now()
	sessionValue, err := codec.EncodeSession(auth.SessionPayload{SessionID: "session-old", VerifiedAt: &now})
	require.NoError(t, err)
	verificationValue, err := codec.EncodeVerification(auth.VerificationPayload{PendingSessionID: "session-old", Remember: true}, 10*time.Minute)
	require.NoError(t, err)

	req := postJSON(t, "/auth/login", LoginRequest{Username: "kody", Password: "pw", Remember: true})
	req.AddCookie(&http.Cookie{Name: auth.SessionCookieName, Value: sessionValue})
	req.AddCookie(&http.Cookie{Name: auth.VerificationCookieName, Value: verificationValue})

	rec := httptest.NewRecorder()
	handler.Login(rec, req)

	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.True(t, strings.HasPrefix(rec.Header().Get("Location"), "/verify?"), "staged challenge must force the detour, got %s", rec.Header().Get("Location"))

	cookies := rec.Result().Cookies()
	assert.Nil(t, findCookie(cookies, auth.SessionCookieName), "no session cookie while a challenge is pending")

	verificationCookie := findCookie(cookies, auth.VerificationCookieName)
	require.NotNil(t, verificationCookie)
	payload, err := codec.DecodeVerification(verificationCookie.Value)
	require.NoError(t, err)
	assert.Equal(t, "session456", payload.PendingSessionID, "the new session is staged behind the challenge")
}

func TestAuthHandler_Login_InvalidCredentials(t *testing.T) {
	establisher, codec := newTestEstablisher(&MockVerificationService{})
	handler := NewAuthHandler(&MockAuthService{}, establisher, codec)

	rec := httptest.NewRecorder()
	handler.Login(rec, postJSON(t, "/auth/login", LoginRequest{Username: "kody", Password: "wrong"}))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Empty(t, rec.Result().Cookies())
}

func TestAuthHandler_Login_UnsafeRedirectFallsBack(t *testing.T) {
	user := newTestUser("user123", "kody", "kody@example.com")
	authService := &MockAuthService{
		LoginFunc: func(ctx context.Context, username, password string) (*models.User, *models.Session, error) {
			return user, newTestSession("session123", user.ID), nil
		},
	}
	establisher, codec := newTestEstablisher(&MockVerificationService{})
	handler := NewAuthHandler(authService, establisher, codec)

	rec := httptest.NewRecorder()
	handler.Login(rec, postJSON(t, "/auth/login", LoginRequest{Username: "kody", Password: "pw", RedirectTo: "https://evil.example.com/"}))

	assert.Equal(t, "/", rec.Header().Get("Location"))
}

func TestAuthHandler_Logout(t *testing.T) {
	deleted := ""
	authService := &MockAuthService{
		LogoutFunc: func(ctx context.Context, sessionID string) error {
			deleted = sessionID
			return nil
		},
	}
	establisher, codec := newTestEstablisher(&MockVerificationService{})
	handler := NewAuthHandler(authService, establisher, codec)

	user := newTestUser("user123", "kody", "kody@example.com")
	session := newTestSession("session123", user.ID)
	req := requestWithUser(httptest.NewRequest(http.MethodPost, "/auth/logout", nil), user, session, &auth.SessionPayload{SessionID: session.ID})

	rec := httptest.NewRecorder()
	handler.Logout(rec, req)

	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "session123", deleted)

	cleared := findCookie(rec.Result().Cookies(), auth.SessionCookieName)
	require.NotNil(t, cleared)
	assert.Equal(t, -1, cleared.MaxAge)
}

func TestAuthHandler_Signup(t *testing.T) {
	t.Run("sends code and redirects to verify", func(t *testing.T) {
		started := ""
		authService := &MockAuthService{
			StartSignupFunc: func(ctx context.Context, email string) error {
				started = email
				return nil
			},
		}
		establisher, codec := newTestEstablisher(&MockVerificationService{})
		handler := NewAuthHandler(authService, establisher, codec)

		rec := httptest.NewRecorder()
		handler.Signup(rec, postJSON(t, "/auth/signup", SignupRequest{Email: "New@Example.com"}))

		assert.Equal(t, http.StatusSeeOther, rec.Code)
		assert.Equal(t, "new@example.com", started)
		assert.Contains(t, rec.Header().Get("Location"), "/verify?type=onboarding")
	})

	t.Run("existing email conflicts", func(t *testing.T) {
		authService := &MockAuthService{
			StartSignupFunc: func(ctx context.Context, email string) error {
				return models.ErrConflict
			},
		}
		establisher, codec := newTestEstablisher(&MockVerificationService{})
		handler := NewAuthHandler(authService, establisher, codec)

		rec := httptest.NewRecorder()
		handler.Signup(rec, postJSON(t, "/auth/signup", SignupRequest{Email: "taken@example.com"}))

		assert.Equal(t, http.StatusConflict, rec.Code)
	})
}

func TestAuthHandler_Onboarding(t *testing.T) {
	establisher, codec := newTestEstablisher(&MockVerificationService{})

	withVerificationCookie := func(t *testing.T, req *http.Request, payload auth.VerificationPayload) *http.Request {
		t.Helper()
		value, err := codec.EncodeVerification(payload, establisher.verificationTTL)
		require.NoError(t, err)
		req.AddCookie(&http.Cookie{Name: auth.VerificationCookieName, Value: value})
		return req
	}

	t.Run("without verification cookie", func(t *testing.T) {
		handler := NewAuthHandler(&MockAuthService{}, establisher, codec)

		rec := httptest.NewRecorder()
		handler.Onboarding(rec, postJSON(t, "/auth/onboarding", OnboardingRequest{Username: "kody", Password: "pw"}))

		assert.Equal(t, http.StatusSeeOther, rec.Code)
		assert.Contains(t, rec.Header().Get("Location"), "/signup")
	})

	t.Run("email comes from the cookie, not the client", func(t *testing.T) {
		var got services.OnboardingInput
		authService := &MockAuthService{
			CompleteOnboardingFunc: func(ctx context.Context, input services.OnboardingInput) (*models.User, *models.Session, error) {
				got = input
				user := newTestUser("user123", input.Username, input.Email)
				return user, newTestSession("session123", user.ID), nil
			},
		}
		handler := NewAuthHandler(authService, establisher, codec)

		req := withVerificationCookie(t, postJSON(t, "/auth/onboarding", OnboardingRequest{Username: "kody", Password: "SecurePassword123", Remember: true}),
			auth.VerificationPayload{Onboarding: &auth.OnboardingData{Email: "verified@example.com"}})

		rec := httptest.NewRecorder()
		handler.Onboarding(rec, req)

		assert.Equal(t, http.StatusSeeOther, rec.Code)
		assert.Equal(t, "verified@example.com", got.Email)

		cookies := rec.Result().Cookies()
		require.NotNil(t, findCookie(cookies, auth.SessionCookieName), "new user is logged in")
		verificationCookie := findCookie(cookies, auth.VerificationCookieName)
		require.NotNil(t, verificationCookie, "spent verification cookie is cleared")
		assert.Equal(t, -1, verificationCookie.MaxAge)
	})

	t.Run("provider identity carried through", func(t *testing.T) {
		var got services.OnboardingInput
		authService := &MockAuthService{
			CompleteOnboardingFunc: func(ctx context.Context, input services.OnboardingInput) (*models.User, *models.Session, error) {
				got = input
				user := newTestUser("user123", input.Username, input.Email)
				return user, newTestSession("session123", user.ID), nil
			},
		}
		handler := NewAuthHandler(authService, establisher, codec)

		req := withVerificationCookie(t, postJSON(t, "/auth/onboarding", OnboardingRequest{Username: "octocat"}),
			auth.VerificationPayload{Onboarding: &auth.OnboardingData{
				Email: "octo@example.com", Username: "octocat", ProviderName: "github", ProviderID: "12345",
			}})

		rec := httptest.NewRecorder()
		handler.Onboarding(rec, req)

		assert.Equal(t, http.StatusSeeOther, rec.Code)
		assert.Equal(t, "github", got.ProviderName)
		assert.Equal(t, "12345", got.ProviderID)
		assert.Empty(t, got.Password)
	})
}
