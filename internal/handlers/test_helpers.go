package handlers

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/saurabhp75/epic-web/internal/auth"
	"github.com/saurabhp75/epic-web/internal/models"
	"github.com/saurabhp75/epic-web/internal/providers"
	"github.com/saurabhp75/epic-web/internal/services"
)

const testSessionSecret = "test-secret-test-secret-test-secret!"

// MockAuthService implements AuthServiceInterface for testing
type MockAuthService struct {
	LoginFunc               func(ctx context.Context, username, password string) (*models.User, *models.Session, error)
	NewSessionFunc          func(ctx context.Context, userID string) (*models.Session, error)
	GetSessionFunc          func(ctx context.Context, sessionID string) (*models.Session, error)
	LogoutFunc              func(ctx context.Context, sessionID string) error
	LogoutOtherSessionsFunc func(ctx context.Context, userID, keepSessionID string) (int64, error)
	SessionCountFunc        func(ctx context.Context, userID string) (int, error)
	StartSignupFunc         func(ctx context.Context, email string) error
	CompleteOnboardingFunc  func(ctx context.Context, input services.OnboardingInput) (*models.User, *models.Session, error)
	ChangePasswordFunc      func(ctx context.Context, userID, currentPassword, newPassword string) error
}

func (m *MockAuthService) Login(ctx context.Context, username, password string) (*models.User, *models.Session, error) {
	if m.LoginFunc != nil {
		return m.LoginFunc(ctx, username, password)
	}
	return nil, nil, models.ErrInvalidCredentials
}

func (m *MockAuthService) NewSession(ctx context.Context, userID string) (*models.Session, error) {
	if m.NewSessionFunc != nil {
		return m.NewSessionFunc(ctx, userID)
	}
	return newTestSession("session_"+userID, userID), nil
}

func (m *MockAuthService) GetSession(ctx context.Context, sessionID string) (*models.Session, error) {
	if m.GetSessionFunc != nil {
		return m.GetSessionFunc(ctx, sessionID)
	}
	return nil, models.ErrNotFound
}

func (m *MockAuthService) Logout(ctx context.Context, sessionID string) error {
	if m.LogoutFunc != nil {
		return m.LogoutFunc(ctx, sessionID)
	}
	return nil
}

func (m *MockAuthService) LogoutOtherSessions(ctx context.Context, userID, keepSessionID string) (int64, error) {
	if m.LogoutOtherSessionsFunc != nil {
		return m.LogoutOtherSessionsFunc(ctx, userID, keepSessionID)
	}
	return 0, nil
}

func (m *MockAuthService) SessionCount(ctx context.Context, userID string) (int, error) {
	if m.SessionCountFunc != nil {
		return m.SessionCountFunc(ctx, userID)
	}
	return 1, nil
}

func (m *MockAuthService) StartSignup(ctx context.Context, email string) error {
	if m.StartSignupFunc != nil {
		return m.StartSignupFunc(ctx, email)
	}
	return nil
}

func (m *MockAuthService) CompleteOnboarding(ctx context.Context, input services.OnboardingInput) (*models.User, *models.Session, error) {
	if m.CompleteOnboardingFunc != nil {
		return m.CompleteOnboardingFunc(ctx, input)
	}
	user := newTestUser("user123", input.Username, input.Email)
	return user, newTestSession("session123", user.ID), nil
}

func (m *MockAuthService) ChangePassword(ctx context.Context, userID, currentPassword, newPassword string) error {
	if m.ChangePasswordFunc != nil {
		return m.ChangePasswordFunc(ctx, userID, currentPassword, newPassword)
	}
	return nil
}

// MockVerificationService implements VerificationServiceInterface for
// testing. HasTwoFactorFunc also satisfies the two-factor gate's checker
// interface, so the same mock drives both.
type MockVerificationService struct {
	HasTwoFactorFunc             func(ctx context.Context, userID string) (bool, error)
	StartTwoFactorEnrollmentFunc func(ctx context.Context, userID, email string) (*services.TwoFactorEnrollment, error)
	ConfirmTwoFactorFunc         func(ctx context.Context, userID, code string) error
	ValidateTwoFactorCodeFunc    func(ctx context.Context, userID, code string) error
	DisableTwoFactorFunc         func(ctx context.Context, userID string) error
	ValidateSignupCodeFunc       func(ctx context.Context, email, code string) error
}

func (m *MockVerificationService) HasTwoFactor(ctx context.Context, userID string) (bool, error) {
	if m.HasTwoFactorFunc != nil {
		return m.HasTwoFactorFunc(ctx, userID)
	}
	return false, nil
}

func (m *MockVerificationService) StartTwoFactorEnrollment(ctx context.Context, userID, email string) (*services.TwoFactorEnrollment, error) {
	if m.StartTwoFactorEnrollmentFunc != nil {
		return m.StartTwoFactorEnrollmentFunc(ctx, userID, email)
	}
	return &services.TwoFactorEnrollment{
		Secret:     "TESTSECRET",
		OTPAuthURI: "otpauth://totp/test",
		QRCode:     "data:image/png;base64,AAAA",
	}, nil
}

func (m *MockVerificationService) ConfirmTwoFactor(ctx context.Context, userID, code string) error {
	if m.ConfirmTwoFactorFunc != nil {
		return m.ConfirmTwoFactorFunc(ctx, userID, code)
	}
	return nil
}

func (m *MockVerificationService) ValidateTwoFactorCode(ctx context.Context, userID, code string) error {
	if m.ValidateTwoFactorCodeFunc != nil {
		return m.ValidateTwoFactorCodeFunc(ctx, userID, code)
	}
	return models.ErrInvalidCode
}

func (m *MockVerificationService) DisableTwoFactor(ctx context.Context, userID string) error {
	if m.DisableTwoFactorFunc != nil {
		return m.DisableTwoFactorFunc(ctx, userID)
	}
	return nil
}

func (m *MockVerificationService) ValidateSignupCode(ctx context.Context, email, code string) error {
	if m.ValidateSignupCodeFunc != nil {
		return m.ValidateSignupCodeFunc(ctx, email, code)
	}
	return models.ErrInvalidCode
}

// MockConnectionService implements ConnectionServiceInterface for testing
type MockConnectionService struct {
	ResolveExternalLoginFunc func(ctx context.Context, providerName string, profile *providers.Profile, currentUserID string) (*services.ExternalLoginResult, error)
	ListFunc                 func(ctx context.Context, userID string) ([]*models.Connection, error)
	DisconnectFunc           func(ctx context.Context, userID, connectionID string) error
}

func (m *MockConnectionService) ResolveExternalLogin(ctx context.Context, providerName string, profile *providers.Profile, currentUserID string) (*services.ExternalLoginResult, error) {
	if m.ResolveExternalLoginFunc != nil {
		return m.ResolveExternalLoginFunc(ctx, providerName, profile, currentUserID)
	}
	return &services.ExternalLoginResult{Outcome: services.OutcomeOnboarding, Onboarding: &auth.OnboardingData{
		Email: profile.Email, Username: services.SanitizeUsername(profile.Username), ProviderName: providerName, ProviderID: profile.ID,
	}}, nil
}

func (m *MockConnectionService) List(ctx context.Context, userID string) ([]*models.Connection, error) {
	if m.ListFunc != nil {
		return m.ListFunc(ctx, userID)
	}
	return []*models.Connection{}, nil
}

func (m *MockConnectionService) Disconnect(ctx context.Context, userID, connectionID string) error {
	if m.DisconnectFunc != nil {
		return m.DisconnectFunc(ctx, userID, connectionID)
	}
	return nil
}

// MockNoteService implements NoteServiceInterface for testing
type MockNoteService struct {
	CreateFunc      func(ctx context.Context, ownerID, title, content string) (*models.Note, error)
	GetFunc         func(ctx context.Context, id string) (*models.Note, error)
	ListByOwnerFunc func(ctx context.Context, ownerID string) ([]*models.Note, error)
	UpdateFunc      func(ctx context.Context, id, requesterID, title, content string) (*models.Note, error)
	DeleteFunc      func(ctx context.Context, id, requesterID string) error
	AttachImageFunc func(ctx context.Context, noteID, requesterID, altText, contentType string, data io.Reader) (*models.NoteImage, error)
	OpenImageFunc   func(ctx context.Context, imageID string) (io.ReadCloser, string, error)
	RemoveImageFunc func(ctx context.Context, imageID, requesterID string) error
}

func (m *MockNoteService) Create(ctx context.Context, ownerID, title, content string) (*models.Note, error) {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, ownerID, title, content)
	}
	return &models.Note{ID: "note123", OwnerID: ownerID, Title: title, Content: content}, nil
}

func (m *MockNoteService) Get(ctx context.Context, id string) (*models.Note, error) {
	if m.GetFunc != nil {
		return m.GetFunc(ctx, id)
	}
	return nil, models.ErrNotFound
}

func (m *MockNoteService) ListByOwner(ctx context.Context, ownerID string) ([]*models.Note, error) {
	if m.ListByOwnerFunc != nil {
		return m.ListByOwnerFunc(ctx, ownerID)
	}
	return []*models.Note{}, nil
}

func (m *MockNoteService) Update(ctx context.Context, id, requesterID, title, content string) (*models.Note, error) {
	if m.UpdateFunc != nil {
		return m.UpdateFunc(ctx, id, requesterID, title, content)
	}
	return nil, models.ErrNotFound
}

func (m *MockNoteService) Delete(ctx context.Context, id, requesterID string) error {
	if m.DeleteFunc != nil {
		return m.DeleteFunc(ctx, id, requesterID)
	}
	return nil
}

func (m *MockNoteService) AttachImage(ctx context.Context, noteID, requesterID, altText, contentType string, data io.Reader) (*models.NoteImage, error) {
	if m.AttachImageFunc != nil {
		return m.AttachImageFunc(ctx, noteID, requesterID, altText, contentType, data)
	}
	return &models.NoteImage{ID: "image123", NoteID: noteID, AltText: altText, ContentType: contentType}, nil
}

func (m *MockNoteService) OpenImage(ctx context.Context, imageID string) (io.ReadCloser, string, error) {
	if m.OpenImageFunc != nil {
		return m.OpenImageFunc(ctx, imageID)
	}
	return io.NopCloser(strings.NewReader("png-bytes")), "image/png", nil
}

func (m *MockNoteService) RemoveImage(ctx context.Context, imageID, requesterID string) error {
	if m.RemoveImageFunc != nil {
		return m.RemoveImageFunc(ctx, imageID, requesterID)
	}
	return nil
}

// MockUserService implements UserServiceInterface for testing
type MockUserService struct {
	GetByIDFunc       func(ctx context.Context, id string) (*models.User, error)
	GetByUsernameFunc func(ctx context.Context, username string) (*models.User, error)
	UpdateProfileFunc func(ctx context.Context, userID, username, name string) (*models.User, error)
	HasPasswordFunc   func(ctx context.Context, userID string) (bool, error)
	DeleteAccountFunc func(ctx context.Context, userID string) error
}

func (m *MockUserService) GetByID(ctx context.Context, id string) (*models.User, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, id)
	}
	return nil, models.ErrNotFound
}

func (m *MockUserService) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	if m.GetByUsernameFunc != nil {
		return m.GetByUsernameFunc(ctx, username)
	}
	return nil, models.ErrNotFound
}

func (m *MockUserService) UpdateProfile(ctx context.Context, userID, username, name string) (*models.User, error) {
	if m.UpdateProfileFunc != nil {
		return m.UpdateProfileFunc(ctx, userID, username, name)
	}
	return newTestUser(userID, username, "test@example.com"), nil
}

func (m *MockUserService) HasPassword(ctx context.Context, userID string) (bool, error) {
	if m.HasPasswordFunc != nil {
		return m.HasPasswordFunc(ctx, userID)
	}
	return true, nil
}

func (m *MockUserService) DeleteAccount(ctx context.Context, userID string) error {
	if m.DeleteAccountFunc != nil {
		return m.DeleteAccountFunc(ctx, userID)
	}
	return nil
}

// Test data builders

func newTestUser(id, username, email string) *models.User {
	now := time.Now()
	return &models.User{ID: id, Username: username, Email: email, Name: "Test User", CreatedAt: now, UpdatedAt: now}
}

func newTestSession(id, userID string) *models.Session {
	return &models.Session{ID: id, UserID: userID, ExpirationDate: time.Now().Add(30 * 24 * time.Hour), CreatedAt: time.Now()}
}

// newTestEstablisher wires a real codec and gate over the mock verification
// service, with a two hour freshness window
func newTestEstablisher(verifications *MockVerificationService) (*SessionEstablisher, *auth.Codec) {
	codec := auth.NewCodec(testSessionSecret)
	gate := auth.NewTwoFactorGate(verifications, 2*time.Hour)
	establisher := NewSessionEstablisher(codec, gate, auth.CookieConfig{}, 10*time.Minute, slog.Default())
	return establisher, codec
}

// requestWithUser attaches an authenticated user, session, and decoded
// session payload the way the LoadUser middleware would
func requestWithUser(r *http.Request, user *models.User, session *models.Session, payload *auth.SessionPayload) *http.Request {
	return r.WithContext(auth.WithUser(r.Context(), user, session, payload))
}

// findCookie returns the named Set-Cookie from a recorded response, or nil
func findCookie(cookies []*http.Cookie, name string) *http.Cookie {
	for _, c := range cookies {
		if c.Name == name {
			return c
		}
	}
	return nil
}
