package services

import (
	"context"
	"errors"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/saurabhp75/epic-web/internal/metrics"
	"github.com/saurabhp75/epic-web/internal/models"
	pkgauth "github.com/saurabhp75/epic-web/pkg/auth"
	pkglogger "github.com/saurabhp75/epic-web/pkg/logger"
)

// UserRepository defines the interface for user storage
type UserRepository interface {
	GetByID(ctx context.Context, id string) (*models.User, error)
	GetByUsername(ctx context.Context, username string) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	Create(ctx context.Context, user *models.User) (*models.User, error)
	CreateWithCredentials(ctx context.Context, user *models.User, passwordHash string, conn *models.Connection) (*models.User, error)
	Update(ctx context.Context, id string, user *models.User) (*models.User, error)
	Delete(ctx context.Context, id string) error
	GetPassword(ctx context.Context, userID string) (*models.Password, error)
	UpsertPassword(ctx context.Context, userID, hash string) error
}

// SessionRepository defines the interface for session storage
type SessionRepository interface {
	Create(ctx context.Context, userID string, expirationDate time.Time) (*models.Session, error)
	GetByID(ctx context.Context, id string) (*models.Session, error)
	Delete(ctx context.Context, id string) error
	DeleteOtherSessions(ctx context.Context, userID, keepID string) (int64, error)
	CountByUser(ctx context.Context, userID string) (int, error)
}

// TimingDelayer pads failed authentication attempts so response time does not
// reveal which step rejected them
type TimingDelayer interface {
	Wait(success bool)
}

var usernameRegex = regexp.MustCompile(`^[a-z0-9_]{3,20}$`)

// ValidateUsername checks a username against the allowed format
func ValidateUsername(username string) error {
	if !usernameRegex.MatchString(username) {
		return errors.New("username must be 3-20 characters and contain only lowercase letters, digits, and underscores")
	}
	return nil
}

// OnboardingInput is the profile a new user submits to finish signup. Provider
// fields are set only when the account originates from an OAuth handshake.
type OnboardingInput struct {
	Email        string
	Username     string
	Name         string
	Password     string // Empty for OAuth-originated accounts
	ProviderName string
	ProviderID   string
}

// AuthService handles credential verification and session lifecycle
type AuthService struct {
	users         UserRepository
	sessions      SessionRepository
	verifications *VerificationService
	email         EmailService
	timing        TimingDelayer
	sessionExpiry time.Duration
	logger        *slog.Logger
	auditLogger   *pkglogger.AuditLogger
}

// NewAuthService creates a new AuthService
func NewAuthService(users UserRepository, sessions SessionRepository, verifications *VerificationService, email EmailService, timing TimingDelayer, sessionExpiry time.Duration, logger *slog.Logger, auditLogger *pkglogger.AuditLogger) *AuthService {
	return &AuthService{
		users:         users,
		sessions:      sessions,
		verifications: verifications,
		email:         email,
		timing:        timing,
		sessionExpiry: sessionExpiry,
		logger:        logger,
		auditLogger:   auditLogger,
	}
}

// Login verifies a username and password and creates a session record. The
// caller decides whether the session becomes a cookie immediately or waits
// behind a two-factor challenge. Failures return ErrInvalidCredentials without
// distinguishing unknown users from wrong passwords, and are padded by the
// timing delay.
func (s *AuthService) Login(ctx context.Context, username, password string) (*models.User, *models.Session, error) {
	username = strings.ToLower(strings.TrimSpace(username))

	user, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			// Burn a hash comparison so unknown usernames cost the same
			// as wrong passwords.
			_ = pkgauth.ComparePassword("$2a$12$C6UzMDM.H6dfI/f/IKcEeO7leSHBlON4UsqBX5lmuQOtLV0PFWXeq", password)
			s.failLogin("", "invalid_credentials")
			return nil, nil, models.ErrInvalidCredentials
		}
		s.logger.Error("failed to get user by username", slog.Any("error", err))
		return nil, nil, models.ErrInternalServer
	}

	credentials, err := s.users.GetPassword(ctx, user.ID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			// OAuth-only account, no password row
			s.failLogin(user.ID, "no_password")
			return nil, nil, models.ErrInvalidCredentials
		}
		s.logger.Error("failed to get password", slog.String("user_id", user.ID), slog.Any("error", err))
		return nil, nil, models.ErrInternalServer
	}

	if err := pkgauth.ComparePassword(credentials.Hash, password); err != nil {
		s.failLogin(user.ID, "invalid_credentials")
		return nil, nil, models.ErrInvalidCredentials
	}

	session, err := s.sessions.Create(ctx, user.ID, time.Now().Add(s.sessionExpiry))
	if err != nil {
		s.logger.Error("failed to create session", slog.String("user_id", user.ID), slog.Any("error", err))
		return nil, nil, models.ErrInternalServer
	}

	s.timing.Wait(true)
	metrics.LoginAttemptsTotal.WithLabelValues("success").Inc()
	s.logger.Info("user logged in", slog.String("user_id", user.ID))
	s.auditLogger.LogAuthEvent(pkglogger.AuditEvent{
		EventType: "login_success",
		UserID:    user.ID,
		Success:   true,
	})

	return user, session, nil
}

func (s *AuthService) failLogin(userID, reason string) {
	s.timing.Wait(false)
	metrics.LoginAttemptsTotal.WithLabelValues("failure").Inc()
	s.logger.Info("login failed: invalid credentials")
	s.auditLogger.LogAuthEvent(pkglogger.AuditEvent{
		EventType:     "login_failed",
		UserID:        userID,
		FailureReason: reason,
		Success:       false,
	})
}

// NewSession creates a session record for an already-authenticated user, such
// as after an OAuth login or onboarding
func (s *AuthService) NewSession(ctx context.Context, userID string) (*models.Session, error) {
	session, err := s.sessions.Create(ctx, userID, time.Now().Add(s.sessionExpiry))
	if err != nil {
		s.logger.Error("failed to create session", slog.String("user_id", userID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}
	return session, nil
}

// GetSession loads a session record by id
func (s *AuthService) GetSession(ctx context.Context, sessionID string) (*models.Session, error) {
	session, err := s.sessions.GetByID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, models.ErrInvalidSession
		}
		return nil, err
	}
	if session.IsExpired() {
		return nil, models.ErrInvalidSession
	}
	return session, nil
}

// Logout deletes the session record. Missing sessions are not an error; the
// cookie is cleared either way.
func (s *AuthService) Logout(ctx context.Context, sessionID string) error {
	if err := s.sessions.Delete(ctx, sessionID); err != nil && !errors.Is(err, models.ErrNotFound) {
		s.logger.Error("failed to delete session", slog.Any("error", err))
		return models.ErrInternalServer
	}
	return nil
}

// LogoutOtherSessions deletes every session for the user except the current
// one and returns how many were removed
func (s *AuthService) LogoutOtherSessions(ctx context.Context, userID, keepSessionID string) (int64, error) {
	deleted, err := s.sessions.DeleteOtherSessions(ctx, userID, keepSessionID)
	if err != nil {
		s.logger.Error("failed to delete other sessions", slog.String("user_id", userID), slog.Any("error", err))
		return 0, models.ErrInternalServer
	}
	s.logger.Info("other sessions logged out", slog.String("user_id", userID), slog.Int64("count", deleted))
	return deleted, nil
}

// SessionCount returns the number of live sessions the user has
func (s *AuthService) SessionCount(ctx context.Context, userID string) (int, error) {
	return s.sessions.CountByUser(ctx, userID)
}

// StartSignup begins email-first signup: it rejects addresses that already
// have an account, then issues a short-lived code and emails it
func (s *AuthService) StartSignup(ctx context.Context, email string) error {
	email = strings.ToLower(strings.TrimSpace(email))

	_, err := s.users.GetByEmail(ctx, email)
	if err == nil {
		s.logger.Info("signup attempted for existing account")
		return models.ErrConflict
	}
	if !errors.Is(err, models.ErrNotFound) {
		s.logger.Error("failed to check existing email", slog.Any("error", err))
		return models.ErrInternalServer
	}

	code, expiresAt, err := s.verifications.IssueSignupCode(ctx, email)
	if err != nil {
		return err
	}

	if err := s.email.SendSignupCode(ctx, email, code, expiresAt); err != nil {
		return models.ErrInternalServer
	}

	s.logger.Info("signup code issued", slog.String("email", pkglogger.SanitizedEmail(email)))
	return nil
}

// CompleteOnboarding creates the account a verified visitor described and logs
// them in. The email must already have been proven, either by a signup code or
// by the OAuth provider. Password and provider connection are created in the
// same transaction as the user.
func (s *AuthService) CompleteOnboarding(ctx context.Context, input OnboardingInput) (*models.User, *models.Session, error) {
	input.Email = strings.ToLower(strings.TrimSpace(input.Email))
	input.Username = strings.ToLower(strings.TrimSpace(input.Username))
	input.Name = strings.TrimSpace(input.Name)

	if err := ValidateUsername(input.Username); err != nil {
		return nil, nil, err
	}

	var passwordHash string
	if input.ProviderName == "" {
		if err := pkgauth.ValidatePassword(input.Password); err != nil {
			return nil, nil, err
		}
		hash, err := pkgauth.HashPassword(input.Password)
		if err != nil {
			s.logger.Error("failed to hash password", slog.Any("error", err))
			return nil, nil, models.ErrInternalServer
		}
		passwordHash = hash
	}

	user := &models.User{
		Email:    input.Email,
		Username: input.Username,
		Name:     input.Name,
	}

	var conn *models.Connection
	if input.ProviderName != "" {
		conn = &models.Connection{
			ProviderName: input.ProviderName,
			ProviderID:   input.ProviderID,
		}
	}

	created, err := s.users.CreateWithCredentials(ctx, user, passwordHash, conn)
	if err != nil {
		if errors.Is(err, models.ErrConflict) {
			return nil, nil, models.ErrConflict
		}
		s.logger.Error("failed to create user", slog.Any("error", err))
		return nil, nil, models.ErrInternalServer
	}

	session, err := s.sessions.Create(ctx, created.ID, time.Now().Add(s.sessionExpiry))
	if err != nil {
		s.logger.Error("failed to create session", slog.String("user_id", created.ID), slog.Any("error", err))
		return nil, nil, models.ErrInternalServer
	}

	s.logger.Info("user onboarded", slog.String("user_id", created.ID))
	s.auditLogger.LogAuthEvent(pkglogger.AuditEvent{
		EventType: "user_registered",
		UserID:    created.ID,
		Provider:  input.ProviderName,
		Success:   true,
	})

	return created, session, nil
}

// ChangePassword verifies the current password and replaces it. Accounts
// without a password (OAuth-only) can set one without a current password.
func (s *AuthService) ChangePassword(ctx context.Context, userID, currentPassword, newPassword string) error {
	credentials, err := s.users.GetPassword(ctx, userID)
	switch {
	case err == nil:
		if err := pkgauth.ComparePassword(credentials.Hash, currentPassword); err != nil {
			return models.ErrInvalidCredentials
		}
	case errors.Is(err, models.ErrNotFound):
		// No existing password to verify
	default:
		s.logger.Error("failed to get password", slog.String("user_id", userID), slog.Any("error", err))
		return models.ErrInternalServer
	}

	if err := pkgauth.ValidatePassword(newPassword); err != nil {
		return err
	}

	hash, err := pkgauth.HashPassword(newPassword)
	if err != nil {
		s.logger.Error("failed to hash password", slog.Any("error", err))
		return models.ErrInternalServer
	}

	if err := s.users.UpsertPassword(ctx, userID, hash); err != nil {
		s.logger.Error("failed to update password", slog.String("user_id", userID), slog.Any("error", err))
		return models.ErrInternalServer
	}

	s.logger.Info("password changed", slog.String("user_id", userID))
	s.auditLogger.LogAuthEvent(pkglogger.AuditEvent{
		EventType: "password_changed",
		UserID:    userID,
		Success:   true,
	})
	return nil
}
