package services

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/saurabhp75/epic-web/internal/auth"
	"github.com/saurabhp75/epic-web/internal/models"
)

// VerificationRepository defines the interface for one-time verification records
type VerificationRepository interface {
	Upsert(ctx context.Context, v *models.Verification) (*models.Verification, error)
	GetByTargetAndType(ctx context.Context, target, vtype string) (*models.Verification, error)
	DeleteByTargetAndType(ctx context.Context, target, vtype string) error
	Promote(ctx context.Context, target, fromType, toType string) error
}

// TwoFactorEnrollment is returned when a user starts enrolling an authenticator
type TwoFactorEnrollment struct {
	Secret     string `json:"secret"`
	OTPAuthURI string `json:"otp_auth_uri"`
	QRCode     string `json:"qr_code"` // data URL, inlineable in an <img>
}

// VerificationService manages TOTP-backed verifications: two-factor
// enrollment and challenges, and the short-lived codes emailed during signup.
type VerificationService struct {
	repo    VerificationRepository
	totp    *auth.TOTPManager
	codeTTL time.Duration
	logger  *slog.Logger
}

// NewVerificationService creates a new VerificationService
func NewVerificationService(repo VerificationRepository, totp *auth.TOTPManager, codeTTL time.Duration, logger *slog.Logger) *VerificationService {
	return &VerificationService{
		repo:    repo,
		totp:    totp,
		codeTTL: codeTTL,
		logger:  logger,
	}
}

// HasTwoFactor reports whether the user has a confirmed authenticator.
// Only the "2fa" record counts; a pending "2fa-verify" record does not.
func (s *VerificationService) HasTwoFactor(ctx context.Context, userID string) (bool, error) {
	_, err := s.repo.GetByTargetAndType(ctx, userID, models.VerificationTypeTwoFA)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// StartTwoFactorEnrollment creates (or replaces) the user's pending
// authenticator secret and returns what the user needs to configure their app.
// The secret stays in the unconfirmed "2fa-verify" state until a valid code
// proves the authenticator works.
func (s *VerificationService) StartTwoFactorEnrollment(ctx context.Context, userID, email string) (*TwoFactorEnrollment, error) {
	algorithm, digits, period := auth.TwoFactorDefaults()

	secret, err := s.totp.GenerateSecret(email, digits, period)
	if err != nil {
		s.logger.Error("failed to generate authenticator secret", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	verification := &models.Verification{
		Type:      models.VerificationTypeTwoFAVerify,
		Target:    userID,
		Secret:    secret,
		Algorithm: algorithm,
		Digits:    digits,
		Period:    period,
	}

	created, err := s.repo.Upsert(ctx, verification)
	if err != nil {
		s.logger.Error("failed to store pending authenticator", slog.String("user_id", userID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	uri := s.totp.ProvisioningURI(created, email)
	qr, err := s.totp.QRCodeDataURL(uri)
	if err != nil {
		s.logger.Error("failed to render QR code", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	return &TwoFactorEnrollment{
		Secret:     created.Secret,
		OTPAuthURI: uri,
		QRCode:     qr,
	}, nil
}

// ConfirmTwoFactor validates a code against the pending authenticator and, on
// success, promotes it to the confirmed "2fa" state. The confirmed record
// never expires.
func (s *VerificationService) ConfirmTwoFactor(ctx context.Context, userID, code string) error {
	ok, err := s.validateAgainst(ctx, userID, models.VerificationTypeTwoFAVerify, code)
	if err != nil {
		return err
	}
	if !ok {
		return models.ErrInvalidCode
	}

	if err := s.repo.Promote(ctx, userID, models.VerificationTypeTwoFAVerify, models.VerificationTypeTwoFA); err != nil {
		s.logger.Error("failed to promote authenticator", slog.String("user_id", userID), slog.Any("error", err))
		return models.ErrInternalServer
	}

	s.logger.Info("two-factor enabled", slog.String("user_id", userID))
	return nil
}

// ValidateTwoFactorCode checks a challenge code against the user's confirmed
// authenticator
func (s *VerificationService) ValidateTwoFactorCode(ctx context.Context, userID, code string) error {
	ok, err := s.validateAgainst(ctx, userID, models.VerificationTypeTwoFA, code)
	if err != nil {
		return err
	}
	if !ok {
		return models.ErrInvalidCode
	}
	return nil
}

// DisableTwoFactor removes the user's confirmed authenticator
func (s *VerificationService) DisableTwoFactor(ctx context.Context, userID string) error {
	if err := s.repo.DeleteByTargetAndType(ctx, userID, models.VerificationTypeTwoFA); err != nil && !errors.Is(err, models.ErrNotFound) {
		s.logger.Error("failed to disable two-factor", slog.String("user_id", userID), slog.Any("error", err))
		return models.ErrInternalServer
	}
	s.logger.Info("two-factor disabled", slog.String("user_id", userID))
	return nil
}

// IssueSignupCode creates a short-lived code for an email address starting
// signup and returns the code to send. The verification targets the email, not
// a user id, since no account exists yet.
func (s *VerificationService) IssueSignupCode(ctx context.Context, email string) (code string, expiresAt time.Time, err error) {
	algorithm, digits, _ := auth.TwoFactorDefaults()
	// The code must stay valid for the whole email round trip, so the TOTP
	// period is stretched to the code's lifetime.
	period := int(s.codeTTL.Seconds())

	secret, err := s.totp.GenerateSecret(email, digits, period)
	if err != nil {
		s.logger.Error("failed to generate signup code secret", slog.Any("error", err))
		return "", time.Time{}, models.ErrInternalServer
	}

	expiresAt = time.Now().Add(s.codeTTL)
	verification := &models.Verification{
		Type:      models.VerificationTypeOnboarding,
		Target:    email,
		Secret:    secret,
		Algorithm: algorithm,
		Digits:    digits,
		Period:    period,
		ExpiresAt: &expiresAt,
	}

	created, err := s.repo.Upsert(ctx, verification)
	if err != nil {
		s.logger.Error("failed to store signup verification", slog.Any("error", err))
		return "", time.Time{}, models.ErrInternalServer
	}

	code, err = s.totp.GenerateCode(created, time.Now())
	if err != nil {
		s.logger.Error("failed to generate signup code", slog.Any("error", err))
		return "", time.Time{}, models.ErrInternalServer
	}

	return code, expiresAt, nil
}

// ValidateSignupCode checks a signup code for an email address and consumes
// the verification on success
func (s *VerificationService) ValidateSignupCode(ctx context.Context, email, code string) error {
	ok, err := s.validateAgainst(ctx, email, models.VerificationTypeOnboarding, code)
	if err != nil {
		return err
	}
	if !ok {
		return models.ErrInvalidCode
	}

	if err := s.repo.DeleteByTargetAndType(ctx, email, models.VerificationTypeOnboarding); err != nil && !errors.Is(err, models.ErrNotFound) {
		s.logger.Error("failed to consume signup verification", slog.Any("error", err))
		return models.ErrInternalServer
	}
	return nil
}

func (s *VerificationService) validateAgainst(ctx context.Context, target, vtype, code string) (bool, error) {
	verification, err := s.repo.GetByTargetAndType(ctx, target, vtype)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return false, models.ErrInvalidCode
		}
		s.logger.Error("failed to load verification", slog.String("type", vtype), slog.Any("error", err))
		return false, models.ErrInternalServer
	}

	ok, err := s.totp.ValidateCode(code, verification)
	if err != nil {
		s.logger.Error("failed to validate code", slog.String("type", vtype), slog.Any("error", err))
		return false, models.ErrInternalServer
	}
	return ok, nil
}
