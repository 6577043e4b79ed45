package services

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/saurabhp75/epic-web/internal/models"
	pkglogger "github.com/saurabhp75/epic-web/pkg/logger"
)

// UserService handles profile business logic
type UserService struct {
	users         UserRepository
	verifications VerificationRepository
	logger        *slog.Logger
	auditLogger   *pkglogger.AuditLogger
}

// NewUserService creates a new UserService
func NewUserService(users UserRepository, verifications VerificationRepository, logger *slog.Logger, auditLogger *pkglogger.AuditLogger) *UserService {
	return &UserService{
		users:         users,
		verifications: verifications,
		logger:        logger,
		auditLogger:   auditLogger,
	}
}

// GetByID returns a user by id
func (s *UserService) GetByID(ctx context.Context, id string) (*models.User, error) {
	return s.users.GetByID(ctx, id)
}

// GetByUsername returns a user by username, for public profile pages
func (s *UserService) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	return s.users.GetByUsername(ctx, strings.ToLower(strings.TrimSpace(username)))
}

// UpdateProfile changes a user's username and display name
func (s *UserService) UpdateProfile(ctx context.Context, userID, username, name string) (*models.User, error) {
	username = strings.ToLower(strings.TrimSpace(username))
	name = strings.TrimSpace(name)

	if err := ValidateUsername(username); err != nil {
		return nil, err
	}

	updated, err := s.users.Update(ctx, userID, &models.User{
		Username: username,
		Name:     name,
	})
	if err != nil {
		if errors.Is(err, models.ErrConflict) {
			return nil, models.ErrConflict
		}
		if errors.Is(err, models.ErrNotFound) {
			return nil, models.ErrNotFound
		}
		s.logger.Error("failed to update profile", slog.String("user_id", userID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	s.logger.Info("profile updated", slog.String("user_id", userID))
	return updated, nil
}

// HasPassword reports whether the account has a password set. OAuth-only
// accounts do not.
func (s *UserService) HasPassword(ctx context.Context, userID string) (bool, error) {
	_, err := s.users.GetPassword(ctx, userID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return false, nil
		}
		s.logger.Error("failed to check password", slog.String("user_id", userID), slog.Any("error", err))
		return false, models.ErrInternalServer
	}
	return true, nil
}

// DeleteAccount removes the user and everything hanging off the account.
// Sessions, passwords, connections, and notes go with it via foreign keys.
// Verification records key on the user id as plain text, so those are cleaned
// up explicitly.
func (s *UserService) DeleteAccount(ctx context.Context, userID string) error {
	for _, vtype := range []string{models.VerificationTypeTwoFA, models.VerificationTypeTwoFAVerify} {
		if err := s.verifications.DeleteByTargetAndType(ctx, userID, vtype); err != nil && !errors.Is(err, models.ErrNotFound) {
			s.logger.Error("failed to delete verifications", slog.String("user_id", userID), slog.Any("error", err))
			return models.ErrInternalServer
		}
	}

	if err := s.users.Delete(ctx, userID); err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return models.ErrNotFound
		}
		s.logger.Error("failed to delete account", slog.String("user_id", userID), slog.Any("error", err))
		return models.ErrInternalServer
	}

	s.logger.Info("account deleted", slog.String("user_id", userID))
	s.auditLogger.LogAuthEvent(pkglogger.AuditEvent{
		EventType: "account_deleted",
		UserID:    userID,
		Success:   true,
	})
	return nil
}
