package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/saurabhp75/epic-web/internal/auth"
	"github.com/saurabhp75/epic-web/internal/metrics"
	"github.com/saurabhp75/epic-web/internal/models"
	"github.com/saurabhp75/epic-web/internal/providers"
	pkglogger "github.com/saurabhp75/epic-web/pkg/logger"
)

// ConnectionRepository defines the interface for provider connection storage
type ConnectionRepository interface {
	Create(ctx context.Context, conn *models.Connection) (*models.Connection, error)
	GetByProvider(ctx context.Context, providerName, providerID string) (*models.Connection, error)
	ListByUser(ctx context.Context, userID string) ([]*models.Connection, error)
	Delete(ctx context.Context, id, userID string) error
	UserCanDisconnect(ctx context.Context, userID string) (bool, error)
}

// ExternalLoginOutcome tags what a completed provider handshake resolved to
type ExternalLoginOutcome string

const (
	// OutcomeConflict means the external identity is already bound and the
	// handshake cannot proceed. Message explains to whom.
	OutcomeConflict ExternalLoginOutcome = "conflict"
	// OutcomeLinkedToCurrent means the identity was bound to the logged-in user
	OutcomeLinkedToCurrent ExternalLoginOutcome = "linked_to_current"
	// OutcomeLogin means an existing binding identified the user to log in
	OutcomeLogin ExternalLoginOutcome = "login"
	// OutcomeImplicitLink means a matching verified email bound the identity
	// to an existing account and logs that account in
	OutcomeImplicitLink ExternalLoginOutcome = "implicit_link"
	// OutcomeOnboarding means no account matched; the visitor proceeds to
	// signup with provider data prefilled
	OutcomeOnboarding ExternalLoginOutcome = "onboarding"
)

// ExternalLoginResult is the resolved next step after a provider handshake
type ExternalLoginResult struct {
	Outcome ExternalLoginOutcome
	// UserID is the account to log in, set for OutcomeLogin, OutcomeImplicitLink,
	// and OutcomeLinkedToCurrent.
	UserID string
	// Message is a user-facing notice, set for OutcomeConflict.
	Message string
	// Onboarding carries the prefill data, set for OutcomeOnboarding.
	Onboarding *auth.OnboardingData
}

// ConnectionService resolves provider identities against local accounts and
// manages a user's connections
type ConnectionService struct {
	connections ConnectionRepository
	users       UserRepository
	logger      *slog.Logger
	auditLogger *pkglogger.AuditLogger
}

// NewConnectionService creates a new ConnectionService
func NewConnectionService(connections ConnectionRepository, users UserRepository, logger *slog.Logger, auditLogger *pkglogger.AuditLogger) *ConnectionService {
	return &ConnectionService{
		connections: connections,
		users:       users,
		logger:      logger,
		auditLogger: auditLogger,
	}
}

// ResolveExternalLogin decides what a completed provider handshake means.
// currentUserID is the logged-in user, or empty for an anonymous visitor.
// Exactly one outcome applies:
//
//   - identity bound, viewer logged in: conflict (to self or another account)
//   - identity unbound, viewer logged in: bind it to the viewer
//   - identity bound, anonymous: log in as the bound account
//   - identity unbound, anonymous, email matches an account: bind and log in
//   - otherwise: onboarding with provider data prefilled
func (s *ConnectionService) ResolveExternalLogin(ctx context.Context, providerName string, profile *providers.Profile, currentUserID string) (*ExternalLoginResult, error) {
	existing, err := s.connections.GetByProvider(ctx, providerName, profile.ID)
	if err != nil && !errors.Is(err, models.ErrNotFound) {
		s.logger.Error("failed to look up connection", slog.String("provider", providerName), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}
	bound := err == nil

	var result *ExternalLoginResult
	switch {
	case currentUserID != "" && bound:
		message := fmt.Sprintf("Your %q account is already connected to another account.", providerName)
		if existing.UserID == currentUserID {
			message = fmt.Sprintf("Your %q account is already connected.", providerName)
		}
		result = &ExternalLoginResult{Outcome: OutcomeConflict, Message: message}

	case currentUserID != "":
		if _, err := s.connections.Create(ctx, &models.Connection{
			ProviderName: providerName,
			ProviderID:   profile.ID,
			UserID:       currentUserID,
		}); err != nil {
			if errors.Is(err, models.ErrConflict) {
				// Raced with another bind of the same identity
				return nil, models.ErrAlreadyConnected
			}
			s.logger.Error("failed to create connection", slog.String("user_id", currentUserID), slog.Any("error", err))
			return nil, models.ErrInternalServer
		}
		result = &ExternalLoginResult{Outcome: OutcomeLinkedToCurrent, UserID: currentUserID}

	case bound:
		result = &ExternalLoginResult{Outcome: OutcomeLogin, UserID: existing.UserID}

	default:
		result, err = s.resolveAnonymousUnbound(ctx, providerName, profile)
		if err != nil {
			return nil, err
		}
	}

	metrics.ExternalLoginOutcomesTotal.WithLabelValues(providerName, string(result.Outcome)).Inc()
	s.auditLogger.LogAuthEvent(pkglogger.AuditEvent{
		EventType: "external_login_" + string(result.Outcome),
		UserID:    result.UserID,
		Provider:  providerName,
		Success:   result.Outcome != OutcomeConflict,
	})
	return result, nil
}

func (s *ConnectionService) resolveAnonymousUnbound(ctx context.Context, providerName string, profile *providers.Profile) (*ExternalLoginResult, error) {
	// The provider vouched for this email, so a matching account can adopt
	// the identity without an extra proof step.
	user, err := s.users.GetByEmail(ctx, strings.ToLower(profile.Email))
	if err == nil {
		if _, err := s.connections.Create(ctx, &models.Connection{
			ProviderName: providerName,
			ProviderID:   profile.ID,
			UserID:       user.ID,
		}); err != nil && !errors.Is(err, models.ErrConflict) {
			s.logger.Error("failed to create implicit connection", slog.String("user_id", user.ID), slog.Any("error", err))
			return nil, models.ErrInternalServer
		}
		return &ExternalLoginResult{Outcome: OutcomeImplicitLink, UserID: user.ID}, nil
	}
	if !errors.Is(err, models.ErrNotFound) {
		s.logger.Error("failed to look up user by email", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	return &ExternalLoginResult{
		Outcome: OutcomeOnboarding,
		Onboarding: &auth.OnboardingData{
			Email:        strings.ToLower(profile.Email),
			Username:     SanitizeUsername(profile.Username),
			Name:         profile.Name,
			ProviderName: providerName,
			ProviderID:   profile.ID,
		},
	}, nil
}

// List returns the user's provider connections
func (s *ConnectionService) List(ctx context.Context, userID string) ([]*models.Connection, error) {
	conns, err := s.connections.ListByUser(ctx, userID)
	if err != nil {
		s.logger.Error("failed to list connections", slog.String("user_id", userID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}
	return conns, nil
}

// Disconnect removes a connection. It refuses when the connection is the
// user's only way to log in.
func (s *ConnectionService) Disconnect(ctx context.Context, userID, connectionID string) error {
	canDisconnect, err := s.connections.UserCanDisconnect(ctx, userID)
	if err != nil {
		s.logger.Error("failed to check disconnect safety", slog.String("user_id", userID), slog.Any("error", err))
		return models.ErrInternalServer
	}
	if !canDisconnect {
		return fmt.Errorf("%w: this connection is your only way to sign in", models.ErrForbidden)
	}

	if err := s.connections.Delete(ctx, connectionID, userID); err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return models.ErrNotFound
		}
		s.logger.Error("failed to delete connection", slog.String("user_id", userID), slog.Any("error", err))
		return models.ErrInternalServer
	}

	s.logger.Info("connection removed", slog.String("user_id", userID))
	return nil
}

// SanitizeUsername turns an arbitrary external username into one matching the
// local format: lowercase, characters outside [a-z0-9_] replaced with
// underscores, truncated to 20 and padded with underscores to 3.
func SanitizeUsername(username string) string {
	lowered := strings.ToLower(username)
	var b strings.Builder
	for _, r := range lowered {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '_' {
			b.WriteRune(r)
		} else {
			b.WriteRune('_')
		}
		if b.Len() >= 20 {
			break
		}
	}
	result := b.String()
	for len(result) < 3 {
		result += "_"
	}
	return result
}
