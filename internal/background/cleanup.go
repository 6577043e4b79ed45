package background

import (
	"context"
	"log/slog"
	"time"

	"github.com/saurabhp75/epic-web/internal/repositories"
)

// CleanupManager periodically removes expired sessions and verification
// records from the database
type CleanupManager struct {
	sessions      *repositories.SessionRepository
	verifications *repositories.VerificationRepository
	logger        *slog.Logger
	interval      time.Duration
	stopCh        chan struct{}
}

// NewCleanupManager creates a new cleanup manager
func NewCleanupManager(
	sessions *repositories.SessionRepository,
	verifications *repositories.VerificationRepository,
	logger *slog.Logger,
	interval time.Duration,
) *CleanupManager {
	return &CleanupManager{
		sessions:      sessions,
		verifications: verifications,
		logger:        logger,
		interval:      interval,
		stopCh:        make(chan struct{}),
	}
}

// Start begins the periodic cleanup task
func (cm *CleanupManager) Start(ctx context.Context) {
	ticker := time.NewTicker(cm.interval)
	defer ticker.Stop()

	// Run immediately on startup
	cm.runCleanup(ctx)

	for {
		select {
		case <-ticker.C:
			cm.runCleanup(ctx)
		case <-cm.stopCh:
			cm.logger.Info("cleanup manager stopped")
			return
		case <-ctx.Done():
			cm.logger.Info("cleanup manager context cancelled")
			return
		}
	}
}

func (cm *CleanupManager) runCleanup(ctx context.Context) {
	cm.logger.Info("starting expired record cleanup")

	cleanupCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	sessionsDeleted, err := cm.sessions.CleanupExpired(cleanupCtx)
	if err != nil {
		cm.logger.Error("failed to cleanup expired sessions", slog.Any("error", err))
	} else if sessionsDeleted > 0 {
		cm.logger.Info("expired session cleanup completed", slog.Int64("rows_deleted", sessionsDeleted))
	}

	verificationsDeleted, err := cm.verifications.CleanupExpired(cleanupCtx)
	if err != nil {
		cm.logger.Error("failed to cleanup expired verifications", slog.Any("error", err))
	} else if verificationsDeleted > 0 {
		cm.logger.Info("expired verification cleanup completed", slog.Int64("rows_deleted", verificationsDeleted))
	}
}

// Stop signals the cleanup manager to stop
func (cm *CleanupManager) Stop() {
	close(cm.stopCh)
}
