package repositories

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/saurabhp75/epic-web/internal/database"
	"github.com/saurabhp75/epic-web/internal/models"
)

type SessionRepository struct {
	db *database.DB
}

func NewSessionRepository(db *database.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

func (r *SessionRepository) Create(ctx context.Context, userID string, expirationDate time.Time) (*models.Session, error) {
	session := &models.Session{
		ID:             uuid.New().String(),
		UserID:         userID,
		ExpirationDate: expirationDate,
		CreatedAt:      time.Now(),
	}

	query := `
		INSERT INTO sessions (id, user_id, expiration_date, created_at)
		VALUES ($1, $2, $3, $4)`

	if _, err := r.db.Pool.Exec(ctx, query,
		session.ID, session.UserID, session.ExpirationDate, session.CreatedAt,
	); err != nil {
		return nil, database.MapPostgresError(err)
	}

	return session, nil
}

func (r *SessionRepository) GetByID(ctx context.Context, id string) (*models.Session, error) {
	query := `
		SELECT id, user_id, expiration_date, created_at
		FROM sessions WHERE id = $1`

	var session models.Session
	err := r.db.Pool.QueryRow(ctx, query, id).Scan(
		&session.ID, &session.UserID, &session.ExpirationDate, &session.CreatedAt,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}

	return &session, nil
}

func (r *SessionRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.Pool.Exec(ctx, `DELETE FROM sessions WHERE id = $1`, id)
	if err != nil {
		return database.MapPostgresError(err)
	}

	if result.RowsAffected() == 0 {
		return models.ErrNotFound
	}

	return nil
}

// DeleteOtherSessions removes every session belonging to the user except
// the one identified by keepID. Returns the number of sessions removed.
func (r *SessionRepository) DeleteOtherSessions(ctx context.Context, userID, keepID string) (int64, error) {
	query := `DELETE FROM sessions WHERE user_id = $1 AND id <> $2`

	result, err := r.db.Pool.Exec(ctx, query, userID, keepID)
	if err != nil {
		return 0, database.MapPostgresError(err)
	}

	return result.RowsAffected(), nil
}

func (r *SessionRepository) CountByUser(ctx context.Context, userID string) (int, error) {
	query := `SELECT COUNT(*) FROM sessions WHERE user_id = $1 AND expiration_date > now()`

	var count int
	if err := r.db.Pool.QueryRow(ctx, query, userID).Scan(&count); err != nil {
		return 0, database.MapPostgresError(err)
	}

	return count, nil
}

// CleanupExpired removes sessions past their expiration date
func (r *SessionRepository) CleanupExpired(ctx context.Context) (int64, error) {
	result, err := r.db.Pool.Exec(ctx, `DELETE FROM sessions WHERE expiration_date <= now()`)
	if err != nil {
		return 0, database.MapPostgresError(err)
	}

	return result.RowsAffected(), nil
}
