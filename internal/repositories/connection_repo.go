package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/saurabhp75/epic-web/internal/database"
	"github.com/saurabhp75/epic-web/internal/models"
)

type ConnectionRepository struct {
	db *database.DB
}

func NewConnectionRepository(db *database.DB) *ConnectionRepository {
	return &ConnectionRepository{db: db}
}

const connectionColumns = `id, provider_name, provider_id, user_id, created_at`

func scanConnectionRow(scanner rowScanner) (*models.Connection, error) {
	var conn models.Connection
	err := scanner.Scan(
		&conn.ID, &conn.ProviderName, &conn.ProviderID, &conn.UserID, &conn.CreatedAt,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}
	return &conn, nil
}

func (r *ConnectionRepository) Create(ctx context.Context, conn *models.Connection) (*models.Connection, error) {
	conn.ID = uuid.New().String()
	conn.CreatedAt = time.Now()

	query := `
		INSERT INTO connections (id, provider_name, provider_id, user_id, created_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING ` + connectionColumns

	return scanConnectionRow(r.db.Pool.QueryRow(ctx, query,
		conn.ID, conn.ProviderName, conn.ProviderID, conn.UserID, conn.CreatedAt,
	))
}

// GetByProvider looks up the connection for an external identity.
// The unique constraint on (provider_name, provider_id) guarantees at
// most one row.
func (r *ConnectionRepository) GetByProvider(ctx context.Context, providerName, providerID string) (*models.Connection, error) {
	query := `SELECT ` + connectionColumns + `
		FROM connections WHERE provider_name = $1 AND provider_id = $2`
	return scanConnectionRow(r.db.Pool.QueryRow(ctx, query, providerName, providerID))
}

func (r *ConnectionRepository) ListByUser(ctx context.Context, userID string) ([]*models.Connection, error) {
	query := `SELECT ` + connectionColumns + `
		FROM connections WHERE user_id = $1 ORDER BY created_at`

	rows, err := r.db.Pool.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query connections: %w", err)
	}
	defer rows.Close()

	connections := make([]*models.Connection, 0)
	for rows.Next() {
		conn, err := scanConnectionRow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan connection: %w", err)
		}
		connections = append(connections, conn)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return connections, nil
}

// Delete removes a connection owned by the given user
func (r *ConnectionRepository) Delete(ctx context.Context, id, userID string) error {
	result, err := r.db.Pool.Exec(ctx,
		`DELETE FROM connections WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return database.MapPostgresError(err)
	}

	if result.RowsAffected() == 0 {
		return models.ErrNotFound
	}

	return nil
}

// UserHasPassword reports whether a user can still log in without this
// provider, which guards against deleting the last login method.
func (r *ConnectionRepository) UserCanDisconnect(ctx context.Context, userID string) (bool, error) {
	var hasPassword bool
	var connectionCount int

	err := r.db.WithTransaction(ctx, func(tx pgx.Tx) error {
		if err := tx.QueryRow(ctx,
			`SELECT EXISTS (SELECT 1 FROM passwords WHERE user_id = $1)`, userID).Scan(&hasPassword); err != nil {
			return database.MapPostgresError(err)
		}
		if err := tx.QueryRow(ctx,
			`SELECT COUNT(*) FROM connections WHERE user_id = $1`, userID).Scan(&connectionCount); err != nil {
			return database.MapPostgresError(err)
		}
		return nil
	})
	if err != nil {
		return false, err
	}

	return hasPassword || connectionCount > 1, nil
}
