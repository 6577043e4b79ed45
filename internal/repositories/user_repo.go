package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/saurabhp75/epic-web/internal/database"
	"github.com/saurabhp75/epic-web/internal/models"
)

type UserRepository struct {
	db   *database.DB
	pool *pgxpool.Pool
}

func NewUserRepository(db *database.DB) *UserRepository {
	return &UserRepository{db: db, pool: db.Pool}
}

// rowScanner interface for scanning rows (single row and multiple rows)
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanUserRow(scanner rowScanner) (*models.User, error) {
	var user models.User

	err := scanner.Scan(
		&user.ID, &user.Username, &user.Email, &user.Name,
		&user.CreatedAt, &user.UpdatedAt,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}

	return &user, nil
}

const userColumns = `id, username, email, name, created_at, updated_at`

func (r *UserRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return scanUserRow(r.pool.QueryRow(ctx, query, id))
}

func (r *UserRepository) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE username = $1`
	return scanUserRow(r.pool.QueryRow(ctx, query, username))
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1`
	return scanUserRow(r.pool.QueryRow(ctx, query, email))
}

// Create inserts a bare user record with no credentials. Signup flows
// should prefer CreateWithCredentials so the user never exists without
// its password or connection.
func (r *UserRepository) Create(ctx context.Context, user *models.User) (*models.User, error) {
	user.ID = uuid.New().String()
	now := time.Now()
	user.CreatedAt = now
	user.UpdatedAt = now

	query := `
		INSERT INTO users (id, username, email, name, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING ` + userColumns

	return scanUserRow(r.pool.QueryRow(ctx, query,
		user.ID, user.Username, user.Email, user.Name, user.CreatedAt, user.UpdatedAt,
	))
}

// CreateWithCredentials creates a user together with an optional password
// hash and an optional external connection in a single transaction, so a
// half-created account can never be observed.
func (r *UserRepository) CreateWithCredentials(ctx context.Context, user *models.User, passwordHash string, conn *models.Connection) (*models.User, error) {
	user.ID = uuid.New().String()
	now := time.Now()
	user.CreatedAt = now
	user.UpdatedAt = now

	err := r.db.WithTransaction(ctx, func(tx pgx.Tx) error {
		userQuery := `
			INSERT INTO users (id, username, email, name, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6)`
		if _, err := tx.Exec(ctx, userQuery,
			user.ID, user.Username, user.Email, user.Name, user.CreatedAt, user.UpdatedAt,
		); err != nil {
			return database.MapPostgresError(err)
		}

		if passwordHash != "" {
			passwordQuery := `INSERT INTO passwords (user_id, hash, updated_at) VALUES ($1, $2, $3)`
			if _, err := tx.Exec(ctx, passwordQuery, user.ID, passwordHash, now); err != nil {
				return database.MapPostgresError(err)
			}
		}

		if conn != nil {
			conn.ID = uuid.New().String()
			conn.UserID = user.ID
			conn.CreatedAt = now
			connQuery := `
				INSERT INTO connections (id, provider_name, provider_id, user_id, created_at)
				VALUES ($1, $2, $3, $4, $5)`
			if _, err := tx.Exec(ctx, connQuery,
				conn.ID, conn.ProviderName, conn.ProviderID, conn.UserID, conn.CreatedAt,
			); err != nil {
				return database.MapPostgresError(err)
			}
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return user, nil
}

func (r *UserRepository) Update(ctx context.Context, id string, user *models.User) (*models.User, error) {
	user.UpdatedAt = time.Now()

	query := `
		UPDATE users SET username = $1, name = $2, updated_at = $3
		WHERE id = $4
		RETURNING ` + userColumns

	return scanUserRow(r.pool.QueryRow(ctx, query,
		user.Username, user.Name, user.UpdatedAt, id,
	))
}

func (r *UserRepository) Delete(ctx context.Context, id string) error {
	result, err := r.pool.Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return database.MapPostgresError(err)
	}

	if result.RowsAffected() == 0 {
		return models.ErrNotFound
	}

	return nil
}

// GetPassword returns the password record for a user, or ErrNotFound for
// OAuth-only accounts that never set one.
func (r *UserRepository) GetPassword(ctx context.Context, userID string) (*models.Password, error) {
	query := `SELECT user_id, hash, updated_at FROM passwords WHERE user_id = $1`

	var password models.Password
	err := r.pool.QueryRow(ctx, query, userID).Scan(
		&password.UserID, &password.Hash, &password.UpdatedAt,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}

	return &password, nil
}

// UpsertPassword replaces the password hash wholesale
func (r *UserRepository) UpsertPassword(ctx context.Context, userID, hash string) error {
	query := `
		INSERT INTO passwords (user_id, hash, updated_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id) DO UPDATE SET hash = EXCLUDED.hash, updated_at = EXCLUDED.updated_at`

	if _, err := r.pool.Exec(ctx, query, userID, hash, time.Now()); err != nil {
		return fmt.Errorf("failed to upsert password: %w", database.MapPostgresError(err))
	}
	return nil
}
