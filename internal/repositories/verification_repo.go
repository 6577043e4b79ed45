package repositories

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/saurabhp75/epic-web/internal/database"
	"github.com/saurabhp75/epic-web/internal/models"
)

type VerificationRepository struct {
	db *database.DB
}

func NewVerificationRepository(db *database.DB) *VerificationRepository {
	return &VerificationRepository{db: db}
}

const verificationColumns = `id, type, target, secret, algorithm, digits, period, expires_at, created_at`

func scanVerificationRow(scanner rowScanner) (*models.Verification, error) {
	var v models.Verification
	err := scanner.Scan(
		&v.ID, &v.Type, &v.Target, &v.Secret,
		&v.Algorithm, &v.Digits, &v.Period, &v.ExpiresAt, &v.CreatedAt,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}
	return &v, nil
}

// Upsert creates or replaces the verification record for (target, type).
// The unique constraint keeps at most one record per pair; re-running an
// enrollment or signup simply replaces the staged secret.
func (r *VerificationRepository) Upsert(ctx context.Context, v *models.Verification) (*models.Verification, error) {
	v.ID = uuid.New().String()
	v.CreatedAt = time.Now()

	query := `
		INSERT INTO verifications (id, type, target, secret, algorithm, digits, period, expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (target, type) DO UPDATE SET
			secret = EXCLUDED.secret,
			algorithm = EXCLUDED.algorithm,
			digits = EXCLUDED.digits,
			period = EXCLUDED.period,
			expires_at = EXCLUDED.expires_at,
			created_at = EXCLUDED.created_at
		RETURNING ` + verificationColumns

	return scanVerificationRow(r.db.Pool.QueryRow(ctx, query,
		v.ID, v.Type, v.Target, v.Secret, v.Algorithm, v.Digits, v.Period, v.ExpiresAt, v.CreatedAt,
	))
}

func (r *VerificationRepository) GetByTargetAndType(ctx context.Context, target, vtype string) (*models.Verification, error) {
	query := `SELECT ` + verificationColumns + ` FROM verifications WHERE target = $1 AND type = $2`
	return scanVerificationRow(r.db.Pool.QueryRow(ctx, query, target, vtype))
}

func (r *VerificationRepository) DeleteByTargetAndType(ctx context.Context, target, vtype string) error {
	result, err := r.db.Pool.Exec(ctx,
		`DELETE FROM verifications WHERE target = $1 AND type = $2`, target, vtype)
	if err != nil {
		return database.MapPostgresError(err)
	}

	if result.RowsAffected() == 0 {
		return models.ErrNotFound
	}

	return nil
}

// Promote re-keys a record from one type to another for the same target,
// e.g. 2fa-verify becomes 2fa once the first code is confirmed. Any
// existing record under the destination type is replaced.
func (r *VerificationRepository) Promote(ctx context.Context, target, fromType, toType string) error {
	return r.db.WithTransaction(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx,
			`DELETE FROM verifications WHERE target = $1 AND type = $2`, target, toType); err != nil {
			return database.MapPostgresError(err)
		}

		result, err := tx.Exec(ctx,
			`UPDATE verifications SET type = $3, expires_at = NULL WHERE target = $1 AND type = $2`,
			target, fromType, toType)
		if err != nil {
			return database.MapPostgresError(err)
		}
		if result.RowsAffected() == 0 {
			return models.ErrNotFound
		}
		return nil
	})
}

// CleanupExpired removes verification records past their expiry
func (r *VerificationRepository) CleanupExpired(ctx context.Context) (int64, error) {
	result, err := r.db.Pool.Exec(ctx,
		`DELETE FROM verifications WHERE expires_at IS NOT NULL AND expires_at <= now()`)
	if err != nil {
		return 0, database.MapPostgresError(err)
	}

	return result.RowsAffected(), nil
}
