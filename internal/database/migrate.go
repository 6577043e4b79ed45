package database

import (
	"database/sql"
	"embed"
	"fmt"
	"log/slog"

	_ "github.com/lib/pq"
	"github.com/pressly/goose/v3"
	"github.com/saurabhp75/epic-web/internal/config"
)

//go:embed migrations/*.sql
var migrations embed.FS

// Migrate applies all pending embedded migrations.
// goose drives a separate database/sql connection; the pgx pool is opened
// afterwards once the schema is current.
func Migrate(cfg *config.DatabaseConfig, logger *slog.Logger) error {
	db, err := sql.Open("postgres", cfg.DSN())
	if err != nil {
		return fmt.Errorf("failed to open migration connection: %w", err)
	}
	defer db.Close()

	if err := MigrateDB(db); err != nil {
		return err
	}

	version, err := goose.GetDBVersion(db)
	if err != nil {
		return fmt.Errorf("failed to read migration version: %w", err)
	}

	logger.Info("database migrations applied", slog.Int64("version", version))
	return nil
}

// MigrateDB runs the embedded migrations on an already open connection
func MigrateDB(db *sql.DB) error {
	goose.SetBaseFS(migrations)
	goose.SetLogger(goose.NopLogger())

	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("failed to set goose dialect: %w", err)
	}

	if err := goose.Up(db, "migrations"); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}
