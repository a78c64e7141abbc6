// Package database provides database setup, models, and the correlation store.
package database

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jmoiron/sqlx"

	"github.com/edgard/dadbot/migrations"

	_ "modernc.org/sqlite" //revive:disable:blank-imports
)

const defaultPragmas = "_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"

// NewDB opens a connection pool to the SQLite database file at dbPath.
// The schema is not touched here; Store.Initialize applies migrations.
func NewDB(dbPath string) (*sqlx.DB, error) {
	if dbPath == "" {
		return nil, &StorageError{Op: "open", Err: errors.New("database path cannot be empty")}
	}

	db, err := sqlx.Connect("sqlite", dsn(dbPath))
	if err != nil {
		return nil, &StorageError{Op: "open", Err: fmt.Errorf("failed to connect to database %s: %w", dbPath, err)}
	}

	// SQLite doesn't support concurrent writes, so max open conns = 1
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	slog.Info("Database connected", "path", dbPath)
	return db, nil
}

// CloseDB closes the database connection pool.
func CloseDB(db *sqlx.DB) {
	if db == nil {
		return
	}
	if err := db.Close(); err != nil {
		slog.Error("Error closing database connection", "error", err)
	} else {
		slog.Info("Database connection closed successfully.")
	}
}

// ApplyMigrations runs database migrations using embedded files.
// It is safe to call on an already migrated database.
func ApplyMigrations(db *sql.DB, logger *slog.Logger) error {
	if db == nil {
		return errors.New("database connection is nil, cannot apply migrations")
	}
	if logger == nil {
		logger = slog.Default()
	}

	sourceDriver, err := iofs.New(migrations.FS, ".")
	if err != nil {
		return fmt.Errorf("failed to create embed source driver instance: %w", err)
	}

	dbDriver, err := sqlite.WithInstance(db, &sqlite.Config{})
	if err != nil {
		return fmt.Errorf("failed to create sqlite database driver: %w", err)
	}

	migrator, err := migrate.NewWithInstance("iofs", sourceDriver, "sqlite", dbDriver)
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}

	if err := migrator.Up(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			logger.Debug("No database migrations to apply.")
			return nil
		}
		return fmt.Errorf("failed to apply migrations: %w", err)
	}

	logger.Info("Database migrations applied successfully.")
	return nil
}

// dsn appends the default pragmas unless the caller already supplied a query string.
func dsn(path string) string {
	if strings.Contains(path, "?") {
		return path
	}
	return path + "?" + defaultPragmas
}

// timestampFormat matches SQLite's CURRENT_TIMESTAMP so stored and compared values sort lexically.
const timestampFormat = time.DateTime

func formatTimestamp(t time.Time) string {
	return t.UTC().Format(timestampFormat)
}
