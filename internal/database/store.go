package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jmoiron/sqlx"
)

// Store defines the interface for correlation persistence.
// Methods accept context.Context for cancellation and timeouts.
type Store interface {
	// Ping checks the database connection.
	Ping(ctx context.Context) error

	// Initialize creates the schema if absent. Safe to call more than once.
	Initialize(ctx context.Context) error

	// PutCorrelation records the reply sent for a trigger message.
	PutCorrelation(ctx context.Context, triggerID, responseID string) error

	// GetCorrelation looks up the reply for a trigger message. Returns nil, nil if not found.
	GetCorrelation(ctx context.Context, triggerID string) (*Correlation, error)

	// DeleteCorrelationsBefore removes records created before cutoff and returns how many were removed.
	DeleteCorrelationsBefore(ctx context.Context, cutoff time.Time) (int64, error)

	// RunSQLMaintenance performs database maintenance tasks like VACUUM.
	RunSQLMaintenance(ctx context.Context) error
}

// sqlxStore provides an implementation of the Store interface using sqlx.
type sqlxStore struct {
	db     *sqlx.DB
	logger *slog.Logger

	initMu sync.Mutex
	ready  atomic.Bool
}

// NewStore creates a new Store implementation backed by sqlx.
// The returned store initializes itself on first use if Initialize was not called.
func NewStore(db *sqlx.DB, logger *slog.Logger) Store {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &sqlxStore{
		db:     db,
		logger: logger.With("component", "store"),
	}
}

// Ping checks the database connection.
func (s *sqlxStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Initialize applies the embedded migrations once.
func (s *sqlxStore) Initialize(ctx context.Context) error {
	if s.ready.Load() {
		return nil
	}

	s.initMu.Lock()
	defer s.initMu.Unlock()

	if s.ready.Load() {
		return nil
	}

	if err := s.db.PingContext(ctx); err != nil {
		return &StorageError{Op: "initialize", Err: err}
	}
	if err := ApplyMigrations(s.db.DB, s.logger); err != nil {
		s.logger.ErrorContext(ctx, "Failed to initialize store", "error", err)
		return &StorageError{Op: "initialize", Err: err}
	}

	s.ready.Store(true)
	s.logger.DebugContext(ctx, "Store initialized")
	return nil
}

// PutCorrelation inserts a new correlation record.
// A second insert for the same trigger id fails with ErrDuplicateCorrelation.
func (s *sqlxStore) PutCorrelation(ctx context.Context, triggerID, responseID string) error {
	if triggerID == "" {
		return &StorageError{Op: "put", Err: errors.New("trigger id cannot be empty")}
	}
	if responseID == "" {
		return &StorageError{Op: "put", Err: errors.New("response id cannot be empty")}
	}
	if err := s.Initialize(ctx); err != nil {
		return err
	}

	rec := &Correlation{
		TriggerID:  triggerID,
		ResponseID: responseID,
	}

	query := `INSERT INTO events (eventID, responseID, created_at) VALUES (?, ?, ?);`
	_, err := s.db.ExecContext(ctx, query, rec.TriggerID, rec.ResponseID, formatTimestamp(time.Now()))

	switch {
	case err == nil:
	case isConstraintViolation(err):
		s.logger.WarnContext(ctx, "Correlation already recorded", "trigger_id", triggerID)
		return &StorageError{Op: "put", Err: fmt.Errorf("%w: %s", ErrDuplicateCorrelation, triggerID)}
	default:
		s.logger.ErrorContext(ctx, "Error saving correlation", "trigger_id", triggerID, "error", err)
		return &StorageError{Op: "put", Err: fmt.Errorf("failed to save correlation for %s: %w", triggerID, err)}
	}

	s.logger.DebugContext(ctx, "Correlation saved", "trigger_id", triggerID, "response_id", responseID)
	return nil
}

// GetCorrelation retrieves the correlation for a trigger id. Returns nil, nil if not found.
func (s *sqlxStore) GetCorrelation(ctx context.Context, triggerID string) (*Correlation, error) {
	if err := s.Initialize(ctx); err != nil {
		return nil, err
	}

	var rec Correlation
	query := `SELECT eventID, responseID, created_at FROM events WHERE eventID = ?`
	err := s.db.GetContext(ctx, &rec, query, triggerID)

	switch {
	case errors.Is(err, sql.ErrNoRows):
		s.logger.DebugContext(ctx, "No correlation found", "trigger_id", triggerID)
		return nil, nil

	case errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled):
		s.logger.WarnContext(ctx, "Context timeout or cancellation while fetching correlation",
			"trigger_id", triggerID, "error", err)
		return nil, &StorageError{Op: "get", Err: err}

	case err != nil:
		s.logger.ErrorContext(ctx, "Error getting correlation", "trigger_id", triggerID, "error", err)
		return nil, &StorageError{Op: "get", Err: fmt.Errorf("failed to get correlation for %s: %w", triggerID, err)}
	}

	return &rec, nil
}

// DeleteCorrelationsBefore removes correlation records older than cutoff.
func (s *sqlxStore) DeleteCorrelationsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	if err := s.Initialize(ctx); err != nil {
		return 0, err
	}

	res, err := s.db.ExecContext(ctx, `DELETE FROM events WHERE created_at < ?`, formatTimestamp(cutoff))
	if err != nil {
		s.logger.ErrorContext(ctx, "Error deleting old correlations", "cutoff", cutoff, "error", err)
		return 0, &StorageError{Op: "delete", Err: err}
	}

	affected, err := res.RowsAffected()
	if err != nil {
		s.logger.WarnContext(ctx, "Could not read rows affected after deleting correlations", "error", err)
		return 0, nil
	}

	s.logger.DebugContext(ctx, "Deleted old correlations", "cutoff", cutoff, "count", affected)
	return affected, nil
}

// RunSQLMaintenance executes a VACUUM command on the SQLite database.
func (s *sqlxStore) RunSQLMaintenance(ctx context.Context) error {
	if ctx.Err() != nil {
		s.logger.WarnContext(ctx, "Context cancelled or timed out before starting VACUUM", "error", ctx.Err())
		return ctx.Err()
	}

	s.logger.InfoContext(ctx, "Starting database maintenance (VACUUM)...")

	// VACUUM must run outside a transaction in SQLite
	_, err := s.db.ExecContext(ctx, "VACUUM;")

	switch {
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled):
		s.logger.WarnContext(ctx, "VACUUM operation timed out or was cancelled", "error", err)
		return &StorageError{Op: "maintenance", Err: fmt.Errorf("database maintenance (VACUUM) timed out: %w", err)}

	case err != nil:
		s.logger.ErrorContext(ctx, "Database maintenance (VACUUM) failed", "error", err)
		return &StorageError{Op: "maintenance", Err: fmt.Errorf("failed to execute VACUUM: %w", err)}
	}

	s.logger.InfoContext(ctx, "Database maintenance (VACUUM) completed successfully")
	return nil
}
