package database

import (
	"errors"
	"fmt"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// ErrDuplicateCorrelation is wrapped by PutCorrelation when the trigger id already has a record.
var ErrDuplicateCorrelation = errors.New("correlation already exists for trigger")

// StorageError reports an I/O, query, or constraint failure in the correlation store.
type StorageError struct {
	Op  string // Store operation that failed (open, initialize, put, get, delete, maintenance).
	Err error  // Underlying error.
}

// Error implements the error interface.
func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error.
func (e *StorageError) Unwrap() error {
	return e.Err
}

func isConstraintViolation(err error) bool {
	var sqliteErr *sqlite.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.Code()&0xff == sqlite3.SQLITE_CONSTRAINT
	}
	return false
}
