// Package tasks implements scheduled maintenance tasks for dadbot.
package tasks

import (
	"log/slog"
	"time"

	"github.com/edgard/dadbot/internal/config"
	"github.com/edgard/dadbot/internal/database"
)

// TaskDeps contains all dependencies required by scheduled tasks.
type TaskDeps struct {
	Logger *slog.Logger
	Store  database.Store
	Config *config.Config
	// Now returns the current time. Defaults to time.Now.
	Now func() time.Time
}
