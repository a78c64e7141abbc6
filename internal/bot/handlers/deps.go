// Package handlers contains the chat event handlers and their registration.
package handlers

import (
	"log/slog"
	"time"

	"github.com/edgard/dadbot/internal/config"
	"github.com/edgard/dadbot/internal/database"
)

// HandlerDeps provides dependencies for chat event handlers.
type HandlerDeps struct {
	Logger *slog.Logger
	Config *config.Config
	Store  database.Store
	// Now returns the processing time. Defaults to time.Now.
	Now func() time.Time
}
