package handlers

import (
	"github.com/edgard/dadbot/internal/chat"
	"github.com/edgard/dadbot/internal/logger"
)

// RegisterDefaultHandler builds the handler every inbound room message is delivered to,
// wrapped with the logging middleware.
func RegisterDefaultHandler(deps HandlerDeps, mw ...chat.Middleware) chat.HandlerFunc {
	middleware := append([]chat.Middleware{logger.Middleware(deps.Logger)}, mw...)
	return chat.Chain(NewResponder(deps), middleware...)
}
