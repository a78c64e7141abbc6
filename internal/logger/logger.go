// Package logger provides structured logging for dadbot.
// It uses Go's slog package with configurable levels and formats, and builds
// the zerolog logger the Matrix SDK expects.
package logger

import (
	"context"
	"log/slog"
	"os"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"github.com/edgard/dadbot/internal/chat"
)

// NewLogger creates a new slog Logger with the specified level and format.
// If jsonOutput is true, logs will be formatted as JSON, otherwise as text.
func NewLogger(levelStr string, jsonOutput bool) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: parseLevel(levelStr),
	}

	var handler slog.Handler
	if jsonOutput {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

// NewZerolog builds a zerolog logger at the same level as the slog logger.
func NewZerolog(levelStr string, jsonOutput bool) zerolog.Logger {
	var zl zerolog.Logger
	if jsonOutput {
		zl = zerolog.New(os.Stdout)
	} else {
		zl = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339})
	}

	level := zerolog.InfoLevel
	switch parseLevel(levelStr) {
	case slog.LevelDebug:
		level = zerolog.DebugLevel
	case slog.LevelWarn:
		level = zerolog.WarnLevel
	case slog.LevelError:
		level = zerolog.ErrorLevel
	}

	return zl.Level(level).With().Timestamp().Logger()
}

func parseLevel(levelStr string) slog.Level {
	switch strings.ToLower(levelStr) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Middleware creates a logging middleware for chat event handlers.
// It logs every inbound event and the outcome of handling it.
func Middleware(log *slog.Logger) chat.Middleware {
	return func(next chat.HandlerFunc) chat.HandlerFunc {
		return func(ctx context.Context, c chat.Client, evt *chat.Event) error {
			startTime := time.Now()

			logEntry := log.With(
				"event_id", evt.ID,
				"room_id", evt.RoomID,
				"sender", evt.Sender,
				"kind", evt.Kind(),
				"text_preview", truncateString(evt.Body(), 50),
			)
			if target := evt.EditTarget(); target != "" {
				logEntry = logEntry.With("update_type", "edit", "edit_target", target)
			} else {
				logEntry = logEntry.With("update_type", "message")
			}

			logEntry.DebugContext(ctx, "Processing event")

			err := next(ctx, c, evt)

			duration := time.Since(startTime)
			if err != nil {
				logEntry.ErrorContext(ctx, "Failed processing event", "duration", duration, "error", err)
				return err
			}
			logEntry.DebugContext(ctx, "Finished processing event", "duration", duration)
			return nil
		}
	}
}

// truncateString shortens s to at most maxLen runes, ending with "...".
func truncateString(s string, maxLen int) string {
	if utf8.RuneCountInString(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return "..."
	}
	runes := []rune(s)
	return string(runes[:maxLen-3]) + "..."
}
