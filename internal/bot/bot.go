// Package bot implements the bot lifecycle and component orchestration for dadbot.
package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/edgard/dadbot/internal/chat"
	"github.com/edgard/dadbot/internal/config"
	"github.com/edgard/dadbot/internal/database"
)

// Bot represents the main bot application and manages its components' lifecycle.
type Bot struct {
	logger    *slog.Logger
	cfg       *config.Config
	store     database.Store
	client    chat.Client
	scheduler *Scheduler
}

// NewBot creates a new instance of the bot with all required dependencies.
func NewBot(
	logger *slog.Logger,
	cfg *config.Config,
	store database.Store,
	client chat.Client,
	scheduler *Scheduler,
) *Bot {
	return &Bot{
		logger:    logger.With("component", "bot_orchestrator"),
		cfg:       cfg,
		store:     store,
		client:    client,
		scheduler: scheduler,
	}
}

// Run starts the chat listener and the scheduler, handling graceful shutdown on context cancellation.
// It returns an error if any component fails during startup or execution.
func (b *Bot) Run(ctx context.Context) error {
	b.logger.Info("Starting bot orchestrator...", "backend", b.cfg.Chat.Backend, "self_id", b.client.SelfID())

	if err := b.store.Ping(ctx); err != nil {
		return fmt.Errorf("store not reachable: %w", err)
	}

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		b.logger.Info("Starting chat listener...")

		err := b.client.Start(gCtx)
		b.logger.Info("Chat listener stopped.")

		if gCtx.Err() == nil {
			b.logger.Warn("Chat listener stopped unexpectedly without context cancellation.", "error", err)
			if err != nil {
				return fmt.Errorf("chat listener stopped: %w", err)
			}
			return errors.New("chat listener stopped unexpectedly")
		}
		return nil
	})

	g.Go(func() error {
		b.logger.Info("Starting scheduler...")
		if err := b.scheduler.Start(); err != nil {
			b.logger.Error("Failed to start scheduler", "error", err)
			return fmt.Errorf("failed to start scheduler: %w", err)
		}
		b.logger.Info("Scheduler running", "jobs", b.scheduler.Jobs())

		<-gCtx.Done()
		b.logger.Info("Shutdown signal received, stopping scheduler...")

		if err := b.scheduler.Stop(); err != nil {
			b.logger.Error("Error stopping scheduler", "error", err)
		}

		return nil
	})

	b.logger.Info("Bot orchestrator running. Waiting for shutdown signal or error...")
	err := g.Wait()

	if err != nil && !errors.Is(err, context.Canceled) {
		b.logger.Error("Bot orchestrator stopped due to error", "error", err)
		return err
	}

	b.logger.Info("Bot orchestrator stopped gracefully.")
	return nil
}
