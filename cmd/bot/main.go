// Package main contains the entrypoint for the dadbot chat responder.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/edgard/dadbot/internal/bot"
	"github.com/edgard/dadbot/internal/bot/handlers"
	"github.com/edgard/dadbot/internal/bot/tasks"
	"github.com/edgard/dadbot/internal/chat"
	"github.com/edgard/dadbot/internal/config"
	"github.com/edgard/dadbot/internal/database"
	"github.com/edgard/dadbot/internal/logger"
	"github.com/edgard/dadbot/internal/matrix"
	"github.com/edgard/dadbot/internal/telegram"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	exitCode := run(ctx)
	stop()
	os.Exit(exitCode)
}

// run initializes config, logger, store, chat client and scheduler, runs the bot until ctx is
// cancelled, and returns an exit code (0 for success, 1 for failure).
func run(ctx context.Context) int {
	configPath := flag.String("config", "./config.yaml", "Path to configuration file")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		slog.Error("Failed to load configuration", "path", *configPath, "error", err)
		return 1
	}

	log := logger.NewLogger(cfg.Logger.Level, cfg.Logger.JSON)
	log.Info("Logger initialized", "level", cfg.Logger.Level, "json", cfg.Logger.JSON)

	db, err := database.NewDB(cfg.Database.Path)
	if err != nil {
		log.Error("Failed to connect to database", "path", cfg.Database.Path, "error", err)
		return 1
	}
	defer database.CloseDB(db)

	store := database.NewStore(db, log)
	if err := store.Initialize(ctx); err != nil {
		log.Error("Failed to initialize store", "error", err)
		return 1
	}

	hDeps := handlers.HandlerDeps{
		Logger: log,
		Config: cfg,
		Store:  store,
	}
	tDeps := tasks.TaskDeps{
		Logger: log,
		Store:  store,
		Config: cfg,
	}

	client, err := newChatClient(cfg, log, handlers.RegisterDefaultHandler(hDeps))
	if err != nil {
		log.Error("Failed to create chat client", "backend", cfg.Chat.Backend, "error", err)
		return 1
	}

	if err := client.Connect(ctx); err != nil {
		log.Error("Failed to connect chat client", "backend", cfg.Chat.Backend, "error", err)
		return 1
	}
	log.Info("Chat client connected", "backend", cfg.Chat.Backend, "self_id", client.SelfID())

	sched, err := bot.NewScheduler(log, &cfg.Scheduler, tasks.RegisterAllTasks(tDeps))
	if err != nil {
		log.Error("Failed to create scheduler", "error", err)
		return 1
	}
	app := bot.NewBot(log, cfg, store, client, sched)

	log.Info("Starting bot...")
	runErr := app.Run(ctx)
	log.Info("Bot run loop finished. Initiating shutdown...")

	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		log.Error("Bot stopped due to error", "error", runErr)
		time.Sleep(time.Second)
		return 1
	}

	log.Info("Bot stopped gracefully.")
	time.Sleep(time.Second)
	return 0
}

func newChatClient(cfg *config.Config, log *slog.Logger, handler chat.HandlerFunc) (chat.Client, error) {
	switch cfg.Chat.Backend {
	case config.BackendMatrix:
		zl := logger.NewZerolog(cfg.Logger.Level, cfg.Logger.JSON)
		return matrix.NewClient(cfg.Matrix, log, zl, handler)
	case config.BackendTelegram:
		return telegram.NewClient(cfg.Telegram.Token, log, handler)
	default:
		return nil, fmt.Errorf("unsupported chat backend %q", cfg.Chat.Backend)
	}
}
