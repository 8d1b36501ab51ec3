package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"

	"github.com/GHOUSEPASHAA/chatboxFull/internal/server"
	"github.com/GHOUSEPASHAA/chatboxFull/internal/store/bunstore"
	"github.com/GHOUSEPASHAA/chatboxFull/pkg/config"
	"github.com/GHOUSEPASHAA/chatboxFull/pkg/logging"
)

func main() {
	logger := logging.New(logging.LevelInfo)
	slog.SetDefault(logger)

	cfg, err := config.Load(logger, "config")
	if err != nil {
		logger.Error("Failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}
	logger = logging.New(logging.ParseLevel(cfg.Log.Level))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	db := bunstore.Open(cfg.Database.DSN)
	defer db.Close()
	if err := bunstore.Migrate(ctx, db); err != nil {
		logger.Error("Failed to run migrations", slog.Any("error", err))
		os.Exit(1)
	}

	stores := server.Stores{
		Users:    bunstore.NewUserRepository(db, logger),
		Groups:   bunstore.NewGroupRepository(db, logger),
		Messages: bunstore.NewMessageRepository(db, logger),
	}

	app := server.NewApp(logger, ctx, cfg, stores)
	if err := app.Run(); err != nil {
		logger.Error("Application run failed", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("Application shut down successfully.")
}
