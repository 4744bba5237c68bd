package main

import (
	"context"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/mcoot/cubegame/internal/config"
	"github.com/mcoot/cubegame/internal/factory"
)

func main() {
	// Build config from the optional file and the environment
	cfg, err := config.Load(os.Getenv("CUBEGAME_CONFIG"))
	if err != nil {
		slog.Error("failed to load config", slog.String("error", err.Error()))
		os.Exit(1)
	}

	level, _ := cfg.Level()

	// Set up logging with JSON output
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	// Create application factory
	app, err := factory.New(cfg, logger)
	if err != nil {
		logger.Error("failed to create application", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer app.Close()

	// Handle graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	addr := net.JoinHostPort(cfg.HTTP.Host, strconv.Itoa(cfg.Session.Port))
	if err := app.Listen(ctx, addr); err != nil {
		logger.Error("failed to listen", slog.String("addr", addr), slog.String("error", err.Error()))
		os.Exit(1)
	}

	logger.Info("server started", slog.String("addr", app.ListenAddr().String()))

	if err := app.Wait(); err != nil {
		logger.Error("server error", slog.String("error", err.Error()))
		os.Exit(1)
	}

	logger.Info("server stopped")
}
