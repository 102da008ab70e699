package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"deepview/backend/internal/app"
	"deepview/backend/internal/config"
)

// @title           DeepView Chat API
// @version         1.0
// @description     Streaming chat backend with media generation fallback.
// @BasePath        /api/v1
func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		slog.Error("Could not load configuration", "error", err)
		os.Exit(1)
	}

	a, err := app.New(cfg)
	if err != nil {
		slog.Error("Could not initialize application", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := a.Run(ctx); err != nil {
		slog.Error("Server exited with error", "error", err)
		os.Exit(1)
	}
}
