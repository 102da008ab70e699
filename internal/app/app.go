package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"deepview/backend/internal/api"
	"deepview/backend/internal/classify"
	"deepview/backend/internal/config"
	"deepview/backend/internal/database"
	"deepview/backend/internal/generate"
	"deepview/backend/internal/llm"
	"deepview/backend/internal/repository"
	"deepview/backend/internal/service"
)

// App owns the wired object graph and the HTTP server lifecycle.
type App struct {
	server  *http.Server
	cleanup []func() error
}

func New(cfg *config.Config) (*App, error) {
	setupLogger(cfg.LogLevel)

	app := &App{}

	repo, err := app.buildRepository(cfg)
	if err != nil {
		return nil, err
	}

	gateway := llm.NewGateway(cfg.GatewayURL, cfg.GatewayAPIKey, cfg.ImageModel)
	classifier := classify.New(cfg.VideoVerbs, cfg.VideoNouns, cfg.ImageVerbs, cfg.ImageNouns)

	breaker := generate.NewCircuitBreaker(time.Duration(cfg.CooldownMinutes) * time.Minute)
	fallback := generate.NewStoryboardFallback(gateway)
	orchestrator := generate.NewOrchestrator(
		buildCandidates(cfg),
		breaker,
		fallback,
		time.Duration(cfg.PollIntervalSeconds)*time.Second,
		cfg.MaxPollAttempts,
	)

	chatService := service.NewChatService(repo, gateway, classifier, orchestrator, cfg)
	handler := api.NewHandler(chatService, cfg)

	app.server = &http.Server{
		Addr:        fmt.Sprintf(":%d", cfg.AppPort),
		Handler:     api.NewRouter(handler),
		ReadTimeout: 30 * time.Second,
		// No write timeout: chat streams stay open for minutes.
		WriteTimeout: 0,
		IdleTimeout:  120 * time.Second,
	}
	return app, nil
}

func (a *App) buildRepository(cfg *config.Config) (repository.Repository, error) {
	switch cfg.RepositoryBackend {
	case "redis":
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		if err := client.Ping(context.Background()).Err(); err != nil {
			return nil, fmt.Errorf("could not connect to redis at %s: %w", cfg.RedisAddr, err)
		}
		a.cleanup = append(a.cleanup, client.Close)
		slog.Info("Using redis repository", "addr", cfg.RedisAddr)
		return repository.NewRedisRepository(client), nil

	case "sqlite":
		db, err := database.NewSQLiteDB(cfg.DatabasePath)
		if err != nil {
			return nil, err
		}
		a.cleanup = append(a.cleanup, db.Close)
		slog.Info("Using sqlite repository", "path", cfg.DatabasePath)
		return repository.NewSQLiteRepository(db), nil

	default:
		return nil, fmt.Errorf("unknown repository backend %q", cfg.RepositoryBackend)
	}
}

// buildCandidates assembles the ordered provider list. A provider without an
// API key is skipped entirely rather than submitted and failed.
func buildCandidates(cfg *config.Config) []generate.Provider {
	var candidates []generate.Provider

	if cfg.ReplicateAPIKey != "" {
		for _, m := range cfg.ReplicateModels {
			shape := generate.AspectRatioInput
			if strings.Contains(m, "animate-diff") {
				shape = generate.DimensionsInput
			}
			candidates = append(candidates, generate.NewReplicate(cfg.ReplicateURL, cfg.ReplicateAPIKey, m, shape))
		}
	}
	if cfg.RunwayAPIKey != "" {
		candidates = append(candidates, generate.NewRunway(cfg.RunwayURL, cfg.RunwayAPIKey))
	}
	if cfg.LumaAPIKey != "" {
		candidates = append(candidates, generate.NewLuma(cfg.LumaURL, cfg.LumaAPIKey))
	}

	if len(candidates) == 0 {
		slog.Warn("No video provider API keys configured, video requests will use the storyboard fallback")
	} else {
		names := make([]string, len(candidates))
		for i, c := range candidates {
			names[i] = c.Name()
		}
		slog.Info("Video generation candidates assembled", "candidates", names)
	}
	return candidates
}

// Run starts the server and blocks until the context is canceled, then shuts
// down gracefully.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		slog.Info("Server listening", "addr", a.server.Addr)
		if err := a.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	slog.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := a.server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown failed: %w", err)
	}
	for _, fn := range a.cleanup {
		if err := fn(); err != nil {
			slog.Warn("Cleanup failed", "error", err)
		}
	}
	return nil
}

func setupLogger(level string) {
	var lvl slog.Level
	switch strings.ToUpper(level) {
	case "DEBUG":
		lvl = slog.LevelDebug
	case "WARN":
		lvl = slog.LevelWarn
	case "ERROR":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
	slog.SetDefault(logger)
}
