// Package internal provides the main application initialization and runtime logic.
package internal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/starford/ansuz/internal/api"
	"github.com/starford/ansuz/internal/embed"
	"github.com/starford/ansuz/internal/index"
	"github.com/starford/ansuz/internal/mcpserver"
	"github.com/starford/ansuz/internal/queryservice"
	"github.com/starford/ansuz/internal/sse"
	"github.com/starford/ansuz/internal/storage"
	"github.com/starford/ansuz/internal/syncer"
)

// Run starts the application with the given options.
func Run(ctx context.Context, opts ...Option) error {
	app := &application{}

	for _, opt := range opts {
		opt(app)
	}

	if app.config == nil {
		return fmt.Errorf("config is required")
	}

	cfg := app.config

	// Initialize structured JSON logger.
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: cfg.App.LogLevel,
	}))
	slog.SetDefault(logger)

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("vault_path", cfg.Vault.Path),
		slog.String("sqlite_path", cfg.SQLite.Path),
		slog.String("embedding_provider", cfg.Embedding.Provider),
		slog.String("log_level", cfg.App.LogLevel.String()))

	// Ensure vault and database directories exist.
	if err := os.MkdirAll(cfg.Vault.Path, 0o755); err != nil {
		return fmt.Errorf("create vault dir: %w", err)
	}
	if dir := filepath.Dir(cfg.SQLite.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create db dir: %w", err)
		}
	}

	// Initialize the vault scanner.
	store, err := storage.NewFS(cfg.Vault.Path)
	if err != nil {
		return fmt.Errorf("init storage: %w", err)
	}

	// Initialize the SQLite index.
	db, err := index.Open(cfg.SQLite.Path)
	if err != nil {
		return fmt.Errorf("init index: %w", err)
	}
	defer db.Close()

	// Embedding provider and recompute policy.
	var embedder embed.Provider
	if cfg.Embedding.Provider == EmbeddingOllama {
		embedder = embed.NewOllama(cfg.Embedding.Endpoint, cfg.Embedding.Model)
	}
	var policy syncer.Policy = syncer.EagerPolicy{}
	if cfg.Embedding.Policy == EmbedPolicyDisabled {
		policy = syncer.DisabledPolicy{}
	}

	// SSE broker: one push per completed sync pass.
	broker := sse.NewBroker(2 * time.Second)
	defer broker.Close()

	coordinator := syncer.New(store, db, logger, syncer.Config{
		Embedder:     embedder,
		Policy:       policy,
		EmbedTimeout: cfg.Embedding.Timeout,
		OnComplete: func(stats syncer.Stats) {
			broker.PublishSyncCompleted(sse.SyncCompleted{
				Scanned: stats.Scanned,
				Indexed: stats.Indexed,
				Removed: stats.Removed,
				Skipped: stats.Skipped,
			})
		},
	})

	// Run initial sync.
	if _, err := coordinator.Sync(ctx); err != nil {
		logger.Warn("initial sync failed", slog.String("error", err.Error()))
	}

	svc := queryservice.NewService(store, db, embedder, cfg.Embedding.Timeout, nil)

	if app.mcp {
		return runMCP(ctx, svc, coordinator, logger, cfg)
	}
	return runHTTP(ctx, svc, coordinator, broker, logger, cfg)
}

func runHTTP(ctx context.Context, svc *queryservice.Service, coordinator *syncer.Coordinator, broker *sse.Broker, logger *slog.Logger, cfg *Config) error {
	apiRouter := api.NewRouter(svc, cfg.Auth.AuthEnabled(), cfg.Auth.Token, coordinator.Trigger, broker)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// Health check endpoints (unauthenticated).
	r.Get("/health/live", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Get("/health/ready", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	// Mount API routes under /api.
	r.Mount("/api", apiRouter)

	httpServer := &http.Server{
		Addr:    cfg.App.HTTP.Address(),
		Handler: r,
	}

	g, gCtx := errgroup.WithContext(ctx)

	// Background sync loop.
	g.Go(func() error {
		return coordinator.Run(gCtx)
	})

	// File watcher feeding the sync loop.
	g.Go(func() error {
		if err := syncer.Watch(gCtx, coordinator, cfg.Vault.Path, logger); err != nil {
			logger.Error("watcher failed", slog.String("error", err.Error()))
		}
		return nil
	})

	// HTTP server.
	g.Go(func() error {
		logger.Info("Starting HTTP server", slog.String("address", cfg.App.HTTP.Address()))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	// Handle shutdown signals.
	g.Go(func() error {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

		select {
		case sig := <-quit:
			logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
		case <-gCtx.Done():
			logger.Info("Context cancelled, initiating shutdown")
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
		}

		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}

func runMCP(ctx context.Context, svc *queryservice.Service, coordinator *syncer.Coordinator, logger *slog.Logger, cfg *Config) error {
	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return coordinator.Run(gCtx)
	})
	g.Go(func() error {
		if err := syncer.Watch(gCtx, coordinator, cfg.Vault.Path, logger); err != nil {
			logger.Error("watcher failed", slog.String("error", err.Error()))
		}
		return nil
	})
	g.Go(func() error {
		logger.Info("Starting MCP server on stdio")
		return mcpserver.New(svc).ServeStdio()
	})

	return g.Wait()
}
