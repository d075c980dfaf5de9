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
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/starford/ansuz/internal/api"
	"github.com/starford/ansuz/internal/cache"
	"github.com/starford/ansuz/internal/coord"
	"github.com/starford/ansuz/internal/indexer"
	"github.com/starford/ansuz/internal/mcpserver"
	"github.com/starford/ansuz/internal/query"
	"github.com/starford/ansuz/internal/source"
	"github.com/starford/ansuz/internal/sse"
	"github.com/starford/ansuz/internal/store"
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

	// Structured JSON logging on stderr; stdout stays free for the MCP
	// stdio transport.
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: cfg.App.LogLevel,
	}))
	slog.SetDefault(logger)

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("collection_path", cfg.Collection.Path),
		slog.String("sqlite_path", cfg.SQLite.Path),
		slog.String("log_level", cfg.App.LogLevel.String()))

	// Ensure collection directory exists.
	if err := os.MkdirAll(cfg.Collection.Path, 0o755); err != nil {
		return fmt.Errorf("create collection dir: %w", err)
	}

	src, err := source.NewFS(cfg.Collection.Path)
	if err != nil {
		return fmt.Errorf("init source: %w", err)
	}

	st, err := store.Open(cfg.SQLite.Path)
	if err != nil {
		return fmt.Errorf("init store: %w", err)
	}
	defer st.Close()

	engine := query.New(st, query.Limits{
		MaxLength: cfg.Query.MaxLength,
		MaxJoins:  cfg.Query.MaxJoins,
	}, cfg.Query.DefaultLimit, cfg.Query.Timeout)

	resultCache := cache.New(cfg.Cache.Size, cfg.Cache.TTL)

	co := coord.New(st, src, engine, resultCache, logger, coord.Options{
		PoolSize: cfg.Pool.QueryWorkers,
		Workers:  cfg.Pool.IndexWorkers,
	})

	// SSE broker relays coordinator events to connected clients.
	broker := sse.NewBroker(2 * time.Second)
	defer broker.Close()
	co.OnEvent = func(kind string, data any) {
		broker.Publish(sse.Event{Type: kind, Data: data})
		broker.PublishGeneration(co.Generation())
	}

	// Startup integrity gate: never serve from a store known to be corrupt.
	if err := co.CheckIntegrity(ctx); err != nil {
		return fmt.Errorf("store integrity: %w", err)
	}

	// Initial incremental sync.
	if _, err := co.Index(ctx, indexer.Options{Recursive: cfg.Collection.Recursive}); err != nil {
		logger.Warn("initial index run failed", slog.String("error", err.Error()))
	}

	g, gCtx := errgroup.WithContext(ctx)

	if cfg.Collection.Watch {
		g.Go(func() error {
			return indexer.Watch(gCtx, src.Root(), logger, func(ctx context.Context) (*indexer.Report, error) {
				return co.Index(ctx, indexer.Options{Recursive: cfg.Collection.Recursive})
			})
		})
	}

	if app.mcpStdio {
		mcpSrv := mcpserver.New(co)
		logger.Info("Starting MCP stdio server")
		g.Go(func() error {
			return mcpSrv.ServeStdio()
		})
		return g.Wait()
	}

	apiRouter := api.NewRouter(co, cfg.Auth.AuthEnabled(), cfg.Auth.Token, broker)

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
		status := http.StatusOK
		if co.Health() != coord.Healthy {
			status = http.StatusServiceUnavailable
		}
		w.WriteHeader(status)
		_, _ = fmt.Fprintf(w, `{"health":%q}`, co.Health().String())
	})

	r.Mount("/api", apiRouter)

	httpServer := &http.Server{
		Addr:    cfg.App.HTTP.Address(),
		Handler: r,
	}

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

		logger.Info("Shutting down server...")

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
