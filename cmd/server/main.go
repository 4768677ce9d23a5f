// Cognify - guided task companion server
package main

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
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/ashureev/cognify/internal/api"
	"github.com/ashureev/cognify/internal/catalog"
	"github.com/ashureev/cognify/internal/config"
	"github.com/ashureev/cognify/internal/flow"
	"github.com/ashureev/cognify/internal/identity"
	"github.com/ashureev/cognify/internal/live"
	"github.com/ashureev/cognify/internal/metrics"
	"github.com/ashureev/cognify/internal/middleware"
	"github.com/ashureev/cognify/internal/profile"
	"github.com/ashureev/cognify/internal/session"
	"github.com/ashureev/cognify/internal/store"
	"github.com/ashureev/cognify/web"
)

func main() {
	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}))
	slog.SetDefault(logger)

	if err := run(cfg); err != nil {
		slog.Error("Server failed", "error", err)
		os.Exit(1)
	}
	slog.Info("Server stopped successfully")
}

func run(cfg *config.Config) error {
	slog.Info("Starting server",
		"port", cfg.Port,
		"dev", cfg.IsDevelopment(),
		"store", cfg.Store,
		"grounding", cfg.Features.Grounding,
		"take_break", cfg.Features.TakeBreak,
		"require_onboarding", cfg.Features.RequireOnboarding,
		"profile_sink", cfg.Profile.Sink)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize dependencies.
	repo, sqliteRepo, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := repo.Close(); closeErr != nil {
			slog.Error("Failed to close repository", "error", closeErr)
		}
	}()

	tasks := catalog.New()
	if cfg.CatalogPath != "" {
		if err := tasks.LoadFile(cfg.CatalogPath); err != nil {
			return fmt.Errorf("load catalog: %w", err)
		}
		slog.Info("Catalog loaded", "path", cfg.CatalogPath, "tasks", len(tasks.Names()))
	}

	m := metrics.New()

	sink, err := newProfileSink(ctx, cfg.Profile, sqliteRepo)
	if err != nil {
		return err
	}
	saver := profile.NewSaver(sink, cfg.Profile.SaveTimeout, m)

	// Initialize services.
	machine := flow.NewMachine(tasks, flow.Options{
		Grounding:         cfg.Features.Grounding,
		TakeBreak:         cfg.Features.TakeBreak,
		RequireOnboarding: cfg.Features.RequireOnboarding,
	})
	hub := live.NewHub(m)
	svc := session.NewService(repo, machine, saver, hub, m)
	sweeper := session.NewSweeper(svc, cfg.SessionTTL, cfg.SessionSweepInterval, hub.CloseSession)

	// Initialize handlers.
	healthHandler := api.NewHealthHandler(repo, 5*time.Second)
	sessionHandler := api.NewSessionHandler(svc, tasks)
	wsHandler := live.NewHandler(hub, svc, cfg.FrontendURL, cfg.IsDevelopment())

	// Setup router.
	r := chi.NewRouter()

	// Global middleware.
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(middleware.CORS(middleware.AllowedOrigins(cfg.FrontendURL, cfg.IsDevelopment())))

	// Public routes.
	healthHandler.RegisterHealth(r)
	r.Handle("/metrics", m.Handler())

	// Session routes carry the anonymous identity.
	r.Group(func(r chi.Router) {
		r.Use(identity.Middleware(repo, cfg.IsDevelopment()))
		sessionHandler.RegisterRoutes(r)
		r.Get("/ws/session", wsHandler.ServeHTTP)
	})

	// Serve embedded frontend (SPA catch-all).
	r.Handle("/*", web.SPAHandler())

	// WebSocket connections are long lived, so there is no WriteTimeout.
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      0,
		IdleTimeout:       120 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return sweeper.Run(gctx)
	})

	if cfg.CatalogPath != "" {
		g.Go(func() error {
			return tasks.Watch(gctx, cfg.CatalogPath)
		})
	}

	g.Go(func() error {
		slog.Info("Server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		slog.Info("Shutting down gracefully...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server forced to shutdown: %w", err)
		}
		return nil
	})

	return g.Wait()
}

// openStore returns the configured repository and, for SQLite, the concrete
// store so it can double as a profile sink.
func openStore(ctx context.Context, cfg *config.Config) (store.Repository, *store.SQLiteStore, error) {
	if cfg.Store == config.StoreMemory {
		slog.Warn("Using in-memory store, sessions are lost on restart")
		return store.NewMemory(), nil, nil
	}

	repo, err := store.NewSQLite(cfg.DBPath)
	if err != nil {
		return nil, nil, fmt.Errorf("initialize database: %w", err)
	}
	if err := repo.Ping(ctx); err != nil {
		_ = repo.Close()
		return nil, nil, fmt.Errorf("database health check: %w", err)
	}
	slog.Info("Database connected", "path", cfg.DBPath)
	return repo, repo, nil
}

func newProfileSink(ctx context.Context, cfg config.ProfileConfig, sqliteRepo *store.SQLiteStore) (profile.Sink, error) {
	var sink profile.Sink
	switch cfg.Sink {
	case config.SinkSheets:
		sheets, err := profile.NewSheetsSink(ctx, cfg.SpreadsheetID, cfg.Range, cfg.CredentialsFile)
		if err != nil {
			return nil, fmt.Errorf("initialize sheets sink: %w", err)
		}
		sink = sheets
	case config.SinkSQLite:
		sink = profile.NewRepositorySink(sqliteRepo)
	default:
		slog.Info("Profile persistence disabled")
		return profile.Disabled(), nil
	}

	slog.Info("Profile sink ready", "sink", sink.Name(), "rate_per_minute", cfg.RatePerMinute)
	return profile.WithRateLimit(sink, cfg.RatePerMinute, 1), nil
}
