// Package main is the entrypoint for the SkyAnchor backend API server.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/skyanchor/skyanchor/internal/api"
	"github.com/skyanchor/skyanchor/internal/api/handler"
	mw "github.com/skyanchor/skyanchor/internal/api/middleware"
	"github.com/skyanchor/skyanchor/internal/api/response"
	"github.com/skyanchor/skyanchor/internal/archive"
	"github.com/skyanchor/skyanchor/internal/cache"
	"github.com/skyanchor/skyanchor/internal/config"
	"github.com/skyanchor/skyanchor/internal/positioning"
	"github.com/skyanchor/skyanchor/internal/solveclient"
	"github.com/skyanchor/skyanchor/internal/store"
)

const shutdownTimeout = 30 * time.Second

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := run(); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	if err := godotenv.Load(); err != nil {
		slog.Info("no .env file found")
	}

	// 1. Load config — fail fast on invalid config
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	slog.Info("config loaded", "env", cfg.Server.Env, "solver", cfg.Astrometry.BaseURL)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 2. Connect to database
	pool, err := store.Connect(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer pool.Close()
	slog.Info("database connected")

	// 3. Run migrations
	if err := store.RunMigrations(cfg.Database.URL, "migrations"); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	slog.Info("database migrations applied")

	// 4. Create Redis cache
	redisCache, err := cache.NewRedisCache(cfg.Redis.URL)
	if err != nil {
		return fmt.Errorf("create redis cache: %w", err)
	}
	defer redisCache.Close()

	if err := redisCache.Ping(ctx); err != nil {
		return fmt.Errorf("ping redis: %w", err)
	}
	slog.Info("redis connected")

	// 5. Solve client against solverd
	solveClient := solveclient.NewHTTPClient(cfg.Astrometry.BaseURL, cfg.Astrometry.APIKey, cfg.Astrometry.Timeout)
	if err := solveClient.Health(ctx); err != nil {
		// The solver may come up after us; solves fail cleanly until then.
		slog.Warn("solver service not reachable", "error", err)
	}

	// 6. Optional image archival
	var archiver positioning.Archiver
	if cfg.Archive.Enabled {
		a, err := archive.NewMinIOArchiver(ctx, cfg.Archive)
		if err != nil {
			return fmt.Errorf("create archiver: %w", err)
		}
		archiver = a
		slog.Info("image archival enabled", "bucket", cfg.Archive.Bucket)
	}

	// 7. Positioning service + store
	pgStore := store.NewPostgresStore(pool)
	posService := positioning.NewService(solveClient, pgStore, redisCache, archiver,
		cfg.Astrometry.PollInterval, cfg.Astrometry.MaxWait)

	// 8. Build router with dependencies
	deps := api.Dependencies{
		RateLimit:      mw.NewRateLimit(redisCache, 10),
		HealthHandler:  healthHandler(pgStore, redisCache, solveClient),
		SolveHandler:   handler.NewSolveHandler(posService, cfg.Upload.Dir),
		HistoryHandler: handler.NewHistoryHandler(posService),
	}
	router := api.NewRouter(deps)

	// 9. Start HTTP server
	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: router,
		// Solves block the request for up to the wait ceiling.
		ReadTimeout:  60 * time.Second,
		WriteTimeout: cfg.Astrometry.MaxWait + 30*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
		slog.Info("shutdown signal received, draining connections...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	slog.Info("server stopped gracefully")
	return nil
}

// healthHandler checks database, cache, and solver service connectivity.
func healthHandler(s store.Store, c cache.Cache, sc solveclient.Client) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		checks := map[string]string{
			"database": "ok",
			"cache":    "ok",
			"solver":   "ok",
		}

		if err := s.Ping(r.Context()); err != nil {
			checks["database"] = "degraded"
		}
		if err := c.Ping(r.Context()); err != nil {
			checks["cache"] = "degraded"
		}
		if err := sc.Health(r.Context()); err != nil {
			checks["solver"] = "degraded"
		}

		status := "ok"
		for _, v := range checks {
			if v != "ok" {
				status = "degraded"
			}
		}

		body := map[string]any{"status": status, "services": checks}
		if status != "ok" {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusServiceUnavailable)
			json.NewEncoder(w).Encode(body)
			return
		}
		response.JSON(w, body)
	}
}
