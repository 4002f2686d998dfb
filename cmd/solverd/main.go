// Package main is the entrypoint for solverd, the plate-solving service
// that wraps the astrometry.net solve-field binary.
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

	"github.com/joho/godotenv"
	"github.com/skyanchor/skyanchor/internal/config"
	"github.com/skyanchor/skyanchor/internal/janitor"
	"github.com/skyanchor/skyanchor/internal/solver"
	"github.com/skyanchor/skyanchor/internal/solverapi"
)

const shutdownTimeout = 30 * time.Second

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := run(); err != nil {
		slog.Error("solverd failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	if err := godotenv.Load(); err != nil {
		slog.Info("no .env file found")
	}

	cfg, err := config.LoadSolver()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	slog.Info("config loaded", "solver_bin", cfg.BinPath, "workers", cfg.Workers)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	jobStore := solver.NewMemoryJobStore()
	runner := solver.NewFieldRunner(cfg.BinPath, cfg.CPULimit)

	svc, err := solver.NewService(jobStore, runner, cfg.UploadDir, cfg.ResultsDir, cfg.Workers, cfg.QueueSize)
	if err != nil {
		return fmt.Errorf("create solver service: %w", err)
	}
	svc.Start(ctx)

	jan := janitor.New(jobStore, cfg.UploadDir, cfg.ResultsDir, cfg.JobRetention)
	if err := jan.Start(cfg.CleanupCron); err != nil {
		return fmt.Errorf("start janitor: %w", err)
	}
	defer jan.Stop()

	router := solverapi.NewRouter(solverapi.Dependencies{
		Solver:     svc,
		BinPath:    cfg.BinPath,
		APIKeyHash: cfg.APIKeyHash,
	})

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("solverd listening", "addr", addr)
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

	slog.Info("solverd stopped gracefully")
	return nil
}
