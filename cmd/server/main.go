// Package main is the entrypoint for the InferPipe API server: the HTTP
// front door that accepts job submissions and serves status polls.
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

	"github.com/inferpipe/inferpipe/internal/api"
	"github.com/inferpipe/inferpipe/internal/api/handler"
	"github.com/inferpipe/inferpipe/internal/api/response"
	"github.com/inferpipe/inferpipe/internal/awsutil"
	"github.com/inferpipe/inferpipe/internal/config"
	"github.com/inferpipe/inferpipe/internal/queue"
	"github.com/inferpipe/inferpipe/internal/registry"
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
	// 1. Load config — fail fast on invalid config
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	slog.Info("config loaded",
		"registry_backend", cfg.Registry.Backend,
		"queue_backend", cfg.Queue.Backend,
		"env", cfg.Server.Env)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 2. Shared AWS session
	sess, err := awsutil.NewSession(cfg.AWS)
	if err != nil {
		return fmt.Errorf("create aws session: %w", err)
	}

	// 3. Job registry
	reg, err := registry.New(ctx, cfg.Registry, sess)
	if err != nil {
		return fmt.Errorf("create registry: %w", err)
	}
	defer reg.Close()

	if err := reg.Ping(ctx); err != nil {
		return fmt.Errorf("ping registry: %w", err)
	}
	slog.Info("registry connected", "backend", cfg.Registry.Backend)

	// 4. Ingestion queue publisher
	publisher, err := queue.NewPublisher(cfg.Queue, sess)
	if err != nil {
		return fmt.Errorf("create queue publisher: %w", err)
	}
	slog.Info("queue publisher initialized", "backend", cfg.Queue.Backend)

	// 5. Build router with dependencies
	deps := api.Dependencies{
		SubmitHandler: handler.NewSubmitHandler(reg, publisher),
		GetJobHandler: handler.NewGetJobHandler(reg),
		HealthHandler: healthHandler(reg),
	}

	router := api.NewRouter(deps)

	// 6. Start HTTP server
	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
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

// healthHandler checks registry connectivity.
func healthHandler(reg registry.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := reg.Ping(r.Context()); err != nil {
			response.Error(w, http.StatusServiceUnavailable, "DEGRADED", "Registry unreachable")
			return
		}
		response.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
