// Package main is the entrypoint for the InferPipe result reconciler: the
// consumer that turns inference output objects into Processed registry rows.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/inferpipe/inferpipe/internal/awsutil"
	"github.com/inferpipe/inferpipe/internal/config"
	"github.com/inferpipe/inferpipe/internal/objstore"
	"github.com/inferpipe/inferpipe/internal/reconcile"
	"github.com/inferpipe/inferpipe/internal/registry"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := run(); err != nil {
		slog.Error("reconciler failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if cfg.Storage.ResultQueueURL == "" {
		return errors.New("RESULT_NOTIFY_QUEUE_URL is required")
	}
	slog.Info("config loaded", "registry_backend", cfg.Registry.Backend)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sess, err := awsutil.NewSession(cfg.AWS)
	if err != nil {
		return fmt.Errorf("create aws session: %w", err)
	}

	reg, err := registry.New(ctx, cfg.Registry, sess)
	if err != nil {
		return fmt.Errorf("create registry: %w", err)
	}
	defer reg.Close()

	if err := reg.Ping(ctx); err != nil {
		return fmt.Errorf("ping registry: %w", err)
	}
	slog.Info("registry connected", "backend", cfg.Registry.Backend)

	rec := reconcile.New(objstore.NewS3Store(sess), reg)
	source := objstore.NewSQSSource(sess, cfg.Storage.ResultQueueURL)

	slog.Info("reconciler listening for result notifications", "queue_url", cfg.Storage.ResultQueueURL)
	if err := rec.Run(ctx, source); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("reconcile: %w", err)
	}

	slog.Info("reconciler stopped gracefully")
	return nil
}
