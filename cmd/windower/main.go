// Package main is the entrypoint for the InferPipe windower: the consumer
// that drains ingestion-queue batches and writes each one as a single
// time-prefixed object in the data store.
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
	"github.com/inferpipe/inferpipe/internal/queue"
	"github.com/inferpipe/inferpipe/internal/window"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := run(); err != nil {
		slog.Error("windower failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	slog.Info("config loaded",
		"queue_backend", cfg.Queue.Backend,
		"bucket", cfg.Storage.Bucket,
		"batch_size", cfg.Queue.BatchSize)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sess, err := awsutil.NewSession(cfg.AWS)
	if err != nil {
		return fmt.Errorf("create aws session: %w", err)
	}

	consumer, err := queue.NewConsumer(cfg.Queue, sess)
	if err != nil {
		return fmt.Errorf("create queue consumer: %w", err)
	}
	slog.Info("queue consumer initialized", "backend", cfg.Queue.Backend)

	w := window.New(objstore.NewS3Store(sess), cfg.Storage.Bucket)

	slog.Info("windower consuming")
	if err := consumer.Consume(ctx, w.HandleBatch); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("consume: %w", err)
	}

	slog.Info("windower stopped gracefully")
	return nil
}
