// Package main is the entrypoint for the InferPipe batch trigger. In
// reactive mode it listens for data-object notifications and submits one
// transform run per object; in scheduled mode it sweeps closed time buckets
// on an interval, resuming from a persisted cursor.
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
	"github.com/inferpipe/inferpipe/internal/inference"
	"github.com/inferpipe/inferpipe/internal/objstore"
	"github.com/inferpipe/inferpipe/internal/trigger"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := run(); err != nil {
		slog.Error("trigger failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	slog.Info("config loaded",
		"mode", cfg.Trigger.Mode,
		"inference_backend", cfg.Inference.Backend,
		"bucket", cfg.Storage.Bucket)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sess, err := awsutil.NewSession(cfg.AWS)
	if err != nil {
		return fmt.Errorf("create aws session: %w", err)
	}

	runner, err := inference.NewRunner(cfg.Inference, sess)
	if err != nil {
		return fmt.Errorf("create inference runner: %w", err)
	}
	slog.Info("inference runner initialized", "backend", cfg.Inference.Backend)

	store := objstore.NewS3Store(sess)
	granularity := trigger.Granularity(cfg.Trigger.Granularity)

	opts := []trigger.Option{trigger.WithGranularity(granularity)}
	if cfg.Trigger.CursorURL != "" {
		cursor, err := trigger.NewRedisCursor(cfg.Trigger.CursorURL, granularity)
		if err != nil {
			return fmt.Errorf("create sweep cursor: %w", err)
		}
		opts = append(opts, trigger.WithCursor(cursor))
	}

	trg := trigger.New(store, runner, cfg.Storage.Bucket, cfg.Inference.ModelName, opts...)

	switch cfg.Trigger.Mode {
	case "reactive":
		if cfg.Storage.DataQueueURL == "" {
			return errors.New("DATA_NOTIFY_QUEUE_URL is required when TRIGGER_MODE is reactive")
		}
		source := objstore.NewSQSSource(sess, cfg.Storage.DataQueueURL)
		slog.Info("trigger listening for data notifications", "queue_url", cfg.Storage.DataQueueURL)
		err = trg.RunReactive(ctx, source)
	case "scheduled":
		slog.Info("trigger sweeping on schedule",
			"granularity", cfg.Trigger.Granularity,
			"interval", cfg.Trigger.SweepInterval)
		err = trg.RunScheduled(ctx, cfg.Trigger.SweepInterval)
	default:
		return fmt.Errorf("unknown trigger mode %q", cfg.Trigger.Mode)
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	slog.Info("trigger stopped gracefully")
	return nil
}
