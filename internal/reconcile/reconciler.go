// Package reconcile merges inference output back into the job registry. Each
// result object yields one batched registry write marking its jobs Processed.
package reconcile

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/inferpipe/inferpipe/internal/linecodec"
	"github.com/inferpipe/inferpipe/internal/objstore"
	"github.com/inferpipe/inferpipe/internal/registry"
	"github.com/inferpipe/inferpipe/pkg/models"
)

// Reconciler applies result objects to the registry.
type Reconciler struct {
	store    objstore.Store
	registry registry.Registry
	now      func() time.Time
}

type Option func(*Reconciler)

// WithClock overrides the processed-time clock.
func WithClock(now func() time.Time) Option {
	return func(r *Reconciler) { r.now = now }
}

func New(store objstore.Store, reg registry.Registry, opts ...Option) *Reconciler {
	r := &Reconciler{store: store, registry: reg, now: time.Now}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run consumes result-object notifications until the context ends.
func (r *Reconciler) Run(ctx context.Context, source objstore.Source) error {
	return source.Listen(ctx, r.HandleObjectCreated)
}

// HandleObjectCreated reads one result object and upserts a Processed record
// per well-formed line, all in a single batched write. Malformed lines are
// logged and skipped so one bad line cannot void the batch. Reprocessing the
// same object is idempotent except for the processed time, which advances.
func (r *Reconciler) HandleObjectCreated(ctx context.Context, ev objstore.Event) error {
	body, err := r.store.Get(ctx, ev.Bucket, ev.Key)
	if err != nil {
		return fmt.Errorf("read result object: %w", err)
	}

	processedTime := models.NumericSeconds(r.now())

	var jobs []*models.Job
	malformed := 0
	for i, line := range linecodec.SplitLines(string(body)) {
		rec, err := linecodec.DecodeLine(line)
		if err != nil {
			slog.Warn("skipping malformed result line",
				"bucket", ev.Bucket, "key", ev.Key, "line", i+1, "error", err)
			malformed++
			continue
		}
		jobs = append(jobs, &models.Job{
			JobID:         rec.Key,
			Status:        models.JobStatusProcessed,
			ArrivalTime:   models.Numeric(rec.Timestamp),
			ProcessedTime: processedTime,
			Result:        rec.Value,
		})
	}

	if len(jobs) > 0 {
		if err := r.registry.BatchPut(ctx, jobs); err != nil {
			return fmt.Errorf("update registry from %s: %w", ev.Key, err)
		}
	}

	slog.Info("result object reconciled",
		"bucket", ev.Bucket, "key", ev.Key, "jobs", len(jobs), "malformed", malformed)
	return nil
}
