// Package trigger launches batch-inference runs over materialized windows,
// either reactively when a window object appears or on a schedule that sweeps
// time-bucketed prefixes.
package trigger

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/inferpipe/inferpipe/internal/inference"
	"github.com/inferpipe/inferpipe/internal/objstore"
)

// maxSweepBuckets bounds how far one tick catches up after extended downtime;
// the remainder is picked up by following ticks.
const maxSweepBuckets = 500

// Trigger submits inference runs. The reactive path handles object-created
// notifications; the scheduled path sweeps the prefixes between the persisted
// cursor and the previous period.
type Trigger struct {
	store  objstore.Store
	runner inference.Runner
	bucket string
	model  string

	granularity Granularity
	cursor      Cursor
	now         func() time.Time
}

type Option func(*Trigger)

// WithGranularity sets the scheduled sweep resolution.
func WithGranularity(g Granularity) Option {
	return func(t *Trigger) { t.granularity = g }
}

// WithCursor sets the persisted sweep cursor.
func WithCursor(c Cursor) Option {
	return func(t *Trigger) { t.cursor = c }
}

// WithClock overrides the wall clock.
func WithClock(now func() time.Time) Option {
	return func(t *Trigger) { t.now = now }
}

func New(store objstore.Store, runner inference.Runner, bucket, model string, opts ...Option) *Trigger {
	t := &Trigger{
		store:       store,
		runner:      runner,
		bucket:      bucket,
		model:       model,
		granularity: Hour,
		cursor:      NewMemoryCursor(),
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// RunReactive consumes object-created notifications until the context ends.
func (t *Trigger) RunReactive(ctx context.Context, source objstore.Source) error {
	return source.Listen(ctx, t.HandleObjectCreated)
}

// HandleObjectCreated submits one inference run over the notified object.
// Notifications are at-least-once; the deterministic job name turns a
// duplicate delivery into an already-exists response, which is success.
func (t *Trigger) HandleObjectCreated(ctx context.Context, ev objstore.Event) error {
	run := inference.Run{
		JobName:        JobName(ev.Bucket, ev.Key),
		ModelName:      t.model,
		InputLocation:  s3URI(ev.Bucket, ev.Key),
		OutputLocation: s3URI(ev.Bucket, ResultPath(ev.Key)),
	}

	err := t.runner.Submit(ctx, run)
	if errors.Is(err, inference.ErrAlreadyExists) {
		slog.Info("inference run already submitted for object",
			"bucket", ev.Bucket, "key", ev.Key, "job_name", run.JobName)
		return nil
	}
	return err
}

// RunScheduled sweeps on every tick until the context ends. A failed sweep is
// logged and retried at the next tick; the cursor keeps its position.
func (t *Trigger) RunScheduled(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := t.Sweep(ctx); err != nil {
				slog.Error("sweep failed, retrying at next tick", "error", err)
			}
		}
	}
}

// Sweep processes every bucket from the cursor up to and including the
// immediately preceding period, advancing the cursor after each bucket so a
// mid-sweep failure resumes where it stopped.
func (t *Trigger) Sweep(ctx context.Context) error {
	prev := t.granularity.Prev(t.granularity.Truncate(t.now()))

	start := prev
	cur, ok, err := t.cursor.Get(ctx)
	if err != nil {
		return err
	}
	if ok {
		start = t.granularity.Next(t.granularity.Truncate(cur))
	}
	if start.After(prev) {
		return nil
	}

	swept := 0
	for b := start; !b.After(prev); b = t.granularity.Next(b) {
		if swept == maxSweepBuckets {
			slog.Warn("sweep bucket cap reached, remaining buckets deferred to next tick",
				"swept", swept, "next", t.granularity.Prefix(b))
			return nil
		}
		if err := t.sweepBucket(ctx, b); err != nil {
			return err
		}
		if err := t.cursor.Set(ctx, b); err != nil {
			return err
		}
		swept++
	}
	return nil
}

func (t *Trigger) sweepBucket(ctx context.Context, bucketStart time.Time) error {
	prefix := t.granularity.Prefix(bucketStart)

	keys, err := t.store.List(ctx, t.bucket, prefix)
	if err != nil {
		return fmt.Errorf("list prefix %s: %w", prefix, err)
	}
	if len(keys) == 0 {
		slog.Info("no objects available for processing", "prefix", prefix)
		return nil
	}

	run := inference.Run{
		JobName:        JobName(t.bucket, prefix),
		ModelName:      t.model,
		InputLocation:  s3URI(t.bucket, prefix),
		OutputLocation: s3URI(t.bucket, ResultPath(prefix)),
	}

	err = t.runner.Submit(ctx, run)
	if errors.Is(err, inference.ErrAlreadyExists) {
		slog.Info("inference run already submitted for prefix",
			"prefix", prefix, "job_name", run.JobName)
		return nil
	}
	if err != nil {
		return err
	}

	slog.Info("sweep submitted inference run", "prefix", prefix, "objects", len(keys))
	return nil
}

// ResultPath derives the output location for an input key or prefix: the
// first path segment is replaced with "result" and the final segment (the
// object name, or the empty segment of a trailing slash) is dropped, so the
// result hierarchy mirrors the input under a sibling namespace.
func ResultPath(key string) string {
	segs := strings.Split(key, "/")
	if len(segs) > 1 {
		segs = segs[1 : len(segs)-1]
	}
	return "result/" + strings.Join(segs, "/")
}

// JobName derives a deterministic inference job name from the input location,
// so a retried submission for the same input collides with the first instead
// of running twice.
func JobName(bucket, key string) string {
	sum := sha256.Sum256([]byte(bucket + "/" + key))
	return fmt.Sprintf("inferpipe-%x", sum[:16])
}

func s3URI(bucket, key string) string {
	return fmt.Sprintf("s3://%s/%s", bucket, key)
}
