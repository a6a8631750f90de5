// Package window materializes queue delivery batches as durable, time-bucketed
// objects. One successful invocation writes exactly one object; downstream
// triggers treat each object (or a time prefix of objects) as one inference
// input.
package window

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/inferpipe/inferpipe/internal/linecodec"
	"github.com/inferpipe/inferpipe/internal/objstore"
	"github.com/inferpipe/inferpipe/internal/queue"
	"github.com/inferpipe/inferpipe/pkg/models"
)

// Windower drains one delivery batch into one window object.
type Windower struct {
	store  objstore.Store
	bucket string

	now        func() time.Time
	newBatchID func() string
}

type Option func(*Windower)

// WithClock overrides the wall clock used for window paths.
func WithClock(now func() time.Time) Option {
	return func(w *Windower) { w.now = now }
}

// WithBatchID overrides batch-ID generation.
func WithBatchID(gen func() string) Option {
	return func(w *Windower) { w.newBatchID = gen }
}

func New(store objstore.Store, bucket string, opts ...Option) *Windower {
	w := &Windower{
		store:      store,
		bucket:     bucket,
		now:        time.Now,
		newBatchID: func() string { return uuid.NewString() },
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// HandleBatch writes all records of one delivery batch, in delivery order, as
// a single object. The write is all-or-nothing: on failure the whole batch
// stays unacknowledged and the queue redelivers it. Records whose payload
// violates the line codec are logged and skipped; retrying cannot fix them.
func (w *Windower) HandleBatch(ctx context.Context, records []queue.Record) error {
	if len(records) == 0 {
		slog.Info("empty delivery batch, no window written")
		return nil
	}

	var buf strings.Builder
	lines := 0
	for _, r := range records {
		line, err := linecodec.EncodeLine(linecodec.Record{
			Key:       r.PartitionKey,
			Timestamp: models.NumericSeconds(r.ArrivalTime).String(),
			Value:     string(r.Data),
		})
		if err != nil {
			slog.Warn("dropping record with unencodable payload",
				"job_id", r.PartitionKey, "error", err)
			continue
		}
		buf.WriteString(line)
		buf.WriteString("\n")
		lines++
	}

	key := Path(w.now(), w.newBatchID())
	if err := w.store.Put(ctx, w.bucket, key, []byte(buf.String())); err != nil {
		return fmt.Errorf("write window object: %w", err)
	}

	slog.Info("window written", "bucket", w.bucket, "key", key, "records", lines)
	return nil
}

// Path returns the window object key for a batch materialized at t. The time
// components are unpadded decimal; the batch ID keeps two invocations within
// the same minute from colliding.
func Path(t time.Time, batchID string) string {
	return fmt.Sprintf("data/%d/%d/%d/%d/%d/%s/data",
		t.Year(), int(t.Month()), t.Day(), t.Hour(), t.Minute(), batchID)
}
