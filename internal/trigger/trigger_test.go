package trigger_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inferpipe/inferpipe/internal/inference"
	"github.com/inferpipe/inferpipe/internal/objstore"
	"github.com/inferpipe/inferpipe/internal/trigger"
)

const (
	bucket = "inferpipe-test"
	model  = "test-model"
)

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

// --- reactive variant ---

func TestHandleObjectCreated_SubmitsRun(t *testing.T) {
	runner := inference.NewMockRunner()
	tr := trigger.New(objstore.NewMemoryStore(), runner, bucket, model)

	key := "data/2024/3/15/10/5/batch-1/data"
	err := tr.HandleObjectCreated(context.Background(), objstore.Event{Bucket: bucket, Key: key})
	require.NoError(t, err)

	runs := runner.Runs()
	require.Len(t, runs, 1)
	assert.Equal(t, model, runs[0].ModelName)
	assert.Equal(t, "s3://inferpipe-test/data/2024/3/15/10/5/batch-1/data", runs[0].InputLocation)
	assert.Equal(t, "s3://inferpipe-test/result/2024/3/15/10/5/batch-1", runs[0].OutputLocation)
	assert.Equal(t, trigger.JobName(bucket, key), runs[0].JobName)
}

func TestHandleObjectCreated_DuplicateNotificationIsIdempotent(t *testing.T) {
	runner := inference.NewMockRunner()
	tr := trigger.New(objstore.NewMemoryStore(), runner, bucket, model)

	ev := objstore.Event{Bucket: bucket, Key: "data/2024/3/15/10/5/batch-1/data"}
	require.NoError(t, tr.HandleObjectCreated(context.Background(), ev))
	require.NoError(t, tr.HandleObjectCreated(context.Background(), ev))

	assert.Len(t, runner.Runs(), 1)
}

func TestHandleObjectCreated_SubmitFailurePropagates(t *testing.T) {
	wantErr := errors.New("service unavailable")
	runner := inference.NewMockRunner()
	runner.SubmitFunc = func(context.Context, inference.Run) error { return wantErr }
	tr := trigger.New(objstore.NewMemoryStore(), runner, bucket, model)

	err := tr.HandleObjectCreated(context.Background(), objstore.Event{Bucket: bucket, Key: "data/2024/1/1/0/0/b/data"})
	assert.ErrorIs(t, err, wantErr)
}

// --- scheduled variant ---

func TestSweep_EmptyPrefixSubmitsNothing(t *testing.T) {
	runner := inference.NewMockRunner()
	tr := trigger.New(objstore.NewMemoryStore(), runner, bucket, model,
		trigger.WithGranularity(trigger.Day),
		trigger.WithClock(fixedClock(time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC))),
	)

	require.NoError(t, tr.Sweep(context.Background()))
	assert.Empty(t, runner.Runs())
}

func TestSweep_PreviousDayPrefix(t *testing.T) {
	store := objstore.NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, store.Put(ctx, bucket, "data/2024/3/14/9/30/b1/data", []byte("j,1,x\n")))

	runner := inference.NewMockRunner()
	tr := trigger.New(store, runner, bucket, model,
		trigger.WithGranularity(trigger.Day),
		trigger.WithClock(fixedClock(time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC))),
	)

	require.NoError(t, tr.Sweep(ctx))

	runs := runner.Runs()
	require.Len(t, runs, 1)
	assert.Equal(t, "s3://inferpipe-test/data/2024/3/14/", runs[0].InputLocation)
	assert.Equal(t, "s3://inferpipe-test/result/2024/3/14", runs[0].OutputLocation)
}

func TestSweep_CursorCatchesUpMissedBuckets(t *testing.T) {
	store := objstore.NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, store.Put(ctx, bucket, "data/2024/3/15/7/0/b1/data", []byte("a,1,x\n")))
	require.NoError(t, store.Put(ctx, bucket, "data/2024/3/15/9/0/b2/data", []byte("b,2,y\n")))

	cursor := trigger.NewMemoryCursor()
	require.NoError(t, cursor.Set(ctx, time.Date(2024, 3, 15, 6, 0, 0, 0, time.UTC)))

	runner := inference.NewMockRunner()
	tr := trigger.New(store, runner, bucket, model,
		trigger.WithGranularity(trigger.Hour),
		trigger.WithCursor(cursor),
		trigger.WithClock(fixedClock(time.Date(2024, 3, 15, 10, 30, 0, 0, time.UTC))),
	)

	require.NoError(t, tr.Sweep(ctx))

	// Hours 7, 8, 9 were due; only 7 and 9 hold objects.
	runs := runner.Runs()
	require.Len(t, runs, 2)
	assert.Equal(t, "s3://inferpipe-test/data/2024/3/15/7/", runs[0].InputLocation)
	assert.Equal(t, "s3://inferpipe-test/data/2024/3/15/9/", runs[1].InputLocation)

	cur, ok, err := cursor.Get(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, time.Date(2024, 3, 15, 9, 0, 0, 0, time.UTC), cur)
}

func TestSweep_NothingNewAfterCursor(t *testing.T) {
	ctx := context.Background()
	cursor := trigger.NewMemoryCursor()
	require.NoError(t, cursor.Set(ctx, time.Date(2024, 3, 15, 9, 0, 0, 0, time.UTC)))

	runner := inference.NewMockRunner()
	tr := trigger.New(objstore.NewMemoryStore(), runner, bucket, model,
		trigger.WithGranularity(trigger.Hour),
		trigger.WithCursor(cursor),
		trigger.WithClock(fixedClock(time.Date(2024, 3, 15, 10, 30, 0, 0, time.UTC))),
	)

	require.NoError(t, tr.Sweep(ctx))
	assert.Empty(t, runner.Runs())
}

func TestSweep_FailedBucketRetriedNextTick(t *testing.T) {
	store := objstore.NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, store.Put(ctx, bucket, "data/2024/3/15/8/0/b1/data", []byte("a,1,x\n")))

	cursor := trigger.NewMemoryCursor()
	require.NoError(t, cursor.Set(ctx, time.Date(2024, 3, 15, 7, 0, 0, 0, time.UTC)))

	wantErr := errors.New("throttled")
	runner := inference.NewMockRunner()
	runner.SubmitFunc = func(context.Context, inference.Run) error { return wantErr }

	tr := trigger.New(store, runner, bucket, model,
		trigger.WithGranularity(trigger.Hour),
		trigger.WithCursor(cursor),
		trigger.WithClock(fixedClock(time.Date(2024, 3, 15, 9, 30, 0, 0, time.UTC))),
	)

	require.ErrorIs(t, tr.Sweep(ctx), wantErr)

	// Cursor did not advance past the failed bucket.
	cur, _, err := cursor.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 3, 15, 7, 0, 0, 0, time.UTC), cur)

	// Next tick succeeds and completes the bucket.
	runner.SubmitFunc = nil
	require.NoError(t, tr.Sweep(ctx))
	require.Len(t, runner.Runs(), 1)
	assert.Equal(t, "s3://inferpipe-test/data/2024/3/15/8/", runner.Runs()[0].InputLocation)
}

// --- path derivation ---

func TestResultPath(t *testing.T) {
	assert.Equal(t, "result/2024/3/15/10/5/batch-1",
		trigger.ResultPath("data/2024/3/15/10/5/batch-1/data"))
	assert.Equal(t, "result/2024/3/14", trigger.ResultPath("data/2024/3/14/"))
	assert.Equal(t, "result/2024", trigger.ResultPath("data/2024/"))
}

func TestGranularityPrefix(t *testing.T) {
	at := time.Date(2024, 3, 14, 9, 5, 0, 0, time.UTC)
	assert.Equal(t, "data/2024/3/14/9/5/", trigger.Minute.Prefix(at))
	assert.Equal(t, "data/2024/3/14/9/", trigger.Hour.Prefix(at))
	assert.Equal(t, "data/2024/3/14/", trigger.Day.Prefix(at))
	assert.Equal(t, "data/2024/3/", trigger.Month.Prefix(at))
	assert.Equal(t, "data/2024/", trigger.Year.Prefix(at))
}

func TestGranularity_PreviousCalendarPeriods(t *testing.T) {
	// Previous month of March 1st is February 1st.
	mar := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC), trigger.Month.Prev(mar))

	// Previous year of 2024 is 2023.
	y := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC), trigger.Year.Prev(y))
}

func TestJobName_DeterministicAndDistinct(t *testing.T) {
	a := trigger.JobName("b", "data/2024/3/14/")
	assert.Equal(t, a, trigger.JobName("b", "data/2024/3/14/"))
	assert.NotEqual(t, a, trigger.JobName("b", "data/2024/3/15/"))
	assert.LessOrEqual(t, len(a), 63)
}
