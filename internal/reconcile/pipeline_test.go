package reconcile_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inferpipe/inferpipe/internal/api"
	"github.com/inferpipe/inferpipe/internal/api/handler"
	"github.com/inferpipe/inferpipe/internal/inference"
	"github.com/inferpipe/inferpipe/internal/linecodec"
	"github.com/inferpipe/inferpipe/internal/objstore"
	"github.com/inferpipe/inferpipe/internal/queue"
	"github.com/inferpipe/inferpipe/internal/reconcile"
	"github.com/inferpipe/inferpipe/internal/trigger"
	"github.com/inferpipe/inferpipe/internal/window"
)

// captureQueue collects published payloads as queue records with a fixed
// arrival time, playing the queue between the server and the windower.
type captureQueue struct {
	arrival time.Time
	records []queue.Record
}

func (q *captureQueue) Put(_ context.Context, partitionKey string, data []byte) error {
	q.records = append(q.records, queue.Record{
		PartitionKey: partitionKey,
		ArrivalTime:  q.arrival,
		Data:         data,
	})
	return nil
}

func getJob(t *testing.T, router http.Handler, jobID string) map[string]any {
	t.Helper()
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/job/"+jobID, nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var job map[string]any
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&job))
	return job
}

// TestPipeline_SubmitToProcessed drives one payload through every stage:
// submit, window, trigger, a stand-in inference pass, reconcile, poll.
func TestPipeline_SubmitToProcessed(t *testing.T) {
	ctx := context.Background()
	reg := newMockRegistry()
	store := objstore.NewMemoryStore()
	q := &captureQueue{arrival: time.Unix(1710500000, 0)}

	router := api.NewRouter(api.Dependencies{
		SubmitHandler: handler.NewSubmitHandler(reg, q),
		GetJobHandler: handler.NewGetJobHandler(reg),
	})

	// Front door: submit one payload.
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/job", strings.NewReader("abc")))
	require.Equal(t, http.StatusOK, rec.Code)

	var submitted struct {
		JobID string `json:"job_id"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&submitted))
	require.Len(t, q.records, 1)

	// Queued and without a result until the pipeline catches up.
	job := getJob(t, router, submitted.JobID)
	assert.Equal(t, "Queued", job["status"])
	assert.Nil(t, job["result"])

	// Windower materializes the queued batch as one window object.
	w := window.New(store, bucket,
		window.WithClock(fixedClock(time.Date(2024, 3, 15, 10, 5, 0, 0, time.UTC))),
		window.WithBatchID(func() string { return "batch-1" }),
	)
	require.NoError(t, w.HandleBatch(ctx, q.records))
	windowKey := "data/2024/3/15/10/5/batch-1/data"

	// Reactive trigger picks up the object-created notification.
	runner := inference.NewMockRunner()
	tr := trigger.New(store, runner, bucket, "test-model")
	source := objstore.NewChannelSource()
	source.C <- objstore.Event{Bucket: bucket, Key: windowKey}
	close(source.C)
	require.NoError(t, tr.RunReactive(ctx, source))

	runs := runner.Runs()
	require.Len(t, runs, 1)
	assert.Equal(t, "s3://"+bucket+"/"+windowKey, runs[0].InputLocation)

	// Stand in for the inference service: read the window object, join the
	// model output back onto the id and arrival columns, write the result
	// object under the run's output location.
	input, err := store.Get(ctx, bucket, windowKey)
	require.NoError(t, err)

	var out strings.Builder
	for _, line := range linecodec.SplitLines(string(input)) {
		in, err := linecodec.DecodeLine(line)
		require.NoError(t, err)
		assert.Equal(t, submitted.JobID, in.Key)
		assert.Equal(t, "abc", in.Value)

		joined, err := linecodec.EncodeLine(linecodec.Record{
			Key:       in.Key,
			Timestamp: in.Timestamp,
			Value:     "positive",
		})
		require.NoError(t, err)
		out.WriteString(joined + "\n")
	}
	resultKey := strings.TrimPrefix(runs[0].OutputLocation, "s3://"+bucket+"/") + "/data.csv.out"
	require.NoError(t, store.Put(ctx, bucket, resultKey, []byte(out.String())))

	// Reconciler folds the result object back into the registry.
	r := reconcile.New(store, reg, reconcile.WithClock(fixedClock(time.Unix(1710500100, 0))))
	require.NoError(t, r.HandleObjectCreated(ctx, objstore.Event{Bucket: bucket, Key: resultKey}))

	// The poll now reports the processed record with both timestamps.
	job = getJob(t, router, submitted.JobID)
	assert.Equal(t, submitted.JobID, job["jobId"])
	assert.Equal(t, "Processed", job["status"])
	assert.Equal(t, "positive", job["result"])
	assert.EqualValues(t, 1710500000, job["arrivalTime"])
	assert.EqualValues(t, 1710500100, job["processedTime"])
}
