package registry_test

import (
	"context"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/inferpipe/inferpipe/internal/registry"
	"github.com/inferpipe/inferpipe/pkg/models"
)

// migrationsDir returns the absolute path to the migrations directory.
func migrationsDir() string {
	_, filename, _, _ := runtime.Caller(0)
	return filepath.Join(filepath.Dir(filename), "..", "..", "migrations")
}

// setupTestDB spins up a Postgres container, runs migrations, and returns a pool + cleanup.
func setupTestDB(t *testing.T) *pgxpool.Pool {
	t.Helper()
	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("inferpipe_test"),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	require.NoError(t, err)

	t.Cleanup(func() {
		require.NoError(t, pgContainer.Terminate(ctx))
	})

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	err = registry.RunMigrations(connStr, migrationsDir())
	require.NoError(t, err)

	pool, err := pgxpool.New(ctx, connStr)
	require.NoError(t, err)
	t.Cleanup(func() { pool.Close() })

	return pool
}

func setupRegistry(t *testing.T) registry.Registry {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	return registry.NewPostgresRegistry(setupTestDB(t))
}

func TestPutAndGet(t *testing.T) {
	r := setupRegistry(t)
	ctx := context.Background()

	err := r.Put(ctx, &models.Job{JobID: "job-1", Status: models.JobStatusQueued})
	require.NoError(t, err)

	job, err := r.Get(ctx, "job-1")
	require.NoError(t, err)
	assert.Equal(t, "job-1", job.JobID)
	assert.Equal(t, models.JobStatusQueued, job.Status)
	assert.Empty(t, job.Result)
}

func TestGet_NotFound(t *testing.T) {
	r := setupRegistry(t)

	_, err := r.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, registry.ErrNotFound)
}

func TestPut_UpsertCreatesUnknownJob(t *testing.T) {
	r := setupRegistry(t)
	ctx := context.Background()

	// A reconciliation write for a job the server never inserted creates the row.
	err := r.Put(ctx, &models.Job{
		JobID:         "job-2",
		Status:        models.JobStatusProcessed,
		ArrivalTime:   "1710501234",
		ProcessedTime: "1710501300.25",
		Result:        "42",
	})
	require.NoError(t, err)

	job, err := r.Get(ctx, "job-2")
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusProcessed, job.Status)
	assert.Equal(t, models.Numeric("1710501234"), job.ArrivalTime)
	assert.Equal(t, "42", job.Result)
}

func TestPut_StatusNeverDemotes(t *testing.T) {
	r := setupRegistry(t)
	ctx := context.Background()

	require.NoError(t, r.Put(ctx, &models.Job{
		JobID:  "job-3",
		Status: models.JobStatusProcessed,
		Result: "done",
	}))

	// A late duplicate submission must not flip the job back to Queued.
	require.NoError(t, r.Put(ctx, &models.Job{JobID: "job-3", Status: models.JobStatusQueued}))

	job, err := r.Get(ctx, "job-3")
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusProcessed, job.Status)
}

func TestBatchPut(t *testing.T) {
	r := setupRegistry(t)
	ctx := context.Background()

	jobs := []*models.Job{
		{JobID: "job-a", Status: models.JobStatusProcessed, ArrivalTime: "1", ProcessedTime: "2", Result: "x"},
		{JobID: "job-b", Status: models.JobStatusProcessed, ArrivalTime: "3", ProcessedTime: "4", Result: "y"},
		{JobID: "job-c", Status: models.JobStatusProcessed, ArrivalTime: "5", ProcessedTime: "6", Result: "z"},
	}
	require.NoError(t, r.BatchPut(ctx, jobs))

	for _, want := range jobs {
		got, err := r.Get(ctx, want.JobID)
		require.NoError(t, err)
		assert.Equal(t, want.Result, got.Result)
		assert.Equal(t, models.JobStatusProcessed, got.Status)
	}
}

func TestBatchPut_Empty(t *testing.T) {
	r := setupRegistry(t)
	require.NoError(t, r.BatchPut(context.Background(), nil))
}
