package registry

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/inferpipe/inferpipe/pkg/models"
)

// upsertJobSQL overwrites every field except status, which never demotes a
// Processed job back to Queued (a late duplicate submission must not undo
// reconciliation).
const upsertJobSQL = `
	INSERT INTO jobs (job_id, status, arrival_time, processed_time, result, updated_at)
	VALUES ($1, $2, $3, $4, $5, NOW())
	ON CONFLICT (job_id) DO UPDATE SET
	  status = CASE WHEN jobs.status = 'Processed' THEN jobs.status ELSE EXCLUDED.status END,
	  arrival_time = EXCLUDED.arrival_time,
	  processed_time = EXCLUDED.processed_time,
	  result = EXCLUDED.result,
	  updated_at = NOW()`

// PostgresRegistry implements the Registry interface using pgx/v5.
type PostgresRegistry struct {
	pool *pgxpool.Pool
}

// NewPostgresRegistry creates a new PostgresRegistry.
func NewPostgresRegistry(pool *pgxpool.Pool) *PostgresRegistry {
	return &PostgresRegistry{pool: pool}
}

// Ping checks database connectivity.
func (r *PostgresRegistry) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

func (r *PostgresRegistry) Close() {
	r.pool.Close()
}

func (r *PostgresRegistry) Put(ctx context.Context, job *models.Job) error {
	_, err := r.pool.Exec(ctx, upsertJobSQL,
		job.JobID, job.Status, job.ArrivalTime, job.ProcessedTime, job.Result)
	if err != nil {
		return fmt.Errorf("put job %s: %w", job.JobID, err)
	}
	return nil
}

func (r *PostgresRegistry) Get(ctx context.Context, jobID string) (*models.Job, error) {
	var j models.Job
	err := r.pool.QueryRow(ctx,
		`SELECT job_id, status, arrival_time, processed_time, result FROM jobs WHERE job_id = $1`,
		jobID,
	).Scan(&j.JobID, &j.Status, &j.ArrivalTime, &j.ProcessedTime, &j.Result)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get job %s: %w", jobID, err)
	}
	return &j, nil
}

// BatchPut upserts all jobs in one round trip.
func (r *PostgresRegistry) BatchPut(ctx context.Context, jobs []*models.Job) error {
	if len(jobs) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, job := range jobs {
		batch.Queue(upsertJobSQL,
			job.JobID, job.Status, job.ArrivalTime, job.ProcessedTime, job.Result)
	}

	results := r.pool.SendBatch(ctx, batch)
	defer results.Close()

	for _, job := range jobs {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("batch put job %s: %w", job.JobID, err)
		}
	}
	return nil
}

var _ Registry = (*PostgresRegistry)(nil)
