// Package registry is the durable job-status store. One record per job ID,
// written by the API server at submission (Queued) and by the reconciler when
// inference output lands (Processed).
package registry

import (
	"context"
	"errors"

	"github.com/inferpipe/inferpipe/pkg/models"
)

var ErrNotFound = errors.New("job not found")

// Registry is the job store interface. Put and BatchPut are last-writer-wins
// upserts: an update for an unknown job ID creates the record. Status is
// monotonic; a write never demotes Processed back to Queued.
type Registry interface {
	Ping(ctx context.Context) error
	Put(ctx context.Context, job *models.Job) error
	Get(ctx context.Context, jobID string) (*models.Job, error)
	BatchPut(ctx context.Context, jobs []*models.Job) error
	Close()
}
