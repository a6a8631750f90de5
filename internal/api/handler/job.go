package handler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/inferpipe/inferpipe/internal/api/response"
	"github.com/inferpipe/inferpipe/internal/registry"
	"github.com/inferpipe/inferpipe/pkg/models"
)

// maxPayloadBytes bounds the accepted job payload size.
const maxPayloadBytes = 1 << 20

// JobStore is the subset of the registry the handlers depend on.
type JobStore interface {
	Put(ctx context.Context, job *models.Job) error
	Get(ctx context.Context, jobID string) (*models.Job, error)
}

// Enqueuer puts one payload onto the ingestion queue under a partition key.
type Enqueuer interface {
	Put(ctx context.Context, partitionKey string, data []byte) error
}

type submitResponse struct {
	JobID string `json:"job_id"`
}

// NewSubmitHandler returns an http.HandlerFunc for POST /job. The job record
// is inserted as Queued before the payload is enqueued, so a poll can never
// observe a queued payload without a registry row.
func NewSubmitHandler(store JobStore, queue Enqueuer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxPayloadBytes))
		if err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "Could not read request body")
			return
		}
		if len(payload) == 0 {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "Request body is required")
			return
		}

		jobID := uuid.NewString()

		job := &models.Job{JobID: jobID, Status: models.JobStatusQueued}
		if err := store.Put(r.Context(), job); err != nil {
			slog.Error("insert job failed", "job_id", jobID, "error", err)
			response.Error(w, http.StatusServiceUnavailable, "REGISTRY_UNAVAILABLE", "Could not record job")
			return
		}

		if err := queue.Put(r.Context(), jobID, payload); err != nil {
			slog.Error("enqueue job failed", "job_id", jobID, "error", err)
			response.Error(w, http.StatusServiceUnavailable, "QUEUE_UNAVAILABLE", "Could not enqueue job")
			return
		}

		response.JSON(w, http.StatusOK, submitResponse{JobID: jobID})
	}
}

// NewGetJobHandler returns an http.HandlerFunc for GET /job/{jobID}.
func NewGetJobHandler(store JobStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		jobID := chi.URLParam(r, "jobID")

		job, err := store.Get(r.Context(), jobID)
		if errors.Is(err, registry.ErrNotFound) {
			response.Error(w, http.StatusNotFound, "JOB_NOT_FOUND", "No job with that ID")
			return
		}
		if err != nil {
			slog.Error("get job failed", "job_id", jobID, "error", err)
			response.Error(w, http.StatusServiceUnavailable, "REGISTRY_UNAVAILABLE", "Could not read job")
			return
		}

		response.JSON(w, http.StatusOK, job)
	}
}
