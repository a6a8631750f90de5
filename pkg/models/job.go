package models

const (
	JobStatusQueued    = "Queued"
	JobStatusProcessed = "Processed"
)

// Job is the per-job status record tracked by the registry. The API returns a
// job_id on POST /job; the client polls GET /job/{id} until status is Processed.
//
// ArrivalTime and ProcessedTime are stored as numeric strings because the
// registry backends do not all support native floating-point values.
type Job struct {
	JobID         string  `db:"job_id"         json:"jobId"`
	Status        string  `db:"status"         json:"status"`
	ArrivalTime   Numeric `db:"arrival_time"   json:"arrivalTime,omitempty"`
	ProcessedTime Numeric `db:"processed_time" json:"processedTime,omitempty"`
	Result        string  `db:"result"         json:"result,omitempty"`
}
