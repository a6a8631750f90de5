// Package inference submits batch-inference runs to the external inference
// service. The service reads line-delimited window objects, feeds the payload
// column to the model, and writes result objects that carry the job ID and
// arrival time back alongside the model output.
package inference

import (
	"context"
	"errors"
)

// ErrAlreadyExists reports that a run with the same job name was submitted
// before. Job names are deterministic per input location, so a redelivered
// notification hits this instead of paying for a duplicate run.
var ErrAlreadyExists = errors.New("inference run already exists")

// Run describes one batch-inference invocation over a window object or a
// prefix of window objects.
type Run struct {
	JobName        string
	ModelName      string
	InputLocation  string
	OutputLocation string
}

// Runner submits runs. The service processes them asynchronously and writes
// its output to the run's output location; Submit does not wait for that.
type Runner interface {
	Submit(ctx context.Context, run Run) error
}
