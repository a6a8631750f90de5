package inference

import (
	"context"
	"sync"
)

// MockRunner satisfies Runner for tests and local development. It records
// every submission and rejects a job name it has already seen, mirroring the
// real service's duplicate-name behavior.
type MockRunner struct {
	mu         sync.Mutex
	runs       []Run
	seen       map[string]bool
	SubmitFunc func(ctx context.Context, run Run) error
}

func NewMockRunner() *MockRunner {
	return &MockRunner{seen: make(map[string]bool)}
}

func (m *MockRunner) Submit(ctx context.Context, run Run) error {
	if m.SubmitFunc != nil {
		return m.SubmitFunc(ctx, run)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.seen[run.JobName] {
		return ErrAlreadyExists
	}
	m.seen[run.JobName] = true
	m.runs = append(m.runs, run)
	return nil
}

// Runs returns a copy of all accepted submissions.
func (m *MockRunner) Runs() []Run {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Run(nil), m.runs...)
}

var _ Runner = (*MockRunner)(nil)
