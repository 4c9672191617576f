package mock

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/poiesic/catalogsync/ai"
)

// MockBatchEmbedder is an in-memory ai.BatchEmbedder. Submitted jobs stay
// running until the test completes, fails or forgets them. Like the real
// provider, a completed job splits its lines into an output file (successes)
// and an error file (rejections); either location is empty when it has no lines.
type MockBatchEmbedder struct {
	// SubmitErr, if set, is returned by SubmitBatch.
	SubmitErr error
	// FailIDs lists custom ids the provider reports as failed on completion.
	FailIDs map[string]bool
	// FetchErr, if set, is consulted before every FetchResults.
	FetchErr func(location string) error

	dim     int
	mu      sync.Mutex
	seq     int
	jobs    map[string]*mockJob
	submits int
}

type mockJob struct {
	req     ai.BatchRequest
	state   ai.BatchState
	output  []byte
	errors  []byte
	expired bool
}

// errorFileSuffix distinguishes a job's error file location from its output file.
const errorFileSuffix = ":errors"

// NewMockBatchEmbedder creates a batch embedder producing vectors of length dim.
func NewMockBatchEmbedder(dim int) *MockBatchEmbedder {
	return &MockBatchEmbedder{
		dim:     dim,
		jobs:    make(map[string]*mockJob),
		FailIDs: make(map[string]bool),
	}
}

// SubmitBatch records the job as running.
func (m *MockBatchEmbedder) SubmitBatch(ctx context.Context, req ai.BatchRequest) (ai.BatchJob, error) {
	if len(req.Entries) == 0 {
		return ai.BatchJob{}, ai.ErrEmptyManifest
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.submits++
	if m.SubmitErr != nil {
		return ai.BatchJob{}, m.SubmitErr
	}
	m.seq++
	handle := fmt.Sprintf("batch_%d", m.seq)
	m.jobs[handle] = &mockJob{req: req, state: ai.BatchRunning}
	return m.view(handle, m.jobs[handle]), nil
}

// BatchStatus reports the job's current state.
func (m *MockBatchEmbedder) BatchStatus(ctx context.Context, handle string) (ai.BatchJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[handle]
	if !ok {
		return ai.BatchJob{}, fmt.Errorf("%w: %s", ai.ErrJobNotFound, handle)
	}
	return m.view(handle, job), nil
}

// FetchResults returns the output or error file of a completed job.
func (m *MockBatchEmbedder) FetchResults(ctx context.Context, location string) (io.ReadCloser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FetchErr != nil {
		if err := m.FetchErr(location); err != nil {
			return nil, err
		}
	}
	handle, isErrors := strings.CutSuffix(location, errorFileSuffix)
	job, ok := m.jobs[handle]
	if !ok || job.state != ai.BatchCompleted || job.expired {
		return nil, ai.ErrNoResults
	}
	data := job.output
	if isErrors {
		data = job.errors
	}
	if len(data) == 0 {
		return nil, ai.ErrNoResults
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

// Complete finishes a job, rendering one result line per manifest entry.
func (m *MockBatchEmbedder) Complete(handle string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[handle]
	if !ok {
		return
	}
	var out, errs bytes.Buffer
	okEnc, errEnc := json.NewEncoder(&out), json.NewEncoder(&errs)
	for _, e := range job.req.Entries {
		if m.FailIDs[e.CustomID] {
			_ = errEnc.Encode(map[string]any{
				"custom_id": e.CustomID,
				"error":     map[string]any{"code": "invalid_request", "message": "rejected"},
			})
			continue
		}
		_ = okEnc.Encode(map[string]any{
			"custom_id": e.CustomID,
			"response": map[string]any{
				"status_code": 200,
				"body": map[string]any{
					"data": []map[string]any{{"embedding": Vector(e.Text, m.dim)}},
				},
			},
		})
	}
	job.output = out.Bytes()
	job.errors = errs.Bytes()
	job.state = ai.BatchCompleted
}

// Expire makes a completed job's files unavailable, as when the provider
// deletes them after their retention period.
func (m *MockBatchEmbedder) Expire(handle string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if job, ok := m.jobs[handle]; ok {
		job.expired = true
	}
}

// Fail moves a job to the failed state.
func (m *MockBatchEmbedder) Fail(handle string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if job, ok := m.jobs[handle]; ok {
		job.state = ai.BatchFailed
	}
}

// Forget drops a job so the provider reports it as not found.
func (m *MockBatchEmbedder) Forget(handle string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.jobs, handle)
}

// Handles returns the handles of every known job.
func (m *MockBatchEmbedder) Handles() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.jobs))
	for h := range m.jobs {
		out = append(out, h)
	}
	return out
}

// SubmitCount returns the number of SubmitBatch calls.
func (m *MockBatchEmbedder) SubmitCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.submits
}

func (m *MockBatchEmbedder) view(handle string, job *mockJob) ai.BatchJob {
	out := ai.BatchJob{
		Handle: handle,
		State:  job.state,
		Total:  len(job.req.Entries),
	}
	switch job.state {
	case ai.BatchCompleted:
		out.ProviderStatus = "completed"
		if len(job.output) > 0 {
			out.ResultLocation = handle
		}
		if len(job.errors) > 0 {
			out.ErrorLocation = handle + errorFileSuffix
		}
		out.Failed = bytes.Count(job.errors, []byte("\n"))
		out.Completed = len(job.req.Entries) - out.Failed
	case ai.BatchFailed:
		out.ProviderStatus = "failed"
	default:
		out.ProviderStatus = "in_progress"
	}
	return out
}
