package pipeline

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

// JobState is the lifecycle of one ingestion job.
type JobState string

const (
	StateQueued     JobState = "queued"
	StateProcessing JobState = "processing"
	StateCompleted  JobState = "completed"
	StateFailed     JobState = "failed"
)

// Finished reports whether the state is terminal.
func (s JobState) Finished() bool {
	return s == StateCompleted || s == StateFailed
}

// ErrKeyActive is returned by NewJob when the document key already has
// an unfinished job. The active job accompanies the error so callers
// can report its id.
var ErrKeyActive = errors.New("document key already has an active job")

// Job tracks one document ingestion from submission to completion.
type Job struct {
	mu sync.Mutex

	ID          string
	DocumentKey string

	state     JobState
	result    *Result
	errText   string
	createdAt time.Time
	updatedAt time.Time
}

// JobSnapshot is a read-only, JSON-safe copy of job state.
type JobSnapshot struct {
	ID          string    `json:"job_id"`
	DocumentKey string    `json:"document_key"`
	State       JobState  `json:"state"`
	Result      *Result   `json:"result,omitempty"`
	Error       string    `json:"error,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// SetProcessing marks the job as picked up by a worker.
func (j *Job) SetProcessing() {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.state = StateProcessing
	j.updatedAt = time.Now()
}

// Snapshot returns a JSON-safe copy of the job state.
func (j *Job) Snapshot() JobSnapshot {
	j.mu.Lock()
	defer j.mu.Unlock()
	return JobSnapshot{
		ID:          j.ID,
		DocumentKey: j.DocumentKey,
		State:       j.state,
		Result:      j.result,
		Error:       j.errText,
		CreatedAt:   j.createdAt,
		UpdatedAt:   j.updatedAt,
	}
}

func (j *Job) finish(result *Result) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.result = result
	if result != nil && result.Status == StatusFailed {
		j.state = StateFailed
		j.errText = result.Err
	} else {
		j.state = StateCompleted
	}
	j.updatedAt = time.Now()
}

// JobStore is a thread-safe in-memory job registry with TTL eviction.
// It holds at most one unfinished job per document key, which is what
// serializes same-key ingestion.
type JobStore struct {
	mu     sync.Mutex
	jobs   map[string]*Job
	active map[string]*Job
	ttl    time.Duration
}

func NewJobStore(ttl time.Duration) *JobStore {
	return &JobStore{
		jobs:   make(map[string]*Job),
		active: make(map[string]*Job),
		ttl:    ttl,
	}
}

// NewJob registers a queued job for the document key. When the key is
// already being processed it returns the active job with ErrKeyActive.
func (s *JobStore) NewJob(documentKey string) (*Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if active, ok := s.active[documentKey]; ok {
		return active, ErrKeyActive
	}

	now := time.Now()
	job := &Job{
		ID:          uuid.New().String(),
		DocumentKey: documentKey,
		state:       StateQueued,
		createdAt:   now,
		updatedAt:   now,
	}
	s.jobs[job.ID] = job
	s.active[documentKey] = job
	return job, nil
}

func (s *JobStore) Get(id string) *Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.jobs[id]
}

// Finish records the job's result and final state, then frees the
// document key for the next submission.
func (s *JobStore) Finish(job *Job, result *Result) {
	job.finish(result)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active[job.DocumentKey] == job {
		delete(s.active, job.DocumentKey)
	}
}

// Cleanup removes finished jobs older than the TTL. Unfinished jobs are
// never evicted, they still hold their document key.
func (s *JobStore) Cleanup() {
	now := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()
	for id, job := range s.jobs {
		snap := job.Snapshot()
		if !snap.State.Finished() {
			continue
		}
		if now.Sub(snap.UpdatedAt) > s.ttl {
			delete(s.jobs, id)
		}
	}
}
