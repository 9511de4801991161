package state

import (
	"encoding/hex"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/workrecap/workrecap/pkg/recap"
)

// jobIDLen is the hex length of generated job IDs.
const jobIDLen = 12

// ErrJobNotFound is returned when updating a job that was never created.
var ErrJobNotFound = errors.New("job not found")

// JobStore tracks asynchronous API jobs. Jobs live only for the lifetime of
// the process.
type JobStore struct {
	mu   sync.Mutex
	jobs map[string]*recap.Job
}

// NewJobStore returns an empty in-memory job store.
func NewJobStore() *JobStore {
	return &JobStore{jobs: map[string]*recap.Job{}}
}

// Create registers a new job in the accepted state.
func (s *JobStore) Create() recap.Job {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := uuid.New()
	now := time.Now().UTC().Format(time.RFC3339Nano)

	job := &recap.Job{
		ID:        hex.EncodeToString(id[:])[:jobIDLen],
		Status:    recap.JobAccepted,
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.jobs[job.ID] = job

	return *job
}

// Get returns a copy of the job with the given ID.
func (s *JobStore) Get(id string) (recap.Job, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[id]
	if !ok {
		return recap.Job{}, false
	}

	return *job, true
}

// Update sets the job's status and replaces its result and error strings.
func (s *JobStore) Update(id string, status recap.JobStatus, result, errMsg string) (recap.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[id]
	if !ok {
		return recap.Job{}, ErrJobNotFound
	}

	job.Status = status
	job.Result = result
	job.Error = errMsg
	job.UpdatedAt = time.Now().UTC().Format(time.RFC3339Nano)

	return *job, nil
}

// UpdateProgress replaces the job's progress note, leaving status untouched.
func (s *JobStore) UpdateProgress(id, progress string) (recap.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[id]
	if !ok {
		return recap.Job{}, ErrJobNotFound
	}

	job.Progress = progress
	job.UpdatedAt = time.Now().UTC().Format(time.RFC3339Nano)

	return *job, nil
}
