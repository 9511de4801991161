package state

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/workrecap/workrecap/pkg/recap"
)

// Batch job statuses stored on disk. Terminal statuses stop the resume
// poller from picking a job back up.
const (
	BatchSubmitted  = "submitted"
	BatchProcessing = "processing"
	BatchCompleted  = "completed"
	BatchFailed     = "failed"
	BatchExpired    = "expired"
)

// BatchJob records one submitted provider batch for crash recovery.
type BatchJob struct {
	BatchID     string   `json:"batch_id"`
	Provider    string   `json:"provider"`
	Task        string   `json:"task"`
	CustomIDs   []string `json:"custom_ids"`
	SubmittedAt string   `json:"submitted_at"`
	Status      string   `json:"status"`
}

// Terminal reports whether the job has finished one way or another.
func (j *BatchJob) Terminal() bool {
	switch j.Status {
	case BatchCompleted, BatchFailed, BatchExpired:
		return true
	}

	return false
}

// BatchStateStore persists submitted batch jobs so an interrupted run
// resumes polling instead of re-submitting. A corrupt state file is
// discarded with a warning rather than blocking startup.
type BatchStateStore struct {
	path   string
	logger *slog.Logger

	mu   sync.Mutex
	data map[string]*BatchJob
}

// NewBatchStateStore loads the store from path, tolerating a missing or
// corrupt file.
func NewBatchStateStore(path string, logger *slog.Logger) *BatchStateStore {
	if logger == nil {
		logger = slog.Default()
	}

	s := &BatchStateStore{path: path, logger: logger, data: map[string]*BatchJob{}}

	err := recap.LoadJSON(path, &s.data)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		logger.Warn("batch state unreadable, starting empty", "path", path, "error", err)

		s.data = map[string]*BatchJob{}
	}

	return s
}

func (s *BatchStateStore) save() error {
	err := recap.SaveJSON(s.path, s.data)
	if err != nil {
		return fmt.Errorf("save batch state %s: %w", s.path, err)
	}

	return nil
}

// SaveJob records a newly submitted batch job.
func (s *BatchStateStore) SaveJob(batchID, provider, task string, customIDs []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.data[batchID] = &BatchJob{
		BatchID:     batchID,
		Provider:    provider,
		Task:        task,
		CustomIDs:   customIDs,
		SubmittedAt: time.Now().UTC().Format(time.RFC3339Nano),
		Status:      BatchSubmitted,
	}

	return s.save()
}

// Job returns a copy of the job with the given batch ID.
func (s *BatchStateStore) Job(batchID string) (BatchJob, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.data[batchID]
	if !ok {
		return BatchJob{}, false
	}

	return *job, true
}

// ActiveJobs returns copies of every job not in a terminal status.
func (s *BatchStateStore) ActiveJobs() []BatchJob {
	s.mu.Lock()
	defer s.mu.Unlock()

	var active []BatchJob

	for _, job := range s.data {
		if !job.Terminal() {
			active = append(active, *job)
		}
	}

	return active
}

// UpdateStatus sets the status of a known batch job.
func (s *BatchStateStore) UpdateStatus(batchID, status string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.data[batchID]
	if !ok {
		return nil
	}

	job.Status = status

	return s.save()
}

// RemoveJob deletes a batch job record.
func (s *BatchStateStore) RemoveJob(batchID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.data[batchID]
	if !ok {
		return nil
	}

	delete(s.data, batchID)

	return s.save()
}
