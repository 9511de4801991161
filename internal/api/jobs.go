package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/workrecap/workrecap/pkg/recap"
)

// taskFunc is one background task. Its result string lands on the
// completed job; its error marks the job failed. progress may be called
// at any point to annotate the job document while the task runs.
type taskFunc func(ctx context.Context, progress func(string)) (string, error)

// startJob registers a new job, writes the 202 acceptance response, and
// runs fn on its own goroutine.
func (s *Server) startJob(w http.ResponseWriter, task string, fn taskFunc) {
	job := s.jobs.Create()

	go s.runJob(task, job.ID, fn)

	s.writeJSON(w, http.StatusAccepted, map[string]any{
		"job_id": job.ID,
		"status": job.Status,
	})
}

func (s *Server) runJob(task, jobID string, fn taskFunc) {
	ctx := context.Background()

	done := s.metrics.TrackJob(ctx)
	defer done()

	s.logger.Info("background task starting", "task", task, "job_id", jobID)
	s.setJobStatus(jobID, recap.JobRunning, "", "")

	progress := func(note string) {
		if _, err := s.jobs.UpdateProgress(jobID, note); err != nil {
			s.logger.Warn("job progress update failed", "job_id", jobID, "error", err)
		}
	}

	result, err := fn(ctx, progress)
	if err != nil {
		s.logger.Warn("background task failed", "task", task, "job_id", jobID, "error", err)
		s.setJobStatus(jobID, recap.JobFailed, "", err.Error())

		return
	}

	s.logger.Info("background task finished", "task", task, "job_id", jobID)
	s.setJobStatus(jobID, recap.JobCompleted, result, "")
}

func (s *Server) setJobStatus(jobID string, status recap.JobStatus, result, errMsg string) {
	if _, err := s.jobs.Update(jobID, status, result, errMsg); err != nil {
		s.logger.Warn("job update failed", "job_id", jobID, "error", err)
	}
}

// rangeOutcome folds per-date results into the job contract: the job
// completes only when every date succeeded, and the X/Y figure is the
// result on success or the error otherwise. Skipped dates count against
// the figure.
func rangeOutcome(results []recap.DateResult) (string, error) {
	succeeded := 0

	for _, res := range results {
		if res.Status == recap.DateSuccess {
			succeeded++
		}
	}

	msg := fmt.Sprintf("%d/%d succeeded", succeeded, len(results))
	if succeeded < len(results) {
		return "", errors.New(msg)
	}

	return msg, nil
}
