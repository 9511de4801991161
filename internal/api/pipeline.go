package api

import (
	"context"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/workrecap/workrecap/internal/pipeline"
)

type rangeRequest struct {
	Since string `json:"since"`
	Until string `json:"until"`
}

// handleRunDate starts a fetch → normalize → summarize run for one date.
//
//	POST /api/pipeline/run/{date} → 202 {job_id, status}
func (s *Server) handleRunDate(w http.ResponseWriter, r *http.Request) {
	date := chi.URLParam(r, "date")

	s.startJob(w, "run "+date, func(ctx context.Context, progress func(string)) (string, error) {
		return s.pipeline.RunDaily(ctx, date, pipeline.RunOptions{Progress: progress})
	})
}

// handleRunRange starts a full-pipeline backfill over a date range.
//
//	POST /api/pipeline/run/range {since, until} → 202 {job_id, status}
func (s *Server) handleRunRange(w http.ResponseWriter, r *http.Request) {
	var req rangeRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if req.Since == "" || req.Until == "" {
		s.writeError(w, http.StatusBadRequest, "since and until are required")
		return
	}

	task := fmt.Sprintf("run range %s..%s", req.Since, req.Until)

	s.startJob(w, task, func(ctx context.Context, progress func(string)) (string, error) {
		results, err := s.pipeline.RunRange(ctx, req.Since, req.Until, pipeline.RangeOptions{
			Progress: progress,
		})
		if err != nil {
			return "", err
		}

		return rangeOutcome(results)
	})
}

// handleJobStatus returns the job document for polling.
//
//	GET /api/pipeline/jobs/{jobID} → 200 job | 404
func (s *Server) handleJobStatus(w http.ResponseWriter, r *http.Request) {
	job, ok := s.jobs.Get(chi.URLParam(r, "jobID"))
	if !ok {
		s.writeError(w, http.StatusNotFound, "Job not found")
		return
	}

	s.writeJSON(w, http.StatusOK, job)
}
