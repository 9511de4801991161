package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/workrecap/workrecap/internal/fetch"
)

type fetchDateRequest struct {
	Types []string `json:"types"`
	// Force is accepted but has no effect: a single-date fetch always
	// rewrites its raw files.
	Force bool `json:"force"`
}

type fetchRangeRequest struct {
	Since      string   `json:"since"`
	Until      string   `json:"until"`
	Types      []string `json:"types"`
	Force      bool     `json:"force"`
	MaxWorkers int      `json:"max_workers"`
}

// handleFetchDate starts a raw fetch for one date. The body is optional.
//
//	POST /api/pipeline/fetch/{date} {types?, force?} → 202 {job_id, status}
func (s *Server) handleFetchDate(w http.ResponseWriter, r *http.Request) {
	date := chi.URLParam(r, "date")

	var req fetchDateRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	s.startJob(w, "fetch "+date, func(ctx context.Context, _ func(string)) (string, error) {
		paths, err := s.fetch.Fetch(ctx, date, req.Types)
		if err != nil {
			return "", err
		}

		encoded, err := json.Marshal(paths)
		if err != nil {
			return "", err
		}

		return string(encoded), nil
	})
}

// handleFetchRange starts a raw fetch over a date range.
//
//	POST /api/pipeline/fetch/range {since, until, types?, force?, max_workers?}
//	→ 202 {job_id, status}
func (s *Server) handleFetchRange(w http.ResponseWriter, r *http.Request) {
	var req fetchRangeRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if req.Since == "" || req.Until == "" {
		s.writeError(w, http.StatusBadRequest, "since and until are required")
		return
	}

	task := fmt.Sprintf("fetch range %s..%s", req.Since, req.Until)

	s.startJob(w, task, func(ctx context.Context, progress func(string)) (string, error) {
		results, err := s.fetch.FetchRange(ctx, req.Since, req.Until, fetch.RangeOptions{
			Types:      req.Types,
			Force:      req.Force,
			MaxWorkers: req.MaxWorkers,
			Progress:   progress,
		})
		if err != nil {
			return "", err
		}

		return rangeOutcome(results)
	})
}
