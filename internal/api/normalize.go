package api

import (
	"context"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/workrecap/workrecap/internal/normalize"
)

type normalizeDateRequest struct {
	Enrich bool `json:"enrich"`
	// Force is accepted but has no effect: a single-date normalize always
	// rewrites its outputs.
	Force bool `json:"force"`
}

type normalizeRangeRequest struct {
	Since      string `json:"since"`
	Until      string `json:"until"`
	Force      bool   `json:"force"`
	Enrich     bool   `json:"enrich"`
	MaxWorkers int    `json:"max_workers"`
}

// normalizer picks the service for the request's enrich flag.
func (s *Server) normalizer(enrich bool) Normalizer {
	if enrich {
		return s.normalize
	}

	return s.normalizePlain
}

// handleNormalizeDate starts a normalize for one date. The body is
// optional; enrich defaults to true.
//
//	POST /api/pipeline/normalize/{date} {enrich?, force?} → 202 {job_id, status}
func (s *Server) handleNormalizeDate(w http.ResponseWriter, r *http.Request) {
	date := chi.URLParam(r, "date")

	req := normalizeDateRequest{Enrich: true}
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	svc := s.normalizer(req.Enrich)

	s.startJob(w, "normalize "+date, func(ctx context.Context, _ func(string)) (string, error) {
		activitiesPath, statsPath, err := svc.Normalize(ctx, date)
		if err != nil {
			return "", err
		}

		return activitiesPath + ", " + statsPath, nil
	})
}

// handleNormalizeRange starts a normalize over a date range. Enrich
// defaults to true; max_workers defaults to the configured pipeline
// worker count.
//
//	POST /api/pipeline/normalize/range {since, until, force?, enrich?, max_workers?}
//	→ 202 {job_id, status}
func (s *Server) handleNormalizeRange(w http.ResponseWriter, r *http.Request) {
	req := normalizeRangeRequest{Enrich: true}
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if req.Since == "" || req.Until == "" {
		s.writeError(w, http.StatusBadRequest, "since and until are required")
		return
	}

	if req.MaxWorkers == 0 {
		req.MaxWorkers = s.cfg.Pipeline.MaxWorkers
	}

	svc := s.normalizer(req.Enrich)
	task := fmt.Sprintf("normalize range %s..%s", req.Since, req.Until)

	s.startJob(w, task, func(ctx context.Context, progress func(string)) (string, error) {
		results, err := svc.NormalizeRange(ctx, req.Since, req.Until, normalize.RangeOptions{
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
