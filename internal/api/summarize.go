package api

import (
	"context"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/workrecap/workrecap/internal/summarize"
)

type summarizeDailyRangeRequest struct {
	Since      string `json:"since"`
	Until      string `json:"until"`
	Force      bool   `json:"force"`
	MaxWorkers int    `json:"max_workers"`
	Batch      bool   `json:"batch"`
}

type summarizeWeeklyRequest struct {
	Year  int  `json:"year"`
	Week  int  `json:"week"`
	Force bool `json:"force"`
}

type summarizeMonthlyRequest struct {
	Year  int  `json:"year"`
	Month int  `json:"month"`
	Force bool `json:"force"`
}

type summarizeYearlyRequest struct {
	Year  int  `json:"year"`
	Force bool `json:"force"`
}

// handleSummarizeDaily starts a daily summary for one date.
//
//	POST /api/pipeline/summarize/daily/{date} → 202 {job_id, status}
func (s *Server) handleSummarizeDaily(w http.ResponseWriter, r *http.Request) {
	date := chi.URLParam(r, "date")

	s.startJob(w, "summarize daily "+date, func(ctx context.Context, _ func(string)) (string, error) {
		return s.summarize.Daily(ctx, date)
	})
}

// handleSummarizeDailyRange starts daily summaries over a date range.
// max_workers defaults to the configured pipeline worker count.
//
//	POST /api/pipeline/summarize/daily/range {since, until, force?, max_workers?, batch?}
//	→ 202 {job_id, status}
func (s *Server) handleSummarizeDailyRange(w http.ResponseWriter, r *http.Request) {
	var req summarizeDailyRangeRequest
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

	task := fmt.Sprintf("summarize daily range %s..%s", req.Since, req.Until)

	s.startJob(w, task, func(ctx context.Context, progress func(string)) (string, error) {
		results, err := s.summarize.DailyRange(ctx, req.Since, req.Until, summarize.RangeOptions{
			Force:      req.Force,
			MaxWorkers: req.MaxWorkers,
			Batch:      req.Batch,
			Progress:   progress,
		})
		if err != nil {
			return "", err
		}

		return rangeOutcome(results)
	})
}

// handleSummarizeWeekly starts a weekly rollup.
//
//	POST /api/pipeline/summarize/weekly {year, week, force?} → 202 {job_id, status}
func (s *Server) handleSummarizeWeekly(w http.ResponseWriter, r *http.Request) {
	var req summarizeWeeklyRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if req.Year == 0 || req.Week == 0 {
		s.writeError(w, http.StatusBadRequest, "year and week are required")
		return
	}

	task := fmt.Sprintf("summarize weekly %d-W%02d", req.Year, req.Week)

	s.startJob(w, task, func(ctx context.Context, _ func(string)) (string, error) {
		return s.pipeline.RunWeekly(ctx, req.Year, req.Week, req.Force)
	})
}

// handleSummarizeMonthly starts a monthly rollup.
//
//	POST /api/pipeline/summarize/monthly {year, month, force?} → 202 {job_id, status}
func (s *Server) handleSummarizeMonthly(w http.ResponseWriter, r *http.Request) {
	var req summarizeMonthlyRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if req.Year == 0 || req.Month == 0 {
		s.writeError(w, http.StatusBadRequest, "year and month are required")
		return
	}

	task := fmt.Sprintf("summarize monthly %d-%02d", req.Year, req.Month)

	s.startJob(w, task, func(ctx context.Context, _ func(string)) (string, error) {
		return s.pipeline.RunMonthly(ctx, req.Year, req.Month, req.Force)
	})
}

// handleSummarizeYearly starts a yearly rollup.
//
//	POST /api/pipeline/summarize/yearly {year, force?} → 202 {job_id, status}
func (s *Server) handleSummarizeYearly(w http.ResponseWriter, r *http.Request) {
	var req summarizeYearlyRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if req.Year == 0 {
		s.writeError(w, http.StatusBadRequest, "year is required")
		return
	}

	task := fmt.Sprintf("summarize yearly %d", req.Year)

	s.startJob(w, task, func(ctx context.Context, _ func(string)) (string, error) {
		return s.pipeline.RunYearly(ctx, req.Year, req.Force)
	})
}
