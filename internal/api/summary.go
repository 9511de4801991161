package api

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/workrecap/workrecap/pkg/dateutil"
)

// readSummary serves one markdown file from the summary tree.
func (s *Server) readSummary(w http.ResponseWriter, path string) {
	content, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		s.writeError(w, http.StatusNotFound, "Summary not found")
		return
	}

	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]string{
		"content": string(content),
		"path":    path,
	})
}

// intParam parses one numeric URL parameter, writing a 400 on failure.
func (s *Server) intParam(w http.ResponseWriter, r *http.Request, name string) (int, bool) {
	v, err := strconv.Atoi(chi.URLParam(r, name))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid %s", name))
		return 0, false
	}

	return v, true
}

// GET /api/summary/daily/{date} → {content, path} | 404
func (s *Server) handleDailySummary(w http.ResponseWriter, r *http.Request) {
	s.readSummary(w, s.cfg.DailySummaryPath(chi.URLParam(r, "date")))
}

// GET /api/summary/weekly/{year}/{week} → {content, path} | 404
func (s *Server) handleWeeklySummary(w http.ResponseWriter, r *http.Request) {
	year, ok := s.intParam(w, r, "year")
	if !ok {
		return
	}

	week, ok := s.intParam(w, r, "week")
	if !ok {
		return
	}

	s.readSummary(w, s.cfg.WeeklySummaryPath(year, week))
}

// GET /api/summary/monthly/{year}/{month} → {content, path} | 404
func (s *Server) handleMonthlySummary(w http.ResponseWriter, r *http.Request) {
	year, ok := s.intParam(w, r, "year")
	if !ok {
		return
	}

	month, ok := s.intParam(w, r, "month")
	if !ok {
		return
	}

	s.readSummary(w, s.cfg.MonthlySummaryPath(year, month))
}

// GET /api/summary/yearly/{year} → {content, path} | 404
func (s *Server) handleYearlySummary(w http.ResponseWriter, r *http.Request) {
	year, ok := s.intParam(w, r, "year")
	if !ok {
		return
	}

	s.readSummary(w, s.cfg.YearlySummaryPath(year))
}

// handleAvailableSummaries reports which summary files exist for one
// calendar month: daily stems ("MM-DD"), weekly stems ("WNN") for ISO
// weeks overlapping the month in that ISO year, the monthly stem, and
// whether the yearly rollup exists.
//
//	GET /api/summaries/available?year=YYYY&month=M
//	→ {daily: [], weekly: [], monthly: [], yearly: bool}
func (s *Server) handleAvailableSummaries(w http.ResponseWriter, r *http.Request) {
	year, err := strconv.Atoi(r.URL.Query().Get("year"))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "year must be an integer")
		return
	}

	month, err := strconv.Atoi(r.URL.Query().Get("month"))
	if err != nil || month < 1 || month > 12 {
		s.writeError(w, http.StatusBadRequest, "month must be an integer between 1 and 12")
		return
	}

	yearDir := filepath.Join(s.cfg.SummariesDir(), strconv.Itoa(year))
	monthStr := fmt.Sprintf("%02d", month)

	daily := globStems(filepath.Join(yearDir, "daily", monthStr+"-*.md"))

	weekly := []string{}
	overlapping := weekStemsForMonth(year, month)

	for _, stem := range globStems(filepath.Join(yearDir, "weekly", "W*.md")) {
		if overlapping[stem] {
			weekly = append(weekly, stem)
		}
	}

	monthly := []string{}
	if _, err := os.Stat(filepath.Join(yearDir, "monthly", monthStr+".md")); err == nil {
		monthly = append(monthly, monthStr)
	}

	_, err = os.Stat(filepath.Join(yearDir, "yearly.md"))

	s.writeJSON(w, http.StatusOK, map[string]any{
		"daily":   daily,
		"weekly":  weekly,
		"monthly": monthly,
		"yearly":  err == nil,
	})
}

// globStems returns the sorted basenames of pattern's matches with the
// .md extension stripped.
func globStems(pattern string) []string {
	stems := []string{}

	matches, err := filepath.Glob(pattern)
	if err != nil {
		return stems
	}

	for _, m := range matches {
		stems = append(stems, strings.TrimSuffix(filepath.Base(m), ".md"))
	}

	return stems
}

// weekStemsForMonth is the set of "WNN" stems for ISO weeks that overlap
// the month and belong to the same ISO year.
func weekStemsForMonth(year, month int) map[string]bool {
	stems := map[string]bool{}

	for _, wk := range dateutil.WeeksInMonth(year, month) {
		if wk.Year == year {
			stems[fmt.Sprintf("W%02d", wk.Week)] = true
		}
	}

	return stems
}
