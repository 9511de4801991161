package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/workrecap/workrecap/internal/scheduler"
)

// GET /api/scheduler/status → {state, jobs}
func (s *Server) handleSchedulerStatus(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.sched.Status())
}

// GET /api/scheduler/history?job=&limit= → [events]
func (s *Server) handleSchedulerHistory(w http.ResponseWriter, r *http.Request) {
	job := r.URL.Query().Get("job")

	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil {
			s.writeError(w, http.StatusBadRequest, "limit must be an integer")
			return
		}

		limit = parsed
	}

	events, err := s.history.List(job, limit)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	if events == nil {
		events = []scheduler.Event{}
	}

	s.writeJSON(w, http.StatusOK, events)
}

// handleSchedulerTrigger runs one scheduler job out of calendar. The job
// runs even while the calendar is disabled or paused.
//
//	POST /api/scheduler/trigger/{job} → 202 {triggered} | 404
func (s *Server) handleSchedulerTrigger(w http.ResponseWriter, r *http.Request) {
	job := chi.URLParam(r, "job")

	if err := s.sched.Trigger(job); err != nil {
		if errors.Is(err, scheduler.ErrUnknownJob) {
			s.writeError(w, http.StatusNotFound, "Unknown job: "+job)
			return
		}

		s.writeError(w, http.StatusInternalServerError, err.Error())

		return
	}

	s.writeJSON(w, http.StatusAccepted, map[string]string{"triggered": job})
}

// PUT /api/scheduler/pause → {state: paused}
func (s *Server) handleSchedulerPause(w http.ResponseWriter, r *http.Request) {
	s.sched.Pause()
	s.writeJSON(w, http.StatusOK, map[string]string{"state": "paused"})
}

// PUT /api/scheduler/resume → {state: running}
func (s *Server) handleSchedulerResume(w http.ResponseWriter, r *http.Request) {
	s.sched.Resume()
	s.writeJSON(w, http.StatusOK, map[string]string{"state": "running"})
}
