package api

import (
	"context"
	"net/http"
)

type queryRequest struct {
	Question string `json:"question"`
	Months   int    `json:"months"`
}

// handleQuery starts a free-form question over recent monthly summaries.
// months defaults to 3.
//
//	POST /api/query {question, months?} → 202 {job_id, status}
func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	req := queryRequest{Months: 3}
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if req.Question == "" {
		s.writeError(w, http.StatusBadRequest, "question is required")
		return
	}

	s.startJob(w, "query", func(ctx context.Context, _ func(string)) (string, error) {
		return s.summarize.Query(ctx, req.Question, req.Months)
	})
}
