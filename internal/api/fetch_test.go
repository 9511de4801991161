package api

import (
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/workrecap/workrecap/pkg/recap"
)

func TestHandleFetchDate_EmptyBody(t *testing.T) {
	t.Parallel()

	fx := newServerFixture(t)
	fx.fetch.paths = map[string]string{"prs": "raw/2026-02-16/prs.json"}

	resp := fx.post(t, "/api/pipeline/fetch/2026-02-16", nil)
	jobID := fx.startedJob(t, resp)

	job := fx.waitForJob(t, jobID)
	assert.Equal(t, recap.JobCompleted, job.Status)
	assert.Contains(t, job.Result, `"prs":"raw/2026-02-16/prs.json"`)

	fx.fetch.mu.Lock()
	defer fx.fetch.mu.Unlock()

	assert.Contains(t, fx.fetch.calls, "fetch:2026-02-16")
	assert.Nil(t, fx.fetch.gotTypes)
}

func TestHandleFetchDate_TypesPassThrough(t *testing.T) {
	t.Parallel()

	fx := newServerFixture(t)

	resp := fx.post(t, "/api/pipeline/fetch/2026-02-16", map[string]any{
		"types": []string{"prs", "issues"},
	})
	jobID := fx.startedJob(t, resp)

	job := fx.waitForJob(t, jobID)
	assert.Equal(t, recap.JobCompleted, job.Status)

	fx.fetch.mu.Lock()
	defer fx.fetch.mu.Unlock()

	assert.Equal(t, []string{"prs", "issues"}, fx.fetch.gotTypes)
}

func TestHandleFetchDate_Failure(t *testing.T) {
	t.Parallel()

	fx := newServerFixture(t)
	fx.fetch.err = errors.New("rate limited")

	resp := fx.post(t, "/api/pipeline/fetch/2026-02-16", nil)
	jobID := fx.startedJob(t, resp)

	job := fx.waitForJob(t, jobID)
	assert.Equal(t, recap.JobFailed, job.Status)
	assert.Equal(t, "rate limited", job.Error)
}

func TestHandleFetchRange(t *testing.T) {
	t.Parallel()

	fx := newServerFixture(t)
	fx.fetch.rangeResults = []recap.DateResult{
		{Date: "2026-02-16", Status: recap.DateSuccess},
		{Date: "2026-02-17", Status: recap.DateSuccess},
		{Date: "2026-02-18", Status: recap.DateSuccess},
	}

	resp := fx.post(t, "/api/pipeline/fetch/range", map[string]any{
		"since":       "2026-02-16",
		"until":       "2026-02-18",
		"types":       []string{"commits"},
		"force":       true,
		"max_workers": 3,
	})
	jobID := fx.startedJob(t, resp)

	job := fx.waitForJob(t, jobID)
	assert.Equal(t, recap.JobCompleted, job.Status)
	assert.Equal(t, "3/3 succeeded", job.Result)

	opts := fx.fetch.rangeOpts()
	assert.Equal(t, []string{"commits"}, opts.Types)
	assert.True(t, opts.Force)
	assert.Equal(t, 3, opts.MaxWorkers)
}

func TestHandleFetchRange_DefaultsToOneWorker(t *testing.T) {
	t.Parallel()

	fx := newServerFixture(t)
	fx.fetch.rangeResults = []recap.DateResult{{Date: "2026-02-16", Status: recap.DateSuccess}}

	resp := fx.post(t, "/api/pipeline/fetch/range", map[string]any{
		"since": "2026-02-16",
		"until": "2026-02-16",
	})
	jobID := fx.startedJob(t, resp)
	fx.waitForJob(t, jobID)

	assert.Zero(t, fx.fetch.rangeOpts().MaxWorkers)
}

func TestHandleFetchRange_MissingBounds(t *testing.T) {
	t.Parallel()

	fx := newServerFixture(t)

	resp := fx.post(t, "/api/pipeline/fetch/range", nil)

	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "since and until are required", fx.errorDetail(t, resp))
}
