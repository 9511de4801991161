package api

import (
	"net/http"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeSummaryFile(t *testing.T, path, content string) {
	t.Helper()

	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

type availableResponse struct {
	Daily   []string `json:"daily"`
	Weekly  []string `json:"weekly"`
	Monthly []string `json:"monthly"`
	Yearly  bool     `json:"yearly"`
}

func TestHandleDailySummary(t *testing.T) {
	t.Parallel()

	fx := newServerFixture(t)
	path := fx.cfg.DailySummaryPath("2026-02-16")
	writeSummaryFile(t, path, "# Daily recap\n")

	resp := fx.get(t, "/api/summary/daily/2026-02-16")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Content string `json:"content"`
		Path    string `json:"path"`
	}

	fx.decode(t, resp, &body)

	assert.Equal(t, "# Daily recap\n", body.Content)
	assert.Equal(t, path, body.Path)
}

func TestHandleDailySummary_NotFound(t *testing.T) {
	t.Parallel()

	fx := newServerFixture(t)

	resp := fx.get(t, "/api/summary/daily/2026-02-16")

	require.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "Summary not found", fx.errorDetail(t, resp))
}

func TestHandleWeeklySummary(t *testing.T) {
	t.Parallel()

	fx := newServerFixture(t)
	writeSummaryFile(t, fx.cfg.WeeklySummaryPath(2025, 7), "# Week 7\n")

	resp := fx.get(t, "/api/summary/weekly/2025/7")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Content string `json:"content"`
	}

	fx.decode(t, resp, &body)
	assert.Equal(t, "# Week 7\n", body.Content)
}

func TestHandleWeeklySummary_InvalidYear(t *testing.T) {
	t.Parallel()

	fx := newServerFixture(t)

	resp := fx.get(t, "/api/summary/weekly/abc/7")

	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "invalid year", fx.errorDetail(t, resp))
}

func TestHandleMonthlySummary(t *testing.T) {
	t.Parallel()

	fx := newServerFixture(t)
	writeSummaryFile(t, fx.cfg.MonthlySummaryPath(2025, 2), "# February\n")

	resp := fx.get(t, "/api/summary/monthly/2025/2")
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestHandleYearlySummary(t *testing.T) {
	t.Parallel()

	fx := newServerFixture(t)
	writeSummaryFile(t, fx.cfg.YearlySummaryPath(2025), "# 2025\n")

	resp := fx.get(t, "/api/summary/yearly/2025")
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestHandleAvailableSummaries_Empty(t *testing.T) {
	t.Parallel()

	fx := newServerFixture(t)

	resp := fx.get(t, "/api/summaries/available?year=2025&month=6")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body availableResponse

	fx.decode(t, resp, &body)

	assert.NotNil(t, body.Daily)
	assert.Empty(t, body.Daily)
	assert.NotNil(t, body.Weekly)
	assert.Empty(t, body.Weekly)
	assert.Empty(t, body.Monthly)
	assert.False(t, body.Yearly)
}

func TestHandleAvailableSummaries(t *testing.T) {
	t.Parallel()

	fx := newServerFixture(t)

	writeSummaryFile(t, fx.cfg.DailySummaryPath("2025-02-10"), "x")
	writeSummaryFile(t, fx.cfg.DailySummaryPath("2025-02-14"), "x")
	writeSummaryFile(t, fx.cfg.DailySummaryPath("2025-03-01"), "x")
	writeSummaryFile(t, fx.cfg.WeeklySummaryPath(2025, 6), "x")
	writeSummaryFile(t, fx.cfg.WeeklySummaryPath(2025, 7), "x")
	writeSummaryFile(t, fx.cfg.WeeklySummaryPath(2025, 30), "x")
	writeSummaryFile(t, fx.cfg.MonthlySummaryPath(2025, 2), "x")
	writeSummaryFile(t, fx.cfg.YearlySummaryPath(2025), "x")

	resp := fx.get(t, "/api/summaries/available?year=2025&month=2")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body availableResponse

	fx.decode(t, resp, &body)

	assert.Equal(t, []string{"02-10", "02-14"}, body.Daily)
	assert.Equal(t, []string{"W06", "W07"}, body.Weekly)
	assert.Equal(t, []string{"02"}, body.Monthly)
	assert.True(t, body.Yearly)
}

// ISO week 1 of the next year overlaps late December but belongs to the
// next ISO year, so it never shows up in December's calendar.
func TestHandleAvailableSummaries_CrossYearWeekExcluded(t *testing.T) {
	t.Parallel()

	fx := newServerFixture(t)

	writeSummaryFile(t, fx.cfg.WeeklySummaryPath(2025, 52), "x")
	writeSummaryFile(t, fx.cfg.WeeklySummaryPath(2025, 1), "x")

	resp := fx.get(t, "/api/summaries/available?year=2025&month=12")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body availableResponse

	fx.decode(t, resp, &body)

	assert.Equal(t, []string{"W52"}, body.Weekly)
}

func TestHandleAvailableSummaries_BadYear(t *testing.T) {
	t.Parallel()

	fx := newServerFixture(t)

	resp := fx.get(t, "/api/summaries/available?month=2")

	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "year must be an integer", fx.errorDetail(t, resp))
}

func TestHandleAvailableSummaries_BadMonth(t *testing.T) {
	t.Parallel()

	fx := newServerFixture(t)

	resp := fx.get(t, "/api/summaries/available?year=2025&month=13")

	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "month must be an integer between 1 and 12", fx.errorDetail(t, resp))
}
