package commands

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/workrecap/workrecap/internal/state"
	"github.com/workrecap/workrecap/pkg/recap"
)

func TestPrintRangeResultsMixedOutcomes(t *testing.T) {
	t.Parallel()

	results := []recap.DateResult{
		{Date: "2026-03-01", Status: recap.DateSuccess},
		{Date: "2026-03-02", Status: recap.DateSkipped},
		{Date: "2026-03-03", Status: recap.DateFailed, Error: "boom"},
	}

	var buf bytes.Buffer

	err := printRangeResults(&buf, "Fetched", results)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 date(s) failed")

	out := buf.String()
	assert.Contains(t, out, "Fetched 3 day(s): 1 succeeded, 1 skipped, 1 failed")
	assert.Contains(t, out, "  + 2026-03-01: success")
	assert.Contains(t, out, "  = 2026-03-02: skipped")
	assert.Contains(t, out, "  ! 2026-03-03: failed")
}

func TestPrintRangeResultsAllSucceeded(t *testing.T) {
	t.Parallel()

	results := []recap.DateResult{
		{Date: "2026-03-01", Status: recap.DateSuccess},
		{Date: "2026-03-02", Status: recap.DateSuccess},
	}

	var buf bytes.Buffer

	err := printRangeResults(&buf, "Normalized", results)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "Normalized 2 day(s): 2 succeeded, 0 skipped, 0 failed")
}

func TestPrintRunResults(t *testing.T) {
	t.Parallel()

	results := []recap.DateResult{
		{Date: "2026-03-01", Status: recap.DateSuccess, DailySummaryPath: "summaries/daily/2026-03-01.md"},
		{Date: "2026-03-02", Status: recap.DateSkipped},
		{Date: "2026-03-03", Status: recap.DateFailed, Error: "fetch: boom"},
	}

	var buf bytes.Buffer

	failed := printRunResults(&buf, results)
	assert.Equal(t, 1, failed)

	out := buf.String()
	assert.Contains(t, out, "Range complete: 1 succeeded, 1 skipped, 1 failed")
	assert.Contains(t, out, "  ✓ 2026-03-01: summaries/daily/2026-03-01.md")
	assert.Contains(t, out, "  — 2026-03-02: ")
	assert.Contains(t, out, "  ✗ 2026-03-03: fetch: boom")
}

func TestPrintExhausted(t *testing.T) {
	t.Parallel()

	fx := newCommandFixture(t)

	store := fx.app.failedDates()
	for range 3 {
		require.NoError(t, store.RecordFailure("2026-03-01", state.PhaseFetch, "boom", false))
	}

	var buf bytes.Buffer

	printExhausted(&buf, fx.app)
	assert.Contains(t, buf.String(), "1 date(s) exhausted (max 3 retries reached)")
}

func TestPrintExhaustedSilentWhenNone(t *testing.T) {
	t.Parallel()

	fx := newCommandFixture(t)

	var buf bytes.Buffer

	printExhausted(&buf, fx.app)
	assert.Empty(t, buf.String())
}
