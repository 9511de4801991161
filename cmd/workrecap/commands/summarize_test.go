package commands

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/workrecap/workrecap/internal/state"
	"github.com/workrecap/workrecap/pkg/dateutil"
	"github.com/workrecap/workrecap/pkg/recap"
)

func TestSummarizeDailySingleDate(t *testing.T) {
	t.Parallel()

	fx := newCommandFixture(t)
	fx.summarize.dailyPath = "summaries/daily/2026-03-05.md"

	out, err := runCommand(t, newSummarizeCommandWithDeps(fx.globals, fx.factory()),
		"daily", "2026-03-05")
	require.NoError(t, err)

	assert.Contains(t, out, "Daily summary → summaries/daily/2026-03-05.md")
	assert.Equal(t, []string{"daily:2026-03-05"}, fx.summarize.list())
}

func TestSummarizeDailyRange(t *testing.T) {
	t.Parallel()

	fx := newCommandFixture(t)
	fx.summarize.rangeResults = []recap.DateResult{
		{Date: "2026-03-01", Status: recap.DateSuccess},
		{Date: "2026-03-02", Status: recap.DateSkipped},
	}

	out, err := runCommand(t, newSummarizeCommandWithDeps(fx.globals, fx.factory()),
		"daily", "--since", "2026-03-01", "--until", "2026-03-02", "--batch", "--workers", "2")
	require.NoError(t, err)

	assert.Contains(t, out, "Daily summary 2 day(s): 1 succeeded, 1 skipped, 0 failed")
	assert.Contains(t, fx.summarize.list(), "range:2026-03-01..2026-03-02")
	assert.True(t, fx.summarize.gotOpts.Batch)
	assert.Equal(t, 2, fx.summarize.gotOpts.MaxWorkers)
}

func TestSummarizeDailyUpToDate(t *testing.T) {
	t.Parallel()

	fx := newCommandFixture(t)

	tomorrow := time.Now().UTC().AddDate(0, 0, 1).Format(dateutil.Layout)
	require.NoError(t, fx.app.checkpoints().Update(state.CheckpointLastSummaryDate, tomorrow))

	out, err := runCommand(t, newSummarizeCommandWithDeps(fx.globals, fx.factory()), "daily")
	require.NoError(t, err)

	assert.Contains(t, out, "Already up to date.")
	assert.Empty(t, fx.summarize.list())
}

func TestSummarizeWeekly(t *testing.T) {
	t.Parallel()

	fx := newCommandFixture(t)

	out, err := runCommand(t, newSummarizeCommandWithDeps(fx.globals, fx.factory()),
		"weekly", "2026", "10")
	require.NoError(t, err)

	assert.Contains(t, out, "Weekly summary → rollup.md")
	assert.Equal(t, []string{"weekly:2026-W10:false"}, fx.summarize.list())
}

func TestSummarizeWeeklyForce(t *testing.T) {
	t.Parallel()

	fx := newCommandFixture(t)

	_, err := runCommand(t, newSummarizeCommandWithDeps(fx.globals, fx.factory()),
		"weekly", "2026", "10", "--force")
	require.NoError(t, err)

	assert.Equal(t, []string{"weekly:2026-W10:true"}, fx.summarize.list())
}

func TestSummarizeWeeklyInvalidYear(t *testing.T) {
	t.Parallel()

	fx := newCommandFixture(t)

	_, err := runCommand(t, newSummarizeCommandWithDeps(fx.globals, fx.factory()),
		"weekly", "twenty", "10")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "twenty")
}

func TestSummarizeMonthly(t *testing.T) {
	t.Parallel()

	fx := newCommandFixture(t)

	out, err := runCommand(t, newSummarizeCommandWithDeps(fx.globals, fx.factory()),
		"monthly", "2026", "3")
	require.NoError(t, err)

	assert.Contains(t, out, "Monthly summary → rollup.md")
	assert.Equal(t, []string{"monthly:2026-03:false"}, fx.summarize.list())
}

func TestSummarizeYearly(t *testing.T) {
	t.Parallel()

	fx := newCommandFixture(t)

	out, err := runCommand(t, newSummarizeCommandWithDeps(fx.globals, fx.factory()),
		"yearly", "2026")
	require.NoError(t, err)

	assert.Contains(t, out, "Yearly summary → rollup.md")
	assert.Equal(t, []string{"yearly:2026:false"}, fx.summarize.list())
}
