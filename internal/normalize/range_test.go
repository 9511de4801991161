package normalize

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/workrecap/workrecap/internal/config"
	"github.com/workrecap/workrecap/internal/llm/provider"
	"github.com/workrecap/workrecap/internal/state"
	"github.com/workrecap/workrecap/pkg/recap"
)

var rangeDates = []string{"2026-01-01", "2026-01-02"}

func saveRangeRaw(t *testing.T, cfg *config.Config) {
	t.Helper()

	for _, date := range rangeDates {
		saveRawPRs(t, cfg, date, []recap.PRRaw{makePR(prOverrides{
			title:     "PR for " + date,
			createdAt: date + "T10:00:00Z",
		})})
		saveRawCommits(t, cfg, date, []recap.CommitRaw{})
		saveRawIssues(t, cfg, date, []recap.IssueRaw{})
	}
}

func TestNormalizeRange_SequentialEnrichesPerDate(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	writeEnrichPrompt(t, cfg, testEnrichPrompt)
	saveRangeRaw(t, cfg)

	fake := &fakeLLM{response: `[{"index": 0, "change_summary": "test change", "intent": "feature"}]`}
	n := newNormalizer(t, cfg, fake)

	results, err := n.NormalizeRange(context.Background(), rangeDates[0], rangeDates[1], RangeOptions{Force: true})

	require.NoError(t, err)
	require.Len(t, results, 2)

	for i, res := range results {
		assert.Equal(t, rangeDates[i], res.Date)
		assert.Equal(t, recap.DateSuccess, res.Status)
	}

	assert.Equal(t, 2, fake.chatCount())
	assert.Empty(t, fake.submitted)
}

func TestNormalizeRange_SkipsFreshDates(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	saveRangeRaw(t, cfg)

	n := newNormalizer(t, cfg, nil)

	first, err := n.NormalizeRange(context.Background(), rangeDates[0], rangeDates[1], RangeOptions{})
	require.NoError(t, err)

	for _, res := range first {
		assert.Equal(t, recap.DateSuccess, res.Status)
	}

	second, err := n.NormalizeRange(context.Background(), rangeDates[0], rangeDates[1], RangeOptions{})
	require.NoError(t, err)

	for _, res := range second {
		assert.Equal(t, recap.DateSkipped, res.Status)
	}
}

func TestNormalizeRange_ForceReprocesses(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	saveRangeRaw(t, cfg)

	n := newNormalizer(t, cfg, nil)

	_, err := n.NormalizeRange(context.Background(), rangeDates[0], rangeDates[1], RangeOptions{})
	require.NoError(t, err)

	results, err := n.NormalizeRange(context.Background(), rangeDates[0], rangeDates[1], RangeOptions{Force: true})
	require.NoError(t, err)

	for _, res := range results {
		assert.Equal(t, recap.DateSuccess, res.Status)
	}
}

func TestNormalizeRange_RefetchedDateReruns(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	saveRangeRaw(t, cfg)

	daily := state.NewDailyStateStore(cfg.DailyStatePath(), quietLogger())
	for _, date := range rangeDates {
		require.NoError(t, daily.SetTimestamp(state.PhaseFetch, date, time.Now().Add(-time.Minute)))
	}

	n := New(Options{Config: cfg, Daily: daily, Logger: quietLogger()})

	first, err := n.NormalizeRange(context.Background(), rangeDates[0], rangeDates[1], RangeOptions{})
	require.NoError(t, err)

	for _, res := range first {
		assert.Equal(t, recap.DateSuccess, res.Status)
	}

	// A newer fetch reopens the first date without force.
	require.NoError(t, daily.SetTimestamp(state.PhaseFetch, rangeDates[0], time.Now().Add(time.Minute)))

	second, err := n.NormalizeRange(context.Background(), rangeDates[0], rangeDates[1], RangeOptions{})
	require.NoError(t, err)
	require.Len(t, second, 2)

	assert.Equal(t, recap.DateSuccess, second[0].Status)
	assert.Equal(t, recap.DateSkipped, second[1].Status)
}

func TestNormalizeRange_FailureDoesNotStopRange(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	saveRawPRs(t, cfg, rangeDates[0], []recap.PRRaw{makePR(prOverrides{
		createdAt: rangeDates[0] + "T10:00:00Z",
	})})
	// Second date has no raw data.

	n := newNormalizer(t, cfg, nil)

	results, err := n.NormalizeRange(context.Background(), rangeDates[0], rangeDates[1], RangeOptions{})

	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, recap.DateSuccess, results[0].Status)
	assert.Equal(t, recap.DateFailed, results[1].Status)
	assert.Contains(t, results[1].Error, "raw file not found")
}

func TestNormalizeRange_Parallel(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	saveRangeRaw(t, cfg)

	n := newNormalizer(t, cfg, nil)

	results, err := n.NormalizeRange(context.Background(), rangeDates[0], rangeDates[1], RangeOptions{MaxWorkers: 4})

	require.NoError(t, err)
	require.Len(t, results, 2)

	for i, res := range results {
		assert.Equal(t, rangeDates[i], res.Date)
		assert.Equal(t, recap.DateSuccess, res.Status)
	}
}

func TestNormalizeRange_InvalidRange(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	n := newNormalizer(t, cfg, nil)

	_, err := n.NormalizeRange(context.Background(), "bogus", rangeDates[1], RangeOptions{})

	require.Error(t, err)
}

// ── Batch ──

func TestNormalizeRange_BatchSubmitsOnce(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	writeEnrichPrompt(t, cfg, testEnrichPrompt)
	saveRangeRaw(t, cfg)

	fake := &fakeLLM{
		batchResults: []provider.BatchResult{
			{CustomID: "enrich-2026-01-01",
				Content: `[{"index": 0, "change_summary": "batch change 1", "intent": "bugfix"}]`},
			{CustomID: "enrich-2026-01-02",
				Content: `[{"index": 0, "change_summary": "batch change 2", "intent": "feature"}]`},
		},
	}
	n := newNormalizer(t, cfg, fake)

	results, err := n.NormalizeRange(context.Background(), rangeDates[0], rangeDates[1], RangeOptions{Force: true, Batch: true})

	require.NoError(t, err)
	require.Len(t, results, 2)

	for _, res := range results {
		assert.Equal(t, recap.DateSuccess, res.Status)
	}

	require.Len(t, fake.submitted, 1)
	require.Len(t, fake.submitted[0], 2)
	assert.Equal(t, "enrich-2026-01-01", fake.submitted[0][0].CustomID)
	assert.Equal(t, "enrich-2026-01-02", fake.submitted[0][1].CustomID)
	assert.True(t, fake.submitted[0][0].JSONMode)
	assert.True(t, fake.submitted[0][0].CacheSystemPrompt)
	assert.Equal(t, taskEnrich, fake.submitTask)
	assert.Zero(t, fake.chatCount())

	activities, err := recap.LoadJSONL[recap.Activity](cfg.ActivitiesPath("2026-01-01"))
	require.NoError(t, err)
	require.Len(t, activities, 1)
	assert.Equal(t, "batch change 1", activities[0].ChangeSummary)
	assert.Equal(t, "bugfix", activities[0].Intent)
}

func TestNormalizeRange_BatchErrorResultLeavesDateUnenriched(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	writeEnrichPrompt(t, cfg, testEnrichPrompt)
	saveRangeRaw(t, cfg)

	fake := &fakeLLM{
		batchResults: []provider.BatchResult{
			{CustomID: "enrich-2026-01-01",
				Content: `[{"index": 0, "change_summary": "ok", "intent": "feature"}]`},
			{CustomID: "enrich-2026-01-02", Err: "Rate limit exceeded"},
		},
	}
	n := newNormalizer(t, cfg, fake)

	results, err := n.NormalizeRange(context.Background(), rangeDates[0], rangeDates[1], RangeOptions{Force: true, Batch: true})

	require.NoError(t, err)

	// Both dates still succeed; enrichment is best-effort.
	for _, res := range results {
		assert.Equal(t, recap.DateSuccess, res.Status)
	}

	first, err := recap.LoadJSONL[recap.Activity](cfg.ActivitiesPath("2026-01-01"))
	require.NoError(t, err)
	assert.Equal(t, "ok", first[0].ChangeSummary)

	second, err := recap.LoadJSONL[recap.Activity](cfg.ActivitiesPath("2026-01-02"))
	require.NoError(t, err)
	assert.Empty(t, second[0].ChangeSummary)
}

func TestNormalizeRange_BatchSubmitErrorDegradesToUnenriched(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	writeEnrichPrompt(t, cfg, testEnrichPrompt)
	saveRangeRaw(t, cfg)

	fake := &fakeLLM{submitErr: errors.New("quota exhausted")}
	n := newNormalizer(t, cfg, fake)

	results, err := n.NormalizeRange(context.Background(), rangeDates[0], rangeDates[1], RangeOptions{Force: true, Batch: true})

	require.NoError(t, err)

	for _, res := range results {
		assert.Equal(t, recap.DateSuccess, res.Status)
	}

	activities, err := recap.LoadJSONL[recap.Activity](cfg.ActivitiesPath("2026-01-01"))
	require.NoError(t, err)
	assert.Empty(t, activities[0].ChangeSummary)
}

func TestNormalizeRange_BatchWithoutLLMFallsBackToSequential(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	saveRangeRaw(t, cfg)

	n := newNormalizer(t, cfg, nil)

	results, err := n.NormalizeRange(context.Background(), rangeDates[0], rangeDates[1], RangeOptions{Force: true, Batch: true})

	require.NoError(t, err)
	require.Len(t, results, 2)

	for _, res := range results {
		assert.Equal(t, recap.DateSuccess, res.Status)
	}
}

func TestNormalizeRange_BatchSkipsFreshDates(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	writeEnrichPrompt(t, cfg, testEnrichPrompt)
	saveRangeRaw(t, cfg)

	fake := &fakeLLM{response: "[]"}
	n := newNormalizer(t, cfg, fake)

	_, err := n.NormalizeRange(context.Background(), rangeDates[0], rangeDates[1], RangeOptions{Force: true})
	require.NoError(t, err)

	results, err := n.NormalizeRange(context.Background(), rangeDates[0], rangeDates[1], RangeOptions{Batch: true})
	require.NoError(t, err)

	for _, res := range results {
		assert.Equal(t, recap.DateSkipped, res.Status)
	}

	assert.Empty(t, fake.submitted)
}

func TestNormalizeRange_BatchEmptyDayNotSubmitted(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	writeEnrichPrompt(t, cfg, testEnrichPrompt)

	saveRawPRs(t, cfg, rangeDates[0], []recap.PRRaw{})
	saveRawPRs(t, cfg, rangeDates[1], []recap.PRRaw{makePR(prOverrides{
		createdAt: rangeDates[1] + "T10:00:00Z",
	})})

	fake := &fakeLLM{
		batchResults: []provider.BatchResult{
			{CustomID: "enrich-2026-01-02",
				Content: `[{"index": 0, "change_summary": "only real day", "intent": "feature"}]`},
		},
	}
	n := newNormalizer(t, cfg, fake)

	results, err := n.NormalizeRange(context.Background(), rangeDates[0], rangeDates[1], RangeOptions{Force: true, Batch: true})

	require.NoError(t, err)

	for _, res := range results {
		assert.Equal(t, recap.DateSuccess, res.Status)
	}

	require.Len(t, fake.submitted, 1)
	require.Len(t, fake.submitted[0], 1)
	assert.Equal(t, "enrich-2026-01-02", fake.submitted[0][0].CustomID)
}
