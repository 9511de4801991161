package config

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func testConfig() *Config {
	return &Config{Data: DataConfig{Dir: "data", PromptsDir: "prompts"}}
}

func TestPaths_StateLayout(t *testing.T) {
	t.Parallel()

	cfg := testConfig()

	assert.Equal(t, filepath.Join("data", "state", "checkpoints.json"), cfg.CheckpointsPath())
	assert.Equal(t, filepath.Join("data", "state", "daily_state.json"), cfg.DailyStatePath())
	assert.Equal(t, filepath.Join("data", "state", "failed_dates.json"), cfg.FailedDatesPath())
	assert.Equal(t, filepath.Join("data", "state", "fetch_progress"), cfg.FetchProgressDir())
	assert.Equal(t, filepath.Join("data", "state", "batch_state.json"), cfg.BatchStatePath())
	assert.Equal(t, filepath.Join("data", "state", "usage.json"), cfg.UsagePath())
}

func TestPaths_RawLayout(t *testing.T) {
	t.Parallel()

	cfg := testConfig()

	assert.Equal(t, filepath.Join("data", "raw", "2026", "01", "15"), cfg.DateRawDir("2026-01-15"))
	assert.Equal(t,
		filepath.Join("data", "raw", "2026", "01", "15", "prs.json"),
		cfg.RawFilePath("2026-01-15", RawPRs))
	assert.Equal(t,
		filepath.Join("data", "raw", "2026", "01", "15", "commits.json"),
		cfg.RawFilePath("2026-01-15", RawCommits))
	assert.Equal(t,
		filepath.Join("data", "raw", "2026", "01", "15", "issues.json"),
		cfg.RawFilePath("2026-01-15", RawIssues))
}

func TestPaths_NormalizedLayout(t *testing.T) {
	t.Parallel()

	cfg := testConfig()

	assert.Equal(t,
		filepath.Join("data", "normalized", "2026", "01", "15", "activities.jsonl"),
		cfg.ActivitiesPath("2026-01-15"))
	assert.Equal(t,
		filepath.Join("data", "normalized", "2026", "01", "15", "stats.json"),
		cfg.StatsPath("2026-01-15"))
}

func TestPaths_SummaryLayout(t *testing.T) {
	t.Parallel()

	cfg := testConfig()

	assert.Equal(t,
		filepath.Join("data", "summaries", "2026", "daily", "01-15.md"),
		cfg.DailySummaryPath("2026-01-15"))
	assert.Equal(t,
		filepath.Join("data", "summaries", "2026", "weekly", "W07.md"),
		cfg.WeeklySummaryPath(2026, 7))
	assert.Equal(t,
		filepath.Join("data", "summaries", "2026", "monthly", "02.md"),
		cfg.MonthlySummaryPath(2026, 2))
	assert.Equal(t,
		filepath.Join("data", "summaries", "2026", "yearly.md"),
		cfg.YearlySummaryPath(2026))
}

func TestPaths_PromptPath(t *testing.T) {
	t.Parallel()

	cfg := testConfig()

	assert.Equal(t, filepath.Join("prompts", "daily.md"), cfg.PromptPath("daily"))
	assert.Equal(t, filepath.Join("prompts", "enrich.md"), cfg.PromptPath("enrich"))
}
