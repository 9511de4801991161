package config

import (
	"fmt"
	"path/filepath"
	"strings"
)

// Raw entity file basenames under a date's raw directory.
const (
	RawPRs     = "prs"
	RawCommits = "commits"
	RawIssues  = "issues"
)

// splitDate splits a validated ISO date "2026-01-15" into its components.
func splitDate(date string) (year, month, day string) {
	parts := strings.SplitN(date, "-", 3)
	if len(parts) != 3 {
		return date, "", ""
	}

	return parts[0], parts[1], parts[2]
}

// RawDir is the root of per-date raw API payloads.
func (c *Config) RawDir() string {
	return filepath.Join(c.Data.Dir, "raw")
}

// NormalizedDir is the root of per-date normalized activities and stats.
func (c *Config) NormalizedDir() string {
	return filepath.Join(c.Data.Dir, "normalized")
}

// SummariesDir is the root of generated Markdown summaries.
func (c *Config) SummariesDir() string {
	return filepath.Join(c.Data.Dir, "summaries")
}

// StateDir is the root of pipeline bookkeeping files.
func (c *Config) StateDir() string {
	return filepath.Join(c.Data.Dir, "state")
}

// CheckpointsPath is the monotonic checkpoint file.
func (c *Config) CheckpointsPath() string {
	return filepath.Join(c.StateDir(), "checkpoints.json")
}

// DailyStatePath is the per-date phase timestamp file.
func (c *Config) DailyStatePath() string {
	return filepath.Join(c.StateDir(), "daily_state.json")
}

// FailedDatesPath is the per-date failure record file.
func (c *Config) FailedDatesPath() string {
	return filepath.Join(c.StateDir(), "failed_dates.json")
}

// FetchProgressDir holds per-chunk cached search results.
func (c *Config) FetchProgressDir() string {
	return filepath.Join(c.StateDir(), "fetch_progress")
}

// BatchStatePath is the submitted-batch record file.
func (c *Config) BatchStatePath() string {
	return filepath.Join(c.StateDir(), "batch_state.json")
}

// UsagePath is the accumulated token usage file.
func (c *Config) UsagePath() string {
	return filepath.Join(c.StateDir(), "usage.json")
}

// SchedulerHistoryPath is the scheduler job event log.
func (c *Config) SchedulerHistoryPath() string {
	return filepath.Join(c.StateDir(), "scheduler_history.json")
}

// DateRawDir returns data/raw/{YYYY}/{MM}/{DD} for an ISO date.
func (c *Config) DateRawDir(date string) string {
	y, m, d := splitDate(date)

	return filepath.Join(c.RawDir(), y, m, d)
}

// RawFilePath returns the raw JSON file for one entity kind on a date,
// e.g. data/raw/2026/01/15/prs.json.
func (c *Config) RawFilePath(date, entity string) string {
	return filepath.Join(c.DateRawDir(date), entity+".json")
}

// DateNormalizedDir returns data/normalized/{YYYY}/{MM}/{DD}.
func (c *Config) DateNormalizedDir(date string) string {
	y, m, d := splitDate(date)

	return filepath.Join(c.NormalizedDir(), y, m, d)
}

// ActivitiesPath is the per-date activity JSONL file.
func (c *Config) ActivitiesPath(date string) string {
	return filepath.Join(c.DateNormalizedDir(date), "activities.jsonl")
}

// StatsPath is the per-date stats JSON file.
func (c *Config) StatsPath(date string) string {
	return filepath.Join(c.DateNormalizedDir(date), "stats.json")
}

// DailySummaryPath returns data/summaries/{YYYY}/daily/{MM}-{DD}.md.
func (c *Config) DailySummaryPath(date string) string {
	y, m, d := splitDate(date)

	return filepath.Join(c.SummariesDir(), y, "daily", fmt.Sprintf("%s-%s.md", m, d))
}

// WeeklySummaryPath returns data/summaries/{YYYY}/weekly/W{ww}.md.
func (c *Config) WeeklySummaryPath(year, week int) string {
	return filepath.Join(c.SummariesDir(), fmt.Sprintf("%d", year), "weekly", fmt.Sprintf("W%02d.md", week))
}

// MonthlySummaryPath returns data/summaries/{YYYY}/monthly/{MM}.md.
func (c *Config) MonthlySummaryPath(year, month int) string {
	return filepath.Join(c.SummariesDir(), fmt.Sprintf("%d", year), "monthly", fmt.Sprintf("%02d.md", month))
}

// YearlySummaryPath returns data/summaries/{YYYY}/yearly.md.
func (c *Config) YearlySummaryPath(year int) string {
	return filepath.Join(c.SummariesDir(), fmt.Sprintf("%d", year), "yearly.md")
}

// PromptPath returns the Markdown prompt template for a task.
func (c *Config) PromptPath(task string) string {
	return filepath.Join(c.Data.PromptsDir, task+".md")
}
