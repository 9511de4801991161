// Package commands implements the workrecap CLI commands.
package commands

import (
	"context"

	"github.com/workrecap/workrecap/internal/fetch"
	"github.com/workrecap/workrecap/internal/normalize"
	"github.com/workrecap/workrecap/internal/pipeline"
	"github.com/workrecap/workrecap/internal/summarize"
	"github.com/workrecap/workrecap/pkg/recap"
)

// Globals holds the root persistent flags shared by every command.
type Globals struct {
	ConfigPath string
	Verbose    bool
	LogJSON    bool
}

// fetchService is the fetch surface the CLI drives. Satisfied by
// *fetch.Fetcher.
type fetchService interface {
	Fetch(ctx context.Context, date string, types []string) (map[string]string, error)
	FetchRange(ctx context.Context, since, until string, opts fetch.RangeOptions) ([]recap.DateResult, error)
}

// normalizeService is the normalize surface the CLI drives. Satisfied by
// *normalize.Normalizer.
type normalizeService interface {
	Normalize(ctx context.Context, date string) (activitiesPath, statsPath string, err error)
	NormalizeRange(ctx context.Context, since, until string, opts normalize.RangeOptions) ([]recap.DateResult, error)
}

// summarizeService is the summary surface the CLI drives. Satisfied by
// *summarize.Summarizer.
type summarizeService interface {
	Daily(ctx context.Context, date string) (string, error)
	DailyRange(ctx context.Context, since, until string, opts summarize.RangeOptions) ([]recap.DateResult, error)
	Weekly(ctx context.Context, year, week int, force bool) (string, error)
	Monthly(ctx context.Context, year, month int, force bool) (string, error)
	Yearly(ctx context.Context, year int, force bool) (string, error)
	Query(ctx context.Context, question string, monthsBack int) (string, error)
}

// pipelineService is the orchestrator surface the CLI drives. Its method
// set covers the scheduler's Runner and the API server's Pipeline, so one
// instance serves all three. Satisfied by *pipeline.Pipeline.
type pipelineService interface {
	RunDaily(ctx context.Context, date string, opts pipeline.RunOptions) (string, error)
	RunRange(ctx context.Context, since, until string, opts pipeline.RangeOptions) ([]recap.DateResult, error)
	RunWeekly(ctx context.Context, year, week int, force bool) (string, error)
	RunMonthly(ctx context.Context, year, month int, force bool) (string, error)
	RunYearly(ctx context.Context, year int, force bool) (string, error)
}
