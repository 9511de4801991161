// Package pipeline chains the fetch, normalize, and summarize phases into
// per-date and per-range runs. Phase failures stop a single-date run at the
// failing step and leave the earlier phases' outputs on disk; range runs
// let each phase sweep the whole range before the next one starts, so one
// bad date never blocks its neighbors.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/workrecap/workrecap/internal/config"
	"github.com/workrecap/workrecap/internal/fetch"
	"github.com/workrecap/workrecap/internal/normalize"
	"github.com/workrecap/workrecap/internal/summarize"
	"github.com/workrecap/workrecap/pkg/recap"
)

// StepError reports which pipeline step failed. Unwrap exposes the phase
// error for errors.Is checks.
type StepError struct {
	Step string
	Err  error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("Pipeline failed at '%s': %v", e.Step, e.Err)
}

func (e *StepError) Unwrap() error { return e.Err }

// Fetcher is the fetch phase. Satisfied by *fetch.Fetcher.
type Fetcher interface {
	Fetch(ctx context.Context, date string, types []string) (map[string]string, error)
	FetchRange(ctx context.Context, since, until string, opts fetch.RangeOptions) ([]recap.DateResult, error)
}

// Normalizer is the normalize phase. Satisfied by *normalize.Normalizer.
type Normalizer interface {
	Normalize(ctx context.Context, date string) (activitiesPath, statsPath string, err error)
	NormalizeRange(ctx context.Context, since, until string, opts normalize.RangeOptions) ([]recap.DateResult, error)
}

// Summarizer is the summarize phase. Satisfied by *summarize.Summarizer.
type Summarizer interface {
	Daily(ctx context.Context, date string) (string, error)
	DailyRange(ctx context.Context, since, until string, opts summarize.RangeOptions) ([]recap.DateResult, error)
	Weekly(ctx context.Context, year, week int, force bool) (string, error)
	Monthly(ctx context.Context, year, month int, force bool) (string, error)
	Yearly(ctx context.Context, year int, force bool) (string, error)
}

// Store receives normalized data and summaries as they are produced.
// Satisfied by *storage.Service. Store calls are best-effort: a failure
// logs and the run continues.
type Store interface {
	SaveActivities(ctx context.Context, date string, activities []recap.Activity, stats recap.DailyStats) error
	SaveSummary(ctx context.Context, level, target, content string) error
}

// Options wires a Pipeline. Config, Fetch, Normalize, and Summarize are
// required. Store is optional.
type Options struct {
	Config    *config.Config
	Fetch     Fetcher
	Normalize Normalizer
	Summarize Summarizer
	Store     Store
	Logger    *slog.Logger
}

// Pipeline orchestrates the three phases over one date or a date range.
type Pipeline struct {
	cfg       *config.Config
	fetch     Fetcher
	normalize Normalizer
	summarize Summarizer
	store     Store
	logger    *slog.Logger
}

// New builds a Pipeline from opts.
func New(opts Options) *Pipeline {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Pipeline{
		cfg:       opts.Config,
		fetch:     opts.Fetch,
		normalize: opts.Normalize,
		summarize: opts.Summarize,
		store:     opts.Store,
		logger:    logger,
	}
}

// RunOptions tunes RunDaily. Types selects the raw sources to fetch;
// empty means all of them.
type RunOptions struct {
	Types    []string
	Progress func(string)
}

// RunDaily runs fetch → normalize → summarize for one date and returns
// the daily summary path. The first failing step aborts the run with a
// StepError; outputs of completed steps stay on disk.
func (p *Pipeline) RunDaily(ctx context.Context, date string, opts RunOptions) (string, error) {
	p.logger.Info("pipeline starting", "date", date, "types", opts.Types)
	report(opts.Progress, "Pipeline: fetch %s", date)

	_, err := p.fetch.Fetch(ctx, date, opts.Types)
	if err != nil {
		return "", &StepError{Step: "fetch", Err: err}
	}

	p.logger.Info("phase complete: fetch", "date", date)
	report(opts.Progress, "Pipeline: normalize %s", date)

	activitiesPath, statsPath, err := p.normalize.Normalize(ctx, date)
	if err != nil {
		return "", &StepError{Step: "normalize", Err: err}
	}

	p.storeActivities(ctx, date, activitiesPath, statsPath)

	p.logger.Info("phase complete: normalize", "date", date)
	report(opts.Progress, "Pipeline: summarize %s", date)

	summaryPath, err := p.summarize.Daily(ctx, date)
	if err != nil {
		return "", &StepError{Step: "summarize", Err: err}
	}

	p.storeSummary(ctx, "daily", date, summaryPath)

	p.logger.Info("pipeline completed", "date", date, "summary", summaryPath)

	return summaryPath, nil
}

// RunWeekly generates the weekly rollup.
func (p *Pipeline) RunWeekly(ctx context.Context, year, week int, force bool) (string, error) {
	path, err := p.summarize.Weekly(ctx, year, week, force)
	if err != nil {
		return "", err
	}

	p.storeSummary(ctx, "weekly", fmt.Sprintf("%d-W%02d", year, week), path)

	return path, nil
}

// RunMonthly generates the monthly rollup.
func (p *Pipeline) RunMonthly(ctx context.Context, year, month int, force bool) (string, error) {
	path, err := p.summarize.Monthly(ctx, year, month, force)
	if err != nil {
		return "", err
	}

	p.storeSummary(ctx, "monthly", fmt.Sprintf("%d-%02d", year, month), path)

	return path, nil
}

// RunYearly generates the yearly rollup.
func (p *Pipeline) RunYearly(ctx context.Context, year int, force bool) (string, error) {
	path, err := p.summarize.Yearly(ctx, year, force)
	if err != nil {
		return "", err
	}

	p.storeSummary(ctx, "yearly", fmt.Sprintf("%d", year), path)

	return path, nil
}

// storeActivities mirrors one date's normalized outputs into the store.
func (p *Pipeline) storeActivities(ctx context.Context, date, activitiesPath, statsPath string) {
	if p.store == nil {
		return
	}

	activities, err := recap.LoadJSONL[recap.Activity](activitiesPath)
	if err != nil {
		p.logger.Warn("storage skipped: activities unreadable", "date", date, "error", err)

		return
	}

	var stats recap.DailyStats

	err = recap.LoadJSON(statsPath, &stats)
	if err != nil {
		p.logger.Warn("storage skipped: stats unreadable", "date", date, "error", err)

		return
	}

	err = p.store.SaveActivities(ctx, date, activities, stats)
	if err != nil {
		p.logger.Warn("storage save_activities failed", "date", date, "error", err)
	}
}

// storeSummary mirrors a generated summary into the store.
func (p *Pipeline) storeSummary(ctx context.Context, level, target, path string) {
	if p.store == nil {
		return
	}

	content, err := os.ReadFile(path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			p.logger.Warn("storage skipped: summary unreadable", "target", target, "error", err)
		}

		return
	}

	err = p.store.SaveSummary(ctx, level, target, string(content))
	if err != nil {
		p.logger.Warn("storage save_summary failed", "level", level, "target", target, "error", err)
	}
}

// report forwards a formatted progress line when a callback is set.
func report(progress func(string), format string, args ...any) {
	if progress != nil {
		progress(fmt.Sprintf(format, args...))
	}
}
