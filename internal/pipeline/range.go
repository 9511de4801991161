package pipeline

import (
	"context"
	"sort"

	"github.com/workrecap/workrecap/internal/fetch"
	"github.com/workrecap/workrecap/internal/normalize"
	"github.com/workrecap/workrecap/internal/summarize"
	"github.com/workrecap/workrecap/pkg/dateutil"
	"github.com/workrecap/workrecap/pkg/recap"
)

// RangeOptions tunes RunRange. Zero values mean: all types, honor
// freshness, one worker, per-date LLM calls, no progress reporting.
type RangeOptions struct {
	Types      []string
	Force      bool
	MaxWorkers int
	Batch      bool
	Progress   func(string)
}

// RunRange backfills [since, until] inclusive in three bulk phases: the
// whole range is fetched, then normalized, then summarized. Per-date
// outcomes of the phases are merged into one result per date: its first
// failing phase fails the date, a date every phase skipped is skipped,
// anything else succeeded. An inverted range yields no results.
func (p *Pipeline) RunRange(ctx context.Context, since, until string, opts RangeOptions) ([]recap.DateResult, error) {
	dates, err := dateutil.Range(since, until)
	if err != nil {
		return nil, err
	}

	if len(dates) == 0 {
		return []recap.DateResult{}, nil
	}

	p.logger.Info("pipeline range starting", "since", since, "until", until,
		"force", opts.Force, "types", opts.Types, "workers", opts.MaxWorkers, "batch", opts.Batch)

	report(opts.Progress, "Phase 1/3: Fetching %s..%s", since, until)

	fetchResults, err := p.fetch.FetchRange(ctx, since, until, fetch.RangeOptions{
		Types:      opts.Types,
		Force:      opts.Force,
		MaxWorkers: opts.MaxWorkers,
		Progress:   opts.Progress,
	})
	if err != nil {
		return nil, err
	}

	p.logger.Info("phase complete: fetch", "since", since, "until", until)
	report(opts.Progress, "Phase 2/3: Normalizing %s..%s", since, until)

	normalizeResults, err := p.normalize.NormalizeRange(ctx, since, until, normalize.RangeOptions{
		Force:      opts.Force,
		MaxWorkers: opts.MaxWorkers,
		Batch:      opts.Batch,
		Progress:   opts.Progress,
	})
	if err != nil {
		return nil, err
	}

	p.logger.Info("phase complete: normalize", "since", since, "until", until)
	report(opts.Progress, "Phase 3/3: Summarizing %s..%s", since, until)

	summarizeResults, err := p.summarize.DailyRange(ctx, since, until, summarize.RangeOptions{
		Force:      opts.Force,
		MaxWorkers: opts.MaxWorkers,
		Batch:      opts.Batch,
		Progress:   opts.Progress,
	})
	if err != nil {
		return nil, err
	}

	results := p.mergeResults(fetchResults, normalizeResults, summarizeResults)

	succeeded := 0

	for _, res := range results {
		if res.Status == recap.DateSuccess {
			succeeded++
		}
	}

	p.logger.Info("pipeline range complete", "succeeded", succeeded, "total", len(results),
		"since", since, "until", until)

	return results, nil
}

// phaseResults is one phase's outcomes indexed by date.
type phaseResults struct {
	name   string
	byDate map[string]recap.DateResult
}

// mergeResults folds the three phases' per-date outcomes into one result
// per date, ordered by date.
func (p *Pipeline) mergeResults(fetched, normalized, summarized []recap.DateResult) []recap.DateResult {
	phases := []phaseResults{
		{name: "fetch", byDate: indexByDate(fetched)},
		{name: "normalize", byDate: indexByDate(normalized)},
		{name: "summarize", byDate: indexByDate(summarized)},
	}

	seen := make(map[string]bool)

	var dates []string

	for _, results := range [][]recap.DateResult{fetched, normalized, summarized} {
		for _, res := range results {
			if !seen[res.Date] {
				dates = append(dates, res.Date)
				seen[res.Date] = true
			}
		}
	}

	sort.Strings(dates)

	merged := make([]recap.DateResult, 0, len(dates))

	for _, date := range dates {
		merged = append(merged, p.mergeDate(date, phases))
	}

	return merged
}

// mergeDate resolves one date across the phases: first failure wins, a
// fully skipped date stays skipped, anything else is a success. A truncated
// fetch keeps its mark on the merged result.
func (p *Pipeline) mergeDate(date string, phases []phaseResults) recap.DateResult {
	allSkipped := true
	truncated := false

	for _, phase := range phases {
		entry, ok := phase.byDate[date]

		if ok && entry.Truncated {
			truncated = true
		}

		if ok && entry.Status == recap.DateFailed {
			errMsg := entry.Error
			if errMsg == "" {
				errMsg = "unknown error"
			}

			return recap.DateResult{
				Date:   date,
				Status: recap.DateFailed,
				Error:  "Pipeline failed at '" + phase.name + "': " + errMsg,
			}
		}

		if !ok || entry.Status != recap.DateSkipped {
			allSkipped = false
		}
	}

	if allSkipped {
		return recap.DateResult{Date: date, Status: recap.DateSkipped}
	}

	result := recap.DateResult{Date: date, Status: recap.DateSuccess, Truncated: truncated}
	if p.cfg != nil {
		result.DailySummaryPath = p.cfg.DailySummaryPath(date)
	}

	return result
}

// indexByDate maps results by their date.
func indexByDate(results []recap.DateResult) map[string]recap.DateResult {
	indexed := make(map[string]recap.DateResult, len(results))
	for _, res := range results {
		indexed[res.Date] = res
	}

	return indexed
}
