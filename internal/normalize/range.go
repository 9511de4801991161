package normalize

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/workrecap/workrecap/internal/llm"
	"github.com/workrecap/workrecap/pkg/dateutil"
	"github.com/workrecap/workrecap/pkg/recap"
)

// RangeOptions tunes NormalizeRange. Zero values mean: honor freshness,
// one worker, per-date LLM calls, no progress reporting.
type RangeOptions struct {
	Force      bool
	MaxWorkers int
	// Batch sends all enrichment in one batch API call instead of one
	// chat call per date. Ignored without a configured LLM.
	Batch    bool
	Progress func(string)
}

// dateActivities pairs a normalized date with its activities while a
// batch enrichment is in flight.
type dateActivities struct {
	date       string
	activities []recap.Activity
}

// NormalizeRange normalizes every date in [since, until] inclusive,
// skipping fresh dates unless Force is set. One result is returned per
// date, in range order. An inverted range yields no results.
func (n *Normalizer) NormalizeRange(ctx context.Context, since, until string, opts RangeOptions) ([]recap.DateResult, error) {
	dates, err := dateutil.Range(since, until)
	if err != nil {
		return nil, err
	}

	if len(dates) == 0 {
		return []recap.DateResult{}, nil
	}

	n.logger.Info("range normalize starting", "since", since, "until", until,
		"dates", len(dates), "force", opts.Force, "workers", opts.MaxWorkers, "batch", opts.Batch)
	report(opts.Progress, "Normalizing %s..%s (%d dates)", since, until, len(dates))

	if opts.Batch && n.llm != nil {
		return n.rangeBatch(ctx, dates, opts)
	}

	if opts.MaxWorkers <= 1 {
		return n.rangeSequential(ctx, dates, opts)
	}

	return n.rangeParallel(ctx, dates, opts)
}

// rangeDate normalizes one date of a range, mapping freshness to skipped
// and any error to a failed result.
func (n *Normalizer) rangeDate(ctx context.Context, date string, opts RangeOptions) recap.DateResult {
	if !opts.Force && n.isDateNormalized(date) {
		return recap.DateResult{Date: date, Status: recap.DateSkipped}
	}

	_, err := n.normalizeDate(ctx, date, true, opts.Progress)
	if err != nil {
		n.logger.Warn("normalize failed", "date", date, "error", err)

		return recap.DateResult{Date: date, Status: recap.DateFailed, Error: err.Error()}
	}

	return recap.DateResult{Date: date, Status: recap.DateSuccess}
}

func (n *Normalizer) rangeSequential(ctx context.Context, dates []string, opts RangeOptions) ([]recap.DateResult, error) {
	results := make([]recap.DateResult, 0, len(dates))

	for _, date := range dates {
		err := ctx.Err()
		if err != nil {
			return results, err
		}

		results = append(results, n.rangeDate(ctx, date, opts))
	}

	return results, nil
}

func (n *Normalizer) rangeParallel(ctx context.Context, dates []string, opts RangeOptions) ([]recap.DateResult, error) {
	results := make([]recap.DateResult, len(dates))

	for i, date := range dates {
		results[i] = recap.DateResult{Date: date, Status: recap.DateSkipped}
	}

	group := new(errgroup.Group)
	group.SetLimit(opts.MaxWorkers)

	for i, date := range dates {
		group.Go(func() error {
			cancelErr := ctx.Err()
			if cancelErr != nil {
				return cancelErr
			}

			results[i] = n.rangeDate(ctx, date, opts)

			return nil
		})
	}

	err := group.Wait()
	if err != nil {
		return results, err
	}

	return results, nil
}

// rangeBatch normalizes in three phases: every stale date is normalized
// and persisted without enrichment, then one batch call enriches all
// collected activities, then the enriched activity files are rewritten.
// A failed or missing batch result leaves its date persisted un-enriched.
func (n *Normalizer) rangeBatch(ctx context.Context, dates []string, opts RangeOptions) ([]recap.DateResult, error) {
	results := make([]recap.DateResult, 0, len(dates))
	collected := make([]dateActivities, 0, len(dates))

	for _, date := range dates {
		err := ctx.Err()
		if err != nil {
			return results, err
		}

		if !opts.Force && n.isDateNormalized(date) {
			results = append(results, recap.DateResult{Date: date, Status: recap.DateSkipped})

			continue
		}

		activities, err := n.normalizeDate(ctx, date, false, opts.Progress)
		if err != nil {
			n.logger.Warn("normalize failed", "date", date, "error", err)
			results = append(results, recap.DateResult{Date: date, Status: recap.DateFailed, Error: err.Error()})

			continue
		}

		collected = append(collected, dateActivities{date: date, activities: activities})
		results = append(results, recap.DateResult{Date: date, Status: recap.DateSuccess})
	}

	if len(collected) == 0 {
		return results, nil
	}

	n.batchEnrich(ctx, collected, opts.Progress)

	for _, da := range collected {
		err := recap.SaveJSONL(n.cfg.ActivitiesPath(da.date), da.activities)
		if err != nil {
			n.logger.Warn("save enriched activities failed", "date", da.date, "error", err)
		}
	}

	return results, nil
}

// batchEnrich submits one enrichment request per non-empty date as a
// single batch, waits for it, and applies each result in place. Every
// failure shape degrades to un-enriched activities.
func (n *Normalizer) batchEnrich(ctx context.Context, collected []dateActivities, progress func(string)) {
	items := make([]llm.BatchItem, 0, len(collected))

	for _, da := range collected {
		if len(da.activities) == 0 {
			continue
		}

		prompt, err := n.buildEnrichPrompt(da.activities)
		if err != nil {
			n.logger.Warn("enrich prompt unavailable, skipping date", "date", da.date, "error", err)

			continue
		}

		items = append(items, llm.BatchItem{
			CustomID:          enrichCustomID(da.date),
			SystemPrompt:      prompt.system,
			UserContent:       prompt.user,
			JSONMode:          true,
			CacheSystemPrompt: true,
		})
	}

	if len(items) == 0 {
		n.logger.Info("no enrichment prompts prepared for batch")

		return
	}

	n.logger.Info("submitting batch enrichment", "dates", len(items))

	batchID, err := n.llm.SubmitBatch(ctx, taskEnrich, items)
	if err != nil {
		n.logger.Warn("batch enrichment failed, continuing without enrichment", "error", err)

		return
	}

	batchResults, err := n.llm.WaitForBatch(ctx, taskEnrich, batchID, llm.WaitOptions{
		BatchSize: len(items),
		Progress:  progress,
	})
	if err != nil {
		n.logger.Warn("batch enrichment failed, continuing without enrichment", "error", err)

		return
	}

	contents := make(map[string]string, len(batchResults))
	seen := make(map[string]bool, len(batchResults))

	for _, br := range batchResults {
		seen[br.CustomID] = true

		if br.Failed() {
			n.logger.Warn("batch enrichment error", "custom_id", br.CustomID, "error", br.Err)

			continue
		}

		contents[br.CustomID] = br.Content
	}

	missing := int64(0)

	for _, item := range items {
		if !seen[item.CustomID] {
			n.logger.Warn("batch result missing for request", "custom_id", item.CustomID)
			missing++
		}
	}

	n.metrics.AddBatchMissingResults(ctx, taskEnrich, missing)

	for _, da := range collected {
		text, ok := contents[enrichCustomID(da.date)]
		if !ok {
			continue
		}

		err = applyEnrichment(da.activities, text)
		if err != nil {
			n.logger.Warn("enrichment response rejected", "date", da.date, "error", err)
		}
	}
}

// enrichCustomID names a date's request inside an enrichment batch.
func enrichCustomID(date string) string {
	return "enrich-" + date
}
