package summarize

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/workrecap/workrecap/internal/llm"
	"github.com/workrecap/workrecap/pkg/dateutil"
	"github.com/workrecap/workrecap/pkg/recap"
)

// RangeOptions tunes DailyRange. Zero values mean: honor freshness, one
// worker, per-date chat calls, no progress reporting.
type RangeOptions struct {
	Force      bool
	MaxWorkers int
	// Batch generates every stale date through one batch API submission
	// instead of one chat call per date. Dates without activities never
	// reach the batch: their marker files are written locally.
	Batch    bool
	Progress func(string)
}

// pendingDaily is one date whose summary is in flight inside a batch.
type pendingDaily struct {
	index int
	date  string
}

// DailyRange generates daily summaries for every date in [since, until]
// inclusive, skipping fresh dates unless Force is set. One result is
// returned per date, in range order. An inverted range yields no results.
func (s *Summarizer) DailyRange(ctx context.Context, since, until string, opts RangeOptions) ([]recap.DateResult, error) {
	dates, err := dateutil.Range(since, until)
	if err != nil {
		return nil, err
	}

	if len(dates) == 0 {
		return []recap.DateResult{}, nil
	}

	s.logger.Info("range summarize starting", "since", since, "until", until,
		"dates", len(dates), "force", opts.Force, "workers", opts.MaxWorkers, "batch", opts.Batch)
	report(opts.Progress, "Summarizing %s..%s (%d dates)", since, until, len(dates))

	if opts.Batch {
		return s.rangeBatch(ctx, dates, opts)
	}

	if opts.MaxWorkers <= 1 {
		return s.rangeSequential(ctx, dates, opts)
	}

	return s.rangeParallel(ctx, dates, opts)
}

// rangeDate summarizes one date of a range, mapping freshness to skipped
// and any error to a failed result.
func (s *Summarizer) rangeDate(ctx context.Context, date string, opts RangeOptions) recap.DateResult {
	if !opts.Force && s.isDateSummarized(date) {
		return recap.DateResult{Date: date, Status: recap.DateSkipped}
	}

	path, err := s.Daily(ctx, date)
	if err != nil {
		s.logger.Warn("summarize failed", "date", date, "error", err)

		return recap.DateResult{Date: date, Status: recap.DateFailed, Error: err.Error()}
	}

	report(opts.Progress, "Summarized %s", date)

	return recap.DateResult{Date: date, Status: recap.DateSuccess, DailySummaryPath: path}
}

func (s *Summarizer) rangeSequential(ctx context.Context, dates []string, opts RangeOptions) ([]recap.DateResult, error) {
	results := make([]recap.DateResult, 0, len(dates))

	for _, date := range dates {
		err := ctx.Err()
		if err != nil {
			return results, err
		}

		results = append(results, s.rangeDate(ctx, date, opts))
	}

	return results, nil
}

func (s *Summarizer) rangeParallel(ctx context.Context, dates []string, opts RangeOptions) ([]recap.DateResult, error) {
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

			results[i] = s.rangeDate(ctx, date, opts)

			return nil
		})
	}

	err := group.Wait()
	if err != nil {
		return results, err
	}

	return results, nil
}

// rangeBatch prepares one request per stale non-empty date, submits them
// as a single batch, and writes each returned summary. Dates the batch
// never answers stay failed with their placeholder error; a submit or
// wait error fails every pending date.
func (s *Summarizer) rangeBatch(ctx context.Context, dates []string, opts RangeOptions) ([]recap.DateResult, error) {
	start := time.Now()
	results := make([]recap.DateResult, len(dates))

	items := make([]llm.BatchItem, 0, len(dates))
	pending := make([]pendingDaily, 0, len(dates))

	for i, date := range dates {
		err := ctx.Err()
		if err != nil {
			return results[:i], err
		}

		if !opts.Force && s.isDateSummarized(date) {
			results[i] = recap.DateResult{Date: date, Status: recap.DateSkipped}

			continue
		}

		dateStart := time.Now()

		item, queued, err := s.prepareBatchDate(date)
		if err != nil {
			s.logger.Warn("summarize failed", "date", date, "error", err)
			results[i] = recap.DateResult{Date: date, Status: recap.DateFailed, Error: err.Error()}
			s.metrics.RecordPhase(ctx, "summarize", "error", time.Since(dateStart))

			continue
		}

		if !queued {
			// Empty day: the marker file is already written.
			results[i] = recap.DateResult{Date: date, Status: recap.DateSuccess, DailySummaryPath: s.cfg.DailySummaryPath(date)}
			s.metrics.RecordPhase(ctx, "summarize", "success", time.Since(dateStart))

			continue
		}

		items = append(items, item)
		pending = append(pending, pendingDaily{index: i, date: date})
		results[i] = recap.DateResult{Date: date, Status: recap.DateFailed, Error: "batch result missing"}
	}

	if len(items) == 0 {
		return results, nil
	}

	s.logger.Info("submitting batch summaries", "dates", len(items))
	report(opts.Progress, "Submitting batch of %d daily summaries", len(items))

	batchID, err := s.llm.SubmitBatch(ctx, taskDaily, items)
	if err != nil {
		s.failPending(results, pending, err)

		return results, nil
	}

	batchResults, err := s.llm.WaitForBatch(ctx, taskDaily, batchID, llm.WaitOptions{
		BatchSize: len(items),
		Progress:  opts.Progress,
	})
	if err != nil {
		s.failPending(results, pending, err)

		return results, nil
	}

	contents := make(map[string]string, len(batchResults))
	failures := make(map[string]string, len(batchResults))

	for _, br := range batchResults {
		if br.Failed() {
			failures[br.CustomID] = br.Err

			continue
		}

		contents[br.CustomID] = br.Content
	}

	missing := int64(0)

	for _, p := range pending {
		id := dailyCustomID(p.date)

		text, ok := contents[id]
		if !ok {
			if msg, failed := failures[id]; failed {
				s.logger.Warn("batch summary error", "date", p.date, "error", msg)
				results[p.index] = recap.DateResult{Date: p.date, Status: recap.DateFailed, Error: msg}
			} else {
				s.logger.Warn("batch result missing for request", "custom_id", id)
				missing++
			}

			s.metrics.RecordPhase(ctx, "summarize", "error", time.Since(start))

			continue
		}

		outputPath := s.cfg.DailySummaryPath(p.date)

		err = saveMarkdown(outputPath, text)
		if err != nil {
			s.logger.Warn("save summary failed", "date", p.date, "error", err)
			results[p.index] = recap.DateResult{Date: p.date, Status: recap.DateFailed, Error: err.Error()}
			s.metrics.RecordPhase(ctx, "summarize", "error", time.Since(start))

			continue
		}

		s.markSummarized(p.date)

		results[p.index] = recap.DateResult{Date: p.date, Status: recap.DateSuccess, DailySummaryPath: outputPath}
		s.metrics.RecordPhase(ctx, "summarize", "success", time.Since(start))
		report(opts.Progress, "Summarized %s", p.date)
	}

	s.metrics.AddBatchMissingResults(ctx, taskDaily, missing)

	return results, nil
}

// prepareBatchDate loads one date and builds its batch request. An empty
// day writes its marker immediately and reports queued=false.
func (s *Summarizer) prepareBatchDate(date string) (item llm.BatchItem, queued bool, err error) {
	in, err := s.loadDailyInput(date)
	if err != nil {
		return llm.BatchItem{}, false, err
	}

	if len(in.activities) == 0 {
		s.logger.Info("no activities, skipping LLM call", "date", date)

		err = saveMarkdown(s.cfg.DailySummaryPath(date), fmt.Sprintf(emptyDayFormat, date))
		if err != nil {
			return llm.BatchItem{}, false, err
		}

		s.markSummarized(date)

		return llm.BatchItem{}, false, nil
	}

	prompt, err := s.buildDailyPrompt(date, in)
	if err != nil {
		return llm.BatchItem{}, false, err
	}

	return llm.BatchItem{
		CustomID:          dailyCustomID(date),
		SystemPrompt:      prompt.system,
		UserContent:       prompt.user,
		CacheSystemPrompt: true,
	}, true, nil
}

// failPending marks every still-pending date failed with the batch error.
func (s *Summarizer) failPending(results []recap.DateResult, pending []pendingDaily, err error) {
	s.logger.Warn("batch summarize failed", "error", err)

	for _, p := range pending {
		results[p.index] = recap.DateResult{Date: p.date, Status: recap.DateFailed, Error: err.Error()}
	}
}

// dailyCustomID names a date's request inside a summary batch.
func dailyCustomID(date string) string {
	return "daily-" + date
}
