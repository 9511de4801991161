package fetch

import (
	"context"
	"fmt"
	"time"

	"github.com/google/go-github/v74/github"
	"golang.org/x/sync/errgroup"

	"github.com/workrecap/workrecap/internal/config"
	"github.com/workrecap/workrecap/internal/state"
	"github.com/workrecap/workrecap/pkg/dateutil"
	"github.com/workrecap/workrecap/pkg/ghsearch"
	"github.com/workrecap/workrecap/pkg/recap"
)

// RangeOptions tunes FetchRange. Zero values mean: all types, no force, one
// worker, no progress reporting.
type RangeOptions struct {
	Types      []string
	Force      bool
	MaxWorkers int
	Progress   func(string)
}

// ChunkBuckets is one month chunk's search results keyed by ISO date. Cached
// in the fetch-progress store so an interrupted range run resumes without
// repeating searches.
type ChunkBuckets struct {
	PRs       map[string][]*github.Issue        `json:"prs"`
	Commits   map[string][]*github.CommitResult `json:"commits"`
	Issues    map[string][]*github.Issue        `json:"issues"`
	Truncated bool                              `json:"truncated"`
}

// FetchRange collects every date in [since, until] inclusive. Searches run
// once per calendar-month chunk; dates that are fresh are skipped unless
// Force is set, and dates whose failures are exhausted are never retried
// automatically. One result is returned per date, in range order. An
// inverted range yields no results.
func (f *Fetcher) FetchRange(ctx context.Context, since, until string, opts RangeOptions) ([]recap.DateResult, error) {
	dates, err := dateutil.Range(since, until)
	if err != nil {
		return nil, err
	}

	if len(dates) == 0 {
		return []recap.DateResult{}, nil
	}

	chunks, err := dateutil.MonthlyChunks(since, until)
	if err != nil {
		return nil, err
	}

	selected, err := f.selectDates(dates, opts.Force)
	if err != nil {
		return nil, err
	}

	want := typeSet(opts.Types)

	workers := opts.MaxWorkers
	if workers < 1 {
		workers = 1
	}

	f.logger.Info("range fetch starting", "since", since, "until", until,
		"dates", len(dates), "selected", len(selected), "workers", workers)

	results := make([]recap.DateResult, len(dates))
	index := make(map[string]int, len(dates))

	for i, date := range dates {
		index[date] = i
		results[i] = recap.DateResult{Date: date, Status: recap.DateSkipped}
	}

	for _, chunk := range chunks {
		chunkDates := datesInChunk(selected, chunk)
		if len(chunkDates) == 0 {
			continue
		}

		buckets, err := f.chunkBuckets(ctx, chunk, want, opts.Progress)
		if err != nil {
			for _, date := range chunkDates {
				results[index[date]] = f.failDate(date, err)
			}

			if ctx.Err() != nil {
				return results, ctx.Err()
			}

			continue
		}

		// A nil worker client tells rangeDate to acquire from the pool.
		worker := f.client
		if workers > 1 && f.pool != nil {
			worker = nil
		}

		group := new(errgroup.Group)
		group.SetLimit(workers)

		for _, date := range chunkDates {
			group.Go(func() error {
				cancelErr := ctx.Err()
				if cancelErr != nil {
					return cancelErr
				}

				results[index[date]] = f.rangeDate(ctx, worker, date, want, buckets, opts.Progress)

				return nil
			})
		}

		err = group.Wait()
		if err != nil {
			return results, err
		}

		err = f.progress.ClearChunk(chunk.Key())
		if err != nil {
			f.logger.Warn("clear fetch progress failed", "chunk", chunk.Key(), "error", err)
		}
	}

	return results, nil
}

// selectDates applies the staleness and retry policy: stale or retryable
// dates stay, exhausted dates drop, force keeps everything.
func (f *Fetcher) selectDates(dates []string, force bool) ([]string, error) {
	if force {
		return dates, nil
	}

	stale, err := f.daily.StaleDates(state.PhaseFetch, dates)
	if err != nil {
		return nil, err
	}

	retryable, err := f.failed.RetryableDates(dates)
	if err != nil {
		return nil, err
	}

	exhausted, err := f.failed.ExhaustedDates()
	if err != nil {
		return nil, err
	}

	keep := make(map[string]bool, len(stale)+len(retryable))

	for _, d := range stale {
		keep[d] = true
	}

	for _, d := range retryable {
		keep[d] = true
	}

	for _, d := range exhausted {
		delete(keep, d)
	}

	var selected []string

	for _, d := range dates {
		if keep[d] {
			selected = append(selected, d)
		}
	}

	return selected, nil
}

// datesInChunk filters dates down to the chunk's window. ISO dates compare
// correctly as strings.
func datesInChunk(dates []string, chunk dateutil.Chunk) []string {
	var inside []string

	for _, d := range dates {
		if d >= chunk.Since && d <= chunk.Until {
			inside = append(inside, d)
		}
	}

	return inside
}

// chunkBuckets returns the chunk's search results, from the progress store
// when cached, otherwise by searching the whole chunk window and bucketing
// by date.
func (f *Fetcher) chunkBuckets(ctx context.Context, chunk dateutil.Chunk, want map[string]bool, progress func(string)) (*ChunkBuckets, error) {
	key := chunk.Key()

	cached, ok, err := f.progress.LoadChunk(key)
	if err != nil {
		f.logger.Warn("fetch progress unreadable, searching again", "chunk", key, "error", err)
	} else if ok {
		f.report(progress, "Reusing cached searches for %s..%s", chunk.Since, chunk.Until)

		return cached, nil
	}

	f.report(progress, "Searching %s..%s", chunk.Since, chunk.Until)

	window := chunk.Since + ".." + chunk.Until
	buckets := &ChunkBuckets{
		PRs:     map[string][]*github.Issue{},
		Commits: map[string][]*github.CommitResult{},
		Issues:  map[string][]*github.Issue{},
	}

	if want[config.RawPRs] {
		items, truncated, err := f.searchPRs(ctx, f.client, window)
		if err != nil {
			return nil, err
		}

		buckets.Truncated = buckets.Truncated || truncated
		bucketIssues(buckets.PRs, items)
	}

	if want[config.RawCommits] {
		items, truncated := f.searchCommits(ctx, f.client, window)
		buckets.Truncated = buckets.Truncated || truncated
		bucketCommits(buckets.Commits, items)
	}

	if want[config.RawIssues] {
		items, truncated := f.searchIssues(ctx, f.client, window)
		buckets.Truncated = buckets.Truncated || truncated
		bucketIssues(buckets.Issues, items)
	}

	if buckets.Truncated {
		f.logger.Warn("chunk searches truncated at upstream cap, some activity may be missing",
			"since", chunk.Since, "until", chunk.Until)
	}

	err = f.progress.SaveChunk(key, buckets)
	if err != nil {
		f.logger.Warn("save fetch progress failed", "chunk", key, "error", err)
	}

	return buckets, nil
}

// rangeDate enriches and persists one date from pre-searched buckets. A nil
// client means acquire one from the pool for the duration of the date.
func (f *Fetcher) rangeDate(ctx context.Context, client Searcher, date string, want map[string]bool, buckets *ChunkBuckets, progress func(string)) recap.DateResult {
	start := time.Now()
	status := "error"

	defer func() {
		f.metrics.RecordPhase(ctx, "fetch", status, time.Since(start))
	}()

	if client == nil {
		pooled, err := f.pool.Acquire(ctx)
		if err != nil {
			return f.failDate(date, fmt.Errorf("acquire client: %w", err))
		}
		defer f.pool.Release(pooled)

		client = pooled
	}

	_, err := f.persistDate(ctx, client, date, want, buckets.PRs[date], buckets.Commits[date], buckets.Issues[date])
	if err != nil {
		f.report(progress, "Fetch failed for %s: %v", date, err)

		return f.failDate(date, err)
	}

	err = f.failed.RecordSuccess(date, state.PhaseFetch)
	if err != nil {
		f.logger.Warn("clear failure record failed", "date", date, "error", err)
	}

	status = "success"

	f.report(progress, "Fetched %s", date)

	return recap.DateResult{Date: date, Status: recap.DateSuccess, Truncated: buckets.Truncated}
}

// failDate records a classified failure and builds the failed result.
func (f *Fetcher) failDate(date string, err error) recap.DateResult {
	permanent := ghsearch.IsPermanent(err)

	recordErr := f.failed.RecordFailure(date, state.PhaseFetch, err.Error(), permanent)
	if recordErr != nil {
		f.logger.Warn("record failure failed", "date", date, "error", recordErr)
	}

	f.logger.Error("date fetch failed", "date", date, "permanent", permanent, "error", err)

	return recap.DateResult{Date: date, Status: recap.DateFailed, Error: err.Error()}
}

// report forwards a formatted progress line when a callback is set.
func (f *Fetcher) report(progress func(string), format string, args ...any) {
	if progress != nil {
		progress(fmt.Sprintf(format, args...))
	}
}

// bucketIssues groups searched issues or PRs by the ISO date of updated_at.
// Items without a timestamp cannot be assigned to a date and are dropped.
func bucketIssues(into map[string][]*github.Issue, items []*github.Issue) {
	for _, item := range items {
		ts := item.GetUpdatedAt().Time
		if ts.IsZero() {
			continue
		}

		date := ts.UTC().Format(dateutil.Layout)
		into[date] = append(into[date], item)
	}
}

// bucketCommits groups searched commits by the ISO date of the committer
// timestamp.
func bucketCommits(into map[string][]*github.CommitResult, items []*github.CommitResult) {
	for _, item := range items {
		ts := item.GetCommit().GetCommitter().GetDate().Time
		if ts.IsZero() {
			continue
		}

		date := ts.UTC().Format(dateutil.Layout)
		into[date] = append(into[date], item)
	}
}
