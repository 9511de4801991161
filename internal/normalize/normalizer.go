// Package normalize turns the fetcher's raw per-date JSON into sorted
// activity logs and daily stats under data/normalized. PRs are required
// input; commits and issues are tolerated-absent so dates fetched before
// those sources existed still normalize. An optional LLM pass classifies
// each activity with a change summary and an intent.
package normalize

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/workrecap/workrecap/internal/config"
	"github.com/workrecap/workrecap/internal/llm"
	"github.com/workrecap/workrecap/internal/llm/provider"
	"github.com/workrecap/workrecap/internal/observability"
	"github.com/workrecap/workrecap/internal/state"
	"github.com/workrecap/workrecap/pkg/dateutil"
	"github.com/workrecap/workrecap/pkg/recap"
)

// ErrRawNotFound reports that a date's prs.json was never fetched. The
// pipeline treats it as permanent: re-running normalize cannot help until
// a fetch succeeds.
var ErrRawNotFound = errors.New("raw file not found")

// Enricher is the slice of the LLM router the normalizer uses. Satisfied
// by *llm.Router.
type Enricher interface {
	Chat(ctx context.Context, systemPrompt, userContent string, call llm.ChatCall) (string, error)
	SubmitBatch(ctx context.Context, task string, items []llm.BatchItem) (string, error)
	WaitForBatch(ctx context.Context, task, batchID string, opts llm.WaitOptions) ([]provider.BatchResult, error)
}

// Options wires a Normalizer. Config is required. LLM is optional; without
// it activities stay un-enriched. Daily and Checkpoints are optional; with
// no daily-state store, freshness falls back to output file existence.
type Options struct {
	Config      *config.Config
	LLM         Enricher
	Daily       *state.DailyStateStore
	Checkpoints *state.Checkpoints
	Metrics     *observability.Metrics
	Logger      *slog.Logger
}

// Normalizer converts raw PR, commit, and issue records into per-date
// activities and stats, keeping the normalize bookkeeping current.
type Normalizer struct {
	cfg      *config.Config
	username string
	llm      Enricher
	daily    *state.DailyStateStore
	checks   *state.Checkpoints
	metrics  *observability.Metrics
	logger   *slog.Logger
}

// New builds a Normalizer from opts.
func New(opts Options) *Normalizer {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Normalizer{
		cfg:      opts.Config,
		username: opts.Config.GitHub.Username,
		llm:      opts.LLM,
		daily:    opts.Daily,
		checks:   opts.Checkpoints,
		metrics:  opts.Metrics,
		logger:   logger,
	}
}

// Normalize converts one date's raw files into activities.jsonl and
// stats.json, enriching through the LLM when one is configured. It returns
// the two written paths.
func (n *Normalizer) Normalize(ctx context.Context, date string) (activitiesPath, statsPath string, err error) {
	_, err = n.normalizeDate(ctx, date, true, nil)
	if err != nil {
		return "", "", err
	}

	return n.cfg.ActivitiesPath(date), n.cfg.StatsPath(date), nil
}

// normalizeDate is the shared core: load raw, convert, sort, optionally
// enrich, compute stats, persist, and mark the normalize state. It returns
// the written activities so the batch strategy can enrich them later.
func (n *Normalizer) normalizeDate(ctx context.Context, date string, enrich bool, progress func(string)) (activities []recap.Activity, err error) {
	start := time.Now()
	status := "error"

	defer func() {
		n.metrics.RecordPhase(ctx, "normalize", status, time.Since(start))
	}()

	_, err = dateutil.Parse(date)
	if err != nil {
		return nil, err
	}

	n.logger.Info("normalizing date", "date", date)
	report(progress, "Normalizing %s...", date)

	prs, err := n.loadPRs(date)
	if err != nil {
		return nil, err
	}

	commits := n.loadCommits(date)
	issues := n.loadIssues(date)

	activities = convertPRs(prs, n.username, date)
	activities = append(activities, convertCommits(commits, date)...)
	activities = append(activities, convertIssues(issues, n.username, date)...)
	sortActivities(activities)

	if enrich {
		n.enrichActivities(ctx, activities)
	}

	stats := computeStats(activities, date)

	err = recap.SaveJSONL(n.cfg.ActivitiesPath(date), activities)
	if err != nil {
		return nil, err
	}

	err = recap.SaveJSON(n.cfg.StatsPath(date), stats)
	if err != nil {
		return nil, err
	}

	n.markNormalized(date)

	n.logger.Info("date normalized", "date", date, "activities", len(activities))

	status = "success"

	return activities, nil
}

// loadPRs reads the date's prs.json. A missing file is ErrRawNotFound and
// a parse failure propagates: both are hard errors for the date.
func (n *Normalizer) loadPRs(date string) ([]recap.PRRaw, error) {
	path := n.cfg.RawFilePath(date, config.RawPRs)

	var prs []recap.PRRaw

	err := recap.LoadJSON(path, &prs)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrRawNotFound, path)
	}

	if err != nil {
		return nil, err
	}

	return prs, nil
}

// loadCommits reads the date's commits.json. Absent or unreadable files
// degrade to no commits: older fetches predate commit collection.
func (n *Normalizer) loadCommits(date string) []recap.CommitRaw {
	path := n.cfg.RawFilePath(date, config.RawCommits)

	var commits []recap.CommitRaw

	err := recap.LoadJSON(path, &commits)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			n.logger.Warn("unreadable commits file, skipping commits", "path", path, "error", err)
		}

		return nil
	}

	return commits
}

// loadIssues reads the date's issues.json with the same tolerance as
// loadCommits.
func (n *Normalizer) loadIssues(date string) []recap.IssueRaw {
	path := n.cfg.RawFilePath(date, config.RawIssues)

	var issues []recap.IssueRaw

	err := recap.LoadJSON(path, &issues)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			n.logger.Warn("unreadable issues file, skipping issues", "path", path, "error", err)
		}

		return nil
	}

	return issues
}

// isDateNormalized reports whether a date's normalized outputs are current.
// With a daily-state store the timestamp cascade decides; without one the
// presence of both output files does.
func (n *Normalizer) isDateNormalized(date string) bool {
	if n.daily != nil {
		stale, err := n.daily.IsNormalizeStale(date)
		if err != nil {
			n.logger.Warn("staleness check failed, renormalizing", "date", date, "error", err)

			return false
		}

		return !stale
	}

	_, actErr := os.Stat(n.cfg.ActivitiesPath(date))
	_, statsErr := os.Stat(n.cfg.StatsPath(date))

	return actErr == nil && statsErr == nil
}

// markNormalized advances the normalize checkpoint and daily-state record.
func (n *Normalizer) markNormalized(date string) {
	if n.checks != nil {
		err := n.checks.Update(state.CheckpointLastNormalizeDate, date)
		if err != nil {
			n.logger.Warn("advance normalize checkpoint failed", "date", date, "error", err)
		}
	}

	if n.daily != nil {
		err := n.daily.SetTimestamp(state.PhaseNormalize, date, time.Time{})
		if err != nil {
			n.logger.Warn("mark normalize state failed", "date", date, "error", err)
		}
	}
}

// report forwards a formatted progress line when a callback is set.
func report(progress func(string), format string, args ...any) {
	if progress != nil {
		progress(fmt.Sprintf(format, args...))
	}
}
