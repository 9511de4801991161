// Package fetch collects a user's GitHub activity into per-date raw JSON
// files under data/raw. Single dates run their searches directly; ranges
// chunk searches by calendar month, cache the buckets in the fetch-progress
// store, and enrich dates sequentially or with a worker pool.
package fetch

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/go-github/v74/github"

	"github.com/workrecap/workrecap/internal/config"
	"github.com/workrecap/workrecap/internal/observability"
	"github.com/workrecap/workrecap/internal/state"
	"github.com/workrecap/workrecap/pkg/dateutil"
	"github.com/workrecap/workrecap/pkg/ghsearch"
	"github.com/workrecap/workrecap/pkg/persist"
	"github.com/workrecap/workrecap/pkg/recap"
)

// AllTypes lists every entity kind the fetcher collects, in persist order.
var AllTypes = []string{config.RawPRs, config.RawCommits, config.RawIssues}

// prSearchAxes are the three views of PR involvement a date covers. The
// reviewed-by qualifier is rejected by older GHES releases, so that axis is
// best-effort.
var prSearchAxes = []string{"author", axisReviewedBy, "commenter"}

const axisReviewedBy = "reviewed-by"

// issueSearchAxes are the two views of issue involvement a date covers.
var issueSearchAxes = []string{"author", "commenter"}

// Searcher is the slice of the GitHub client the fetcher uses. Satisfied by
// *ghsearch.Client, including clients handed out by a ghsearch.Pool.
type Searcher interface {
	SearchIssuesAll(ctx context.Context, query string) ([]*github.Issue, bool, error)
	SearchCommitsAll(ctx context.Context, query string) ([]*github.CommitResult, bool, error)
	GetPR(ctx context.Context, owner, repo string, number int) (*github.PullRequest, error)
	GetPRFiles(ctx context.Context, owner, repo string, number int) ([]*github.CommitFile, error)
	GetPRComments(ctx context.Context, owner, repo string, number int) ([]ghsearch.Comment, error)
	GetPRReviews(ctx context.Context, owner, repo string, number int) ([]*github.PullRequestReview, error)
	GetCommit(ctx context.Context, owner, repo, sha string) (*github.RepositoryCommit, error)
	GetIssue(ctx context.Context, owner, repo string, number int) (*github.Issue, error)
	GetIssueComments(ctx context.Context, owner, repo string, number int) ([]ghsearch.Comment, error)
	Quota() (int, time.Time)
}

// Options wires a Fetcher. Config, Client, Daily, Failed, and Checkpoints are
// required. Pool supplies per-worker clients for parallel range fetches; nil
// means workers share Client, whose throttle then bounds the whole run.
type Options struct {
	Config      *config.Config
	Client      Searcher
	Pool        *ghsearch.Pool
	Daily       *state.DailyStateStore
	Failed      *state.FailedDateStore
	Checkpoints *state.Checkpoints
	Metrics     *observability.Metrics
	Logger      *slog.Logger
}

// Fetcher turns GitHub search results into enriched raw JSON files and keeps
// the per-date bookkeeping stores current.
type Fetcher struct {
	cfg      *config.Config
	client   Searcher
	pool     *ghsearch.Pool
	daily    *state.DailyStateStore
	failed   *state.FailedDateStore
	checks   *state.Checkpoints
	progress *state.FetchProgressStore[ChunkBuckets]
	metrics  *observability.Metrics
	logger   *slog.Logger
}

// New builds a Fetcher from opts.
func New(opts Options) *Fetcher {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	var codec persist.Codec
	if opts.Config.Pipeline.CompressProgress {
		codec = persist.NewLZ4Codec()
	}

	return &Fetcher{
		cfg:      opts.Config,
		client:   opts.Client,
		pool:     opts.Pool,
		daily:    opts.Daily,
		failed:   opts.Failed,
		checks:   opts.Checkpoints,
		progress: state.NewFetchProgressStore[ChunkBuckets](opts.Config.FetchProgressDir(), codec, logger),
		metrics:  opts.Metrics,
		logger:   logger,
	}
}

// Fetch collects one date's activity and writes one raw file per requested
// type. types selects a subset of AllTypes; empty means everything. The
// returned map holds the written path per type.
func (f *Fetcher) Fetch(ctx context.Context, date string, types []string) (map[string]string, error) {
	start := time.Now()
	status := "error"

	defer func() {
		f.metrics.RecordPhase(ctx, "fetch", status, time.Since(start))
	}()

	_, err := dateutil.Parse(date)
	if err != nil {
		return nil, err
	}

	want := typeSet(types)

	f.logger.Info("fetching date", "date", date, "user", f.cfg.GitHub.Username)

	var (
		prItems     []*github.Issue
		commitItems []*github.CommitResult
		issueItems  []*github.Issue
	)

	if want[config.RawPRs] {
		prItems, _, err = f.searchPRs(ctx, f.client, date)
		if err != nil {
			return nil, err
		}
	}

	if want[config.RawCommits] {
		commitItems, _ = f.searchCommits(ctx, f.client, date)
	}

	if want[config.RawIssues] {
		issueItems, _ = f.searchIssues(ctx, f.client, date)
	}

	paths, err := f.persistDate(ctx, f.client, date, want, prItems, commitItems, issueItems)
	if err != nil {
		return nil, err
	}

	err = f.failed.RecordSuccess(date, state.PhaseFetch)
	if err != nil {
		f.logger.Warn("clear failure record failed", "date", date, "error", err)
	}

	status = "success"

	return paths, nil
}

// persistDate enriches the searched items for one date, writes the requested
// raw files, and marks the fetch state. Every requested file is written even
// when empty so downstream phases can tell "no activity" from "not fetched".
func (f *Fetcher) persistDate(ctx context.Context, client Searcher, date string, want map[string]bool,
	prItems []*github.Issue, commitItems []*github.CommitResult, issueItems []*github.Issue,
) (map[string]string, error) {
	paths := make(map[string]string, len(want))
	counts := make(map[string]int, len(want))

	if want[config.RawPRs] {
		prs, err := f.enrichPRs(ctx, client, prItems)
		if err != nil {
			return nil, fmt.Errorf("enrich prs for %s: %w", date, err)
		}

		path := f.cfg.RawFilePath(date, config.RawPRs)

		err = recap.SaveJSON(path, prs)
		if err != nil {
			return nil, err
		}

		paths[config.RawPRs] = path
		counts[config.RawPRs] = len(prs)
	}

	if want[config.RawCommits] {
		commits, err := f.enrichCommits(ctx, client, commitItems)
		if err != nil {
			return nil, fmt.Errorf("enrich commits for %s: %w", date, err)
		}

		path := f.cfg.RawFilePath(date, config.RawCommits)

		err = recap.SaveJSON(path, commits)
		if err != nil {
			return nil, err
		}

		paths[config.RawCommits] = path
		counts[config.RawCommits] = len(commits)
	}

	if want[config.RawIssues] {
		issues, err := f.enrichIssues(ctx, client, issueItems)
		if err != nil {
			return nil, fmt.Errorf("enrich issues for %s: %w", date, err)
		}

		path := f.cfg.RawFilePath(date, config.RawIssues)

		err = recap.SaveJSON(path, issues)
		if err != nil {
			return nil, err
		}

		paths[config.RawIssues] = path
		counts[config.RawIssues] = len(issues)
	}

	err := f.daily.SetTimestamp(state.PhaseFetch, date, time.Time{})
	if err != nil {
		return nil, fmt.Errorf("mark fetch state for %s: %w", date, err)
	}

	err = f.checks.Update(state.CheckpointLastFetchDate, date)
	if err != nil {
		return nil, fmt.Errorf("advance fetch checkpoint: %w", err)
	}

	remaining, _ := client.Quota()
	f.metrics.SetRateLimitRemaining(int64(remaining))

	f.logger.Info("date fetched", "date", date, "counts", counts)

	return paths, nil
}

// searchPRs runs the three PR axes over a date or date window, deduplicating
// by PR API URL. A failure on the reviewed-by axis is logged and skipped;
// failures on the other axes propagate.
func (f *Fetcher) searchPRs(ctx context.Context, client Searcher, window string) ([]*github.Issue, bool, error) {
	var (
		items     []*github.Issue
		truncated bool
	)

	seen := make(map[string]bool)

	for _, axis := range prSearchAxes {
		query := fmt.Sprintf("type:pr %s:%s updated:%s", axis, f.cfg.GitHub.Username, window)

		f.metrics.RecordSearchCall(ctx)

		found, trunc, err := client.SearchIssuesAll(ctx, query)
		if err != nil {
			if axis == axisReviewedBy {
				f.logger.Warn("reviewed-by search unsupported, skipping axis", "window", window, "error", err)

				continue
			}

			return nil, false, fmt.Errorf("search prs %s:%s: %w", axis, window, err)
		}

		truncated = truncated || trunc

		for _, item := range found {
			key := item.GetPullRequestLinks().GetURL()
			if key == "" {
				key = item.GetURL()
			}

			if seen[key] {
				continue
			}

			seen[key] = true
			items = append(items, item)
		}
	}

	return items, truncated, nil
}

// searchCommits runs the single commit axis over a date or date window. Any
// search failure is tolerated: commit search is unsupported on some GHES
// releases, so the whole commit path degrades to empty.
func (f *Fetcher) searchCommits(ctx context.Context, client Searcher, window string) ([]*github.CommitResult, bool) {
	query := fmt.Sprintf("author:%s committer-date:%s", f.cfg.GitHub.Username, window)

	f.metrics.RecordSearchCall(ctx)

	items, truncated, err := client.SearchCommitsAll(ctx, query)
	if err != nil {
		f.logger.Warn("commit search failed, skipping commits", "window", window, "error", err)

		return nil, false
	}

	return items, truncated
}

// searchIssues runs the two issue axes over a date or date window,
// deduplicating by API URL and discarding PRs that leak through. Any search
// failure degrades the issue path to empty.
func (f *Fetcher) searchIssues(ctx context.Context, client Searcher, window string) ([]*github.Issue, bool) {
	var (
		items     []*github.Issue
		truncated bool
	)

	seen := make(map[string]bool)

	for _, axis := range issueSearchAxes {
		query := fmt.Sprintf("type:issue %s:%s updated:%s", axis, f.cfg.GitHub.Username, window)

		f.metrics.RecordSearchCall(ctx)

		found, trunc, err := client.SearchIssuesAll(ctx, query)
		if err != nil {
			f.logger.Warn("issue search failed, skipping issues", "axis", axis, "window", window, "error", err)

			return nil, false
		}

		truncated = truncated || trunc

		for _, item := range found {
			if item.IsPullRequest() {
				continue
			}

			key := item.GetURL()
			if seen[key] {
				continue
			}

			seen[key] = true
			items = append(items, item)
		}
	}

	return items, truncated
}

// enrichPRs enriches each searched PR, skipping entities whose enrichment
// fails. Only context cancellation aborts the loop.
func (f *Fetcher) enrichPRs(ctx context.Context, client Searcher, items []*github.Issue) ([]recap.PRRaw, error) {
	prs := make([]recap.PRRaw, 0, len(items))

	for _, item := range items {
		pr, err := f.enrichPR(ctx, client, item)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}

			f.logger.Warn("pr enrich failed, skipping", "url", item.GetHTMLURL(), "error", err)

			continue
		}

		prs = append(prs, pr)
	}

	return prs, nil
}

func (f *Fetcher) enrichPR(ctx context.Context, client Searcher, item *github.Issue) (recap.PRRaw, error) {
	apiURL := item.GetPullRequestLinks().GetURL()
	if apiURL == "" {
		apiURL = item.GetURL()
	}

	owner, repo, number, err := parsePRURL(apiURL)
	if err != nil {
		return recap.PRRaw{}, err
	}

	pr, err := client.GetPR(ctx, owner, repo, number)
	if err != nil {
		return recap.PRRaw{}, fmt.Errorf("get pr %s/%s#%d: %w", owner, repo, number, err)
	}

	files, err := client.GetPRFiles(ctx, owner, repo, number)
	if err != nil {
		return recap.PRRaw{}, fmt.Errorf("get pr files %s/%s#%d: %w", owner, repo, number, err)
	}

	comments, err := client.GetPRComments(ctx, owner, repo, number)
	if err != nil {
		return recap.PRRaw{}, fmt.Errorf("get pr comments %s/%s#%d: %w", owner, repo, number, err)
	}

	reviews, err := client.GetPRReviews(ctx, owner, repo, number)
	if err != nil {
		return recap.PRRaw{}, fmt.Errorf("get pr reviews %s/%s#%d: %w", owner, repo, number, err)
	}

	repoName := pr.GetBase().GetRepo().GetFullName()
	if repoName == "" {
		repoName = owner + "/" + repo
	}

	return recap.PRRaw{
		URL:       pr.GetHTMLURL(),
		APIURL:    pr.GetURL(),
		Number:    pr.GetNumber(),
		Title:     pr.GetTitle(),
		Body:      pr.GetBody(),
		State:     pr.GetState(),
		IsMerged:  pr.GetMerged(),
		CreatedAt: isoTime(pr.GetCreatedAt().Time),
		UpdatedAt: isoTime(pr.GetUpdatedAt().Time),
		MergedAt:  isoTime(pr.GetMergedAt().Time),
		Repo:      repoName,
		Labels:    labelNames(pr.Labels),
		Author:    pr.GetUser().GetLogin(),
		Files:     convertFiles(files),
		Comments:  filterComments(comments),
		Reviews:   filterReviews(reviews),
	}, nil
}

// enrichCommits enriches each searched commit, skipping entities whose
// enrichment fails. Only context cancellation aborts the loop.
func (f *Fetcher) enrichCommits(ctx context.Context, client Searcher, items []*github.CommitResult) ([]recap.CommitRaw, error) {
	commits := make([]recap.CommitRaw, 0, len(items))

	for _, item := range items {
		commit, err := f.enrichCommit(ctx, client, item)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}

			f.logger.Warn("commit enrich failed, skipping", "sha", item.GetSHA(), "error", err)

			continue
		}

		commits = append(commits, commit)
	}

	return commits, nil
}

func (f *Fetcher) enrichCommit(ctx context.Context, client Searcher, item *github.CommitResult) (recap.CommitRaw, error) {
	fullName := item.GetRepository().GetFullName()

	owner, repo, ok := strings.Cut(fullName, "/")
	if !ok {
		return recap.CommitRaw{}, fmt.Errorf("commit %s: bad repository name %q", item.GetSHA(), fullName)
	}

	detail, err := client.GetCommit(ctx, owner, repo, item.GetSHA())
	if err != nil {
		return recap.CommitRaw{}, fmt.Errorf("get commit %s/%s@%s: %w", owner, repo, item.GetSHA(), err)
	}

	return recap.CommitRaw{
		SHA:         detail.GetSHA(),
		URL:         detail.GetHTMLURL(),
		APIURL:      detail.GetURL(),
		Message:     detail.GetCommit().GetMessage(),
		Author:      item.GetAuthor().GetLogin(),
		Repo:        fullName,
		CommittedAt: isoTime(detail.GetCommit().GetCommitter().GetDate().Time),
		Files:       convertFiles(detail.Files),
	}, nil
}

// enrichIssues enriches each searched issue, skipping entities whose
// enrichment fails. Only context cancellation aborts the loop.
func (f *Fetcher) enrichIssues(ctx context.Context, client Searcher, items []*github.Issue) ([]recap.IssueRaw, error) {
	issues := make([]recap.IssueRaw, 0, len(items))

	for _, item := range items {
		issue, err := f.enrichIssue(ctx, client, item)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}

			f.logger.Warn("issue enrich failed, skipping", "url", item.GetHTMLURL(), "error", err)

			continue
		}

		issues = append(issues, issue)
	}

	return issues, nil
}

func (f *Fetcher) enrichIssue(ctx context.Context, client Searcher, item *github.Issue) (recap.IssueRaw, error) {
	owner, repo, number, err := parseIssueURL(item.GetURL())
	if err != nil {
		return recap.IssueRaw{}, err
	}

	issue, err := client.GetIssue(ctx, owner, repo, number)
	if err != nil {
		return recap.IssueRaw{}, fmt.Errorf("get issue %s/%s#%d: %w", owner, repo, number, err)
	}

	comments, err := client.GetIssueComments(ctx, owner, repo, number)
	if err != nil {
		return recap.IssueRaw{}, fmt.Errorf("get issue comments %s/%s#%d: %w", owner, repo, number, err)
	}

	return recap.IssueRaw{
		URL:       issue.GetHTMLURL(),
		APIURL:    issue.GetURL(),
		Number:    issue.GetNumber(),
		Title:     issue.GetTitle(),
		Body:      issue.GetBody(),
		State:     issue.GetState(),
		CreatedAt: isoTime(issue.GetCreatedAt().Time),
		UpdatedAt: isoTime(issue.GetUpdatedAt().Time),
		ClosedAt:  isoTime(issue.GetClosedAt().Time),
		Repo:      owner + "/" + repo,
		Labels:    labelNames(issue.Labels),
		Author:    issue.GetUser().GetLogin(),
		Comments:  filterComments(comments),
	}, nil
}

// typeSet normalizes a type selection. Empty means every type; unknown
// entries are ignored.
func typeSet(types []string) map[string]bool {
	if len(types) == 0 {
		types = AllTypes
	}

	want := make(map[string]bool, len(types))

	for _, t := range types {
		for _, known := range AllTypes {
			if t == known {
				want[t] = true
			}
		}
	}

	return want
}
