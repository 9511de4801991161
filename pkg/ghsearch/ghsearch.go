// Package ghsearch provides a rate-limited GitHub client for the fetch
// pipeline: throttled search over issues and commits, paginated REST reads
// for PR/commit/issue detail, retry with adaptive backoff, and a quota
// watcher that slows down before the API cuts us off.
//
// GitHub Enterprise hosts are addressed at {base_url}/api/v3; api.github.com
// is used as-is.
package ghsearch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/go-github/v74/github"
	"golang.org/x/time/rate"
)

// Defaults for client construction.
const (
	DefaultTimeout        = 30 * time.Second
	DefaultSearchInterval = 2 * time.Second
)

// Search pagination bounds. The upstream search endpoint stops serving
// results past 1000 items, so ten full pages means the query was truncated.
const (
	perPage        = 100
	maxSearchPages = 10
)

// Quota thresholds for the adaptive slowdown.
const (
	criticalQuota = 10
	lowQuota      = 100
)

// Construction errors.
var (
	// ErrMissingBaseURL is returned when Options.BaseURL is empty.
	ErrMissingBaseURL = errors.New("base URL is required")
	// ErrMissingToken is returned when Options.Token is empty.
	ErrMissingToken = errors.New("token is required")
)

// Options configures a Client.
type Options struct {
	// BaseURL is the GitHub host, e.g. "https://github.example.com" or
	// "https://api.github.com".
	BaseURL string
	// Token is the personal access token.
	Token string
	// Timeout bounds each HTTP request. Zero means DefaultTimeout.
	Timeout time.Duration
	// SearchInterval is the minimum spacing between search calls shared by
	// all users of this client. Zero means DefaultSearchInterval; negative
	// disables throttling.
	SearchInterval time.Duration
	// Logger receives retry and quota events. Nil means slog.Default().
	Logger *slog.Logger
}

// Client is a retrying GitHub client. The search path is throttled to stay
// under the ~30 req/min search quota; REST reads are not throttled but share
// the retry policy and quota watcher.
type Client struct {
	gh      *github.Client
	limiter *rate.Limiter
	logger  *slog.Logger

	quotaMu   sync.Mutex
	remaining int
	resetAt   time.Time
}

// Comment is the merged view over PR review comments and issue comments.
// Path, Line, and DiffHunk are populated only for inline review comments.
type Comment struct {
	Author    string
	Body      string
	CreatedAt time.Time
	HTMLURL   string
	Path      string
	Line      int
	DiffHunk  string
}

// New constructs a Client for the given host.
func New(opts Options) (*Client, error) {
	if opts.BaseURL == "" {
		return nil, ErrMissingBaseURL
	}

	if opts.Token == "" {
		return nil, ErrMissingToken
	}

	timeout := opts.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}

	interval := opts.SearchInterval
	if interval == 0 {
		interval = DefaultSearchInterval
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	httpClient := &http.Client{Timeout: timeout}
	gh := github.NewClient(httpClient).WithAuthToken(opts.Token)

	if !strings.Contains(opts.BaseURL, "api.github.com") {
		var err error

		gh, err = gh.WithEnterpriseURLs(opts.BaseURL, opts.BaseURL)
		if err != nil {
			return nil, fmt.Errorf("configure enterprise base URL: %w", err)
		}
	}

	var limiter *rate.Limiter
	if interval > 0 {
		limiter = rate.NewLimiter(rate.Every(interval), 1)
	}

	return &Client{gh: gh, limiter: limiter, logger: logger}, nil
}

// SearchIssuesAll runs an issue/PR search and collects every page up to the
// upstream result cap. The second return value reports whether the query was
// truncated at that cap.
func (c *Client) SearchIssuesAll(ctx context.Context, query string) ([]*github.Issue, bool, error) {
	var all []*github.Issue

	for page := 1; ; page++ {
		err := c.waitSearch(ctx)
		if err != nil {
			return nil, false, err
		}

		var result *github.IssuesSearchResult

		op := "search/issues?q=" + query

		err = c.do(ctx, op, func() (*github.Response, error) {
			res, resp, reqErr := c.gh.Search.Issues(ctx, query, &github.SearchOptions{
				ListOptions: github.ListOptions{Page: page, PerPage: perPage},
			})
			if reqErr == nil {
				result = res
			}

			return resp, reqErr
		})
		if err != nil {
			return nil, false, err
		}

		all = append(all, result.Issues...)

		if len(result.Issues) < perPage {
			return all, false, nil
		}

		if page >= maxSearchPages {
			c.logger.Warn("search results truncated at upstream cap",
				"query", query, "collected", len(all), "total", result.GetTotal())

			return all, true, nil
		}
	}
}

// SearchCommitsAll runs a commit search and collects every page up to the
// upstream result cap, reporting truncation like SearchIssuesAll.
func (c *Client) SearchCommitsAll(ctx context.Context, query string) ([]*github.CommitResult, bool, error) {
	var all []*github.CommitResult

	for page := 1; ; page++ {
		err := c.waitSearch(ctx)
		if err != nil {
			return nil, false, err
		}

		var result *github.CommitsSearchResult

		op := "search/commits?q=" + query

		err = c.do(ctx, op, func() (*github.Response, error) {
			res, resp, reqErr := c.gh.Search.Commits(ctx, query, &github.SearchOptions{
				ListOptions: github.ListOptions{Page: page, PerPage: perPage},
			})
			if reqErr == nil {
				result = res
			}

			return resp, reqErr
		})
		if err != nil {
			return nil, false, err
		}

		all = append(all, result.Commits...)

		if len(result.Commits) < perPage {
			return all, false, nil
		}

		if page >= maxSearchPages {
			c.logger.Warn("search results truncated at upstream cap",
				"query", query, "collected", len(all), "total", result.GetTotal())

			return all, true, nil
		}
	}
}

// GetPR fetches full PR detail including addition/deletion counts.
func (c *Client) GetPR(ctx context.Context, owner, repo string, number int) (*github.PullRequest, error) {
	var pr *github.PullRequest

	op := fmt.Sprintf("repos/%s/%s/pulls/%d", owner, repo, number)

	err := c.do(ctx, op, func() (*github.Response, error) {
		res, resp, reqErr := c.gh.PullRequests.Get(ctx, owner, repo, number)
		if reqErr == nil {
			pr = res
		}

		return resp, reqErr
	})
	if err != nil {
		return nil, err
	}

	return pr, nil
}

// GetPRFiles fetches every changed file of a PR.
func (c *Client) GetPRFiles(ctx context.Context, owner, repo string, number int) ([]*github.CommitFile, error) {
	op := fmt.Sprintf("repos/%s/%s/pulls/%d/files", owner, repo, number)

	return paginate(ctx, c, op, func(page int) ([]*github.CommitFile, *github.Response, error) {
		return c.gh.PullRequests.ListFiles(ctx, owner, repo, number, &github.ListOptions{Page: page, PerPage: perPage})
	})
}

// GetPRComments fetches the merged list of inline review comments and
// conversation comments on a PR.
func (c *Client) GetPRComments(ctx context.Context, owner, repo string, number int) ([]Comment, error) {
	reviewOp := fmt.Sprintf("repos/%s/%s/pulls/%d/comments", owner, repo, number)

	reviewComments, err := paginate(ctx, c, reviewOp, func(page int) ([]*github.PullRequestComment, *github.Response, error) {
		return c.gh.PullRequests.ListComments(ctx, owner, repo, number, &github.PullRequestListCommentsOptions{
			ListOptions: github.ListOptions{Page: page, PerPage: perPage},
		})
	})
	if err != nil {
		return nil, err
	}

	issueComments, err := c.GetIssueComments(ctx, owner, repo, number)
	if err != nil {
		return nil, err
	}

	merged := make([]Comment, 0, len(reviewComments)+len(issueComments))
	for _, rc := range reviewComments {
		merged = append(merged, Comment{
			Author:    rc.GetUser().GetLogin(),
			Body:      rc.GetBody(),
			CreatedAt: rc.GetCreatedAt().Time,
			HTMLURL:   rc.GetHTMLURL(),
			Path:      rc.GetPath(),
			Line:      rc.GetLine(),
			DiffHunk:  rc.GetDiffHunk(),
		})
	}

	merged = append(merged, issueComments...)

	return merged, nil
}

// GetPRReviews fetches every review submitted on a PR.
func (c *Client) GetPRReviews(ctx context.Context, owner, repo string, number int) ([]*github.PullRequestReview, error) {
	op := fmt.Sprintf("repos/%s/%s/pulls/%d/reviews", owner, repo, number)

	return paginate(ctx, c, op, func(page int) ([]*github.PullRequestReview, *github.Response, error) {
		return c.gh.PullRequests.ListReviews(ctx, owner, repo, number, &github.ListOptions{Page: page, PerPage: perPage})
	})
}

// GetCommit fetches full commit detail including per-file patches and stats.
func (c *Client) GetCommit(ctx context.Context, owner, repo, sha string) (*github.RepositoryCommit, error) {
	var commit *github.RepositoryCommit

	op := fmt.Sprintf("repos/%s/%s/commits/%s", owner, repo, sha)

	err := c.do(ctx, op, func() (*github.Response, error) {
		res, resp, reqErr := c.gh.Repositories.GetCommit(ctx, owner, repo, sha, nil)
		if reqErr == nil {
			commit = res
		}

		return resp, reqErr
	})
	if err != nil {
		return nil, err
	}

	return commit, nil
}

// GetIssue fetches full issue detail.
func (c *Client) GetIssue(ctx context.Context, owner, repo string, number int) (*github.Issue, error) {
	var issue *github.Issue

	op := fmt.Sprintf("repos/%s/%s/issues/%d", owner, repo, number)

	err := c.do(ctx, op, func() (*github.Response, error) {
		res, resp, reqErr := c.gh.Issues.Get(ctx, owner, repo, number)
		if reqErr == nil {
			issue = res
		}

		return resp, reqErr
	})
	if err != nil {
		return nil, err
	}

	return issue, nil
}

// GetIssueComments fetches the conversation comments on an issue or PR.
func (c *Client) GetIssueComments(ctx context.Context, owner, repo string, number int) ([]Comment, error) {
	op := fmt.Sprintf("repos/%s/%s/issues/%d/comments", owner, repo, number)

	raw, err := paginate(ctx, c, op, func(page int) ([]*github.IssueComment, *github.Response, error) {
		return c.gh.Issues.ListComments(ctx, owner, repo, number, &github.IssueListCommentsOptions{
			ListOptions: github.ListOptions{Page: page, PerPage: perPage},
		})
	})
	if err != nil {
		return nil, err
	}

	comments := make([]Comment, 0, len(raw))
	for _, ic := range raw {
		comments = append(comments, Comment{
			Author:    ic.GetUser().GetLogin(),
			Body:      ic.GetBody(),
			CreatedAt: ic.GetCreatedAt().Time,
			HTMLURL:   ic.GetHTMLURL(),
		})
	}

	return comments, nil
}

// Quota returns the most recently observed rate-limit remaining count and
// reset time. Zero values mean no response has been observed yet.
func (c *Client) Quota() (int, time.Time) {
	c.quotaMu.Lock()
	defer c.quotaMu.Unlock()

	return c.remaining, c.resetAt
}

// waitSearch blocks until the search throttle admits another call.
func (c *Client) waitSearch(ctx context.Context) error {
	if c.limiter == nil {
		return nil
	}

	err := c.limiter.Wait(ctx)
	if err != nil {
		return fmt.Errorf("search throttle: %w", err)
	}

	return nil
}

// do runs fn under the retry policy. Rate-limit retries and server-error
// retries are counted independently.
func (c *Client) do(ctx context.Context, op string, fn func() (*github.Response, error)) error {
	var rateAttempts, serverAttempts int

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		resp, err := fn()
		if err == nil {
			return c.observeQuota(ctx, resp)
		}

		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}

		decision := classify(err)

		switch decision.class {
		case classRateLimit:
			rateAttempts++
			if rateAttempts >= maxRateLimitAttempts {
				return fmt.Errorf("Rate limit exceeded after %d retries: %s", maxRateLimitAttempts, op)
			}

			wait := rateLimitWait(rateAttempts-1, decision.retryAfter, decision.resetAt, time.Now(), jitterFactor())
			c.logger.Warn("rate limited, backing off",
				"op", op, "status", decision.status, "wait", wait.Round(time.Millisecond), "attempt", rateAttempts)

			err = sleepCtx(ctx, wait)
			if err != nil {
				return err
			}

		case classServer:
			serverAttempts++
			if serverAttempts >= maxServerAttempts {
				return &StatusError{StatusCode: decision.status, Op: op, Body: decision.body}
			}

			wait := serverWait(serverAttempts - 1)
			c.logger.Warn("server error, backing off",
				"op", op, "status", decision.status, "wait", wait, "attempt", serverAttempts)

			err = sleepCtx(ctx, wait)
			if err != nil {
				return err
			}

		case classTransport:
			serverAttempts++
			if serverAttempts >= maxServerAttempts {
				return fmt.Errorf("Request failed after %d retries: %s: %w", maxServerAttempts, op, err)
			}

			wait := serverWait(serverAttempts - 1)
			c.logger.Warn("transport error, backing off",
				"op", op, "error", err, "wait", wait, "attempt", serverAttempts)

			err = sleepCtx(ctx, wait)
			if err != nil {
				return err
			}

		default:
			return &StatusError{StatusCode: decision.status, Op: op, Body: decision.body}
		}
	}
}

// observeQuota records the response's rate headers, warning when low and
// sleeping past the reset when nearly exhausted.
func (c *Client) observeQuota(ctx context.Context, resp *github.Response) error {
	if resp == nil {
		return nil
	}

	quota := resp.Rate
	if quota.Limit == 0 {
		return nil
	}

	c.quotaMu.Lock()
	c.remaining = quota.Remaining
	c.resetAt = quota.Reset.Time
	c.quotaMu.Unlock()

	switch {
	case quota.Remaining < criticalQuota && !quota.Reset.Time.IsZero():
		wait := time.Until(quota.Reset.Time) + time.Second
		if wait < time.Second {
			wait = time.Second
		}

		c.logger.Warn("rate limit critical, sleeping until reset",
			"remaining", quota.Remaining, "wait", wait.Round(time.Second))

		return sleepCtx(ctx, wait)

	case quota.Remaining < lowQuota:
		c.logger.Warn("rate limit low", "remaining", quota.Remaining)
	}

	return nil
}

// paginate collects list pages of size perPage until a short page.
func paginate[T any](ctx context.Context, c *Client, op string, fetch func(page int) ([]T, *github.Response, error)) ([]T, error) {
	var all []T

	for page := 1; ; page++ {
		var batch []T

		err := c.do(ctx, op, func() (*github.Response, error) {
			items, resp, reqErr := fetch(page)
			if reqErr == nil {
				batch = items
			}

			return resp, reqErr
		})
		if err != nil {
			return nil, err
		}

		all = append(all, batch...)

		if len(batch) < perPage {
			return all, nil
		}
	}
}
