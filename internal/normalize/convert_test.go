package normalize

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/workrecap/workrecap/pkg/recap"
)

const (
	testDate = "2025-02-16"
	testUser = "testuser"
)

type prOverrides struct {
	number    int
	author    string
	title     string
	body      string
	repo      string
	createdAt string
	files     []recap.FileChange
	comments  []recap.Comment
	reviews   []recap.Review
	labels    []string
}

func makePR(o prOverrides) recap.PRRaw {
	if o.number == 0 {
		o.number = 1
	}

	if o.author == "" {
		o.author = testUser
	}

	if o.title == "" {
		o.title = "Test PR"
	}

	if o.repo == "" {
		o.repo = "org/repo"
	}

	if o.createdAt == "" {
		o.createdAt = "2025-02-16T09:00:00Z"
	}

	if o.files == nil {
		o.files = []recap.FileChange{{Filename: "src/main.go", Additions: 10, Deletions: 3, Status: "modified"}}
	}

	return recap.PRRaw{
		URL:       "https://ghes/org/repo/pull/1",
		APIURL:    "https://ghes/api/v3/repos/org/repo/pulls/1",
		Number:    o.number,
		Title:     o.title,
		Body:      o.body,
		State:     "closed",
		IsMerged:  true,
		CreatedAt: o.createdAt,
		UpdatedAt: "2025-02-16T15:00:00Z",
		MergedAt:  "2025-02-16T15:00:00Z",
		Repo:      o.repo,
		Labels:    o.labels,
		Author:    o.author,
		Files:     o.files,
		Comments:  o.comments,
		Reviews:   o.reviews,
	}
}

func makeReview(author, submittedAt string) recap.Review {
	return recap.Review{
		Author:      author,
		State:       "APPROVED",
		SubmittedAt: submittedAt,
		URL:         "https://ghes/org/repo/pull/1#review-" + author,
	}
}

func makeComment(author, createdAt, body string) recap.Comment {
	return recap.Comment{
		Author:    author,
		Body:      body,
		CreatedAt: createdAt,
		URL:       "https://ghes/org/repo/pull/1#comment-" + author,
	}
}

func TestMatchesDate(t *testing.T) {
	t.Parallel()

	assert.True(t, matchesDate("2025-02-16T09:00:00Z", testDate))
	assert.True(t, matchesDate("2025-02-16T00:00:00Z", testDate))
	assert.False(t, matchesDate("2025-02-15T23:59:59Z", testDate))
	assert.False(t, matchesDate("", testDate))
}

func TestAutoSummary_WithBody(t *testing.T) {
	t.Parallel()

	pr := makePR(prOverrides{body: "Has description"})

	got := autoSummary(pr, recap.KindPRAuthored, 10, 3)

	assert.Equal(t, "pr_authored: Test PR (org/repo) +10/-3", got)
}

func TestAutoSummary_WithoutBodyUsesFileDirs(t *testing.T) {
	t.Parallel()

	pr := makePR(prOverrides{
		body: "",
		files: []recap.FileChange{
			{Filename: "src/main.go", Additions: 5, Deletions: 1, Status: "modified"},
			{Filename: "tests/main_test.go", Additions: 10, Status: "added"},
		},
	})

	got := autoSummary(pr, recap.KindPRAuthored, 15, 1)

	assert.Contains(t, got, "[src, tests]")
	assert.Contains(t, got, "2개 파일 변경")
	assert.Contains(t, got, "+15/-1")
}

func TestAutoSummary_ManyDirsCapped(t *testing.T) {
	t.Parallel()

	pr := makePR(prOverrides{
		body: "",
		files: []recap.FileChange{
			{Filename: "a/1.go", Additions: 1},
			{Filename: "b/2.go", Additions: 1},
			{Filename: "c/3.go", Additions: 1},
			{Filename: "d/4.go", Additions: 1},
		},
	})

	got := autoSummary(pr, recap.KindPRAuthored, 4, 0)

	assert.Contains(t, got, "[a, b, c 외]")
	assert.Contains(t, got, "4개 파일 변경")
}

func TestAutoSummary_RootFiles(t *testing.T) {
	t.Parallel()

	pr := makePR(prOverrides{
		body:  "",
		files: []recap.FileChange{{Filename: "README.md", Additions: 1, Status: "modified"}},
	})

	got := autoSummary(pr, recap.KindPRAuthored, 1, 0)

	assert.Contains(t, got, "README.md")
}

func TestAutoSummary_WhitespaceBodyFallsBack(t *testing.T) {
	t.Parallel()

	pr := makePR(prOverrides{body: "   \n  "})

	got := autoSummary(pr, recap.KindPRAuthored, 10, 3)

	assert.Contains(t, got, "파일 변경")
}

func TestConvertPRs_Authored(t *testing.T) {
	t.Parallel()

	got := convertPRs([]recap.PRRaw{makePR(prOverrides{})}, testUser, testDate)

	require.Len(t, got, 1)
	assert.Equal(t, recap.KindPRAuthored, got[0].Kind)
	assert.Equal(t, "2025-02-16T09:00:00Z", got[0].TS)
	assert.Equal(t, 10, got[0].Additions)
	assert.Equal(t, 3, got[0].Deletions)
	assert.Equal(t, []string{"src/main.go"}, got[0].Files)
}

func TestConvertPRs_Reviewed(t *testing.T) {
	t.Parallel()

	prs := []recap.PRRaw{makePR(prOverrides{
		author:  "other",
		reviews: []recap.Review{makeReview(testUser, "2025-02-16T12:00:00Z")},
	})}

	got := convertPRs(prs, testUser, testDate)

	require.Len(t, got, 1)
	assert.Equal(t, recap.KindPRReviewed, got[0].Kind)
	assert.Equal(t, "2025-02-16T12:00:00Z", got[0].TS)
	assert.Equal(t, []string{"https://ghes/org/repo/pull/1#review-" + testUser}, got[0].EvidenceURLs)
}

func TestConvertPRs_Commented(t *testing.T) {
	t.Parallel()

	prs := []recap.PRRaw{makePR(prOverrides{
		author:   "other",
		comments: []recap.Comment{makeComment(testUser, "2025-02-16T11:00:00Z", "Good")},
	})}

	got := convertPRs(prs, testUser, testDate)

	require.Len(t, got, 1)
	assert.Equal(t, recap.KindPRCommented, got[0].Kind)
	assert.Equal(t, []string{"Good"}, got[0].CommentBodies)
}

func TestConvertPRs_SelfReviewExcluded(t *testing.T) {
	t.Parallel()

	prs := []recap.PRRaw{makePR(prOverrides{
		author:  testUser,
		reviews: []recap.Review{makeReview(testUser, "2025-02-16T12:00:00Z")},
	})}

	got := convertPRs(prs, testUser, testDate)

	kinds := activityKinds(got)
	assert.Contains(t, kinds, recap.KindPRAuthored)
	assert.NotContains(t, kinds, recap.KindPRReviewed)
}

func TestConvertPRs_MultipleKindsFromOnePR(t *testing.T) {
	t.Parallel()

	prs := []recap.PRRaw{makePR(prOverrides{
		author:   "other",
		reviews:  []recap.Review{makeReview(testUser, "2025-02-16T12:00:00Z")},
		comments: []recap.Comment{makeComment(testUser, "2025-02-16T11:00:00Z", "Good")},
	})}

	got := convertPRs(prs, testUser, testDate)

	kinds := activityKinds(got)
	assert.Contains(t, kinds, recap.KindPRReviewed)
	assert.Contains(t, kinds, recap.KindPRCommented)
}

func TestConvertPRs_DateFiltering(t *testing.T) {
	t.Parallel()

	prs := []recap.PRRaw{makePR(prOverrides{createdAt: "2025-02-15T09:00:00Z"})}

	got := convertPRs(prs, testUser, testDate)

	assert.Empty(t, got)
}

func TestConvertPRs_SortedByTimestamp(t *testing.T) {
	t.Parallel()

	prs := []recap.PRRaw{
		makePR(prOverrides{number: 1, createdAt: "2025-02-16T15:00:00Z"}),
		makePR(prOverrides{number: 2, createdAt: "2025-02-16T09:00:00Z"}),
	}

	got := convertPRs(prs, testUser, testDate)

	require.Len(t, got, 2)
	assert.Less(t, got[0].TS, got[1].TS)
}

func TestConvertPRs_Empty(t *testing.T) {
	t.Parallel()

	assert.Empty(t, convertPRs(nil, testUser, testDate))
}

func TestConvertPRs_OneReviewActivityPerPR(t *testing.T) {
	t.Parallel()

	prs := []recap.PRRaw{makePR(prOverrides{
		author: "other",
		reviews: []recap.Review{
			makeReview(testUser, "2025-02-16T10:00:00Z"),
			makeReview(testUser, "2025-02-16T14:00:00Z"),
		},
	})}

	got := convertPRs(prs, testUser, testDate)

	reviewed := 0

	for _, a := range got {
		if a.Kind == recap.KindPRReviewed {
			reviewed++
		}
	}

	assert.Equal(t, 1, reviewed)
}

func TestConvertPRs_CommentEvidenceURLs(t *testing.T) {
	t.Parallel()

	prs := []recap.PRRaw{makePR(prOverrides{
		author: "other",
		comments: []recap.Comment{
			{Author: testUser, Body: "first", CreatedAt: "2025-02-16T10:00:00Z", URL: "https://ghes/c/1"},
			{Author: testUser, Body: "second", CreatedAt: "2025-02-16T11:00:00Z", URL: "https://ghes/c/2"},
		},
	})}

	got := convertPRs(prs, testUser, testDate)

	require.Len(t, got, 1)
	assert.Equal(t, recap.KindPRCommented, got[0].Kind)
	assert.Equal(t, []string{"https://ghes/c/1", "https://ghes/c/2"}, got[0].EvidenceURLs)
	// Aggregated comment activity is stamped with the earliest comment.
	assert.Equal(t, "2025-02-16T10:00:00Z", got[0].TS)
}

func TestConvertPRs_CaseInsensitiveUsername(t *testing.T) {
	t.Parallel()

	prs := []recap.PRRaw{makePR(prOverrides{author: "TestUser"})}

	got := convertPRs(prs, testUser, testDate)

	require.Len(t, got, 1)
	assert.Equal(t, recap.KindPRAuthored, got[0].Kind)
}

func TestConvertPRs_AuthorCommentingOwnPR(t *testing.T) {
	t.Parallel()

	prs := []recap.PRRaw{makePR(prOverrides{
		author:   testUser,
		comments: []recap.Comment{makeComment(testUser, "2025-02-16T11:00:00Z", "self reply")},
	})}

	got := convertPRs(prs, testUser, testDate)

	kinds := activityKinds(got)
	assert.Contains(t, kinds, recap.KindPRAuthored)
	assert.Contains(t, kinds, recap.KindPRCommented)
}

func TestConvertPRs_InlineCommentContexts(t *testing.T) {
	t.Parallel()

	prs := []recap.PRRaw{makePR(prOverrides{
		author: "other",
		comments: []recap.Comment{
			{Author: testUser, Body: "use a helper", CreatedAt: "2025-02-16T11:00:00Z",
				URL: "https://ghes/c/1", Path: "src/auth.go", Line: 42, DiffHunk: "@@ -40 +40 @@"},
			{Author: "other", Body: "noted", CreatedAt: "2025-02-16T11:30:00Z",
				URL: "https://ghes/c/2", Path: "src/auth.go", Line: 50, DiffHunk: "@@ -48 +48 @@"},
		},
	})}

	got := convertPRs(prs, testUser, testDate)

	require.Len(t, got, 1)
	require.Len(t, got[0].CommentContexts, 1)
	assert.Equal(t, "src/auth.go", got[0].CommentContexts[0].Path)
	assert.Equal(t, 42, got[0].CommentContexts[0].Line)
	assert.Equal(t, "use a helper", got[0].CommentContexts[0].Body)
}

func TestConvertPRs_FilePatches(t *testing.T) {
	t.Parallel()

	prs := []recap.PRRaw{makePR(prOverrides{
		files: []recap.FileChange{
			{Filename: "a.go", Additions: 1, Patch: "@@ -1 +1 @@"},
			{Filename: "image.png", Additions: 0, Patch: ""},
		},
	})}

	got := convertPRs(prs, testUser, testDate)

	require.Len(t, got, 1)
	assert.Equal(t, map[string]string{"a.go": "@@ -1 +1 @@"}, got[0].FilePatches)
}

func TestConvertCommits(t *testing.T) {
	t.Parallel()

	commits := []recap.CommitRaw{{
		SHA:         "abc1234",
		URL:         "https://ghes/org/repo/commit/abc1234",
		Message:     "Fix race in watcher\n\nLonger explanation.",
		Author:      testUser,
		Repo:        "org/repo",
		CommittedAt: "2025-02-16T10:00:00Z",
		Files: []recap.FileChange{
			{Filename: "watch.go", Additions: 4, Deletions: 2, Patch: "@@ diff @@"},
		},
	}}

	got := convertCommits(commits, testDate)

	require.Len(t, got, 1)
	assert.Equal(t, recap.KindCommit, got[0].Kind)
	assert.Equal(t, "Fix race in watcher", got[0].Title)
	assert.Equal(t, "Fix race in watcher\n\nLonger explanation.", got[0].Body)
	assert.Equal(t, "abc1234", got[0].SHA)
	assert.Equal(t, 4, got[0].Additions)
	assert.Equal(t, 2, got[0].Deletions)
	assert.Contains(t, got[0].Summary, "commit: Fix race in watcher")
}

func TestConvertCommits_DateFiltering(t *testing.T) {
	t.Parallel()

	commits := []recap.CommitRaw{{
		SHA:         "old",
		Message:     "yesterday",
		CommittedAt: "2025-02-15T10:00:00Z",
	}}

	assert.Empty(t, convertCommits(commits, testDate))
}

func TestConvertIssues_Authored(t *testing.T) {
	t.Parallel()

	issues := []recap.IssueRaw{{
		URL:       "https://ghes/org/repo/issues/7",
		Number:    7,
		Title:     "Flaky test",
		Body:      "fails on CI",
		CreatedAt: "2025-02-16T08:00:00Z",
		Repo:      "org/repo",
		Labels:    []string{"bug"},
		Author:    testUser,
	}}

	got := convertIssues(issues, testUser, testDate)

	require.Len(t, got, 1)
	assert.Equal(t, recap.KindIssueAuthored, got[0].Kind)
	assert.Equal(t, 7, got[0].ExternalID)
	assert.Equal(t, []string{"bug"}, got[0].Labels)
}

func TestConvertIssues_CommentedAggregates(t *testing.T) {
	t.Parallel()

	issues := []recap.IssueRaw{{
		URL:       "https://ghes/org/repo/issues/7",
		Number:    7,
		Title:     "Flaky test",
		CreatedAt: "2025-02-10T08:00:00Z",
		Repo:      "org/repo",
		Author:    "other",
		Comments: []recap.Comment{
			{Author: testUser, Body: "repro steps", CreatedAt: "2025-02-16T09:00:00Z", URL: "https://ghes/i/1"},
			{Author: testUser, Body: "root cause", CreatedAt: "2025-02-16T10:00:00Z", URL: "https://ghes/i/2"},
			{Author: "other", Body: "thanks", CreatedAt: "2025-02-16T11:00:00Z", URL: "https://ghes/i/3"},
		},
	}}

	got := convertIssues(issues, testUser, testDate)

	require.Len(t, got, 1)
	assert.Equal(t, recap.KindIssueCommented, got[0].Kind)
	assert.Equal(t, "2025-02-16T09:00:00Z", got[0].TS)
	assert.Equal(t, []string{"repro steps", "root cause"}, got[0].CommentBodies)
	assert.Equal(t, []string{"https://ghes/i/1", "https://ghes/i/2"}, got[0].EvidenceURLs)
}

func TestConvertIssues_DateFiltering(t *testing.T) {
	t.Parallel()

	issues := []recap.IssueRaw{{
		Number:    7,
		Author:    testUser,
		CreatedAt: "2025-02-15T08:00:00Z",
	}}

	assert.Empty(t, convertIssues(issues, testUser, testDate))
}

func activityKinds(activities []recap.Activity) []recap.ActivityKind {
	kinds := make([]recap.ActivityKind, 0, len(activities))
	for _, a := range activities {
		kinds = append(kinds, a.Kind)
	}

	return kinds
}
