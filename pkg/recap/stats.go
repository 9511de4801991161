package recap

// PRRef points at a PR or issue listed inside DailyStats.
type PRRef struct {
	URL   string `json:"url"`
	Title string `json:"title"`
	Repo  string `json:"repo"`
}

// CommitRef points at a commit listed inside DailyStats.
type CommitRef struct {
	URL   string `json:"url"`
	Title string `json:"title"`
	Repo  string `json:"repo"`
	SHA   string `json:"sha"`
}

// DailyStats holds script-computed counts for one day. The summarizer injects
// these numbers into prompts so the LLM never has to count.
type DailyStats struct {
	Date                string      `json:"date"` // YYYY-MM-DD
	AuthoredCount       int         `json:"authored_count"`
	ReviewedCount       int         `json:"reviewed_count"`
	CommentedCount      int         `json:"commented_count"`
	TotalAdditions      int         `json:"total_additions"` // authored PRs and commits only
	TotalDeletions      int         `json:"total_deletions"`
	ReposTouched        []string    `json:"repos_touched"` // sorted, unique
	AuthoredPRs         []PRRef     `json:"authored_prs"`
	ReviewedPRs         []PRRef     `json:"reviewed_prs"`
	CommitCount         int         `json:"commit_count"`
	IssueAuthoredCount  int         `json:"issue_authored_count"`
	IssueCommentedCount int         `json:"issue_commented_count"`
	Commits             []CommitRef `json:"commits"`
	AuthoredIssues      []PRRef     `json:"authored_issues"`
}
