package recap

// FileChange is a single changed file within a PR or commit.
type FileChange struct {
	Filename  string `json:"filename"`
	Additions int    `json:"additions"`
	Deletions int    `json:"deletions"`
	Status    string `json:"status"` // "added" | "modified" | "removed" | "renamed"
	Patch     string `json:"patch"`  // unified diff text, may be empty for binary files
}

// Comment is a PR or issue comment. Path, Line, and DiffHunk are set only for
// inline review comments.
type Comment struct {
	Author    string `json:"author"`
	Body      string `json:"body"`
	CreatedAt string `json:"created_at"` // ISO 8601
	URL       string `json:"url"`
	Path      string `json:"path"`
	Line      int    `json:"line"`
	DiffHunk  string `json:"diff_hunk"`
}

// Review is a PR review submission.
type Review struct {
	Author      string `json:"author"`
	State       string `json:"state"` // "APPROVED" | "CHANGES_REQUESTED" | "COMMENTED"
	Body        string `json:"body"`
	SubmittedAt string `json:"submitted_at"` // ISO 8601
	URL         string `json:"url"`
}

// PRRaw is the enriched pull request record the fetcher persists under
// data/raw/{date}/prs.json. Noise comments and reviews are already filtered.
type PRRaw struct {
	URL       string       `json:"url"`     // HTML URL
	APIURL    string       `json:"api_url"` // API URL, dedup key across search axes
	Number    int          `json:"number"`
	Title     string       `json:"title"`
	Body      string       `json:"body"`
	State     string       `json:"state"` // "open" | "closed"
	IsMerged  bool         `json:"is_merged"`
	CreatedAt string       `json:"created_at"`
	UpdatedAt string       `json:"updated_at"`
	MergedAt  string       `json:"merged_at"`
	Repo      string       `json:"repo"` // "org/repo-name"
	Labels    []string     `json:"labels"`
	Author    string       `json:"author"`
	Files     []FileChange `json:"files"`
	Comments  []Comment    `json:"comments"`
	Reviews   []Review     `json:"reviews"`
}

// CommitRaw is a commit record persisted under data/raw/{date}/commits.json.
type CommitRaw struct {
	SHA         string       `json:"sha"`
	URL         string       `json:"url"`
	APIURL      string       `json:"api_url"`
	Message     string       `json:"message"` // full commit message
	Author      string       `json:"author"`  // GitHub login
	Repo        string       `json:"repo"`
	CommittedAt string       `json:"committed_at"`
	Files       []FileChange `json:"files"`
}

// IssueRaw is an issue record persisted under data/raw/{date}/issues.json.
type IssueRaw struct {
	URL       string    `json:"url"`
	APIURL    string    `json:"api_url"`
	Number    int       `json:"number"`
	Title     string    `json:"title"`
	Body      string    `json:"body"`
	State     string    `json:"state"`
	CreatedAt string    `json:"created_at"`
	UpdatedAt string    `json:"updated_at"`
	ClosedAt  string    `json:"closed_at"`
	Repo      string    `json:"repo"`
	Labels    []string  `json:"labels"`
	Author    string    `json:"author"`
	Comments  []Comment `json:"comments"`
}
