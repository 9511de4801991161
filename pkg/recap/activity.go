package recap

// CommentContext carries an inline review comment together with the diff hunk
// it was attached to, giving the summarizer code-level context.
type CommentContext struct {
	Path     string `json:"path"`
	Line     int    `json:"line"`
	DiffHunk string `json:"diff_hunk"`
	Body     string `json:"body"`
}

// Activity is one normalized activity record. A single PR can yield up to
// three activities on the same day (authored, reviewed, commented); commits
// and issues yield one each.
type Activity struct {
	TS         string       `json:"ts"` // ISO 8601, TS[0:10] equals the target date
	Kind       ActivityKind `json:"kind"`
	Repo       string       `json:"repo"`
	ExternalID int          `json:"external_id"` // PR or issue number, 0 for commits
	Title      string       `json:"title"`
	URL        string       `json:"url"`
	Summary    string       `json:"summary"` // deterministic one-line summary
	SHA        string       `json:"sha"`     // commit kind only

	Body            string            `json:"body"` // PR body / commit message / issue body
	ReviewBodies    []string          `json:"review_bodies"`
	CommentBodies   []string          `json:"comment_bodies"`
	Files           []string          `json:"files"`
	FilePatches     map[string]string `json:"file_patches"` // filename → patch, non-empty patches only
	Additions       int               `json:"additions"`
	Deletions       int               `json:"deletions"`
	Labels          []string          `json:"labels"`
	EvidenceURLs    []string          `json:"evidence_urls"`
	CommentContexts []CommentContext  `json:"comment_contexts"`

	// LLM enrichment. Empty until an enrichment pass fills them in.
	ChangeSummary string `json:"change_summary"`
	Intent        string `json:"intent"` // bugfix, feature, refactor, docs, chore, test, ...
}
