// Package recap defines the canonical data model shared by the fetch,
// normalize, and summarize stages: raw GitHub records as persisted under
// data/raw, normalized activities and daily statistics, async job tracking,
// and LLM token accounting.
package recap

// ActivityKind classifies a normalized activity record.
type ActivityKind string

// Activity kinds, in the order they are emitted for a single day.
const (
	KindPRAuthored     ActivityKind = "pr_authored"
	KindPRReviewed     ActivityKind = "pr_reviewed"
	KindPRCommented    ActivityKind = "pr_commented"
	KindCommit         ActivityKind = "commit"
	KindIssueAuthored  ActivityKind = "issue_authored"
	KindIssueCommented ActivityKind = "issue_commented"
)

// Valid reports whether k is one of the defined activity kinds.
func (k ActivityKind) Valid() bool {
	switch k {
	case KindPRAuthored, KindPRReviewed, KindPRCommented, KindCommit, KindIssueAuthored, KindIssueCommented:
		return true
	default:
		return false
	}
}
