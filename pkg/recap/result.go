package recap

// DateStatus classifies one date's outcome within a range operation.
type DateStatus string

// Date outcomes reported by range fetches, range normalizes, and merged
// pipeline runs.
const (
	DateSuccess DateStatus = "success"
	DateSkipped DateStatus = "skipped"
	DateFailed  DateStatus = "failed"
)

// DateResult is one date's outcome in a range operation. DailySummaryPath is
// set only by pipeline runs that reached the summarize phase. Truncated marks
// dates whose month chunk hit the search result cap: the date still succeeds,
// but some of its activity may be missing upstream.
type DateResult struct {
	Date             string     `json:"date"`
	Status           DateStatus `json:"status"`
	Error            string     `json:"error,omitempty"`
	DailySummaryPath string     `json:"daily_summary_path,omitempty"`
	Truncated        bool       `json:"truncated,omitempty"`
}
