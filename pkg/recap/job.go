package recap

// JobStatus is the lifecycle state of an async job.
type JobStatus string

// Job lifecycle states.
const (
	JobAccepted  JobStatus = "accepted"
	JobRunning   JobStatus = "running"
	JobCompleted JobStatus = "completed"
	JobFailed    JobStatus = "failed"
)

// Terminal reports whether the status is a final state.
func (s JobStatus) Terminal() bool {
	return s == JobCompleted || s == JobFailed
}

// Job tracks one asynchronous operation accepted by the API server. Jobs live
// only for the lifetime of the process.
type Job struct {
	ID        string    `json:"job_id"`
	Status    JobStatus `json:"status"`
	CreatedAt string    `json:"created_at"` // ISO 8601
	UpdatedAt string    `json:"updated_at"`
	Result    string    `json:"result,omitempty"`
	Error     string    `json:"error,omitempty"`
	Progress  string    `json:"progress,omitempty"`
}
