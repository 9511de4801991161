// Package state persists pipeline bookkeeping under the state directory:
// per-date phase timestamps, failure records with retry budgets, resumable
// fetch progress, monotonic checkpoints, batch job records, and in-memory
// API jobs.
//
// Every file-backed store serializes access through its own mutex and
// persists on every write, so an interrupted run resumes from the last
// completed operation.
package state

// Phase names one of the three pipeline stages tracked per date.
type Phase string

// Pipeline phases in execution order.
const (
	PhaseFetch     Phase = "fetch"
	PhaseNormalize Phase = "normalize"
	PhaseSummarize Phase = "summarize"
)

// Valid reports whether p is a known pipeline phase.
func (p Phase) Valid() bool {
	switch p {
	case PhaseFetch, PhaseNormalize, PhaseSummarize:
		return true
	}

	return false
}
