package scheduler

import (
	"errors"
	"os"
	"sync"

	"github.com/workrecap/workrecap/pkg/recap"
)

// defaultMaxEntries caps the history file length.
const defaultMaxEntries = 100

// History is a mutex-guarded JSON log of scheduler job outcomes, trimmed
// to the most recent entries on every write.
type History struct {
	path string
	max  int
	mu   sync.Mutex
}

// NewHistory opens the history log at path. The file and its parent
// directories are created on the first Record.
func NewHistory(path string) *History {
	return &History{path: path, max: defaultMaxEntries}
}

// Record appends event and trims the log to the newest entries.
func (h *History) Record(event Event) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	entries, err := h.load()
	if err != nil {
		return err
	}

	entries = append(entries, event)
	if len(entries) > h.max {
		entries = entries[len(entries)-h.max:]
	}

	return recap.SaveJSON(h.path, entries)
}

// List returns recorded events oldest-first. A non-empty job keeps only
// that job's events; a positive limit keeps only the newest entries.
func (h *History) List(job string, limit int) ([]Event, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	entries, err := h.load()
	if err != nil {
		return nil, err
	}

	if job != "" {
		var filtered []Event

		for _, entry := range entries {
			if entry.Job == job {
				filtered = append(filtered, entry)
			}
		}

		entries = filtered
	}

	if limit > 0 && len(entries) > limit {
		entries = entries[len(entries)-limit:]
	}

	return entries, nil
}

func (h *History) load() ([]Event, error) {
	var entries []Event

	err := recap.LoadJSON(h.path, &entries)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}

		return nil, err
	}

	return entries, nil
}
