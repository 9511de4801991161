package state

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/workrecap/workrecap/pkg/recap"
)

// DefaultMaxRetries is the per-date retry budget before a failure is
// reported as exhausted.
const DefaultMaxRetries = 5

// FailureEntry records one date's failure history for a pipeline phase.
type FailureEntry struct {
	Phase        string `json:"phase"`
	Attempts     int    `json:"attempts"`
	LastError    string `json:"last_error"`
	LastAttempt  string `json:"last_attempt"`
	FirstFailure string `json:"first_failure"`
	Permanent    bool   `json:"permanent"`
}

// FailedDateStore tracks failed dates so subsequent runs retry them
// automatically, skip the permanently broken ones, and report dates whose
// retry budget ran out.
type FailedDateStore struct {
	path       string
	maxRetries int
	logger     *slog.Logger

	mu     sync.Mutex
	loaded bool
	data   map[string]*FailureEntry
}

// NewFailedDateStore returns a store backed by the JSON file at path.
// maxRetries <= 0 means DefaultMaxRetries.
func NewFailedDateStore(path string, maxRetries int, logger *slog.Logger) *FailedDateStore {
	if maxRetries <= 0 {
		maxRetries = DefaultMaxRetries
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &FailedDateStore{path: path, maxRetries: maxRetries, logger: logger}
}

func (s *FailedDateStore) load() error {
	if s.loaded {
		return nil
	}

	s.data = map[string]*FailureEntry{}

	err := recap.LoadJSON(s.path, &s.data)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("load failed dates %s: %w", s.path, err)
	}

	s.loaded = true

	return nil
}

func (s *FailedDateStore) save() error {
	err := recap.SaveJSON(s.path, s.data)
	if err != nil {
		return fmt.Errorf("save failed dates %s: %w", s.path, err)
	}

	return nil
}

// RecordFailure increments the attempt counter for a date, creating the
// entry on first failure. Once marked permanent a date stays permanent.
func (s *FailedDateStore) RecordFailure(date string, phase Phase, errMsg string, permanent bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.load()
	if err != nil {
		return err
	}

	now := time.Now().UTC().Format(time.RFC3339Nano)

	entry, ok := s.data[date]
	if ok {
		entry.Attempts++
		entry.LastError = errMsg
		entry.LastAttempt = now

		if permanent {
			entry.Permanent = true
		}
	} else {
		entry = &FailureEntry{
			Phase:        string(phase),
			Attempts:     1,
			LastError:    errMsg,
			LastAttempt:  now,
			FirstFailure: now,
			Permanent:    permanent,
		}
		s.data[date] = entry
	}

	s.logger.Debug("failure recorded",
		"date", date, "phase", phase, "attempts", entry.Attempts, "permanent", entry.Permanent)

	return s.save()
}

// RecordSuccess clears the failure record for a date that succeeded.
func (s *FailedDateStore) RecordSuccess(date string, phase Phase) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.load()
	if err != nil {
		return err
	}

	_, ok := s.data[date]
	if !ok {
		return nil
	}

	delete(s.data, date)
	s.logger.Debug("failure record cleared", "date", date, "phase", phase)

	return s.save()
}

// Entry returns a copy of the failure entry for a date, if one exists.
func (s *FailedDateStore) Entry(date string) (FailureEntry, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.load()
	if err != nil {
		return FailureEntry{}, false, err
	}

	entry, ok := s.data[date]
	if !ok {
		return FailureEntry{}, false, nil
	}

	return *entry, true, nil
}

// RetryableDates filters candidates down to dates with a recorded failure
// that is neither permanent nor out of retry budget. Dates with no record
// are excluded; staleness covers those.
func (s *FailedDateStore) RetryableDates(candidates []string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.load()
	if err != nil {
		return nil, err
	}

	var retryable []string

	for _, date := range candidates {
		entry, ok := s.data[date]
		if !ok {
			continue
		}

		if entry.Permanent || entry.Attempts >= s.maxRetries {
			continue
		}

		retryable = append(retryable, date)
	}

	return retryable, nil
}

// ExhaustedDates returns the sorted dates that will never be retried
// automatically: permanent failures and dates past the retry budget.
func (s *FailedDateStore) ExhaustedDates() ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.load()
	if err != nil {
		return nil, err
	}

	var exhausted []string

	for date, entry := range s.data {
		if entry.Permanent || entry.Attempts >= s.maxRetries {
			exhausted = append(exhausted, date)
		}
	}

	sort.Strings(exhausted)

	return exhausted, nil
}
