package state

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/workrecap/workrecap/pkg/dateutil"
	"github.com/workrecap/workrecap/pkg/recap"
)

// DailyStateStore tracks when each pipeline phase last completed per date,
// persisted as a single JSON file mapping date to phase timestamps.
//
// Staleness rules:
//   - fetch: stale if no record, or the last fetch ran on or before the
//     target date itself (a same-day fetch can miss late activity)
//   - normalize: stale if no record, no fetch record, or fetch is newer
//   - summarize: stale if no record, no normalize record, or normalize is
//     newer
type DailyStateStore struct {
	path   string
	logger *slog.Logger

	mu     sync.Mutex
	loaded bool
	data   map[string]map[string]string
}

// NewDailyStateStore returns a store backed by the JSON file at path. The
// file is loaded lazily on first access.
func NewDailyStateStore(path string, logger *slog.Logger) *DailyStateStore {
	if logger == nil {
		logger = slog.Default()
	}

	return &DailyStateStore{path: path, logger: logger}
}

func (s *DailyStateStore) load() error {
	if s.loaded {
		return nil
	}

	s.data = map[string]map[string]string{}

	err := recap.LoadJSON(s.path, &s.data)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("load daily state %s: %w", s.path, err)
	}

	s.loaded = true

	return nil
}

func (s *DailyStateStore) save() error {
	err := recap.SaveJSON(s.path, s.data)
	if err != nil {
		return fmt.Errorf("save daily state %s: %w", s.path, err)
	}

	return nil
}

// Timestamp returns the recorded completion time for a phase and date. The
// second return value is false when no record exists.
func (s *DailyStateStore) Timestamp(phase Phase, date string) (time.Time, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.timestampLocked(phase, date)
}

func (s *DailyStateStore) timestampLocked(phase Phase, date string) (time.Time, bool, error) {
	err := s.load()
	if err != nil {
		return time.Time{}, false, err
	}

	raw, ok := s.data[date][string(phase)]
	if !ok {
		return time.Time{}, false, nil
	}

	ts, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("parse daily state timestamp %q: %w", raw, err)
	}

	return ts, true, nil
}

// SetTimestamp records ts as the completion time for a phase and date and
// persists immediately. A zero ts means now.
func (s *DailyStateStore) SetTimestamp(phase Phase, date string, ts time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.load()
	if err != nil {
		return err
	}

	if ts.IsZero() {
		ts = time.Now().UTC()
	}

	if s.data[date] == nil {
		s.data[date] = map[string]string{}
	}

	s.data[date][string(phase)] = ts.UTC().Format(time.RFC3339Nano)
	s.logger.Debug("daily state updated", "phase", phase, "date", date, "ts", ts)

	return s.save()
}

// IsFetchStale reports whether the date needs fetching: no record, or the
// last fetch happened on or before the target date.
func (s *DailyStateStore) IsFetchStale(date string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	fetchTS, ok, err := s.timestampLocked(PhaseFetch, date)
	if err != nil {
		return false, err
	}

	if !ok {
		return true, nil
	}

	target, err := dateutil.Parse(date)
	if err != nil {
		return false, err
	}

	fetchedDay := fetchTS.UTC().Truncate(24 * time.Hour)

	return !fetchedDay.After(target), nil
}

// IsNormalizeStale reports whether the date needs normalizing: no record,
// no fetch record, or the fetch is newer than the normalize.
func (s *DailyStateStore) IsNormalizeStale(date string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.downstreamStaleLocked(PhaseFetch, PhaseNormalize, date)
}

// IsSummarizeStale reports whether the date needs summarizing: no record,
// no normalize record, or the normalize is newer than the summarize.
func (s *DailyStateStore) IsSummarizeStale(date string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.downstreamStaleLocked(PhaseNormalize, PhaseSummarize, date)
}

func (s *DailyStateStore) downstreamStaleLocked(upstream, phase Phase, date string) (bool, error) {
	ownTS, ok, err := s.timestampLocked(phase, date)
	if err != nil {
		return false, err
	}

	if !ok {
		return true, nil
	}

	upstreamTS, ok, err := s.timestampLocked(upstream, date)
	if err != nil {
		return false, err
	}

	if !ok {
		return true, nil
	}

	return upstreamTS.After(ownTS), nil
}

// StaleDates filters dates down to those stale for the given phase.
func (s *DailyStateStore) StaleDates(phase Phase, dates []string) ([]string, error) {
	checker := map[Phase]func(string) (bool, error){
		PhaseFetch:     s.IsFetchStale,
		PhaseNormalize: s.IsNormalizeStale,
		PhaseSummarize: s.IsSummarizeStale,
	}

	check, ok := checker[phase]
	if !ok {
		return nil, fmt.Errorf("unknown phase %q", phase)
	}

	var stale []string

	for _, date := range dates {
		isStale, err := check(date)
		if err != nil {
			return nil, err
		}

		if isStale {
			stale = append(stale, date)
		}
	}

	s.logger.Debug("stale dates computed", "phase", phase, "stale", len(stale), "total", len(dates))

	return stale, nil
}
