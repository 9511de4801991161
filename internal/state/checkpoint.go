package state

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/workrecap/workrecap/pkg/recap"
)

// Checkpoint keys written by the pipeline.
const (
	CheckpointLastFetchDate     = "last_fetch_date"
	CheckpointLastNormalizeDate = "last_normalize_date"
	CheckpointLastSummaryDate   = "last_summary_date"
)

// Checkpoints is a monotonic key-value file: a key only ever moves forward
// in lexicographic order, so concurrent or replayed writers cannot rewind
// markers like last_fetch_date. Dates in ISO form compare correctly as
// strings.
//
// The file is re-read on every operation; the mutex covers the
// read-modify-write cycle.
type Checkpoints struct {
	path   string
	logger *slog.Logger
	mu     sync.Mutex
}

// NewCheckpoints returns a checkpoint file at path.
func NewCheckpoints(path string, logger *slog.Logger) *Checkpoints {
	if logger == nil {
		logger = slog.Default()
	}

	return &Checkpoints{path: path, logger: logger}
}

func (c *Checkpoints) read() (map[string]string, error) {
	data := map[string]string{}

	err := recap.LoadJSON(c.path, &data)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load checkpoints %s: %w", c.path, err)
	}

	return data, nil
}

// Update advances key to value if value sorts after the current one, and
// persists. Stale values are ignored.
func (c *Checkpoints) Update(key, value string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	data, err := c.read()
	if err != nil {
		return err
	}

	if value <= data[key] {
		return nil
	}

	data[key] = value

	err = recap.SaveJSON(c.path, data)
	if err != nil {
		return fmt.Errorf("save checkpoints %s: %w", c.path, err)
	}

	c.logger.Debug("checkpoint updated", "key", key, "value", value)

	return nil
}

// Get returns the stored value for key, if any.
func (c *Checkpoints) Get(key string) (string, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	data, err := c.read()
	if err != nil {
		return "", false, err
	}

	value, ok := data[key]

	return value, ok, nil
}

// All returns a copy of every checkpoint.
func (c *Checkpoints) All() (map[string]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.read()
}
