package state

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/workrecap/workrecap/pkg/persist"
)

// FetchProgressStore caches a chunk's search results so an interrupted range
// fetch resumes without repeating search calls. One file per chunk under the
// progress directory, encoded by the configured codec.
type FetchProgressStore[T any] struct {
	dir    string
	codec  persist.Codec
	logger *slog.Logger
}

// NewFetchProgressStore returns a store writing under dir. A nil codec means
// plain JSON.
func NewFetchProgressStore[T any](dir string, codec persist.Codec, logger *slog.Logger) *FetchProgressStore[T] {
	if codec == nil {
		codec = persist.NewJSONCodec()
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &FetchProgressStore[T]{dir: dir, codec: codec, logger: logger}
}

// sanitizeChunkKey makes a chunk key filesystem-safe.
func sanitizeChunkKey(key string) string {
	safe := strings.ReplaceAll(key, "/", "_")

	return strings.ReplaceAll(safe, "\\", "_")
}

// SaveChunk persists the search results for a chunk.
func (s *FetchProgressStore[T]) SaveChunk(key string, payload *T) error {
	err := persist.SaveState(s.dir, sanitizeChunkKey(key), s.codec, payload)
	if err != nil {
		return fmt.Errorf("save fetch progress chunk %s: %w", key, err)
	}

	s.logger.Debug("fetch progress chunk saved", "chunk", key)

	return nil
}

// LoadChunk returns the cached search results for a chunk, or false when the
// chunk has no cache.
func (s *FetchProgressStore[T]) LoadChunk(key string) (*T, bool, error) {
	basename := sanitizeChunkKey(key)

	if !persist.StateExists(s.dir, basename, s.codec) {
		return nil, false, nil
	}

	var payload T

	err := persist.LoadState(s.dir, basename, s.codec, &payload)
	if err != nil {
		return nil, false, fmt.Errorf("load fetch progress chunk %s: %w", key, err)
	}

	s.logger.Debug("fetch progress chunk loaded", "chunk", key)

	return &payload, true, nil
}

// ClearChunk removes the cache for a single chunk.
func (s *FetchProgressStore[T]) ClearChunk(key string) error {
	path := filepath.Join(s.dir, sanitizeChunkKey(key)+s.codec.Extension())

	err := os.Remove(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}

		return fmt.Errorf("clear fetch progress chunk %s: %w", key, err)
	}

	s.logger.Debug("fetch progress chunk cleared", "chunk", key)

	return nil
}

// ClearAll removes every cached chunk.
func (s *FetchProgressStore[T]) ClearAll() error {
	err := os.RemoveAll(s.dir)
	if err != nil {
		return fmt.Errorf("clear fetch progress: %w", err)
	}

	s.logger.Debug("fetch progress cleared")

	return nil
}
