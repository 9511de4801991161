package state

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newBatchStore(t *testing.T) *BatchStateStore {
	t.Helper()

	return NewBatchStateStore(filepath.Join(t.TempDir(), "batch_state.json"), quietLogger())
}

func TestBatchState_SaveAndGetJob(t *testing.T) {
	t.Parallel()

	store := newBatchStore(t)

	require.NoError(t, store.SaveJob("batch_abc", "anthropic", "enrich", []string{"enrich-2026-01-15"}))

	job, ok := store.Job("batch_abc")
	require.True(t, ok)

	assert.Equal(t, "anthropic", job.Provider)
	assert.Equal(t, "enrich", job.Task)
	assert.Equal(t, []string{"enrich-2026-01-15"}, job.CustomIDs)
	assert.Equal(t, BatchSubmitted, job.Status)
	assert.NotEmpty(t, job.SubmittedAt)
}

func TestBatchState_ActiveJobsExcludeTerminal(t *testing.T) {
	t.Parallel()

	store := newBatchStore(t)

	require.NoError(t, store.SaveJob("batch_a", "anthropic", "enrich", nil))
	require.NoError(t, store.SaveJob("batch_b", "openai", "enrich", nil))
	require.NoError(t, store.SaveJob("batch_c", "gemini", "enrich", nil))

	require.NoError(t, store.UpdateStatus("batch_b", BatchCompleted))
	require.NoError(t, store.UpdateStatus("batch_c", BatchExpired))

	active := store.ActiveJobs()
	require.Len(t, active, 1)
	assert.Equal(t, "batch_a", active[0].BatchID)
}

func TestBatchState_ProcessingIsActive(t *testing.T) {
	t.Parallel()

	store := newBatchStore(t)

	require.NoError(t, store.SaveJob("batch_a", "anthropic", "enrich", nil))
	require.NoError(t, store.UpdateStatus("batch_a", BatchProcessing))

	assert.Len(t, store.ActiveJobs(), 1)
}

func TestBatchState_RemoveJob(t *testing.T) {
	t.Parallel()

	store := newBatchStore(t)

	require.NoError(t, store.SaveJob("batch_a", "anthropic", "enrich", nil))
	require.NoError(t, store.RemoveJob("batch_a"))

	_, ok := store.Job("batch_a")
	assert.False(t, ok)

	// Removing twice is not an error.
	require.NoError(t, store.RemoveJob("batch_a"))
}

func TestBatchState_PersistsAcrossInstances(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "batch_state.json")

	first := NewBatchStateStore(path, quietLogger())
	require.NoError(t, first.SaveJob("batch_a", "anthropic", "enrich", []string{"enrich-2026-01-15"}))

	second := NewBatchStateStore(path, quietLogger())

	job, ok := second.Job("batch_a")
	require.True(t, ok)
	assert.Equal(t, "enrich", job.Task)
}

func TestBatchState_CorruptFileStartsEmpty(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "batch_state.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	store := NewBatchStateStore(path, quietLogger())
	assert.Empty(t, store.ActiveJobs())
}
