package commands

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/workrecap/workrecap/internal/state"
)

func testCheckpoints(t *testing.T) *state.Checkpoints {
	t.Helper()

	return state.NewCheckpoints(filepath.Join(t.TempDir(), "checkpoints.json"), quietLogger())
}

var testToday = time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)

func TestResolveSingleDate(t *testing.T) {
	t.Parallel()

	ds := &dateSelection{}

	res, err := ds.resolve([]string{"2026-03-05"}, nil, state.CheckpointLastFetchDate, testToday)
	require.NoError(t, err)

	assert.Equal(t, []string{"2026-03-05"}, res.dates)
	assert.False(t, res.ranged())
	assert.False(t, res.upToDate)
}

func TestResolveInvalidDate(t *testing.T) {
	t.Parallel()

	ds := &dateSelection{}

	_, err := ds.resolve([]string{"2026-13-99"}, nil, state.CheckpointLastFetchDate, testToday)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "2026-13-99")
}

func TestResolveSinceUntil(t *testing.T) {
	t.Parallel()

	ds := &dateSelection{since: "2026-03-01", until: "2026-03-03"}

	res, err := ds.resolve(nil, nil, state.CheckpointLastFetchDate, testToday)
	require.NoError(t, err)

	assert.Equal(t, []string{"2026-03-01", "2026-03-02", "2026-03-03"}, res.dates)
	assert.True(t, res.ranged())
	assert.Equal(t, "2026-03-01", res.since)
	assert.Equal(t, "2026-03-03", res.until)
}

func TestResolveInvertedRange(t *testing.T) {
	t.Parallel()

	ds := &dateSelection{since: "2026-03-03", until: "2026-03-01"}

	_, err := ds.resolve(nil, nil, state.CheckpointLastFetchDate, testToday)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no dates in range")
}

func TestResolveSelectorConflict(t *testing.T) {
	t.Parallel()

	ds := &dateSelection{since: "2026-03-01", until: "2026-03-03"}

	_, err := ds.resolve([]string{"2026-03-05"}, nil, state.CheckpointLastFetchDate, testToday)
	assert.ErrorIs(t, err, errSelectorConflict)
}

func TestResolveWeeklyAndMonthlyConflict(t *testing.T) {
	t.Parallel()

	ds := &dateSelection{weekly: "2026-10", monthly: "2026-3"}

	_, err := ds.resolve(nil, nil, state.CheckpointLastFetchDate, testToday)
	assert.ErrorIs(t, err, errSelectorConflict)
}

func TestResolveSinceWithoutUntil(t *testing.T) {
	t.Parallel()

	ds := &dateSelection{since: "2026-03-01"}

	_, err := ds.resolve(nil, nil, state.CheckpointLastFetchDate, testToday)
	assert.ErrorIs(t, err, errSinceUntilPair)
}

func TestResolveWeekly(t *testing.T) {
	t.Parallel()

	// ISO week 2026-W07 runs Monday 2026-02-09 through Sunday 2026-02-15.
	ds := &dateSelection{weekly: "2026-7"}

	res, err := ds.resolve(nil, nil, state.CheckpointLastFetchDate, testToday)
	require.NoError(t, err)

	assert.Len(t, res.dates, 7)
	assert.Equal(t, "2026-02-09", res.since)
	assert.Equal(t, "2026-02-15", res.until)
}

func TestResolveMonthly(t *testing.T) {
	t.Parallel()

	ds := &dateSelection{monthly: "2026-2"}

	res, err := ds.resolve(nil, nil, state.CheckpointLastFetchDate, testToday)
	require.NoError(t, err)

	assert.Len(t, res.dates, 28)
	assert.Equal(t, "2026-02-01", res.since)
	assert.Equal(t, "2026-02-28", res.until)
}

func TestResolveYearly(t *testing.T) {
	t.Parallel()

	ds := &dateSelection{yearly: 2026}

	res, err := ds.resolve(nil, nil, state.CheckpointLastFetchDate, testToday)
	require.NoError(t, err)

	assert.Len(t, res.dates, 365)
	assert.Equal(t, "2026-01-01", res.since)
	assert.Equal(t, "2026-12-31", res.until)
}

func TestResolveInvalidWeeklyValue(t *testing.T) {
	t.Parallel()

	ds := &dateSelection{weekly: "week-seven"}

	_, err := ds.resolve(nil, nil, state.CheckpointLastFetchDate, testToday)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--weekly")
}

func TestResolveCatchupNoCheckpoint(t *testing.T) {
	t.Parallel()

	ds := &dateSelection{}

	res, err := ds.resolve(nil, testCheckpoints(t), state.CheckpointLastFetchDate, testToday)
	require.NoError(t, err)

	assert.Equal(t, []string{"2026-03-10"}, res.dates)
	assert.False(t, res.ranged())
}

func TestResolveCatchupFromCheckpoint(t *testing.T) {
	t.Parallel()

	checks := testCheckpoints(t)
	require.NoError(t, checks.Update(state.CheckpointLastFetchDate, "2026-03-07"))

	ds := &dateSelection{}

	res, err := ds.resolve(nil, checks, state.CheckpointLastFetchDate, testToday)
	require.NoError(t, err)

	assert.Equal(t, []string{"2026-03-08", "2026-03-09", "2026-03-10"}, res.dates)
	assert.True(t, res.ranged())
	assert.Equal(t, "2026-03-08", res.since)
	assert.Equal(t, "2026-03-10", res.until)
}

func TestResolveCatchupUpToDate(t *testing.T) {
	t.Parallel()

	checks := testCheckpoints(t)
	require.NoError(t, checks.Update(state.CheckpointLastFetchDate, "2026-03-10"))

	ds := &dateSelection{}

	res, err := ds.resolve(nil, checks, state.CheckpointLastFetchDate, testToday)
	require.NoError(t, err)

	assert.True(t, res.upToDate)
	assert.Empty(t, res.dates)
}
