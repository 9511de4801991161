package dateutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRange_Inclusive(t *testing.T) {
	t.Parallel()

	dates, err := Range("2026-01-30", "2026-02-02")
	require.NoError(t, err)

	assert.Equal(t, []string{"2026-01-30", "2026-01-31", "2026-02-01", "2026-02-02"}, dates)
}

func TestRange_SingleDay(t *testing.T) {
	t.Parallel()

	dates, err := Range("2026-03-15", "2026-03-15")
	require.NoError(t, err)

	assert.Equal(t, []string{"2026-03-15"}, dates)
}

func TestRange_InvalidDate(t *testing.T) {
	t.Parallel()

	_, err := Range("2026-13-01", "2026-13-02")
	require.Error(t, err)
}

func TestWeeklyRange(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		year   int
		week   int
		monday string
		sunday string
	}{
		{name: "mid year", year: 2026, week: 20, monday: "2026-05-11", sunday: "2026-05-17"},
		{name: "week one spans year boundary", year: 2026, week: 1, monday: "2025-12-29", sunday: "2026-01-04"},
		{name: "week 53", year: 2020, week: 53, monday: "2020-12-28", sunday: "2021-01-03"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			monday, sunday := WeeklyRange(tt.year, tt.week)
			assert.Equal(t, tt.monday, monday)
			assert.Equal(t, tt.sunday, sunday)
		})
	}
}

func TestMonthlyRange(t *testing.T) {
	t.Parallel()

	first, last := MonthlyRange(2026, 2)
	assert.Equal(t, "2026-02-01", first)
	assert.Equal(t, "2026-02-28", last)

	first, last = MonthlyRange(2024, 2)
	assert.Equal(t, "2024-02-01", first)
	assert.Equal(t, "2024-02-29", last)
}

func TestYearlyRange(t *testing.T) {
	t.Parallel()

	first, last := YearlyRange(2026)
	assert.Equal(t, "2026-01-01", first)
	assert.Equal(t, "2026-12-31", last)
}

func TestMonthlyChunks_ClampsBoundaries(t *testing.T) {
	t.Parallel()

	chunks, err := MonthlyChunks("2026-01-15", "2026-03-10")
	require.NoError(t, err)

	want := []Chunk{
		{Since: "2026-01-15", Until: "2026-01-31"},
		{Since: "2026-02-01", Until: "2026-02-28"},
		{Since: "2026-03-01", Until: "2026-03-10"},
	}
	assert.Equal(t, want, chunks)
}

func TestMonthlyChunks_SingleMonth(t *testing.T) {
	t.Parallel()

	chunks, err := MonthlyChunks("2026-05-03", "2026-05-20")
	require.NoError(t, err)

	assert.Equal(t, []Chunk{{Since: "2026-05-03", Until: "2026-05-20"}}, chunks)
}

func TestMonthlyChunks_InvertedRange(t *testing.T) {
	t.Parallel()

	chunks, err := MonthlyChunks("2026-05-20", "2026-05-03")
	require.NoError(t, err)

	assert.Empty(t, chunks)
}

func TestChunk_Key(t *testing.T) {
	t.Parallel()

	c := Chunk{Since: "2026-01-01", Until: "2026-01-31"}
	assert.Equal(t, "2026-01-01__2026-01-31", c.Key())
}

func TestCatchupRange(t *testing.T) {
	t.Parallel()

	today := time.Date(2026, 8, 24, 10, 0, 0, 0, time.UTC)

	since, until, err := CatchupRange("2026-08-20", today)
	require.NoError(t, err)

	assert.Equal(t, "2026-08-21", since)
	assert.Equal(t, "2026-08-24", until)
}

func TestWeeksInMonth(t *testing.T) {
	t.Parallel()

	weeks := WeeksInMonth(2026, 1)

	want := []ISOWeek{
		{Year: 2026, Week: 1},
		{Year: 2026, Week: 2},
		{Year: 2026, Week: 3},
		{Year: 2026, Week: 4},
		{Year: 2026, Week: 5},
	}
	assert.Equal(t, want, weeks)
}

func TestWeeksInMonth_YearBoundary(t *testing.T) {
	t.Parallel()

	weeks := WeeksInMonth(2021, 1)

	// January 1-3 2021 belong to ISO week 53 of 2020.
	require.NotEmpty(t, weeks)
	assert.Equal(t, ISOWeek{Year: 2020, Week: 53}, weeks[0])
	assert.Equal(t, ISOWeek{Year: 2021, Week: 1}, weeks[1])
}
