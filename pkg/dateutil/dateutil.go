// Package dateutil provides date-range helpers for the pipeline: inclusive
// ranges, ISO week and month boundaries, month-sized chunking, and catch-up
// resolution. All dates are YYYY-MM-DD strings; all math is done in UTC.
package dateutil

import (
	"fmt"
	"time"
)

// Layout is the wire format for all dates handled by the pipeline.
const Layout = "2006-01-02"

// Chunk is one contiguous slice of a date range, clamped to a single month.
type Chunk struct {
	Since string
	Until string
}

// Key returns the chunk identifier used by the fetch-progress store.
func (c Chunk) Key() string {
	return c.Since + "__" + c.Until
}

// ISOWeek identifies a week in the ISO-8601 week calendar.
type ISOWeek struct {
	Year int
	Week int
}

// Parse parses a YYYY-MM-DD date string.
func Parse(s string) (time.Time, error) {
	t, err := time.Parse(Layout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: %w", s, err)
	}

	return t, nil
}

// Range returns every date from since through until, inclusive.
func Range(since, until string) ([]string, error) {
	start, err := Parse(since)
	if err != nil {
		return nil, err
	}

	end, err := Parse(until)
	if err != nil {
		return nil, err
	}

	var dates []string
	for cur := start; !cur.After(end); cur = cur.AddDate(0, 0, 1) {
		dates = append(dates, cur.Format(Layout))
	}

	return dates, nil
}

// WeeklyRange returns the Monday and Sunday of the given ISO week.
func WeeklyRange(year, week int) (string, string) {
	monday := isoWeekStart(year, week)
	sunday := monday.AddDate(0, 0, 6)

	return monday.Format(Layout), sunday.Format(Layout)
}

// MonthlyRange returns the first and last day of the given month.
func MonthlyRange(year, month int) (string, string) {
	first := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC)
	last := first.AddDate(0, 1, -1)

	return first.Format(Layout), last.Format(Layout)
}

// YearlyRange returns January 1 and December 31 of the given year.
func YearlyRange(year int) (string, string) {
	return fmt.Sprintf("%04d-01-01", year), fmt.Sprintf("%04d-12-31", year)
}

// MonthlyChunks splits [since, until] into month-aligned chunks. The first
// and last chunks are clamped to the range boundaries. An inverted range
// yields no chunks.
func MonthlyChunks(since, until string) ([]Chunk, error) {
	start, err := Parse(since)
	if err != nil {
		return nil, err
	}

	end, err := Parse(until)
	if err != nil {
		return nil, err
	}

	if start.After(end) {
		return nil, nil
	}

	var chunks []Chunk

	for cur := start; !cur.After(end); {
		monthEnd := time.Date(cur.Year(), cur.Month(), 1, 0, 0, 0, 0, time.UTC).AddDate(0, 1, -1)

		chunkEnd := monthEnd
		if chunkEnd.After(end) {
			chunkEnd = end
		}

		chunks = append(chunks, Chunk{Since: cur.Format(Layout), Until: chunkEnd.Format(Layout)})
		cur = chunkEnd.AddDate(0, 0, 1)
	}

	return chunks, nil
}

// CatchupRange returns the range from the day after lastFetchDate through
// today. The caller supplies today so scheduled and tested runs agree.
func CatchupRange(lastFetchDate string, today time.Time) (string, string, error) {
	last, err := Parse(lastFetchDate)
	if err != nil {
		return "", "", err
	}

	since := last.AddDate(0, 0, 1)

	return since.Format(Layout), today.UTC().Format(Layout), nil
}

// WeeksInMonth returns every ISO week that overlaps the given month, in
// calendar order. Boundary weeks may belong to a neighboring ISO year.
func WeeksInMonth(year, month int) []ISOWeek {
	seen := make(map[ISOWeek]bool)

	var weeks []ISOWeek

	first := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC)
	last := first.AddDate(0, 1, -1)

	for cur := first; !cur.After(last); cur = cur.AddDate(0, 0, 1) {
		isoYear, isoWeek := cur.ISOWeek()

		key := ISOWeek{Year: isoYear, Week: isoWeek}
		if !seen[key] {
			seen[key] = true

			weeks = append(weeks, key)
		}
	}

	return weeks
}

// isoWeekStart returns the Monday of the given ISO week. January 4 is always
// inside ISO week 1, which anchors the calculation.
func isoWeekStart(year, week int) time.Time {
	jan4 := time.Date(year, time.January, 4, 0, 0, 0, 0, time.UTC)

	weekday := int(jan4.Weekday())
	if weekday == 0 {
		weekday = 7
	}

	firstMonday := jan4.AddDate(0, 0, 1-weekday)

	return firstMonday.AddDate(0, 0, (week-1)*7)
}
