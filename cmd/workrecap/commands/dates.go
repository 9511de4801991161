package commands

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/workrecap/workrecap/internal/state"
	"github.com/workrecap/workrecap/pkg/dateutil"
)

// dateSelection holds the mutually exclusive date selector flags shared
// by fetch, normalize, summarize daily, and run.
type dateSelection struct {
	date    string
	since   string
	until   string
	weekly  string
	monthly string
	yearly  int
}

func (ds *dateSelection) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&ds.since, "since", "", "range start (YYYY-MM-DD), requires --until")
	cmd.Flags().StringVar(&ds.until, "until", "", "range end (YYYY-MM-DD), requires --since")
	cmd.Flags().StringVar(&ds.weekly, "weekly", "", "ISO week, YEAR-WEEK, e.g. 2026-7")
	cmd.Flags().StringVar(&ds.monthly, "monthly", "", "calendar month, YEAR-MONTH, e.g. 2026-2")
	cmd.Flags().IntVar(&ds.yearly, "yearly", 0, "calendar year, e.g. 2026")
}

// resolution is the outcome of resolving the selectors: the dates to
// process, the range endpoints when a contiguous range was selected,
// and whether a catch-up found nothing to do.
type resolution struct {
	dates    []string
	since    string
	until    string
	upToDate bool
}

func (r resolution) ranged() bool {
	return r.since != ""
}

var (
	errSelectorConflict = errors.New(
		"Only one of target_date, --since/--until, --weekly, --monthly, --yearly can be specified.")
	errSinceUntilPair = errors.New("--since and --until must be used together.")
)

// resolve turns the positional date argument and selector flags into a
// concrete date list. With no selector at all it falls back to catch-up
// from the named checkpoint, or to today when no checkpoint exists yet.
func (ds *dateSelection) resolve(args []string, checks *state.Checkpoints, checkpointKey string, today time.Time) (resolution, error) {
	if len(args) > 0 {
		ds.date = args[0]
	}

	selectors := 0
	for _, set := range []bool{
		ds.date != "",
		ds.since != "" || ds.until != "",
		ds.weekly != "",
		ds.monthly != "",
		ds.yearly != 0,
	} {
		if set {
			selectors++
		}
	}

	if selectors > 1 {
		return resolution{}, errSelectorConflict
	}

	if (ds.since == "") != (ds.until == "") {
		return resolution{}, errSinceUntilPair
	}

	switch {
	case ds.since != "":
		return rangeResolution(ds.since, ds.until)
	case ds.weekly != "":
		year, week, err := parseYearPair(ds.weekly, "--weekly", "YEAR-WEEK, e.g. 2026-7")
		if err != nil {
			return resolution{}, err
		}

		since, until := dateutil.WeeklyRange(year, week)

		return rangeResolution(since, until)
	case ds.monthly != "":
		year, month, err := parseYearPair(ds.monthly, "--monthly", "YEAR-MONTH, e.g. 2026-2")
		if err != nil {
			return resolution{}, err
		}

		since, until := dateutil.MonthlyRange(year, month)

		return rangeResolution(since, until)
	case ds.yearly != 0:
		since, until := dateutil.YearlyRange(ds.yearly)

		return rangeResolution(since, until)
	case ds.date != "":
		if _, err := dateutil.Parse(ds.date); err != nil {
			return resolution{}, err
		}

		return resolution{dates: []string{ds.date}}, nil
	default:
		return catchup(checks, checkpointKey, today)
	}
}

func rangeResolution(since, until string) (resolution, error) {
	dates, err := dateutil.Range(since, until)
	if err != nil {
		return resolution{}, err
	}

	if len(dates) == 0 {
		return resolution{}, fmt.Errorf("no dates in range %s..%s", since, until)
	}

	return resolution{dates: dates, since: since, until: until}, nil
}

// catchup resumes from the day after the checkpoint through today. A
// checkpoint at or past today means there is nothing to do.
func catchup(checks *state.Checkpoints, key string, today time.Time) (resolution, error) {
	last, ok, err := checks.Get(key)
	if err != nil {
		return resolution{}, err
	}

	if !ok {
		return resolution{dates: []string{today.UTC().Format(dateutil.Layout)}}, nil
	}

	since, until, err := dateutil.CatchupRange(last, today)
	if err != nil {
		return resolution{}, err
	}

	dates, err := dateutil.Range(since, until)
	if err != nil {
		return resolution{}, err
	}

	if len(dates) == 0 {
		return resolution{upToDate: true}, nil
	}

	return resolution{dates: dates, since: since, until: until}, nil
}

func parseYearPair(value, flag, format string) (int, int, error) {
	first, second, found := strings.Cut(value, "-")
	if !found {
		return 0, 0, fmt.Errorf("invalid %s value %q (want %s)", flag, value, format)
	}

	a, err := strconv.Atoi(first)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid %s value %q (want %s)", flag, value, format)
	}

	b, err := strconv.Atoi(second)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid %s value %q (want %s)", flag, value, format)
	}

	return a, b, nil
}
