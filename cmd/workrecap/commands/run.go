package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/workrecap/workrecap/internal/observability"
	"github.com/workrecap/workrecap/internal/pipeline"
	"github.com/workrecap/workrecap/internal/state"
	"github.com/workrecap/workrecap/pkg/dateutil"
)

// RunCommand holds flags and dependencies for the run command.
type RunCommand struct {
	globals *Globals
	factory appFactory

	typ     string
	force   bool
	enrich  bool
	workers int
	batch   bool
	dates   dateSelection
}

// NewRunCommand creates the run command.
func NewRunCommand(g *Globals) *cobra.Command {
	return newRunCommandWithDeps(g, newApp)
}

func newRunCommandWithDeps(g *Globals, factory appFactory) *cobra.Command {
	rc := &RunCommand{globals: g, factory: factory}

	cmd := &cobra.Command{
		Use:   "run [date]",
		Short: "Run the full pipeline (fetch → normalize → summarize)",
		Long: "Run fetch, normalize, and summarize for the given date or range.\n" +
			"Range runs finish with the weekly, monthly, or yearly rollup that\n" +
			"matches the selector. Without a date or range flag, catches up from\n" +
			"the last summary checkpoint.",
		Args: cobra.MaximumNArgs(1),
		RunE: rc.run,
	}

	cmd.Flags().StringVarP(&rc.typ, "type", "t", "", "prs, commits, or issues (default: all)")
	cmd.Flags().BoolVarP(&rc.force, "force", "f", false, "Re-run even if data exists")
	cmd.Flags().BoolVar(&rc.enrich, "enrich", true, "Enrich activities with LLM (change summary, intent)")
	cmd.Flags().IntVarP(&rc.workers, "workers", "w", 0, "Parallel workers (default: config)")
	cmd.Flags().BoolVar(&rc.batch, "batch", false, "Use the batch API for LLM calls")
	rc.dates.register(cmd)

	return cmd
}

func (rc *RunCommand) run(cmd *cobra.Command, args []string) error {
	types, err := selectTypes(rc.typ)
	if err != nil {
		return err
	}

	a, err := rc.factory(rc.globals, observability.ModeCLI)
	if err != nil {
		return err
	}
	defer a.close()

	out := cmd.OutOrStdout()

	res, err := rc.dates.resolve(args, a.checkpoints(), state.CheckpointLastSummaryDate, time.Now().UTC())
	if err != nil {
		return err
	}

	if res.upToDate {
		fmt.Fprintln(out, "Already up to date.")

		return nil
	}

	workers := rc.workers
	if workers == 0 {
		workers = a.cfg.Pipeline.MaxWorkers
	}

	ctx := cmd.Context()

	pipe, err := a.buildPipeline(ctx, workers, rc.enrich)
	if err != nil {
		return err
	}

	if !res.ranged() {
		path, err := pipe.RunDaily(ctx, res.dates[0], pipeline.RunOptions{Types: types})
		if err != nil {
			return err
		}

		fmt.Fprintf(out, "Pipeline complete → %s\n", path)
		a.printUsage(out)

		return nil
	}

	results, err := pipe.RunRange(ctx, res.since, res.until, pipeline.RangeOptions{
		Types:      types,
		Force:      rc.force,
		MaxWorkers: workers,
		Batch:      rc.batch,
		Progress:   progressPrinter(out),
	})
	if err != nil {
		return err
	}

	failed := printRunResults(out, results)

	if failed == 0 {
		if err := rc.rollup(cmd, a, pipe); err != nil {
			return err
		}
	}

	printExhausted(out, a)
	a.printUsage(out)

	if failed > 0 {
		return fmt.Errorf("%d date(s) failed", failed)
	}

	return nil
}

// rollup finishes a clean range run with the summary level matching the
// selector. The monthly and yearly paths regenerate the levels beneath
// them first; a failure there is logged and skipped so one sparse week
// cannot block the rollup, but the final level's failure propagates.
func (rc *RunCommand) rollup(cmd *cobra.Command, a *app, pipe pipelineService) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	switch {
	case rc.dates.weekly != "":
		year, week, err := parseYearPair(rc.dates.weekly, "--weekly", "YEAR-WEEK, e.g. 2026-7")
		if err != nil {
			return err
		}

		path, err := pipe.RunWeekly(ctx, year, week, rc.force)
		if err != nil {
			return err
		}

		fmt.Fprintf(out, "Weekly summary → %s\n", path)
	case rc.dates.monthly != "":
		year, month, err := parseYearPair(rc.dates.monthly, "--monthly", "YEAR-MONTH, e.g. 2026-2")
		if err != nil {
			return err
		}

		rc.cascadeWeeks(ctx, a, pipe, year, month)

		path, err := pipe.RunMonthly(ctx, year, month, rc.force)
		if err != nil {
			return err
		}

		fmt.Fprintf(out, "Monthly summary → %s\n", path)
	case rc.dates.yearly != 0:
		for month := 1; month <= 12; month++ {
			rc.cascadeWeeks(ctx, a, pipe, rc.dates.yearly, month)

			if _, err := pipe.RunMonthly(ctx, rc.dates.yearly, month, rc.force); err != nil {
				a.logger.Warn("monthly rollup skipped", "year", rc.dates.yearly, "month", month, "error", err)
			}
		}

		path, err := pipe.RunYearly(ctx, rc.dates.yearly, rc.force)
		if err != nil {
			return err
		}

		fmt.Fprintf(out, "Yearly summary → %s\n", path)
	}

	return nil
}

// cascadeWeeks regenerates every ISO week overlapping the month. Sparse
// weeks fail with no activity data; that must not abort the rollup.
func (rc *RunCommand) cascadeWeeks(ctx context.Context, a *app, pipe pipelineService, year, month int) {
	for _, wk := range dateutil.WeeksInMonth(year, month) {
		if _, err := pipe.RunWeekly(ctx, wk.Year, wk.Week, rc.force); err != nil {
			a.logger.Warn("weekly rollup skipped", "year", wk.Year, "week", wk.Week, "error", err)
		}
	}
}
