package commands

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/workrecap/workrecap/internal/observability"
	"github.com/workrecap/workrecap/internal/state"
	"github.com/workrecap/workrecap/internal/summarize"
)

// SummarizeCommand holds flags and dependencies shared by the summarize
// subcommands.
type SummarizeCommand struct {
	globals *Globals
	factory appFactory

	force   bool
	workers int
	batch   bool
	dates   dateSelection
}

// NewSummarizeCommand creates the summarize command group.
func NewSummarizeCommand(g *Globals) *cobra.Command {
	return newSummarizeCommandWithDeps(g, newApp)
}

func newSummarizeCommandWithDeps(g *Globals, factory appFactory) *cobra.Command {
	sc := &SummarizeCommand{globals: g, factory: factory}

	cmd := &cobra.Command{
		Use:   "summarize",
		Short: "Generate Markdown summaries",
		Long:  "Generate daily, weekly, monthly, or yearly Markdown summaries.",
	}

	cmd.AddCommand(sc.dailyCommand(), sc.weeklyCommand(), sc.monthlyCommand(), sc.yearlyCommand())

	return cmd
}

func (sc *SummarizeCommand) dailyCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "daily [date]",
		Short: "Generate daily summaries",
		Long: "Generate the daily summary for the given date. Without a date or\n" +
			"range flag, catches up from the last summary checkpoint.",
		Args: cobra.MaximumNArgs(1),
		RunE: sc.runDaily,
	}

	cmd.Flags().BoolVarP(&sc.force, "force", "f", false, "Re-summarize even if data exists")
	cmd.Flags().IntVarP(&sc.workers, "workers", "w", 0, "Parallel workers (default: config)")
	cmd.Flags().BoolVar(&sc.batch, "batch", false, "Use the batch API for LLM calls")
	sc.dates.register(cmd)

	return cmd
}

func (sc *SummarizeCommand) runDaily(cmd *cobra.Command, args []string) error {
	a, err := sc.factory(sc.globals, observability.ModeCLI)
	if err != nil {
		return err
	}
	defer a.close()

	out := cmd.OutOrStdout()

	res, err := sc.dates.resolve(args, a.checkpoints(), state.CheckpointLastSummaryDate, time.Now().UTC())
	if err != nil {
		return err
	}

	if res.upToDate {
		fmt.Fprintln(out, "Already up to date.")

		return nil
	}

	workers := sc.workers
	if workers == 0 {
		workers = a.cfg.Pipeline.MaxWorkers
	}

	svc := a.summarizer()
	ctx := cmd.Context()

	if res.ranged() {
		results, err := svc.DailyRange(ctx, res.since, res.until, summarize.RangeOptions{
			Force:      sc.force,
			MaxWorkers: workers,
			Batch:      sc.batch,
			Progress:   progressPrinter(out),
		})
		if err != nil {
			return err
		}

		if err := printRangeResults(out, "Daily summary", results); err != nil {
			return err
		}
	} else {
		path, err := svc.Daily(ctx, res.dates[0])
		if err != nil {
			return err
		}

		fmt.Fprintf(out, "Daily summary → %s\n", path)
	}

	a.printUsage(out)

	return nil
}

func (sc *SummarizeCommand) weeklyCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "weekly <year> <week>",
		Short: "Generate a weekly summary",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			year, week, err := parseIntArgs(args[0], args[1])
			if err != nil {
				return err
			}

			return sc.rollup(cmd, "Weekly", func(a *app) (string, error) {
				return a.summarizer().Weekly(cmd.Context(), year, week, sc.force)
			})
		},
	}

	cmd.Flags().BoolVarP(&sc.force, "force", "f", false, "Re-generate even if exists")

	return cmd
}

func (sc *SummarizeCommand) monthlyCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "monthly <year> <month>",
		Short: "Generate a monthly summary",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			year, month, err := parseIntArgs(args[0], args[1])
			if err != nil {
				return err
			}

			return sc.rollup(cmd, "Monthly", func(a *app) (string, error) {
				return a.summarizer().Monthly(cmd.Context(), year, month, sc.force)
			})
		},
	}

	cmd.Flags().BoolVarP(&sc.force, "force", "f", false, "Re-generate even if exists")

	return cmd
}

func (sc *SummarizeCommand) yearlyCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "yearly <year>",
		Short: "Generate a yearly summary",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			year, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("invalid year %q", args[0])
			}

			return sc.rollup(cmd, "Yearly", func(a *app) (string, error) {
				return a.summarizer().Yearly(cmd.Context(), year, sc.force)
			})
		},
	}

	cmd.Flags().BoolVarP(&sc.force, "force", "f", false, "Re-generate even if exists")

	return cmd
}

// rollup runs one weekly, monthly, or yearly generation and prints the
// resulting path plus the usage report.
func (sc *SummarizeCommand) rollup(cmd *cobra.Command, label string, generate func(*app) (string, error)) error {
	a, err := sc.factory(sc.globals, observability.ModeCLI)
	if err != nil {
		return err
	}
	defer a.close()

	out := cmd.OutOrStdout()

	path, err := generate(a)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "%s summary → %s\n", label, path)
	a.printUsage(out)

	return nil
}

func parseIntArgs(first, second string) (int, int, error) {
	a, err := strconv.Atoi(first)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid year %q", first)
	}

	b, err := strconv.Atoi(second)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid number %q", second)
	}

	return a, b, nil
}
