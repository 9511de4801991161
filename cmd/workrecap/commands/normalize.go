package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/workrecap/workrecap/internal/normalize"
	"github.com/workrecap/workrecap/internal/observability"
	"github.com/workrecap/workrecap/internal/state"
)

// NormalizeCommand holds flags and dependencies for the normalize command.
type NormalizeCommand struct {
	globals *Globals
	factory appFactory

	force   bool
	enrich  bool
	workers int
	batch   bool
	dates   dateSelection
}

// NewNormalizeCommand creates the normalize command.
func NewNormalizeCommand(g *Globals) *cobra.Command {
	return newNormalizeCommandWithDeps(g, newApp)
}

func newNormalizeCommandWithDeps(g *Globals, factory appFactory) *cobra.Command {
	nc := &NormalizeCommand{globals: g, factory: factory}

	cmd := &cobra.Command{
		Use:   "normalize [date]",
		Short: "Normalize raw records into activities and stats",
		Long: "Normalize raw PR, commit, and issue records into per-date activities\n" +
			"and stats. Without a date or range flag, catches up from the last\n" +
			"normalize checkpoint.",
		Args: cobra.MaximumNArgs(1),
		RunE: nc.run,
	}

	cmd.Flags().BoolVarP(&nc.force, "force", "f", false, "Re-normalize even if data exists")
	cmd.Flags().BoolVar(&nc.enrich, "enrich", true, "Enrich activities with LLM (change summary, intent)")
	cmd.Flags().IntVarP(&nc.workers, "workers", "w", 0, "Parallel workers (default: config)")
	cmd.Flags().BoolVar(&nc.batch, "batch", false, "Use the batch API for LLM calls")
	nc.dates.register(cmd)

	return cmd
}

func (nc *NormalizeCommand) run(cmd *cobra.Command, args []string) error {
	a, err := nc.factory(nc.globals, observability.ModeCLI)
	if err != nil {
		return err
	}
	defer a.close()

	out := cmd.OutOrStdout()

	res, err := nc.dates.resolve(args, a.checkpoints(), state.CheckpointLastNormalizeDate, time.Now().UTC())
	if err != nil {
		return err
	}

	if res.upToDate {
		fmt.Fprintln(out, "Already up to date.")

		return nil
	}

	workers := nc.workers
	if workers == 0 {
		workers = a.cfg.Pipeline.MaxWorkers
	}

	svc := a.normalizer(nc.enrich)
	ctx := cmd.Context()

	if res.ranged() {
		results, err := svc.NormalizeRange(ctx, res.since, res.until, normalize.RangeOptions{
			Force:      nc.force,
			MaxWorkers: workers,
			Batch:      nc.batch,
			Progress:   progressPrinter(out),
		})
		if err != nil {
			return err
		}

		if err := printRangeResults(out, "Normalized", results); err != nil {
			return err
		}
	} else {
		activitiesPath, statsPath, err := svc.Normalize(ctx, res.dates[0])
		if err != nil {
			return err
		}

		fmt.Fprintln(out, "Normalized 1 day(s)")
		fmt.Fprintf(out, "  %s: %s, %s\n", res.dates[0], activitiesPath, statsPath)
	}

	if nc.enrich {
		a.printUsage(out)
	}

	return nil
}
