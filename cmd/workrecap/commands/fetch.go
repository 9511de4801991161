package commands

import (
	"fmt"
	"slices"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/workrecap/workrecap/internal/fetch"
	"github.com/workrecap/workrecap/internal/observability"
	"github.com/workrecap/workrecap/internal/state"
)

// FetchCommand holds flags and dependencies for the fetch command.
type FetchCommand struct {
	globals *Globals
	factory appFactory

	typ     string
	force   bool
	workers int
	dates   dateSelection
}

// NewFetchCommand creates the fetch command.
func NewFetchCommand(g *Globals) *cobra.Command {
	return newFetchCommandWithDeps(g, newApp)
}

func newFetchCommandWithDeps(g *Globals, factory appFactory) *cobra.Command {
	fc := &FetchCommand{globals: g, factory: factory}

	cmd := &cobra.Command{
		Use:   "fetch [date]",
		Short: "Fetch GitHub activity for a date or range",
		Long: "Fetch pull requests, commits, and issues authored on the given date.\n" +
			"Without a date or range flag, catches up from the last fetch checkpoint.",
		Args: cobra.MaximumNArgs(1),
		RunE: fc.run,
	}

	cmd.Flags().StringVarP(&fc.typ, "type", "t", "", "prs, commits, or issues (default: all)")
	cmd.Flags().BoolVarP(&fc.force, "force", "f", false, "Re-fetch even if data exists")
	cmd.Flags().IntVarP(&fc.workers, "workers", "w", 1, "Parallel workers for range fetches")
	fc.dates.register(cmd)

	return cmd
}

func (fc *FetchCommand) run(cmd *cobra.Command, args []string) error {
	types, err := selectTypes(fc.typ)
	if err != nil {
		return err
	}

	a, err := fc.factory(fc.globals, observability.ModeCLI)
	if err != nil {
		return err
	}
	defer a.close()

	out := cmd.OutOrStdout()

	res, err := fc.dates.resolve(args, a.checkpoints(), state.CheckpointLastFetchDate, time.Now().UTC())
	if err != nil {
		return err
	}

	if res.upToDate {
		fmt.Fprintln(out, "Already up to date.")

		return nil
	}

	svc, err := a.fetcher(fc.workers)
	if err != nil {
		return err
	}

	ctx := cmd.Context()

	if len(res.dates) > 1 && res.ranged() {
		results, err := svc.FetchRange(ctx, res.since, res.until, fetch.RangeOptions{
			Types:      types,
			Force:      fc.force,
			MaxWorkers: fc.workers,
			Progress:   progressPrinter(out),
		})
		if err != nil {
			return err
		}

		rangeErr := printRangeResults(out, "Fetched", results)
		printExhausted(out, a)

		return rangeErr
	}

	paths, err := svc.Fetch(ctx, res.dates[0], types)
	if err != nil {
		return err
	}

	fmt.Fprintln(out, "Fetched 1 day(s)")

	names := make([]string, 0, len(paths))
	for name := range paths {
		names = append(names, name)
	}

	sort.Strings(names)

	for _, name := range names {
		fmt.Fprintf(out, "  %s %s: %s\n", res.dates[0], name, paths[name])
	}

	return nil
}

// selectTypes maps the --type flag to the entity filter. Empty means all
// types.
func selectTypes(v string) ([]string, error) {
	if v == "" {
		return nil, nil
	}

	if !slices.Contains(fetch.AllTypes, v) {
		return nil, fmt.Errorf("Invalid type: %s. Must be one of %s", v, strings.Join(fetch.AllTypes, ", "))
	}

	return []string{v}, nil
}
