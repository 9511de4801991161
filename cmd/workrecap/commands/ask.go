package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/workrecap/workrecap/internal/observability"
)

// AskCommand holds flags and dependencies for the ask command.
type AskCommand struct {
	globals *Globals
	factory appFactory

	months int
}

// NewAskCommand creates the ask command.
func NewAskCommand(g *Globals) *cobra.Command {
	return newAskCommandWithDeps(g, newApp)
}

func newAskCommandWithDeps(g *Globals, factory appFactory) *cobra.Command {
	ac := &AskCommand{globals: g, factory: factory}

	cmd := &cobra.Command{
		Use:   "ask <question>",
		Short: "Ask a question over recent summaries",
		Long:  "Answer a free-form question using the recent monthly and daily summaries as context.",
		Args:  cobra.ExactArgs(1),
		RunE:  ac.run,
	}

	cmd.Flags().IntVar(&ac.months, "months", 3, "Months of context to use")

	return cmd
}

func (ac *AskCommand) run(cmd *cobra.Command, args []string) error {
	a, err := ac.factory(ac.globals, observability.ModeCLI)
	if err != nil {
		return err
	}
	defer a.close()

	out := cmd.OutOrStdout()

	answer, err := a.summarizer().Query(cmd.Context(), args[0], ac.months)
	if err != nil {
		return err
	}

	fmt.Fprintln(out, answer)
	a.printUsage(out)

	return nil
}
