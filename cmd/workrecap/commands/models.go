package commands

import (
	"context"
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/workrecap/workrecap/internal/llm"
	"github.com/workrecap/workrecap/internal/llm/provider"
	"github.com/workrecap/workrecap/internal/observability"
)

// modelDiscoverer lists the models available from a set of providers.
// Tests inject one that returns canned results.
type modelDiscoverer func(ctx context.Context, providers map[string]provider.Provider, a *app) []provider.ModelInfo

// ModelsCommand holds dependencies for the models command.
type ModelsCommand struct {
	globals  *Globals
	factory  appFactory
	discover modelDiscoverer
}

// NewModelsCommand creates the models command.
func NewModelsCommand(g *Globals) *cobra.Command {
	return newModelsCommandWithDeps(g, newApp, discoverModels)
}

func newModelsCommandWithDeps(g *Globals, factory appFactory, discover modelDiscoverer) *cobra.Command {
	mc := &ModelsCommand{globals: g, factory: factory, discover: discover}

	cmd := &cobra.Command{
		Use:   "models",
		Short: "List models available from the configured providers",
		Args:  cobra.NoArgs,
		RunE:  mc.run,
	}

	return cmd
}

func (mc *ModelsCommand) run(cmd *cobra.Command, _ []string) error {
	a, err := mc.factory(mc.globals, observability.ModeCLI)
	if err != nil {
		return err
	}
	defer a.close()

	out := cmd.OutOrStdout()
	router := a.llmRouter()

	providers := make(map[string]provider.Provider)

	for name := range router.Config().Providers() {
		p, err := router.ProviderFor(name)
		if err != nil {
			a.logger.Warn("provider unavailable", "provider", name, "error", err)

			continue
		}

		providers[name] = p
	}

	models := mc.discover(cmd.Context(), providers, a)
	if len(models) == 0 {
		fmt.Fprintln(out, "No models discovered. Check provider configuration.")

		return nil
	}

	tw := table.NewWriter()
	tw.SetOutputMirror(out)
	tw.SetStyle(table.StyleLight)
	tw.AppendHeader(table.Row{"Provider", "Model ID", "Name"})

	for _, m := range models {
		tw.AppendRow(table.Row{m.Provider, m.ID, m.Name})
	}

	tw.Render()

	return nil
}

func discoverModels(ctx context.Context, providers map[string]provider.Provider, a *app) []provider.ModelInfo {
	return llm.DiscoverModels(ctx, providers, a.logger)
}
