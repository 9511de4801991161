package commands

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/workrecap/workrecap/internal/config"
	"github.com/workrecap/workrecap/internal/observability"
)

const redactedValue = "[redacted]"

// ConfigCommand holds dependencies for the config command group.
type ConfigCommand struct {
	globals *Globals
	factory appFactory
}

// NewConfigCommand creates the config command group.
func NewConfigCommand(g *Globals) *cobra.Command {
	return newConfigCommandWithDeps(g, newApp)
}

func newConfigCommandWithDeps(g *Globals, factory appFactory) *cobra.Command {
	cc := &ConfigCommand{globals: g, factory: factory}

	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect the configuration",
	}

	show := &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration with secrets redacted",
		Args:  cobra.NoArgs,
		RunE:  cc.runShow,
	}

	cmd.AddCommand(show)

	return cmd
}

func (cc *ConfigCommand) runShow(cmd *cobra.Command, _ []string) error {
	a, err := cc.factory(cc.globals, observability.ModeCLI)
	if err != nil {
		return err
	}
	defer a.close()

	rendered, err := yaml.Marshal(redactConfig(*a.cfg))
	if err != nil {
		return err
	}

	fmt.Fprint(cmd.OutOrStdout(), string(rendered))

	return nil
}

// redactConfig masks every credential field that is set. The copy keeps
// empty fields empty so the output shows which secrets are configured.
func redactConfig(cfg config.Config) config.Config {
	redact := func(s *string) {
		if *s != "" {
			*s = redactedValue
		}
	}

	redact(&cfg.GitHub.Token)
	redact(&cfg.LLM.APIKey)
	redact(&cfg.Notify.TelegramBotToken)
	redact(&cfg.Notify.SlackToken)
	redact(&cfg.Storage.PostgresDSN)
	redact(&cfg.Storage.Embedding.APIKey)

	return cfg
}
