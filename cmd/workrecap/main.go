// Package main provides the entry point for the workrecap CLI tool.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/workrecap/workrecap/cmd/workrecap/commands"
	"github.com/workrecap/workrecap/pkg/version"
)

func main() {
	version.InitBinaryVersion()

	globals := &commands.Globals{}

	rootCmd := &cobra.Command{
		Use:   "workrecap",
		Short: "GitHub activity recap with LLM summaries",
		Long: `workrecap collects your GitHub activity, normalizes it into
per-date activities and stats, and writes LLM-generated Markdown recaps.

Commands:
  fetch      Fetch raw PR/commit/issue activity
  normalize  Turn raw files into activities and stats
  summarize  Generate daily/weekly/monthly/yearly summaries
  run        Full pipeline: fetch, normalize, summarize
  ask        Answer a question from recent summaries
  models     List models from configured providers
  serve      Run the HTTP API and cron scheduler`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&globals.ConfigPath, "config", "", "config file (default: ./workrecap.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&globals.Verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().BoolVar(&globals.LogJSON, "log-json", false, "write logs as JSON")

	rootCmd.AddCommand(
		commands.NewFetchCommand(globals),
		commands.NewNormalizeCommand(globals),
		commands.NewSummarizeCommand(globals),
		commands.NewRunCommand(globals),
		commands.NewAskCommand(globals),
		commands.NewModelsCommand(globals),
		commands.NewServeCommand(globals),
		commands.NewConfigCommand(globals),
		versionCmd(),
	)

	err := rootCmd.Execute()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(_ *cobra.Command, _ []string) {
			fmt.Fprintf(os.Stdout, "workrecap %s (commit: %s, built: %s)\n", version.Version, version.Commit, version.Date)
		},
	}
}
