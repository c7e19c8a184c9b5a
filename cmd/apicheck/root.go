package main

import (
	"log/slog"

	"github.com/spf13/cobra"
)

var version = "dev"

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "apicheck",
		Short: "apicheck - conformance checker for the HealthTestAI backend API",
		Long: `apicheck is a black-box conformance checker for the HealthTestAI backend.

It runs an ordered suite of HTTP checks against a running server (health,
requirements, test cases and the AI chat workflow), prints one line per
check and a summary, and exits non-zero when any check fails.`,
		Version:      version,
		SilenceUsage: true,
	}

	debugLogging := cmd.PersistentFlags().Bool("debug", false, "Enable debug logging")
	cmd.PersistentPreRun = func(cmd *cobra.Command, args []string) {
		if *debugLogging {
			slog.SetLogLoggerLevel(slog.LevelDebug)
		}
	}

	cmd.AddCommand(newRunCommand())
	cmd.AddCommand(newChecksCommand())

	return cmd
}

func execute() error {
	rootCmd := newRootCommand()
	return rootCmd.Execute()
}
