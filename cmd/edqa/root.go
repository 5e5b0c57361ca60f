package main

import (
	"github.com/spf13/cobra"
)

func newRootCommand() *cobra.Command {
	var envFileFlag string
	var logLevelFlag string

	ctx := newCommandContext(&envFileFlag, &logLevelFlag)

	rootCmd := &cobra.Command{
		Use:           "edqa",
		Short:         "Generate quiz questions from video captions",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			ctx.initLogging()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().StringVar(&envFileFlag, "env-file", ".env", "Dotenv file loaded before reading the environment")
	rootCmd.PersistentFlags().StringVar(&logLevelFlag, "log-level", "", "Log level (debug, info, warn, error); overrides LOG_LEVEL")

	rootCmd.AddCommand(newServeCommand(ctx))
	rootCmd.AddCommand(newParseCommand())
	rootCmd.AddCommand(newMatchCommand())
	rootCmd.AddCommand(newProcessCommand(ctx))

	return rootCmd
}
