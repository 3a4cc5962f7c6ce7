package main

import (
	"github.com/spf13/cobra"
)

// version is stamped by the release build via -ldflags.
var version = "0.4.0-dev"

func newRootCommand() *cobra.Command {
	var (
		configFlag  string
		serverFlag  string
		verboseFlag bool
	)

	cc := newCommandContext(&configFlag, &serverFlag, &verboseFlag)

	rootCmd := &cobra.Command{
		Use:   "narravox",
		Short: "Override studio for narration servers",
		Long: `narravox manages pronunciation and voice overrides for an audiobook
narration server: weighted voice mixes, per-token pronunciation respellings,
audio previews, and an interactive editing session that saves as you type.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return cc.setup()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().StringVarP(&configFlag, "config", "c", "", "configuration file path")
	rootCmd.PersistentFlags().StringVar(&serverFlag, "server", "", "narration server base URL (overrides config)")
	rootCmd.PersistentFlags().BoolVarP(&verboseFlag, "verbose", "v", false, "enable debug logging")

	rootCmd.AddCommand(newEditCommand(cc))
	rootCmd.AddCommand(newPreviewCommand(cc))
	rootCmd.AddCommand(newMixCommand(cc))
	rootCmd.AddCommand(newOverridesCommand(cc))
	rootCmd.AddCommand(newEntitiesCommand(cc))
	rootCmd.AddCommand(newWatchCommand(cc))
	rootCmd.AddCommand(newCacheCommand(cc))

	return rootCmd
}
