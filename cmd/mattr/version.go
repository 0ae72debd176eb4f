package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"mattr/internal/config"
)

// Set at build time with -ldflags "-X main.version=... -X main.commit=..."
var (
	version = "dev"
	commit  = "none"
)

var versionCmd = &cobra.Command{
	Use:               "version",
	Short:             "Print the mattr version",
	Args:              cobra.NoArgs,
	PersistentPreRunE: skipSetup,
	Run: func(cmd *cobra.Command, _ []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "mattr %s (%s), default model %s\n", version, commit, config.DefaultModel)
	},
}
