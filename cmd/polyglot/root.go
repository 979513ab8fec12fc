package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kornysietsma/polyglot-code-scanner/internal/version"
)

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "polyglot",
		Short: "Polyglot code scanner",
		Long: `polyglot scans a source tree and its git history and writes a data file
describing every file: how old it is, who changed it, how its changes cluster
into bursts of activity, and which other files tend to change with it.`,
		Version:       version.Info(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.SetVersionTemplate("polyglot version {{.Version}}\n")

	rootCmd.AddCommand(newScanCmd())
	rootCmd.AddCommand(newConfigCmd())
	rootCmd.AddCommand(newVersionCmd())
	return rootCmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version and data format information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version.Full())
		},
	}
}
