package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
)

var version = "dev"

// globalFlags override configuration loaded from the environment.
type globalFlags struct {
	sourcesFile string
	logLevel    string
	logDir      string
}

func newRootCommand(stdout, stderr io.Writer) *cobra.Command {
	flags := &globalFlags{}

	root := &cobra.Command{
		Use:           "vaultscan",
		Short:         "Multi-chain balance aggregation",
		Long:          "vaultscan fans one wallet address out to every configured chain source and merges the balances it holds.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(stdout)
	root.SetErr(stderr)

	pf := root.PersistentFlags()
	pf.StringVar(&flags.sourcesFile, "sources", "", "YAML sources file replacing the built-in table (overrides VAULTSCAN_SOURCES_FILE)")
	pf.StringVar(&flags.logLevel, "log-level", "", "log level: debug, info, warn, error (overrides VAULTSCAN_LOG_LEVEL)")
	pf.StringVar(&flags.logDir, "log-dir", "", "daily log file directory, empty disables file logging (overrides VAULTSCAN_LOG_DIR)")

	root.AddCommand(
		newBalancesCommand(flags),
		newServeCommand(flags),
		newSourcesCommand(flags),
		newProbeCommand(flags),
		newVersionCommand(),
	)

	return root
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "vaultscan %s\n", version)
		},
	}
}
