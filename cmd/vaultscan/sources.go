package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func newSourcesCommand(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "sources",
		Short: "List the configured sources in registry order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := loadApp(cmd, flags)
			if err != nil {
				return err
			}
			defer a.Close()

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "NAME\tCHAIN\tKIND\tPROTOCOL\tENDPOINTS")
			for _, d := range a.reg.All() {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
					d.Name, d.Chain, d.Kind, d.Protocol, strings.Join(d.MaskedEndpoints(), ", "))
			}
			return tw.Flush()
		},
	}
}
