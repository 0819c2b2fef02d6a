package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/Fantasim/vaultscan/internal/scanner"
)

func newProbeCommand(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "probe",
		Short: "Check connectivity of every source endpoint",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := loadApp(cmd, flags)
			if err != nil {
				return err
			}
			defer a.Close()

			results := scanner.RunStartupHealthChecks(cmd.Context(), a.reg)

			failed := 0
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "SOURCE\tENDPOINT\tSTATUS\tLATENCY")
			for _, r := range results {
				status := "ok"
				if !r.OK {
					status = "FAIL: " + r.Error.Error()
					failed++
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", r.Source, r.Endpoint, status, r.Latency.Round(time.Millisecond))
			}
			if err := tw.Flush(); err != nil {
				return err
			}

			if failed > 0 {
				return fmt.Errorf("%d of %d endpoints failed", failed, len(results))
			}
			return nil
		},
	}
}
