package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/Fantasim/vaultscan/internal/aggregator"
)

var errIncompleteCoverage = errors.New("one or more sources failed")

func newBalancesCommand(flags *globalFlags) *cobra.Command {
	var (
		asJSON bool
		strict bool
	)

	cmd := &cobra.Command{
		Use:   "balances <address>",
		Short: "Aggregate the balances of an address across every source",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(cmd, flags)
			if err != nil {
				return err
			}
			defer a.Close()

			agg, err := a.buildAggregator()
			if err != nil {
				return err
			}

			result := agg.Aggregate(cmd.Context(), args[0])

			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				if err := enc.Encode(result); err != nil {
					return fmt.Errorf("failed to encode result: %w", err)
				}
			} else if err := printResult(cmd.OutOrStdout(), result); err != nil {
				return err
			}

			if strict && !result.Report.Complete() {
				return fmt.Errorf("%w: %d of %d", errIncompleteCoverage, result.Report.Failed, len(result.Report.Sources))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print balances and coverage as JSON")
	cmd.Flags().BoolVar(&strict, "strict", false, "exit non-zero when any source failed")

	return cmd
}

// printResult writes the balances table followed by the failed sources.
func printResult(w io.Writer, result aggregator.Result) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)

	fmt.Fprintln(tw, "CHAIN\tTOKEN\tBALANCE\tCONTRACT\tSOURCE")
	for _, r := range result.Records {
		token := r.Token
		if r.IsNative() && r.Name != "" {
			token = r.Name
		}
		contract := r.ContractAddress
		if contract == "" {
			contract = "-"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", r.Chain, token, r.Balance, contract, r.Source)
	}
	if err := tw.Flush(); err != nil {
		return fmt.Errorf("failed to write balances: %w", err)
	}

	report := result.Report
	fmt.Fprintf(w, "\n%d sources: %d ok, %d failed, %d skipped (%dms)\n",
		len(report.Sources), report.Succeeded, report.Failed, report.Skipped, report.DurationMs)

	failures := report.Failures()
	if len(failures) == 0 {
		return nil
	}

	tw = tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "FAILED SOURCE\tCHAIN\tREASON\tATTEMPTS\tLAST ENDPOINT")
	for _, f := range failures {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\n", f.Source, f.Chain, f.Reason, f.Attempts, f.Endpoint)
	}
	return tw.Flush()
}
