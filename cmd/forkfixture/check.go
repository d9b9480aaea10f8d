package main

import (
	"context"
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/tranvictor/forkfixture"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Set up every fixture twice and verify they are consistent",
	Args:  cobra.NoArgs,
	RunE:  runCheck,
}

func init() {
	rootCmd.AddCommand(checkCmd)
}

func runCheck(cmd *cobra.Command, args []string) error {
	return withHarness(cmd, func(ctx context.Context, h *forkfixture.Harness) error {
		report, err := h.Check(ctx)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Chain: %d (%s)\n\n", report.ChainID, report.Network)

		names := make([]string, 0, len(report.Identities))
		for name := range report.Identities {
			names = append(names, name)
		}
		sort.Strings(names)
		fmt.Fprintln(out, "Identities:")
		for _, name := range names {
			fmt.Fprintf(out, "  %-11s %s\n", name, report.Identities[name].Hex())
		}
		fmt.Fprintln(out)

		fmt.Fprintln(out, "Properties:")
		for _, result := range report.Results {
			fmt.Fprintf(out, "  %s %-20s %s\n", mark(result.OK), result.Property, result.Detail)
		}
		return report.Err()
	})
}

func mark(ok bool) string {
	if ok {
		return "✓"
	}
	return "✗"
}
