package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tranvictor/forkfixture"
)

var accountsCmd = &cobra.Command{
	Use:   "accounts",
	Short: "Print the addresses the account fixtures resolve to",
	Args:  cobra.NoArgs,
	RunE:  runAccounts,
}

func init() {
	rootCmd.AddCommand(accountsCmd)
}

func runAccounts(cmd *cobra.Command, args []string) error {
	return withHarness(cmd, func(ctx context.Context, h *forkfixture.Harness) error {
		ids, err := h.Identities(ctx)
		if err != nil {
			return err
		}
		for _, name := range forkfixture.IdentityFixtures {
			fmt.Fprintf(cmd.OutOrStdout(), "%-11s %s\n", name, ids[name].Hex())
		}
		return nil
	})
}
