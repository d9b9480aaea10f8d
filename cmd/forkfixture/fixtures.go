package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tranvictor/forkfixture"
)

var fixturesCmd = &cobra.Command{
	Use:   "fixtures [name...]",
	Short: "List fixtures in setup order with their scope and requirements",
	RunE:  runFixtures,
}

func init() {
	rootCmd.AddCommand(fixturesCmd)
}

// runFixtures works offline: it only needs the registry
func runFixtures(cmd *cobra.Command, args []string) error {
	registry := forkfixture.NewRegistry()
	if err := registry.Register(forkfixture.DefaultFixtures()...); err != nil {
		return err
	}
	if err := registry.Validate(); err != nil {
		return err
	}
	if len(args) == 0 {
		args = registry.Names()
	}
	order, err := registry.Order(args...)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	for _, name := range order {
		f, _ := registry.Lookup(name)
		flags := f.Scope.String()
		if f.Autouse {
			flags += ", autouse"
		}
		requires := "-"
		if len(f.Requires) > 0 {
			requires = strings.Join(f.Requires, ", ")
		}
		fmt.Fprintf(out, "%-16s %-18s %s\n", name, flags, requires)
	}
	return nil
}
