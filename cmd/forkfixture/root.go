package main

import (
	"context"
	"errors"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/tranvictor/forkfixture"
)

var (
	configPath string
	rpcURL     string
	flavor     string
	timeout    time.Duration
)

var rootCmd = &cobra.Command{
	Use:   "forkfixture",
	Short: "Inspect the vault/strategy test fixtures against a fork node",
	Long: `forkfixture sets up the vault/strategy test fixtures against a running
anvil or hardhat fork and reports on them. Every command runs inside a
snapshot that is reverted before it exits, so the fork is left untouched.`,
	SilenceUsage: true,
}

func Execute() error {
	return rootCmd.ExecuteContext(context.Background())
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "brownie-config.yaml", "Project config file, defaults are used when it does not exist")
	rootCmd.PersistentFlags().StringVar(&rpcURL, "rpc-url", "", "Fork node URL (overrides config and "+forkfixture.EnvRPCURL+")")
	rootCmd.PersistentFlags().StringVar(&flavor, "flavor", "", "Fork node flavor: anvil or hardhat")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 5*time.Minute, "Overall command timeout")
	rootCmd.CompletionOptions.DisableDefaultCmd = true
}

func loadConfig() (forkfixture.Config, error) {
	cfg, err := forkfixture.LoadConfig(configPath)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return cfg, err
		}
		cfg = forkfixture.DefaultConfig()
		cfg.ApplyEnv()
	}
	if rpcURL != "" {
		cfg.Fork.RPCURL = rpcURL
	}
	if flavor != "" {
		cfg.Fork.Flavor = flavor
	}
	return cfg, cfg.Validate()
}

// withHarness dials the fork and runs fn, closing the harness afterwards
func withHarness(cmd *cobra.Command, fn func(ctx context.Context, h *forkfixture.Harness) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	h, err := forkfixture.Dial(ctx, cfg)
	if err != nil {
		return err
	}
	runErr := fn(ctx, h)
	return errors.Join(runErr, h.Close(ctx))
}
