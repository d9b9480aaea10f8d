package forkfixture_test

import (
	"math/big"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tranvictor/forkfixture"
	"github.com/tranvictor/forkfixture/artifacts"
	"github.com/tranvictor/forkfixture/chain"
	"github.com/tranvictor/forkfixture/testutil"
)

func TestDefaultConfig(t *testing.T) {
	cfg := forkfixture.DefaultConfig()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, forkfixture.DefaultDependency, cfg.VaultDependency())
	assert.Equal(t, string(chain.FlavorAnvil), cfg.Fork.Flavor)
	assert.Equal(t, testutil.GovAddr, cfg.Addresses.Gov)
	assert.Equal(t, testutil.TokenAddr, cfg.Addresses.Token)
	assert.Equal(t, testutil.MasterChefAddr, cfg.Addresses.MasterChef)
	assert.Equal(t, testutil.BalancerVaultAddr, cfg.Addresses.BalancerVault)
	assert.Equal(t, testutil.FarmID, cfg.Strategy.FarmID)
	assert.Equal(t, 1e-5, cfg.RelativeApprox)

	minBalance, err := cfg.MinBalance()
	require.NoError(t, err)
	assert.Equal(t, new(big.Int).Mul(big.NewInt(100), testutil.OneEth), minBalance)
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "brownie-config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadConfig(t *testing.T) {
	t.Run("file values over defaults", func(t *testing.T) {
		path := writeConfig(t, `
dependencies:
  - yearn/yearn-vaults@0.4.5
fork:
  rpc_url: http://fork:8545
  flavor: hardhat
  receipt_timeout: 5s
addresses:
  gov: "0x0000000000000000000000000000000000000001"
accounts:
  user: 7
strategy:
  farm_id: 17
amount_units: 500
relative_approx: 0.001
`)
		cfg, err := forkfixture.LoadConfig(path)
		require.NoError(t, err)
		require.NoError(t, cfg.Validate())

		assert.Equal(t, "yearn/yearn-vaults@0.4.5", cfg.VaultDependency())
		assert.Equal(t, "http://fork:8545", cfg.Fork.RPCURL)
		assert.Equal(t, "hardhat", cfg.Fork.Flavor)
		assert.Equal(t, 5*time.Second, cfg.Fork.ReceiptTimeout)
		assert.Equal(t, chain.DefaultPollInterval, cfg.Fork.PollInterval)
		assert.Equal(t, common.HexToAddress("0x01"), cfg.Addresses.Gov)
		assert.Equal(t, testutil.TokenAddr, cfg.Addresses.Token)
		assert.Equal(t, 7, cfg.Accounts.User)
		assert.Equal(t, 1, cfg.Accounts.Rewards)
		assert.Equal(t, int64(17), cfg.Strategy.FarmID)
		assert.Equal(t, "Strategy", cfg.Strategy.Artifact)
		assert.Equal(t, int64(500), cfg.AmountUnits)
		assert.Equal(t, 0.001, cfg.RelativeApprox)
	})

	t.Run("environment wins over the file", func(t *testing.T) {
		t.Setenv(forkfixture.EnvRPCURL, "http://env:8545")
		t.Setenv(forkfixture.EnvFlavor, "anvil")
		t.Setenv(forkfixture.EnvPackagesDir, "/opt/packages")
		path := writeConfig(t, "fork:\n  rpc_url: http://fork:8545\n  flavor: hardhat\n")

		cfg, err := forkfixture.LoadConfig(path)
		require.NoError(t, err)
		assert.Equal(t, "http://env:8545", cfg.Fork.RPCURL)
		assert.Equal(t, "anvil", cfg.Fork.Flavor)
		assert.Equal(t, "/opt/packages", cfg.Paths.Packages)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := forkfixture.LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
		assert.ErrorIs(t, err, os.ErrNotExist)
	})

	t.Run("malformed yaml", func(t *testing.T) {
		_, err := forkfixture.LoadConfig(writeConfig(t, "fork: [unclosed"))
		assert.ErrorIs(t, err, forkfixture.ErrInvalidConfig)
	})
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*forkfixture.Config)
		want   error
	}{
		{
			name:   "identities share a pool account",
			modify: func(c *forkfixture.Config) { c.Accounts.Keeper = c.Accounts.User },
			want:   forkfixture.ErrIdentityCollision,
		},
		{
			name:   "unknown flavor",
			modify: func(c *forkfixture.Config) { c.Fork.Flavor = "ganache" },
			want:   chain.ErrUnknownFlavor,
		},
		{
			name:   "malformed dependency",
			modify: func(c *forkfixture.Config) { c.Dependencies = []string{"yearn-vaults"} },
			want:   artifacts.ErrInvalidDependency,
		},
		{
			name:   "no dependency",
			modify: func(c *forkfixture.Config) { c.Dependencies = nil },
		},
		{
			name:   "impersonation balance is not a number",
			modify: func(c *forkfixture.Config) { c.Fork.ImpersonationBalance = "100 ether" },
		},
		{
			name:   "zero address",
			modify: func(c *forkfixture.Config) { c.Addresses.Token = common.Address{} },
		},
		{
			name:   "negative account index",
			modify: func(c *forkfixture.Config) { c.Accounts.Guardian = -1 },
		},
		{
			name:   "debt ratio above 100%",
			modify: func(c *forkfixture.Config) { c.Strategy.DebtRatio = 10_001 },
		},
		{
			name:   "performance fee above 50%",
			modify: func(c *forkfixture.Config) { c.Strategy.PerformanceFee = 5_001 },
		},
		{
			name:   "no amount",
			modify: func(c *forkfixture.Config) { c.AmountUnits = 0 },
		},
		{
			name:   "zero tolerance",
			modify: func(c *forkfixture.Config) { c.RelativeApprox = 0 },
		},
		{
			name:   "no poll interval",
			modify: func(c *forkfixture.Config) { c.Fork.PollInterval = 0 },
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := forkfixture.DefaultConfig()
			tt.modify(&cfg)
			err := cfg.Validate()
			assert.ErrorIs(t, err, forkfixture.ErrInvalidConfig)
			if tt.want != nil {
				assert.ErrorIs(t, err, tt.want)
			}
		})
	}

	t.Run("empty impersonation balance disables top-ups", func(t *testing.T) {
		cfg := forkfixture.DefaultConfig()
		cfg.Fork.ImpersonationBalance = ""
		require.NoError(t, cfg.Validate())
		minBalance, err := cfg.MinBalance()
		require.NoError(t, err)
		assert.Nil(t, minBalance)
	})
}
