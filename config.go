package forkfixture

import (
	"errors"
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"gopkg.in/yaml.v3"

	"github.com/tranvictor/forkfixture/artifacts"
	"github.com/tranvictor/forkfixture/chain"
)

// Environment variables overriding the config file
const (
	EnvRPCURL      = "FORK_RPC_URL"
	EnvFlavor      = "FORK_FLAVOR"
	EnvPackagesDir = "FORK_PACKAGES_DIR"
)

const (
	DefaultRPCURL         = "http://127.0.0.1:8545"
	DefaultDependency     = "yearn/yearn-vaults@0.4.3"
	DefaultRelativeApprox = 1e-5
)

// ForkConfig describes the fork node
type ForkConfig struct {
	RPCURL         string        `yaml:"rpc_url"`
	Flavor         string        `yaml:"flavor"`
	ReceiptTimeout time.Duration `yaml:"receipt_timeout"`
	PollInterval   time.Duration `yaml:"poll_interval"`
	// ImpersonationBalance is the native balance, in wei, impersonated
	// accounts are topped up to
	ImpersonationBalance string `yaml:"impersonation_balance"`
}

// PathsConfig locates compiled contracts
type PathsConfig struct {
	Packages string `yaml:"packages"`
	Build    string `yaml:"build"`
}

// AddressesConfig are the pinned on-chain addresses of the forked network
type AddressesConfig struct {
	Gov           common.Address `yaml:"gov"`
	Token         common.Address `yaml:"token"`
	Reserve       common.Address `yaml:"reserve"`
	MasterChef    common.Address `yaml:"masterchef"`
	BalancerVault common.Address `yaml:"balancer_vault"`
}

// AccountsConfig are the pool indices of the unforced identities
type AccountsConfig struct {
	User       int `yaml:"user"`
	Rewards    int `yaml:"rewards"`
	Guardian   int `yaml:"guardian"`
	Management int `yaml:"management"`
	Strategist int `yaml:"strategist"`
	Keeper     int `yaml:"keeper"`
}

func (a AccountsConfig) byFixture() map[string]int {
	return map[string]int{
		FixtureUser:       a.User,
		FixtureRewards:    a.Rewards,
		FixtureGuardian:   a.Guardian,
		FixtureManagement: a.Management,
		FixtureStrategist: a.Strategist,
		FixtureKeeper:     a.Keeper,
	}
}

// StrategyConfig parametrizes the strategy deployment and its vault allocation
type StrategyConfig struct {
	Artifact          string `yaml:"artifact"`
	FarmID            int64  `yaml:"farm_id"`
	DebtRatio         int64  `yaml:"debt_ratio"`
	MinDebtPerHarvest int64  `yaml:"min_debt_per_harvest"`
	PerformanceFee    int64  `yaml:"performance_fee"`
	// SettleSeconds is how far chain time moves after the strategy is added
	SettleSeconds uint64 `yaml:"settle_seconds"`
}

// Config is the brownie-style project configuration the fixtures read
type Config struct {
	Dependencies   []string        `yaml:"dependencies"`
	Fork           ForkConfig      `yaml:"fork"`
	Paths          PathsConfig     `yaml:"paths"`
	Addresses      AddressesConfig `yaml:"addresses"`
	Accounts       AccountsConfig  `yaml:"accounts"`
	Strategy       StrategyConfig  `yaml:"strategy"`
	AmountUnits    int64           `yaml:"amount_units"`
	RelativeApprox float64         `yaml:"relative_approx"`
}

// DefaultConfig returns the configuration of the Beethoven-X fBEETS strategy
// on a Fantom fork
func DefaultConfig() Config {
	packages := filepath.Join(".brownie", "packages")
	if home, err := os.UserHomeDir(); err == nil {
		packages = filepath.Join(home, packages)
	}
	return Config{
		Dependencies: []string{DefaultDependency},
		Fork: ForkConfig{
			RPCURL:               DefaultRPCURL,
			Flavor:               string(chain.FlavorAnvil),
			ReceiptTimeout:       chain.DefaultReceiptTimeout,
			PollInterval:         chain.DefaultPollInterval,
			ImpersonationBalance: "100000000000000000000",
		},
		Paths: PathsConfig{
			Packages: packages,
			Build:    filepath.Join("build", "contracts"),
		},
		Addresses: AddressesConfig{
			Gov:           common.HexToAddress("0xFEB4acf3df3cDEA7399794D0869ef76A6EfAff52"),
			Token:         common.HexToAddress("0xfcef8a994209d6916EB2C86cDD2AFD60Aa6F54b1"),
			Reserve:       common.HexToAddress("0x8166994d9ebBe5829EC86Bd81258149B87faCfd3"),
			MasterChef:    common.HexToAddress("0x8166994d9ebBe5829EC86Bd81258149B87faCfd3"),
			BalancerVault: common.HexToAddress("0x20dd72Ed959b6147912C2e529F0a0C651c33c9ce"),
		},
		Accounts: AccountsConfig{
			User:       0,
			Rewards:    1,
			Guardian:   2,
			Management: 3,
			Strategist: 4,
			Keeper:     5,
		},
		Strategy: StrategyConfig{
			Artifact:          "Strategy",
			FarmID:            22,
			DebtRatio:         10_000,
			MinDebtPerHarvest: 0,
			PerformanceFee:    1_000,
			SettleSeconds:     1,
		},
		AmountUnits:    1_000_000,
		RelativeApprox: DefaultRelativeApprox,
	}
}

// LoadConfig reads a YAML config file over DefaultConfig and applies the
// environment overrides
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("couldn't read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, errors.Join(ErrInvalidConfig, fmt.Errorf("%s: %w", path, err))
	}
	cfg.ApplyEnv()
	return cfg, nil
}

// ApplyEnv overrides fork settings from FORK_RPC_URL, FORK_FLAVOR and
// FORK_PACKAGES_DIR when set
func (c *Config) ApplyEnv() {
	if v := os.Getenv(EnvRPCURL); v != "" {
		c.Fork.RPCURL = v
	}
	if v := os.Getenv(EnvFlavor); v != "" {
		c.Fork.Flavor = v
	}
	if v := os.Getenv(EnvPackagesDir); v != "" {
		c.Paths.Packages = v
	}
}

// VaultDependency is the package the vault is deployed from
func (c Config) VaultDependency() string {
	if len(c.Dependencies) == 0 {
		return ""
	}
	return c.Dependencies[0]
}

// MinBalance parses ImpersonationBalance; nil disables top-ups
func (c Config) MinBalance() (*big.Int, error) {
	if c.Fork.ImpersonationBalance == "" {
		return nil, nil
	}
	wei, ok := new(big.Int).SetString(c.Fork.ImpersonationBalance, 10)
	if !ok || wei.Sign() < 0 {
		return nil, fmt.Errorf("%w: impersonation_balance %q is not a wei amount", ErrInvalidConfig, c.Fork.ImpersonationBalance)
	}
	return wei, nil
}

// Validate checks the configuration. Every problem is reported.
func (c Config) Validate() error {
	var errs []error
	fail := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf(format, args...))
	}

	if _, err := chain.ParseFlavor(c.Fork.Flavor); err != nil {
		errs = append(errs, err)
	}
	if c.Fork.ReceiptTimeout <= 0 {
		fail("fork.receipt_timeout must be positive")
	}
	if c.Fork.PollInterval <= 0 {
		fail("fork.poll_interval must be positive")
	}
	if _, err := c.MinBalance(); err != nil {
		errs = append(errs, err)
	}

	if len(c.Dependencies) == 0 {
		fail("dependencies: the vault package is missing")
	}
	for _, dep := range c.Dependencies {
		if _, err := artifacts.ParseDependency(dep); err != nil {
			errs = append(errs, err)
		}
	}
	if c.Strategy.Artifact == "" {
		fail("strategy.artifact is empty")
	}

	zero := common.Address{}
	for name, addr := range map[string]common.Address{
		"gov":            c.Addresses.Gov,
		"token":          c.Addresses.Token,
		"reserve":        c.Addresses.Reserve,
		"masterchef":     c.Addresses.MasterChef,
		"balancer_vault": c.Addresses.BalancerVault,
	} {
		if addr == zero {
			fail("addresses.%s is not set", name)
		}
	}

	seen := map[int]string{}
	for _, name := range IdentityFixtures[1:] {
		i := c.Accounts.byFixture()[name]
		if i < 0 {
			fail("accounts.%s: negative index %d", name, i)
			continue
		}
		if other, ok := seen[i]; ok {
			errs = append(errs, fmt.Errorf("%w: %s and %s both use pool account %d", ErrIdentityCollision, other, name, i))
			continue
		}
		seen[i] = name
	}

	if c.Strategy.DebtRatio < 0 || c.Strategy.DebtRatio > 10_000 {
		fail("strategy.debt_ratio %d is outside [0, 10000]", c.Strategy.DebtRatio)
	}
	if c.Strategy.PerformanceFee < 0 || c.Strategy.PerformanceFee > 5_000 {
		fail("strategy.performance_fee %d is outside [0, 5000]", c.Strategy.PerformanceFee)
	}
	if c.Strategy.MinDebtPerHarvest < 0 {
		fail("strategy.min_debt_per_harvest is negative")
	}
	if c.Strategy.FarmID < 0 {
		fail("strategy.farm_id is negative")
	}
	if c.AmountUnits <= 0 {
		fail("amount_units must be positive")
	}
	if c.RelativeApprox <= 0 || c.RelativeApprox >= 1 {
		fail("relative_approx %g is outside (0, 1)", c.RelativeApprox)
	}

	if len(errs) > 0 {
		return errors.Join(append([]error{ErrInvalidConfig}, errs...)...)
	}
	return nil
}
