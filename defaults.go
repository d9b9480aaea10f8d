package forkfixture

import (
	"context"
	"fmt"
	"math/big"

	"github.com/KyberNetwork/logger"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/math"

	"github.com/tranvictor/forkfixture/artifacts"
	"github.com/tranvictor/forkfixture/chain"
	"github.com/tranvictor/forkfixture/contracts"
)

// DefaultFixtures returns the fixtures of the vault/strategy test suite
func DefaultFixtures() []Fixture {
	fixtures := []Fixture{
		{
			Name:    FixtureChain,
			Scope:   SessionScope,
			Provide: provideChain,
		},
		{
			Name:     FixtureAccounts,
			Scope:    SessionScope,
			Requires: []string{FixtureChain},
			Provide:  provideAccounts,
		},
		{
			Name:    FixturePM,
			Scope:   SessionScope,
			Provide: providePM,
		},
		{
			Name:     FixtureStrategyBuild,
			Scope:    SessionScope,
			Requires: []string{FixturePM},
			Provide:  provideStrategyBuild,
		},
		{
			Name:     FixtureIsolation,
			Scope:    FunctionScope,
			Autouse:  true,
			Requires: []string{FixtureChain},
			Provide:  provideIsolation,
		},
		{
			Name:     FixtureGov,
			Requires: []string{FixtureAccounts},
			Provide:  provideGov,
		},
		{
			Name:     FixtureToken,
			Requires: []string{FixtureChain},
			Provide:  providePinned(FixtureToken),
		},
		{
			Name:     FixtureAmount,
			Requires: []string{FixtureAccounts, FixtureToken, FixtureUser},
			Provide:  provideAmount,
		},
		{
			Name:     FixtureMasterChef,
			Requires: []string{FixtureChain},
			Provide:  providePinned(FixtureMasterChef),
		},
		{
			Name: FixtureVault,
			Requires: []string{
				FixturePM, FixtureGov, FixtureRewards, FixtureGuardian, FixtureManagement, FixtureToken,
			},
			Provide: provideVault,
		},
		{
			Name:     FixtureBalancerVault,
			Requires: []string{FixtureChain},
			Provide:  providePinned(FixtureBalancerVault),
		},
		{
			Name: FixtureStrategy,
			Requires: []string{
				FixtureStrategist, FixtureKeeper, FixtureVault, FixtureStrategyBuild,
				FixtureGov, FixtureBalancerVault, FixtureMasterChef, FixtureChain,
			},
			Provide: provideStrategy,
		},
		{
			Name:    FixtureRelativeApprox,
			Scope:   SessionScope,
			Provide: provideRelativeApprox,
		},
	}
	for _, name := range IdentityFixtures[1:] {
		fixtures = append(fixtures, Fixture{
			Name:     name,
			Requires: []string{FixtureAccounts},
			Provide:  providePoolAccount(name),
		})
	}
	return fixtures
}

func provideChain(r *Request) (any, error) {
	return r.Client(), nil
}

func provideAccounts(r *Request) (any, error) {
	c, err := Dep[*chain.Client](r, FixtureChain)
	if err != nil {
		return nil, err
	}
	minBalance, err := r.Config().MinBalance()
	if err != nil {
		return nil, err
	}
	accounts, err := chain.LoadAccounts(r.Context(), c, minBalance)
	if err != nil {
		return nil, err
	}
	r.AddTeardown(accounts.Release)
	return accounts, nil
}

func providePM(r *Request) (any, error) {
	return r.Resolver(), nil
}

func provideStrategyBuild(r *Request) (any, error) {
	pm, err := Dep[*artifacts.Resolver](r, FixturePM)
	if err != nil {
		return nil, err
	}
	return pm.Project(r.Config().Strategy.Artifact)
}

func provideIsolation(r *Request) (any, error) {
	if _, err := Dep[*chain.Client](r, FixtureChain); err != nil {
		return nil, err
	}
	revert, id, err := r.res.h.isolate(r.Context(), "test:"+r.res.label)
	if err != nil {
		return nil, err
	}
	r.AddTeardown(revert)
	return id, nil
}

func provideGov(r *Request) (any, error) {
	accounts, err := Dep[*chain.Accounts](r, FixtureAccounts)
	if err != nil {
		return nil, err
	}
	return accounts.At(r.Context(), r.Config().Addresses.Gov, true)
}

func providePoolAccount(name string) Provider {
	return func(r *Request) (any, error) {
		accounts, err := Dep[*chain.Accounts](r, FixtureAccounts)
		if err != nil {
			return nil, err
		}
		return accounts.Index(r.Config().Accounts.byFixture()[name])
	}
}

// providePinned wraps a contract already deployed on the forked network
func providePinned(name string) Provider {
	return func(r *Request) (any, error) {
		c, err := Dep[*chain.Client](r, FixtureChain)
		if err != nil {
			return nil, err
		}
		addrs := r.Config().Addresses
		var handle interface {
			EnsureCode(ctx context.Context) error
		}
		switch name {
		case FixtureToken:
			handle = contracts.NewToken(c, addrs.Token)
		case FixtureMasterChef:
			handle = contracts.NewMasterChef(c, addrs.MasterChef)
		case FixtureBalancerVault:
			handle = contracts.NewBalancerVault(c, addrs.BalancerVault)
		default:
			return nil, fmt.Errorf("%w: %s is not a pinned contract", ErrUnknownFixture, name)
		}
		if err := handle.EnsureCode(r.Context()); err != nil {
			return nil, err
		}
		return handle, nil
	}
}

func provideAmount(r *Request) (any, error) {
	accounts, err := Dep[*chain.Accounts](r, FixtureAccounts)
	if err != nil {
		return nil, err
	}
	token, err := Dep[*contracts.Token](r, FixtureToken)
	if err != nil {
		return nil, err
	}
	user, err := Dep[chain.Account](r, FixtureUser)
	if err != nil {
		return nil, err
	}

	amount, err := token.Units(r.Context(), r.Config().AmountUnits)
	if err != nil {
		return nil, err
	}
	reserve, err := accounts.At(r.Context(), r.Config().Addresses.Reserve, true)
	if err != nil {
		return nil, err
	}
	if _, err := token.Transfer(r.Context(), reserve.Address, user.Address, amount); err != nil {
		return nil, fmt.Errorf("couldn't fund user from reserve %s: %w", reserve, err)
	}
	logger.WithFields(logger.Fields{
		"token":   token.Address.Hex(),
		"reserve": reserve.String(),
		"user":    user.String(),
		"amount":  amount.String(),
	}).Debug("Funded user")
	return amount, nil
}

func provideVault(r *Request) (any, error) {
	pm, err := Dep[*artifacts.Resolver](r, FixturePM)
	if err != nil {
		return nil, err
	}
	roles := make(map[string]chain.Account, 4)
	for _, name := range []string{FixtureGov, FixtureRewards, FixtureGuardian, FixtureManagement} {
		if roles[name], err = Dep[chain.Account](r, name); err != nil {
			return nil, err
		}
	}
	token, err := Dep[*contracts.Token](r, FixtureToken)
	if err != nil {
		return nil, err
	}

	pkg, err := pm.Package(r.Config().VaultDependency())
	if err != nil {
		return nil, err
	}
	artifact, err := pkg.Contract("Vault")
	if err != nil {
		return nil, err
	}
	data, err := artifact.DeployData()
	if err != nil {
		return nil, err
	}

	ctx := r.Context()
	gov := roles[FixtureGov].Address
	addr, _, err := r.Client().Deploy(ctx, roles[FixtureGuardian].Address, data)
	if err != nil {
		return nil, fmt.Errorf("couldn't deploy %s Vault: %w", pkg.Dependency, err)
	}
	vault := contracts.NewVault(r.Client(), addr)

	// initialize comes from the deployer, governance only configures
	if _, err := vault.Initialize(ctx, roles[FixtureGuardian].Address, contracts.VaultRoles{
		Token:      token.Address,
		Governance: gov,
		Rewards:    roles[FixtureRewards].Address,
		Guardian:   roles[FixtureGuardian].Address,
		Management: roles[FixtureManagement].Address,
	}); err != nil {
		return nil, err
	}
	if _, err := vault.SetDepositLimit(ctx, gov, math.MaxBig256); err != nil {
		return nil, err
	}
	if _, err := vault.SetManagement(ctx, gov, roles[FixtureManagement].Address); err != nil {
		return nil, err
	}
	return vault, nil
}

func provideStrategy(r *Request) (any, error) {
	strategist, err := Dep[chain.Account](r, FixtureStrategist)
	if err != nil {
		return nil, err
	}
	keeper, err := Dep[chain.Account](r, FixtureKeeper)
	if err != nil {
		return nil, err
	}
	vault, err := Dep[*contracts.Vault](r, FixtureVault)
	if err != nil {
		return nil, err
	}
	build, err := Dep[*artifacts.Artifact](r, FixtureStrategyBuild)
	if err != nil {
		return nil, err
	}
	gov, err := Dep[chain.Account](r, FixtureGov)
	if err != nil {
		return nil, err
	}
	balancerVault, err := Dep[*contracts.BalancerVault](r, FixtureBalancerVault)
	if err != nil {
		return nil, err
	}
	masterChef, err := Dep[*contracts.MasterChef](r, FixtureMasterChef)
	if err != nil {
		return nil, err
	}
	c, err := Dep[*chain.Client](r, FixtureChain)
	if err != nil {
		return nil, err
	}

	cfg := r.Config().Strategy
	ctx := r.Context()
	data, err := build.DeployData(vault.Address, balancerVault.Address, masterChef.Address, big.NewInt(cfg.FarmID))
	if err != nil {
		return nil, err
	}
	addr, _, err := c.Deploy(ctx, strategist.Address, data)
	if err != nil {
		return nil, fmt.Errorf("couldn't deploy %s: %w", build.Name, err)
	}
	strategy := contracts.NewStrategy(c, addr)

	if _, err := strategy.SetKeeper(ctx, strategist.Address, keeper.Address); err != nil {
		return nil, err
	}
	if _, err := vault.AddStrategy(ctx, gov.Address, addr, contracts.StrategyAllocation{
		DebtRatio:         big.NewInt(cfg.DebtRatio),
		MinDebtPerHarvest: big.NewInt(cfg.MinDebtPerHarvest),
		MaxDebtPerHarvest: math.MaxBig256,
		PerformanceFee:    big.NewInt(cfg.PerformanceFee),
	}); err != nil {
		return nil, err
	}
	if err := c.Sleep(ctx, cfg.SettleSeconds); err != nil {
		return nil, err
	}
	return strategy, nil
}

func provideRelativeApprox(r *Request) (any, error) {
	return r.Config().RelativeApprox, nil
}

// identity returns the address an account fixture resolved to
func identity(value any) (common.Address, bool) {
	account, ok := value.(chain.Account)
	if !ok {
		return common.Address{}, false
	}
	return account.Address, true
}
