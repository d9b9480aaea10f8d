package forkfixture

import (
	"context"
	"math/big"
	"testing"

	"github.com/tranvictor/forkfixture/artifacts"
	"github.com/tranvictor/forkfixture/chain"
	"github.com/tranvictor/forkfixture/contracts"
)

// Fixtures resolves fixtures for one test. The accessors fail the test when
// setup fails.
type Fixtures struct {
	t   testing.TB
	res *resolution
}

// Context returns the context fixtures are set up with
func (fx *Fixtures) Context() context.Context {
	return fx.res.ctx
}

// Get resolves the fixture called name
func (fx *Fixtures) Get(name string) (any, error) {
	return fx.res.resolve(name)
}

// Value resolves the fixture called name as a T, failing the test on error
func Value[T any](fx *Fixtures, name string) T {
	fx.t.Helper()
	value, err := fx.Get(name)
	if err != nil {
		fx.t.Fatalf("forkfixture: %v", err)
	}
	typed, ok := value.(T)
	if !ok {
		var zero T
		fx.t.Fatalf("forkfixture: %v: %s is %T, want %T", ErrFixtureType, name, value, zero)
	}
	return typed
}

// SnapshotID returns the id of the snapshot isolating the test
func (fx *Fixtures) SnapshotID() string {
	fx.t.Helper()
	return Value[string](fx, FixtureIsolation)
}

func (fx *Fixtures) Chain() *chain.Client {
	fx.t.Helper()
	return Value[*chain.Client](fx, FixtureChain)
}

func (fx *Fixtures) Accounts() *chain.Accounts {
	fx.t.Helper()
	return Value[*chain.Accounts](fx, FixtureAccounts)
}

func (fx *Fixtures) PM() *artifacts.Resolver {
	fx.t.Helper()
	return Value[*artifacts.Resolver](fx, FixturePM)
}

// StrategyBuild returns the compiled strategy the strategy fixture deploys
func (fx *Fixtures) StrategyBuild() *artifacts.Artifact {
	fx.t.Helper()
	return Value[*artifacts.Artifact](fx, FixtureStrategyBuild)
}

// Gov returns the impersonated governance account
func (fx *Fixtures) Gov() chain.Account {
	fx.t.Helper()
	return Value[chain.Account](fx, FixtureGov)
}

func (fx *Fixtures) User() chain.Account {
	fx.t.Helper()
	return Value[chain.Account](fx, FixtureUser)
}

func (fx *Fixtures) Rewards() chain.Account {
	fx.t.Helper()
	return Value[chain.Account](fx, FixtureRewards)
}

func (fx *Fixtures) Guardian() chain.Account {
	fx.t.Helper()
	return Value[chain.Account](fx, FixtureGuardian)
}

func (fx *Fixtures) Management() chain.Account {
	fx.t.Helper()
	return Value[chain.Account](fx, FixtureManagement)
}

func (fx *Fixtures) Strategist() chain.Account {
	fx.t.Helper()
	return Value[chain.Account](fx, FixtureStrategist)
}

func (fx *Fixtures) Keeper() chain.Account {
	fx.t.Helper()
	return Value[chain.Account](fx, FixtureKeeper)
}

func (fx *Fixtures) Token() *contracts.Token {
	fx.t.Helper()
	return Value[*contracts.Token](fx, FixtureToken)
}

// Amount returns the token amount moved from the reserve to the user
func (fx *Fixtures) Amount() *big.Int {
	fx.t.Helper()
	return Value[*big.Int](fx, FixtureAmount)
}

func (fx *Fixtures) MasterChef() *contracts.MasterChef {
	fx.t.Helper()
	return Value[*contracts.MasterChef](fx, FixtureMasterChef)
}

func (fx *Fixtures) Vault() *contracts.Vault {
	fx.t.Helper()
	return Value[*contracts.Vault](fx, FixtureVault)
}

func (fx *Fixtures) BalancerVault() *contracts.BalancerVault {
	fx.t.Helper()
	return Value[*contracts.BalancerVault](fx, FixtureBalancerVault)
}

// Strategy returns the deployed strategy, already added to the vault
func (fx *Fixtures) Strategy() *contracts.Strategy {
	fx.t.Helper()
	return Value[*contracts.Strategy](fx, FixtureStrategy)
}

func (fx *Fixtures) RelativeApprox() float64 {
	fx.t.Helper()
	return Value[float64](fx, FixtureRelativeApprox)
}
