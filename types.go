package forkfixture

// Scope controls how long a fixture value lives
type Scope int

const (
	// FunctionScope values are set up again for every test
	FunctionScope Scope = iota
	// SessionScope values are set up once per Harness
	SessionScope
)

func (s Scope) String() string {
	switch s {
	case FunctionScope:
		return "function"
	case SessionScope:
		return "session"
	default:
		return "unknown"
	}
}

// Fixture names
const (
	FixtureIsolation      = "isolation"
	FixtureChain          = "chain"
	FixtureAccounts       = "accounts"
	FixturePM             = "pm"
	FixtureStrategyBuild  = "Strategy"
	FixtureGov            = "gov"
	FixtureUser           = "user"
	FixtureRewards        = "rewards"
	FixtureGuardian       = "guardian"
	FixtureManagement     = "management"
	FixtureStrategist     = "strategist"
	FixtureKeeper         = "keeper"
	FixtureToken          = "token"
	FixtureAmount         = "amount"
	FixtureMasterChef     = "masterchef"
	FixtureVault          = "vault"
	FixtureBalancerVault  = "balancer_vault"
	FixtureStrategy       = "strategy"
	FixtureRelativeApprox = "RELATIVE_APPROX"
)

// IdentityFixtures are the account fixtures that must resolve to pairwise
// distinct addresses
var IdentityFixtures = []string{
	FixtureGov,
	FixtureUser,
	FixtureRewards,
	FixtureGuardian,
	FixtureManagement,
	FixtureStrategist,
	FixtureKeeper,
}
