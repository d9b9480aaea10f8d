// Package testutil provides testing utilities for forkfixture.
// This package is intended for use in tests only and should not be imported in production code.
//
// # Fake fork
//
// FakeChain implements chain.Backend in memory: an unlocked account pool,
// impersonation, automine with gas charged to the sender, time travel and
// snapshot/revert. Contracts are Go fakes of an ERC20, a Yearn v2 vault, the
// farming strategy, the farm and the AMM vault, decoded through the ABIs of
// the contracts package.
//
// # Fixtures
//
// NewFantomFork seeds a FakeChain with the pinned Fantom addresses and
// WriteArtifacts lays out brownie build artifacts carrying the fake creation
// code:
//
//	func TestMyFunction(t *testing.T) {
//	    fork := testutil.NewFantomFork(t)
//	    packages, build := testutil.WriteArtifacts(t, "yearn/yearn-vaults@0.4.3")
//	    // ...
//	}
package testutil
