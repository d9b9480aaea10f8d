package forkfixture

import "fmt"

// Registry errors
var (
	ErrDuplicateFixture     = fmt.Errorf("fixture already registered")
	ErrUnknownFixture       = fmt.Errorf("unknown fixture")
	ErrFixtureCycle         = fmt.Errorf("fixture dependency cycle")
	ErrScopeMismatch        = fmt.Errorf("session fixture cannot depend on a function fixture")
	ErrUndeclaredDependency = fmt.Errorf("fixture requested a dependency it did not declare")
	ErrInvalidFixture       = fmt.Errorf("invalid fixture definition")
)

// Setup errors
var (
	ErrFixtureFailed = fmt.Errorf("fixture setup failed")
	ErrFixtureType   = fmt.Errorf("fixture value has unexpected type")
	ErrHarnessClosed = fmt.Errorf("harness is closed")
)

// Configuration and consistency errors
var (
	ErrInvalidConfig     = fmt.Errorf("invalid configuration")
	ErrIdentityCollision = fmt.Errorf("account fixtures resolve to the same address")
	ErrInconsistentSetup = fmt.Errorf("fixture self-check failed")
)
