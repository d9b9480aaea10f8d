package forkfixture_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tranvictor/forkfixture"
)

func constant(v any) forkfixture.Provider {
	return func(*forkfixture.Request) (any, error) {
		return v, nil
	}
}

func TestRegistry_Register(t *testing.T) {
	t.Run("duplicate name", func(t *testing.T) {
		r := forkfixture.NewRegistry()
		require.NoError(t, r.Register(forkfixture.Fixture{Name: "a", Provide: constant(1)}))
		err := r.Register(forkfixture.Fixture{Name: "a", Provide: constant(2)})
		assert.ErrorIs(t, err, forkfixture.ErrDuplicateFixture)
	})

	t.Run("invalid definitions", func(t *testing.T) {
		r := forkfixture.NewRegistry()
		for name, f := range map[string]forkfixture.Fixture{
			"empty name":      {Provide: constant(1)},
			"no provider":     {Name: "a"},
			"autouse session": {Name: "a", Scope: forkfixture.SessionScope, Autouse: true, Provide: constant(1)},
		} {
			assert.ErrorIs(t, r.Register(f), forkfixture.ErrInvalidFixture, name)
		}
		assert.Empty(t, r.Names())
	})

	t.Run("names and autouse", func(t *testing.T) {
		r := forkfixture.NewRegistry()
		require.NoError(t, r.Register(
			forkfixture.Fixture{Name: "zeta", Autouse: true, Provide: constant(1)},
			forkfixture.Fixture{Name: "alpha", Provide: constant(1)},
			forkfixture.Fixture{Name: "beta", Autouse: true, Provide: constant(1)},
		))
		assert.Equal(t, []string{"alpha", "beta", "zeta"}, r.Names())
		assert.Equal(t, []string{"zeta", "beta"}, r.Autouse())
	})
}

func TestRegistry_Override(t *testing.T) {
	r := forkfixture.NewRegistry()
	require.NoError(t, r.Register(forkfixture.Fixture{Name: "a", Provide: constant(1)}))

	err := r.Override(forkfixture.Fixture{Name: "b", Provide: constant(2)})
	assert.ErrorIs(t, err, forkfixture.ErrUnknownFixture)

	require.NoError(t, r.Override(forkfixture.Fixture{Name: "a", Scope: forkfixture.SessionScope, Provide: constant(2)}))
	f, ok := r.Lookup("a")
	require.True(t, ok)
	assert.Equal(t, forkfixture.SessionScope, f.Scope)
}

func TestRegistry_Validate(t *testing.T) {
	t.Run("unknown requirement", func(t *testing.T) {
		r := forkfixture.NewRegistry()
		require.NoError(t, r.Register(forkfixture.Fixture{Name: "a", Requires: []string{"missing"}, Provide: constant(1)}))
		assert.ErrorIs(t, r.Validate(), forkfixture.ErrUnknownFixture)
	})

	t.Run("session requiring function", func(t *testing.T) {
		r := forkfixture.NewRegistry()
		require.NoError(t, r.Register(
			forkfixture.Fixture{Name: "fn", Provide: constant(1)},
			forkfixture.Fixture{Name: "sess", Scope: forkfixture.SessionScope, Requires: []string{"fn"}, Provide: constant(1)},
		))
		assert.ErrorIs(t, r.Validate(), forkfixture.ErrScopeMismatch)
	})

	t.Run("function requiring session", func(t *testing.T) {
		r := forkfixture.NewRegistry()
		require.NoError(t, r.Register(
			forkfixture.Fixture{Name: "sess", Scope: forkfixture.SessionScope, Provide: constant(1)},
			forkfixture.Fixture{Name: "fn", Requires: []string{"sess"}, Provide: constant(1)},
		))
		assert.NoError(t, r.Validate())
	})

	t.Run("cycle", func(t *testing.T) {
		r := forkfixture.NewRegistry()
		require.NoError(t, r.Register(
			forkfixture.Fixture{Name: "a", Requires: []string{"b"}, Provide: constant(1)},
			forkfixture.Fixture{Name: "b", Requires: []string{"c"}, Provide: constant(1)},
			forkfixture.Fixture{Name: "c", Requires: []string{"a"}, Provide: constant(1)},
		))
		assert.ErrorIs(t, r.Validate(), forkfixture.ErrFixtureCycle)
		_, err := r.Order("a")
		assert.ErrorIs(t, err, forkfixture.ErrFixtureCycle)
	})

	t.Run("every problem is reported", func(t *testing.T) {
		r := forkfixture.NewRegistry()
		require.NoError(t, r.Register(
			forkfixture.Fixture{Name: "fn", Provide: constant(1)},
			forkfixture.Fixture{Name: "sess", Scope: forkfixture.SessionScope, Requires: []string{"fn", "missing"}, Provide: constant(1)},
		))
		err := r.Validate()
		assert.ErrorIs(t, err, forkfixture.ErrScopeMismatch)
		assert.ErrorIs(t, err, forkfixture.ErrUnknownFixture)
	})
}

func TestRegistry_Order(t *testing.T) {
	r := forkfixture.NewRegistry()
	require.NoError(t, r.Register(forkfixture.DefaultFixtures()...))
	require.NoError(t, r.Validate())

	order, err := r.Order(forkfixture.FixtureStrategy)
	require.NoError(t, err)

	pos := map[string]int{}
	for i, name := range order {
		pos[name] = i
	}
	before := [][2]string{
		{forkfixture.FixtureChain, forkfixture.FixtureAccounts},
		{forkfixture.FixtureAccounts, forkfixture.FixtureGov},
		{forkfixture.FixturePM, forkfixture.FixtureStrategyBuild},
		{forkfixture.FixtureToken, forkfixture.FixtureVault},
		{forkfixture.FixtureGov, forkfixture.FixtureVault},
		{forkfixture.FixtureVault, forkfixture.FixtureStrategy},
		{forkfixture.FixtureKeeper, forkfixture.FixtureStrategy},
		{forkfixture.FixtureMasterChef, forkfixture.FixtureStrategy},
	}
	for _, pair := range before {
		require.Contains(t, pos, pair[0])
		assert.Less(t, pos[pair[0]], pos[pair[1]], "%s before %s", pair[0], pair[1])
	}
	assert.Equal(t, forkfixture.FixtureStrategy, order[len(order)-1])
	assert.NotContains(t, pos, forkfixture.FixtureAmount)
	assert.NotContains(t, pos, forkfixture.FixtureUser)

	_, err = r.Order("nope")
	assert.ErrorIs(t, err, forkfixture.ErrUnknownFixture)
}

func TestDefaultFixtures(t *testing.T) {
	r := forkfixture.NewRegistry()
	require.NoError(t, r.Register(forkfixture.DefaultFixtures()...))

	assert.Equal(t, []string{forkfixture.FixtureIsolation}, r.Autouse())
	for _, name := range forkfixture.IdentityFixtures {
		f, ok := r.Lookup(name)
		require.True(t, ok, name)
		assert.Equal(t, forkfixture.FunctionScope, f.Scope, name)
	}
	for _, name := range []string{
		forkfixture.FixtureChain, forkfixture.FixtureAccounts, forkfixture.FixturePM,
		forkfixture.FixtureStrategyBuild, forkfixture.FixtureRelativeApprox,
	} {
		f, ok := r.Lookup(name)
		require.True(t, ok, name)
		assert.Equal(t, forkfixture.SessionScope, f.Scope, name)
	}
	assert.Len(t, r.Names(), 19)
}
