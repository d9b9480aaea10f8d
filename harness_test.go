package forkfixture_test

import (
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tranvictor/forkfixture"
	"github.com/tranvictor/forkfixture/chain"
	"github.com/tranvictor/forkfixture/contracts"
	"github.com/tranvictor/forkfixture/testutil"
)

func testConfig(t *testing.T) forkfixture.Config {
	t.Helper()
	packagesDir, buildDir := testutil.WriteArtifacts(t, forkfixture.DefaultDependency)
	cfg := forkfixture.DefaultConfig()
	cfg.Paths.Packages = packagesDir
	cfg.Paths.Build = buildDir
	cfg.Fork.PollInterval = time.Millisecond
	cfg.Fork.ReceiptTimeout = time.Second
	return cfg
}

func newHarness(t *testing.T, opts ...forkfixture.Option) (*forkfixture.Harness, *testutil.FakeChain) {
	t.Helper()
	fork := testutil.NewFantomFork(t)
	h, err := forkfixture.New(testConfig(t), fork, opts...)
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, h.Close(context.Background()))
	})
	return h, fork
}

func TestHarness_Setup(t *testing.T) {
	h, fork := newHarness(t)
	fx := h.Setup(t)
	ctx := fx.Context()

	assert.NotEmpty(t, fx.SnapshotID())
	assert.Equal(t, 1, fork.Snapshots())
	assert.Same(t, h.Client(), fx.Chain())
	assert.Same(t, h.Resolver(), fx.PM())
	assert.Equal(t, "Strategy", fx.StrategyBuild().Name)

	gov := fx.Gov()
	assert.True(t, gov.Forced)
	assert.Equal(t, testutil.GovAddr, gov.Address)
	pool := fork.Pool()
	assert.Equal(t, pool[0], fx.User().Address)
	assert.Equal(t, pool[1], fx.Rewards().Address)
	assert.Equal(t, pool[2], fx.Guardian().Address)
	assert.Equal(t, pool[3], fx.Management().Address)
	assert.Equal(t, pool[4], fx.Strategist().Address)
	assert.Equal(t, pool[5], fx.Keeper().Address)

	t.Run("amount", func(t *testing.T) {
		amount := fx.Amount()
		want := new(big.Int).Mul(big.NewInt(1_000_000), testutil.OneEth)
		assert.Equal(t, want, amount)
		assert.Equal(t, want, fork.TokenBalance(testutil.TokenAddr, fx.User().Address))
		assert.Equal(t, new(big.Int).Sub(testutil.ReserveSupply, want), fork.TokenBalance(testutil.TokenAddr, testutil.ReserveAddr))
	})

	t.Run("vault", func(t *testing.T) {
		vault := fx.Vault()
		governance, err := vault.Governance(ctx)
		require.NoError(t, err)
		assert.Equal(t, testutil.GovAddr, governance)
		token, err := vault.Token(ctx)
		require.NoError(t, err)
		assert.Equal(t, testutil.TokenAddr, token)
		guardian, err := vault.Guardian(ctx)
		require.NoError(t, err)
		assert.Equal(t, fx.Guardian().Address, guardian)
		rewards, err := vault.Rewards(ctx)
		require.NoError(t, err)
		assert.Equal(t, fx.Rewards().Address, rewards)
		management, err := vault.Management(ctx)
		require.NoError(t, err)
		assert.Equal(t, fx.Management().Address, management)
		limit, err := vault.DepositLimit(ctx)
		require.NoError(t, err)
		assert.Equal(t, math.MaxBig256, limit)
	})

	t.Run("strategy", func(t *testing.T) {
		vault, strategy := fx.Vault(), fx.Strategy()

		owner, err := strategy.Vault(ctx)
		require.NoError(t, err)
		assert.Equal(t, vault.Address, owner)
		keeper, err := strategy.Keeper(ctx)
		require.NoError(t, err)
		assert.Equal(t, fx.Keeper().Address, keeper)
		strategist, err := strategy.Strategist(ctx)
		require.NoError(t, err)
		assert.Equal(t, fx.Strategist().Address, strategist)

		params, err := vault.Strategies(ctx, strategy.Address)
		require.NoError(t, err)
		assert.True(t, params.Active())
		assert.Equal(t, big.NewInt(10_000), params.DebtRatio)
		assert.Equal(t, big.NewInt(1_000), params.PerformanceFee)
		assert.Zero(t, params.MinDebtPerHarvest.Sign())
		assert.Equal(t, math.MaxBig256, params.MaxDebtPerHarvest)
		// chain time moved past the activation
		assert.Greater(t, fork.Time(), params.Activation.Uint64())
	})

	t.Run("pinned contracts", func(t *testing.T) {
		lp, err := fx.MasterChef().LpToken(ctx, big.NewInt(testutil.FarmID))
		require.NoError(t, err)
		assert.Equal(t, fx.Token().Address, lp)
		weth, err := fx.BalancerVault().WETH(ctx)
		require.NoError(t, err)
		assert.Equal(t, testutil.WFTMAddr, weth)
		assert.Equal(t, 1e-5, fx.RelativeApprox())
	})
}

func TestHarness_VaultSenders(t *testing.T) {
	h, fork := newHarness(t)
	fx := h.Setup(t)
	vault := fx.Vault()

	senders := map[string]common.Address{}
	for _, tx := range fork.Sent() {
		if tx.To == nil || *tx.To != vault.Address || len(tx.Data) < 4 {
			continue
		}
		method, err := contracts.VaultABI.MethodById(tx.Data[:4])
		require.NoError(t, err)
		senders[method.Name] = tx.From
	}
	assert.Equal(t, map[string]common.Address{
		"initialize":      fx.Guardian().Address,
		"setDepositLimit": fx.Gov().Address,
		"setManagement":   fx.Gov().Address,
	}, senders)
}

func TestHarness_FixturesAreCachedPerTest(t *testing.T) {
	h, _ := newHarness(t)
	fx := h.Setup(t)

	assert.Same(t, fx.Vault(), fx.Vault())
	assert.Same(t, fx.Strategy().Contract, fx.Strategy().Contract)
	assert.Equal(t, fx.Amount(), fx.Amount())
}

func TestHarness_IsolatesTests(t *testing.T) {
	h, fork := newHarness(t)
	var firstVault common.Address

	t.Run("first", func(t *testing.T) {
		fx := h.Setup(t)
		ctx := fx.Context()
		vault, user, amount := fx.Vault(), fx.User(), fx.Amount()
		firstVault = vault.Address

		_, err := fx.Token().Approve(ctx, user.Address, vault.Address, amount)
		require.NoError(t, err)
		_, err = vault.Deposit(ctx, user.Address, amount)
		require.NoError(t, err)
		assert.Zero(t, fork.TokenBalance(testutil.TokenAddr, user.Address).Sign())
	})
	assert.Zero(t, fork.Snapshots())
	assert.Zero(t, fork.TokenBalance(testutil.TokenAddr, fork.Pool()[0]).Sign())
	assert.Equal(t, testutil.ReserveSupply, fork.TokenBalance(testutil.TokenAddr, testutil.ReserveAddr))

	t.Run("second", func(t *testing.T) {
		fx := h.Setup(t)
		ctx := fx.Context()
		vault, user, amount := fx.Vault(), fx.User(), fx.Amount()

		// deployment nonces were reverted too
		assert.Equal(t, firstVault, vault.Address)
		assert.Equal(t, amount, fork.TokenBalance(testutil.TokenAddr, user.Address))
		assets, err := vault.TotalAssets(ctx)
		require.NoError(t, err)
		assert.Zero(t, assets.Sign())
	})
}

func TestHarness_ModuleIsolation(t *testing.T) {
	h, fork := newHarness(t)
	outsider := common.HexToAddress("0xbeef")

	t.Run("module", func(t *testing.T) {
		h.ModuleIsolation(t)
		require.NoError(t, fork.Mint(testutil.TokenAddr, outsider, testutil.OneEth))

		for _, name := range []string{"a", "b"} {
			t.Run(name, func(t *testing.T) {
				h.Setup(t)
				assert.Equal(t, 2, fork.Snapshots())
				assert.Equal(t, testutil.OneEth, fork.TokenBalance(testutil.TokenAddr, outsider))
				require.NoError(t, fork.Mint(testutil.TokenAddr, outsider, testutil.OneEth))
			})
		}
		assert.Equal(t, 1, fork.Snapshots())
		assert.Equal(t, testutil.OneEth, fork.TokenBalance(testutil.TokenAddr, outsider))
	})
	assert.Zero(t, fork.Snapshots())
	assert.Zero(t, fork.TokenBalance(testutil.TokenAddr, outsider).Sign())
}

func TestHarness_Scopes(t *testing.T) {
	sessionCalls, functionCalls := 0, 0
	h, _ := newHarness(t, forkfixture.WithFixtures(
		forkfixture.Fixture{
			Name:     "network",
			Scope:    forkfixture.SessionScope,
			Requires: []string{forkfixture.FixtureChain},
			Provide: func(r *forkfixture.Request) (any, error) {
				sessionCalls++
				c, err := forkfixture.Dep[*chain.Client](r, forkfixture.FixtureChain)
				if err != nil {
					return nil, err
				}
				return c.Network(r.Context()), nil
			},
		},
		forkfixture.Fixture{
			Name:     "symbol",
			Requires: []string{forkfixture.FixtureToken},
			Provide: func(r *forkfixture.Request) (any, error) {
				functionCalls++
				token, err := forkfixture.Dep[*contracts.Token](r, forkfixture.FixtureToken)
				if err != nil {
					return nil, err
				}
				return token.Symbol(r.Context())
			},
		},
	))

	for _, name := range []string{"a", "b", "c"} {
		t.Run(name, func(t *testing.T) {
			fx := h.Setup(t)
			assert.NotEmpty(t, forkfixture.Value[string](fx, "network"))
			assert.Equal(t, "fBEETS", forkfixture.Value[string](fx, "symbol"))
			assert.Equal(t, "fBEETS", forkfixture.Value[string](fx, "symbol"))
		})
	}
	assert.Equal(t, 1, sessionCalls)
	assert.Equal(t, 3, functionCalls)
}

func TestHarness_SessionStateOutlivesTests(t *testing.T) {
	whale := common.HexToAddress("0xbeef")
	calls := 0
	h, fork := newHarness(t, forkfixture.WithFixtures(forkfixture.Fixture{
		Name:     "whale",
		Scope:    forkfixture.SessionScope,
		Requires: []string{forkfixture.FixtureChain, forkfixture.FixtureAccounts},
		Provide: func(r *forkfixture.Request) (any, error) {
			calls++
			c, err := forkfixture.Dep[*chain.Client](r, forkfixture.FixtureChain)
			if err != nil {
				return nil, err
			}
			accounts, err := forkfixture.Dep[*chain.Accounts](r, forkfixture.FixtureAccounts)
			if err != nil {
				return nil, err
			}
			reserve, err := accounts.At(r.Context(), r.Config().Addresses.Reserve, true)
			if err != nil {
				return nil, err
			}
			token := contracts.NewToken(c, r.Config().Addresses.Token)
			if _, err := token.Transfer(r.Context(), reserve.Address, whale, testutil.OneEth); err != nil {
				return nil, err
			}
			return whale, nil
		},
	}))

	for _, name := range []string{"a", "b", "c"} {
		t.Run(name, func(t *testing.T) {
			fx := h.Setup(t)
			assert.Equal(t, whale, forkfixture.Value[common.Address](fx, "whale"))
			assert.Equal(t, testutil.OneEth, fork.TokenBalance(testutil.TokenAddr, whale))

			// function fixtures are still reverted
			fx.Amount()
		})
		assert.Zero(t, fork.TokenBalance(testutil.TokenAddr, fork.Pool()[0]).Sign())
	}
	assert.Equal(t, 1, calls)

	t.Run("module", func(t *testing.T) {
		h.ModuleIsolation(t)
		fx := h.Setup(t)
		assert.Equal(t, whale, forkfixture.Value[common.Address](fx, "whale"))
	})
	assert.Equal(t, testutil.OneEth, fork.TokenBalance(testutil.TokenAddr, whale))
	assert.Zero(t, fork.Snapshots())
}

func TestHarness_SessionFailureIsCached(t *testing.T) {
	boom := errors.New("node down")
	calls := 0
	h, _ := newHarness(t, forkfixture.WithFixtures(forkfixture.Fixture{
		Name:  "flaky",
		Scope: forkfixture.SessionScope,
		Provide: func(*forkfixture.Request) (any, error) {
			calls++
			return nil, boom
		},
	}))

	for _, name := range []string{"a", "b"} {
		t.Run(name, func(t *testing.T) {
			fx := h.Setup(t)
			_, err := fx.Get("flaky")
			assert.ErrorIs(t, err, forkfixture.ErrFixtureFailed)
			assert.ErrorIs(t, err, boom)
		})
	}
	assert.Equal(t, 1, calls)
}

func TestHarness_FunctionFailureIsRetriedPerTest(t *testing.T) {
	calls := 0
	h, _ := newHarness(t, forkfixture.WithFixtures(forkfixture.Fixture{
		Name: "flaky",
		Provide: func(*forkfixture.Request) (any, error) {
			calls++
			return nil, errors.New("not yet")
		},
	}))

	for _, name := range []string{"a", "b"} {
		t.Run(name, func(t *testing.T) {
			fx := h.Setup(t)
			for i := 0; i < 2; i++ {
				_, err := fx.Get("flaky")
				assert.ErrorIs(t, err, forkfixture.ErrFixtureFailed)
			}
		})
	}
	assert.Equal(t, 2, calls)
}

func TestHarness_UndeclaredDependency(t *testing.T) {
	h, _ := newHarness(t, forkfixture.WithFixtures(forkfixture.Fixture{
		Name: "sneaky",
		Provide: func(r *forkfixture.Request) (any, error) {
			return r.Get(forkfixture.FixtureToken)
		},
	}))
	fx := h.Setup(t)

	_, err := fx.Get("sneaky")
	assert.ErrorIs(t, err, forkfixture.ErrUndeclaredDependency)
	assert.ErrorIs(t, err, forkfixture.ErrFixtureFailed)

	_, err = fx.Get("nope")
	assert.ErrorIs(t, err, forkfixture.ErrUnknownFixture)
}

func TestHarness_DependencyTypeMismatch(t *testing.T) {
	h, _ := newHarness(t, forkfixture.WithFixtures(forkfixture.Fixture{
		Name:     "confused",
		Requires: []string{forkfixture.FixtureToken},
		Provide: func(r *forkfixture.Request) (any, error) {
			return forkfixture.Dep[*contracts.Vault](r, forkfixture.FixtureToken)
		},
	}))
	fx := h.Setup(t)

	_, err := fx.Get("confused")
	assert.ErrorIs(t, err, forkfixture.ErrFixtureType)
}

func TestHarness_Teardowns(t *testing.T) {
	var order []string
	record := func(name string) forkfixture.Teardown {
		return func(context.Context) error {
			order = append(order, name)
			return nil
		}
	}
	h, err := forkfixture.New(testConfig(t), testutil.NewFantomFork(t), forkfixture.WithFixtures(
		forkfixture.Fixture{
			Name:  "session-a",
			Scope: forkfixture.SessionScope,
			Provide: func(r *forkfixture.Request) (any, error) {
				r.AddTeardown(record(r.Name()))
				return nil, nil
			},
		},
		forkfixture.Fixture{
			Name:     "session-b",
			Scope:    forkfixture.SessionScope,
			Requires: []string{"session-a"},
			Provide: func(r *forkfixture.Request) (any, error) {
				if _, err := r.Get("session-a"); err != nil {
					return nil, err
				}
				r.AddTeardown(record(r.Name()))
				return nil, nil
			},
		},
		forkfixture.Fixture{
			Name: "inner",
			Provide: func(r *forkfixture.Request) (any, error) {
				r.AddTeardown(record(r.Name()))
				return nil, nil
			},
		},
		forkfixture.Fixture{
			Name:     "outer",
			Requires: []string{"inner", "session-b"},
			Provide: func(r *forkfixture.Request) (any, error) {
				for _, dep := range []string{"inner", "session-b"} {
					if _, err := r.Get(dep); err != nil {
						return nil, err
					}
				}
				r.AddTeardown(record(r.Name()))
				return nil, nil
			},
		},
	))
	require.NoError(t, err)

	t.Run("test", func(t *testing.T) {
		fx := h.Setup(t)
		_, err := fx.Get("outer")
		require.NoError(t, err)
		assert.Empty(t, order)
	})
	assert.Equal(t, []string{"outer", "inner"}, order)

	require.NoError(t, h.Close(context.Background()))
	assert.Equal(t, []string{"outer", "inner", "session-b", "session-a"}, order)

	// closing twice is a no-op
	require.NoError(t, h.Close(context.Background()))
	assert.Len(t, order, 4)
}

func TestHarness_OverrideFixture(t *testing.T) {
	h, _ := newHarness(t, forkfixture.WithFixtures(forkfixture.Fixture{
		Name:    forkfixture.FixtureRelativeApprox,
		Scope:   forkfixture.SessionScope,
		Provide: constant(0.01),
	}))
	fx := h.Setup(t)
	assert.Equal(t, 0.01, fx.RelativeApprox())
}

func TestHarness_CustomRegistry(t *testing.T) {
	r := forkfixture.NewRegistry()
	require.NoError(t, r.Register(forkfixture.Fixture{Name: "answer", Provide: constant(42)}))
	h, fork := newHarness(t, forkfixture.WithRegistry(r))

	fx := h.Setup(t)
	assert.Equal(t, 42, forkfixture.Value[int](fx, "answer"))
	assert.Zero(t, fork.Snapshots(), "no isolation fixture registered")
}

func TestNew_Errors(t *testing.T) {
	t.Run("invalid config", func(t *testing.T) {
		cfg := testConfig(t)
		cfg.Accounts.Keeper = cfg.Accounts.User
		_, err := forkfixture.New(cfg, testutil.NewFantomFork(t))
		assert.ErrorIs(t, err, forkfixture.ErrInvalidConfig)
		assert.ErrorIs(t, err, forkfixture.ErrIdentityCollision)
	})

	t.Run("session fixture requiring a function fixture", func(t *testing.T) {
		_, err := forkfixture.New(testConfig(t), testutil.NewFantomFork(t), forkfixture.WithFixtures(forkfixture.Fixture{
			Name:     "bad",
			Scope:    forkfixture.SessionScope,
			Requires: []string{forkfixture.FixtureUser},
			Provide:  constant(nil),
		}))
		assert.ErrorIs(t, err, forkfixture.ErrScopeMismatch)
	})

	t.Run("invalid fixture", func(t *testing.T) {
		_, err := forkfixture.New(testConfig(t), testutil.NewFantomFork(t), forkfixture.WithFixtures(forkfixture.Fixture{
			Name: "no-provider",
		}))
		assert.ErrorIs(t, err, forkfixture.ErrInvalidFixture)
	})
}

func TestHarness_MissingArtifacts(t *testing.T) {
	cfg := testConfig(t)
	cfg.Dependencies = []string{"yearn/yearn-vaults@0.4.5"}
	h, err := forkfixture.New(cfg, testutil.NewFantomFork(t))
	require.NoError(t, err)
	t.Cleanup(func() { _ = h.Close(context.Background()) })

	fx := h.Setup(t)
	_, err = fx.Get(forkfixture.FixtureVault)
	assert.ErrorIs(t, err, forkfixture.ErrFixtureFailed)
	assert.ErrorContains(t, err, "0.4.5")
}

func TestHarness_WrongFork(t *testing.T) {
	cfg := testConfig(t)
	cfg.Addresses.Token = common.HexToAddress("0x1234")
	h, err := forkfixture.New(cfg, testutil.NewFantomFork(t))
	require.NoError(t, err)
	t.Cleanup(func() { _ = h.Close(context.Background()) })

	fx := h.Setup(t)
	_, err = fx.Get(forkfixture.FixtureToken)
	assert.ErrorIs(t, err, contracts.ErrNoCode)
}
