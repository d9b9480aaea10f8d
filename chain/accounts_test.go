package chain_test

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tranvictor/forkfixture/chain"
	"github.com/tranvictor/forkfixture/testutil"
)

func TestAccounts_Index(t *testing.T) {
	ctx := context.Background()
	c, fork := newClient(t)

	accounts, err := chain.LoadAccounts(ctx, c, nil)
	require.NoError(t, err)
	assert.Equal(t, len(fork.Pool()), accounts.Len())

	for i, addr := range fork.Pool() {
		account, err := accounts.Index(i)
		require.NoError(t, err)
		assert.Equal(t, addr, account.Address)
		assert.False(t, account.Forced)
	}

	_, err = accounts.Index(accounts.Len())
	assert.ErrorIs(t, err, chain.ErrAccountIndex)
	_, err = accounts.Index(-1)
	assert.ErrorIs(t, err, chain.ErrAccountIndex)
}

func TestAccounts_At(t *testing.T) {
	ctx := context.Background()
	minBalance := new(big.Int).Mul(big.NewInt(100), testutil.OneEth)

	t.Run("pool accounts need no impersonation", func(t *testing.T) {
		c, fork := newClient(t)
		accounts, err := chain.LoadAccounts(ctx, c, minBalance)
		require.NoError(t, err)

		account, err := accounts.At(ctx, fork.Pool()[3], false)
		require.NoError(t, err)
		assert.False(t, account.Forced)
		assert.Zero(t, fork.Calls("Impersonate"))
	})

	t.Run("unknown address without force", func(t *testing.T) {
		c, _ := newClient(t)
		accounts, err := chain.LoadAccounts(ctx, c, minBalance)
		require.NoError(t, err)

		_, err = accounts.At(ctx, testutil.GovAddr, false)
		assert.ErrorIs(t, err, chain.ErrUnknownAccount)
	})

	t.Run("force impersonates and tops up", func(t *testing.T) {
		c, fork := newClient(t)
		accounts, err := chain.LoadAccounts(ctx, c, minBalance)
		require.NoError(t, err)

		gov, err := accounts.At(ctx, testutil.GovAddr, true)
		require.NoError(t, err)
		assert.True(t, gov.Forced)
		assert.Equal(t, testutil.GovAddr.Hex(), gov.String())
		assert.True(t, fork.IsImpersonated(testutil.GovAddr))

		balance, err := c.BalanceAt(ctx, testutil.GovAddr)
		require.NoError(t, err)
		assert.Equal(t, minBalance, balance)

		// the impersonated account can pay for gas
		_, err = c.R().SetFrom(gov.Address).SetTo(fork.Pool()[0]).Execute(ctx)
		assert.NoError(t, err)
		assert.Equal(t, []common.Address{testutil.GovAddr}, accounts.Forced())
	})

	t.Run("rich accounts are not topped up", func(t *testing.T) {
		c, fork := newClient(t)
		rich := new(big.Int).Mul(minBalance, big.NewInt(3))
		require.NoError(t, fork.SetBalance(ctx, testutil.ReserveAddr, rich))
		accounts, err := chain.LoadAccounts(ctx, c, minBalance)
		require.NoError(t, err)

		_, err = accounts.At(ctx, testutil.ReserveAddr, true)
		require.NoError(t, err)
		assert.Equal(t, 1, fork.Calls("SetBalance"))

		balance, err := c.BalanceAt(ctx, testutil.ReserveAddr)
		require.NoError(t, err)
		assert.Equal(t, rich, balance)
	})

	t.Run("impersonated accounts without balance cannot send", func(t *testing.T) {
		c, fork := newClient(t)
		accounts, err := chain.LoadAccounts(ctx, c, nil)
		require.NoError(t, err)

		gov, err := accounts.At(ctx, testutil.GovAddr, true)
		require.NoError(t, err)
		_, err = c.R().SetFrom(gov.Address).SetTo(fork.Pool()[0]).Execute(ctx)
		assert.ErrorIs(t, err, chain.ErrSendFailed)
	})
}

func TestAccounts_Release(t *testing.T) {
	ctx := context.Background()
	c, fork := newClient(t)
	accounts, err := chain.LoadAccounts(ctx, c, nil)
	require.NoError(t, err)

	for _, addr := range []common.Address{testutil.GovAddr, testutil.ReserveAddr} {
		_, err := accounts.At(ctx, addr, true)
		require.NoError(t, err)
	}
	assert.Len(t, accounts.Forced(), 2)

	require.NoError(t, accounts.Release(ctx))
	assert.Empty(t, accounts.Forced())
	assert.False(t, fork.IsImpersonated(testutil.GovAddr))
	assert.False(t, fork.IsImpersonated(testutil.ReserveAddr))
	assert.Equal(t, 2, fork.Calls("StopImpersonating"))

	t.Run("keeps going after a failure", func(t *testing.T) {
		fork := testutil.NewFantomFork(t)
		backend := &stuckImpersonation{FakeChain: fork, stuck: testutil.GovAddr}
		c := chain.NewClient(backend)
		accounts, err := chain.LoadAccounts(ctx, c, nil)
		require.NoError(t, err)
		for _, addr := range []common.Address{testutil.GovAddr, testutil.ReserveAddr, testutil.BalancerVaultAddr} {
			_, err := accounts.At(ctx, addr, true)
			require.NoError(t, err)
		}

		err = accounts.Release(ctx)
		assert.ErrorContains(t, err, testutil.GovAddr.Hex())
		assert.Equal(t, []common.Address{testutil.GovAddr}, accounts.Forced())
		assert.False(t, fork.IsImpersonated(testutil.ReserveAddr))
		assert.False(t, fork.IsImpersonated(testutil.BalancerVaultAddr))
		assert.True(t, fork.IsImpersonated(testutil.GovAddr))
	})
}

// stuckImpersonation refuses to stop impersonating one address
type stuckImpersonation struct {
	*testutil.FakeChain
	stuck common.Address
}

func (b *stuckImpersonation) StopImpersonating(ctx context.Context, addr common.Address) error {
	if addr == b.stuck {
		return errors.New("method not supported")
	}
	return b.FakeChain.StopImpersonating(ctx, addr)
}
