package contracts

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/tranvictor/forkfixture/chain"
)

// MasterChef is a handle on the external farm the strategy stakes into
type MasterChef struct {
	*Contract
}

func NewMasterChef(c *chain.Client, addr common.Address) *MasterChef {
	return &MasterChef{NewContract(c, addr, MasterChefABI)}
}

func (m *MasterChef) PoolLength(ctx context.Context) (*big.Int, error) {
	return m.callBig(ctx, "poolLength")
}

// LpToken returns the staking token of farm pid
func (m *MasterChef) LpToken(ctx context.Context, pid *big.Int) (common.Address, error) {
	return m.callAddress(ctx, "lpTokens", pid)
}

// BalancerVault is a handle on the external AMM vault
type BalancerVault struct {
	*Contract
}

func NewBalancerVault(c *chain.Client, addr common.Address) *BalancerVault {
	return &BalancerVault{NewContract(c, addr, BalancerVaultABI)}
}

func (b *BalancerVault) WETH(ctx context.Context) (common.Address, error) {
	return b.callAddress(ctx, "WETH")
}
