package contracts

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/tranvictor/forkfixture/chain"
)

// Strategy is a handle on the Beethoven-X farming strategy
type Strategy struct {
	*Contract
}

// NewStrategy binds the strategy ABI to addr
func NewStrategy(c *chain.Client, addr common.Address) *Strategy {
	return &Strategy{NewContract(c, addr, StrategyABI)}
}

func (s *Strategy) SetKeeper(ctx context.Context, from, keeper common.Address) (*types.Receipt, error) {
	return s.Transact(ctx, from, "setKeeper", keeper)
}

func (s *Strategy) Harvest(ctx context.Context, from common.Address) (*types.Receipt, error) {
	return s.Transact(ctx, from, "harvest")
}

func (s *Strategy) Name(ctx context.Context) (string, error) {
	return s.callString(ctx, "name")
}

func (s *Strategy) Vault(ctx context.Context) (common.Address, error) {
	return s.callAddress(ctx, "vault")
}

func (s *Strategy) Want(ctx context.Context) (common.Address, error) {
	return s.callAddress(ctx, "want")
}

func (s *Strategy) Strategist(ctx context.Context) (common.Address, error) {
	return s.callAddress(ctx, "strategist")
}

func (s *Strategy) Keeper(ctx context.Context) (common.Address, error) {
	return s.callAddress(ctx, "keeper")
}

func (s *Strategy) EstimatedTotalAssets(ctx context.Context) (*big.Int, error) {
	return s.callBig(ctx, "estimatedTotalAssets")
}
