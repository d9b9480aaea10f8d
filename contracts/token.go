package contracts

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/tranvictor/forkfixture/chain"
)

// Token is an ERC20 handle
type Token struct {
	*Contract
}

// NewToken binds the ERC20 ABI to addr
func NewToken(c *chain.Client, addr common.Address) *Token {
	return &Token{NewContract(c, addr, ERC20ABI)}
}

func (t *Token) Decimals(ctx context.Context) (uint8, error) {
	values, err := t.Call(ctx, "decimals")
	if err != nil {
		return 0, err
	}
	d, ok := first(values).(uint8)
	if !ok {
		return 0, fmt.Errorf("%w: decimals returned %T", ErrUnexpectedOutput, first(values))
	}
	return d, nil
}

func (t *Token) Symbol(ctx context.Context) (string, error) {
	return t.callString(ctx, "symbol")
}

func (t *Token) TotalSupply(ctx context.Context) (*big.Int, error) {
	return t.callBig(ctx, "totalSupply")
}

func (t *Token) BalanceOf(ctx context.Context, owner common.Address) (*big.Int, error) {
	return t.callBig(ctx, "balanceOf", owner)
}

func (t *Token) Allowance(ctx context.Context, owner, spender common.Address) (*big.Int, error) {
	return t.callBig(ctx, "allowance", owner, spender)
}

func (t *Token) Transfer(ctx context.Context, from, to common.Address, amount *big.Int) (*types.Receipt, error) {
	return t.Transact(ctx, from, "transfer", to, amount)
}

func (t *Token) Approve(ctx context.Context, from, spender common.Address, amount *big.Int) (*types.Receipt, error) {
	return t.Transact(ctx, from, "approve", spender, amount)
}

// Units returns n whole tokens in base units: n * 10^decimals
func (t *Token) Units(ctx context.Context, n int64) (*big.Int, error) {
	decimals, err := t.Decimals(ctx)
	if err != nil {
		return nil, err
	}
	scale := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil)
	return scale.Mul(scale, big.NewInt(n)), nil
}
