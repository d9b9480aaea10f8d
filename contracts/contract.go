// Package contracts provides typed handles on the contracts the fixtures
// deploy or wrap: the want token, the vault, the strategy and the external
// farm and AMM vault.
package contracts

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/tranvictor/forkfixture/chain"
)

// Contract is an ABI bound to an address on the fork
type Contract struct {
	Address common.Address
	ABI     abi.ABI

	c *chain.Client
}

// NewContract binds parsed to addr
func NewContract(c *chain.Client, addr common.Address, parsed abi.ABI) *Contract {
	return &Contract{Address: addr, ABI: parsed, c: c}
}

// EnsureCode fails with ErrNoCode when nothing is deployed at the address,
// which on a fork usually means the node forks the wrong network or block.
func (k *Contract) EnsureCode(ctx context.Context) error {
	ok, err := k.c.HasCode(ctx, k.Address)
	if err != nil {
		return fmt.Errorf("couldn't read code at %s: %w", k.Address.Hex(), err)
	}
	if !ok {
		return fmt.Errorf("%w: %s", ErrNoCode, k.Address.Hex())
	}
	return nil
}

// Call runs a read-only method and returns its unpacked outputs
func (k *Contract) Call(ctx context.Context, method string, args ...any) ([]any, error) {
	data, err := k.ABI.Pack(method, args...)
	if err != nil {
		return nil, errors.Join(ErrPackFailed, fmt.Errorf("%s: %w", method, err))
	}
	out, err := k.c.Call(ctx, common.Address{}, k.Address, data)
	if err != nil {
		return nil, errors.Join(ErrCallFailed, fmt.Errorf("%s.%s: %w", k.Address.Hex(), method, err))
	}
	values, err := k.ABI.Unpack(method, out)
	if err != nil {
		return nil, errors.Join(ErrUnexpectedOutput, fmt.Errorf("%s.%s: %w", k.Address.Hex(), method, err))
	}
	return values, nil
}

// Request builds a tx request for method without sending it
func (k *Contract) Request(from common.Address, method string, args ...any) (*chain.TxRequest, error) {
	data, err := k.ABI.Pack(method, args...)
	if err != nil {
		return nil, errors.Join(ErrPackFailed, fmt.Errorf("%s: %w", method, err))
	}
	return k.c.R().SetFrom(from).SetTo(k.Address).SetData(data), nil
}

// Transact sends method from `from` and waits for the receipt
func (k *Contract) Transact(ctx context.Context, from common.Address, method string, args ...any) (*types.Receipt, error) {
	req, err := k.Request(from, method, args...)
	if err != nil {
		return nil, err
	}
	receipt, err := req.Execute(ctx)
	if err != nil {
		return receipt, fmt.Errorf("%s.%s: %w", k.Address.Hex(), method, err)
	}
	return receipt, nil
}

func (k *Contract) callAddress(ctx context.Context, method string, args ...any) (common.Address, error) {
	values, err := k.Call(ctx, method, args...)
	if err != nil {
		return common.Address{}, err
	}
	addr, ok := first(values).(common.Address)
	if !ok {
		return common.Address{}, fmt.Errorf("%w: %s returned %T", ErrUnexpectedOutput, method, first(values))
	}
	return addr, nil
}

func (k *Contract) callBig(ctx context.Context, method string, args ...any) (*big.Int, error) {
	values, err := k.Call(ctx, method, args...)
	if err != nil {
		return nil, err
	}
	n, ok := first(values).(*big.Int)
	if !ok {
		return nil, fmt.Errorf("%w: %s returned %T", ErrUnexpectedOutput, method, first(values))
	}
	return n, nil
}

func (k *Contract) callString(ctx context.Context, method string, args ...any) (string, error) {
	values, err := k.Call(ctx, method, args...)
	if err != nil {
		return "", err
	}
	s, ok := first(values).(string)
	if !ok {
		return "", fmt.Errorf("%w: %s returned %T", ErrUnexpectedOutput, method, first(values))
	}
	return s, nil
}

func first(values []any) any {
	if len(values) == 0 {
		return nil
	}
	return values[0]
}
