package chain

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// TxArgs are the arguments of an eth_sendTransaction call. The node signs
// with From, which must be one of its unlocked or impersonated accounts.
type TxArgs struct {
	From  common.Address
	To    *common.Address // nil for contract creation
	Value *big.Int
	Data  []byte
	Gas   uint64 // 0 lets the node estimate
}

// Backend is a forked chain the fixtures run against. Besides the usual
// JSON-RPC reads it exposes the cheat codes of development nodes:
// impersonation, balance overrides, time travel and snapshot/revert.
//
// TransactionReceipt returns ethereum.NotFound while a tx is pending.
type Backend interface {
	ChainID(ctx context.Context) (*big.Int, error)
	Accounts(ctx context.Context) ([]common.Address, error)

	Impersonate(ctx context.Context, addr common.Address) error
	StopImpersonating(ctx context.Context, addr common.Address) error
	SetBalance(ctx context.Context, addr common.Address, wei *big.Int) error

	BalanceAt(ctx context.Context, addr common.Address) (*big.Int, error)
	CodeAt(ctx context.Context, addr common.Address) ([]byte, error)
	Call(ctx context.Context, msg ethereum.CallMsg) ([]byte, error)

	SendTransaction(ctx context.Context, args TxArgs) (common.Hash, error)
	TransactionReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error)

	IncreaseTime(ctx context.Context, seconds uint64) error
	Mine(ctx context.Context) error

	Snapshot(ctx context.Context) (string, error)
	Revert(ctx context.Context, id string) error
}
