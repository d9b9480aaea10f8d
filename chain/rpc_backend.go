package chain

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/KyberNetwork/logger"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"

	"github.com/tranvictor/forkfixture/internal/circuitbreaker"
)

// Flavor selects the cheat code namespace of the fork node
type Flavor string

const (
	FlavorAnvil   Flavor = "anvil"
	FlavorHardhat Flavor = "hardhat"
)

// ParseFlavor validates a flavor name
func ParseFlavor(s string) (Flavor, error) {
	switch Flavor(s) {
	case FlavorAnvil, FlavorHardhat:
		return Flavor(s), nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownFlavor, s)
	}
}

func (f Flavor) method(name string) string {
	return string(f) + "_" + name
}

// RPCBackend talks to an anvil or hardhat node over JSON-RPC
type RPCBackend struct {
	url     string
	flavor  Flavor
	rpc     *rpc.Client
	eth     *ethclient.Client
	breaker *circuitbreaker.Breaker
}

// RPCOption configures an RPCBackend
type RPCOption func(*rpcOptions)

type rpcOptions struct {
	flavor  Flavor
	breaker circuitbreaker.Config
}

// WithFlavor sets the node flavor, anvil by default
func WithFlavor(f Flavor) RPCOption {
	return func(o *rpcOptions) {
		o.flavor = f
	}
}

// WithBreakerConfig sets the circuit breaker guarding node calls
func WithBreakerConfig(cfg circuitbreaker.Config) RPCOption {
	return func(o *rpcOptions) {
		o.breaker = cfg
	}
}

// DialRPC connects to the fork node at url
func DialRPC(ctx context.Context, url string, opts ...RPCOption) (*RPCBackend, error) {
	o := rpcOptions{
		flavor:  FlavorAnvil,
		breaker: circuitbreaker.DefaultConfig(),
	}
	for _, opt := range opts {
		opt(&o)
	}
	if _, err := ParseFlavor(string(o.flavor)); err != nil {
		return nil, err
	}

	c, err := rpc.DialContext(ctx, url)
	if err != nil {
		return nil, errors.Join(ErrForkUnavailable, fmt.Errorf("couldn't dial %s: %w", url, err))
	}

	b := &RPCBackend{
		url:    url,
		flavor: o.flavor,
		rpc:    c,
		eth:    ethclient.NewClient(c),
	}
	breakerCfg := o.breaker
	breakerCfg.OnStateChange = func(from, to circuitbreaker.State) {
		logger.WithFields(logger.Fields{
			"rpc_url": url,
			"from":    from.String(),
			"to":      to.String(),
		}).Info("fork node circuit breaker changed state")
	}
	b.breaker = circuitbreaker.New(breakerCfg)
	return b, nil
}

// Close closes the underlying connection
func (b *RPCBackend) Close() {
	b.rpc.Close()
}

// Flavor returns the node flavor
func (b *RPCBackend) Flavor() Flavor {
	return b.flavor
}

// BreakerStats exposes the circuit breaker state
func (b *RPCBackend) BreakerStats() circuitbreaker.Stats {
	return b.breaker.Stats()
}

// isNodeFailure tells transport problems apart from answers: JSON-RPC errors
// (reverts, unknown methods), missing receipts and caller cancellations mean
// the node is alive.
func isNodeFailure(err error) bool {
	var rpcErr rpc.Error
	switch {
	case errors.As(err, &rpcErr):
		return false
	case errors.Is(err, ethereum.NotFound):
		return false
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return false
	}
	return true
}

func (b *RPCBackend) guard(fn func() error) error {
	err := b.breaker.Guard(fn, isNodeFailure)
	if errors.Is(err, circuitbreaker.ErrOpen) {
		return errors.Join(ErrForkUnavailable, fmt.Errorf("%s: %w", b.url, err))
	}
	return err
}

func (b *RPCBackend) ChainID(ctx context.Context) (id *big.Int, err error) {
	err = b.guard(func() error {
		id, err = b.eth.ChainID(ctx)
		return err
	})
	return id, err
}

func (b *RPCBackend) Accounts(ctx context.Context) (accounts []common.Address, err error) {
	err = b.guard(func() error {
		return b.rpc.CallContext(ctx, &accounts, "eth_accounts")
	})
	return accounts, err
}

func (b *RPCBackend) Impersonate(ctx context.Context, addr common.Address) error {
	return b.guard(func() error {
		return b.rpc.CallContext(ctx, nil, b.flavor.method("impersonateAccount"), addr)
	})
}

func (b *RPCBackend) StopImpersonating(ctx context.Context, addr common.Address) error {
	return b.guard(func() error {
		return b.rpc.CallContext(ctx, nil, b.flavor.method("stopImpersonatingAccount"), addr)
	})
}

func (b *RPCBackend) SetBalance(ctx context.Context, addr common.Address, wei *big.Int) error {
	return b.guard(func() error {
		return b.rpc.CallContext(ctx, nil, b.flavor.method("setBalance"), addr, (*hexutil.Big)(wei))
	})
}

func (b *RPCBackend) BalanceAt(ctx context.Context, addr common.Address) (balance *big.Int, err error) {
	err = b.guard(func() error {
		balance, err = b.eth.BalanceAt(ctx, addr, nil)
		return err
	})
	return balance, err
}

func (b *RPCBackend) CodeAt(ctx context.Context, addr common.Address) (code []byte, err error) {
	err = b.guard(func() error {
		code, err = b.eth.CodeAt(ctx, addr, nil)
		return err
	})
	return code, err
}

func (b *RPCBackend) Call(ctx context.Context, msg ethereum.CallMsg) (out []byte, err error) {
	err = b.guard(func() error {
		out, err = b.eth.CallContract(ctx, msg, nil)
		return err
	})
	return out, err
}

type sendTxArgs struct {
	From  common.Address  `json:"from"`
	To    *common.Address `json:"to,omitempty"`
	Value *hexutil.Big    `json:"value,omitempty"`
	Data  hexutil.Bytes   `json:"data,omitempty"`
	Gas   *hexutil.Uint64 `json:"gas,omitempty"`
}

func (b *RPCBackend) SendTransaction(ctx context.Context, args TxArgs) (hash common.Hash, err error) {
	req := sendTxArgs{
		From: args.From,
		To:   args.To,
		Data: args.Data,
	}
	if args.Value != nil {
		req.Value = (*hexutil.Big)(args.Value)
	}
	if args.Gas != 0 {
		gas := hexutil.Uint64(args.Gas)
		req.Gas = &gas
	}
	err = b.guard(func() error {
		return b.rpc.CallContext(ctx, &hash, "eth_sendTransaction", req)
	})
	return hash, err
}

func (b *RPCBackend) TransactionReceipt(ctx context.Context, hash common.Hash) (receipt *types.Receipt, err error) {
	err = b.guard(func() error {
		receipt, err = b.eth.TransactionReceipt(ctx, hash)
		return err
	})
	return receipt, err
}

func (b *RPCBackend) IncreaseTime(ctx context.Context, seconds uint64) error {
	err := b.guard(func() error {
		var shifted any
		return b.rpc.CallContext(ctx, &shifted, "evm_increaseTime", seconds)
	})
	if err != nil {
		return err
	}
	// the new timestamp only applies to the next block
	return b.Mine(ctx)
}

func (b *RPCBackend) Mine(ctx context.Context) error {
	return b.guard(func() error {
		var res any
		return b.rpc.CallContext(ctx, &res, "evm_mine")
	})
}

func (b *RPCBackend) Snapshot(ctx context.Context) (id string, err error) {
	err = b.guard(func() error {
		return b.rpc.CallContext(ctx, &id, "evm_snapshot")
	})
	return id, err
}

func (b *RPCBackend) Revert(ctx context.Context, id string) error {
	var ok bool
	err := b.guard(func() error {
		return b.rpc.CallContext(ctx, &ok, "evm_revert", id)
	})
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: %s", ErrRevertFailed, id)
	}
	return nil
}
