package chain

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/KyberNetwork/logger"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/tranvictor/jarvis/networks"
)

const (
	DefaultPollInterval   = 100 * time.Millisecond
	DefaultReceiptTimeout = 30 * time.Second
)

// ClientDefaults holds configuration inherited by every TxRequest
type ClientDefaults struct {
	PollInterval   time.Duration
	ReceiptTimeout time.Duration
	GasLimit       uint64
	TxMinedHook    TxMinedHook
}

// Client wraps a Backend with receipt waiting, deployment and the request
// builder used by contract handles and fixtures.
type Client struct {
	backend  Backend
	defaults ClientDefaults

	mu           sync.Mutex
	chainID      uint64
	chainIDKnown bool
}

// ClientOption configures a Client
type ClientOption func(*Client)

// WithPollInterval sets how often receipts are polled
func WithPollInterval(d time.Duration) ClientOption {
	return func(c *Client) {
		c.defaults.PollInterval = d
	}
}

// WithReceiptTimeout sets how long Execute waits for a receipt
func WithReceiptTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		c.defaults.ReceiptTimeout = d
	}
}

// WithGasLimit sets a fixed gas limit for every request; 0 lets the node estimate
func WithGasLimit(gas uint64) ClientOption {
	return func(c *Client) {
		c.defaults.GasLimit = gas
	}
}

// WithTxMinedHook sets a hook called for every mined tx
func WithTxMinedHook(hook TxMinedHook) ClientOption {
	return func(c *Client) {
		c.defaults.TxMinedHook = hook
	}
}

// NewClient creates a Client over backend
func NewClient(backend Backend, opts ...ClientOption) *Client {
	c := &Client{
		backend: backend,
		defaults: ClientDefaults{
			PollInterval:   DefaultPollInterval,
			ReceiptTimeout: DefaultReceiptTimeout,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Backend returns the underlying backend
func (c *Client) Backend() Backend {
	return c.backend
}

// Defaults returns the request defaults
func (c *Client) Defaults() ClientDefaults {
	return c.defaults
}

// ChainID returns the fork's chain id. Only a successful answer is cached,
// a failed lookup is retried on the next call.
func (c *Client) ChainID(ctx context.Context) (uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.chainIDKnown {
		return c.chainID, nil
	}
	id, err := c.backend.ChainID(ctx)
	if err != nil {
		return 0, fmt.Errorf("couldn't get chain id: %w", err)
	}
	c.chainID = id.Uint64()
	c.chainIDKnown = true
	return c.chainID, nil
}

// Network returns the name of the network the node forks, or "unknown"
// when jarvis has no network with that chain id (plain dev chains).
func (c *Client) Network(ctx context.Context) string {
	chainID, err := c.ChainID(ctx)
	if err != nil {
		return "unknown"
	}
	network, err := networks.GetNetworkByID(chainID)
	if err != nil {
		return "unknown"
	}
	return network.GetName()
}

// BalanceAt returns the native balance of addr
func (c *Client) BalanceAt(ctx context.Context, addr common.Address) (*big.Int, error) {
	return c.backend.BalanceAt(ctx, addr)
}

// Call runs an eth_call against the latest block
func (c *Client) Call(ctx context.Context, from, to common.Address, data []byte) ([]byte, error) {
	return c.backend.Call(ctx, ethereum.CallMsg{From: from, To: &to, Data: data})
}

// HasCode reports whether a contract is deployed at addr
func (c *Client) HasCode(ctx context.Context, addr common.Address) (bool, error) {
	code, err := c.backend.CodeAt(ctx, addr)
	if err != nil {
		return false, err
	}
	return len(code) > 0, nil
}

// Sleep moves chain time forward and mines a block
func (c *Client) Sleep(ctx context.Context, seconds uint64) error {
	if err := c.backend.IncreaseTime(ctx, seconds); err != nil {
		return fmt.Errorf("couldn't advance chain time by %ds: %w", seconds, err)
	}
	logger.WithFields(logger.Fields{
		"seconds": seconds,
	}).Debug("chain time advanced")
	return nil
}

// Snapshot captures the full chain state
func (c *Client) Snapshot(ctx context.Context) (string, error) {
	id, err := c.backend.Snapshot(ctx)
	if err != nil {
		return "", fmt.Errorf("couldn't take snapshot: %w", err)
	}
	return id, nil
}

// Revert restores the chain state captured by Snapshot
func (c *Client) Revert(ctx context.Context, id string) error {
	if err := c.backend.Revert(ctx, id); err != nil {
		return fmt.Errorf("couldn't revert to snapshot %s: %w", id, err)
	}
	return nil
}

// WaitMined polls the receipt of hash until it shows up or the receipt
// timeout elapses.
func (c *Client) WaitMined(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	return c.waitMined(ctx, hash, c.defaults.ReceiptTimeout)
}

func (c *Client) waitMined(ctx context.Context, hash common.Hash, wait time.Duration) (*types.Receipt, error) {
	timeout := time.NewTimer(wait)
	defer timeout.Stop()
	ticker := time.NewTicker(c.defaults.PollInterval)
	defer ticker.Stop()

	for {
		receipt, err := c.backend.TransactionReceipt(ctx, hash)
		if err == nil && receipt != nil {
			return receipt, nil
		}
		if err != nil && !errors.Is(err, ethereum.NotFound) {
			return nil, fmt.Errorf("couldn't get receipt of %s: %w", hash.Hex(), err)
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-timeout.C:
			return nil, fmt.Errorf("%w: %s after %s", ErrReceiptTimeout, hash.Hex(), wait)
		case <-ticker.C:
		}
	}
}

// Deploy sends a contract creation tx from `from` and returns the new address.
// data is the creation bytecode with ABI-encoded constructor arguments appended.
func (c *Client) Deploy(ctx context.Context, from common.Address, data []byte) (common.Address, *types.Receipt, error) {
	receipt, err := c.R().SetFrom(from).SetData(data).Execute(ctx)
	if err != nil {
		return common.Address{}, receipt, err
	}
	if receipt.ContractAddress == (common.Address{}) {
		return common.Address{}, receipt, fmt.Errorf("%w: tx %s", ErrNoContractAddress, receipt.TxHash.Hex())
	}
	logger.WithFields(logger.Fields{
		"from":     from.Hex(),
		"contract": receipt.ContractAddress.Hex(),
		"tx_hash":  receipt.TxHash.Hex(),
		"gas_used": receipt.GasUsed,
	}).Info("Deployed contract")
	return receipt.ContractAddress, receipt, nil
}
