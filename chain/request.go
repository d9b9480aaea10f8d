package chain

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/KyberNetwork/logger"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// TxRequest represents a transaction request with builder pattern
type TxRequest struct {
	c *Client

	from  common.Address
	to    *common.Address
	value *big.Int
	data  []byte
	gas   uint64

	receiptTimeout time.Duration

	beforeSendHook Hook
	txMinedHook    TxMinedHook
}

// R creates a new transaction request inheriting the client defaults.
// Leaving To unset makes it a contract creation.
func (c *Client) R() *TxRequest {
	return &TxRequest{
		c:              c,
		value:          big.NewInt(0),
		gas:            c.defaults.GasLimit,
		receiptTimeout: c.defaults.ReceiptTimeout,
		txMinedHook:    c.defaults.TxMinedHook,
	}
}

// SetFrom sets the sender, an unlocked or impersonated account
func (r *TxRequest) SetFrom(from common.Address) *TxRequest {
	r.from = from
	return r
}

// SetTo sets the recipient
func (r *TxRequest) SetTo(to common.Address) *TxRequest {
	r.to = &to
	return r
}

// SetValue sets the native value sent along
func (r *TxRequest) SetValue(value *big.Int) *TxRequest {
	if value != nil {
		r.value = value
	}
	return r
}

// SetData sets the calldata (or creation code)
func (r *TxRequest) SetData(data []byte) *TxRequest {
	r.data = data
	return r
}

// SetGasLimit sets the gas limit, 0 lets the node estimate
func (r *TxRequest) SetGasLimit(gas uint64) *TxRequest {
	r.gas = gas
	return r
}

// SetReceiptTimeout overrides the client receipt timeout for this request
func (r *TxRequest) SetReceiptTimeout(d time.Duration) *TxRequest {
	r.receiptTimeout = d
	return r
}

// SetBeforeSendHook sets the hook called right before sending
func (r *TxRequest) SetBeforeSendHook(hook Hook) *TxRequest {
	r.beforeSendHook = hook
	return r
}

// SetTxMinedHook sets the hook called with the receipt
func (r *TxRequest) SetTxMinedHook(hook TxMinedHook) *TxRequest {
	r.txMinedHook = hook
	return r
}

// Args returns the tx arguments the request would send
func (r *TxRequest) Args() TxArgs {
	return TxArgs{
		From:  r.from,
		To:    r.to,
		Value: r.value,
		Data:  r.data,
		Gas:   r.gas,
	}
}

// Execute sends the tx and waits for its receipt.
//
// Possible errors:
//  1. ErrFromAddressZero
//  2. ErrHookRejected
//  3. ErrSendFailed
//  4. ErrReceiptTimeout
//  5. ErrTxReverted, returned together with the receipt
func (r *TxRequest) Execute(ctx context.Context) (*types.Receipt, error) {
	if r.from == (common.Address{}) {
		return nil, ErrFromAddressZero
	}
	args := r.Args()

	if r.beforeSendHook != nil {
		if err := r.beforeSendHook(args); err != nil {
			return nil, errors.Join(ErrHookRejected, err)
		}
	}

	hash, err := r.c.backend.SendTransaction(ctx, args)
	if err != nil {
		logger.WithFields(logger.Fields{
			"from":  args.From.Hex(),
			"to":    toString(args.To),
			"error": err,
		}).Debug("Sending transaction failed")
		return nil, errors.Join(ErrSendFailed, fmt.Errorf("from %s to %s: %w", args.From.Hex(), toString(args.To), err))
	}

	receipt, err := r.c.waitMined(ctx, hash, r.receiptTimeout)
	if err != nil {
		return nil, err
	}

	logger.WithFields(logger.Fields{
		"tx_hash":  hash.Hex(),
		"from":     args.From.Hex(),
		"to":       toString(args.To),
		"status":   receipt.Status,
		"gas_used": receipt.GasUsed,
		"block":    receipt.BlockNumber,
	}).Debug("Transaction mined")

	if r.txMinedHook != nil {
		if hookErr := r.txMinedHook(hash, receipt); hookErr != nil {
			return receipt, fmt.Errorf("tx mined hook error: %w", hookErr)
		}
	}

	if receipt.Status != types.ReceiptStatusSuccessful {
		return receipt, fmt.Errorf("%w: %s from %s to %s", ErrTxReverted, hash.Hex(), args.From.Hex(), toString(args.To))
	}
	return receipt, nil
}

func toString(addr *common.Address) string {
	if addr == nil {
		return "<create>"
	}
	return addr.Hex()
}
