package chain

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/KyberNetwork/logger"
	"github.com/ethereum/go-ethereum/common"
)

// Account identifies a signing address on the fork. Forced accounts are
// not part of the node's unlocked pool and were impersonated.
type Account struct {
	Address common.Address
	Forced  bool
}

func (a Account) String() string {
	return a.Address.Hex()
}

// Accounts is the pool of pre-funded, unlocked accounts of the fork node plus
// every address impersonated through At.
type Accounts struct {
	c          *Client
	pool       []common.Address
	minBalance *big.Int

	mu     sync.Mutex
	forced map[common.Address]bool
}

// LoadAccounts reads the unlocked pool with eth_accounts. Impersonated
// accounts are topped up to minBalance wei of native token so they can pay
// for gas; nil disables the top-up.
func LoadAccounts(ctx context.Context, c *Client, minBalance *big.Int) (*Accounts, error) {
	pool, err := c.backend.Accounts(ctx)
	if err != nil {
		return nil, fmt.Errorf("couldn't list fork accounts: %w", err)
	}
	return &Accounts{
		c:          c,
		pool:       pool,
		minBalance: minBalance,
		forced:     map[common.Address]bool{},
	}, nil
}

// Len returns the size of the unlocked pool
func (a *Accounts) Len() int {
	return len(a.pool)
}

// Index returns the i-th unlocked account
func (a *Accounts) Index(i int) (Account, error) {
	if i < 0 || i >= len(a.pool) {
		return Account{}, fmt.Errorf("%w: %d (pool has %d accounts)", ErrAccountIndex, i, len(a.pool))
	}
	return Account{Address: a.pool[i]}, nil
}

// At returns the account at addr. Addresses outside the unlocked pool need
// force, which impersonates them on the node.
func (a *Accounts) At(ctx context.Context, addr common.Address, force bool) (Account, error) {
	for _, p := range a.pool {
		if p == addr {
			return Account{Address: addr}, nil
		}
	}
	if !force {
		return Account{}, fmt.Errorf("%w: %s", ErrUnknownAccount, addr.Hex())
	}

	if err := a.c.backend.Impersonate(ctx, addr); err != nil {
		return Account{}, fmt.Errorf("couldn't impersonate %s: %w", addr.Hex(), err)
	}
	if err := a.topUp(ctx, addr); err != nil {
		return Account{}, err
	}

	a.mu.Lock()
	a.forced[addr] = true
	a.mu.Unlock()

	logger.WithFields(logger.Fields{
		"account": addr.Hex(),
	}).Debug("Impersonating account")
	return Account{Address: addr, Forced: true}, nil
}

func (a *Accounts) topUp(ctx context.Context, addr common.Address) error {
	if a.minBalance == nil || a.minBalance.Sign() == 0 {
		return nil
	}
	balance, err := a.c.backend.BalanceAt(ctx, addr)
	if err != nil {
		return fmt.Errorf("couldn't read balance of %s: %w", addr.Hex(), err)
	}
	if balance.Cmp(a.minBalance) >= 0 {
		return nil
	}
	if err := a.c.backend.SetBalance(ctx, addr, a.minBalance); err != nil {
		return fmt.Errorf("couldn't set balance of %s: %w", addr.Hex(), err)
	}
	logger.WithFields(logger.Fields{
		"account":     addr.Hex(),
		"old_balance": balance.String(),
		"new_balance": a.minBalance.String(),
	}).Debug("Topped up impersonated account")
	return nil
}

// Forced returns the addresses impersonated so far
func (a *Accounts) Forced() []common.Address {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]common.Address, 0, len(a.forced))
	for addr := range a.forced {
		out = append(out, addr)
	}
	return out
}

// Release stops impersonating every forced account. Accounts that could not
// be released stay forced and are reported together.
func (a *Accounts) Release(ctx context.Context) error {
	var errs []error
	for _, addr := range a.Forced() {
		if err := a.c.backend.StopImpersonating(ctx, addr); err != nil {
			errs = append(errs, fmt.Errorf("couldn't stop impersonating %s: %w", addr.Hex(), err))
			continue
		}
		a.mu.Lock()
		delete(a.forced, addr)
		a.mu.Unlock()
	}
	return errors.Join(errs...)
}
