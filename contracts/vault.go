package contracts

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/tranvictor/forkfixture/chain"
)

// Vault is a handle on a Yearn v2 vault
type Vault struct {
	*Contract
}

// NewVault binds the vault ABI to addr
func NewVault(c *chain.Client, addr common.Address) *Vault {
	return &Vault{NewContract(c, addr, VaultABI)}
}

// VaultRoles are the arguments of Vault.initialize
type VaultRoles struct {
	Token          common.Address
	Governance     common.Address
	Rewards        common.Address
	NameOverride   string
	SymbolOverride string
	Guardian       common.Address
	Management     common.Address
}

// StrategyAllocation are the arguments of Vault.addStrategy besides the strategy
type StrategyAllocation struct {
	DebtRatio         *big.Int // basis points, 10_000 = 100%
	MinDebtPerHarvest *big.Int
	MaxDebtPerHarvest *big.Int
	PerformanceFee    *big.Int // basis points
}

// StrategyParams mirrors the vault's per-strategy bookkeeping
type StrategyParams struct {
	PerformanceFee    *big.Int
	Activation        *big.Int
	DebtRatio         *big.Int
	MinDebtPerHarvest *big.Int
	MaxDebtPerHarvest *big.Int
	LastReport        *big.Int
	TotalDebt         *big.Int
	TotalGain         *big.Int
	TotalLoss         *big.Int
}

// Active reports whether the strategy was ever added to the vault
func (p StrategyParams) Active() bool {
	return p.Activation != nil && p.Activation.Sign() > 0
}

func (v *Vault) Initialize(ctx context.Context, from common.Address, roles VaultRoles) (*types.Receipt, error) {
	return v.Transact(ctx, from, "initialize",
		roles.Token, roles.Governance, roles.Rewards,
		roles.NameOverride, roles.SymbolOverride,
		roles.Guardian, roles.Management,
	)
}

func (v *Vault) SetDepositLimit(ctx context.Context, from common.Address, limit *big.Int) (*types.Receipt, error) {
	return v.Transact(ctx, from, "setDepositLimit", limit)
}

func (v *Vault) SetManagement(ctx context.Context, from, management common.Address) (*types.Receipt, error) {
	return v.Transact(ctx, from, "setManagement", management)
}

func (v *Vault) AddStrategy(ctx context.Context, from, strategy common.Address, alloc StrategyAllocation) (*types.Receipt, error) {
	return v.Transact(ctx, from, "addStrategy",
		strategy, alloc.DebtRatio, alloc.MinDebtPerHarvest, alloc.MaxDebtPerHarvest, alloc.PerformanceFee,
	)
}

func (v *Vault) Deposit(ctx context.Context, from common.Address, amount *big.Int) (*types.Receipt, error) {
	return v.Transact(ctx, from, "deposit", amount)
}

func (v *Vault) Withdraw(ctx context.Context, from common.Address, maxShares *big.Int) (*types.Receipt, error) {
	return v.Transact(ctx, from, "withdraw", maxShares)
}

func (v *Vault) APIVersion(ctx context.Context) (string, error) {
	return v.callString(ctx, "apiVersion")
}

func (v *Vault) Token(ctx context.Context) (common.Address, error) {
	return v.callAddress(ctx, "token")
}

func (v *Vault) Governance(ctx context.Context) (common.Address, error) {
	return v.callAddress(ctx, "governance")
}

func (v *Vault) Management(ctx context.Context) (common.Address, error) {
	return v.callAddress(ctx, "management")
}

func (v *Vault) Guardian(ctx context.Context) (common.Address, error) {
	return v.callAddress(ctx, "guardian")
}

func (v *Vault) Rewards(ctx context.Context) (common.Address, error) {
	return v.callAddress(ctx, "rewards")
}

func (v *Vault) DepositLimit(ctx context.Context) (*big.Int, error) {
	return v.callBig(ctx, "depositLimit")
}

func (v *Vault) DebtRatio(ctx context.Context) (*big.Int, error) {
	return v.callBig(ctx, "debtRatio")
}

func (v *Vault) TotalAssets(ctx context.Context) (*big.Int, error) {
	return v.callBig(ctx, "totalAssets")
}

// BalanceOf returns the vault shares held by owner
func (v *Vault) BalanceOf(ctx context.Context, owner common.Address) (*big.Int, error) {
	return v.callBig(ctx, "balanceOf", owner)
}

func (v *Vault) TotalSupply(ctx context.Context) (*big.Int, error) {
	return v.callBig(ctx, "totalSupply")
}

func (v *Vault) PricePerShare(ctx context.Context) (*big.Int, error) {
	return v.callBig(ctx, "pricePerShare")
}

func (v *Vault) WithdrawalQueue(ctx context.Context, i int64) (common.Address, error) {
	return v.callAddress(ctx, "withdrawalQueue", big.NewInt(i))
}

// Strategies returns the vault's bookkeeping for strategy
func (v *Vault) Strategies(ctx context.Context, strategy common.Address) (StrategyParams, error) {
	values, err := v.Call(ctx, "strategies", strategy)
	if err != nil {
		return StrategyParams{}, err
	}
	if len(values) != 9 {
		return StrategyParams{}, fmt.Errorf("%w: strategies returned %d values", ErrUnexpectedOutput, len(values))
	}
	fields := make([]*big.Int, len(values))
	for i, value := range values {
		n, ok := value.(*big.Int)
		if !ok {
			return StrategyParams{}, fmt.Errorf("%w: strategies[%d] is %T", ErrUnexpectedOutput, i, value)
		}
		fields[i] = n
	}
	return StrategyParams{
		PerformanceFee:    fields[0],
		Activation:        fields[1],
		DebtRatio:         fields[2],
		MinDebtPerHarvest: fields[3],
		MaxDebtPerHarvest: fields[4],
		LastReport:        fields[5],
		TotalDebt:         fields[6],
		TotalGain:         fields[7],
		TotalLoss:         fields[8],
	}, nil
}
