package testutil

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// ============================================================
// Fantom fork addresses
// ============================================================

var (
	// FantomChainID is the chain id the fake fork reports
	FantomChainID int64 = 250
	// GovAddr is the Yearn governance multisig
	GovAddr = common.HexToAddress("0xFEB4acf3df3cDEA7399794D0869ef76A6EfAff52")
	// TokenAddr is fBEETS, the want token
	TokenAddr = common.HexToAddress("0xfcef8a994209d6916EB2C86cDD2AFD60Aa6F54b1")
	// ReserveAddr holds the fBEETS supply; it is also the farm
	ReserveAddr = common.HexToAddress("0x8166994d9ebBe5829EC86Bd81258149B87faCfd3")
	// MasterChefAddr is the Beethoven-X farm
	MasterChefAddr = ReserveAddr
	// BalancerVaultAddr is the Beethoven-X AMM vault
	BalancerVaultAddr = common.HexToAddress("0x20dd72Ed959b6147912C2e529F0a0C651c33c9ce")
	// WFTMAddr is wrapped FTM
	WFTMAddr = common.HexToAddress("0x21be370D5312f44cB42ce377BC9b8a0cEF1A4C83")
	// FarmID is the farm staking fBEETS
	FarmID int64 = 22
)

// ============================================================
// Creation code
// ============================================================

var (
	// VaultCode is the creation code FakeChain deploys as a vault
	VaultCode = common.FromHex("0x608060405234801561001057600080fd5b5001")
	// StrategyCode is the creation code FakeChain deploys as a strategy
	StrategyCode = common.FromHex("0x608060405234801561001057600080fd5b5002")
)

// ============================================================
// Common Values
// ============================================================

var (
	// OneEth represents 1 ETH (or FTM) in wei
	OneEth = big.NewInt(1000000000000000000)
	// PoolBalance is the native balance of every unlocked account
	PoolBalance = new(big.Int).Mul(big.NewInt(10_000), OneEth)
	// ReserveSupply is the fBEETS balance of the reserve
	ReserveSupply = new(big.Int).Mul(big.NewInt(1_000_000_000), OneEth)
)
