package contracts

import (
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

// The ABIs below are the subsets of the deployed interfaces the fixtures and
// tests use. The JSON is exported for tooling that writes build artifacts.

const ERC20ABIJSON = `[
 {"type":"function","name":"decimals","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint8"}]},
 {"type":"function","name":"symbol","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"string"}]},
 {"type":"function","name":"totalSupply","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
 {"type":"function","name":"balanceOf","stateMutability":"view","inputs":[{"name":"account","type":"address"}],"outputs":[{"name":"","type":"uint256"}]},
 {"type":"function","name":"allowance","stateMutability":"view","inputs":[{"name":"owner","type":"address"},{"name":"spender","type":"address"}],"outputs":[{"name":"","type":"uint256"}]},
 {"type":"function","name":"transfer","stateMutability":"nonpayable","inputs":[{"name":"to","type":"address"},{"name":"amount","type":"uint256"}],"outputs":[{"name":"","type":"bool"}]},
 {"type":"function","name":"approve","stateMutability":"nonpayable","inputs":[{"name":"spender","type":"address"},{"name":"amount","type":"uint256"}],"outputs":[{"name":"","type":"bool"}]},
 {"type":"function","name":"transferFrom","stateMutability":"nonpayable","inputs":[{"name":"from","type":"address"},{"name":"to","type":"address"},{"name":"amount","type":"uint256"}],"outputs":[{"name":"","type":"bool"}]}
]`

const VaultABIJSON = `[
 {"type":"function","name":"initialize","stateMutability":"nonpayable","inputs":[
   {"name":"token","type":"address"},{"name":"governance","type":"address"},{"name":"rewards","type":"address"},
   {"name":"nameOverride","type":"string"},{"name":"symbolOverride","type":"string"},
   {"name":"guardian","type":"address"},{"name":"management","type":"address"}],"outputs":[]},
 {"type":"function","name":"apiVersion","stateMutability":"pure","inputs":[],"outputs":[{"name":"","type":"string"}]},
 {"type":"function","name":"setDepositLimit","stateMutability":"nonpayable","inputs":[{"name":"limit","type":"uint256"}],"outputs":[]},
 {"type":"function","name":"setManagement","stateMutability":"nonpayable","inputs":[{"name":"management","type":"address"}],"outputs":[]},
 {"type":"function","name":"addStrategy","stateMutability":"nonpayable","inputs":[
   {"name":"strategy","type":"address"},{"name":"debtRatio","type":"uint256"},
   {"name":"minDebtPerHarvest","type":"uint256"},{"name":"maxDebtPerHarvest","type":"uint256"},
   {"name":"performanceFee","type":"uint256"}],"outputs":[]},
 {"type":"function","name":"deposit","stateMutability":"nonpayable","inputs":[{"name":"_amount","type":"uint256"}],"outputs":[{"name":"","type":"uint256"}]},
 {"type":"function","name":"withdraw","stateMutability":"nonpayable","inputs":[{"name":"maxShares","type":"uint256"}],"outputs":[{"name":"","type":"uint256"}]},
 {"type":"function","name":"token","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"address"}]},
 {"type":"function","name":"governance","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"address"}]},
 {"type":"function","name":"management","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"address"}]},
 {"type":"function","name":"guardian","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"address"}]},
 {"type":"function","name":"rewards","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"address"}]},
 {"type":"function","name":"depositLimit","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
 {"type":"function","name":"debtRatio","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
 {"type":"function","name":"totalSupply","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
 {"type":"function","name":"balanceOf","stateMutability":"view","inputs":[{"name":"arg0","type":"address"}],"outputs":[{"name":"","type":"uint256"}]},
 {"type":"function","name":"totalAssets","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
 {"type":"function","name":"pricePerShare","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
 {"type":"function","name":"withdrawalQueue","stateMutability":"view","inputs":[{"name":"arg0","type":"uint256"}],"outputs":[{"name":"","type":"address"}]},
 {"type":"function","name":"strategies","stateMutability":"view","inputs":[{"name":"arg0","type":"address"}],"outputs":[
   {"name":"performanceFee","type":"uint256"},{"name":"activation","type":"uint256"},{"name":"debtRatio","type":"uint256"},
   {"name":"minDebtPerHarvest","type":"uint256"},{"name":"maxDebtPerHarvest","type":"uint256"},{"name":"lastReport","type":"uint256"},
   {"name":"totalDebt","type":"uint256"},{"name":"totalGain","type":"uint256"},{"name":"totalLoss","type":"uint256"}]}
]`

const StrategyABIJSON = `[
 {"type":"constructor","stateMutability":"nonpayable","inputs":[
   {"name":"_vault","type":"address"},{"name":"_balancerVault","type":"address"},
   {"name":"_masterChef","type":"address"},{"name":"_pid","type":"uint256"}]},
 {"type":"function","name":"name","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"string"}]},
 {"type":"function","name":"vault","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"address"}]},
 {"type":"function","name":"want","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"address"}]},
 {"type":"function","name":"strategist","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"address"}]},
 {"type":"function","name":"keeper","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"address"}]},
 {"type":"function","name":"setKeeper","stateMutability":"nonpayable","inputs":[{"name":"_keeper","type":"address"}],"outputs":[]},
 {"type":"function","name":"harvest","stateMutability":"nonpayable","inputs":[],"outputs":[]},
 {"type":"function","name":"estimatedTotalAssets","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]}
]`

const MasterChefABIJSON = `[
 {"type":"function","name":"poolLength","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
 {"type":"function","name":"lpTokens","stateMutability":"view","inputs":[{"name":"","type":"uint256"}],"outputs":[{"name":"","type":"address"}]}
]`

const BalancerVaultABIJSON = `[
 {"type":"function","name":"WETH","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"address"}]}
]`

var (
	ERC20ABI         = mustParse(ERC20ABIJSON)
	VaultABI         = mustParse(VaultABIJSON)
	StrategyABI      = mustParse(StrategyABIJSON)
	MasterChefABI    = mustParse(MasterChefABIJSON)
	BalancerVaultABI = mustParse(BalancerVaultABIJSON)
)

func mustParse(s string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(s))
	if err != nil {
		panic(err)
	}
	return parsed
}
