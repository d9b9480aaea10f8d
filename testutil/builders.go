package testutil

import (
	"encoding/json"
	"math/big"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/tranvictor/forkfixture/contracts"
)

// ============================================================
// Fork Builders
// ============================================================

// NewFantomFork creates a FakeChain seeded like a Fantom fork: fBEETS held by
// the reserve, the farm with pool FarmID staking fBEETS, the AMM vault and
// code at the governance multisig.
func NewFantomFork(t testing.TB) *FakeChain {
	t.Helper()
	f := NewFakeChain(FantomChainID, 10)
	f.AddToken(TokenAddr, "fBEETS", 18)
	if err := f.Mint(TokenAddr, ReserveAddr, ReserveSupply); err != nil {
		t.Fatalf("minting reserve: %v", err)
	}

	lpTokens := make([]common.Address, FarmID+5)
	for i := range lpTokens {
		lpTokens[i] = common.BigToAddress(big.NewInt(int64(0x1000 + i)))
	}
	lpTokens[FarmID] = TokenAddr
	f.AddMasterChef(MasterChefAddr, lpTokens...)
	f.AddBalancerVault(BalancerVaultAddr, WFTMAddr)
	f.AddCode(GovAddr, []byte("gnosis-safe-proxy"))

	f.RegisterVaultCode(VaultCode)
	f.RegisterStrategyCode(StrategyCode)
	return f
}

// ============================================================
// Artifact Builders
// ============================================================

type brownieArtifact struct {
	ContractName     string          `json:"contractName"`
	ABI              json.RawMessage `json:"abi"`
	Bytecode         string          `json:"bytecode"`
	DeployedBytecode string          `json:"deployedBytecode"`
}

// WriteArtifact writes a brownie build artifact to path
func WriteArtifact(t testing.TB, path, name, abiJSON string, code []byte) {
	t.Helper()
	data, err := json.MarshalIndent(brownieArtifact{
		ContractName:     name,
		ABI:              json.RawMessage(abiJSON),
		Bytecode:         hexutil.Encode(code),
		DeployedBytecode: hexutil.Encode(code),
	}, "", "  ")
	if err != nil {
		t.Fatalf("encoding artifact %s: %v", name, err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("creating artifact dir: %v", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("writing artifact %s: %v", name, err)
	}
}

// WriteArtifacts lays out an installed vault package for dependency
// (org/repo@version) and a project build dir holding the strategy. It returns
// the packages dir and the build dir.
func WriteArtifacts(t testing.TB, dependency string) (string, string) {
	t.Helper()
	root := t.TempDir()
	packagesDir := filepath.Join(root, "packages")
	buildDir := filepath.Join(root, "build", "contracts")

	org, rest, _ := strings.Cut(dependency, "/")
	WriteArtifact(t,
		filepath.Join(packagesDir, org, rest, "build", "contracts", "Vault.json"),
		"Vault", contracts.VaultABIJSON, VaultCode,
	)
	WriteArtifact(t,
		filepath.Join(buildDir, "Strategy.json"),
		"Strategy", contracts.StrategyABIJSON, StrategyCode,
	)
	return packagesDir, buildDir
}
