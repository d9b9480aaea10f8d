// Package artifacts resolves compiled contracts: project build artifacts and
// those of pinned dependency packages installed brownie-style under
// <packages>/<org>/<repo>@<version>.
package artifacts

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// Artifact is a compiled contract ready to deploy
type Artifact struct {
	Name             string
	Path             string
	ABI              abi.ABI
	Bytecode         []byte
	DeployedBytecode []byte
}

// DeployData returns the creation code with the ABI-encoded constructor
// arguments appended
func (a *Artifact) DeployData(args ...any) ([]byte, error) {
	if len(a.Bytecode) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoBytecode, a.Name)
	}
	packed, err := a.ABI.Pack("", args...)
	if err != nil {
		return nil, fmt.Errorf("couldn't pack %s constructor arguments: %w", a.Name, err)
	}
	data := make([]byte, 0, len(a.Bytecode)+len(packed))
	data = append(data, a.Bytecode...)
	return append(data, packed...), nil
}

// rawArtifact covers the brownie/hardhat layout ("bytecode": "0x...") and
// the foundry one ("bytecode": {"object": "0x..."})
type rawArtifact struct {
	ContractName     string          `json:"contractName"`
	ABI              json.RawMessage `json:"abi"`
	Bytecode         json.RawMessage `json:"bytecode"`
	DeployedBytecode json.RawMessage `json:"deployedBytecode"`
}

// Load reads the artifact at path. name is used when the file does not carry
// a contract name.
func Load(path, name string) (*Artifact, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrArtifactNotFound, path)
		}
		return nil, fmt.Errorf("couldn't read artifact %s: %w", path, err)
	}
	return Parse(data, path, name)
}

// Parse decodes an artifact file's content
func Parse(data []byte, path, name string) (*Artifact, error) {
	var raw rawArtifact
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, errors.Join(ErrMalformedArtifact, fmt.Errorf("%s: %w", path, err))
	}
	if raw.ContractName != "" {
		name = raw.ContractName
	}

	artifact := &Artifact{Name: name, Path: path}
	if len(raw.ABI) > 0 {
		parsed, err := abi.JSON(bytes.NewReader(raw.ABI))
		if err != nil {
			return nil, errors.Join(ErrMalformedArtifact, fmt.Errorf("%s abi: %w", path, err))
		}
		artifact.ABI = parsed
	}
	var err error
	if artifact.Bytecode, err = decodeBytecode(raw.Bytecode); err != nil {
		return nil, fmt.Errorf("%s bytecode: %w", path, err)
	}
	if artifact.DeployedBytecode, err = decodeBytecode(raw.DeployedBytecode); err != nil {
		return nil, fmt.Errorf("%s deployedBytecode: %w", path, err)
	}
	return artifact, nil
}

func decodeBytecode(raw json.RawMessage) ([]byte, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	var code string
	if raw[0] == '{' {
		var obj struct {
			Object string `json:"object"`
		}
		if err := json.Unmarshal(raw, &obj); err != nil {
			return nil, errors.Join(ErrMalformedArtifact, err)
		}
		code = obj.Object
	} else if err := json.Unmarshal(raw, &code); err != nil {
		return nil, errors.Join(ErrMalformedArtifact, err)
	}

	code = strings.TrimPrefix(code, "0x")
	if code == "" {
		return nil, nil
	}
	if strings.Contains(code, "__") {
		return nil, ErrUnlinked
	}
	decoded, err := hexutil.Decode("0x" + code)
	if err != nil {
		return nil, errors.Join(ErrMalformedArtifact, err)
	}
	return decoded, nil
}
