package testutil

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/tranvictor/forkfixture/chain"
)

// ErrExecutionReverted is returned (wrapped) by the fake EVM when a call or a
// gas-estimated transaction reverts
var ErrExecutionReverted = errors.New("execution reverted")

// GasPrice is the price FakeChain charges per unit of gas
var GasPrice = big.NewInt(1_000_000_000)

func revertf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrExecutionReverted, fmt.Sprintf(format, args...))
}

// worldState is everything a snapshot captures
type worldState struct {
	block     uint64
	time      uint64
	timeDelta uint64

	balances  map[common.Address]*big.Int
	nonces    map[common.Address]uint64
	contracts map[common.Address]fakeContract
	receipts  map[common.Hash]*types.Receipt
}

func newWorldState() *worldState {
	return &worldState{
		block:     1,
		time:      1_700_000_000,
		balances:  map[common.Address]*big.Int{},
		nonces:    map[common.Address]uint64{},
		contracts: map[common.Address]fakeContract{},
		receipts:  map[common.Hash]*types.Receipt{},
	}
}

func (w *worldState) clone() *worldState {
	out := &worldState{
		block:     w.block,
		time:      w.time,
		timeDelta: w.timeDelta,
		balances:  make(map[common.Address]*big.Int, len(w.balances)),
		nonces:    make(map[common.Address]uint64, len(w.nonces)),
		contracts: make(map[common.Address]fakeContract, len(w.contracts)),
		receipts:  make(map[common.Hash]*types.Receipt, len(w.receipts)),
	}
	for k, v := range w.balances {
		out.balances[k] = new(big.Int).Set(v)
	}
	for k, v := range w.nonces {
		out.nonces[k] = v
	}
	for k, v := range w.contracts {
		out.contracts[k] = v.clone()
	}
	for k, v := range w.receipts {
		out.receipts[k] = v
	}
	return out
}

func (w *worldState) balance(addr common.Address) *big.Int {
	if b, ok := w.balances[addr]; ok {
		return b
	}
	return new(big.Int)
}

func (w *worldState) mine() {
	w.block++
	w.time += 1 + w.timeDelta
	w.timeDelta = 0
}

type deployFunc func(w *worldState, self, from common.Address, args []byte) (fakeContract, error)

type creation struct {
	code   []byte
	deploy deployFunc
}

// FakeChain is an in-memory chain.Backend behaving like an anvil fork:
// an unlocked account pool, impersonation, automine, time travel and
// snapshot/revert. Contracts are Go fakes decoded through the curated ABIs.
type FakeChain struct {
	mu sync.Mutex

	chainID      *big.Int
	pool         []common.Address
	impersonated map[common.Address]bool
	creations    []creation

	st            *worldState
	snapshots     map[string]*worldState
	snapshotOrder []string
	nextSnapshot  uint64

	sendErr      error
	holdReceipts bool
	calls        map[string]int
	sent         []chain.TxArgs
}

// NewFakeChain creates a fork with poolSize unlocked accounts holding
// PoolBalance each
func NewFakeChain(chainID int64, poolSize int) *FakeChain {
	f := &FakeChain{
		chainID:      big.NewInt(chainID),
		impersonated: map[common.Address]bool{},
		st:           newWorldState(),
		snapshots:    map[string]*worldState{},
		calls:        map[string]int{},
	}
	for i := 0; i < poolSize; i++ {
		addr := common.BytesToAddress(crypto.Keccak256([]byte(fmt.Sprintf("fake-pool-account-%d", i))))
		f.pool = append(f.pool, addr)
		f.st.balances[addr] = new(big.Int).Set(PoolBalance)
	}
	return f
}

// Pool returns the unlocked accounts
func (f *FakeChain) Pool() []common.Address {
	return append([]common.Address(nil), f.pool...)
}

// AddToken places an ERC20 at addr
func (f *FakeChain) AddToken(addr common.Address, symbol string, decimals uint8) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.st.contracts[addr] = newFakeToken(symbol, decimals)
}

// Mint credits amount of token to holder
func (f *FakeChain) Mint(token, holder common.Address, amount *big.Int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.st.contracts[token].(*fakeToken)
	if !ok {
		return fmt.Errorf("no token at %s", token.Hex())
	}
	t.mint(holder, amount)
	return nil
}

// AddMasterChef places a farm at addr whose pool i stakes lpTokens[i]
func (f *FakeChain) AddMasterChef(addr common.Address, lpTokens ...common.Address) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.st.contracts[addr] = &fakeMasterChef{lpTokens: append([]common.Address(nil), lpTokens...)}
}

// AddBalancerVault places an AMM vault at addr
func (f *FakeChain) AddBalancerVault(addr, weth common.Address) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.st.contracts[addr] = &fakeBalancerVault{weth: weth}
}

// AddCode places a contract that rejects every call at addr
func (f *FakeChain) AddCode(addr common.Address, code []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.st.contracts[addr] = &plainContract{code: code}
}

// RegisterVaultCode makes creation txs carrying code deploy a fake vault
func (f *FakeChain) RegisterVaultCode(code []byte) {
	f.register(code, deployVault)
}

// RegisterStrategyCode makes creation txs carrying code deploy a fake
// strategy; the constructor arguments follow the code.
func (f *FakeChain) RegisterStrategyCode(code []byte) {
	f.register(code, deployStrategy)
}

func (f *FakeChain) register(code []byte, deploy deployFunc) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.creations = append(f.creations, creation{code: common.CopyBytes(code), deploy: deploy})
}

// FailNextSend makes the next SendTransaction return err
func (f *FakeChain) FailNextSend(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sendErr = err
}

// HoldReceipts keeps receipts of later txs pending while on
func (f *FakeChain) HoldReceipts(on bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.holdReceipts = on
}

// Calls returns how many times a backend method was invoked
func (f *FakeChain) Calls(method string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[method]
}

// Sent returns every tx handed to SendTransaction by a valid signer, in
// order. Reverts do not clear it.
func (f *FakeChain) Sent() []chain.TxArgs {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]chain.TxArgs(nil), f.sent...)
}

// TokenBalance reads a token balance without going through the ABI
func (f *FakeChain) TokenBalance(token, holder common.Address) *big.Int {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.st.contracts[token].(*fakeToken)
	if !ok {
		return new(big.Int)
	}
	return new(big.Int).Set(t.balanceOf(holder))
}

// Time returns the timestamp of the latest block
func (f *FakeChain) Time() uint64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.st.time
}

// BlockNumber returns the latest block number
func (f *FakeChain) BlockNumber() uint64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.st.block
}

// Snapshots returns the number of live snapshots
func (f *FakeChain) Snapshots() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.snapshotOrder)
}

// IsImpersonated reports whether addr can currently send txs without being in the pool
func (f *FakeChain) IsImpersonated(addr common.Address) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.impersonated[addr]
}

func (f *FakeChain) count(method string) {
	f.calls[method]++
}

func (f *FakeChain) ChainID(ctx context.Context) (*big.Int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.count("ChainID")
	return new(big.Int).Set(f.chainID), nil
}

func (f *FakeChain) Accounts(ctx context.Context) ([]common.Address, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.count("Accounts")
	return append([]common.Address(nil), f.pool...), nil
}

func (f *FakeChain) Impersonate(ctx context.Context, addr common.Address) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.count("Impersonate")
	f.impersonated[addr] = true
	return nil
}

func (f *FakeChain) StopImpersonating(ctx context.Context, addr common.Address) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.count("StopImpersonating")
	delete(f.impersonated, addr)
	return nil
}

func (f *FakeChain) SetBalance(ctx context.Context, addr common.Address, wei *big.Int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.count("SetBalance")
	f.st.balances[addr] = new(big.Int).Set(wei)
	return nil
}

func (f *FakeChain) BalanceAt(ctx context.Context, addr common.Address) (*big.Int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.count("BalanceAt")
	return new(big.Int).Set(f.st.balance(addr)), nil
}

func (f *FakeChain) CodeAt(ctx context.Context, addr common.Address) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.count("CodeAt")
	c, ok := f.st.contracts[addr]
	if !ok {
		return nil, nil
	}
	return c.runtime(), nil
}

func (f *FakeChain) Call(ctx context.Context, msg ethereum.CallMsg) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.count("Call")
	if msg.To == nil {
		return nil, fmt.Errorf("eth_call without recipient")
	}
	if _, ok := f.st.contracts[*msg.To]; !ok {
		return nil, nil
	}
	// calls never persist state
	w := f.st.clone()
	return w.contracts[*msg.To].handle(w, *msg.To, msg.From, msg.Data)
}

func (f *FakeChain) canSign(addr common.Address) bool {
	if f.impersonated[addr] {
		return true
	}
	for _, p := range f.pool {
		if p == addr {
			return true
		}
	}
	return false
}

// SendTransaction mines args into a new block right away. A reverting tx
// sent without a gas limit fails like a node's gas estimation; with a gas
// limit it is mined with a failed receipt.
func (f *FakeChain) SendTransaction(ctx context.Context, args chain.TxArgs) (common.Hash, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.count("SendTransaction")

	if f.sendErr != nil {
		err := f.sendErr
		f.sendErr = nil
		return common.Hash{}, err
	}
	if !f.canSign(args.From) {
		return common.Hash{}, fmt.Errorf("no signer available for %s", args.From.Hex())
	}
	f.sent = append(f.sent, args)

	value := args.Value
	if value == nil {
		value = new(big.Int)
	}
	gasUsed := uint64(21_000 + 16*len(args.Data))
	fee := new(big.Int).Mul(new(big.Int).SetUint64(gasUsed), GasPrice)
	cost := new(big.Int).Add(fee, value)
	if f.st.balance(args.From).Cmp(cost) < 0 {
		return common.Hash{}, fmt.Errorf("insufficient funds for gas * price + value: %s has %s, needs %s",
			args.From.Hex(), f.st.balance(args.From), cost)
	}

	base := f.st.clone()
	nonce := base.nonces[args.From]
	base.nonces[args.From] = nonce + 1
	base.balances[args.From] = new(big.Int).Sub(base.balance(args.From), fee)
	base.mine()

	nonceBytes := make([]byte, 8)
	binary.BigEndian.PutUint64(nonceBytes, nonce)
	hash := crypto.Keccak256Hash(args.From.Bytes(), nonceBytes, args.Data)

	exec := base.clone()
	created, err := f.execute(exec, args, nonce, value)
	if err != nil && args.Gas == 0 {
		return common.Hash{}, err
	}

	receipt := &types.Receipt{
		Status:            types.ReceiptStatusSuccessful,
		TxHash:            hash,
		BlockNumber:       new(big.Int).SetUint64(base.block),
		BlockHash:         crypto.Keccak256Hash(hash.Bytes()),
		GasUsed:           gasUsed,
		CumulativeGasUsed: gasUsed,
		EffectiveGasPrice: new(big.Int).Set(GasPrice),
	}
	next := exec
	if err != nil {
		receipt.Status = types.ReceiptStatusFailed
		next = base
	} else {
		receipt.ContractAddress = created
	}
	if !f.holdReceipts {
		next.receipts[hash] = receipt
	}
	f.st = next
	return hash, nil
}

func (f *FakeChain) execute(w *worldState, args chain.TxArgs, nonce uint64, value *big.Int) (common.Address, error) {
	if value.Sign() > 0 {
		w.balances[args.From] = new(big.Int).Sub(w.balance(args.From), value)
	}

	if args.To == nil {
		addr := crypto.CreateAddress(args.From, nonce)
		for _, c := range f.creations {
			if !bytes.HasPrefix(args.Data, c.code) {
				continue
			}
			deployed, err := c.deploy(w, addr, args.From, args.Data[len(c.code):])
			if err != nil {
				return common.Address{}, err
			}
			w.contracts[addr] = deployed
			w.balances[addr] = new(big.Int).Add(w.balance(addr), value)
			return addr, nil
		}
		return common.Address{}, revertf("unknown creation code")
	}

	to := *args.To
	w.balances[to] = new(big.Int).Add(w.balance(to), value)
	c, ok := w.contracts[to]
	if !ok {
		return common.Address{}, nil
	}
	_, err := c.handle(w, to, args.From, args.Data)
	return common.Address{}, err
}

func (f *FakeChain) TransactionReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.count("TransactionReceipt")
	receipt, ok := f.st.receipts[hash]
	if !ok {
		return nil, ethereum.NotFound
	}
	return receipt, nil
}

func (f *FakeChain) IncreaseTime(ctx context.Context, seconds uint64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.count("IncreaseTime")
	f.st.timeDelta += seconds
	f.st.mine()
	return nil
}

func (f *FakeChain) Mine(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.count("Mine")
	f.st.mine()
	return nil
}

func (f *FakeChain) Snapshot(ctx context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.count("Snapshot")
	f.nextSnapshot++
	id := hexutil.EncodeUint64(f.nextSnapshot)
	f.snapshots[id] = f.st.clone()
	f.snapshotOrder = append(f.snapshotOrder, id)
	return id, nil
}

// Revert restores snapshot id and drops it together with every later snapshot
func (f *FakeChain) Revert(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.count("Revert")
	st, ok := f.snapshots[id]
	if !ok {
		return fmt.Errorf("%w: %s", chain.ErrRevertFailed, id)
	}
	f.st = st
	for i, sid := range f.snapshotOrder {
		if sid != id {
			continue
		}
		for _, dropped := range f.snapshotOrder[i:] {
			delete(f.snapshots, dropped)
		}
		f.snapshotOrder = f.snapshotOrder[:i]
		break
	}
	return nil
}
