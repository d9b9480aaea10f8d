package testutil

import (
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/math"

	"github.com/tranvictor/forkfixture/contracts"
)

const (
	maxBPS        = 10_000
	maxStrategies = 20
	vaultVersion  = "0.4.3"
	strategyName  = "StrategyBeethovenxFarm"
)

type fakeContract interface {
	runtime() []byte
	handle(w *worldState, self, from common.Address, data []byte) ([]byte, error)
	clone() fakeContract
}

func dispatch(parsed abi.ABI, data []byte) (*abi.Method, []any, error) {
	if len(data) < 4 {
		return nil, nil, revertf("missing function selector")
	}
	m, err := parsed.MethodById(data[:4])
	if err != nil {
		return nil, nil, revertf("function selector %x not recognized", data[:4])
	}
	args, err := m.Inputs.Unpack(data[4:])
	if err != nil {
		return nil, nil, revertf("malformed calldata for %s", m.Name)
	}
	return m, args, nil
}

func copyBig(n *big.Int) *big.Int {
	if n == nil {
		return nil
	}
	return new(big.Int).Set(n)
}

func copyBalances(in map[common.Address]*big.Int) map[common.Address]*big.Int {
	out := make(map[common.Address]*big.Int, len(in))
	for k, v := range in {
		out[k] = copyBig(v)
	}
	return out
}

// fakeToken is a plain ERC20
type fakeToken struct {
	symbol     string
	decimals   uint8
	supply     *big.Int
	balances   map[common.Address]*big.Int
	allowances map[common.Address]map[common.Address]*big.Int
}

func newFakeToken(symbol string, decimals uint8) *fakeToken {
	return &fakeToken{
		symbol:     symbol,
		decimals:   decimals,
		supply:     new(big.Int),
		balances:   map[common.Address]*big.Int{},
		allowances: map[common.Address]map[common.Address]*big.Int{},
	}
}

func (t *fakeToken) runtime() []byte {
	return []byte("fake-erc20:" + t.symbol)
}

func (t *fakeToken) clone() fakeContract {
	out := &fakeToken{
		symbol:     t.symbol,
		decimals:   t.decimals,
		supply:     copyBig(t.supply),
		balances:   copyBalances(t.balances),
		allowances: make(map[common.Address]map[common.Address]*big.Int, len(t.allowances)),
	}
	for owner, spenders := range t.allowances {
		out.allowances[owner] = copyBalances(spenders)
	}
	return out
}

func (t *fakeToken) balanceOf(addr common.Address) *big.Int {
	if b, ok := t.balances[addr]; ok {
		return b
	}
	return new(big.Int)
}

func (t *fakeToken) allowance(owner, spender common.Address) *big.Int {
	if b, ok := t.allowances[owner][spender]; ok {
		return b
	}
	return new(big.Int)
}

func (t *fakeToken) mint(to common.Address, amount *big.Int) {
	t.balances[to] = new(big.Int).Add(t.balanceOf(to), amount)
	t.supply = new(big.Int).Add(t.supply, amount)
}

func (t *fakeToken) burn(from common.Address, amount *big.Int) error {
	if t.balanceOf(from).Cmp(amount) < 0 {
		return revertf("burn amount exceeds balance")
	}
	t.balances[from] = new(big.Int).Sub(t.balanceOf(from), amount)
	t.supply = new(big.Int).Sub(t.supply, amount)
	return nil
}

func (t *fakeToken) move(from, to common.Address, amount *big.Int) error {
	if t.balanceOf(from).Cmp(amount) < 0 {
		return revertf("ERC20: transfer amount exceeds balance")
	}
	t.balances[from] = new(big.Int).Sub(t.balanceOf(from), amount)
	t.balances[to] = new(big.Int).Add(t.balanceOf(to), amount)
	return nil
}

func (t *fakeToken) spend(owner, spender common.Address, amount *big.Int) error {
	allowed := t.allowance(owner, spender)
	if allowed.Cmp(amount) < 0 {
		return revertf("ERC20: insufficient allowance")
	}
	// unlimited approvals are never decreased
	if allowed.Cmp(math.MaxBig256) == 0 {
		return nil
	}
	t.allowances[owner][spender] = new(big.Int).Sub(allowed, amount)
	return nil
}

func (t *fakeToken) approve(owner, spender common.Address, amount *big.Int) {
	if t.allowances[owner] == nil {
		t.allowances[owner] = map[common.Address]*big.Int{}
	}
	t.allowances[owner][spender] = copyBig(amount)
}

func (t *fakeToken) handle(w *worldState, self, from common.Address, data []byte) ([]byte, error) {
	m, args, err := dispatch(contracts.ERC20ABI, data)
	if err != nil {
		return nil, err
	}
	switch m.Name {
	case "decimals":
		return m.Outputs.Pack(t.decimals)
	case "symbol":
		return m.Outputs.Pack(t.symbol)
	case "totalSupply":
		return m.Outputs.Pack(t.supply)
	case "balanceOf":
		return m.Outputs.Pack(t.balanceOf(args[0].(common.Address)))
	case "allowance":
		return m.Outputs.Pack(t.allowance(args[0].(common.Address), args[1].(common.Address)))
	case "transfer":
		if err := t.move(from, args[0].(common.Address), args[1].(*big.Int)); err != nil {
			return nil, err
		}
		return m.Outputs.Pack(true)
	case "approve":
		t.approve(from, args[0].(common.Address), args[1].(*big.Int))
		return m.Outputs.Pack(true)
	case "transferFrom":
		owner, to, amount := args[0].(common.Address), args[1].(common.Address), args[2].(*big.Int)
		if owner != from {
			if err := t.spend(owner, from, amount); err != nil {
				return nil, err
			}
		}
		if err := t.move(owner, to, amount); err != nil {
			return nil, err
		}
		return m.Outputs.Pack(true)
	}
	return nil, revertf("%s not implemented", m.Name)
}

// strategyParams is the vault's per-strategy record
type strategyParams struct {
	performanceFee    *big.Int
	activation        *big.Int
	debtRatio         *big.Int
	minDebtPerHarvest *big.Int
	maxDebtPerHarvest *big.Int
	lastReport        *big.Int
	totalDebt         *big.Int
	totalGain         *big.Int
	totalLoss         *big.Int
}

func (p *strategyParams) values() []any {
	if p == nil {
		zero := new(big.Int)
		return []any{zero, zero, zero, zero, zero, zero, zero, zero, zero}
	}
	return []any{
		p.performanceFee, p.activation, p.debtRatio,
		p.minDebtPerHarvest, p.maxDebtPerHarvest, p.lastReport,
		p.totalDebt, p.totalGain, p.totalLoss,
	}
}

func (p *strategyParams) clone() *strategyParams {
	cp := *p
	return &cp
}

// fakeVault implements the subset of a Yearn v2 vault the fixtures drive
type fakeVault struct {
	token        common.Address
	governance   common.Address
	management   common.Address
	guardian     common.Address
	rewards      common.Address
	depositLimit *big.Int
	debtRatio    *big.Int
	strategies   map[common.Address]*strategyParams
	queue        []common.Address
	shares       *fakeToken
}

func deployVault(w *worldState, self, from common.Address, args []byte) (fakeContract, error) {
	return &fakeVault{
		depositLimit: new(big.Int),
		debtRatio:    new(big.Int),
		strategies:   map[common.Address]*strategyParams{},
		shares:       newFakeToken("yv", 18),
	}, nil
}

func (v *fakeVault) runtime() []byte {
	return []byte("fake-yearn-vault")
}

func (v *fakeVault) clone() fakeContract {
	out := *v
	out.depositLimit = copyBig(v.depositLimit)
	out.debtRatio = copyBig(v.debtRatio)
	out.strategies = make(map[common.Address]*strategyParams, len(v.strategies))
	for k, p := range v.strategies {
		out.strategies[k] = p.clone()
	}
	out.queue = append([]common.Address(nil), v.queue...)
	out.shares = v.shares.clone().(*fakeToken)
	return &out
}

func (v *fakeVault) want(w *worldState) (*fakeToken, error) {
	t, ok := w.contracts[v.token].(*fakeToken)
	if !ok {
		return nil, revertf("vault token %s is not a token", v.token.Hex())
	}
	return t, nil
}

func (v *fakeVault) totalAssets(w *worldState, self common.Address) *big.Int {
	total := new(big.Int)
	if t, err := v.want(w); err == nil {
		total.Add(total, t.balanceOf(self))
	}
	for _, p := range v.strategies {
		total.Add(total, p.totalDebt)
	}
	return total
}

func (v *fakeVault) handle(w *worldState, self, from common.Address, data []byte) ([]byte, error) {
	m, args, err := dispatch(contracts.VaultABI, data)
	if err != nil {
		return nil, err
	}
	switch m.Name {
	case "initialize":
		if v.token != (common.Address{}) {
			return nil, revertf("vault already initialized")
		}
		t, ok := w.contracts[args[0].(common.Address)].(*fakeToken)
		if !ok {
			return nil, revertf("token has no code")
		}
		v.token = args[0].(common.Address)
		v.governance = args[1].(common.Address)
		v.rewards = args[2].(common.Address)
		v.guardian = args[5].(common.Address)
		v.management = args[6].(common.Address)
		v.shares = newFakeToken("yv"+t.symbol, t.decimals)
		return nil, nil
	case "apiVersion":
		return m.Outputs.Pack(vaultVersion)
	case "setDepositLimit":
		if from != v.governance {
			return nil, revertf("setDepositLimit: governance only")
		}
		v.depositLimit = copyBig(args[0].(*big.Int))
		return nil, nil
	case "setManagement":
		if from != v.governance {
			return nil, revertf("setManagement: governance only")
		}
		v.management = args[0].(common.Address)
		return nil, nil
	case "addStrategy":
		return nil, v.addStrategy(w, self, from, args)
	case "deposit":
		return v.deposit(w, self, from, m, args[0].(*big.Int))
	case "withdraw":
		return v.withdraw(w, self, from, m, args[0].(*big.Int))
	case "token":
		return m.Outputs.Pack(v.token)
	case "governance":
		return m.Outputs.Pack(v.governance)
	case "management":
		return m.Outputs.Pack(v.management)
	case "guardian":
		return m.Outputs.Pack(v.guardian)
	case "rewards":
		return m.Outputs.Pack(v.rewards)
	case "depositLimit":
		return m.Outputs.Pack(v.depositLimit)
	case "debtRatio":
		return m.Outputs.Pack(v.debtRatio)
	case "totalSupply":
		return m.Outputs.Pack(v.shares.supply)
	case "balanceOf":
		return m.Outputs.Pack(v.shares.balanceOf(args[0].(common.Address)))
	case "totalAssets":
		return m.Outputs.Pack(v.totalAssets(w, self))
	case "pricePerShare":
		unit := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(v.shares.decimals)), nil)
		if v.shares.supply.Sign() == 0 {
			return m.Outputs.Pack(unit)
		}
		price := new(big.Int).Mul(v.totalAssets(w, self), unit)
		return m.Outputs.Pack(price.Div(price, v.shares.supply))
	case "withdrawalQueue":
		i := args[0].(*big.Int)
		if !i.IsInt64() || i.Int64() >= int64(len(v.queue)) {
			return m.Outputs.Pack(common.Address{})
		}
		return m.Outputs.Pack(v.queue[i.Int64()])
	case "strategies":
		return m.Outputs.Pack(v.strategies[args[0].(common.Address)].values()...)
	}
	return nil, revertf("%s not implemented", m.Name)
}

func (v *fakeVault) addStrategy(w *worldState, self, from common.Address, args []any) error {
	strategy := args[0].(common.Address)
	debtRatio := args[1].(*big.Int)
	minDebt := args[2].(*big.Int)
	maxDebt := args[3].(*big.Int)
	fee := args[4].(*big.Int)

	switch {
	case strategy == (common.Address{}):
		return revertf("addStrategy: zero address")
	case from != v.governance:
		return revertf("addStrategy: governance only")
	case new(big.Int).Add(v.debtRatio, debtRatio).Cmp(big.NewInt(maxBPS)) > 0:
		return revertf("addStrategy: debt ratio above %d", maxBPS)
	case fee.Cmp(big.NewInt(maxBPS/2)) > 0:
		return revertf("addStrategy: performance fee above %d", maxBPS/2)
	case minDebt.Cmp(maxDebt) > 0:
		return revertf("addStrategy: min debt above max debt")
	case v.strategies[strategy] != nil:
		return revertf("addStrategy: already added")
	case len(v.queue) >= maxStrategies:
		return revertf("addStrategy: withdrawal queue full")
	}
	s, ok := w.contracts[strategy].(*fakeStrategy)
	if !ok {
		return revertf("addStrategy: %s is not a strategy", strategy.Hex())
	}
	if s.vault != self {
		return revertf("addStrategy: strategy belongs to vault %s", s.vault.Hex())
	}
	if s.want != v.token {
		return revertf("addStrategy: strategy wants %s", s.want.Hex())
	}

	now := new(big.Int).SetUint64(w.time)
	v.strategies[strategy] = &strategyParams{
		performanceFee:    copyBig(fee),
		activation:        now,
		debtRatio:         copyBig(debtRatio),
		minDebtPerHarvest: copyBig(minDebt),
		maxDebtPerHarvest: copyBig(maxDebt),
		lastReport:        copyBig(now),
		totalDebt:         new(big.Int),
		totalGain:         new(big.Int),
		totalLoss:         new(big.Int),
	}
	v.debtRatio = new(big.Int).Add(v.debtRatio, debtRatio)
	v.queue = append(v.queue, strategy)
	return nil
}

func (v *fakeVault) deposit(w *worldState, self, from common.Address, m *abi.Method, amount *big.Int) ([]byte, error) {
	t, err := v.want(w)
	if err != nil {
		return nil, err
	}
	assets := v.totalAssets(w, self)
	if new(big.Int).Add(assets, amount).Cmp(v.depositLimit) > 0 {
		return nil, revertf("deposit: above deposit limit")
	}
	shares := new(big.Int).Set(amount)
	if v.shares.supply.Sign() > 0 {
		shares.Mul(amount, v.shares.supply).Div(shares, assets)
	}
	if err := t.spend(from, self, amount); err != nil {
		return nil, err
	}
	if err := t.move(from, self, amount); err != nil {
		return nil, err
	}
	v.shares.mint(from, shares)
	return m.Outputs.Pack(shares)
}

func (v *fakeVault) withdraw(w *worldState, self, from common.Address, m *abi.Method, maxShares *big.Int) ([]byte, error) {
	t, err := v.want(w)
	if err != nil {
		return nil, err
	}
	shares := maxShares
	if balance := v.shares.balanceOf(from); shares.Cmp(balance) > 0 {
		shares = balance
	}
	if shares.Sign() == 0 {
		return m.Outputs.Pack(new(big.Int))
	}
	value := new(big.Int).Mul(shares, v.totalAssets(w, self))
	value.Div(value, v.shares.supply)
	if err := v.shares.burn(from, shares); err != nil {
		return nil, err
	}
	if err := t.move(self, from, value); err != nil {
		return nil, err
	}
	return m.Outputs.Pack(value)
}

// fakeStrategy mirrors the constructor and role checks of the farming strategy
type fakeStrategy struct {
	vault         common.Address
	want          common.Address
	balancerVault common.Address
	masterChef    common.Address
	pid           *big.Int
	strategist    common.Address
	keeper        common.Address
}

func deployStrategy(w *worldState, self, from common.Address, args []byte) (fakeContract, error) {
	values, err := contracts.StrategyABI.Constructor.Inputs.Unpack(args)
	if err != nil {
		return nil, revertf("malformed constructor arguments")
	}
	vaultAddr := values[0].(common.Address)
	v, ok := w.contracts[vaultAddr].(*fakeVault)
	if !ok {
		return nil, revertf("strategy vault %s is not a vault", vaultAddr.Hex())
	}
	s := &fakeStrategy{
		vault:         vaultAddr,
		want:          v.token,
		balancerVault: values[1].(common.Address),
		masterChef:    values[2].(common.Address),
		pid:           copyBig(values[3].(*big.Int)),
		strategist:    from,
		keeper:        from,
	}
	if mc, ok := w.contracts[s.masterChef].(*fakeMasterChef); ok {
		if !s.pid.IsInt64() || s.pid.Int64() >= int64(len(mc.lpTokens)) {
			return nil, revertf("farm %s does not exist", s.pid)
		}
		if mc.lpTokens[s.pid.Int64()] != s.want {
			return nil, revertf("farm %s does not stake the vault token", s.pid)
		}
	}
	return s, nil
}

func (s *fakeStrategy) runtime() []byte {
	return []byte("fake-strategy")
}

func (s *fakeStrategy) clone() fakeContract {
	out := *s
	out.pid = copyBig(s.pid)
	return &out
}

func (s *fakeStrategy) governance(w *worldState) common.Address {
	if v, ok := w.contracts[s.vault].(*fakeVault); ok {
		return v.governance
	}
	return common.Address{}
}

func (s *fakeStrategy) handle(w *worldState, self, from common.Address, data []byte) ([]byte, error) {
	m, args, err := dispatch(contracts.StrategyABI, data)
	if err != nil {
		return nil, err
	}
	switch m.Name {
	case "name":
		return m.Outputs.Pack(strategyName)
	case "vault":
		return m.Outputs.Pack(s.vault)
	case "want":
		return m.Outputs.Pack(s.want)
	case "strategist":
		return m.Outputs.Pack(s.strategist)
	case "keeper":
		return m.Outputs.Pack(s.keeper)
	case "setKeeper":
		if from != s.strategist && from != s.governance(w) {
			return nil, revertf("setKeeper: not authorized")
		}
		keeper := args[0].(common.Address)
		if keeper == (common.Address{}) {
			return nil, revertf("setKeeper: zero address")
		}
		s.keeper = keeper
		return nil, nil
	case "harvest":
		if from != s.keeper && from != s.strategist && from != s.governance(w) {
			return nil, revertf("harvest: not a keeper")
		}
		if v, ok := w.contracts[s.vault].(*fakeVault); ok {
			if p := v.strategies[self]; p != nil {
				p.lastReport = new(big.Int).SetUint64(w.time)
			}
		}
		return nil, nil
	case "estimatedTotalAssets":
		if t, ok := w.contracts[s.want].(*fakeToken); ok {
			return m.Outputs.Pack(t.balanceOf(self))
		}
		return m.Outputs.Pack(new(big.Int))
	}
	return nil, revertf("%s not implemented", m.Name)
}

type fakeMasterChef struct {
	lpTokens []common.Address
}

func (c *fakeMasterChef) runtime() []byte {
	return []byte("fake-masterchef")
}

func (c *fakeMasterChef) clone() fakeContract {
	return &fakeMasterChef{lpTokens: append([]common.Address(nil), c.lpTokens...)}
}

func (c *fakeMasterChef) handle(w *worldState, self, from common.Address, data []byte) ([]byte, error) {
	m, args, err := dispatch(contracts.MasterChefABI, data)
	if err != nil {
		return nil, err
	}
	switch m.Name {
	case "poolLength":
		return m.Outputs.Pack(big.NewInt(int64(len(c.lpTokens))))
	case "lpTokens":
		pid := args[0].(*big.Int)
		if !pid.IsInt64() || pid.Int64() >= int64(len(c.lpTokens)) {
			return nil, revertf("lpTokens: index out of range")
		}
		return m.Outputs.Pack(c.lpTokens[pid.Int64()])
	}
	return nil, revertf("%s not implemented", m.Name)
}

type fakeBalancerVault struct {
	weth common.Address
}

func (b *fakeBalancerVault) runtime() []byte {
	return []byte("fake-balancer-vault")
}

func (b *fakeBalancerVault) clone() fakeContract {
	out := *b
	return &out
}

func (b *fakeBalancerVault) handle(w *worldState, self, from common.Address, data []byte) ([]byte, error) {
	m, _, err := dispatch(contracts.BalancerVaultABI, data)
	if err != nil {
		return nil, err
	}
	if m.Name == "WETH" {
		return m.Outputs.Pack(b.weth)
	}
	return nil, revertf("%s not implemented", m.Name)
}

// plainContract has code but recognizes no function
type plainContract struct {
	code []byte
}

func (p *plainContract) runtime() []byte {
	return p.code
}

func (p *plainContract) clone() fakeContract {
	return p
}

func (p *plainContract) handle(w *worldState, self, from common.Address, data []byte) ([]byte, error) {
	return nil, revertf("function selector not recognized")
}
