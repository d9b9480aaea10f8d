package forkfixture

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/KyberNetwork/logger"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/math"

	"github.com/tranvictor/forkfixture/chain"
	"github.com/tranvictor/forkfixture/contracts"
)

// Self-check properties
const (
	PropertyDistinctIdentities = "distinct identities"
	PropertyVaultConfigured    = "vault configured"
	PropertyStrategyAttached   = "strategy attached"
	PropertyAmountFunded       = "amount funded"
	PropertyIsolation          = "isolation"
	PropertyRelativeApprox     = "relative approx"
)

// CheckResult is the outcome of one property
type CheckResult struct {
	Property string
	OK       bool
	Detail   string
}

// Report is the outcome of Check
type Report struct {
	ChainID    uint64
	Network    string
	Identities map[string]common.Address
	Results    []CheckResult
}

// OK reports whether every property holds
func (r Report) OK() bool {
	for _, result := range r.Results {
		if !result.OK {
			return false
		}
	}
	return true
}

// Err joins the failed properties under ErrInconsistentSetup, nil when all hold
func (r Report) Err() error {
	var errs []error
	for _, result := range r.Results {
		if !result.OK {
			errs = append(errs, fmt.Errorf("%s: %s", result.Property, result.Detail))
		}
	}
	if len(errs) == 0 {
		return nil
	}
	return errors.Join(append([]error{ErrInconsistentSetup}, errs...)...)
}

func (r *Report) add(property string, ok bool, format string, args ...any) {
	r.Results = append(r.Results, CheckResult{
		Property: property,
		OK:       ok,
		Detail:   fmt.Sprintf(format, args...),
	})
}

// checkRun resolves fixtures outside of a test, collecting teardowns
type checkRun struct {
	res       *resolution
	teardowns []Teardown
}

func (h *Harness) newCheckRun(ctx context.Context, label string) *checkRun {
	run := &checkRun{}
	run.res = h.newResolution(ctx, label, func(fn Teardown) {
		run.teardowns = append(run.teardowns, fn)
	})
	return run
}

func (run *checkRun) setup() error {
	for _, name := range run.res.h.registry.Autouse() {
		if _, err := run.res.resolve(name); err != nil {
			return err
		}
	}
	return nil
}

func (run *checkRun) close(ctx context.Context) error {
	var errs []error
	for i := len(run.teardowns) - 1; i >= 0; i-- {
		if err := run.teardowns[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func get[T any](run *checkRun, name string) (T, error) {
	var zero T
	value, err := run.res.resolve(name)
	if err != nil {
		return zero, err
	}
	typed, ok := value.(T)
	if !ok {
		return zero, fmt.Errorf("%w: %s is %T, want %T", ErrFixtureType, name, value, zero)
	}
	return typed, nil
}

// Check sets up every fixture twice, in two consecutive isolated runs, and
// verifies the fixtures are consistent: distinct identities, a configured
// vault, an attached strategy, a funded user, isolation between the runs
// and a constant tolerance. The fork is left as it was found.
//
// Fixture setup failures are returned as errors; broken properties are
// reported in the Report.
func (h *Harness) Check(ctx context.Context) (report Report, err error) {
	if h.isClosed() {
		return report, ErrHarnessClosed
	}
	chainID, err := h.client.ChainID(ctx)
	if err != nil {
		return report, err
	}
	report.ChainID = chainID
	report.Network = h.client.Network(ctx)
	report.Identities = map[string]common.Address{}

	h.setupSession(ctx, "check")
	revert, _, err := h.isolate(ctx, "check")
	if err != nil {
		return report, err
	}
	defer func() {
		if revertErr := revert(ctx); revertErr != nil {
			err = errors.Join(err, revertErr)
		}
	}()

	first := h.newCheckRun(ctx, "check:first")
	observed, err := h.checkFirstRun(ctx, first, &report)
	if closeErr := first.close(ctx); closeErr != nil {
		err = errors.Join(err, closeErr)
	}
	if err != nil {
		return report, err
	}

	second := h.newCheckRun(ctx, "check:second")
	err = h.checkSecondRun(ctx, second, observed, &report)
	if closeErr := second.close(ctx); closeErr != nil {
		err = errors.Join(err, closeErr)
	}
	if err != nil {
		return report, err
	}

	logger.WithFields(logger.Fields{
		"chain_id": report.ChainID,
		"network":  report.Network,
		"ok":       report.OK(),
	}).Info("Fixture self-check done")
	return report, nil
}

// firstRunState is what the second run compares against
type firstRunState struct {
	userBalanceBefore *big.Int
	userBalanceAfter  *big.Int
	vault             common.Address
	relativeApprox    float64
}

func (h *Harness) checkFirstRun(ctx context.Context, run *checkRun, report *Report) (firstRunState, error) {
	var state firstRunState
	if err := run.setup(); err != nil {
		return state, err
	}

	owners := map[common.Address][]string{}
	for _, name := range IdentityFixtures {
		value, err := run.res.resolve(name)
		if err != nil {
			return state, err
		}
		addr, ok := identity(value)
		if !ok {
			return state, fmt.Errorf("%w: %s is %T", ErrFixtureType, name, value)
		}
		report.Identities[name] = addr
		owners[addr] = append(owners[addr], name)
	}
	var shared []string
	for addr, names := range owners {
		if len(names) > 1 {
			shared = append(shared, fmt.Sprintf("%s share %s", strings.Join(names, ", "), addr.Hex()))
		}
	}
	report.add(PropertyDistinctIdentities, len(shared) == 0, "%s", detail(shared, "%d distinct addresses", len(owners)))

	token, err := get[*contracts.Token](run, FixtureToken)
	if err != nil {
		return state, err
	}
	user := report.Identities[FixtureUser]
	if state.userBalanceBefore, err = token.BalanceOf(ctx, user); err != nil {
		return state, err
	}
	amount, err := get[*big.Int](run, FixtureAmount)
	if err != nil {
		return state, err
	}
	if state.userBalanceAfter, err = token.BalanceOf(ctx, user); err != nil {
		return state, err
	}
	gained := new(big.Int).Sub(state.userBalanceAfter, state.userBalanceBefore)
	expected, err := token.Units(ctx, h.cfg.AmountUnits)
	if err != nil {
		return state, err
	}
	report.add(PropertyAmountFunded, gained.Cmp(amount) == 0 && amount.Cmp(expected) == 0,
		"user gained %s, amount is %s, expected %s", gained, amount, expected)

	vault, err := get[*contracts.Vault](run, FixtureVault)
	if err != nil {
		return state, err
	}
	state.vault = vault.Address
	limit, err := vault.DepositLimit(ctx)
	if err != nil {
		return state, err
	}
	management, err := vault.Management(ctx)
	if err != nil {
		return state, err
	}
	report.add(PropertyVaultConfigured,
		limit.Cmp(math.MaxBig256) == 0 && management == report.Identities[FixtureManagement],
		"deposit limit %s, management %s", limit, management.Hex())

	strategy, err := get[*contracts.Strategy](run, FixtureStrategy)
	if err != nil {
		return state, err
	}
	params, err := vault.Strategies(ctx, strategy.Address)
	if err != nil {
		return state, err
	}
	queued, err := vault.WithdrawalQueue(ctx, 0)
	if err != nil {
		return state, err
	}
	wantRatio := big.NewInt(h.cfg.Strategy.DebtRatio)
	report.add(PropertyStrategyAttached,
		params.Active() && params.DebtRatio.Cmp(wantRatio) == 0 && queued == strategy.Address,
		"activation %s, debt ratio %s (want %s), withdrawal queue head %s",
		params.Activation, params.DebtRatio, wantRatio, queued.Hex())

	if state.relativeApprox, err = get[float64](run, FixtureRelativeApprox); err != nil {
		return state, err
	}
	return state, nil
}

func (h *Harness) checkSecondRun(ctx context.Context, run *checkRun, first firstRunState, report *Report) error {
	if err := run.setup(); err != nil {
		return err
	}
	token, err := get[*contracts.Token](run, FixtureToken)
	if err != nil {
		return err
	}
	user, err := get[chain.Account](run, FixtureUser)
	if err != nil {
		return err
	}
	balance, err := token.BalanceOf(ctx, user.Address)
	if err != nil {
		return err
	}
	code, err := h.client.HasCode(ctx, first.vault)
	if err != nil {
		return err
	}
	report.add(PropertyIsolation, balance.Cmp(first.userBalanceBefore) == 0 && !code,
		"user balance %s (before first run %s, after %s), first vault deployed: %v",
		balance, first.userBalanceBefore, first.userBalanceAfter, code)

	tolerance, err := get[float64](run, FixtureRelativeApprox)
	if err != nil {
		return err
	}
	report.add(PropertyRelativeApprox,
		tolerance == first.relativeApprox && tolerance == h.cfg.RelativeApprox,
		"%g in the first run, %g in the second, configured %g", first.relativeApprox, tolerance, h.cfg.RelativeApprox)
	return nil
}

func detail(problems []string, okFormat string, args ...any) string {
	if len(problems) == 0 {
		return fmt.Sprintf(okFormat, args...)
	}
	return strings.Join(problems, "; ")
}

// Identities resolves the account fixtures inside a snapshot that is
// reverted before returning
func (h *Harness) Identities(ctx context.Context) (ids map[string]common.Address, err error) {
	if h.isClosed() {
		return nil, ErrHarnessClosed
	}
	h.setupSession(ctx, "identities")
	revert, _, err := h.isolate(ctx, "identities")
	if err != nil {
		return nil, err
	}
	defer func() {
		if revertErr := revert(ctx); revertErr != nil {
			err = errors.Join(err, revertErr)
		}
	}()

	run := h.newCheckRun(ctx, "identities")
	defer func() {
		if closeErr := run.close(ctx); closeErr != nil {
			err = errors.Join(err, closeErr)
		}
	}()

	ids = make(map[string]common.Address, len(IdentityFixtures))
	for _, name := range IdentityFixtures {
		account, err := get[chain.Account](run, name)
		if err != nil {
			return nil, err
		}
		ids[name] = account.Address
	}
	return ids, nil
}
