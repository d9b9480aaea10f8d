// Package forkfixture is a fixture harness for Go tests driving a Yearn v2
// vault and a Beethoven-X farming strategy on a forked EVM chain (anvil or
// hardhat started with --fork-url).
//
// Fixtures are named setup routines declaring the fixtures they require.
// Tests ask a Harness for fixtures by name; each is set up lazily, once per
// test or once per session, and every test runs inside a snapshot of the
// fork that is reverted when it ends.
//
//	func TestDeposit(t *testing.T) {
//	    fx := h.Setup(t)
//	    vault, user, amount := fx.Vault(), fx.User(), fx.Amount()
//	    // ...
//	}
package forkfixture

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/KyberNetwork/logger"

	"github.com/tranvictor/forkfixture/artifacts"
	"github.com/tranvictor/forkfixture/chain"
	"github.com/tranvictor/forkfixture/internal/scope"
	"github.com/tranvictor/forkfixture/internal/snapshot"
)

// Harness owns the fork connection, the fixture registry and the session
// scoped fixture values
type Harness struct {
	cfg       Config
	client    *chain.Client
	resolver  *artifacts.Resolver
	registry  *Registry
	session   *scope.Store
	snapshots *snapshot.Tracker

	mu               sync.Mutex
	closed           bool
	sessionTeardowns []namedTeardown
	closers          []func()
}

type namedTeardown struct {
	fixture string
	fn      Teardown
}

// Option configures a Harness
type Option func(*options)

type options struct {
	registry   *Registry
	fixtures   []Fixture
	clientOpts []chain.ClientOption
	resolver   *artifacts.Resolver
}

// WithRegistry replaces the default fixtures with r
func WithRegistry(r *Registry) Option {
	return func(o *options) {
		o.registry = r
	}
}

// WithFixtures adds fixtures, overriding registered ones with the same name
func WithFixtures(fixtures ...Fixture) Option {
	return func(o *options) {
		o.fixtures = append(o.fixtures, fixtures...)
	}
}

// WithClientOptions configures the chain client
func WithClientOptions(opts ...chain.ClientOption) Option {
	return func(o *options) {
		o.clientOpts = append(o.clientOpts, opts...)
	}
}

// WithResolver sets the artifact resolver instead of one built from the
// config paths
func WithResolver(r *artifacts.Resolver) Option {
	return func(o *options) {
		o.resolver = r
	}
}

// New creates a Harness over an existing backend
func New(cfg Config, backend chain.Backend, opts ...Option) (*Harness, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}

	clientOpts := append([]chain.ClientOption{
		chain.WithReceiptTimeout(cfg.Fork.ReceiptTimeout),
		chain.WithPollInterval(cfg.Fork.PollInterval),
	}, o.clientOpts...)

	registry := o.registry
	if registry == nil {
		registry = NewRegistry()
		if err := registry.Register(DefaultFixtures()...); err != nil {
			return nil, err
		}
	}
	for _, f := range o.fixtures {
		err := registry.Override(f)
		if errors.Is(err, ErrUnknownFixture) {
			err = registry.Register(f)
		}
		if err != nil {
			return nil, err
		}
	}
	if err := registry.Validate(); err != nil {
		return nil, err
	}

	resolver := o.resolver
	if resolver == nil {
		resolver = artifacts.NewResolver(cfg.Paths.Packages, cfg.Paths.Build)
	}

	return &Harness{
		cfg:       cfg,
		client:    chain.NewClient(backend, clientOpts...),
		resolver:  resolver,
		registry:  registry,
		session:   scope.NewStore("session"),
		snapshots: snapshot.NewTracker(),
	}, nil
}

// Dial connects to the fork node of cfg and creates a Harness over it
func Dial(ctx context.Context, cfg Config, opts ...Option) (*Harness, error) {
	flavor, err := chain.ParseFlavor(cfg.Fork.Flavor)
	if err != nil {
		return nil, errors.Join(ErrInvalidConfig, err)
	}
	backend, err := chain.DialRPC(ctx, cfg.Fork.RPCURL, chain.WithFlavor(flavor))
	if err != nil {
		return nil, err
	}
	h, err := New(cfg, backend, opts...)
	if err != nil {
		backend.Close()
		return nil, err
	}
	h.closers = append(h.closers, backend.Close)

	chainID, err := h.client.ChainID(ctx)
	if err != nil {
		_ = h.Close(ctx)
		return nil, err
	}
	logger.WithFields(logger.Fields{
		"rpc_url":  cfg.Fork.RPCURL,
		"flavor":   string(flavor),
		"chain_id": chainID,
		"network":  h.client.Network(ctx),
	}).Info("Connected to fork")
	return h, nil
}

// Config returns the harness configuration
func (h *Harness) Config() Config {
	return h.cfg
}

// Client returns the chain client
func (h *Harness) Client() *chain.Client {
	return h.client
}

// Registry returns the fixture registry
func (h *Harness) Registry() *Registry {
	return h.registry
}

// Resolver returns the artifact resolver
func (h *Harness) Resolver() *artifacts.Resolver {
	return h.resolver
}

func (h *Harness) isClosed() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.closed
}

func (h *Harness) addSessionTeardown(fixture string, fn Teardown) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.sessionTeardowns = append(h.sessionTeardowns, namedTeardown{fixture: fixture, fn: fn})
}

// Close runs the session teardowns in reverse order and releases the fork
// connection. Every teardown runs even when an earlier one fails.
func (h *Harness) Close(ctx context.Context) error {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil
	}
	h.closed = true
	teardowns := h.sessionTeardowns
	closers := h.closers
	h.sessionTeardowns = nil
	h.closers = nil
	h.mu.Unlock()

	var errs []error
	for i := len(teardowns) - 1; i >= 0; i-- {
		if err := teardowns[i].fn(ctx); err != nil {
			errs = append(errs, fmt.Errorf("teardown of %s: %w", teardowns[i].fixture, err))
		}
	}
	for i := len(closers) - 1; i >= 0; i-- {
		closers[i]()
	}
	return errors.Join(errs...)
}

// Setup starts fixture resolution for t. Session fixtures are set up first,
// outside the test's isolation snapshot, so the revert at the end of the test
// keeps their chain state. Autouse fixtures follow; the isolation snapshot is
// therefore taken before any function fixture touches the fork. Function
// scoped teardowns run on t.Cleanup.
func (h *Harness) Setup(t testing.TB) *Fixtures {
	t.Helper()
	if h.isClosed() {
		t.Fatalf("forkfixture: %v", ErrHarnessClosed)
	}

	ctx := context.Background()
	h.setupSession(ctx, t.Name())
	res := h.newResolution(ctx, t.Name(), func(fn Teardown) {
		t.Cleanup(func() {
			if err := fn(context.Background()); err != nil {
				t.Errorf("forkfixture: teardown: %v", err)
			}
		})
	})
	for _, name := range h.registry.Autouse() {
		if _, err := res.resolve(name); err != nil {
			t.Fatalf("forkfixture: autouse fixture %s: %v", name, err)
		}
	}
	return &Fixtures{t: t, res: res}
}

// ModuleIsolation snapshots the fork until t ends, so state set up by a
// parent test and shared by its subtests does not leak past it
func (h *Harness) ModuleIsolation(t testing.TB) {
	t.Helper()
	h.setupSession(context.Background(), "module:"+t.Name())
	revert, _, err := h.isolate(context.Background(), "module:"+t.Name())
	if err != nil {
		t.Fatalf("forkfixture: module isolation: %v", err)
	}
	t.Cleanup(func() {
		if err := revert(context.Background()); err != nil {
			t.Errorf("forkfixture: module isolation: %v", err)
		}
	})
}

// setupSession sets up every session fixture that is not set up yet.
// Failures are cached and reported to the tests requesting the fixture.
func (h *Harness) setupSession(ctx context.Context, label string) {
	res := h.newResolution(ctx, "session:"+label, func(Teardown) {})
	for _, name := range h.registry.Session() {
		_, _ = res.resolve(name)
	}
}

// isolate snapshots the fork and returns the teardown reverting it. Snapshots
// must be reverted innermost first.
func (h *Harness) isolate(ctx context.Context, label string) (Teardown, string, error) {
	chainID, err := h.client.ChainID(ctx)
	if err != nil {
		return nil, "", err
	}
	id, err := h.client.Snapshot(ctx)
	if err != nil {
		return nil, "", err
	}
	depth := h.snapshots.Push(chainID, id, label)
	logger.WithFields(logger.Fields{
		"chain_id":    chainID,
		"snapshot_id": id,
		"scope":       label,
		"depth":       depth,
	}).Debug("Snapshot taken")

	revert := func(ctx context.Context) error {
		if err := h.snapshots.CheckRevert(chainID, id); err != nil {
			return fmt.Errorf("snapshot %s of %s: %w", id, label, err)
		}
		if err := h.client.Revert(ctx, id); err != nil {
			return err
		}
		logger.WithFields(logger.Fields{
			"chain_id":    chainID,
			"snapshot_id": id,
			"scope":       label,
		}).Debug("Reverted to snapshot")
		return h.snapshots.Pop(chainID, id)
	}
	return revert, id, nil
}
