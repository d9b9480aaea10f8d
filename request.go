package forkfixture

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/KyberNetwork/logger"

	"github.com/tranvictor/forkfixture/artifacts"
	"github.com/tranvictor/forkfixture/chain"
	"github.com/tranvictor/forkfixture/internal/scope"
)

// Teardown undoes a fixture's side effects
type Teardown func(ctx context.Context) error

// resolution resolves fixtures for one test (or one Check run). Function
// scoped values live in its own store, session values in the harness.
// onTeardown registers function scoped teardowns (t.Cleanup in tests).
type resolution struct {
	h          *Harness
	ctx        context.Context
	label      string
	function   *scope.Store
	onTeardown func(Teardown)
}

func (h *Harness) newResolution(ctx context.Context, label string, onTeardown func(Teardown)) *resolution {
	return &resolution{
		h:          h,
		ctx:        ctx,
		label:      label,
		function:   scope.NewStore(label),
		onTeardown: onTeardown,
	}
}

func (res *resolution) resolve(name string) (any, error) {
	f, ok := res.h.registry.Lookup(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownFixture, name)
	}

	store := res.function
	if f.Scope == SessionScope {
		store = res.h.session
	}

	record, err := store.Create(name)
	switch {
	case errors.Is(err, scope.ErrInProgress):
		return nil, fmt.Errorf("%w: %s is still being set up", ErrFixtureCycle, name)
	case errors.Is(err, scope.ErrExists):
		return record.Value, record.Error
	case err != nil:
		return nil, err
	}

	start := time.Now()
	req := &Request{res: res, fixture: f}
	value, err := f.Provide(req)
	if err != nil {
		err = errors.Join(ErrFixtureFailed, fmt.Errorf("%s (%s scope): %w", name, f.Scope, err))
		if failErr := store.Fail(name, err); failErr != nil {
			return nil, errors.Join(err, failErr)
		}
		logger.WithFields(logger.Fields{
			"fixture": name,
			"scope":   f.Scope.String(),
			"test":    res.label,
			"error":   err,
		}).Error("Fixture setup failed")
		return nil, err
	}
	if err := store.Resolve(name, value); err != nil {
		return nil, err
	}

	logger.WithFields(logger.Fields{
		"fixture":  name,
		"scope":    f.Scope.String(),
		"test":     res.label,
		"duration": time.Since(start).String(),
	}).Debug("Fixture resolved")
	return value, nil
}

// Request is what a provider sees of the resolution in progress
type Request struct {
	res     *resolution
	fixture Fixture
}

// Context returns the context of the resolution
func (r *Request) Context() context.Context {
	return r.res.ctx
}

// Name returns the fixture being set up
func (r *Request) Name() string {
	return r.fixture.Name
}

// Scope returns the scope of the fixture being set up
func (r *Request) Scope() Scope {
	return r.fixture.Scope
}

// Config returns the harness configuration
func (r *Request) Config() Config {
	return r.res.h.cfg
}

// Client returns the harness chain client
func (r *Request) Client() *chain.Client {
	return r.res.h.client
}

// Resolver returns the harness artifact resolver
func (r *Request) Resolver() *artifacts.Resolver {
	return r.res.h.resolver
}

// Get resolves a dependency. Only names listed in the fixture's Requires
// may be requested.
func (r *Request) Get(name string) (any, error) {
	if !r.fixture.requires(name) {
		return nil, fmt.Errorf("%w: %s requested %s", ErrUndeclaredDependency, r.fixture.Name, name)
	}
	return r.res.resolve(name)
}

// AddTeardown registers fn to run when the fixture's scope ends: after the
// test for function fixtures, on Harness.Close for session fixtures.
// Teardowns run in reverse registration order.
func (r *Request) AddTeardown(fn Teardown) {
	if r.fixture.Scope == SessionScope {
		r.res.h.addSessionTeardown(r.fixture.Name, fn)
		return
	}
	r.res.onTeardown(fn)
}

// Dep resolves a declared dependency of type T
func Dep[T any](r *Request, name string) (T, error) {
	var zero T
	value, err := r.Get(name)
	if err != nil {
		return zero, err
	}
	typed, ok := value.(T)
	if !ok {
		return zero, fmt.Errorf("%w: %s is %T, want %T", ErrFixtureType, name, value, zero)
	}
	return typed, nil
}
