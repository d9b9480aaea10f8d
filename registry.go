package forkfixture

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

// Provider produces a fixture value. It reaches its declared dependencies
// through the request.
type Provider func(r *Request) (any, error)

// Fixture is a named setup routine
type Fixture struct {
	Name     string
	Scope    Scope
	Autouse  bool
	Requires []string
	Provide  Provider
}

func (f Fixture) requires(name string) bool {
	for _, dep := range f.Requires {
		if dep == name {
			return true
		}
	}
	return false
}

// Registry holds fixture definitions by name
type Registry struct {
	mu       sync.RWMutex
	fixtures map[string]Fixture
	order    []string
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{
		fixtures: map[string]Fixture{},
	}
}

// Register adds fixtures, failing on duplicate names
func (r *Registry) Register(fixtures ...Fixture) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, f := range fixtures {
		if err := checkDefinition(f); err != nil {
			return err
		}
		if _, exists := r.fixtures[f.Name]; exists {
			return fmt.Errorf("%w: %s", ErrDuplicateFixture, f.Name)
		}
		r.fixtures[f.Name] = f
		r.order = append(r.order, f.Name)
	}
	return nil
}

// Override replaces the definition of an existing fixture, keeping its
// registration order
func (r *Registry) Override(f Fixture) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := checkDefinition(f); err != nil {
		return err
	}
	if _, exists := r.fixtures[f.Name]; !exists {
		return fmt.Errorf("%w: %s", ErrUnknownFixture, f.Name)
	}
	r.fixtures[f.Name] = f
	return nil
}

func checkDefinition(f Fixture) error {
	if f.Name == "" {
		return fmt.Errorf("%w: empty name", ErrInvalidFixture)
	}
	if f.Provide == nil {
		return fmt.Errorf("%w: %s has no provider", ErrInvalidFixture, f.Name)
	}
	if f.Autouse && f.Scope != FunctionScope {
		return fmt.Errorf("%w: autouse fixture %s must be function scoped", ErrInvalidFixture, f.Name)
	}
	return nil
}

// Lookup returns the fixture called name
func (r *Registry) Lookup(name string) (Fixture, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.fixtures[name]
	return f, ok
}

// Names returns every fixture name, sorted
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := append([]string(nil), r.order...)
	sort.Strings(names)
	return names
}

// Autouse returns the autouse fixtures in registration order
func (r *Registry) Autouse() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var names []string
	for _, name := range r.order {
		if r.fixtures[name].Autouse {
			names = append(names, name)
		}
	}
	return names
}

// Session returns the session fixtures in registration order
func (r *Registry) Session() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var names []string
	for _, name := range r.order {
		if r.fixtures[name].Scope == SessionScope {
			names = append(names, name)
		}
	}
	return names
}

// Validate checks the dependency graph: every requirement is registered,
// session fixtures only require session fixtures, and there are no cycles.
// Every problem found is reported.
func (r *Registry) Validate() error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var errs []error
	for _, name := range r.order {
		f := r.fixtures[name]
		for _, dep := range f.Requires {
			d, ok := r.fixtures[dep]
			if !ok {
				errs = append(errs, fmt.Errorf("%w: %s requires %s", ErrUnknownFixture, name, dep))
				continue
			}
			if f.Scope == SessionScope && d.Scope == FunctionScope {
				errs = append(errs, fmt.Errorf("%w: %s requires %s", ErrScopeMismatch, name, dep))
			}
		}
	}
	if _, err := r.sortLocked(r.order); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// Order returns names and their transitive requirements, dependencies first
func (r *Registry) Order(names ...string) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.sortLocked(names)
}

func (r *Registry) sortLocked(names []string) ([]string, error) {
	const (
		visiting = 1
		done     = 2
	)
	state := map[string]int{}
	var out []string

	var visit func(name string, path []string) error
	visit = func(name string, path []string) error {
		switch state[name] {
		case done:
			return nil
		case visiting:
			return fmt.Errorf("%w: %v", ErrFixtureCycle, append(path, name))
		}
		f, ok := r.fixtures[name]
		if !ok {
			// reported by Validate with the requiring fixture
			state[name] = done
			return nil
		}
		state[name] = visiting
		for _, dep := range f.Requires {
			if err := visit(dep, append(path, name)); err != nil {
				return err
			}
		}
		state[name] = done
		out = append(out, name)
		return nil
	}

	for _, name := range names {
		if _, ok := r.fixtures[name]; !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownFixture, name)
		}
		if err := visit(name, nil); err != nil {
			return nil, err
		}
	}
	return out, nil
}
