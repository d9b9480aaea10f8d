// Package circuitbreaker guards calls to the fork node. A local fork that
// died or never came up otherwise makes every fixture of every test wait on
// its own RPC timeout.
package circuitbreaker

import (
	"errors"
	"sync"
	"time"
)

// ErrOpen is returned by Guard while the breaker rejects calls.
var ErrOpen = errors.New("circuit breaker is open: fork node temporarily unavailable")

// State represents the breaker state
type State int

const (
	StateClosed   State = iota // calls reach the node
	StateOpen                  // calls fail fast
	StateHalfOpen              // a probe call is let through
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// Config holds the breaker configuration
type Config struct {
	// FailureThreshold is the number of consecutive node failures that opens the breaker
	FailureThreshold int

	// SuccessThreshold is the number of consecutive probe successes needed to close it again
	SuccessThreshold int

	// Cooldown is how long the breaker stays open before letting a probe through
	Cooldown time.Duration

	// OnStateChange is called asynchronously on every transition
	OnStateChange func(from, to State)
}

// DefaultConfig returns the configuration used for fork nodes
func DefaultConfig() Config {
	return Config{
		FailureThreshold: 5,
		SuccessThreshold: 1,
		Cooldown:         10 * time.Second,
	}
}

// Breaker implements the circuit breaker pattern for a single node
type Breaker struct {
	mu sync.Mutex

	config Config
	state  State

	failures  int
	successes int
	openedAt  time.Time

	now func() time.Time
}

// New creates a breaker, replacing non-positive config values with defaults
func New(config Config) *Breaker {
	def := DefaultConfig()
	if config.FailureThreshold <= 0 {
		config.FailureThreshold = def.FailureThreshold
	}
	if config.SuccessThreshold <= 0 {
		config.SuccessThreshold = def.SuccessThreshold
	}
	if config.Cooldown <= 0 {
		config.Cooldown = def.Cooldown
	}
	return &Breaker{
		config: config,
		state:  StateClosed,
		now:    time.Now,
	}
}

// State returns the current state
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.currentState()
}

// currentState must be called with b.mu held.
func (b *Breaker) currentState() State {
	if b.state == StateOpen && b.now().Sub(b.openedAt) >= b.config.Cooldown {
		return StateHalfOpen
	}
	return b.state
}

// Allow reports whether a call may reach the node
func (b *Breaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.currentState() != StateOpen
}

// Guard runs fn if the breaker allows it and records the outcome.
// Errors for which isNodeFailure returns false (reverts, bad arguments) count
// as successes: the node answered.
func (b *Breaker) Guard(fn func() error, isNodeFailure func(error) bool) error {
	if !b.Allow() {
		return ErrOpen
	}
	err := fn()
	if err != nil && (isNodeFailure == nil || isNodeFailure(err)) {
		b.RecordFailure()
		return err
	}
	b.RecordSuccess()
	return err
}

// RecordSuccess records a call the node answered
func (b *Breaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.failures = 0
	b.successes++
	if b.currentState() == StateHalfOpen && b.successes >= b.config.SuccessThreshold {
		b.setState(StateClosed)
		b.successes = 0
	}
}

// RecordFailure records a call the node did not answer
func (b *Breaker) RecordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.successes = 0
	b.failures++

	switch b.currentState() {
	case StateClosed:
		if b.failures >= b.config.FailureThreshold {
			b.openedAt = b.now()
			b.setState(StateOpen)
		}
	default:
		// failed probe, or a call that raced the transition: restart the cooldown
		b.openedAt = b.now()
	}
}

// Reset closes the breaker and clears the counters
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.failures = 0
	b.successes = 0
	b.setState(StateClosed)
}

func (b *Breaker) setState(newState State) {
	if b.state == newState {
		return
	}
	oldState := b.state
	b.state = newState
	if b.config.OnStateChange != nil {
		go b.config.OnStateChange(oldState, newState)
	}
}

// Stats is a point-in-time view of the breaker
type Stats struct {
	State               State
	ConsecutiveFailures int
	OpenedAt            time.Time
}

// Stats returns the current statistics
func (b *Breaker) Stats() Stats {
	b.mu.Lock()
	defer b.mu.Unlock()
	return Stats{
		State:               b.currentState(),
		ConsecutiveFailures: b.failures,
		OpenedAt:            b.openedAt,
	}
}
