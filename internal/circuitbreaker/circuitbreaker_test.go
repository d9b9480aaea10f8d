package circuitbreaker

import (
	"errors"
	"testing"
	"time"
)

var errNodeDown = errors.New("dial tcp 127.0.0.1:8545: connect: connection refused")

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestBreaker(cfg Config) (*Breaker, *fakeClock) {
	clock := &fakeClock{t: time.Unix(1_700_000_000, 0)}
	b := New(cfg)
	b.now = clock.now
	return b, clock
}

func TestNew(t *testing.T) {
	t.Run("starts closed", func(t *testing.T) {
		b := New(DefaultConfig())
		if b.State() != StateClosed {
			t.Errorf("expected closed, got %v", b.State())
		}
	})

	t.Run("invalid config values corrected", func(t *testing.T) {
		b := New(Config{FailureThreshold: 0, SuccessThreshold: -1})
		def := DefaultConfig()
		if b.config.FailureThreshold != def.FailureThreshold {
			t.Errorf("expected FailureThreshold %d, got %d", def.FailureThreshold, b.config.FailureThreshold)
		}
		if b.config.SuccessThreshold != def.SuccessThreshold {
			t.Errorf("expected SuccessThreshold %d, got %d", def.SuccessThreshold, b.config.SuccessThreshold)
		}
		if b.config.Cooldown != def.Cooldown {
			t.Errorf("expected Cooldown %v, got %v", def.Cooldown, b.config.Cooldown)
		}
	})
}

func TestStateString(t *testing.T) {
	tests := []struct {
		state    State
		expected string
	}{
		{StateClosed, "closed"},
		{StateOpen, "open"},
		{StateHalfOpen, "half-open"},
		{State(42), "unknown"},
	}
	for _, tt := range tests {
		if got := tt.state.String(); got != tt.expected {
			t.Errorf("State(%d).String() = %q, expected %q", tt.state, got, tt.expected)
		}
	}
}

func TestGuard(t *testing.T) {
	t.Run("opens after consecutive node failures", func(t *testing.T) {
		b, _ := newTestBreaker(Config{FailureThreshold: 2, Cooldown: time.Minute})
		fail := func() error { return errNodeDown }

		_ = b.Guard(fail, nil)
		if b.State() != StateClosed {
			t.Fatalf("expected closed after one failure, got %v", b.State())
		}
		_ = b.Guard(fail, nil)
		if b.State() != StateOpen {
			t.Fatalf("expected open after two failures, got %v", b.State())
		}

		called := false
		err := b.Guard(func() error { called = true; return nil }, nil)
		if !errors.Is(err, ErrOpen) {
			t.Errorf("expected ErrOpen, got %v", err)
		}
		if called {
			t.Error("guarded function must not run while open")
		}
	})

	t.Run("answered errors do not count as failures", func(t *testing.T) {
		b, _ := newTestBreaker(Config{FailureThreshold: 1})
		reverted := errors.New("execution reverted")
		err := b.Guard(func() error { return reverted }, func(err error) bool { return err == errNodeDown })
		if err != reverted {
			t.Errorf("expected the call error back, got %v", err)
		}
		if b.State() != StateClosed {
			t.Errorf("expected closed, got %v", b.State())
		}
	})

	t.Run("probe after cooldown closes the breaker", func(t *testing.T) {
		b, clock := newTestBreaker(Config{FailureThreshold: 1, SuccessThreshold: 1, Cooldown: time.Minute})
		_ = b.Guard(func() error { return errNodeDown }, nil)
		if b.State() != StateOpen {
			t.Fatalf("expected open, got %v", b.State())
		}

		clock.advance(time.Minute)
		if b.State() != StateHalfOpen {
			t.Fatalf("expected half-open after cooldown, got %v", b.State())
		}
		if err := b.Guard(func() error { return nil }, nil); err != nil {
			t.Fatalf("unexpected probe error: %v", err)
		}
		if b.State() != StateClosed {
			t.Errorf("expected closed after successful probe, got %v", b.State())
		}
	})

	t.Run("failed probe restarts cooldown", func(t *testing.T) {
		b, clock := newTestBreaker(Config{FailureThreshold: 1, Cooldown: time.Minute})
		_ = b.Guard(func() error { return errNodeDown }, nil)

		clock.advance(time.Minute)
		_ = b.Guard(func() error { return errNodeDown }, nil)
		if b.State() != StateOpen {
			t.Fatalf("expected open after failed probe, got %v", b.State())
		}

		clock.advance(30 * time.Second)
		if b.Allow() {
			t.Error("expected calls rejected during restarted cooldown")
		}
	})
}

func TestReset(t *testing.T) {
	b, _ := newTestBreaker(Config{FailureThreshold: 1, Cooldown: time.Hour})
	b.RecordFailure()
	if b.State() != StateOpen {
		t.Fatalf("expected open, got %v", b.State())
	}
	b.Reset()
	stats := b.Stats()
	if stats.State != StateClosed || stats.ConsecutiveFailures != 0 {
		t.Errorf("expected closed with no failures, got %+v", stats)
	}
}

func TestOnStateChange(t *testing.T) {
	changes := make(chan [2]State, 4)
	b, _ := newTestBreaker(Config{
		FailureThreshold: 1,
		Cooldown:         time.Hour,
		OnStateChange:    func(from, to State) { changes <- [2]State{from, to} },
	})
	b.RecordFailure()

	select {
	case c := <-changes:
		if c[0] != StateClosed || c[1] != StateOpen {
			t.Errorf("expected closed->open, got %v->%v", c[0], c[1])
		}
	case <-time.After(time.Second):
		t.Fatal("expected a state change callback")
	}
}
