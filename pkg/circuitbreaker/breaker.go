package circuitbreaker

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
)

var ErrCircuitOpen = errors.New("circuit breaker is open")

type State int

const (
	StateClosed State = iota
	StateHalfOpen
	StateOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateHalfOpen:
		return "half-open"
	case StateOpen:
		return "open"
	default:
		return "unknown"
	}
}

type Config struct {
	// MaxRequests bounds how many probe requests may run half-open.
	MaxRequests uint32
	// Interval resets the failure counter while closed.
	Interval time.Duration
	// Timeout is how long the breaker stays open before probing.
	Timeout          time.Duration
	FailureThreshold uint32
	SuccessThreshold uint32
	Logger           *zap.Logger
}

// CircuitBreaker stops calling a failing upstream after FailureThreshold
// consecutive failures and lets a bounded number of probes through after
// Timeout. SuccessThreshold consecutive probe successes close it again.
type CircuitBreaker struct {
	name string
	cfg  Config

	mu           sync.Mutex
	state        State
	failures     uint32
	successes    uint32
	inflight     uint32
	lastReset    time.Time
	openedAt     time.Time
}

func NewCircuitBreaker(name string, cfg Config) *CircuitBreaker {
	if cfg.MaxRequests == 0 {
		cfg.MaxRequests = 1
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 60 * time.Second
	}
	if cfg.FailureThreshold == 0 {
		cfg.FailureThreshold = 5
	}
	if cfg.SuccessThreshold == 0 {
		cfg.SuccessThreshold = 2
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	return &CircuitBreaker{
		name:      name,
		cfg:       cfg,
		lastReset: time.Now(),
	}
}

func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.advance(time.Now())
	return cb.state
}

// Execute runs fn unless the breaker is open. fn's error feeds the breaker's
// state; context errors from a cancelled parent count as failures too, since
// they usually mean the upstream timed out.
func (cb *CircuitBreaker) Execute(ctx context.Context, fn func() error) error {
	if err := cb.admit(); err != nil {
		return err
	}

	err := fn()
	cb.settle(err == nil)
	return err
}

func (cb *CircuitBreaker) admit() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	now := time.Now()
	cb.advance(now)

	switch cb.state {
	case StateOpen:
		return ErrCircuitOpen
	case StateHalfOpen:
		if cb.inflight >= cb.cfg.MaxRequests {
			return ErrCircuitOpen
		}
	}
	cb.inflight++
	return nil
}

func (cb *CircuitBreaker) settle(success bool) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.inflight > 0 {
		cb.inflight--
	}

	if success {
		cb.failures = 0
		if cb.state == StateHalfOpen {
			cb.successes++
			if cb.successes >= cb.cfg.SuccessThreshold {
				cb.transition(StateClosed)
			}
		}
		return
	}

	cb.successes = 0
	if cb.state == StateHalfOpen {
		cb.transition(StateOpen)
		return
	}
	cb.failures++
	if cb.failures >= cb.cfg.FailureThreshold {
		cb.transition(StateOpen)
	}
}

// advance applies time-driven transitions. Callers hold the lock.
func (cb *CircuitBreaker) advance(now time.Time) {
	switch cb.state {
	case StateClosed:
		if cb.cfg.Interval > 0 && now.Sub(cb.lastReset) > cb.cfg.Interval {
			cb.failures = 0
			cb.lastReset = now
		}
	case StateOpen:
		if now.Sub(cb.openedAt) > cb.cfg.Timeout {
			cb.transition(StateHalfOpen)
		}
	}
}

func (cb *CircuitBreaker) transition(to State) {
	if cb.state == to {
		return
	}
	from := cb.state
	cb.state = to
	cb.failures = 0
	cb.successes = 0
	cb.inflight = 0
	cb.lastReset = time.Now()
	if to == StateOpen {
		cb.openedAt = time.Now()
	}

	cb.cfg.Logger.Warn("Circuit breaker state change",
		zap.String("name", cb.name),
		zap.String("from", from.String()),
		zap.String("to", to.String()),
	)
}
