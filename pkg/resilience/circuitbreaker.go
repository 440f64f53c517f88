// Package resilience guards calls to the optional backing services (Redis,
// Kafka, PostgreSQL) so that their failure degrades the search path instead
// of breaking it.
package resilience

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// ErrCircuitOpen is returned without calling through while a breaker is
// open or its half-open probe slots are taken.
var ErrCircuitOpen = errors.New("circuit breaker is open")

type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

var stateNames = map[State]string{
	StateClosed:   "closed",
	StateOpen:     "open",
	StateHalfOpen: "half-open",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return "unknown"
}

// CircuitBreakerConfig controls when a breaker trips and how it recovers.
// Zero fields take defaults. OnStateChange, if set, runs with the breaker
// lock held and must not call back into the breaker.
type CircuitBreakerConfig struct {
	FailureThreshold    int
	ResetTimeout        time.Duration
	HalfOpenMaxRequests int
	OnStateChange       func(name string, from, to State)
}

func (c CircuitBreakerConfig) withDefaults() CircuitBreakerConfig {
	if c.FailureThreshold <= 0 {
		c.FailureThreshold = 5
	}
	if c.ResetTimeout <= 0 {
		c.ResetTimeout = 30 * time.Second
	}
	if c.HalfOpenMaxRequests <= 0 {
		c.HalfOpenMaxRequests = 1
	}
	return c
}

// CircuitBreaker opens after FailureThreshold consecutive failures. Once
// ResetTimeout has passed it lets HalfOpenMaxRequests probes through; one
// success closes it again and one failure reopens it.
type CircuitBreaker struct {
	name   string
	cfg    CircuitBreakerConfig
	logger *slog.Logger

	mu       sync.Mutex
	state    State
	failures int
	openedAt time.Time
	probes   int
}

func NewCircuitBreaker(name string, cfg CircuitBreakerConfig) *CircuitBreaker {
	return &CircuitBreaker{
		name:   name,
		cfg:    cfg.withDefaults(),
		logger: slog.Default().With("component", "circuit-breaker", "name", name),
	}
}

// Execute runs fn if the breaker admits the call and records the outcome.
func (cb *CircuitBreaker) Execute(fn func() error) error {
	if err := cb.admit(); err != nil {
		return err
	}
	err := fn()
	cb.record(err)
	return err
}

func (cb *CircuitBreaker) GetState() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// Reset closes the breaker and clears its counters.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.transition(StateClosed)
	cb.failures = 0
	cb.probes = 0
	cb.logger.Info("circuit manually reset")
}

func (cb *CircuitBreaker) admit() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	switch cb.state {
	case StateOpen:
		wait := cb.cfg.ResetTimeout - time.Since(cb.openedAt)
		if wait > 0 {
			return fmt.Errorf("%w: %s (retry after %v)", ErrCircuitOpen, cb.name, wait.Round(time.Millisecond))
		}
		cb.transition(StateHalfOpen)
		cb.probes = 1
		cb.logger.Info("circuit half-open, probing")
	case StateHalfOpen:
		if cb.probes >= cb.cfg.HalfOpenMaxRequests {
			return fmt.Errorf("%w: %s (probe in flight)", ErrCircuitOpen, cb.name)
		}
		cb.probes++
	}
	return nil
}

func (cb *CircuitBreaker) record(err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	if err == nil {
		cb.failures = 0
		if cb.state == StateHalfOpen {
			cb.transition(StateClosed)
			cb.probes = 0
			cb.logger.Info("circuit closed after successful probe")
		}
		return
	}

	cb.failures++
	switch {
	case cb.state == StateHalfOpen:
		cb.trip()
		cb.logger.Warn("probe failed, circuit reopened", "error", err)
	case cb.state == StateClosed && cb.failures >= cb.cfg.FailureThreshold:
		cb.trip()
		cb.logger.Warn("circuit opened", "consecutive_failures", cb.failures, "error", err)
	}
}

func (cb *CircuitBreaker) trip() {
	cb.openedAt = time.Now()
	cb.transition(StateOpen)
}

func (cb *CircuitBreaker) transition(to State) {
	from := cb.state
	cb.state = to
	if from != to && cb.cfg.OnStateChange != nil {
		cb.cfg.OnStateChange(cb.name, from, to)
	}
}
