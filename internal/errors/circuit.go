package errors

import (
	"errors"
	"sync"
	"time"
)

// ErrCircuitOpen is returned when calls are refused because the breaker
// tripped and its cool-off period has not elapsed yet.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// State is the breaker state. An open breaker refuses calls until the
// cool-off elapses, then admits probe calls half-open until one succeeds.
type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
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

// CircuitBreaker trips after a run of consecutive failures and refuses
// further calls for a cool-off period, so a dead embedding service fails
// fast instead of stacking timeouts on every batch.
type CircuitBreaker struct {
	name        string
	maxFailures int
	coolOff     time.Duration

	mu        sync.Mutex
	failures  int
	tripped   bool
	trippedAt time.Time
}

// CircuitBreakerOption configures a CircuitBreaker.
type CircuitBreakerOption func(*CircuitBreaker)

// WithMaxFailures sets how many consecutive failures trip the breaker.
func WithMaxFailures(n int) CircuitBreakerOption {
	return func(cb *CircuitBreaker) { cb.maxFailures = n }
}

// WithResetTimeout sets the cool-off before probe calls are admitted again.
func WithResetTimeout(d time.Duration) CircuitBreakerOption {
	return func(cb *CircuitBreaker) { cb.coolOff = d }
}

// NewCircuitBreaker creates a breaker named for the guarded service.
// Defaults: 5 consecutive failures, 30 second cool-off.
func NewCircuitBreaker(name string, opts ...CircuitBreakerOption) *CircuitBreaker {
	cb := &CircuitBreaker{
		name:        name,
		maxFailures: 5,
		coolOff:     30 * time.Second,
	}
	for _, opt := range opts {
		opt(cb)
	}
	return cb
}

// Name returns the name of the guarded service.
func (cb *CircuitBreaker) Name() string {
	return cb.name
}

// State returns the current breaker state.
func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state()
}

// state must be called with the lock held.
func (cb *CircuitBreaker) state() State {
	if !cb.tripped {
		return StateClosed
	}
	if time.Since(cb.trippedAt) > cb.coolOff {
		return StateHalfOpen
	}
	return StateOpen
}

// Failures returns the current consecutive-failure count.
func (cb *CircuitBreaker) Failures() int {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.failures
}

// Allow reports whether a call may proceed. Closed and half-open admit
// calls; open refuses them.
func (cb *CircuitBreaker) Allow() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state() != StateOpen
}

// RecordSuccess closes the breaker and clears the failure count.
func (cb *CircuitBreaker) RecordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.failures = 0
	cb.tripped = false
}

// RecordFailure counts a failure. Reaching the threshold trips the breaker;
// a failed half-open probe restarts the cool-off.
func (cb *CircuitBreaker) RecordFailure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.failures++
	if cb.failures >= cb.maxFailures {
		cb.tripped = true
		cb.trippedAt = time.Now()
	}
}
