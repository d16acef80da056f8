package llm

import (
	"sync"
	"time"
)

// BreakerState is the state of a CircuitBreaker.
type BreakerState int

const (
	// BreakerClosed lets calls through.
	BreakerClosed BreakerState = iota
	// BreakerOpen rejects calls until the reset timeout elapses.
	BreakerOpen
	// BreakerHalfOpen lets probe calls through.
	BreakerHalfOpen
)

func (s BreakerState) String() string {
	switch s {
	case BreakerClosed:
		return "closed"
	case BreakerOpen:
		return "open"
	case BreakerHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// CircuitBreaker tracks the health of one model.
// Closed → Open after failureThreshold consecutive failures;
// Open → HalfOpen once resetTimeout has elapsed;
// HalfOpen → Closed after halfOpenMax successes, or back to Open on any failure.
type CircuitBreaker struct {
	mu sync.Mutex

	state            BreakerState
	failureThreshold int
	resetTimeout     time.Duration
	halfOpenMax      int

	consecutiveFailures int
	halfOpenSuccesses   int
	lastFailureTime     time.Time
	now                 func() time.Time
}

// NewCircuitBreaker creates a closed breaker.
func NewCircuitBreaker(failureThreshold int, resetTimeout time.Duration, halfOpenMax int) *CircuitBreaker {
	if halfOpenMax < 1 {
		halfOpenMax = 1
	}
	return &CircuitBreaker{
		state:            BreakerClosed,
		failureThreshold: failureThreshold,
		resetTimeout:     resetTimeout,
		halfOpenMax:      halfOpenMax,
		now:              time.Now,
	}
}

// Allow reports whether a call may proceed, moving Open to HalfOpen once
// the reset timeout has passed.
func (cb *CircuitBreaker) Allow() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case BreakerOpen:
		if cb.now().Sub(cb.lastFailureTime) >= cb.resetTimeout {
			cb.state = BreakerHalfOpen
			cb.halfOpenSuccesses = 0
			return true
		}
		return false
	default:
		return true
	}
}

// RecordSuccess records a successful call.
func (cb *CircuitBreaker) RecordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.consecutiveFailures = 0
	if cb.state == BreakerHalfOpen {
		cb.halfOpenSuccesses++
		if cb.halfOpenSuccesses >= cb.halfOpenMax {
			cb.state = BreakerClosed
		}
	}
}

// RecordFailure records a failed call.
func (cb *CircuitBreaker) RecordFailure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.consecutiveFailures++
	cb.lastFailureTime = cb.now()

	switch cb.state {
	case BreakerClosed:
		if cb.consecutiveFailures >= cb.failureThreshold {
			cb.state = BreakerOpen
		}
	case BreakerHalfOpen:
		cb.state = BreakerOpen
		cb.halfOpenSuccesses = 0
	}
}

// State returns the current state.
func (cb *CircuitBreaker) State() BreakerState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// BreakerRegistry holds one lazily created CircuitBreaker per model. It is
// shared by every session so that an outage seen by one user benefits all.
type BreakerRegistry struct {
	mu sync.Mutex

	breakers         map[Model]*CircuitBreaker
	failureThreshold int
	resetTimeout     time.Duration
	halfOpenMax      int
	now              func() time.Time
}

// NewBreakerRegistry creates a registry whose breakers use the given
// parameters.
func NewBreakerRegistry(failureThreshold int, resetTimeout time.Duration, halfOpenMax int) *BreakerRegistry {
	return &BreakerRegistry{
		breakers:         make(map[Model]*CircuitBreaker),
		failureThreshold: failureThreshold,
		resetTimeout:     resetTimeout,
		halfOpenMax:      halfOpenMax,
		now:              time.Now,
	}
}

// SetClock replaces the time source for breakers created afterwards.
func (r *BreakerRegistry) SetClock(now func() time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.now = now
}

// Get returns the breaker for m, creating it on first use.
func (r *BreakerRegistry) Get(m Model) *CircuitBreaker {
	r.mu.Lock()
	defer r.mu.Unlock()

	cb, ok := r.breakers[m]
	if !ok {
		cb = NewCircuitBreaker(r.failureThreshold, r.resetTimeout, r.halfOpenMax)
		cb.now = r.now
		r.breakers[m] = cb
	}
	return cb
}

// States returns the state of every breaker created so far, keyed by model.
func (r *BreakerRegistry) States() map[string]string {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make(map[string]string, len(r.breakers))
	for m, cb := range r.breakers {
		out[m.String()] = cb.State().String()
	}
	return out
}
