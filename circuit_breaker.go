package jsonable

import (
	"context"
	"sync"
	"time"
)

// Circuit breaker states
const (
	BreakerClosed   = "closed"
	BreakerOpen     = "open"
	BreakerHalfOpen = "half-open"
)

// CircuitBreaker fails fast once a dependency keeps failing.
//
// After maxFailures consecutive failures it opens and rejects calls with
// ErrBackendUnavailable. Once resetTimeout has passed one call is let through
// (half-open) and every other call is rejected until it returns; success
// closes the circuit again, failure reopens it.
type CircuitBreaker struct {
	mu            sync.RWMutex
	maxFailures   int
	resetTimeout  time.Duration
	failures      int
	lastFailTime  time.Time
	state         string
	probing       bool // half-open call in flight
	onStateChange func(from, to string)
}

// NewCircuitBreaker creates a closed circuit breaker.
//
// Example:
//
//	cb := NewCircuitBreaker(5, 30*time.Second)
//	err := cb.Execute(ctx, func() error {
//	    return backend.Put(ctx, key, data)
//	})
func NewCircuitBreaker(maxFailures int, resetTimeout time.Duration) *CircuitBreaker {
	if maxFailures < 1 {
		maxFailures = 1
	}
	return &CircuitBreaker{
		maxFailures:  maxFailures,
		resetTimeout: resetTimeout,
		state:        BreakerClosed,
	}
}

// WithStateChangeCallback registers fn for state transitions
func (cb *CircuitBreaker) WithStateChangeCallback(fn func(from, to string)) *CircuitBreaker {
	cb.onStateChange = fn
	return cb
}

// Execute runs fn unless the circuit is open
func (cb *CircuitBreaker) Execute(ctx context.Context, fn func() error) error {
	if !cb.allow() {
		return WithContext(ErrBackendUnavailable, map[string]interface{}{
			"reason": "circuit breaker is open",
			"state":  cb.State(),
		})
	}

	err := fn()
	cb.recordResult(err)
	return err
}

func (cb *CircuitBreaker) allow() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case BreakerOpen:
		if time.Since(cb.lastFailTime) <= cb.resetTimeout {
			return false
		}
		cb.setState(BreakerHalfOpen)
		cb.probing = true
		return true
	case BreakerHalfOpen:
		if cb.probing {
			return false
		}
		cb.probing = true
		return true
	}
	return true
}

func (cb *CircuitBreaker) recordResult(err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.probing = false
	if err != nil {
		cb.failures++
		cb.lastFailTime = time.Now()
		if cb.state == BreakerHalfOpen || (cb.failures >= cb.maxFailures && cb.state != BreakerOpen) {
			cb.setState(BreakerOpen)
		}
		return
	}

	cb.failures = 0
	if cb.state == BreakerHalfOpen {
		cb.setState(BreakerClosed)
	}
}

func (cb *CircuitBreaker) setState(newState string) {
	oldState := cb.state
	cb.state = newState
	if cb.onStateChange != nil && oldState != newState {
		cb.onStateChange(oldState, newState)
	}
}

// State returns the current state
func (cb *CircuitBreaker) State() string {
	cb.mu.RLock()
	defer cb.mu.RUnlock()
	return cb.state
}

// Reset closes the circuit
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.failures = 0
	cb.probing = false
	cb.setState(BreakerClosed)
}

// Failures returns the consecutive failure count
func (cb *CircuitBreaker) Failures() int {
	cb.mu.RLock()
	defer cb.mu.RUnlock()
	return cb.failures
}

// GuardedBackend routes every call to a Backend through a CircuitBreaker.
// ErrNotFound is an answer, not an outage, so it never counts as a failure.
type GuardedBackend struct {
	Backend
	breaker *CircuitBreaker
}

// NewGuardedBackend wraps backend. State changes are logged and counted.
func NewGuardedBackend(backend Backend, breaker *CircuitBreaker, logger Logger, metrics Metrics) *GuardedBackend {
	if logger == nil {
		logger = &NoOpLogger{}
	}
	if metrics == nil {
		metrics = &NoOpMetrics{}
	}
	breaker.WithStateChangeCallback(func(from, to string) {
		logger.Warn("backend circuit breaker state changed", "from", from, "to", to)
		metrics.Increment(MetricBreakerTransition, "state", to)
	})
	return &GuardedBackend{Backend: backend, breaker: breaker}
}

// Breaker returns the wrapped circuit breaker
func (g *GuardedBackend) Breaker() *CircuitBreaker {
	return g.breaker
}

func (g *GuardedBackend) Get(ctx context.Context, key string) ([]byte, error) {
	var data []byte
	var notFound error
	err := g.breaker.Execute(ctx, func() error {
		var err error
		data, err = g.Backend.Get(ctx, key)
		if IsNotFound(err) {
			notFound = err
			return nil
		}
		return err
	})
	if notFound != nil {
		return nil, notFound
	}
	return data, err
}

func (g *GuardedBackend) Put(ctx context.Context, key string, data []byte) error {
	return g.breaker.Execute(ctx, func() error {
		return g.Backend.Put(ctx, key, data)
	})
}

func (g *GuardedBackend) Delete(ctx context.Context, key string) error {
	var notFound error
	err := g.breaker.Execute(ctx, func() error {
		err := g.Backend.Delete(ctx, key)
		if IsNotFound(err) {
			notFound = err
			return nil
		}
		return err
	})
	if notFound != nil {
		return notFound
	}
	return err
}

func (g *GuardedBackend) Exists(ctx context.Context, key string) (bool, error) {
	var ok bool
	err := g.breaker.Execute(ctx, func() error {
		var err error
		ok, err = g.Backend.Exists(ctx, key)
		return err
	})
	return ok, err
}

func (g *GuardedBackend) Ping(ctx context.Context) error {
	return g.breaker.Execute(ctx, func() error {
		return g.Backend.Ping(ctx)
	})
}
