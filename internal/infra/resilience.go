// Package infra provides shared infrastructure for the leaders API and Wikipedia clients:
// caching, request coalescing, circuit breaking and per-host rate limiting.
package infra

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"
)

// RequestDeduplicator coalesces identical in-flight requests. When several callers
// ask for the same key at once, fn runs once and every caller gets its result.
type RequestDeduplicator struct {
	group    singleflight.Group
	inflight atomic.Int64
}

// NewRequestDeduplicator creates a new request deduplicator
func NewRequestDeduplicator() *RequestDeduplicator {
	return &RequestDeduplicator{}
}

// Do executes fn unless a call with the same key is already running, in which case
// it waits for that call. It returns the result, whether it was shared, and any error.
// A canceled ctx stops the wait but not the underlying call.
func (d *RequestDeduplicator) Do(ctx context.Context, key string, fn func() (any, error)) (any, bool, error) {
	ch := d.group.DoChan(key, func() (any, error) {
		d.inflight.Add(1)
		defer d.inflight.Add(-1)
		return fn()
	})

	select {
	case res := <-ch:
		return res.Val, res.Shared, res.Err
	case <-ctx.Done():
		return nil, false, ctx.Err()
	}
}

// Stats returns the number of distinct requests currently in flight
func (d *RequestDeduplicator) Stats() int {
	return int(d.inflight.Load())
}

// CircuitState represents the current state of the circuit breaker
type CircuitState int

const (
	CircuitClosed   CircuitState = iota // Normal operation
	CircuitOpen                         // Failing fast
	CircuitHalfOpen                     // Trying the upstream again
)

func (s CircuitState) String() string {
	switch s {
	case CircuitClosed:
		return "closed"
	case CircuitOpen:
		return "open"
	case CircuitHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// CircuitBreaker fails fast once an upstream has failed failureThreshold times in a row.
// After resetTimeout it lets up to halfOpenMax trial requests through.
type CircuitBreaker struct {
	mu sync.Mutex

	name             string
	failureThreshold int
	resetTimeout     time.Duration
	halfOpenMax      int
	now              func() time.Time
	onStateChange    func(name string, from, to CircuitState)

	state            CircuitState
	consecutiveFails int
	lastFailure      time.Time
	halfOpenCount    int
}

// NewCircuitBreaker creates a breaker that opens after 5 consecutive failures
// and lets a trial request through after 30 seconds.
func NewCircuitBreaker(name string) *CircuitBreaker {
	return NewCircuitBreakerWithConfig(name, 5, 30*time.Second, 2)
}

// NewCircuitBreakerWithConfig creates a circuit breaker with custom thresholds
func NewCircuitBreakerWithConfig(name string, failureThreshold int, resetTimeout time.Duration, halfOpenMax int) *CircuitBreaker {
	return &CircuitBreaker{
		name:             name,
		failureThreshold: failureThreshold,
		resetTimeout:     resetTimeout,
		halfOpenMax:      halfOpenMax,
		now:              time.Now,
		state:            CircuitClosed,
	}
}

// OnStateChange registers a callback invoked (under the breaker lock) on every transition.
func (cb *CircuitBreaker) OnStateChange(fn func(name string, from, to CircuitState)) {
	cb.mu.Lock()
	cb.onStateChange = fn
	cb.mu.Unlock()
}

// Name returns the breaker name (usually the upstream it guards).
func (cb *CircuitBreaker) Name() string { return cb.name }

// Allow reports whether a request may proceed.
func (cb *CircuitBreaker) Allow() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case CircuitClosed:
		return true
	case CircuitOpen:
		if cb.now().Sub(cb.lastFailure) > cb.resetTimeout {
			cb.transition(CircuitHalfOpen)
			cb.halfOpenCount = 1
			return true
		}
		return false
	case CircuitHalfOpen:
		if cb.halfOpenCount < cb.halfOpenMax {
			cb.halfOpenCount++
			return true
		}
		return false
	default:
		return false
	}
}

// RecordSuccess resets the failure count and closes a half-open circuit.
func (cb *CircuitBreaker) RecordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.consecutiveFails = 0
	if cb.state == CircuitHalfOpen {
		cb.transition(CircuitClosed)
		cb.halfOpenCount = 0
	}
}

// RecordFailure counts a failure, opening the circuit at the threshold or from half-open.
func (cb *CircuitBreaker) RecordFailure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.consecutiveFails++
	cb.lastFailure = cb.now()

	switch cb.state {
	case CircuitClosed:
		if cb.consecutiveFails >= cb.failureThreshold {
			cb.transition(CircuitOpen)
		}
	case CircuitHalfOpen:
		cb.transition(CircuitOpen)
		cb.halfOpenCount = 0
	}
}

// transition must be called with cb.mu held.
func (cb *CircuitBreaker) transition(to CircuitState) {
	from := cb.state
	cb.state = to
	if cb.onStateChange != nil && from != to {
		cb.onStateChange(cb.name, from, to)
	}
}

// State returns the current circuit state
func (cb *CircuitBreaker) State() CircuitState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// Stats returns circuit breaker statistics
func (cb *CircuitBreaker) Stats() CircuitBreakerStats {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return CircuitBreakerStats{
		Name:             cb.name,
		State:            cb.state.String(),
		ConsecutiveFails: cb.consecutiveFails,
		LastFailure:      cb.lastFailure,
		RetryAt:          cb.lastFailure.Add(cb.resetTimeout),
	}
}

// HostBreakers keeps one CircuitBreaker per hostname, so failures on one
// Wikipedia language edition never short-circuit requests to another.
type HostBreakers struct {
	mu            sync.Mutex
	name          string
	m             map[string]*CircuitBreaker
	newBreaker    func(name string) *CircuitBreaker
	onStateChange func(name string, from, to CircuitState)
}

// NewHostBreakers creates per-host breakers named "<name>:<host>" with the
// default thresholds of NewCircuitBreaker.
func NewHostBreakers(name string) *HostBreakers {
	return NewHostBreakersWithConfig(name, func(n string) *CircuitBreaker { return NewCircuitBreaker(n) })
}

// NewHostBreakersWithConfig creates per-host breakers built by newBreaker.
func NewHostBreakersWithConfig(name string, newBreaker func(name string) *CircuitBreaker) *HostBreakers {
	return &HostBreakers{
		name:       name,
		m:          make(map[string]*CircuitBreaker),
		newBreaker: newBreaker,
	}
}

// OnStateChange registers a callback for transitions of every host breaker,
// including those created later.
func (hb *HostBreakers) OnStateChange(fn func(name string, from, to CircuitState)) {
	hb.mu.Lock()
	defer hb.mu.Unlock()
	hb.onStateChange = fn
	for _, cb := range hb.m {
		cb.OnStateChange(fn)
	}
}

// For returns the breaker guarding raw's host, creating it on first use.
func (hb *HostBreakers) For(raw string) *CircuitBreaker {
	host := hostOf(raw)

	hb.mu.Lock()
	defer hb.mu.Unlock()
	if cb, ok := hb.m[host]; ok {
		return cb
	}
	cb := hb.newBreaker(hb.name + ":" + host)
	if hb.onStateChange != nil {
		cb.OnStateChange(hb.onStateChange)
	}
	hb.m[host] = cb
	return cb
}

// Hosts returns the number of hosts with a breaker.
func (hb *HostBreakers) Hosts() int {
	hb.mu.Lock()
	defer hb.mu.Unlock()
	return len(hb.m)
}

// CircuitBreakerStats contains circuit breaker statistics
type CircuitBreakerStats struct {
	Name             string    `json:"name"`
	State            string    `json:"state"`
	ConsecutiveFails int       `json:"consecutive_failures"`
	LastFailure      time.Time `json:"last_failure,omitempty"`
	RetryAt          time.Time `json:"retry_at,omitempty"`
}

// ErrCircuitOpen is returned when the circuit breaker rejects a request
type ErrCircuitOpen struct {
	Name     string
	RetryAt  time.Time
	Failures int
}

func (e *ErrCircuitOpen) Error() string {
	return "circuit breaker " + e.Name + " is open after repeated failures, retry after " + e.RetryAt.Format(time.RFC3339)
}
