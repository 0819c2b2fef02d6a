package transport

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/Fantasim/vaultscan/internal/config"
	"github.com/Fantasim/vaultscan/internal/models"
)

// BreakerSnapshot is a point-in-time view of one endpoint's breaker.
type BreakerSnapshot struct {
	Endpoint         string
	State            string
	ConsecutiveFails int
	// Reason and Cause describe the most recent failure; both are cleared by a success.
	Reason models.FailureReason
	Cause  error
}

// CircuitBreaker guards one endpoint of a source.
//
// After threshold consecutive failures the endpoint is refused for the
// cooldown. The breaker keeps the classified failure that tripped it, so a
// refused call still reports why the endpoint is unusable (a 403 stays
// not_enabled, a stall stays timeout). After the cooldown a limited number of
// trial calls pass: a success closes the circuit, a failure reopens it.
type CircuitBreaker struct {
	endpoint  string
	threshold int
	cooldown  time.Duration
	trials    int

	mu       sync.Mutex
	state    string
	fails    int
	openedAt time.Time
	granted  int // trial calls handed out while half-open
	reason   models.FailureReason
	cause    error
}

// NewCircuitBreaker creates a closed breaker for endpoint.
func NewCircuitBreaker(endpoint string, threshold int, cooldown time.Duration) *CircuitBreaker {
	if threshold < 1 {
		threshold = 1
	}
	return &CircuitBreaker{
		endpoint:  endpoint,
		threshold: threshold,
		cooldown:  cooldown,
		trials:    config.CircuitBreakerHalfOpenMax,
		state:     config.CircuitClosed,
	}
}

// Acquire returns nil when a call to the endpoint may proceed. Otherwise the
// error wraps config.ErrCircuitOpen and the failure that opened the circuit,
// so Classify reports the original reason.
func (cb *CircuitBreaker) Acquire() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state == config.CircuitOpen && time.Since(cb.openedAt) >= cb.cooldown {
		slog.Debug("circuit half-open, allowing trial call",
			"endpoint", cb.endpoint,
			"reason", cb.reason,
		)
		cb.state = config.CircuitHalfOpen
		cb.granted = 0
	}

	switch cb.state {
	case config.CircuitClosed:
		return nil
	case config.CircuitHalfOpen:
		if cb.granted < cb.trials {
			cb.granted++
			return nil
		}
	}
	return cb.refusal()
}

func (cb *CircuitBreaker) refusal() error {
	if cb.cause == nil {
		return fmt.Errorf("%s: %w", cb.endpoint, config.ErrCircuitOpen)
	}
	return fmt.Errorf("%s: %w: %w", cb.endpoint, config.ErrCircuitOpen, cb.cause)
}

// Success closes the circuit and forgets the last failure.
func (cb *CircuitBreaker) Success() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state != config.CircuitClosed {
		slog.Info("circuit closed after successful call",
			"endpoint", cb.endpoint,
			"previousState", cb.state,
			"previousReason", cb.reason,
		)
	}
	cb.state = config.CircuitClosed
	cb.fails = 0
	cb.granted = 0
	cb.reason = models.ReasonNone
	cb.cause = nil
}

// Failure records a failed call with its error and returns the reason it was
// classified as. A failure while half-open reopens the circuit at once.
func (cb *CircuitBreaker) Failure(err error) models.FailureReason {
	reason := Classify(err)
	if reason == models.ReasonNone {
		reason = models.ReasonNetworkError
	}

	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.fails++
	cb.reason = reason
	cb.cause = err

	switch {
	case cb.state == config.CircuitHalfOpen:
		cb.open("trial call failed")
	case cb.state == config.CircuitClosed && cb.fails >= cb.threshold:
		cb.open("failure threshold reached")
	case cb.state == config.CircuitOpen:
		cb.openedAt = time.Now()
	}
	return reason
}

func (cb *CircuitBreaker) open(why string) {
	slog.Warn("circuit opened",
		"endpoint", cb.endpoint,
		"why", why,
		"reason", cb.reason,
		"consecutiveFails", cb.fails,
		"cooldown", cb.cooldown,
	)
	cb.state = config.CircuitOpen
	cb.openedAt = time.Now()
	cb.granted = 0
}

// State returns the current circuit state.
func (cb *CircuitBreaker) State() string {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// Snapshot returns the breaker's state and last failure.
func (cb *CircuitBreaker) Snapshot() BreakerSnapshot {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return BreakerSnapshot{
		Endpoint:         cb.endpoint,
		State:            cb.state,
		ConsecutiveFails: cb.fails,
		Reason:           cb.reason,
		Cause:            cb.cause,
	}
}
