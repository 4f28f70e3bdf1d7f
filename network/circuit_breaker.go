package network

import (
	"errors"
	"sync"
	"time"
)

// BreakerState describes what a circuit breaker is currently doing.
type BreakerState int

const (
	BreakerClosed   BreakerState = iota // normal operation
	BreakerOpen                         // failing, reject calls
	BreakerHalfOpen                     // probing whether the service recovered
)

// ErrCircuitOpen is returned when a breaker is open and the cooldown
// has not yet elapsed. Callers treat it as "this service is
// unavailable right now," not as a failure of the service itself.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// CircuitBreaker guards a single provider or storage client.
// Transitions: Closed to Open after failThreshold consecutive
// failures; Open to HalfOpen after the cooldown expires; HalfOpen to
// Closed on success or back to Open on failure.
type CircuitBreaker struct {
	mutex         sync.Mutex
	state         BreakerState
	failCount     int
	failThreshold int
	cooldown      time.Duration
	openedAt      time.Time
}

func NewCircuitBreaker(failThreshold int, cooldown time.Duration) *CircuitBreaker {
	return &CircuitBreaker{
		state:         BreakerClosed,
		failThreshold: failThreshold,
		cooldown:      cooldown,
	}
}

// Execute runs fn through the breaker. Returns ErrCircuitOpen without
// calling fn when the breaker is open and still cooling down.
func (cb *CircuitBreaker) Execute(fn func() error) error {
	cb.mutex.Lock()
	if cb.state == BreakerOpen {
		if time.Since(cb.openedAt) <= cb.cooldown {
			cb.mutex.Unlock()
			return ErrCircuitOpen
		}
		cb.state = BreakerHalfOpen
	}
	cb.mutex.Unlock()
	return cb.tryCall(fn)
}

func (cb *CircuitBreaker) tryCall(fn func() error) error {
	err := fn()

	cb.mutex.Lock()
	defer cb.mutex.Unlock()

	if err != nil {
		cb.failCount++
		if cb.failCount >= cb.failThreshold {
			cb.state = BreakerOpen
			cb.openedAt = time.Now()
		}
		return err
	}

	cb.failCount = 0
	cb.state = BreakerClosed
	return nil
}

// CurrentState returns the breaker's current state.
func (cb *CircuitBreaker) CurrentState() BreakerState {
	cb.mutex.Lock()
	defer cb.mutex.Unlock()
	return cb.state
}
