package internal

import (
	"errors"
	"sync"
	"time"
)

// ErrCircuitOpen is returned by Do while the breaker is open.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// CircuitBreaker opens after threshold failures within window and stays
// open for openDuration. A nil breaker is always closed.
type CircuitBreaker struct {
	mu           sync.Mutex
	failures     []time.Time
	threshold    int
	window       time.Duration
	openUntil    time.Time
	openDuration time.Duration
	now          func() time.Time
}

func NewCircuitBreaker(threshold int, window, openDuration time.Duration) *CircuitBreaker {
	if threshold <= 0 {
		threshold = 1
	}
	return &CircuitBreaker{
		threshold:    threshold,
		window:       window,
		openDuration: openDuration,
		failures:     make([]time.Time, 0, threshold),
		now:          time.Now,
	}
}

// RecordFailure records a failure and opens the breaker once the number of
// failures inside the window reaches the threshold.
func (cb *CircuitBreaker) RecordFailure() {
	if cb == nil {
		return
	}
	cb.mu.Lock()
	defer cb.mu.Unlock()

	now := cb.now()
	cutoff := now.Add(-cb.window)
	kept := cb.failures[:0]
	for _, at := range cb.failures {
		if at.After(cutoff) {
			kept = append(kept, at)
		}
	}
	cb.failures = append(kept, now)

	if len(cb.failures) >= cb.threshold {
		cb.openUntil = now.Add(cb.openDuration)
	}
}

// RecordSuccess clears the failure history and closes the breaker.
func (cb *CircuitBreaker) RecordSuccess() {
	if cb == nil {
		return
	}
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.failures = cb.failures[:0]
	cb.openUntil = time.Time{}
}

func (cb *CircuitBreaker) IsOpen() bool {
	if cb == nil {
		return false
	}
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.now().Before(cb.openUntil)
}

// Do runs fn unless the breaker is open, recording its outcome.
func (cb *CircuitBreaker) Do(fn func() error) error {
	if cb.IsOpen() {
		return ErrCircuitOpen
	}
	if err := fn(); err != nil {
		cb.RecordFailure()
		return err
	}
	cb.RecordSuccess()
	return nil
}
