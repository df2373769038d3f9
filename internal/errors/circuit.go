package errors

import (
	"errors"
	"sync"
	"time"
)

// ErrCircuitOpen is the cause of errors returned while a breaker is open.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// State is the position of a Breaker.
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

// Breaker fails calls fast after Threshold consecutive failures. Once
// Cooldown has passed a single trial call is let through; its outcome
// closes or re-opens the breaker.
type Breaker struct {
	name      string
	threshold int
	cooldown  time.Duration
	now       func() time.Time

	mu           sync.Mutex
	failures     int
	openedAt     time.Time
	trialRunning bool
}

// NewBreaker creates a closed breaker. Non-positive arguments fall back to
// 5 failures and 30 seconds.
func NewBreaker(name string, threshold int, cooldown time.Duration) *Breaker {
	if threshold <= 0 {
		threshold = 5
	}
	if cooldown <= 0 {
		cooldown = 30 * time.Second
	}
	return &Breaker{name: name, threshold: threshold, cooldown: cooldown, now: time.Now}
}

// Name returns the name used in open-circuit errors.
func (b *Breaker) Name() string { return b.name }

// State reports the current state.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state()
}

func (b *Breaker) state() State {
	if b.failures < b.threshold {
		return StateClosed
	}
	if b.now().Sub(b.openedAt) >= b.cooldown {
		return StateHalfOpen
	}
	return StateOpen
}

// acquire reports whether a call may proceed and whether it is the trial.
func (b *Breaker) acquire() (ok, trial bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state() {
	case StateClosed:
		return true, false
	case StateHalfOpen:
		if b.trialRunning {
			return false, false
		}
		b.trialRunning = true
		return true, true
	default:
		return false, false
	}
}

func (b *Breaker) release(trial bool, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if trial {
		b.trialRunning = false
	}
	if err == nil {
		b.failures = 0
		return
	}
	b.failures++
	if b.failures >= b.threshold {
		b.openedAt = b.now()
	}
}

// Guard runs fn through b. While the breaker is open fn is not called and a
// non-retryable ERR_302 wrapping ErrCircuitOpen is returned.
func Guard[T any](b *Breaker, fn func() (T, error)) (T, error) {
	ok, trial := b.acquire()
	if !ok {
		var zero T
		err := New(ErrCodeNetworkUnavailable, b.name+" circuit open", ErrCircuitOpen).
			WithSuggestion("The service failed repeatedly; retry in a moment")
		err.Retryable = false
		return zero, err
	}

	v, err := fn()
	b.release(trial, err)
	return v, err
}
