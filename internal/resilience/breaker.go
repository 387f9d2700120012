// Package resilience provides reliability patterns for calls to the model backend.
package resilience

import (
	"errors"
	"sync"
	"time"
)

// ErrCircuitOpen is returned when the breaker rejects a call.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// State is the breaker position.
type State string

const (
	StateClosed   State = "closed"
	StateOpen     State = "open"
	StateHalfOpen State = "half_open"
)

// Breaker opens after maxFailures consecutive failures and rejects calls until
// cooldown has elapsed. The first call after the cooldown is a probe: success
// closes the circuit, failure reopens it.
type Breaker struct {
	mu          sync.Mutex
	state       State
	failures    int
	maxFailures int
	cooldown    time.Duration
	openedAt    time.Time
	probing     bool
	onChange    func(from, to State)
	now         func() time.Time
}

// NewBreaker creates a closed breaker. A maxFailures below 1 is treated as 1.
func NewBreaker(maxFailures int, cooldown time.Duration) *Breaker {
	if maxFailures < 1 {
		maxFailures = 1
	}
	return &Breaker{
		state:       StateClosed,
		maxFailures: maxFailures,
		cooldown:    cooldown,
		now:         time.Now,
	}
}

// OnStateChange registers fn to be called after every transition. fn runs
// without the breaker lock held.
func (b *Breaker) OnStateChange(fn func(from, to State)) {
	b.mu.Lock()
	b.onChange = fn
	b.mu.Unlock()
}

// State reports the current position, promoting open to half-open once the
// cooldown has elapsed.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == StateOpen && b.now().Sub(b.openedAt) >= b.cooldown {
		return StateHalfOpen
	}
	return b.state
}

// Execute runs fn unless the circuit is open. Only one probe runs while
// half-open; concurrent callers are rejected until it settles.
func (b *Breaker) Execute(fn func() error) error {
	from, to, ok := b.admit()
	b.notify(from, to)
	if !ok {
		return ErrCircuitOpen
	}

	err := fn()

	from, to = b.settle(err)
	b.notify(from, to)
	return err
}

func (b *Breaker) admit() (from, to State, ok bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	from = b.state
	switch b.state {
	case StateOpen:
		if b.now().Sub(b.openedAt) < b.cooldown {
			return from, from, false
		}
		b.state = StateHalfOpen
		b.probing = true
		return from, b.state, true
	case StateHalfOpen:
		if b.probing {
			return from, from, false
		}
		b.probing = true
	}
	return from, b.state, true
}

func (b *Breaker) settle(err error) (from, to State) {
	b.mu.Lock()
	defer b.mu.Unlock()

	from = b.state
	b.probing = false
	if err == nil {
		b.failures = 0
		b.state = StateClosed
		return from, b.state
	}
	b.failures++
	if b.state == StateHalfOpen || b.failures >= b.maxFailures {
		b.state = StateOpen
		b.openedAt = b.now()
	}
	return from, b.state
}

func (b *Breaker) notify(from, to State) {
	if from == to {
		return
	}
	b.mu.Lock()
	fn := b.onChange
	b.mu.Unlock()
	if fn != nil {
		fn(from, to)
	}
}
