// Package circuitbreaker stops calls to an upstream host after repeated
// failures and lets a single trial call through once the cooldown has passed.
package circuitbreaker

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

var ErrOpen = errors.New("circuit breaker is open")

type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "closed"
	}
}

type hostState struct {
	state               State
	consecutiveFailures int
	openedAt            time.Time
}

// Breaker tracks one circuit per host.
type Breaker struct {
	mu        sync.Mutex
	hosts     map[string]*hostState
	threshold int
	cooldown  time.Duration
	now       func() time.Time
}

func New(threshold int, cooldown time.Duration) *Breaker {
	if threshold < 1 {
		threshold = 1
	}
	return &Breaker{
		hosts:     make(map[string]*hostState),
		threshold: threshold,
		cooldown:  cooldown,
		now:       time.Now,
	}
}

// WithClock replaces the time source.
func (b *Breaker) WithClock(now func() time.Time) *Breaker {
	b.now = now
	return b
}

// Allow returns an error wrapping ErrOpen when calls to host must not be made.
// After the cooldown exactly one caller is let through as a trial call.
func (b *Breaker) Allow(host string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	s, ok := b.hosts[host]
	if !ok {
		return nil
	}

	switch s.state {
	case StateOpen:
		if b.now().Sub(s.openedAt) >= b.cooldown {
			s.state = StateHalfOpen
			return nil
		}
		return fmt.Errorf("%w: %s", ErrOpen, host)
	case StateHalfOpen:
		return fmt.Errorf("%w: %s (trial call in flight)", ErrOpen, host)
	default:
		return nil
	}
}

// Record closes the circuit of host on success and counts a failure otherwise.
// A failed trial call reopens the circuit immediately.
func (b *Breaker) Record(host string, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	s, ok := b.hosts[host]
	if err == nil {
		if ok {
			s.state = StateClosed
			s.consecutiveFailures = 0
		}
		return
	}

	if !ok {
		s = &hostState{}
		b.hosts[host] = s
	}
	s.consecutiveFailures++
	if s.state == StateHalfOpen || s.consecutiveFailures >= b.threshold {
		s.state = StateOpen
		s.openedAt = b.now()
	}
}

func (b *Breaker) State(host string) State {
	b.mu.Lock()
	defer b.mu.Unlock()

	if s, ok := b.hosts[host]; ok {
		return s.state
	}
	return StateClosed
}
