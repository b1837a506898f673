// Package resilience keeps a crawl moving when individual hosts misbehave.
// Breaker stops fetching from a host after repeated network failures,
// Backoff retries an attempt with growing delays and Attempt bounds a
// single try in time.
package resilience

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// ErrCircuitOpen matches every error returned for a request the breaker
// refused.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// OpenError reports a refused request and how long the host stays blocked.
type OpenError struct {
	Host    string
	RetryIn time.Duration
}

func (e *OpenError) Error() string {
	if e.RetryIn > 0 {
		return fmt.Sprintf("%s: %s blocked for another %v", ErrCircuitOpen, e.Host, e.RetryIn.Round(time.Millisecond))
	}
	return fmt.Sprintf("%s: %s probe already in flight", ErrCircuitOpen, e.Host)
}

func (e *OpenError) Is(target error) bool { return target == ErrCircuitOpen }

type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

var stateNames = [...]string{"closed", "open", "half-open"}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "unknown"
	}
	return stateNames[s]
}

// BreakerConfig tunes a Breaker. Counts decides which errors are failures;
// nil counts every non-nil error.
type BreakerConfig struct {
	Threshold int
	Cooldown  time.Duration
	Probes    int
	Counts    func(error) bool
}

func (c BreakerConfig) withDefaults() BreakerConfig {
	if c.Threshold <= 0 {
		c.Threshold = 5
	}
	if c.Cooldown <= 0 {
		c.Cooldown = 30 * time.Second
	}
	if c.Probes <= 0 {
		c.Probes = 1
	}
	if c.Counts == nil {
		c.Counts = func(err error) bool { return err != nil }
	}
	return c
}

// Breaker guards the requests to one host. Threshold consecutive failures
// open it; after Cooldown up to Probes requests are let through and the
// first outcome decides whether it closes or opens again.
type Breaker struct {
	host  string
	cfg   BreakerConfig
	clock func() time.Time

	mu       sync.Mutex
	state    State
	failures int
	openedAt time.Time
	probes   int

	logger *slog.Logger
}

func NewBreaker(host string, cfg BreakerConfig) *Breaker {
	return &Breaker{
		host:   host,
		cfg:    cfg.withDefaults(),
		clock:  time.Now,
		logger: slog.Default().With("component", "breaker", "host", host),
	}
}

// Do runs fn unless the breaker refuses it, and records the outcome.
func (b *Breaker) Do(fn func() error) error {
	if err := b.admit(); err != nil {
		return err
	}
	err := fn()
	b.record(err)
	return err
}

func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

func (b *Breaker) admit() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == StateOpen {
		wait := b.cfg.Cooldown - b.clock().Sub(b.openedAt)
		if wait > 0 {
			return &OpenError{Host: b.host, RetryIn: wait}
		}
		b.state = StateHalfOpen
		b.probes = 0
		b.logger.Info("cooldown over, probing host")
	}
	if b.state == StateHalfOpen {
		if b.probes >= b.cfg.Probes {
			return &OpenError{Host: b.host}
		}
		b.probes++
	}
	return nil
}

func (b *Breaker) record(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.cfg.Counts(err) {
		if b.state == StateHalfOpen {
			b.logger.Info("host recovered")
		}
		b.state = StateClosed
		b.failures = 0
		b.probes = 0
		return
	}

	b.failures++
	switch {
	case b.state == StateHalfOpen:
		b.trip("probe failed", err)
	case b.state == StateClosed && b.failures >= b.cfg.Threshold:
		b.trip("failure threshold reached", err)
	}
}

func (b *Breaker) trip(reason string, err error) {
	b.state = StateOpen
	b.openedAt = b.clock()
	b.logger.Warn("host blocked", "reason", reason, "failures", b.failures, "cooldown", b.cfg.Cooldown, "error", err)
}
