package resilience

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"
)

type permanent struct{ err error }

func (p permanent) Error() string { return p.err.Error() }
func (p permanent) Unwrap() error { return p.err }

// Permanent marks err as not worth another attempt. Backoff.Do returns the
// wrapped error as soon as it sees one.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return permanent{err: err}
}

// Backoff retries an operation, doubling the delay after each failed
// attempt. Zero fields take the defaults of DefaultBackoff.
type Backoff struct {
	Attempts int
	Base     time.Duration
	Max      time.Duration
	// Jitter spreads each delay uniformly by up to this fraction.
	Jitter float64
}

var DefaultBackoff = Backoff{
	Attempts: 3,
	Base:     100 * time.Millisecond,
	Max:      5 * time.Second,
	Jitter:   0.2,
}

func (b Backoff) normalized() Backoff {
	if b.Attempts <= 0 {
		b.Attempts = DefaultBackoff.Attempts
	}
	if b.Base <= 0 {
		b.Base = DefaultBackoff.Base
	}
	if b.Max < b.Base {
		b.Max = max(DefaultBackoff.Max, b.Base)
	}
	if b.Jitter <= 0 || b.Jitter > 1 {
		b.Jitter = DefaultBackoff.Jitter
	}
	return b
}

// Delay is the pause after the given failed attempt, counting from 1.
func (b Backoff) Delay(attempt int) time.Duration {
	b = b.normalized()
	d := b.Base
	for i := 1; i < attempt && d < b.Max; i++ {
		d *= 2
	}
	d = min(d, b.Max)
	spread := float64(d) * b.Jitter
	return time.Duration(float64(d) - spread + 2*spread*rand.Float64())
}

// Do calls fn until it succeeds, fails permanently, runs out of attempts or
// ctx ends. fn receives the attempt number, counting from 1.
func (b Backoff) Do(ctx context.Context, name string, fn func(attempt int) error) error {
	b = b.normalized()
	var err error
	for attempt := 1; ; attempt++ {
		err = fn(attempt)
		if err == nil {
			return nil
		}
		var p permanent
		if errors.As(err, &p) {
			return p.err
		}
		if attempt == b.Attempts {
			return fmt.Errorf("%s: giving up after %d attempts: %w", name, attempt, err)
		}

		delay := b.Delay(attempt)
		slog.Debug("attempt failed", "component", "backoff", "operation", name, "attempt", attempt, "delay", delay, "error", err)
		timer := time.NewTimer(delay)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("%s: abandoned after %d attempts: %w", name, attempt, ctx.Err())
		}
	}
}
