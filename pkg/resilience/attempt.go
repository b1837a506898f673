package resilience

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrAttemptTimeout is the cause of an Attempt that ran out of time. It also
// matches context.DeadlineExceeded.
var ErrAttemptTimeout = errors.New("attempt timed out")

// Attempt runs fn with a context that ends after limit and returns as soon
// as either finishes. fn may keep running after a timeout and must not
// publish results through shared state. limit <= 0 means no bound.
func Attempt(ctx context.Context, limit time.Duration, fn func(ctx context.Context) error) error {
	if limit <= 0 {
		return fn(ctx)
	}
	actx, cancel := context.WithTimeoutCause(ctx, limit,
		fmt.Errorf("%w after %v: %w", ErrAttemptTimeout, limit, context.DeadlineExceeded))
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- fn(actx) }()

	select {
	case err := <-done:
		return err
	case <-actx.Done():
		return context.Cause(actx)
	}
}
