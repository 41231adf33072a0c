package harness

import (
	"context"
	"errors"
	"time"
)

// ErrPollTimeout is returned by Poll when the deadline passes before fn
// reports done. Callers usually wrap it into a domain error.
var ErrPollTimeout = errors.New("poll: timed out")

// Poll invokes fn immediately and then once per interval until fn
// reports done, fn returns an error, the timeout elapses, or the
// context is cancelled.
//
// Attempts are strictly sequential. The next attempt is scheduled only
// after the previous one returns, so a slow fn never overlaps with the
// next tick. The deadline is checked after each attempt, which means
// Poll gives fn one final attempt at the deadline boundary and fails no
// earlier than timeout and no later than timeout plus one interval.
//
// A non-nil error from fn is terminal and returned as-is. Context
// cancellation during a sleep returns the context error.
func Poll(ctx context.Context, clock Clock, interval, timeout time.Duration, fn func(context.Context) (bool, error)) error {
	if interval <= 0 {
		return errors.New("poll: interval must be positive")
	}
	if timeout <= 0 {
		return errors.New("poll: timeout must be positive")
	}

	deadline := clock.Now().Add(timeout)

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		done, err := fn(ctx)
		if err != nil {
			return err
		}
		if done {
			return nil
		}

		remaining := deadline.Sub(clock.Now())
		if remaining <= 0 {
			return ErrPollTimeout
		}

		wait := interval
		if wait > remaining {
			wait = remaining
		}
		if err := clock.Sleep(ctx, wait); err != nil {
			return err
		}
	}
}
