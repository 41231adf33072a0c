package harness

import (
	"context"
	"time"
)

// Clock abstracts wall-clock time so the poll loop can be tested
// without real sleeping.
type Clock interface {
	// Now returns the current time.
	Now() time.Time

	// Sleep blocks for d or until the context is cancelled, in which
	// case it returns the context error.
	Sleep(ctx context.Context, d time.Duration) error
}

// realClock is the production Clock backed by the time package.
type realClock struct{}

// RealClock returns the production clock.
func RealClock() Clock {
	return realClock{}
}

func (realClock) Now() time.Time {
	return time.Now()
}

func (realClock) Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
