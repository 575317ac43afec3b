// Package poll implements the fixed-interval wait loops used to gate a run on
// anchor readiness and to wait for an anchor transaction to reach a status.
//
// Both loops share one shape: check, and on failure sleep Interval and check
// again until Timeout of wall-clock time has elapsed. A check is always made
// at t=0. The loop gives up at the first failed check made at or after
// Timeout, so a loop that never succeeds returns after at least Timeout and
// before Timeout+Interval (plus the latency of the final check). A check that
// succeeds on attempt k returns immediately after k checks without sleeping.
package poll

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var (
	// ErrTimeout is returned when a status poll runs out of time
	ErrTimeout = errors.New("timed out while polling transaction status")

	// ErrNotReady is returned when the anchor never became reachable
	ErrNotReady = errors.New("timed out while polling for readiness")
)

// Clock abstracts time so loops can be tested without sleeping
type Clock interface {
	Now() time.Time
	Sleep(ctx context.Context, d time.Duration) error
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

func (realClock) Sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// RealClock is the wall clock
var RealClock Clock = realClock{}

// Options configures a poll loop
type Options struct {
	Interval time.Duration
	Timeout  time.Duration
	Clock    Clock

	// OnAttempt, if set, is called after every check with its outcome.
	OnAttempt func(attempt int, err error)
}

// Readiness defaults
const (
	DefaultReadyInterval = 3 * time.Second
	DefaultReadyTimeout  = 180 * time.Second
)

// Status poll defaults
const (
	DefaultStatusInterval = 2 * time.Second
	DefaultStatusTimeout  = 120 * time.Second
)

func (o Options) clock() Clock {
	if o.Clock == nil {
		return RealClock
	}
	return o.Clock
}

// CheckFunc performs one attempt. A nil error ends the loop successfully.
type CheckFunc func(ctx context.Context, attempt int) error

// TimeoutError reports a loop that ran out of time. It unwraps to the error
// of the last check.
type TimeoutError struct {
	Attempts int
	Elapsed  time.Duration
	Last     error
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("gave up after %d attempts in %s: %v", e.Attempts, e.Elapsed.Round(time.Millisecond), e.Last)
}

func (e *TimeoutError) Unwrap() error {
	return e.Last
}

// Stop marks err as final. A check returning it ends the loop at once and
// Until returns err itself, not a *TimeoutError.
func Stop(err error) error {
	if err == nil {
		return nil
	}
	return &stopError{err: err}
}

type stopError struct {
	err error
}

func (e *stopError) Error() string { return e.err.Error() }

func (e *stopError) Unwrap() error { return e.err }

// Until runs check until it succeeds or the timeout elapses. Running out of
// time yields a *TimeoutError; context cancellation aborts the loop with the
// context's error. Errors wrapped with Stop are returned without retrying.
func Until(ctx context.Context, opts Options, check CheckFunc) error {
	if opts.Interval <= 0 {
		return fmt.Errorf("poll interval must be positive, got %s", opts.Interval)
	}
	clock := opts.clock()
	start := clock.Now()

	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		err := check(ctx, attempt)
		if opts.OnAttempt != nil {
			opts.OnAttempt(attempt, err)
		}
		if err == nil {
			return nil
		}

		var stop *stopError
		if errors.As(err, &stop) {
			return stop.err
		}

		if elapsed := clock.Now().Sub(start); elapsed >= opts.Timeout {
			return &TimeoutError{Attempts: attempt, Elapsed: elapsed, Last: err}
		}

		if err := clock.Sleep(ctx, opts.Interval); err != nil {
			return err
		}
	}
}
