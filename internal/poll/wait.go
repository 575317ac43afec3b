package poll

import (
	"context"
	"errors"
	"fmt"
)

// WaitReady blocks until ready succeeds. Running out of time returns an
// error wrapping ErrNotReady; the caller treats it as fatal.
func WaitReady(ctx context.Context, opts Options, ready func(ctx context.Context) error) error {
	if opts.Interval == 0 {
		opts.Interval = DefaultReadyInterval
	}
	if opts.Timeout == 0 {
		opts.Timeout = DefaultReadyTimeout
	}

	err := Until(ctx, opts, func(ctx context.Context, _ int) error {
		return ready(ctx)
	})

	var te *TimeoutError
	if errors.As(err, &te) {
		return fmt.Errorf("%w: %w", ErrNotReady, te)
	}
	return err
}

// StatusFunc fetches the current status of the polled record
type StatusFunc func(ctx context.Context) (string, error)

// UnexpectedStatusError is the per-attempt error of a status poll whose
// record has not reached the target yet.
type UnexpectedStatusError struct {
	Got  string
	Want string
}

func (e *UnexpectedStatusError) Error() string {
	return fmt.Sprintf("status is %q, waiting for %q", e.Got, e.Want)
}

// PollStatus fetches the status until it equals target. Fetch errors count
// as failed attempts and do not end the loop, unless fetch wraps them with
// Stop. Running out of time returns an
// error wrapping ErrTimeout; the caller decides what that means for the run.
func PollStatus(ctx context.Context, opts Options, target string, fetch StatusFunc) error {
	if opts.Interval == 0 {
		opts.Interval = DefaultStatusInterval
	}
	if opts.Timeout == 0 {
		opts.Timeout = DefaultStatusTimeout
	}

	err := Until(ctx, opts, func(ctx context.Context, _ int) error {
		status, err := fetch(ctx)
		if err != nil {
			return err
		}
		if status != target {
			return &UnexpectedStatusError{Got: status, Want: target}
		}
		return nil
	})

	var te *TimeoutError
	if errors.As(err, &te) {
		return fmt.Errorf("%w: %w", ErrTimeout, te)
	}
	return err
}
