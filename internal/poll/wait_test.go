package poll_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"anchor-e2e/internal/model"
	"anchor-e2e/internal/poll"
)

func TestWaitReadyReturnsOnFirstSuccess(t *testing.T) {
	clock := newFakeClock()
	calls := 0

	err := poll.WaitReady(context.Background(), poll.Options{Clock: clock}, func(context.Context) error {
		calls++
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected 1 check, got %d", calls)
	}
	if len(clock.sleeps) != 0 {
		t.Fatalf("expected no sleep, got %v", clock.sleeps)
	}
}

func TestWaitReadyTimesOutWithDefaults(t *testing.T) {
	clock := newFakeClock()
	start := clock.Now()
	calls := 0

	err := poll.WaitReady(context.Background(), poll.Options{Clock: clock}, func(context.Context) error {
		calls++
		return errDown
	})
	if !errors.Is(err, poll.ErrNotReady) {
		t.Fatalf("expected ErrNotReady, got %v", err)
	}
	if errors.Is(err, poll.ErrTimeout) {
		t.Fatal("readiness failure must not look like a status timeout")
	}

	// checks at 0s, 3s, ..., 180s
	if calls != 61 {
		t.Fatalf("expected 61 checks, got %d", calls)
	}
	if got := clock.elapsed(start); got != 180*time.Second {
		t.Fatalf("expected to give up at 180s, got %s", got)
	}
	for _, d := range clock.sleeps {
		if d != poll.DefaultReadyInterval {
			t.Fatalf("expected sleeps of %s, got %s", poll.DefaultReadyInterval, d)
		}
	}
}

func TestPollStatusStopsWhenTargetReached(t *testing.T) {
	clock := newFakeClock()
	start := clock.Now()
	sequence := []string{model.StatusPendingStellar, model.StatusPendingStellar, model.StatusCompleted}
	calls := 0

	err := poll.PollStatus(context.Background(), poll.Options{Clock: clock}, model.StatusCompleted,
		func(context.Context) (string, error) {
			s := sequence[calls]
			calls++
			return s, nil
		})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 3 {
		t.Fatalf("expected 3 polls, got %d", calls)
	}
	if got := clock.elapsed(start); got != 4*time.Second {
		t.Fatalf("expected 4s elapsed, got %s", got)
	}
}

func TestPollStatusTimeoutIsDistinguishable(t *testing.T) {
	clock := newFakeClock()

	err := poll.PollStatus(context.Background(), poll.Options{
		Interval: 2 * time.Second,
		Timeout:  10 * time.Second,
		Clock:    clock,
	}, model.StatusCompleted, func(context.Context) (string, error) {
		return model.StatusPendingReceiver, nil
	})

	if !errors.Is(err, poll.ErrTimeout) {
		t.Fatalf("expected ErrTimeout, got %v", err)
	}
	var use *poll.UnexpectedStatusError
	if !errors.As(err, &use) {
		t.Fatalf("expected last status to be reported, got %v", err)
	}
	if use.Got != model.StatusPendingReceiver {
		t.Fatalf("expected last status %q, got %q", model.StatusPendingReceiver, use.Got)
	}
}

func TestPollStatusKeepsPollingThroughFetchErrors(t *testing.T) {
	clock := newFakeClock()
	calls := 0

	err := poll.PollStatus(context.Background(), poll.Options{Clock: clock}, model.StatusCompleted,
		func(context.Context) (string, error) {
			calls++
			if calls < 3 {
				return "", errDown
			}
			return model.StatusCompleted, nil
		})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 3 {
		t.Fatalf("expected 3 polls, got %d", calls)
	}
}

func TestPollStatusReturnsStoppedErrorAtOnce(t *testing.T) {
	clock := newFakeClock()
	notFound := errors.New("transaction not found")
	calls := 0

	err := poll.PollStatus(context.Background(), poll.Options{Clock: clock}, model.StatusCompleted,
		func(context.Context) (string, error) {
			calls++
			return "", poll.Stop(notFound)
		})
	if !errors.Is(err, notFound) {
		t.Fatalf("expected fetch error, got %v", err)
	}
	if errors.Is(err, poll.ErrTimeout) {
		t.Fatalf("stopped poll must not report a timeout, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected 1 poll, got %d", calls)
	}
	if len(clock.sleeps) != 0 {
		t.Fatalf("expected no sleep, got %v", clock.sleeps)
	}
}
