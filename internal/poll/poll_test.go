package poll_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"anchor-e2e/internal/poll"
)

// fakeClock advances only when the loop sleeps.
type fakeClock struct {
	now    time.Time
	sleeps []time.Duration
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.sleeps = append(c.sleeps, d)
	c.now = c.now.Add(d)
	return nil
}

func (c *fakeClock) elapsed(start time.Time) time.Duration { return c.now.Sub(start) }

var errDown = errors.New("connection refused")

func TestUntilNeverSucceedsStopsWithinTimeoutPlusInterval(t *testing.T) {
	cases := []struct {
		name     string
		interval time.Duration
		timeout  time.Duration
	}{
		{"readiness defaults", 3 * time.Second, 180 * time.Second},
		{"status defaults", 2 * time.Second, 120 * time.Second},
		{"uneven", 7 * time.Second, 20 * time.Second},
		{"interval larger than timeout", 10 * time.Second, 3 * time.Second},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			clock := newFakeClock()
			start := clock.Now()
			checks := 0

			err := poll.Until(context.Background(), poll.Options{
				Interval: tc.interval,
				Timeout:  tc.timeout,
				Clock:    clock,
			}, func(ctx context.Context, attempt int) error {
				checks++
				if attempt != checks {
					t.Fatalf("expected attempt %d, got %d", checks, attempt)
				}
				return errDown
			})

			var te *poll.TimeoutError
			if !errors.As(err, &te) {
				t.Fatalf("expected TimeoutError, got %v", err)
			}
			if !errors.Is(err, errDown) {
				t.Fatalf("expected last check error to be wrapped, got %v", err)
			}
			if te.Attempts != checks {
				t.Fatalf("expected %d attempts reported, got %d", checks, te.Attempts)
			}

			elapsed := clock.elapsed(start)
			if elapsed < tc.timeout {
				t.Fatalf("gave up early: elapsed %s < timeout %s", elapsed, tc.timeout)
			}
			if elapsed >= tc.timeout+tc.interval {
				t.Fatalf("gave up late: elapsed %s >= %s", elapsed, tc.timeout+tc.interval)
			}
		})
	}
}

func TestUntilSucceedsOnAttemptKWithoutExtraSleep(t *testing.T) {
	for k := 1; k <= 5; k++ {
		clock := newFakeClock()
		checks := 0

		err := poll.Until(context.Background(), poll.Options{
			Interval: 2 * time.Second,
			Timeout:  120 * time.Second,
			Clock:    clock,
		}, func(ctx context.Context, attempt int) error {
			checks++
			if attempt < k {
				return errDown
			}
			return nil
		})

		if err != nil {
			t.Fatalf("k=%d: unexpected error: %v", k, err)
		}
		if checks != k {
			t.Fatalf("k=%d: expected %d checks, got %d", k, k, checks)
		}
		if len(clock.sleeps) != k-1 {
			t.Fatalf("k=%d: expected %d sleeps, got %d", k, k-1, len(clock.sleeps))
		}
	}
}

func TestUntilHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	clock := newFakeClock()
	checks := 0

	err := poll.Until(ctx, poll.Options{
		Interval: time.Second,
		Timeout:  time.Minute,
		Clock:    clock,
	}, func(ctx context.Context, attempt int) error {
		checks++
		if attempt == 3 {
			cancel()
		}
		return errDown
	})

	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if checks != 3 {
		t.Fatalf("expected 3 checks, got %d", checks)
	}
}

func TestUntilRejectsNonPositiveInterval(t *testing.T) {
	err := poll.Until(context.Background(), poll.Options{Timeout: time.Second}, func(context.Context, int) error {
		t.Fatal("check must not run")
		return nil
	})
	if err == nil {
		t.Fatal("expected error for zero interval")
	}
}

func TestUntilReportsEveryAttempt(t *testing.T) {
	clock := newFakeClock()
	var seen []int

	_ = poll.Until(context.Background(), poll.Options{
		Interval: time.Second,
		Timeout:  2 * time.Second,
		Clock:    clock,
		OnAttempt: func(attempt int, err error) {
			seen = append(seen, attempt)
		},
	}, func(context.Context, int) error { return errDown })

	if len(seen) != 3 || seen[0] != 1 || seen[2] != 3 {
		t.Fatalf("expected attempts [1 2 3], got %v", seen)
	}
}

func TestRealClockSleepReturnsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	start := time.Now()
	err := poll.RealClock.Sleep(ctx, time.Hour)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if time.Since(start) > time.Second {
		t.Fatal("sleep did not return promptly on cancellation")
	}
}

func TestStopNilIsNil(t *testing.T) {
	if poll.Stop(nil) != nil {
		t.Fatal("expected Stop(nil) to be nil")
	}
}
