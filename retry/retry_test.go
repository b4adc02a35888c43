package retry_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/hoopline/gatekeeper/retry"
)

var errNotReady = errors.New("upstream not ready")

func TestDo_LinearSchedule(t *testing.T) {
	clock := retry.NewFakeClock(time.Date(2026, 1, 15, 6, 0, 0, 0, time.UTC))
	policy := retry.NewPolicy().WithClock(clock)

	calls := 0
	err := policy.Do(t.Context(), func(context.Context) error {
		calls++
		return errNotReady
	})
	if err == nil {
		t.Fatal("expected exhaustion error")
	}
	if !errors.Is(err, errNotReady) {
		t.Errorf("err = %v, want wrapped cause", err)
	}
	if calls != 4 {
		t.Errorf("calls = %d, want initial attempt plus 3 retries", calls)
	}

	want := []time.Duration{60 * time.Second, 120 * time.Second, 180 * time.Second}
	got := clock.Sleeps()
	if len(got) != len(want) {
		t.Fatalf("sleeps = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("sleep %d = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestDo_SucceedsMidway(t *testing.T) {
	clock := retry.NewFakeClock(time.Now())
	policy := retry.NewPolicy().WithClock(clock)

	calls := 0
	err := policy.Do(t.Context(), func(context.Context) error {
		calls++
		if calls < 3 {
			return errNotReady
		}
		return nil
	})
	if err != nil {
		t.Fatalf("do: %v", err)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
	if n := len(clock.Sleeps()); n != 2 {
		t.Errorf("sleeps = %d, want 2", n)
	}
}

func TestDo_NonRetryableStopsImmediately(t *testing.T) {
	clock := retry.NewFakeClock(time.Now())
	policy := retry.NewPolicy().WithClock(clock)
	policy.RetryIf = func(err error) bool { return errors.Is(err, errNotReady) }

	fatal := errors.New("bad config")
	calls := 0
	err := policy.Do(t.Context(), func(context.Context) error {
		calls++
		return fatal
	})
	if !errors.Is(err, fatal) {
		t.Fatalf("err = %v", err)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want no retries", calls)
	}
}

func TestDo_ContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(t.Context())
	cancel()

	policy := retry.NewPolicy().WithClock(retry.NewFakeClock(time.Now()))
	err := policy.Do(ctx, func(context.Context) error { return errNotReady })
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}
