package utils

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestRetryBackoffDoublesAndCaps(t *testing.T) {
	r := &RetryConfig{BaseDelay: 2 * time.Second, MaxDelay: 10 * time.Second}

	want := []time.Duration{2 * time.Second, 4 * time.Second, 8 * time.Second, 10 * time.Second, 10 * time.Second}
	for i, w := range want {
		if got := r.Backoff(i + 1); got != w {
			t.Errorf("Backoff(%d) = %v; want %v", i+1, got, w)
		}
	}
}

func TestRetryDoRecordsIncreasingWaits(t *testing.T) {
	var waits []time.Duration
	r := &RetryConfig{
		MaxAttempts: 3,
		BaseDelay:   time.Second,
		Logger:      NewLogger(),
		Sleep: func(_ context.Context, d time.Duration) error {
			waits = append(waits, d)
			return nil
		},
	}

	calls := 0
	err := r.Do(context.Background(), "always-fails", func() error {
		calls++
		return errors.New("boom")
	})
	if err == nil {
		t.Fatal("expected error after exhausting attempts")
	}
	if calls != 3 {
		t.Errorf("calls: got %d, want 3", calls)
	}
	if len(waits) != 2 || waits[0] >= waits[1] {
		t.Errorf("waits should increase, got %v", waits)
	}
}

func TestRetryDoStopsOnNonRetryable(t *testing.T) {
	permanent := errors.New("bad request")
	r := &RetryConfig{
		MaxAttempts: 5,
		BaseDelay:   time.Millisecond,
		Retryable:   func(err error) bool { return !errors.Is(err, permanent) },
	}

	calls := 0
	err := r.Do(context.Background(), "permanent", func() error {
		calls++
		return permanent
	})
	if !errors.Is(err, permanent) {
		t.Errorf("expected wrapped permanent error, got %v", err)
	}
	if calls != 1 {
		t.Errorf("calls: got %d, want 1", calls)
	}
}

func TestRetryDoSucceedsAfterFailure(t *testing.T) {
	r := &RetryConfig{MaxAttempts: 3, BaseDelay: time.Millisecond}

	calls := 0
	err := r.Do(context.Background(), "flaky", func() error {
		calls++
		if calls < 2 {
			return errors.New("flaky")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 2 {
		t.Errorf("calls: got %d, want 2", calls)
	}
}

func TestRetryDoHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	r := &RetryConfig{MaxAttempts: 3, BaseDelay: time.Hour}

	err := r.Do(ctx, "cancelled", func() error {
		cancel()
		return errors.New("boom")
	})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}
