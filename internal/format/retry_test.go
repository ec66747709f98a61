package format

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestRetryExecuteSucceedsAfterFailures(t *testing.T) {
	policy := &RetryPolicy{MaxAttempts: 3, InitialDelay: time.Millisecond, Multiplier: 1, MaxDelay: time.Millisecond}

	attempts := 0
	err := policy.Execute(context.Background(), func() error {
		attempts++
		if attempts < 3 {
			return errors.New("not yet")
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if attempts != 3 {
		t.Errorf("attempts = %d", attempts)
	}
}

func TestRetryExecuteExhausted(t *testing.T) {
	policy := &RetryPolicy{MaxAttempts: 2, InitialDelay: time.Millisecond, Multiplier: 1, MaxDelay: time.Millisecond}

	attempts := 0
	wantErr := errors.New("always fails")
	err := policy.Execute(context.Background(), func() error {
		attempts++
		return wantErr
	})
	if !errors.Is(err, wantErr) {
		t.Errorf("err = %v", err)
	}
	if attempts != 2 {
		t.Errorf("attempts = %d", attempts)
	}
}

func TestRetryExecuteStopsOnCancel(t *testing.T) {
	policy := DefaultRetryPolicy()

	ctx, cancel := context.WithCancel(context.Background())
	attempts := 0
	err := policy.Execute(ctx, func() error {
		attempts++
		cancel()
		return errors.New("transient")
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if attempts != 1 {
		t.Errorf("attempts = %d, want 1", attempts)
	}
}

func TestNextDelayBackoff(t *testing.T) {
	policy := &RetryPolicy{
		MaxAttempts:  5,
		InitialDelay: 100 * time.Millisecond,
		Multiplier:   2,
		MaxDelay:     300 * time.Millisecond,
	}

	if d := policy.NextDelay(1); d != 100*time.Millisecond {
		t.Errorf("delay 1 = %s", d)
	}
	if d := policy.NextDelay(2); d != 200*time.Millisecond {
		t.Errorf("delay 2 = %s", d)
	}
	// Capped at MaxDelay.
	if d := policy.NextDelay(4); d != 300*time.Millisecond {
		t.Errorf("delay 4 = %s", d)
	}
}
