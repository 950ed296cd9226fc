// SPDX-License-Identifier: MPL-2.0

package poll

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestUntil_ImmediateSuccess(t *testing.T) {
	t.Parallel()

	calls := 0
	err := Until(context.Background(), func(context.Context) (bool, error) {
		calls++
		return true, nil
	}, Options{MaxAttempts: 5})
	if err != nil {
		t.Fatalf("Until() error = %v, want nil", err)
	}
	if calls != 1 {
		t.Errorf("predicate ran %d times, want 1", calls)
	}
}

func TestUntil_SucceedsAfterRetries(t *testing.T) {
	t.Parallel()

	calls := 0
	err := Until(context.Background(), func(context.Context) (bool, error) {
		calls++
		return calls >= 3, nil
	}, Options{MaxAttempts: 5, InitialDelay: time.Millisecond})
	if err != nil {
		t.Fatalf("Until() error = %v, want nil", err)
	}
	if calls != 3 {
		t.Errorf("predicate ran %d times, want 3", calls)
	}
}

func TestUntil_AttemptBudgetExhausted(t *testing.T) {
	t.Parallel()

	calls := 0
	err := Until(context.Background(), func(context.Context) (bool, error) {
		calls++
		return false, nil
	}, Options{MaxAttempts: 3, InitialDelay: time.Millisecond})

	if !errors.Is(err, ErrExhausted) {
		t.Fatalf("Until() error = %v, want ErrExhausted", err)
	}
	var exhErr *ExhaustedError
	if !errors.As(err, &exhErr) {
		t.Fatalf("Until() error type = %T, want *ExhaustedError", err)
	}
	if exhErr.Attempts != 3 {
		t.Errorf("ExhaustedError.Attempts = %d, want 3", exhErr.Attempts)
	}
	if calls != 3 {
		t.Errorf("predicate ran %d times, want exactly the attempt budget (3)", calls)
	}
}

func TestUntil_WallClockTimeout(t *testing.T) {
	t.Parallel()

	start := time.Now()
	err := Until(context.Background(), func(context.Context) (bool, error) {
		return false, nil
	}, Options{Timeout: 300 * time.Millisecond, InitialDelay: 50 * time.Millisecond})
	elapsed := time.Since(start)

	if !errors.Is(err, ErrPollTimeout) {
		t.Fatalf("Until() error = %v, want ErrPollTimeout", err)
	}
	var toErr *TimeoutError
	if !errors.As(err, &toErr) {
		t.Fatalf("Until() error type = %T, want *TimeoutError", err)
	}
	if toErr.Attempts < 1 {
		t.Errorf("TimeoutError.Attempts = %d, want >= 1", toErr.Attempts)
	}
	// The sleep is clamped to the remaining budget, so the poll settles close
	// to the timeout rather than overshooting by a full backoff step.
	if elapsed < 300*time.Millisecond || elapsed > time.Second {
		t.Errorf("poll settled after %s, want between 300ms and 1s", elapsed)
	}
}

func TestUntil_PredicateErrorTreatedAsNotReady(t *testing.T) {
	t.Parallel()

	calls := 0
	err := Until(context.Background(), func(context.Context) (bool, error) {
		calls++
		if calls < 3 {
			return false, errors.New("cannot determine yet")
		}
		return true, nil
	}, Options{MaxAttempts: 5, InitialDelay: time.Millisecond})
	if err != nil {
		t.Fatalf("Until() error = %v, want nil (predicate errors are not propagated)", err)
	}
	if calls != 3 {
		t.Errorf("predicate ran %d times, want 3", calls)
	}
}

func TestUntil_PredicateErrorWithTrueIsNotSuccess(t *testing.T) {
	t.Parallel()

	err := Until(context.Background(), func(context.Context) (bool, error) {
		return true, errors.New("unreliable result")
	}, Options{MaxAttempts: 2, InitialDelay: time.Millisecond})
	if !errors.Is(err, ErrExhausted) {
		t.Errorf("Until() error = %v, want ErrExhausted (true with error is not ready)", err)
	}
}

func TestUntil_ContextCanceled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- Until(ctx, func(context.Context) (bool, error) {
			return false, nil
		}, Options{InitialDelay: 10 * time.Second, Timeout: time.Minute})
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Until() error = %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Until() did not return after context cancellation")
	}
}
