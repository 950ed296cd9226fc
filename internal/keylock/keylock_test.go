// SPDX-License-Identifier: MPL-2.0

package keylock

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestRunExclusive_SerializesSameKey(t *testing.T) {
	t.Parallel()

	m := NewManager()
	ctx := context.Background()

	var (
		active    atomic.Int32
		maxActive atomic.Int32
		wg        sync.WaitGroup
	)

	start := time.Now()
	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := m.RunExclusive(ctx, "session", func(context.Context) error {
				n := active.Add(1)
				if n > maxActive.Load() {
					maxActive.Store(n)
				}
				time.Sleep(100 * time.Millisecond)
				active.Add(-1)
				return nil
			})
			if err != nil {
				t.Errorf("RunExclusive() error = %v, want nil", err)
			}
		}()
		// Give each submission time to park behind the tail before the next
		// one, so the chain order is deterministic.
		time.Sleep(10 * time.Millisecond)
	}
	wg.Wait()

	if got := maxActive.Load(); got != 1 {
		t.Errorf("max concurrent operations on one key = %d, want 1", got)
	}
	if elapsed := time.Since(start); elapsed < 300*time.Millisecond {
		t.Errorf("three 100ms operations finished in %s, want >= 300ms", elapsed)
	}
}

func TestRunExclusive_FIFOOrder(t *testing.T) {
	t.Parallel()

	m := NewManager()
	ctx := context.Background()

	var (
		mu    sync.Mutex
		order []int
		wg    sync.WaitGroup
	)

	for i := 0; i < 5; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = m.RunExclusive(ctx, "session", func(context.Context) error {
				mu.Lock()
				order = append(order, i)
				mu.Unlock()
				time.Sleep(20 * time.Millisecond)
				return nil
			})
		}()
		time.Sleep(10 * time.Millisecond)
	}
	wg.Wait()

	for i, got := range order {
		if got != i {
			t.Fatalf("execution order = %v, want submission order [0 1 2 3 4]", order)
		}
	}
}

func TestRunExclusive_IndependentKeys(t *testing.T) {
	t.Parallel()

	m := NewManager()
	ctx := context.Background()

	var wg sync.WaitGroup
	start := time.Now()
	for _, key := range []string{"alpha", "beta"} {
		key := key
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = m.RunExclusive(ctx, key, func(context.Context) error {
				time.Sleep(150 * time.Millisecond)
				return nil
			})
		}()
	}
	wg.Wait()

	if elapsed := time.Since(start); elapsed >= 280*time.Millisecond {
		t.Errorf("distinct keys took %s, want concurrent execution (< 280ms)", elapsed)
	}
}

func TestRunExclusive_ErrorReleasesLock(t *testing.T) {
	t.Parallel()

	m := NewManager()
	ctx := context.Background()
	opErr := errors.New("operation failed")

	if err := m.RunExclusive(ctx, "session", func(context.Context) error {
		return opErr
	}); !errors.Is(err, opErr) {
		t.Fatalf("RunExclusive() error = %v, want %v", err, opErr)
	}

	// A failed operation must still settle its chain link.
	done := make(chan error, 1)
	go func() {
		done <- m.RunExclusive(ctx, "session", func(context.Context) error { return nil })
	}()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("follow-up RunExclusive() error = %v, want nil", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("follow-up operation never ran; failed predecessor did not release the lock")
	}
}

func TestExclusively_ReturnsValue(t *testing.T) {
	t.Parallel()

	m := NewManager()
	got, err := Exclusively(m, context.Background(), "session", func(context.Context) (int, error) {
		return 42, nil
	})
	if err != nil {
		t.Fatalf("Exclusively() error = %v, want nil", err)
	}
	if got != 42 {
		t.Errorf("Exclusively() = %d, want 42", got)
	}
}

func TestDispose_RejectsQueuedOperations(t *testing.T) {
	t.Parallel()

	m := NewManager()
	ctx := context.Background()

	holding := make(chan struct{})
	release := make(chan struct{})
	first := make(chan error, 1)
	go func() {
		first <- m.RunExclusive(ctx, "session", func(context.Context) error {
			close(holding)
			<-release
			return nil
		})
	}()
	<-holding

	queued := make(chan error, 1)
	go func() {
		queued <- m.RunExclusive(ctx, "session", func(context.Context) error {
			t.Error("queued operation ran after Dispose")
			return nil
		})
	}()
	time.Sleep(20 * time.Millisecond) // let the second call park behind the first

	m.Dispose()
	close(release)

	if err := <-first; err != nil {
		t.Errorf("running operation error = %v, want nil (already-running work completes)", err)
	}

	err := <-queued
	if !errors.Is(err, ErrDisposed) {
		t.Fatalf("queued operation error = %v, want ErrDisposed", err)
	}
	var dispErr *DisposedError
	if !errors.As(err, &dispErr) {
		t.Fatalf("queued operation error type = %T, want *DisposedError", err)
	}
	if dispErr.Key != "session" {
		t.Errorf("DisposedError.Key = %q, want %q", dispErr.Key, "session")
	}
}

func TestDispose_RejectsNewSubmissions(t *testing.T) {
	t.Parallel()

	m := NewManager()
	m.Dispose()
	m.Dispose() // idempotent

	err := m.RunExclusive(context.Background(), "session", func(context.Context) error {
		return nil
	})
	if !errors.Is(err, ErrDisposed) {
		t.Errorf("RunExclusive() after Dispose error = %v, want ErrDisposed", err)
	}
}

func TestRunExclusive_ContextCanceledWhileQueued(t *testing.T) {
	t.Parallel()

	m := NewManager()

	holding := make(chan struct{})
	release := make(chan struct{})
	go func() {
		_ = m.RunExclusive(context.Background(), "session", func(context.Context) error {
			close(holding)
			<-release
			return nil
		})
	}()
	<-holding
	defer close(release)

	ctx, cancel := context.WithCancel(context.Background())
	queued := make(chan error, 1)
	go func() {
		queued <- m.RunExclusive(ctx, "session", func(context.Context) error {
			t.Error("operation ran despite canceled context")
			return nil
		})
	}()
	time.Sleep(20 * time.Millisecond)
	cancel()

	if err := <-queued; !errors.Is(err, context.Canceled) {
		t.Errorf("queued operation error = %v, want context.Canceled", err)
	}
}

func TestRunExclusive_CanceledWaiterKeepsChainIntact(t *testing.T) {
	t.Parallel()

	m := NewManager()

	var (
		active    atomic.Int32
		maxActive atomic.Int32
	)
	track := func(d time.Duration) func(context.Context) error {
		return func(context.Context) error {
			n := active.Add(1)
			if n > maxActive.Load() {
				maxActive.Store(n)
			}
			time.Sleep(d)
			active.Add(-1)
			return nil
		}
	}

	holding := make(chan struct{})
	release := make(chan struct{})
	first := make(chan error, 1)
	go func() {
		first <- m.RunExclusive(context.Background(), "session", func(ctx context.Context) error {
			close(holding)
			<-release
			return track(100 * time.Millisecond)(ctx)
		})
	}()
	<-holding

	// Second waiter parks behind the first, then gives up.
	ctx, cancel := context.WithCancel(context.Background())
	second := make(chan error, 1)
	go func() {
		second <- m.RunExclusive(ctx, "session", func(context.Context) error {
			t.Error("cancelled waiter's operation ran")
			return nil
		})
	}()
	time.Sleep(20 * time.Millisecond)

	// Third waiter chains behind the second.
	third := make(chan error, 1)
	go func() {
		third <- m.RunExclusive(context.Background(), "session", track(50*time.Millisecond))
	}()
	time.Sleep(20 * time.Millisecond)

	cancel()
	if err := <-second; !errors.Is(err, context.Canceled) {
		t.Fatalf("cancelled waiter error = %v, want context.Canceled", err)
	}

	// The first operation is still inside its critical section; the third
	// must wait it out even though its direct predecessor abandoned the queue.
	close(release)
	if err := <-first; err != nil {
		t.Errorf("first operation error = %v, want nil", err)
	}
	if err := <-third; err != nil {
		t.Errorf("third operation error = %v, want nil", err)
	}
	if got := maxActive.Load(); got != 1 {
		t.Errorf("max concurrent operations on one key = %d, want 1", got)
	}
}

func TestRunExclusive_WithLockDir(t *testing.T) {
	t.Parallel()

	m := NewManager(WithLockDir(t.TempDir()))
	err := m.RunExclusive(context.Background(), "session/with:odd chars", func(context.Context) error {
		return nil
	})
	if err != nil {
		t.Errorf("RunExclusive() with lock dir error = %v, want nil", err)
	}
}
