// SPDX-License-Identifier: MPL-2.0

// Package keylock serializes operations that share an opaque resource key
// (e.g. one vendor tool's on-disk session state) while letting unrelated keys
// run fully concurrently.
//
// The lock is a chain: each submission parks behind the key's current tail
// and immediately becomes the new tail, so per-key execution order is exactly
// submission order. There is no explicit unlock — release is implicit when
// the chained operation settles. Keys are created on first use and replaced,
// never deleted; the map never outlives the process.
package keylock

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
)

// ErrDisposed is the sentinel error wrapped by DisposedError.
var ErrDisposed = errors.New("lock manager disposed")

type (
	// Manager maps resource keys to the tail of their operation chain.
	Manager struct {
		mu        sync.Mutex
		tails     map[string]<-chan struct{}
		disposed  chan struct{}
		disposing bool

		// lockDir, when set, adds flock-backed cross-process serialization
		// per key on platforms that support it.
		lockDir string
	}

	// Option configures a Manager during construction.
	Option func(*Manager)

	// DisposedError is returned to operations still queued when the manager
	// was torn down. Queued work is rejected rather than left pending forever.
	DisposedError struct {
		Key string
	}
)

// Error implements the error interface.
func (e *DisposedError) Error() string {
	return fmt.Sprintf("lock manager disposed while operation on %q was queued", e.Key)
}

// Unwrap returns ErrDisposed for errors.Is compatibility.
func (e *DisposedError) Unwrap() error { return ErrDisposed }

// WithLockDir enables flock-backed cross-process serialization: each key
// additionally holds an exclusive lock on a file under dir while its
// operation runs. On platforms without flock the in-process chain alone
// applies.
func WithLockDir(dir string) Option {
	return func(m *Manager) { m.lockDir = dir }
}

// NewManager creates an empty lock manager.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		tails:    make(map[string]<-chan struct{}),
		disposed: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// RunExclusive runs op while holding key's lock. For a fixed key, operations
// submitted through the manager execute one at a time in submission order;
// distinct keys never block each other.
func (m *Manager) RunExclusive(ctx context.Context, key string, op func(context.Context) error) error {
	_, err := Exclusively(m, ctx, key, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, op(ctx)
	})
	return err
}

// Exclusively is the generic form of RunExclusive for operations that
// produce a value.
func Exclusively[T any](m *Manager, ctx context.Context, key string, op func(context.Context) (T, error)) (T, error) {
	var zero T

	m.mu.Lock()
	if m.disposing {
		m.mu.Unlock()
		return zero, &DisposedError{Key: key}
	}
	prev := m.tails[key]
	done := make(chan struct{})
	m.tails[key] = done
	m.mu.Unlock()

	if prev != nil {
		select {
		case <-prev:
		case <-m.disposed:
			close(done)
			return zero, &DisposedError{Key: key}
		case <-ctx.Done():
			// The predecessor is still running. Hand the chain link off so
			// successors keep waiting it out; closing done here would let
			// them overlap the running operation.
			go func() {
				<-prev
				close(done)
			}()
			return zero, ctx.Err()
		}
	}

	// From here on the slot holds the lock: settling the link is what
	// releases it, even when the operation errors out.
	defer close(done)

	// Disposal may have raced the predecessor finishing; queued work must
	// not start after Dispose.
	select {
	case <-m.disposed:
		return zero, &DisposedError{Key: key}
	default:
	}

	if m.lockDir != "" {
		fl, err := acquireFileLock(m.lockDir, key)
		if err != nil {
			if errors.Is(err, errFlockUnavailable) {
				// In-process chain already serializes; cross-process
				// protection is best-effort on these platforms.
				slog.Debug("flock unavailable, relying on in-process lock", "key", key, "error", err)
			} else {
				return zero, err
			}
		} else {
			defer fl.Release()
		}
	}

	return op(ctx)
}

// Dispose tears the manager down. Operations already running complete;
// operations still queued are rejected with DisposedError rather than left
// pending forever. Dispose is idempotent.
func (m *Manager) Dispose() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.disposing {
		return
	}
	m.disposing = true
	close(m.disposed)
}
