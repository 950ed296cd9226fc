// SPDX-License-Identifier: MPL-2.0

// Package poll repeatedly evaluates an async predicate with exponential
// backoff until it reports true, a wall-clock timeout elapses, or an attempt
// budget is exhausted — whichever bound hits first. Pollers are for waiting
// on side effects of a spawned process (a file appearing, a service coming
// up) rather than on the process's own exit.
package poll

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

var (
	// ErrPollTimeout is the sentinel error wrapped by TimeoutError.
	ErrPollTimeout = errors.New("poll timed out")

	// ErrExhausted is the sentinel error wrapped by ExhaustedError.
	ErrExhausted = errors.New("poll attempt budget exhausted")
)

// Default poll pacing, applied when Options fields are zero.
const (
	DefaultInitialDelay  = 100 * time.Millisecond
	DefaultMaxDelay      = 5 * time.Second
	DefaultBackoffFactor = 2.0
)

type (
	// Predicate is one asynchronous check. A returned error means "could not
	// determine yet" — it is logged and treated as not-yet-true, never
	// propagated, so a transient check failure does not abort the poll.
	Predicate func(context.Context) (bool, error)

	// Options bounds a poll.
	Options struct {
		// MaxAttempts is the attempt budget. Zero means unbounded attempts
		// (the Timeout alone terminates the poll).
		MaxAttempts int
		// InitialDelay is the sleep after the first false result.
		InitialDelay time.Duration
		// MaxDelay caps the grown delay.
		MaxDelay time.Duration
		// BackoffFactor grows the delay after each false result.
		BackoffFactor float64
		// Timeout is the wall-clock budget. Zero means no wall-clock bound
		// (MaxAttempts alone terminates the poll).
		Timeout time.Duration
	}

	// TimeoutError is returned when the wall-clock budget elapses first.
	TimeoutError struct {
		Elapsed  time.Duration
		Attempts int
	}

	// ExhaustedError is returned when the attempt budget runs out first.
	ExhaustedError struct {
		Attempts int
	}
)

// Error implements the error interface.
func (e *TimeoutError) Error() string {
	return fmt.Sprintf("poll timed out after %s (%d attempts)", e.Elapsed, e.Attempts)
}

// Unwrap returns ErrPollTimeout for errors.Is compatibility.
func (e *TimeoutError) Unwrap() error { return ErrPollTimeout }

// Error implements the error interface.
func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("poll attempt budget exhausted after %d attempts", e.Attempts)
}

// Unwrap returns ErrExhausted for errors.Is compatibility.
func (e *ExhaustedError) Unwrap() error { return ErrExhausted }

// withDefaults fills zero pacing fields. The bounds (MaxAttempts, Timeout)
// are deliberately not defaulted — an unbounded poll is the caller's
// explicit choice, expressed by leaving both at zero.
func (o Options) withDefaults() Options {
	if o.InitialDelay <= 0 {
		o.InitialDelay = DefaultInitialDelay
	}
	if o.MaxDelay <= 0 {
		o.MaxDelay = DefaultMaxDelay
	}
	if o.BackoffFactor <= 1 {
		o.BackoffFactor = DefaultBackoffFactor
	}
	return o
}

// Until evaluates pred until it reports true. It returns nil on success,
// TimeoutError when the wall-clock budget elapses, ExhaustedError when the
// attempt budget runs out, or the context error on cancellation.
func Until(ctx context.Context, pred Predicate, opts Options) error {
	opts = opts.withDefaults()
	start := time.Now()
	delay := opts.InitialDelay

	for attempt := 1; ; attempt++ {
		ok, err := pred(ctx)
		if err != nil {
			slog.Debug("poll predicate failed, treating as not ready",
				"attempt", attempt, "error", err)
		}
		if ok && err == nil {
			return nil
		}

		if opts.MaxAttempts > 0 && attempt >= opts.MaxAttempts {
			return &ExhaustedError{Attempts: attempt}
		}

		sleep := delay
		if opts.Timeout > 0 {
			remaining := opts.Timeout - time.Since(start)
			if remaining <= 0 {
				return &TimeoutError{Elapsed: time.Since(start), Attempts: attempt}
			}
			if sleep > remaining {
				sleep = remaining
			}
		}

		select {
		case <-time.After(sleep):
		case <-ctx.Done():
			return ctx.Err()
		}

		// Re-check the wall-clock budget before spending another attempt.
		if opts.Timeout > 0 && time.Since(start) >= opts.Timeout {
			return &TimeoutError{Elapsed: time.Since(start), Attempts: attempt}
		}

		delay = nextDelay(delay, opts)
	}
}

// nextDelay grows the delay by the backoff factor, capped at MaxDelay.
func nextDelay(current time.Duration, opts Options) time.Duration {
	grown := time.Duration(float64(current) * opts.BackoffFactor)
	if grown > opts.MaxDelay {
		return opts.MaxDelay
	}
	return grown
}
