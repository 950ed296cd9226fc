// SPDX-License-Identifier: MPL-2.0

// Package retry wraps a fallible operation with bounded attempts, exponential
// backoff, and a retry-eligibility predicate.
//
// Eligibility is a predicate over the error content, not a blanket policy:
// transient failures (flaky external-tool hiccups) are worth re-attempting,
// while permanent ones (syntax errors, definite timeouts) fail identically
// every time and are surfaced immediately. The last attempt's error is always
// returned untouched — never wrapped — so callers keep its identity.
package retry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"
)

// ErrInvalidPolicy is the sentinel error wrapped by InvalidPolicyError.
var ErrInvalidPolicy = errors.New("invalid retry policy")

type (
	// Policy is pure retry configuration. It holds no mutable state, so one
	// instance may be shared by any number of concurrent operations.
	Policy struct {
		// MaxAttempts is the total attempt ceiling, including the first.
		MaxAttempts int
		// InitialDelay is the sleep before the second attempt.
		InitialDelay time.Duration
		// MaxDelay caps the grown delay.
		MaxDelay time.Duration
		// BackoffFactor multiplies the delay after each failed attempt.
		BackoffFactor float64
		// ShouldRetry, when set, is consulted after each failed attempt that
		// has budget left. Returning false surfaces the error immediately.
		// attempt is 1-based. Nil means every error is eligible.
		ShouldRetry func(err error, attempt int) bool
	}

	// InvalidPolicyError is returned by Do when a Policy has invalid fields.
	InvalidPolicyError struct {
		FieldErrors []error
	}
)

// Error implements the error interface.
func (e *InvalidPolicyError) Error() string {
	return fmt.Sprintf("invalid retry policy: %d field error(s)", len(e.FieldErrors))
}

// Unwrap returns ErrInvalidPolicy for errors.Is compatibility.
func (e *InvalidPolicyError) Unwrap() error { return ErrInvalidPolicy }

// IsValid returns whether the Policy is usable, and the field-level errors
// if it is not.
func (p Policy) IsValid() (bool, []error) {
	var errs []error
	if p.MaxAttempts < 1 {
		errs = append(errs, fmt.Errorf("max attempts must be >= 1, got %d", p.MaxAttempts))
	}
	if p.InitialDelay < 0 {
		errs = append(errs, fmt.Errorf("initial delay must be >= 0, got %s", p.InitialDelay))
	}
	if p.MaxDelay < 0 {
		errs = append(errs, fmt.Errorf("max delay must be >= 0, got %s", p.MaxDelay))
	}
	if p.BackoffFactor != 0 && p.BackoffFactor <= 1 {
		errs = append(errs, fmt.Errorf("backoff factor must be > 1, got %g", p.BackoffFactor))
	}
	if len(errs) > 0 {
		return false, []error{&InvalidPolicyError{FieldErrors: errs}}
	}
	return true, nil
}

// Delay returns the sleep before attempt+1, given that attempt (1-based)
// just failed: min(InitialDelay × BackoffFactor^(attempt−1), MaxDelay).
func (p Policy) Delay(attempt int) time.Duration {
	if p.InitialDelay <= 0 {
		return 0
	}
	factor := p.BackoffFactor
	if factor == 0 {
		factor = 1
	}
	delay := float64(p.InitialDelay) * math.Pow(factor, float64(attempt-1))
	if p.MaxDelay > 0 && delay > float64(p.MaxDelay) {
		delay = float64(p.MaxDelay)
	}
	return time.Duration(delay)
}

// Do runs op up to policy.MaxAttempts times. The first attempt runs
// immediately. On failure with budget left, the ShouldRetry predicate (when
// present) decides eligibility; ineligible or exhausted errors are returned
// exactly as the operation produced them. The sleep between attempts honors
// context cancellation.
func Do[T any](ctx context.Context, policy Policy, op func(context.Context) (T, error)) (T, error) {
	var zero T
	if ok, errs := policy.IsValid(); !ok {
		return zero, errs[0]
	}

	for attempt := 1; ; attempt++ {
		result, err := op(ctx)
		if err == nil {
			return result, nil
		}
		if attempt >= policy.MaxAttempts {
			return zero, err
		}
		if policy.ShouldRetry != nil && !policy.ShouldRetry(err, attempt) {
			return zero, err
		}

		delay := policy.Delay(attempt)
		slog.Debug("attempt failed, retrying",
			"attempt", attempt, "maxAttempts", policy.MaxAttempts, "delay", delay, "error", err)

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return zero, ctx.Err()
		}
	}
}
