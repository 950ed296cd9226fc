// SPDX-License-Identifier: MPL-2.0

package executor

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrTimeout is the sentinel error wrapped by TimeoutError.
	ErrTimeout = errors.New("command timed out")

	// ErrProcess is the sentinel error wrapped by ProcessError.
	ErrProcess = errors.New("command exited non-zero")

	// ErrSpawn is the sentinel error wrapped by SpawnError.
	ErrSpawn = errors.New("command could not be started")

	// ErrSyntax is the sentinel error wrapped by SyntaxError.
	ErrSyntax = errors.New("invalid shell syntax")
)

type (
	// TimeoutError is returned when a command's timeout elapses. The process
	// was terminated — gracefully or, after the grace period, forcefully.
	// Callers never need to distinguish which signal finally landed.
	TimeoutError struct {
		Command     string
		Timeout     time.Duration
		GracePeriod time.Duration
		// Stdout and Stderr hold whatever output arrived before termination.
		Stdout string
		Stderr string
	}

	// ProcessError is returned when a command exits non-zero and the caller
	// requested failure-on-nonzero semantics. It carries enough structured
	// detail (exit code, both streams, terminating signal if any) for callers
	// to translate into domain messages.
	ProcessError struct {
		Command  string
		ExitCode int
		Stdout   string
		Stderr   string
		// Signal is the name of the signal that terminated the process, or
		// empty when it exited on its own.
		Signal string
	}

	// SpawnError is returned when the OS could not start the process at all
	// (missing binary, permission denied). The underlying cause is preserved
	// in Err.
	SpawnError struct {
		Command string
		Err     error
	}

	// SyntaxError is returned when the command fails shell-syntax preflight.
	// Syntax errors are permanent: the same command fails identically every
	// time, so retrying is never useful.
	SyntaxError struct {
		Command string
		Err     error
	}
)

// Error implements the error interface.
func (e *TimeoutError) Error() string {
	return fmt.Sprintf("command timed out after %s: %s", e.Timeout, e.Command)
}

// Unwrap returns ErrTimeout so callers can use errors.Is for detection.
func (e *TimeoutError) Unwrap() error { return ErrTimeout }

// Error implements the error interface.
func (e *ProcessError) Error() string {
	if e.Signal != "" {
		return fmt.Sprintf("command terminated by signal %s: %s", e.Signal, e.Command)
	}
	return fmt.Sprintf("command exited with code %d: %s", e.ExitCode, e.Command)
}

// Unwrap returns ErrProcess so callers can use errors.Is for detection.
func (e *ProcessError) Unwrap() error { return ErrProcess }

// Error implements the error interface.
func (e *SpawnError) Error() string {
	return fmt.Sprintf("failed to start command %q: %v", e.Command, e.Err)
}

// Unwrap returns ErrSpawn so callers can use errors.Is for detection.
// The original cause remains available via the Err field.
func (e *SpawnError) Unwrap() error { return ErrSpawn }

// Error implements the error interface.
func (e *SyntaxError) Error() string {
	return fmt.Sprintf("shell syntax error in %q: %v", e.Command, e.Err)
}

// Unwrap returns ErrSyntax so callers can use errors.Is for detection.
func (e *SyntaxError) Unwrap() error { return ErrSyntax }
