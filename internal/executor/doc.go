// SPDX-License-Identifier: MPL-2.0

// Package executor spawns a single external command and returns a structured
// result. It supports two shell modes (native system shell and the in-process
// mvdan/sh interpreter), buffered or streamed output capture, and a hard
// timeout with escalating termination: a graceful stop signal at expiry,
// followed by a forceful kill once a grace period elapses.
//
// The exit code is the sole success signal. A command that writes to stderr
// but exits zero is a success; callers must never infer failure from stream
// content. Failures are reported through typed errors (TimeoutError,
// ProcessError, SpawnError, SyntaxError), each unwrapping to a package
// sentinel for errors.Is checks.
package executor
