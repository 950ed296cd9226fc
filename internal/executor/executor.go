// SPDX-License-Identifier: MPL-2.0

package executor

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"os/exec"
	"time"
)

// Shell mode constants for the two execution environments.
const (
	// ShellNative spawns the command through the system shell.
	ShellNative ShellMode = "native"
	// ShellVirtual interprets the command in-process with mvdan/sh. It is
	// always available, platform-independent, and cheap — used for probes
	// and anywhere a real OS shell is not required.
	ShellVirtual ShellMode = "virtual"
)

// DefaultGracePeriod is the delay between the graceful termination signal
// and the forceful kill when a timeout expires.
const DefaultGracePeriod = 2 * time.Second

type (
	// ShellMode selects how a command is interpreted.
	ShellMode string

	// Options configures a single execution attempt.
	Options struct {
		// Timeout is the wall-clock budget for the command. Zero means no
		// timeout; the command runs until it exits or the context ends.
		Timeout time.Duration
		// GracePeriod is the delay between the graceful termination signal
		// and the forceful kill. Zero falls back to DefaultGracePeriod.
		GracePeriod time.Duration
		// WorkDir overrides the working directory.
		WorkDir string
		// Env contains environment overrides applied on top of the inherited
		// host environment. Overrides always win over inherited values.
		Env map[string]string
		// NoInherit starts from an empty environment instead of the host's.
		// Env overrides still apply. Used for isolated probing.
		NoInherit bool
		// Output, when non-nil, receives stdout/stderr chunks as they
		// arrive. Sends block until the consumer is ready (explicit
		// backpressure). Output is still accumulated into the Result.
		// The channel is not closed by the executor; one execution may be
		// one of several producers.
		Output chan<- Chunk
		// FailOnNonZero makes a non-zero exit an error (ProcessError)
		// instead of a Result with a non-zero ExitCode.
		FailOnNonZero bool
		// Shell selects the execution environment. Zero value is ShellNative.
		Shell ShellMode
		// ShellPath overrides native shell discovery.
		ShellPath string
	}

	// Result is the outcome of one execution attempt. It is produced exactly
	// once per attempt and never mutated afterwards.
	Result struct {
		Stdout   string
		Stderr   string
		ExitCode int
		Duration time.Duration
	}
)

// Success reports whether the attempt exited zero.
func (r *Result) Success() bool { return r.ExitCode == 0 }

// Execute runs command through the selected shell and returns its result.
// Zero-byte output is valid; the exit code is the sole success signal.
func Execute(ctx context.Context, command string, opts Options) (*Result, error) {
	if opts.GracePeriod <= 0 {
		opts.GracePeriod = DefaultGracePeriod
	}

	execCtx := ctx
	var cancel context.CancelFunc
	if opts.Timeout > 0 {
		execCtx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	switch opts.Shell {
	case ShellVirtual:
		return runVirtual(ctx, execCtx, command, opts)
	default:
		return runNative(ctx, execCtx, command, opts)
	}
}

// runNative spawns the command through the system shell with escalating
// termination: the graceful signal fires when the timeout context expires,
// and exec's WaitDelay forces a kill once the grace period elapses.
func runNative(ctx, execCtx context.Context, command string, opts Options) (*Result, error) {
	shell, shellArgs, err := resolveShell(opts.ShellPath)
	if err != nil {
		return nil, &SpawnError{Command: command, Err: err}
	}

	if isPOSIXShell(shell) {
		if err := checkSyntax(command); err != nil {
			return nil, err
		}
	}

	cmd := exec.CommandContext(execCtx, shell, append(shellArgs, command)...)
	cmd.Dir = opts.WorkDir
	cmd.Env = composeEnv(opts)

	// Escalation: Cancel sends the graceful signal on context expiry,
	// WaitDelay bounds how long Wait tolerates a process that ignores it
	// before exec delivers the forceful kill.
	cmd.Cancel = func() error { return terminate(cmd) }
	cmd.WaitDelay = opts.GracePeriod

	var stdout, stderr bytes.Buffer
	cmd.Stdout = outputWriter(&stdout, StreamStdout, opts.Output)
	cmd.Stderr = outputWriter(&stderr, StreamStderr, opts.Output)

	start := time.Now()
	runErr := cmd.Run()
	duration := time.Since(start)

	result := &Result{
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		Duration: duration,
	}

	if runErr == nil {
		return result, nil
	}

	// The parent context ending takes priority over everything else: the
	// caller cancelled, so surface that rather than a timeout or exit code.
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	if errors.Is(execCtx.Err(), context.DeadlineExceeded) {
		return nil, &TimeoutError{
			Command:     command,
			Timeout:     opts.Timeout,
			GracePeriod: opts.GracePeriod,
			Stdout:      result.Stdout,
			Stderr:      result.Stderr,
		}
	}

	var exitErr *exec.ExitError
	if errors.As(runErr, &exitErr) {
		result.ExitCode = exitErr.ExitCode()
		if opts.FailOnNonZero {
			return nil, &ProcessError{
				Command:  command,
				ExitCode: result.ExitCode,
				Stdout:   result.Stdout,
				Stderr:   result.Stderr,
				Signal:   exitSignal(exitErr),
			}
		}
		return result, nil
	}

	return nil, &SpawnError{Command: command, Err: runErr}
}

// composeEnv builds the process environment as an explicit list. The ambient
// process environment is never mutated; overrides are appended last so they
// win over inherited values.
func composeEnv(opts Options) []string {
	var base []string
	if !opts.NoInherit {
		base = os.Environ()
	}
	if len(opts.Env) == 0 {
		return base
	}
	return append(base, envToSlice(opts.Env)...)
}

// envToSlice converts an environment map to KEY=VALUE form.
func envToSlice(env map[string]string) []string {
	out := make([]string, 0, len(env))
	for k, v := range env {
		out = append(out, k+"="+v)
	}
	return out
}

// outputWriter returns the destination for one stream: the buffer alone for
// buffered capture, or a tee that also pushes chunks to the caller's channel.
func outputWriter(buf *bytes.Buffer, stream OutputStream, out chan<- Chunk) io.Writer {
	if out == nil {
		return buf
	}
	return &chunkWriter{stream: stream, out: out, buf: buf}
}
