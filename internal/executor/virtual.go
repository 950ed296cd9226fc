// SPDX-License-Identifier: MPL-2.0

package executor

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"time"

	"mvdan.cc/sh/v3/expand"
	"mvdan.cc/sh/v3/interp"
	"mvdan.cc/sh/v3/syntax"
)

// runVirtual interprets the command in-process with mvdan/sh. There is no
// child process to signal, so timeout escalation reduces to the interpreter
// honoring context cancellation; the caller-visible TimeoutError contract is
// identical to the native path.
func runVirtual(ctx, execCtx context.Context, command string, opts Options) (*Result, error) {
	prog, err := syntax.NewParser().Parse(strings.NewReader(command), "command")
	if err != nil {
		return nil, &SyntaxError{Command: command, Err: err}
	}

	var stdout, stderr bytes.Buffer
	runnerOpts := []interp.RunnerOption{
		interp.Env(expand.ListEnviron(composeEnv(opts)...)),
		interp.StdIO(nil,
			outputWriter(&stdout, StreamStdout, opts.Output),
			outputWriter(&stderr, StreamStderr, opts.Output)),
	}
	if opts.WorkDir != "" {
		runnerOpts = append(runnerOpts, interp.Dir(opts.WorkDir))
	}

	runner, err := interp.New(runnerOpts...)
	if err != nil {
		return nil, &SpawnError{Command: command, Err: err}
	}

	start := time.Now()
	runErr := runner.Run(execCtx, prog)
	duration := time.Since(start)

	result := &Result{
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		Duration: duration,
	}

	if runErr == nil {
		return result, nil
	}

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

	var exitStatus interp.ExitStatus
	if errors.As(runErr, &exitStatus) {
		result.ExitCode = int(exitStatus)
		if opts.FailOnNonZero {
			return nil, &ProcessError{
				Command:  command,
				ExitCode: result.ExitCode,
				Stdout:   result.Stdout,
				Stderr:   result.Stderr,
			}
		}
		return result, nil
	}

	return nil, &SpawnError{Command: command, Err: runErr}
}
