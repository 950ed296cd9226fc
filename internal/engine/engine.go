// SPDX-License-Identifier: MPL-2.0

// Package engine is the composition root for command execution: given a
// command string and options, it composes the Node.js version environment
// (cached per session), injects the default timeout, dispatches to streamed
// or buffered execution, wraps the dispatch in the retry policy, and wraps
// the whole retry-wrapped call in the resource lock when an exclusive key is
// set.
//
// The ordering is itself a contract: retries re-run the full process spawn
// (including environment composition) on each attempt, and exclusivity spans
// all retries of one logical call — a second caller on the same key waits
// for all retries of the first to finish, not just its first attempt.
package engine

import (
	"context"
	"errors"
	"log/slog"
	"maps"
	"time"

	"vendrun-cli/internal/config"
	"vendrun-cli/internal/executor"
	"vendrun-cli/internal/keylock"
	"vendrun-cli/internal/nodever"
	"vendrun-cli/internal/retry"
)

// NodeVersion selection values. Anything else is an explicit version
// identifier such as "v20.11.1".
const (
	// NodeAuto resolves the hosting version by probing (cached per session).
	NodeAuto = "auto"
	// NodeSkip runs against the ambient environment. The zero value behaves
	// the same way.
	NodeSkip = "skip"
)

type (
	// Engine owns the shared state of the execution subsystem: the resource
	// lock map and the version-resolution cache. Both are confined to the
	// process and reset only by restart.
	Engine struct {
		cfg      *config.Config
		locks    *keylock.Manager
		resolver *nodever.Resolver
	}

	// RunOptions configures one logical call. A logical call may spawn
	// several attempts under the retry policy.
	RunOptions struct {
		// Timeout bounds each attempt. Zero takes the configured default.
		Timeout time.Duration
		// GracePeriod is the termination grace period. Zero takes the
		// configured default.
		GracePeriod time.Duration
		// WorkDir overrides the working directory.
		WorkDir string
		// Env contains environment overrides for the command.
		Env map[string]string
		// Output, when non-nil, receives live output chunks.
		Output chan<- executor.Chunk
		// ExclusiveKey serializes this call against every other call sharing
		// the same key. Empty means no exclusivity.
		ExclusiveKey string
		// Retry overrides the configured default policy. A nil predicate in
		// the override gets DefaultShouldRetry installed.
		Retry *retry.Policy
		// NodeVersion selects version resolution: NodeAuto, NodeSkip or ""
		// (ambient), or an explicit version identifier.
		NodeVersion string
		// Shell overrides the configured default shell mode.
		Shell executor.ShellMode
	}

	// Option configures an Engine during construction.
	Option func(*Engine)
)

// WithLockManager overrides the lock manager. Test seam.
func WithLockManager(m *keylock.Manager) Option {
	return func(e *Engine) { e.locks = m }
}

// WithResolver overrides the version resolver. Test seam.
func WithResolver(r *nodever.Resolver) Option {
	return func(e *Engine) { e.resolver = r }
}

// New creates an Engine from configuration. The lock manager and version
// resolver are process-wide; create one Engine per process.
func New(cfg *config.Config, opts ...Option) *Engine {
	e := &Engine{cfg: cfg}
	for _, opt := range opts {
		opt(e)
	}
	if e.locks == nil {
		var lockOpts []keylock.Option
		if cfg.LockDir != "" {
			lockOpts = append(lockOpts, keylock.WithLockDir(cfg.LockDir))
		}
		e.locks = keylock.NewManager(lockOpts...)
	}
	if e.resolver == nil && cfg.Node.ToolName != "" && !cfg.Node.Disabled {
		var resOpts []nodever.Option
		if cfg.Node.VersionsDir != "" {
			resOpts = append(resOpts, nodever.WithVersionsDir(cfg.Node.VersionsDir))
		}
		if len(cfg.Node.ProbeArgs) > 0 {
			resOpts = append(resOpts, nodever.WithProbeArgs(cfg.Node.ProbeArgs))
		}
		e.resolver = nodever.NewResolver(cfg.Node.ToolName, resOpts...)
	}
	return e
}

// Run executes command under the full policy stack. It returns the last
// attempt's result on success, or the last attempt's error unchanged.
func (e *Engine) Run(ctx context.Context, command string, opts RunOptions) (*executor.Result, error) {
	policy := e.retryPolicy(opts)

	attempt := func(ctx context.Context) (*executor.Result, error) {
		return retry.Do(ctx, policy, func(ctx context.Context) (*executor.Result, error) {
			// Environment composition happens inside the retried function so
			// every attempt re-runs the full spawn path.
			return executor.Execute(ctx, command, e.executorOptions(ctx, opts))
		})
	}

	if opts.ExclusiveKey != "" {
		return keylock.Exclusively(e.locks, ctx, opts.ExclusiveKey, attempt)
	}
	return attempt(ctx)
}

// RunExclusive serializes op against every other operation sharing key —
// for callers whose critical section spans multiple commands.
func (e *Engine) RunExclusive(ctx context.Context, key string, op func(context.Context) error) error {
	return e.locks.RunExclusive(ctx, key, op)
}

// Dispose tears down the lock manager, rejecting queued operations.
func (e *Engine) Dispose() {
	e.locks.Dispose()
}

// DefaultShouldRetry is the engine's retry-eligibility predicate. Timeouts
// are never retried automatically — a timed-out attempt already consumed its
// full budget, and blind retry compounds latency. Shell-syntax errors fail
// identically every time. Context errors mean the caller is gone. Everything
// else (non-zero exits, spawn races) is presumed transient.
func DefaultShouldRetry(err error, _ int) bool {
	switch {
	case errors.Is(err, executor.ErrTimeout),
		errors.Is(err, executor.ErrSyntax),
		errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):
		return false
	default:
		return true
	}
}

// retryPolicy picks the caller's override or the configured default and
// ensures an eligibility predicate is installed.
func (e *Engine) retryPolicy(opts RunOptions) retry.Policy {
	policy := e.cfg.RetryPolicy()
	if opts.Retry != nil {
		policy = *opts.Retry
	}
	if policy.ShouldRetry == nil {
		policy.ShouldRetry = DefaultShouldRetry
	}
	return policy
}

// executorOptions composes the per-attempt executor options: configured
// defaults, caller overrides, and the resolved Node.js environment.
func (e *Engine) executorOptions(ctx context.Context, opts RunOptions) executor.Options {
	execOpts := executor.Options{
		Timeout:       opts.Timeout,
		GracePeriod:   opts.GracePeriod,
		WorkDir:       opts.WorkDir,
		Output:        opts.Output,
		FailOnNonZero: true,
		Shell:         opts.Shell,
	}
	if execOpts.Timeout <= 0 {
		execOpts.Timeout = e.cfg.DefaultTimeout()
	}
	if execOpts.GracePeriod <= 0 {
		execOpts.GracePeriod = e.cfg.GracePeriod()
	}
	if execOpts.Shell == "" {
		execOpts.Shell = executor.ShellMode(e.cfg.DefaultShell)
	}

	env := make(map[string]string, len(opts.Env)+2)
	maps.Copy(env, e.nodeEnv(ctx, opts.NodeVersion))
	maps.Copy(env, opts.Env)
	if len(env) > 0 {
		execOpts.Env = env
	}
	return execOpts
}

// nodeEnv composes the version-selection environment. Resolution failure is
// non-fatal: the command falls back to whatever runtime is already active in
// the ambient environment.
func (e *Engine) nodeEnv(ctx context.Context, selection string) map[string]string {
	switch selection {
	case "", NodeSkip:
		return nil
	case NodeAuto:
		if e.resolver == nil {
			return nil
		}
		version, found := e.resolver.Resolve(ctx)
		if !found {
			slog.Debug("node version resolution found nothing, using ambient environment")
			return nil
		}
		return e.resolver.Invocation(version)
	default:
		if e.resolver == nil {
			slog.Debug("explicit node version requested but resolution is not configured",
				"version", selection)
			return nil
		}
		return e.resolver.Invocation(selection)
	}
}
