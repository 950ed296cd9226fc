// SPDX-License-Identifier: MPL-2.0

// Package nodever discovers which installed Node.js version exposes a target
// vendor CLI tool. Version managers like nvm install each version under its
// own directory; a tool distributed through npm is only present in the
// version trees where it was installed, which need not be the session's
// active version.
//
// Discovery probes candidates in descending semver order by running the
// tool's version subcommand with a PATH-prefixed, isolated environment — the
// session's active version is never switched and the ambient process
// environment is never mutated, so concurrent unrelated work is unaffected.
//
// Probing spawns one process per candidate and is therefore expensive. The
// answer — including "not found" — is memoized for the resolver's lifetime;
// a process restart is the only cache invalidation.
package nodever

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/mod/semver"

	"vendrun-cli/internal/executor"
)

// DefaultProbeTimeout bounds a single candidate probe. Probes run a trivial
// version subcommand; anything slower than this is effectively hung.
const DefaultProbeTimeout = 15 * time.Second

type (
	// Resolver memoizes which installed Node.js version exposes the target
	// tool. The zero value is not usable; construct with NewResolver.
	Resolver struct {
		toolName     string
		probeArgs    []string
		versionsDir  string
		probeTimeout time.Duration
		probe        ProbeFunc

		// mu also serializes the probe sequence itself, so concurrent
		// first callers share a single discovery pass.
		mu       sync.Mutex
		resolved bool
		version  string // empty = not-found sentinel
	}

	// ProbeFunc reports whether the target tool runs successfully out of the
	// given version's bin directory. Injectable for tests.
	ProbeFunc func(ctx context.Context, binDir string) bool

	// Option configures a Resolver during construction.
	Option func(*Resolver)
)

// WithVersionsDir overrides the installed-versions directory.
func WithVersionsDir(dir string) Option {
	return func(r *Resolver) { r.versionsDir = dir }
}

// WithProbeArgs overrides the tool's version subcommand arguments
// (default: --version).
func WithProbeArgs(args []string) Option {
	return func(r *Resolver) { r.probeArgs = args }
}

// WithProbeTimeout overrides the per-candidate probe budget.
func WithProbeTimeout(d time.Duration) Option {
	return func(r *Resolver) { r.probeTimeout = d }
}

// WithProbeFunc replaces the process-spawning probe. Test seam.
func WithProbeFunc(probe ProbeFunc) Option {
	return func(r *Resolver) { r.probe = probe }
}

// NewResolver creates a resolver for the given tool.
func NewResolver(toolName string, opts ...Option) *Resolver {
	r := &Resolver{
		toolName:     toolName,
		probeArgs:    []string{"--version"},
		versionsDir:  DefaultVersionsDir(),
		probeTimeout: DefaultProbeTimeout,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.probe == nil {
		r.probe = r.execProbe
	}
	return r
}

// DefaultVersionsDir returns the nvm-style installed-versions directory:
// $NVM_DIR/versions/node, falling back to ~/.nvm/versions/node.
func DefaultVersionsDir() string {
	if dir := os.Getenv("NVM_DIR"); dir != "" {
		return filepath.Join(dir, "versions", "node")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".nvm", "versions", "node")
}

// Resolve returns the highest installed version whose bin directory exposes
// a working copy of the target tool, and whether one was found. The first
// call probes; every later call returns the memoized answer, including the
// not-found case. A pass run under a dead context is not memoized — it says
// nothing about the installed versions. Resolution failure is non-fatal by
// contract — callers fall back to the ambient environment.
func (r *Resolver) Resolve(ctx context.Context) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.resolved {
		return r.version, r.version != ""
	}

	versions, err := r.installedLocked()
	if err != nil {
		slog.Debug("cannot enumerate installed node versions",
			"dir", r.versionsDir, "error", err)
		r.resolved = true
		return "", false
	}

	for _, v := range versions {
		binDir := r.binDir(v)
		if r.probe(ctx, binDir) {
			slog.Debug("resolved node version for tool",
				"tool", r.toolName, "version", v)
			r.version = v
			r.resolved = true
			return v, true
		}
	}

	// A dead context fails every probe without telling us anything about the
	// installed versions; that outcome must not become the session's answer.
	if ctx.Err() != nil {
		return "", false
	}

	r.resolved = true
	slog.Debug("no installed node version exposes tool", "tool", r.toolName)
	return "", false
}

// Installed lists installed versions in descending semver order.
func (r *Resolver) Installed() ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.installedLocked()
}

func (r *Resolver) installedLocked() ([]string, error) {
	entries, err := os.ReadDir(r.versionsDir)
	if err != nil {
		return nil, err
	}

	var versions []string
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		if semver.IsValid(e.Name()) {
			versions = append(versions, e.Name())
		}
	}

	// Highest first: newer versions are the likelier hosts of the tool.
	sort.Slice(versions, func(i, j int) bool {
		return semver.Compare(versions[i], versions[j]) > 0
	})
	return versions, nil
}

// Invocation composes the environment overrides that make an invocation use
// the given version's binaries: its bin directory is prepended to PATH and
// advertised via the NVM_BIN and NVM_INC markers nvm itself sets. The
// ambient process environment is untouched.
func (r *Resolver) Invocation(version string) map[string]string {
	binDir := r.binDir(version)
	return map[string]string{
		"PATH":    binDir + string(os.PathListSeparator) + os.Getenv("PATH"),
		"NVM_BIN": binDir,
		"NVM_INC": filepath.Join(r.versionsDir, version, "include", "node"),
	}
}

func (r *Resolver) binDir(version string) string {
	return filepath.Join(r.versionsDir, version, "bin")
}

// execProbe is the production probe: run the tool's version subcommand with
// the candidate's bin directory first on PATH and succeed only on exit 0.
func (r *Resolver) execProbe(ctx context.Context, binDir string) bool {
	toolPath := filepath.Join(binDir, r.toolName)
	if _, err := os.Stat(toolPath); err != nil {
		// No binary in this tree; skip without spawning.
		return false
	}

	command := shellQuote(toolPath)
	if len(r.probeArgs) > 0 {
		command += " " + strings.Join(r.probeArgs, " ")
	}

	result, err := executor.Execute(ctx, command, executor.Options{
		Timeout: r.probeTimeout,
		Env:     r.Invocation(filepath.Base(filepath.Dir(binDir))),
	})
	if err != nil {
		slog.Debug("probe failed", "tool", r.toolName, "binDir", binDir, "error", err)
		return false
	}
	return result.Success()
}

// shellQuote single-quotes a path for POSIX shell evaluation.
func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
