// SPDX-License-Identifier: MPL-2.0

package poll

import (
	"context"
	"io/fs"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/fsnotify/fsnotify"
)

// UntilPath waits for a file matching the doublestar pattern to appear under
// dir. Filesystem events wake the check early; event-driven re-checks do not
// consume the attempt budget, only the backoff-paced rescans do, so a noisy
// directory cannot exhaust the poll. When a watcher cannot be established
// the call degrades to pure backoff polling.
func UntilPath(ctx context.Context, dir, pattern string, opts Options) error {
	pred := pathPredicate(dir, pattern)

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		slog.Debug("fsnotify unavailable, falling back to pure polling", "error", err)
		return Until(ctx, pred, opts)
	}
	defer watcher.Close()
	if err := watcher.Add(dir); err != nil {
		slog.Debug("cannot watch directory, falling back to pure polling",
			"dir", dir, "error", err)
		return Until(ctx, pred, opts)
	}

	opts = opts.withDefaults()
	start := time.Now()
	delay := opts.InitialDelay

	for attempt := 1; ; attempt++ {
		ok, err := pred(ctx)
		if err != nil {
			slog.Debug("path check failed, treating as not ready",
				"attempt", attempt, "dir", dir, "pattern", pattern, "error", err)
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

		// Drain events until the rescan timer fires; any event triggers an
		// immediate free re-check of the predicate.
		timer := time.NewTimer(sleep)
	waiting:
		for {
			select {
			case <-watcher.Events:
				if ok, err := pred(ctx); ok && err == nil {
					timer.Stop()
					return nil
				}
			case werr := <-watcher.Errors:
				slog.Debug("watcher error during path poll", "error", werr)
			case <-timer.C:
				break waiting
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			}
		}

		if opts.Timeout > 0 && time.Since(start) >= opts.Timeout {
			return &TimeoutError{Elapsed: time.Since(start), Attempts: attempt}
		}

		delay = nextDelay(delay, opts)
	}
}

// pathPredicate reports whether any path under dir matches the doublestar
// pattern, evaluated against the path relative to dir.
func pathPredicate(dir, pattern string) Predicate {
	return func(_ context.Context) (bool, error) {
		found := false
		err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				// Entries vanishing mid-walk are expected while a tool is
				// still writing; skip rather than fail the check.
				return nil
			}
			rel, relErr := filepath.Rel(dir, path)
			if relErr != nil || rel == "." {
				return nil
			}
			match, matchErr := doublestar.Match(pattern, filepath.ToSlash(rel))
			if matchErr != nil {
				return matchErr
			}
			if match {
				found = true
				return filepath.SkipAll
			}
			return nil
		})
		return found, err
	}
}
