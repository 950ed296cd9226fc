// SPDX-License-Identifier: MPL-2.0

package poll

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestUntilPath_FileAlreadyPresent(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "bundle.js"))

	err := UntilPath(context.Background(), dir, "*.js", Options{Timeout: 5 * time.Second})
	if err != nil {
		t.Errorf("UntilPath() error = %v, want nil", err)
	}
}

func TestUntilPath_FileAppearsLater(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	go func() {
		time.Sleep(150 * time.Millisecond)
		writeFile(t, filepath.Join(dir, "output.txt"))
	}()

	start := time.Now()
	err := UntilPath(context.Background(), dir, "*.txt", Options{Timeout: 5 * time.Second})
	if err != nil {
		t.Fatalf("UntilPath() error = %v, want nil", err)
	}
	if elapsed := time.Since(start); elapsed >= 5*time.Second {
		t.Errorf("UntilPath() took %s, want completion well before the timeout", elapsed)
	}
}

func TestUntilPath_NestedDoublestarPattern(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	go func() {
		time.Sleep(100 * time.Millisecond)
		sub := filepath.Join(dir, "dist", "assets")
		if err := os.MkdirAll(sub, 0o755); err != nil {
			t.Error(err)
			return
		}
		writeFile(t, filepath.Join(sub, "app.js"))
	}()

	err := UntilPath(context.Background(), dir, "dist/**/*.js", Options{
		Timeout:      5 * time.Second,
		InitialDelay: 50 * time.Millisecond,
	})
	if err != nil {
		t.Errorf("UntilPath() error = %v, want nil", err)
	}
}

func TestUntilPath_Timeout(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	start := time.Now()
	err := UntilPath(context.Background(), dir, "*.never", Options{
		Timeout:      300 * time.Millisecond,
		InitialDelay: 50 * time.Millisecond,
	})
	elapsed := time.Since(start)

	if !errors.Is(err, ErrPollTimeout) {
		t.Fatalf("UntilPath() error = %v, want ErrPollTimeout", err)
	}
	if elapsed < 300*time.Millisecond || elapsed > time.Second {
		t.Errorf("UntilPath() settled after %s, want between 300ms and 1s", elapsed)
	}
}

func TestUntilPath_AttemptBudget(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	err := UntilPath(context.Background(), dir, "*.never", Options{
		MaxAttempts:  2,
		InitialDelay: 10 * time.Millisecond,
	})
	if !errors.Is(err, ErrExhausted) {
		t.Errorf("UntilPath() error = %v, want ErrExhausted", err)
	}
}

func TestUntilPath_MissingDirFallsBackToPolling(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	missing := filepath.Join(dir, "not-created-yet")

	// The watcher cannot attach to a missing directory; the poll still runs
	// and succeeds once the directory and file appear.
	go func() {
		time.Sleep(100 * time.Millisecond)
		if err := os.MkdirAll(missing, 0o755); err != nil {
			t.Error(err)
			return
		}
		writeFile(t, filepath.Join(missing, "ready"))
	}()

	err := UntilPath(context.Background(), missing, "ready", Options{
		Timeout:      5 * time.Second,
		InitialDelay: 50 * time.Millisecond,
	})
	if err != nil {
		t.Errorf("UntilPath() error = %v, want nil", err)
	}
}

func writeFile(t *testing.T, path string) {
	t.Helper()
	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Error(err)
	}
}
