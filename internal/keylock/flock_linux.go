// SPDX-License-Identifier: MPL-2.0

//go:build linux

package keylock

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/sys/unix"
)

// errFlockUnavailable is defined for cross-platform compatibility with
// flock_other.go. On Linux, acquireFileLock never returns it.
var errFlockUnavailable = errors.New("flock not available on this platform")

// fileLock holds a blocking exclusive flock on a per-key file, providing
// cross-process serialization of operations on the same resource key. The
// zero-byte lock file is harmless if orphaned — the kernel releases the
// flock automatically when the fd is closed (including on process crash).
type fileLock struct {
	file *os.File
}

// acquireFileLock opens (or creates) the key's lock file under dir and
// acquires a blocking exclusive flock. The call blocks until the lock is
// available.
func acquireFileLock(dir, key string) (*fileLock, error) {
	path := filepath.Join(dir, lockFileName(key))

	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o600)
	if err != nil {
		return nil, fmt.Errorf("open lock file %s: %w", path, err)
	}

	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX); err != nil {
		f.Close()
		return nil, fmt.Errorf("flock %s: %w", path, err)
	}

	return &fileLock{file: f}, nil
}

// Release unlocks the flock and closes the file descriptor. It is safe to
// call multiple times — subsequent calls are no-ops.
func (l *fileLock) Release() {
	if l == nil || l.file == nil {
		return
	}
	// LOCK_UN before Close for explicitness; Close also releases the flock.
	if err := unix.Flock(int(l.file.Fd()), unix.LOCK_UN); err != nil {
		slog.Debug("flock unlock failed", "error", err)
	}
	if err := l.file.Close(); err != nil {
		slog.Debug("lock file close failed", "error", err)
	}
	l.file = nil
}

// lockFileName maps an opaque resource key to a filesystem-safe file name.
func lockFileName(key string) string {
	sanitized := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9',
			r == '.', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, key)
	return sanitized + ".lock"
}
