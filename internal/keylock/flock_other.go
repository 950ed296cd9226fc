// SPDX-License-Identifier: MPL-2.0

//go:build !linux

package keylock

import "errors"

// errFlockUnavailable indicates this platform has no flock support; the
// in-process chain is the only serialization applied.
var errFlockUnavailable = errors.New("flock not available on this platform")

type fileLock struct{}

func acquireFileLock(_, _ string) (*fileLock, error) {
	return nil, errFlockUnavailable
}

// Release is a no-op on platforms without flock.
func (l *fileLock) Release() {}
