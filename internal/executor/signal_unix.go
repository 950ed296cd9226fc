// SPDX-License-Identifier: MPL-2.0

//go:build unix

package executor

import (
	"errors"
	"os"
	"os/exec"
	"syscall"
)

// terminate sends the graceful stop signal. If the process ignores it, exec's
// WaitDelay delivers SIGKILL after the grace period.
func terminate(cmd *exec.Cmd) error {
	if cmd.Process == nil {
		return nil
	}
	err := cmd.Process.Signal(syscall.SIGTERM)
	if err != nil && !errors.Is(err, os.ErrProcessDone) {
		return err
	}
	return nil
}

// exitSignal returns the name of the signal that terminated the process, or
// empty when it exited on its own.
func exitSignal(exitErr *exec.ExitError) string {
	ws, ok := exitErr.Sys().(syscall.WaitStatus)
	if !ok || !ws.Signaled() {
		return ""
	}
	return ws.Signal().String()
}
