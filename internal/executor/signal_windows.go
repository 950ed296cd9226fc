// SPDX-License-Identifier: MPL-2.0

//go:build windows

package executor

import "os/exec"

// terminate kills the process outright. Windows has no SIGTERM equivalent
// that console processes reliably honor, so the graceful stage is skipped
// and the escalation collapses to an immediate kill.
func terminate(cmd *exec.Cmd) error {
	if cmd.Process == nil {
		return nil
	}
	return cmd.Process.Kill()
}

// exitSignal always returns empty on Windows; processes are not
// signal-terminated in the POSIX sense.
func exitSignal(_ *exec.ExitError) string { return "" }
