// SPDX-License-Identifier: MPL-2.0

package executor

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"

	"mvdan.cc/sh/v3/syntax"
)

// resolveShell determines the native shell binary and the arguments that make
// it evaluate a command string. An explicit override wins; otherwise
// platform defaults apply.
func resolveShell(override string) (shell string, args []string, err error) {
	if override != "" {
		return override, shellArgs(override), nil
	}

	switch runtime.GOOS {
	case "windows":
		// Try PowerShell first, then cmd
		if pwsh, err := exec.LookPath("pwsh"); err == nil {
			return pwsh, shellArgs(pwsh), nil
		}
		if ps, err := exec.LookPath("powershell"); err == nil {
			return ps, shellArgs(ps), nil
		}
		cmd, err := exec.LookPath("cmd")
		if err != nil {
			return "", nil, fmt.Errorf("no shell found")
		}
		return cmd, shellArgs(cmd), nil
	default:
		// Unix-like: use SHELL env var, or fall back to common shells
		if shell := os.Getenv("SHELL"); shell != "" {
			return shell, shellArgs(shell), nil
		}
		if bash, err := exec.LookPath("bash"); err == nil {
			return bash, shellArgs(bash), nil
		}
		if sh, err := exec.LookPath("sh"); err == nil {
			return sh, shellArgs(sh), nil
		}
		return "", nil, fmt.Errorf("no shell found")
	}
}

// shellArgs returns the flag that makes the given shell evaluate a command
// string passed as the next argument.
func shellArgs(shell string) []string {
	switch shellBase(shell) {
	case "cmd":
		return []string{"/C"}
	case "powershell", "pwsh":
		return []string{"-NoProfile", "-Command"}
	default:
		// Assume POSIX shell
		return []string{"-c"}
	}
}

// isPOSIXShell reports whether the shell speaks POSIX sh syntax, which is
// what the mvdan/sh preflight parser understands.
func isPOSIXShell(shell string) bool {
	switch shellBase(shell) {
	case "cmd", "powershell", "pwsh":
		return false
	default:
		return true
	}
}

// shellBase extracts the shell's base name, handling Windows path separators
// and the .exe suffix.
func shellBase(shell string) string {
	base := filepath.Base(shell)
	if lastSlash := strings.LastIndex(base, "\\"); lastSlash >= 0 {
		base = base[lastSlash+1:]
	}
	return strings.TrimSuffix(base, ".exe")
}

// checkSyntax parses the command with mvdan/sh to classify shell-syntax
// errors before spawning. A command that cannot parse fails identically on
// every attempt, so surfacing SyntaxError here lets retry policies refuse it.
func checkSyntax(command string) error {
	if _, err := syntax.NewParser().Parse(strings.NewReader(command), "command"); err != nil {
		return &SyntaxError{Command: command, Err: err}
	}
	return nil
}
