// SPDX-License-Identifier: MPL-2.0

package executor

import (
	"errors"
	"testing"
)

func TestShellArgs(t *testing.T) {
	t.Parallel()

	tests := []struct {
		shell string
		want  []string
	}{
		{"/bin/bash", []string{"-c"}},
		{"/bin/sh", []string{"-c"}},
		{"/usr/bin/zsh", []string{"-c"}},
		{"cmd.exe", []string{"/C"}},
		{"C:\\Windows\\System32\\cmd.exe", []string{"/C"}},
		{"pwsh", []string{"-NoProfile", "-Command"}},
		{"powershell.exe", []string{"-NoProfile", "-Command"}},
	}

	for _, tt := range tests {
		t.Run(tt.shell, func(t *testing.T) {
			t.Parallel()
			got := shellArgs(tt.shell)
			if len(got) != len(tt.want) {
				t.Fatalf("shellArgs(%q) = %v, want %v", tt.shell, got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("shellArgs(%q) = %v, want %v", tt.shell, got, tt.want)
				}
			}
		})
	}
}

func TestIsPOSIXShell(t *testing.T) {
	t.Parallel()

	tests := []struct {
		shell string
		want  bool
	}{
		{"/bin/bash", true},
		{"/bin/sh", true},
		{"/usr/local/bin/fish", true},
		{"cmd.exe", false},
		{"pwsh", false},
		{"powershell.exe", false},
	}

	for _, tt := range tests {
		t.Run(tt.shell, func(t *testing.T) {
			t.Parallel()
			if got := isPOSIXShell(tt.shell); got != tt.want {
				t.Errorf("isPOSIXShell(%q) = %v, want %v", tt.shell, got, tt.want)
			}
		})
	}
}

func TestShellBase(t *testing.T) {
	t.Parallel()

	tests := []struct {
		shell string
		want  string
	}{
		{"/bin/bash", "bash"},
		{"bash", "bash"},
		{"cmd.exe", "cmd"},
		{"C:\\Windows\\System32\\powershell.exe", "powershell"},
	}

	for _, tt := range tests {
		t.Run(tt.shell, func(t *testing.T) {
			t.Parallel()
			if got := shellBase(tt.shell); got != tt.want {
				t.Errorf("shellBase(%q) = %q, want %q", tt.shell, got, tt.want)
			}
		})
	}
}

func TestResolveShell_OverrideWins(t *testing.T) {
	t.Parallel()

	shell, args, err := resolveShell("/custom/bin/mysh")
	if err != nil {
		t.Fatalf("resolveShell() error = %v, want nil", err)
	}
	if shell != "/custom/bin/mysh" {
		t.Errorf("shell = %q, want the override", shell)
	}
	if len(args) != 1 || args[0] != "-c" {
		t.Errorf("args = %v, want [-c]", args)
	}
}

func TestCheckSyntax(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		command string
		wantErr bool
	}{
		{"simple command", "echo hello", false},
		{"pipeline", "cat file | grep pattern | wc -l", false},
		{"conditional", "if [ -f x ]; then echo y; fi", false},
		{"unclosed quote", `echo "unterminated`, true},
		{"bare keyword soup", "if then fi (", true},
		{"unclosed subshell", "echo $(date", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := checkSyntax(tt.command)
			if tt.wantErr {
				if !errors.Is(err, ErrSyntax) {
					t.Errorf("checkSyntax(%q) error = %v, want ErrSyntax", tt.command, err)
				}
			} else if err != nil {
				t.Errorf("checkSyntax(%q) error = %v, want nil", tt.command, err)
			}
		})
	}
}
