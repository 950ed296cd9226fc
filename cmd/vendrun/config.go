// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var (
	configCmd = &cobra.Command{
		Use:   "config",
		Short: "Inspect vendrun configuration",
	}

	configShowCmd = &cobra.Command{
		Use:   "show",
		Short: "Show the effective configuration",
		RunE:  runConfigShow,
	}
)

func init() {
	configCmd.AddCommand(configShowCmd)
}

func runConfigShow(_ *cobra.Command, _ []string) error {
	line := func(key, value string) string {
		return KeyStyle.Render(key) + ": " + value
	}

	fmt.Println(line("default_shell", cfg.DefaultShell))
	fmt.Println(line("default_timeout", cfg.DefaultTimeout().String()))
	fmt.Println(line("grace_period", cfg.GracePeriod().String()))
	fmt.Println(line("lock_dir", orUnset(cfg.LockDir)))
	fmt.Println(line("retry.max_attempts", fmt.Sprintf("%d", cfg.Retry.MaxAttempts)))
	fmt.Println(line("retry.initial_delay_ms", fmt.Sprintf("%d", cfg.Retry.InitialDelayMs)))
	fmt.Println(line("retry.max_delay_ms", fmt.Sprintf("%d", cfg.Retry.MaxDelayMs)))
	fmt.Println(line("retry.backoff_factor", fmt.Sprintf("%g", cfg.Retry.BackoffFactor)))
	fmt.Println(line("node.tool_name", orUnset(cfg.Node.ToolName)))
	fmt.Println(line("node.versions_dir", orUnset(cfg.Node.VersionsDir)))
	fmt.Println(line("node.probe_args", strings.Join(cfg.Node.ProbeArgs, " ")))
	fmt.Println(line("node.disabled", fmt.Sprintf("%t", cfg.Node.Disabled)))
	return nil
}

func orUnset(s string) string {
	if s == "" {
		return SubtitleStyle.Render("(unset)")
	}
	return s
}
