// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"vendrun-cli/internal/poll"
)

var (
	pollDir         string
	pollPattern     string
	pollTimeout     time.Duration
	pollMaxAttempts int
	pollDelay       time.Duration

	pollCmd = &cobra.Command{
		Use:   "poll",
		Short: "Wait for a file matching a pattern to appear",
		Long: `Wait until a file matching the doublestar pattern appears under the
directory, with exponential backoff between rescans. Filesystem events wake
the check early when a watcher is available.

  vendrun poll --dir dist --pattern '**/*.js' --timeout 30s`,
		RunE: runPoll,
	}
)

func init() {
	pollCmd.Flags().StringVar(&pollDir, "dir", ".", "directory to watch")
	pollCmd.Flags().StringVar(&pollPattern, "pattern", "", "doublestar pattern to wait for")
	pollCmd.Flags().DurationVar(&pollTimeout, "timeout", 30*time.Second, "wall-clock budget")
	pollCmd.Flags().IntVar(&pollMaxAttempts, "max-attempts", 0, "rescan budget (0 = bounded by timeout only)")
	pollCmd.Flags().DurationVar(&pollDelay, "initial-delay", 0, "delay before the first rescan")

	if err := pollCmd.MarkFlagRequired("pattern"); err != nil {
		panic(err)
	}
}

func runPoll(cmd *cobra.Command, _ []string) error {
	err := poll.UntilPath(cmd.Context(), pollDir, pollPattern, poll.Options{
		MaxAttempts:  pollMaxAttempts,
		InitialDelay: pollDelay,
		Timeout:      pollTimeout,
	})
	if err != nil {
		return err
	}
	fmt.Println(SuccessStyle.Render("✓") + " matched " + pollPattern)
	return nil
}
