// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"vendrun-cli/internal/engine"
	"vendrun-cli/internal/executor"
)

var (
	runTimeout      time.Duration
	runGracePeriod  time.Duration
	runWorkDir      string
	runEnvVars      []string
	runExclusiveKey string
	runAttempts     int
	runStream       bool
	runNodeVersion  string
	runShell        string

	runCmd = &cobra.Command{
		Use:   "run [flags] -- <command>",
		Short: "Run a command under the execution policy stack",
		Long: `Run a command with timeout escalation, bounded retries, optional
per-resource exclusivity, and optional Node.js version selection.

The command is passed to the shell as a single string; quote it to keep
the shell from splitting it early:

  vendrun run --timeout 2m --exclusive-key session -- 'vendor-tool deploy'`,
		Args: cobra.MinimumNArgs(1),
		RunE: runRun,
	}
)

func init() {
	runCmd.Flags().DurationVar(&runTimeout, "timeout", 0, "per-attempt timeout (default from config)")
	runCmd.Flags().DurationVar(&runGracePeriod, "grace-period", 0, "delay between graceful and forceful kill (default from config)")
	runCmd.Flags().StringVar(&runWorkDir, "workdir", "", "working directory")
	runCmd.Flags().StringArrayVar(&runEnvVars, "env-var", nil, "environment override KEY=VALUE (repeatable)")
	runCmd.Flags().StringVar(&runExclusiveKey, "exclusive-key", "", "serialize against other runs sharing this resource key")
	runCmd.Flags().IntVar(&runAttempts, "attempts", 0, "retry attempt ceiling (default from config)")
	runCmd.Flags().BoolVar(&runStream, "stream", false, "stream output live instead of printing it at the end")
	runCmd.Flags().StringVar(&runNodeVersion, "node", "", `Node.js version selection: "auto", "skip", or an explicit version`)
	runCmd.Flags().StringVar(&runShell, "shell", "", `shell mode: "native" or "virtual" (default from config)`)
}

func runRun(cmd *cobra.Command, args []string) error {
	command := strings.Join(args, " ")

	env, err := parseEnvVars(runEnvVars)
	if err != nil {
		return err
	}

	opts := engine.RunOptions{
		Timeout:      runTimeout,
		GracePeriod:  runGracePeriod,
		WorkDir:      runWorkDir,
		Env:          env,
		ExclusiveKey: runExclusiveKey,
		NodeVersion:  runNodeVersion,
		Shell:        executor.ShellMode(runShell),
	}
	if runAttempts > 0 {
		policy := cfg.RetryPolicy()
		policy.MaxAttempts = runAttempts
		opts.Retry = &policy
	}

	var drained sync.WaitGroup
	if runStream {
		output := make(chan executor.Chunk, 1)
		opts.Output = output
		drained.Add(1)
		go func() {
			defer drained.Done()
			for chunk := range output {
				switch chunk.Stream {
				case executor.StreamStderr:
					os.Stderr.Write(chunk.Data)
				default:
					os.Stdout.Write(chunk.Data)
				}
			}
		}()
		defer func() {
			close(output)
			drained.Wait()
		}()
	}

	eng := engine.New(cfg)
	result, err := eng.Run(cmd.Context(), command, opts)
	if err != nil {
		return translateRunError(err, runStream, os.Stdout, os.Stderr)
	}

	if !runStream {
		os.Stdout.WriteString(result.Stdout)
		os.Stderr.WriteString(result.Stderr)
	}
	if verbose {
		fmt.Fprintln(os.Stderr, SubtitleStyle.Render(
			fmt.Sprintf("completed in %s (exit code %d)", result.Duration.Round(time.Millisecond), result.ExitCode)))
	}
	return nil
}

// translateRunError turns engine errors into user-facing messages and maps a
// non-zero child exit onto the CLI's own exit code. When the run was
// streaming, the buffered streams already reached the terminal live and are
// not printed again.
func translateRunError(err error, streamed bool, stdout, stderr io.Writer) error {
	var procErr *executor.ProcessError
	if errors.As(err, &procErr) {
		if !streamed {
			if procErr.Stderr != "" {
				fmt.Fprint(stderr, procErr.Stderr)
			}
			if procErr.Stdout != "" {
				fmt.Fprint(stdout, procErr.Stdout)
			}
		}
		return &ExitError{Code: procErr.ExitCode}
	}

	var timeoutErr *executor.TimeoutError
	if errors.As(err, &timeoutErr) {
		return fmt.Errorf("%s command did not finish within %s (killed after %s grace period)",
			ErrorStyle.Render("timed out:"), timeoutErr.Timeout, timeoutErr.GracePeriod)
	}

	return err
}

// parseEnvVars converts repeated KEY=VALUE flags into a map.
func parseEnvVars(pairs []string) (map[string]string, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	env := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid --env-var %q: expected KEY=VALUE", pair)
		}
		env[key] = value
	}
	return env, nil
}
