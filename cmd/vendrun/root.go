// SPDX-License-Identifier: MPL-2.0

// Package cmd contains all CLI commands for vendrun.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/charmbracelet/fang"
	charmlog "github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"vendrun-cli/internal/config"
)

var (
	// Version is the semantic version (set via -ldflags).
	Version = "dev"
	// Commit is the git commit hash (set via -ldflags).
	Commit = "unknown"
	// BuildDate is the build timestamp (set via -ldflags).
	BuildDate = "unknown"

	// verbose enables debug logging
	verbose bool
	// cfgFile allows specifying a custom config file
	cfgFile string

	// cfg is the configuration loaded during initialization.
	cfg *config.Config

	// rootCmd represents the base command when called without any subcommands
	rootCmd = &cobra.Command{
		Use:   "vendrun",
		Short: "A safe runner for slow, flaky vendor command-line tools",
		Long: TitleStyle.Render("vendrun") + SubtitleStyle.Render(" - a safe runner for vendor CLI tools") + `

vendrun invokes untrusted, slow, occasionally-hanging external tools with
mutual exclusion per shared resource, bounded retries with backoff, hard
timeouts with escalating termination, live output streaming, and
session-scoped discovery of which installed Node.js version exposes the
target vendor tool.

` + SubtitleStyle.Render("Examples:") + `
  vendrun run -- 'git fetch --all'          Run with default policy
  vendrun run --exclusive-key api -- 'vendor-tool deploy'
  vendrun node resolve                      Show the resolved Node.js version
  vendrun poll --dir dist --pattern '**/*.js' --timeout 30s
  vendrun config show                       Show effective configuration`,
	}
)

func init() {
	cobra.OnInitialize(initRootConfig)

	// Global flags
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.config/vendrun/config.cue)")

	// Add subcommands
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(pollCmd)
	rootCmd.AddCommand(nodeCmd)
	rootCmd.AddCommand(configCmd)
}

// getVersionString returns a formatted version string for display.
func getVersionString() string {
	if Version == "dev" {
		return "dev (built from source)"
	}
	return fmt.Sprintf("%s (commit: %s, built: %s)", Version, Commit, BuildDate)
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	// Use fang.Execute for enhanced Cobra styling
	// Pass version via fang.WithVersion() since fang overrides rootCmd.Version
	if err := fang.Execute(
		context.Background(),
		rootCmd,
		fang.WithVersion(getVersionString()),
		fang.WithNotifySignal(os.Interrupt),
	); err != nil {
		var exitErr *ExitError
		if errors.As(err, &exitErr) {
			os.Exit(exitErr.Code)
		}
		os.Exit(1)
	}
}

// initRootConfig loads the config file and wires structured logging.
func initRootConfig() {
	logger := charmlog.New(os.Stderr)
	if verbose {
		logger.SetLevel(charmlog.DebugLevel)
	}
	// Internal packages log through log/slog; route them to the CLI logger.
	slog.SetDefault(slog.New(logger))

	loaded, err := config.Load(cfgFile)
	if err != nil {
		// Surface config problems but keep running on defaults; a broken
		// config file should not make the CLI unusable.
		fmt.Fprintln(os.Stderr, WarningStyle.Render("Warning: ")+err.Error())
		loaded = config.DefaultConfig()
	}
	cfg = loaded
}

// ExitError carries a process exit code through fang's error path so the CLI
// can mirror the wrapped command's exit status.
type ExitError struct {
	Code int
}

// Error implements the error interface.
func (e *ExitError) Error() string {
	return fmt.Sprintf("exit code %d", e.Code)
}
