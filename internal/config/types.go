// SPDX-License-Identifier: MPL-2.0

package config

import (
	"time"

	"vendrun-cli/internal/retry"
)

type (
	// Config is the full vendrun configuration.
	Config struct {
		// DefaultShell selects the execution environment when a caller does
		// not: "native" or "virtual".
		DefaultShell string `mapstructure:"default_shell"`
		// DefaultTimeoutSecs is injected when a caller specifies no timeout.
		DefaultTimeoutSecs int `mapstructure:"default_timeout_secs"`
		// GracePeriodSecs is the delay between the graceful termination
		// signal and the forceful kill.
		GracePeriodSecs int `mapstructure:"grace_period_secs"`
		// LockDir, when set, enables flock-backed cross-process
		// serialization of exclusive keys.
		LockDir string `mapstructure:"lock_dir"`

		Retry RetryConfig `mapstructure:"retry"`
		Node  NodeConfig  `mapstructure:"node"`
	}

	// RetryConfig holds the default retry policy applied by the engine when
	// a caller supplies none.
	RetryConfig struct {
		MaxAttempts    int     `mapstructure:"max_attempts"`
		InitialDelayMs int     `mapstructure:"initial_delay_ms"`
		MaxDelayMs     int     `mapstructure:"max_delay_ms"`
		BackoffFactor  float64 `mapstructure:"backoff_factor"`
	}

	// NodeConfig configures Node.js version resolution for the target tool.
	NodeConfig struct {
		// VersionsDir overrides the nvm-style installed-versions directory.
		VersionsDir string `mapstructure:"versions_dir"`
		// ToolName is the vendor CLI binary whose hosting version is
		// discovered (e.g. a cloud deployment tool installed through npm).
		ToolName string `mapstructure:"tool_name"`
		// ProbeArgs is the tool's trivial version subcommand.
		ProbeArgs []string `mapstructure:"probe_args"`
		// Disabled turns resolution off entirely; commands run against the
		// ambient environment.
		Disabled bool `mapstructure:"disabled"`
	}
)

// DefaultConfig returns the built-in defaults, mirroring the embedded
// schema's default markers.
func DefaultConfig() *Config {
	return &Config{
		DefaultShell:       "native",
		DefaultTimeoutSecs: 30,
		GracePeriodSecs:    2,
		Retry: RetryConfig{
			MaxAttempts:    3,
			InitialDelayMs: 500,
			MaxDelayMs:     10000,
			BackoffFactor:  2.0,
		},
		Node: NodeConfig{
			ProbeArgs: []string{"--version"},
		},
	}
}

// DefaultTimeout returns the timeout injected when a caller specifies none.
func (c *Config) DefaultTimeout() time.Duration {
	return time.Duration(c.DefaultTimeoutSecs) * time.Second
}

// GracePeriod returns the termination grace period.
func (c *Config) GracePeriod() time.Duration {
	return time.Duration(c.GracePeriodSecs) * time.Second
}

// RetryPolicy converts the configured defaults into an engine-ready policy.
// The eligibility predicate is left nil; the engine installs its own.
func (c *Config) RetryPolicy() retry.Policy {
	return retry.Policy{
		MaxAttempts:   c.Retry.MaxAttempts,
		InitialDelay:  time.Duration(c.Retry.InitialDelayMs) * time.Millisecond,
		MaxDelay:      time.Duration(c.Retry.MaxDelayMs) * time.Millisecond,
		BackoffFactor: c.Retry.BackoffFactor,
	}
}
