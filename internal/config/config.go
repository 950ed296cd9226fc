// SPDX-License-Identifier: MPL-2.0

package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"github.com/spf13/viper"
)

const (
	// AppName is the application name.
	AppName = "vendrun"
	// ConfigFileName is the name of the config file (without extension).
	ConfigFileName = "config"
	// ConfigFileExt is the config file extension.
	ConfigFileExt = "cue"
)

//go:embed config_schema.cue
var configSchema string

// ConfigDir returns the vendrun configuration directory using
// platform-specific conventions: Windows uses %APPDATA%, macOS uses
// ~/Library/Application Support, and Linux/others use $XDG_CONFIG_HOME
// (defaulting to ~/.config).
//
//nolint:revive // ConfigDir is more descriptive than Dir for external callers
func ConfigDir() (string, error) {
	var configDir string

	switch runtime.GOOS {
	case "windows":
		configDir = os.Getenv("APPDATA")
		if configDir == "" {
			configDir = filepath.Join(os.Getenv("USERPROFILE"), "AppData", "Roaming")
		}
	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		configDir = filepath.Join(home, "Library", "Application Support")
	default: // Linux and others
		configDir = os.Getenv("XDG_CONFIG_HOME")
		if configDir == "" {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", fmt.Errorf("failed to get home directory: %w", err)
			}
			configDir = filepath.Join(home, ".config")
		}
	}

	return filepath.Join(configDir, AppName), nil
}

// Load reads the config file at path, or the default location when path is
// empty. A missing file yields the built-in defaults; a present but invalid
// file is an error, never a silent fallthrough.
func Load(path string) (*Config, error) {
	v := viper.New()

	defaults := DefaultConfig()
	v.SetDefault("default_shell", defaults.DefaultShell)
	v.SetDefault("default_timeout_secs", defaults.DefaultTimeoutSecs)
	v.SetDefault("grace_period_secs", defaults.GracePeriodSecs)
	v.SetDefault("lock_dir", defaults.LockDir)
	v.SetDefault("retry.max_attempts", defaults.Retry.MaxAttempts)
	v.SetDefault("retry.initial_delay_ms", defaults.Retry.InitialDelayMs)
	v.SetDefault("retry.max_delay_ms", defaults.Retry.MaxDelayMs)
	v.SetDefault("retry.backoff_factor", defaults.Retry.BackoffFactor)
	v.SetDefault("node.versions_dir", defaults.Node.VersionsDir)
	v.SetDefault("node.tool_name", defaults.Node.ToolName)
	v.SetDefault("node.probe_args", defaults.Node.ProbeArgs)
	v.SetDefault("node.disabled", defaults.Node.Disabled)

	if path == "" {
		dir, err := ConfigDir()
		if err != nil {
			return nil, err
		}
		path = filepath.Join(dir, ConfigFileName+"."+ConfigFileExt)
	}

	raw, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return defaults, nil
	case err != nil:
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	settings, err := decodeCUE(raw, path)
	if err != nil {
		return nil, err
	}
	if err := v.MergeConfigMap(settings); err != nil {
		return nil, fmt.Errorf("failed to merge config file %s: %w", path, err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config file %s: %w", path, err)
	}
	return &cfg, nil
}

// decodeCUE compiles the config file, unifies it with the embedded schema,
// and returns the concrete settings map.
func decodeCUE(raw []byte, path string) (map[string]any, error) {
	cctx := cuecontext.New()

	schema := cctx.CompileString(configSchema, cue.Filename("config_schema.cue"))
	if err := schema.Err(); err != nil {
		return nil, fmt.Errorf("internal schema error: %w", err)
	}

	value := cctx.CompileBytes(raw, cue.Filename(path))
	if err := value.Err(); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	unified := schema.Unify(value)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return nil, fmt.Errorf("config file %s violates schema: %w", path, err)
	}

	var settings map[string]any
	if err := unified.Decode(&settings); err != nil {
		return nil, fmt.Errorf("failed to decode config file %s: %w", path, err)
	}
	return settings, nil
}
