// Package config provides configuration types and defaults for switchyard.
package config

import (
	"fmt"
	"os"
	"path/filepath"
)

// TemplatesConfig holds the three git command templates. Recognized
// placeholders are {{targetBranch}} and {{baseBranch}}; they are substituted
// literally. A blank template falls back to the compiled-in default.
type TemplatesConfig struct {
	SwitchBranch   string `mapstructure:"switch_branch" yaml:"switch_branch"`
	PullFromOrigin string `mapstructure:"pull_from_origin" yaml:"pull_from_origin"`
	MergeFromBase  string `mapstructure:"merge_from_base" yaml:"merge_from_base"`
}

// TerminalConfig configures the managed terminal surface.
type TerminalConfig struct {
	// Name is the logical terminal name used to find-or-create the single
	// reusable tmux window.
	Name string `mapstructure:"name" yaml:"name"`
	// TmuxSession is the tmux session the window is created in. Empty means
	// the currently attached session.
	TmuxSession string `mapstructure:"tmux_session" yaml:"tmux_session"`
}

// GitConfig configures repository discovery and the upstream remote.
type GitConfig struct {
	// Repositories lists working-copy roots to track. Entries may start
	// with "~". When empty, the current working directory is used.
	Repositories []string `mapstructure:"repositories" yaml:"repositories"`
	// Remote is the upstream remote whose HEAD defines the base branch.
	Remote string `mapstructure:"remote" yaml:"remote"`
}

// GitHubConfig configures the pull-request collaborator.
type GitHubConfig struct {
	// APIURL is the REST endpoint base. Override for GitHub Enterprise.
	APIURL string `mapstructure:"api_url" yaml:"api_url"`
	// Token authenticates API calls. When empty, GITHUB_TOKEN is used.
	Token string `mapstructure:"token" yaml:"token"`
}

// LogsConfig configures the Logs tab.
type LogsConfig struct {
	// LevelFilter is the minimum level shown: debug, info, warn or error.
	LevelFilter string `mapstructure:"level_filter" yaml:"level_filter"`
}

// TelemetryConfig configures optional trace export.
type TelemetryConfig struct {
	// Endpoint is an OTLP/gRPC collector address (e.g. "localhost:4317").
	Endpoint string `mapstructure:"endpoint" yaml:"endpoint"`
	// TraceFile writes spans as JSON lines to the given file instead.
	TraceFile string `mapstructure:"trace_file" yaml:"trace_file"`
}

// Config holds all configuration options for switchyard.
type Config struct {
	Templates TemplatesConfig `mapstructure:"templates" yaml:"templates"`
	Terminal  TerminalConfig  `mapstructure:"terminal" yaml:"terminal"`
	Git       GitConfig       `mapstructure:"git" yaml:"git"`
	GitHub    GitHubConfig    `mapstructure:"github" yaml:"github"`
	Logs      LogsConfig      `mapstructure:"logs" yaml:"logs"`
	Telemetry TelemetryConfig `mapstructure:"telemetry" yaml:"telemetry"`
}

// Built-in command templates. These are the fallbacks when the configured
// template is blank or renders to an empty string.
const (
	DefaultSwitchTemplate = "git checkout {{targetBranch}}"
	DefaultPullTemplate   = "git pull"
	DefaultMergeTemplate  = "git merge {{baseBranch}}"
)

// Defaults returns a Config with sensible default values.
func Defaults() Config {
	return Config{
		Templates: TemplatesConfig{
			SwitchBranch:   DefaultSwitchTemplate,
			PullFromOrigin: DefaultPullTemplate,
			MergeFromBase:  DefaultMergeTemplate,
		},
		Terminal: TerminalConfig{
			Name: "switchyard",
		},
		Git: GitConfig{
			Remote: "origin",
		},
		GitHub: GitHubConfig{
			APIURL: "https://api.github.com",
		},
		Logs: LogsConfig{
			LevelFilter: "info",
		},
	}
}

// Validate checks the configuration for errors.
func (c Config) Validate() error {
	if c.Terminal.Name == "" {
		return fmt.Errorf("terminal.name is required")
	}
	if c.Git.Remote == "" {
		return fmt.Errorf("git.remote is required")
	}
	switch c.Logs.LevelFilter {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logs.level_filter %q is not one of debug, info, warn, error", c.Logs.LevelFilter)
	}
	return nil
}

// DefaultConfigTemplate returns the default config as a YAML string with comments.
func DefaultConfigTemplate() string {
	return `# Switchyard Configuration

# Git command templates sent to the managed terminal.
# Placeholders: {{targetBranch}}, {{baseBranch}}.
# Blank templates fall back to the built-in defaults shown here.
templates:
  switch_branch: "git checkout {{targetBranch}}"
  pull_from_origin: "git pull"
  merge_from_base: "git merge {{baseBranch}}"

# Managed terminal surface (a named tmux window, reused across commands).
terminal:
  name: switchyard
  # tmux_session: main

# Repositories to track. Defaults to the current directory when empty.
git:
  remote: origin
  # repositories:
  #   - ~/src/app
  #   - ~/src/lib

# Pull-request access. Token falls back to $GITHUB_TOKEN, then 'gh auth token'.
github:
  api_url: https://api.github.com
  # token: ghp_...

# Logs tab
logs:
  level_filter: info   # debug, info, warn, error

# Optional tracing
# telemetry:
#   endpoint: localhost:4317
#   trace_file: /tmp/switchyard-trace.jsonl
`
}

// WriteDefaultConfig creates a config file at the given path with default
// settings and comments. Creates the parent directory if it doesn't exist.
func WriteDefaultConfig(configPath string) error {
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	if err := os.WriteFile(configPath, []byte(DefaultConfigTemplate()), 0600); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}
