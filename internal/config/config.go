// Package config loads runtime settings and platform credentials.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Dir is the per-project configuration directory.
const Dir = ".chainexpect"

// Config represents the runtime configuration from .chainexpect/config.yaml.
type Config struct {
	LogLevel    string        `yaml:"log_level"`
	Color       string        `yaml:"color"` // "auto", "always", "never"
	Concurrency int           `yaml:"concurrency"`
	FailFast    bool          `yaml:"fail_fast"`
	Timeout     time.Duration `yaml:"timeout"`
	History     HistoryConfig `yaml:"history"`
	Watch       WatchConfig   `yaml:"watch"`
	Subjects    SubjectConfig `yaml:"subjects"`
}

// HistoryConfig defines run history settings.
type HistoryConfig struct {
	Path       string `yaml:"path"`
	MaxEntries int    `yaml:"max_entries"`
	Persist    bool   `yaml:"persist"`
}

// WatchConfig defines file watching settings.
type WatchConfig struct {
	Debounce time.Duration `yaml:"debounce"`
}

// SubjectConfig restricts which files checks may load with subject_file.
type SubjectConfig struct {
	AllowedPaths []string `yaml:"allowed_paths"`
	DeniedPaths  []string `yaml:"denied_paths"`
	MaxFileSize  string   `yaml:"max_file_size"`
}

// PlatformConfig represents platform credentials from .chainexpect/platforms.yaml.
type PlatformConfig struct {
	GitHub GitHubConfig `yaml:"github"`
}

// GitHubConfig holds GitHub platform settings.
type GitHubConfig struct {
	Token        string   `yaml:"token"`
	BaseURL      string   `yaml:"base_url"`
	DefaultOwner string   `yaml:"default_owner"`
	DefaultRepo  string   `yaml:"default_repo"`
	Labels       []string `yaml:"labels"`
}

// Repo returns "owner/repo" from the defaults, or "" if either is missing.
func (g GitHubConfig) Repo() string {
	if g.DefaultOwner == "" || g.DefaultRepo == "" {
		return ""
	}
	return g.DefaultOwner + "/" + g.DefaultRepo
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		LogLevel:    "info",
		Color:       "auto",
		Concurrency: 4,
		Timeout:     30 * time.Second,
		History: HistoryConfig{
			Path:       filepath.Join(Dir, "history.db"),
			MaxEntries: 500,
			Persist:    true,
		},
		Watch: WatchConfig{
			Debounce: 200 * time.Millisecond,
		},
		Subjects: SubjectConfig{
			AllowedPaths: []string{"."},
			DeniedPaths:  []string{Dir},
			MaxFileSize:  "10MB",
		},
	}
}

// Validate reports settings that cannot be used.
func (c Config) Validate() error {
	var errs []error
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("log_level: unsupported level %q", c.LogLevel))
	}
	switch c.Color {
	case "auto", "always", "never":
	default:
		errs = append(errs, fmt.Errorf("color: expected auto, always or never, got %q", c.Color))
	}
	if c.Concurrency < 1 {
		errs = append(errs, fmt.Errorf("concurrency: must be at least 1, got %d", c.Concurrency))
	}
	if c.Timeout < 0 {
		errs = append(errs, fmt.Errorf("timeout: must not be negative"))
	}
	if c.History.MaxEntries < 0 {
		errs = append(errs, fmt.Errorf("history.max_entries: must not be negative"))
	}
	return errors.Join(errs...)
}

// LoadConfig reads and parses a runtime config YAML file.
// Returns default config if the file doesn't exist.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("read config %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("config %s: %w", path, err)
	}

	return cfg, nil
}

// LoadPlatformConfig reads and parses a platform credentials YAML file.
// Performs environment variable interpolation on string values.
// GITHUB_TOKEN is used when no token is configured.
func LoadPlatformConfig(path string) (PlatformConfig, error) {
	var cfg PlatformConfig

	data, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
	case err != nil:
		return cfg, fmt.Errorf("read platform config %s: %w", path, err)
	default:
		interpolated := interpolateEnvVars(string(data))
		if err := yaml.Unmarshal([]byte(interpolated), &cfg); err != nil {
			return cfg, fmt.Errorf("parse platform config %s: %w", path, err)
		}
	}

	if cfg.GitHub.Token == "" {
		cfg.GitHub.Token = os.Getenv("GITHUB_TOKEN")
	}
	return cfg, nil
}

// envVarPattern matches ${VAR_NAME} patterns.
var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// interpolateEnvVars replaces ${VAR_NAME} patterns with environment variable values.
// Unset variables are left as written.
func interpolateEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		varName := strings.TrimSuffix(strings.TrimPrefix(match, "${"), "}")
		if val, ok := os.LookupEnv(varName); ok {
			return val
		}
		return match
	})
}
