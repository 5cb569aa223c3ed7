// Package config loads forge settings from an optional YAML file and FORGE_* environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the resolved forge configuration.
type Config struct {
	DataDir      string
	DatabasePath string
	ListenAddr   string
	Log          LogConfig
	Git          GitConfig
	Execution    ExecutionConfig
	Policy       PolicyConfig
	Telemetry    TelemetryConfig
}

// LogConfig selects the zap encoder and level.
type LogConfig struct {
	Level  string
	Format string // "json" or "console"
}

// GitConfig configures the repository manager.
type GitConfig struct {
	Binary string
	Token  string
}

// ExecutionConfig configures the coding-agent execution client.
type ExecutionConfig struct {
	URL             string
	Timeout         time.Duration
	MaxRetryElapsed time.Duration
}

// PolicyConfig is the system policy frozen into every new run.
type PolicyConfig struct {
	RequiredChecks []string
	ForbiddenPaths []string
}

// TelemetryConfig toggles OpenTelemetry tracing.
type TelemetryConfig struct {
	Enabled bool
	Stdout  bool
}

// DefaultDataDir returns ~/.forge.
func DefaultDataDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, ".forge"), nil
}

func setDefaults(v *viper.Viper, dataDir string) {
	v.SetDefault("data_dir", dataDir)
	v.SetDefault("listen_addr", ":8080")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("git.binary", "git")
	v.SetDefault("execution.timeout", "30s")
	v.SetDefault("execution.max_retry_elapsed", "10s")
	v.SetDefault("policy.required_checks", []string{"dependency", "security", "lint"})
	v.SetDefault("policy.forbidden_paths", []string{".git/", ".env"})
	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("telemetry.stdout", false)
}

// Load reads configuration. path may be empty, in which case only defaults
// and the environment apply. A missing file at an explicit path is an error.
func Load(path string) (*Config, error) {
	dataDir, err := DefaultDataDir()
	if err != nil {
		return nil, err
	}

	v := viper.New()
	setDefaults(v, dataDir)
	v.SetEnvPrefix("FORGE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	cfg := &Config{
		DataDir:      v.GetString("data_dir"),
		DatabasePath: v.GetString("database_path"),
		ListenAddr:   v.GetString("listen_addr"),
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
		},
		Git: GitConfig{
			Binary: v.GetString("git.binary"),
			Token:  v.GetString("git.token"),
		},
		Execution: ExecutionConfig{
			URL:             v.GetString("execution.url"),
			Timeout:         v.GetDuration("execution.timeout"),
			MaxRetryElapsed: v.GetDuration("execution.max_retry_elapsed"),
		},
		Policy: PolicyConfig{
			RequiredChecks: v.GetStringSlice("policy.required_checks"),
			ForbiddenPaths: v.GetStringSlice("policy.forbidden_paths"),
		},
		Telemetry: TelemetryConfig{
			Enabled: v.GetBool("telemetry.enabled"),
			Stdout:  v.GetBool("telemetry.stdout"),
		},
	}
	if cfg.DatabasePath == "" {
		cfg.DatabasePath = filepath.Join(cfg.DataDir, "forge.db")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks invariants that defaults cannot guarantee.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.DataDir) == "" {
		return fmt.Errorf("data_dir must not be empty")
	}
	if c.Execution.Timeout < 0 {
		return fmt.Errorf("execution.timeout must not be negative")
	}
	if c.Execution.MaxRetryElapsed < 0 {
		return fmt.Errorf("execution.max_retry_elapsed must not be negative")
	}
	switch c.Log.Format {
	case "json", "console":
	default:
		return fmt.Errorf("log.format must be json or console, got %q", c.Log.Format)
	}
	return nil
}

// ReposDir is the root under which per-project clones live.
func (c *Config) ReposDir() string {
	return filepath.Join(c.DataDir, "repos")
}
