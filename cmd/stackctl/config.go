package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/stackforge/stackctl/internal/core/retry"
)

// =============================================================================
// Config Types
// =============================================================================

// Config holds all stackctl configuration.
type Config struct {
	State     StateConfig     `mapstructure:"state"`
	Docker    DockerConfig    `mapstructure:"docker"`
	Probe     ProbeConfig     `mapstructure:"probe"`
	Verify    VerifyConfig    `mapstructure:"verify"`
	Retry     RetryConfig     `mapstructure:"retry"`
	Remediate RemediateConfig `mapstructure:"remediate"`
	Journal   JournalConfig   `mapstructure:"journal"`
	Deploy    DeployConfig    `mapstructure:"deploy"`
	Log       LogConfig       `mapstructure:"log"`
}

// StateConfig locates the persistent state files.
type StateConfig struct {
	// Dir is the private state directory holding the lockfile, step
	// markers, verification scratch space, and the journal.
	Dir string `mapstructure:"dir"`
}

// Lockfile returns the resolution lockfile path.
func (c StateConfig) Lockfile() string {
	return filepath.Join(c.Dir, "runtime.lock")
}

// StepsDir returns the step marker directory.
func (c StateConfig) StepsDir() string {
	return filepath.Join(c.Dir, "steps")
}

// ScratchDir returns the verification scratch directory.
func (c StateConfig) ScratchDir() string {
	return filepath.Join(c.Dir, "scratch")
}

// DeployLock returns the advisory orchestration lock path.
func (c StateConfig) DeployLock() string {
	return filepath.Join(c.Dir, "deploy.lock")
}

// JournalDSN returns the journal database path.
func (c StateConfig) JournalDSN() string {
	return filepath.Join(c.Dir, "journal.db")
}

// DockerConfig holds Docker connection configuration.
type DockerConfig struct {
	// Host overrides the docker control socket; empty uses the SDK's
	// environment-driven default.
	Host string `mapstructure:"host"`
}

// ProbeConfig bounds the daemon reachability probe.
type ProbeConfig struct {
	Timeout time.Duration `mapstructure:"timeout"`
}

// VerifyConfig bounds one compose candidate verification.
type VerifyConfig struct {
	Timeout time.Duration `mapstructure:"timeout"`
	Grace   time.Duration `mapstructure:"grace"`
}

// RetryConfig holds the default retry policy for driven commands.
type RetryConfig struct {
	MaxAttempts int           `mapstructure:"max_attempts"`
	BaseDelay   time.Duration `mapstructure:"base_delay"`
	MaxDelay    time.Duration `mapstructure:"max_delay"`
	JitterBound time.Duration `mapstructure:"jitter_bound"`
	Strategy    string        `mapstructure:"strategy"`
}

// Policy converts the config to a retry policy value.
func (c RetryConfig) Policy() retry.Policy {
	return retry.Policy{
		MaxAttempts: c.MaxAttempts,
		BaseDelay:   c.BaseDelay,
		MaxDelay:    c.MaxDelay,
		JitterBound: c.JitterBound,
		Strategy:    retry.Strategy(c.Strategy),
	}
}

// RemediateConfig gates the one-time compose fallback install.
type RemediateConfig struct {
	// Enabled must be set explicitly; stackctl never downloads anything
	// without the operator opting in.
	Enabled bool   `mapstructure:"enabled"`
	BaseURL string `mapstructure:"base_url"`
	Version string `mapstructure:"version"`
	SHA256  string `mapstructure:"sha256"`
	// Dir is where the binary lands; it should be on PATH.
	Dir string `mapstructure:"dir"`
}

// JournalConfig controls the resolution history database.
type JournalConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// DeployConfig holds orchestration glue settings.
type DeployConfig struct {
	// ComposeFile is the default deployment document for up/down.
	ComposeFile string `mapstructure:"compose_file"`
	// LockWait bounds how long up/down waits for the advisory lock.
	LockWait time.Duration `mapstructure:"lock_wait"`
	// Timeout and Grace bound the driven compose command.
	Timeout time.Duration `mapstructure:"timeout"`
	Grace   time.Duration `mapstructure:"grace"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// =============================================================================
// Config Loading
// =============================================================================

// LoadConfig loads configuration from file and environment.
func LoadConfig(configPath string) (*Config, error) {
	v := viper.New()

	// Set defaults
	v.SetDefault("state.dir", "./.stackctl")
	v.SetDefault("docker.host", "")
	v.SetDefault("probe.timeout", "5s")
	v.SetDefault("verify.timeout", "30s")
	v.SetDefault("verify.grace", "5s")
	v.SetDefault("retry.max_attempts", 3)
	v.SetDefault("retry.base_delay", "1s")
	v.SetDefault("retry.max_delay", "30s")
	v.SetDefault("retry.jitter_bound", "500ms")
	v.SetDefault("retry.strategy", "exponential")
	v.SetDefault("remediate.enabled", false) // No downloads without explicit opt-in
	v.SetDefault("remediate.base_url", "https://github.com/docker/compose/releases/download")
	v.SetDefault("remediate.version", "2.29.7")
	v.SetDefault("remediate.sha256", "")
	v.SetDefault("remediate.dir", "/usr/local/bin")
	v.SetDefault("journal.enabled", true)
	v.SetDefault("deploy.compose_file", "compose.yaml")
	v.SetDefault("deploy.lock_wait", "60s")
	v.SetDefault("deploy.timeout", "10m")
	v.SetDefault("deploy.grace", "30s")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")

	// Load from file if provided
	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			// Only return error if file was explicitly specified and is invalid
			if _, ok := err.(viper.ConfigParseError); ok {
				return nil, fmt.Errorf("failed to parse config file: %w", err)
			}
			// File not found is OK, we'll use defaults
		}
	}

	// Enable environment variable overrides
	v.SetEnvPrefix("STACKCTL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Unmarshal config
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Retry.Policy().Validate(); err != nil {
		return nil, fmt.Errorf("invalid retry configuration: %w", err)
	}

	return &cfg, nil
}

// =============================================================================
// Logger Setup
// =============================================================================

// SetupLogger creates a logger with the configured level and format.
func SetupLogger(cfg *Config) *slog.Logger {
	var level slog.Level
	switch strings.ToLower(cfg.Log.Level) {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn", "warning":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level: level,
	}

	var handler slog.Handler
	if strings.ToLower(cfg.Log.Format) == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}

	return slog.New(handler)
}
