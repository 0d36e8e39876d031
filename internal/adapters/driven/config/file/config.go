package file

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// Config is the deployment configuration, stored as TOML in the
// observatory config directory. All fields have workable defaults, so
// a missing file is not an error.
type Config struct {
	// DataDir is where the SQLite database lives.
	// Empty means ~/.observatory/data.
	DataDir string `toml:"data_dir"`
	// CredentialsFile is the path to the credential pool TOML file.
	// Empty means <config dir>/credentials.toml.
	CredentialsFile string `toml:"credentials_file"`
	// Verbose enables debug logging.
	Verbose bool `toml:"verbose"`

	Executor  ExecutorSection  `toml:"executor"`
	Scheduler SchedulerSection `toml:"scheduler"`
}

// ExecutorSection tunes the worker pool and retry policy.
type ExecutorSection struct {
	// Workers bounds concurrently executing collection tasks.
	Workers int64 `toml:"workers"`
	// MaxAttempts caps execution attempts per task.
	MaxAttempts int `toml:"max_attempts"`
	// BackoffBaseSeconds is the first retry delay.
	BackoffBaseSeconds int `toml:"backoff_base_seconds"`
	// TaskBudgetSeconds is the default task wall-clock budget.
	TaskBudgetSeconds int `toml:"task_budget_seconds"`
}

// SchedulerSection tunes live-tracking dispatch.
type SchedulerSection struct {
	// TickSeconds is how often the scheduler checks for due designs.
	TickSeconds int `toml:"tick_seconds"`
}

// BackoffBase returns the configured retry base delay.
func (s ExecutorSection) BackoffBase() time.Duration {
	return time.Duration(s.BackoffBaseSeconds) * time.Second
}

// TaskBudget returns the configured default task budget.
func (s ExecutorSection) TaskBudget() time.Duration {
	return time.Duration(s.TaskBudgetSeconds) * time.Second
}

// Tick returns the configured scheduler tick.
func (s SchedulerSection) Tick() time.Duration {
	return time.Duration(s.TickSeconds) * time.Second
}

// DefaultConfig returns the configuration used when no file exists.
func DefaultConfig() Config {
	return Config{
		Executor: ExecutorSection{
			Workers:            4,
			MaxAttempts:        3,
			BackoffBaseSeconds: 1,
			TaskBudgetSeconds:  300,
		},
		Scheduler: SchedulerSection{
			TickSeconds: 60,
		},
	}
}

// ConfigPath returns the config file path for a config directory.
// An empty configDir means ~/.observatory.
func ConfigPath(configDir string) (string, error) {
	if configDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("getting home directory: %w", err)
		}
		configDir = filepath.Join(home, ".observatory")
	}
	return filepath.Join(configDir, "config.toml"), nil
}

// LoadConfig reads the deployment configuration from the config
// directory, falling back to defaults for a missing file or any unset
// field.
func LoadConfig(configDir string) (Config, error) {
	cfg := DefaultConfig()

	path, err := ConfigPath(configDir)
	if err != nil {
		return cfg, err
	}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return cfg, fmt.Errorf("reading config: %w", err)
	}

	if err := toml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing %s: %w", path, err)
	}
	return cfg.withDefaults(), nil
}

// withDefaults fills fields an explicit file left unset or nonsensical.
func (c Config) withDefaults() Config {
	base := DefaultConfig()
	if c.Executor.Workers <= 0 {
		c.Executor.Workers = base.Executor.Workers
	}
	if c.Executor.MaxAttempts <= 0 {
		c.Executor.MaxAttempts = base.Executor.MaxAttempts
	}
	if c.Executor.BackoffBaseSeconds <= 0 {
		c.Executor.BackoffBaseSeconds = base.Executor.BackoffBaseSeconds
	}
	if c.Executor.TaskBudgetSeconds <= 0 {
		c.Executor.TaskBudgetSeconds = base.Executor.TaskBudgetSeconds
	}
	if c.Scheduler.TickSeconds <= 0 {
		c.Scheduler.TickSeconds = base.Scheduler.TickSeconds
	}
	return c
}

// Save writes the configuration to the config directory, creating it
// if needed.
func (c Config) Save(configDir string) error {
	path, err := ConfigPath(configDir)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	data, err := toml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshalling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}
