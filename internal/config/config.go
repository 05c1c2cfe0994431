package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all agentsuite configuration.
type Config struct {
	// Core settings
	Name    string `yaml:"name"`
	Version string `yaml:"version"`

	// Protocol discovery and parsing
	Protocols ProtocolsConfig `yaml:"protocols"`

	// Memory bank
	Memory MemoryConfig `yaml:"memory"`

	// Execution history store
	History HistoryConfig `yaml:"history"`

	// Execution settings
	Execution ExecutionConfig `yaml:"execution"`

	// Logging
	Logging LoggingConfig `yaml:"logging"`
}

// ProtocolsConfig configures protocol document discovery.
type ProtocolsConfig struct {
	// Directories scanned for Protocol_*.md, relative to the workspace.
	// The workspace root itself is always scanned.
	Dirs []string `yaml:"dirs"`

	// Maximum rune length of the description returned by list
	DescriptionLimit int `yaml:"description_limit"`

	// Watch protocol directories and reload the registry on change
	WatchEnabled bool `yaml:"watch_enabled"`
}

// MemoryConfig configures the memory bank.
type MemoryConfig struct {
	// Directory holding the context markdown files, relative to the workspace
	Dir string `yaml:"dir"`
}

// HistoryConfig configures the execution history store.
type HistoryConfig struct {
	Enabled      bool   `yaml:"enabled"`
	DatabasePath string `yaml:"database_path"`
}

// ExecutionConfig configures the execution tracker.
type ExecutionConfig struct {
	// Abort remaining phases after the first phase failure.
	// Default false: every phase is attempted and failures are recorded.
	HaltOnPhaseFailure bool `yaml:"halt_on_phase_failure"`

	// Timeout applied to a single phase handler invocation
	PhaseTimeout string `yaml:"phase_timeout"`
}

// LoggingConfig configures logging.
type LoggingConfig struct {
	Level      string          `yaml:"level"` // debug, info, warn, error
	DebugMode  bool            `yaml:"debug_mode"`
	Categories map[string]bool `yaml:"categories"`
	JSONFormat bool            `yaml:"json_format"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Name:    "agentsuite",
		Version: "1.0.0",

		Protocols: ProtocolsConfig{
			Dirs:             []string{"protocols"},
			DescriptionLimit: 200,
			WatchEnabled:     false,
		},

		Memory: MemoryConfig{
			Dir: "memory-bank",
		},

		History: HistoryConfig{
			Enabled:      true,
			DatabasePath: ".suite/history.db",
		},

		Execution: ExecutionConfig{
			HaltOnPhaseFailure: false,
			PhaseTimeout:       "5m",
		},

		Logging: LoggingConfig{
			Level:     "info",
			DebugMode: false,
		},
	}
}

// Load loads configuration from a YAML file.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			// Return defaults if config file doesn't exist
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyEnvOverrides()

	return cfg, nil
}

// LoadWorkspace loads the configuration for a workspace from
// <workspace>/.suite/config.yaml.
func LoadWorkspace(workspace string) (*Config, error) {
	return Load(filepath.Join(workspace, ".suite", "config.yaml"))
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if dirs := os.Getenv("AGENTSUITE_PROTOCOL_DIRS"); dirs != "" {
		parts := strings.Split(dirs, string(os.PathListSeparator))
		out := parts[:0]
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
		c.Protocols.Dirs = out
	}

	if dir := os.Getenv("AGENTSUITE_MEMORY_DIR"); dir != "" {
		c.Memory.Dir = dir
	}

	if path := os.Getenv("AGENTSUITE_DB"); path != "" {
		c.History.DatabasePath = path
	}

	if v := os.Getenv("AGENTSUITE_HALT_ON_FAILURE"); v != "" {
		c.Execution.HaltOnPhaseFailure = v == "1" || strings.EqualFold(v, "true")
	}
}

// GetPhaseTimeout returns the phase timeout as a duration.
func (c *Config) GetPhaseTimeout() time.Duration {
	d, err := time.ParseDuration(c.Execution.PhaseTimeout)
	if err != nil {
		return 5 * time.Minute
	}
	return d
}
