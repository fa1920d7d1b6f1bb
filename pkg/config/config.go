// Package config loads and validates the tool configuration: lock store
// settings, telemetry, and the node inventory with each node's item
// declarations.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Duration is a time.Duration that unmarshals from YAML strings like "5m".
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// Config is the top-level tool configuration.
type Config struct {
	// LockStorePath is the SQLite database holding node locks.
	LockStorePath string `yaml:"lock_store" validate:"required"`

	// LockTTL is the default lock time-to-live for apply runs.
	LockTTL Duration `yaml:"lock_ttl"`

	// LockWait polls for contended locks instead of failing fast.
	LockWait bool `yaml:"lock_wait"`

	// LockPollInterval is the poll interval when LockWait is set.
	LockPollInterval Duration `yaml:"lock_poll_interval"`

	// Parallelism bounds how many nodes are applied concurrently.
	Parallelism int `yaml:"parallelism" validate:"min=0,max=256"`

	// LogLevel sets the minimum log level.
	LogLevel string `yaml:"log_level" validate:"omitempty,oneof=trace debug info warn error fatal"`

	// LogFormat selects console or json output.
	LogFormat string `yaml:"log_format" validate:"omitempty,oneof=console json"`

	// MetricsListen enables the Prometheus endpoint when set (host:port).
	MetricsListen string `yaml:"metrics_listen" validate:"omitempty,hostname_port"`

	// Nodes is the managed node inventory.
	Nodes []NodeConfig `yaml:"nodes" validate:"required,min=1,dive"`
}

// NodeConfig describes one managed node and its item declarations.
type NodeConfig struct {
	// Name is the node identity used for locking and reporting.
	Name string `yaml:"name" validate:"required"`

	// Host is the address the transport dials.
	Host string `yaml:"host" validate:"required"`

	// Port is the SSH port (default 22).
	Port int `yaml:"port" validate:"min=0,max=65535"`

	// User is the SSH username.
	User string `yaml:"user" validate:"required"`

	// PrivateKeyPath selects key authentication when set.
	PrivateKeyPath string `yaml:"private_key"`

	// Password selects password authentication when set.
	Password string `yaml:"password"`

	// Items are the desired-state declarations for the node.
	Items []ItemConfig `yaml:"items" validate:"dive"`
}

// ItemConfig declares one item. Exactly one of File, Pkg, or Action must
// be set.
type ItemConfig struct {
	// File declares a managed file.
	File *FileConfig `yaml:"file"`

	// Pkg declares a managed package.
	Pkg *PkgConfig `yaml:"pkg"`

	// Action declares a canned action fired by triggers.
	Action *ActionConfig `yaml:"action"`

	// Needs lists hard dependencies as "type:name" identities.
	Needs []string `yaml:"needs"`

	// Triggers lists canned actions to fire, as "type:name" identities.
	Triggers []string `yaml:"triggers"`

	// Interactive requires confirmation before fixing.
	Interactive bool `yaml:"interactive"`
}

// FileConfig declares a managed file.
type FileConfig struct {
	Path    string `yaml:"path" validate:"required"`
	Content string `yaml:"content"`
	Source  string `yaml:"source"`
	Mode    string `yaml:"mode"`
	Owner   string `yaml:"owner"`
	Group   string `yaml:"group"`
}

// PkgConfig declares a managed package.
type PkgConfig struct {
	Name      string `yaml:"name" validate:"required"`
	Installed *bool  `yaml:"installed"`
}

// ActionConfig declares a canned action.
type ActionConfig struct {
	Name    string `yaml:"name" validate:"required"`
	Command string `yaml:"command" validate:"required"`
}

// Default returns a configuration with defaults applied.
func Default() *Config {
	return &Config{
		LockStorePath:    "wield.db",
		LockTTL:          Duration(30 * time.Minute),
		LockPollInterval: Duration(5 * time.Second),
		Parallelism:      4,
		LogLevel:         "info",
		LogFormat:        "console",
	}
}

// Load reads, parses, and validates a configuration file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	return Parse(data)
}

// Parse parses and validates configuration bytes.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	for i := range cfg.Nodes {
		node := &cfg.Nodes[i]
		if node.Port == 0 {
			node.Port = 22
		}
		for j, item := range node.Items {
			if err := validateItemConfig(item); err != nil {
				return nil, fmt.Errorf("invalid config: node %s item %d: %w", node.Name, j, err)
			}
		}
	}

	return cfg, nil
}

// validateItemConfig checks the one-of constraint yaml tags cannot express.
func validateItemConfig(item ItemConfig) error {
	count := 0
	if item.File != nil {
		count++
	}
	if item.Pkg != nil {
		count++
	}
	if item.Action != nil {
		count++
	}
	if count != 1 {
		return fmt.Errorf("exactly one of file, pkg, or action must be set")
	}
	if item.File != nil && item.File.Content != "" && item.File.Source != "" {
		return fmt.Errorf("file declares both content and source")
	}
	return nil
}
