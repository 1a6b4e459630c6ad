package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// Config holds all extsweep configuration.
type Config struct {
	// Target database holding the extension and its catalog
	Target TargetConfig `yaml:"target" toml:"target"`

	// Function sweep settings
	Sweep SweepConfig `yaml:"sweep" toml:"sweep"`

	// Operator sweep settings
	Operators OperatorConfig `yaml:"operators" toml:"operators"`

	// Logging
	Logging LoggingConfig `yaml:"logging" toml:"logging"`
}

// TargetConfig selects the database driver and connection string.
type TargetConfig struct {
	Driver     string   `yaml:"driver" toml:"driver"` // sqlite (pure Go), sqlite3 (cgo)
	DSN        string   `yaml:"dsn" toml:"dsn"`
	Extensions []string `yaml:"extensions,omitempty" toml:"extensions,omitempty"` // loadable extensions, sqlite3 only
}

// SweepConfig configures function discovery and invocation.
type SweepConfig struct {
	// Qualified-name prefix of the functions under test, e.g. "ext::geo::"
	Namespace string `yaml:"namespace" toml:"namespace"`

	// Several prefixes swept together; overrides Namespace when set
	Namespaces []string `yaml:"namespaces,omitempty" toml:"namespaces,omitempty"`

	// Functions excluded from the sweep (qualified or local names)
	Skip []string `yaml:"skip,omitempty" toml:"skip,omitempty"`

	// fmt verb wrapping a single element into an array literal
	ArrayFormat string `yaml:"array_format" toml:"array_format"`

	// Extra YAML samples appended to the built-in registry
	RegistryFile string `yaml:"registry_file,omitempty" toml:"registry_file,omitempty"`

	// Extra YAML acceptable-failure rules appended to the defaults
	RulesFile string `yaml:"rules_file,omitempty" toml:"rules_file,omitempty"`
}

// OperatorConfig configures the operator sweep, which calls operator
// functions as filters over a seeded table.
type OperatorConfig struct {
	Prefix       string `yaml:"prefix" toml:"prefix"`
	Table        string `yaml:"table" toml:"table"`
	ResultColumn string `yaml:"result_column" toml:"result_column"`

	// Local type name -> column holding a value of that type
	Columns map[string]string `yaml:"columns" toml:"columns"`

	// Return type -> comparison appended to the call, e.g. "< 1"
	Comparisons map[string]string `yaml:"comparisons,omitempty" toml:"comparisons,omitempty"`

	// Extra YAML rules for the operator sweep
	RulesFile string `yaml:"rules_file,omitempty" toml:"rules_file,omitempty"`
}

// Prefixes returns the namespaces to sweep: Namespaces if set, otherwise
// Namespace alone.
func (s SweepConfig) Prefixes() []string {
	if len(s.Namespaces) > 0 {
		return s.Namespaces
	}
	return []string{s.Namespace}
}

// LoggingConfig configures logging.
type LoggingConfig struct {
	Level  string `yaml:"level" toml:"level"`   // debug, info, warn, error
	Format string `yaml:"format" toml:"format"` // json, console
	File   string `yaml:"file,omitempty" toml:"file,omitempty"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Target: TargetConfig{
			Driver: "sqlite",
			DSN:    "data/extsweep.db",
		},

		Sweep: SweepConfig{
			Namespace:   "ext::geo::",
			ArrayFormat: "json_array(%s)",
		},

		Operators: OperatorConfig{
			Prefix:       "ext::geo::op_",
			Table:        "geo_test0",
			ResultColumn: "name",
			Columns: map[string]string{
				"geometry":  "geometry",
				"geography": "geography",
			},
			Comparisons: map[string]string{
				"std::float64": "< 1",
			},
		},

		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// isTOML reports whether path names a TOML file; everything else is YAML.
func isTOML(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".toml")
}

// Load loads configuration from a YAML or TOML file.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
		// Defaults if config file doesn't exist
	case err != nil:
		return nil, fmt.Errorf("failed to read config: %w", err)
	default:
		if isTOML(path) {
			err = toml.Unmarshal(data, cfg)
		} else {
			err = yaml.Unmarshal(data, cfg)
		}
		if err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	// Override with environment variables
	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Save saves configuration in the format its extension names.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	var data []byte
	if isTOML(path) {
		var buf bytes.Buffer
		if err := toml.NewEncoder(&buf).Encode(c); err != nil {
			return fmt.Errorf("failed to marshal config: %w", err)
		}
		data = buf.Bytes()
	} else {
		var err error
		if data, err = yaml.Marshal(c); err != nil {
			return fmt.Errorf("failed to marshal config: %w", err)
		}
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// Validate checks that the configuration can drive a sweep.
func (c *Config) Validate() error {
	switch c.Target.Driver {
	case "sqlite", "sqlite3":
	default:
		return fmt.Errorf("unsupported target driver %q", c.Target.Driver)
	}
	if len(c.Target.Extensions) > 0 && c.Target.Driver != "sqlite3" {
		return fmt.Errorf("extensions require the sqlite3 driver, got %q", c.Target.Driver)
	}
	for _, ns := range c.Sweep.Prefixes() {
		if strings.TrimSpace(ns) == "" {
			return fmt.Errorf("sweep.namespace is required and sweep.namespaces may not contain empty entries")
		}
	}
	if strings.Count(c.Sweep.ArrayFormat, "%s") != 1 {
		return fmt.Errorf("sweep.array_format must contain exactly one %%s, got %q", c.Sweep.ArrayFormat)
	}
	return nil
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if driver := os.Getenv("EXTSWEEP_DRIVER"); driver != "" {
		c.Target.Driver = driver
	}
	if dsn := os.Getenv("EXTSWEEP_DSN"); dsn != "" {
		c.Target.DSN = dsn
	}
	if ns := os.Getenv("EXTSWEEP_NAMESPACE"); ns != "" {
		c.Sweep.Namespace = ns
		c.Sweep.Namespaces = nil
	}
	if level := os.Getenv("EXTSWEEP_LOG_LEVEL"); level != "" {
		c.Logging.Level = level
	}
}
