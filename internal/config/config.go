// Package config holds process configuration for the workspace-mcp service.
package config

import (
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the configuration for the workspace-mcp service
type Config struct {
	// Listen is the HTTP listen address. Empty means stdio transport.
	Listen string `yaml:"listen"`

	// SessionTimeout is how long a session may stay idle before expiring
	SessionTimeout Duration `yaml:"sessionTimeout"`

	// SweepInterval is how often expired sessions are reclaimed
	SweepInterval Duration `yaml:"sweepInterval"`

	// Server is the static identity advertised on initialize
	Server Identity `yaml:"server"`

	// Upstream describes the OpenAPI document the tool set is built from
	Upstream Upstream `yaml:"upstream"`
}

// Identity is the static server identity
type Identity struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`
}

// Upstream points at the OpenAPI document providing the tool set
type Upstream struct {
	// Spec is a file path or URL; empty means no tools are loaded from a spec
	Spec string `yaml:"spec"`

	// Auth is an Authorization header value sent on upstream calls
	Auth string `yaml:"auth"`
}

// Duration wraps time.Duration so config files can use values like "90s"
// or "1h30m"
type Duration time.Duration

var _ yaml.Unmarshaler = (*Duration)(nil)

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	parsed, err := time.ParseDuration(value.Value)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", value.Value, err)
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// DefaultConfig returns the configuration used when no file is given
func DefaultConfig() *Config {
	return &Config{
		SessionTimeout: Duration(time.Hour),
		SweepInterval:  Duration(time.Minute),
		Server: Identity{
			Name:    "google_workspace",
			Version: "1.12.0",
		},
	}
}

// LoadFile loads configuration from a YAML file. A missing file yields the
// defaults.
func LoadFile(path string) (*Config, error) {
	if path == "" {
		return DefaultConfig(), nil
	}

	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultConfig(), nil
		}
		return nil, fmt.Errorf("error opening config file: %w", err)
	}
	defer f.Close()

	return Load(f)
}

// Load loads configuration from an io.Reader, filling unset fields with
// defaults
func Load(r io.Reader) (*Config, error) {
	config := DefaultConfig()

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("error reading config data: %w", err)
	}

	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("error parsing config YAML: %w", err)
	}

	return config, nil
}
