// Package config loads earshot settings from YAML with environment
// overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds the settings a run starts from.
type Config struct {
	// Commands are the executable names the shim farm intercepts.
	Commands []string `yaml:"commands,omitempty"`

	// BaseDir overrides where run directories live. Empty uses
	// ~/.earshot/runs.
	BaseDir string `yaml:"base_dir,omitempty"`

	// PTY runs builds under a pseudo-terminal by default.
	PTY bool `yaml:"pty,omitempty"`

	Otel OtelConfig `yaml:"otel,omitempty"`
}

// OtelConfig holds the span export destination.
type OtelConfig struct {
	// Endpoint is the host:port of an OTLP/HTTP receiver.
	Endpoint string `yaml:"endpoint,omitempty"`

	// Insecure exports over plain HTTP.
	Insecure bool `yaml:"insecure,omitempty"`

	// Service is the service.name spans are exported under.
	Service string `yaml:"service,omitempty"`
}

// defaultCommands is the built-in intercepted command set: the common
// compiler and binutils entry points, plus make so recursive builds
// stay inside the trace.
var defaultCommands = []string{
	"cc", "c++", "cpp",
	"gcc", "g++",
	"clang", "clang++",
	"ld", "as", "ar", "ranlib",
	"nm", "strip", "objcopy",
	"make", "gmake",
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Commands: append([]string(nil), defaultCommands...),
		Otel: OtelConfig{
			Service: "earshot",
		},
	}
}

// Load reads a config file, layered over the defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// LoadDefault reads ~/.earshot/config.yaml when present and applies
// environment overrides. A missing file yields the defaults; a file
// that exists but does not parse is an error, since dropping it would
// silently change which commands get intercepted.
func LoadDefault() (*Config, error) {
	cfg := Default()

	path := filepath.Join(Dir(), "config.yaml")
	if data, err := os.ReadFile(path); err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing %s: %w", path, err)
		}
	}

	if endpoint := os.Getenv("EARSHOT_OTEL_ENDPOINT"); endpoint != "" {
		cfg.Otel.Endpoint = endpoint
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Dir returns the path to ~/.earshot.
func Dir() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".earshot")
	}
	return filepath.Join(homeDir, ".earshot")
}

func (c *Config) validate() error {
	if len(c.Commands) == 0 {
		return fmt.Errorf("commands list is empty")
	}
	for _, name := range c.Commands {
		if name == "" {
			return fmt.Errorf("commands contains an empty name")
		}
		if strings.ContainsRune(name, os.PathSeparator) {
			return fmt.Errorf("command %q must be a bare name, not a path", name)
		}
	}
	return nil
}
