// Package config loads volctl configuration.
//
// Configuration comes from a single YAML file named by the --config flag
// or the VOLCTL_CONFIG environment variable. Without either, Default is
// used. Command-line flags override file values.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// EnvConfig names the environment variable holding the config file path.
const EnvConfig = "VOLCTL_CONFIG"

const (
	BackendNative = "native"
	BackendMixer  = "mixer"
)

type Config struct {
	Library  LibraryConfig  `yaml:"library"`
	Listener ListenerConfig `yaml:"listener"`
	Relay    RelayConfig    `yaml:"relay"`
	Log      LogConfig      `yaml:"log"`
}

// LibraryConfig controls where the native library is exported.
type LibraryConfig struct {
	// Directory the library file is written to. Empty means the
	// system temp directory. ${VAR} references are expanded.
	Directory string `yaml:"directory"`

	// Name is the library file name without extension. Empty means the
	// platform default.
	Name string `yaml:"name"`

	// MultiInstance gives every instance its own library file.
	MultiInstance bool `yaml:"multi_instance"`

	// Backend is "native" or "mixer".
	Backend string `yaml:"backend"`
}

type ListenerConfig struct {
	Interval time.Duration `yaml:"interval"`
}

type RelayConfig struct {
	// URL the sync client connects to.
	URL string `yaml:"url"`

	// Listen is the address the relay server binds.
	Listen string `yaml:"listen"`

	// VolumeChangeRate is the number of volume changes per second
	// accepted from each client.
	VolumeChangeRate int `yaml:"volume_change_rate"`

	RetryDelay time.Duration `yaml:"retry_delay"`
}

type LogConfig struct {
	Debug bool `yaml:"debug"`
}

// Default returns the configuration used without a config file.
func Default() *Config {
	return &Config{
		Library: LibraryConfig{
			Backend: BackendNative,
		},
		Listener: ListenerConfig{
			Interval: 500 * time.Millisecond,
		},
		Relay: RelayConfig{
			URL:              "ws://localhost:8080/ws",
			Listen:           ":8080",
			VolumeChangeRate: 2,
			RetryDelay:       5 * time.Second,
		},
	}
}

// Load reads the file named by VOLCTL_CONFIG, or returns Default when
// it is unset.
func Load() (*Config, error) {
	path := os.Getenv(EnvConfig)
	if path == "" {
		return Default(), nil
	}
	return LoadFile(path)
}

// LoadFile reads the config file at path on top of Default.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config file %s: %w", path, err)
	}
	cfg.Library.Directory = os.ExpandEnv(cfg.Library.Directory)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config file %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks cross-field constraints.
func (c *Config) Validate() error {
	var errs []error
	switch c.Library.Backend {
	case BackendNative, BackendMixer:
	default:
		errs = append(errs, fmt.Errorf("library.backend must be %q or %q, got %q", BackendNative, BackendMixer, c.Library.Backend))
	}
	if c.Listener.Interval <= 0 {
		errs = append(errs, fmt.Errorf("listener.interval must be positive, got %v", c.Listener.Interval))
	}
	if c.Relay.VolumeChangeRate <= 0 {
		errs = append(errs, fmt.Errorf("relay.volume_change_rate must be positive, got %d", c.Relay.VolumeChangeRate))
	}
	if c.Relay.RetryDelay < 0 {
		errs = append(errs, fmt.Errorf("relay.retry_delay must not be negative, got %v", c.Relay.RetryDelay))
	}
	return errors.Join(errs...)
}
