package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"pico_command_center/constants"
)

// Config holds the host tool settings.
type Config struct {
	UDPPort          int           `yaml:"udp_port"`
	TCPPort          int           `yaml:"tcp_port"`
	Handshake        string        `yaml:"handshake"`
	ListenAddress    string        `yaml:"listen_address"`
	DiscoveryTimeout time.Duration `yaml:"discovery_timeout"`
	DSCP             int           `yaml:"dscp"`
	Verbose          bool          `yaml:"verbose"`
}

// Default returns the settings matching the device firmware
func Default() *Config {
	return &Config{
		UDPPort:       constants.DEFAULT_UDP_PORT,
		TCPPort:       constants.DEFAULT_TCP_PORT,
		Handshake:     constants.HANDSHAKE_MESSAGE,
		ListenAddress: constants.DEFAULT_LISTEN,
		DSCP:          constants.DEFAULT_DSCP,
	}
}

// DefaultPath returns the default config file path: ~/.picoexpander/config.yaml
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".picoexpander", "config.yaml")
	}
	return filepath.Join(home, ".picoexpander", "config.yaml")
}

// Load reads the configuration from the given YAML file path.
// A missing file yields the defaults with no error.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return nil, err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	return cfg, cfg.Validate()
}

// Validate checks value ranges
func (c *Config) Validate() error {
	if c.UDPPort < 1 || c.UDPPort > 65535 {
		return fmt.Errorf("udp_port %d out of range", c.UDPPort)
	}
	if c.TCPPort < 1 || c.TCPPort > 65535 {
		return fmt.Errorf("tcp_port %d out of range", c.TCPPort)
	}
	if c.Handshake == "" {
		return errors.New("handshake must not be empty")
	}
	if c.DiscoveryTimeout < 0 {
		return errors.New("discovery_timeout must not be negative")
	}
	if c.DSCP < 0 || c.DSCP > 63 {
		return fmt.Errorf("dscp %d out of range", c.DSCP)
	}
	return nil
}
