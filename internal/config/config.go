// Package config provides configuration file support for rawhdr.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the rawhdr configuration file structure.
type Config struct {
	// Defaults are applied when flags are not specified
	Defaults Defaults `yaml:"defaults"`

	// Send holds defaults for the ping and timestamp commands
	Send SendConfig `yaml:"send"`

	// Logging controls the process logger
	Logging LoggingConfig `yaml:"logging"`

	// Aliases for common targets
	Aliases map[string]string `yaml:"aliases,omitempty"`
}

// Defaults holds default values for output and dissection.
type Defaults struct {
	// Output format: text, table, json, csv
	Format  string `yaml:"format"`
	NoColor bool   `yaml:"no_color"`

	// Dissection
	VerifyChecksums bool `yaml:"verify_checksums"`
	Workers         int  `yaml:"workers"`
}

// SendConfig holds defaults for request plans.
type SendConfig struct {
	// IPv4 header fields used with header_included
	TTL  int `yaml:"ttl"`
	TOS  int `yaml:"tos"`
	IPID int `yaml:"ip_id"`

	// ICMP identifier; 0 uses the process ID
	Identifier int `yaml:"identifier"`

	// Plan
	Count    int           `yaml:"count"`
	Interval time.Duration `yaml:"interval"`
	Timeout  time.Duration `yaml:"timeout"`
	Wait     bool          `yaml:"wait"`

	// Build the IPv4 header locally (IP_HDRINCL)
	HeaderIncluded bool `yaml:"header_included"`
}

// LoggingConfig holds logger settings.
type LoggingConfig struct {
	Level      string `yaml:"level"`
	File       string `yaml:"file"`
	Dir        string `yaml:"dir"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
}

// Formats lists the accepted output formats.
var Formats = []string{"text", "table", "json", "csv", "html"}

// DefaultConfig returns a Config with default values.
func DefaultConfig() *Config {
	return &Config{
		Defaults: Defaults{
			Format:          "text",
			NoColor:         false,
			VerifyChecksums: true,
			Workers:         0, // 0 means GOMAXPROCS
		},
		Send: SendConfig{
			TTL:            64,
			Count:          4,
			Interval:       time.Second,
			Timeout:        3 * time.Second,
			Wait:           true,
			HeaderIncluded: false,
		},
		Logging: LoggingConfig{
			Level:      "warn",
			MaxSizeMB:  10,
			MaxBackups: 3,
			MaxAgeDays: 7,
		},
		Aliases: make(map[string]string),
	}
}

// Validate checks value ranges that yaml decoding cannot.
func (c *Config) Validate() error {
	var errs []error

	if !validFormat(c.Defaults.Format) {
		errs = append(errs, fmt.Errorf("defaults.format %q: must be one of %s", c.Defaults.Format, strings.Join(Formats, ", ")))
	}
	if c.Defaults.Workers < 0 {
		errs = append(errs, fmt.Errorf("defaults.workers %d: must not be negative", c.Defaults.Workers))
	}
	if c.Send.TTL < 0 || c.Send.TTL > 255 {
		errs = append(errs, fmt.Errorf("send.ttl %d: must be between 0 and 255", c.Send.TTL))
	}
	if c.Send.TOS < 0 || c.Send.TOS > 255 {
		errs = append(errs, fmt.Errorf("send.tos %d: must be between 0 and 255", c.Send.TOS))
	}
	if c.Send.IPID < 0 || c.Send.IPID > 0xffff {
		errs = append(errs, fmt.Errorf("send.ip_id %d: must be between 0 and 65535", c.Send.IPID))
	}
	if c.Send.Identifier < 0 || c.Send.Identifier > 0xffff {
		errs = append(errs, fmt.Errorf("send.identifier %d: must be between 0 and 65535", c.Send.Identifier))
	}

	return errors.Join(errs...)
}

func validFormat(f string) bool {
	for _, v := range Formats {
		if f == v {
			return true
		}
	}
	return false
}

// Resolve returns the address an alias names, or target unchanged.
func (c *Config) Resolve(target string) string {
	if addr, ok := c.Aliases[target]; ok {
		return addr
	}
	return target
}

// Load reads configuration from the default config file locations.
// It searches in order:
//  1. ./rawhdr.yaml, ./.rawhdr.yaml (current directory)
//  2. $XDG_CONFIG_HOME/rawhdr/config.yaml or ~/.config/rawhdr/config.yaml
//  3. %APPDATA%\rawhdr\config.yaml (Windows)
//
// If no config file is found, returns default configuration.
func Load() (*Config, string, error) {
	for _, path := range getConfigPaths() {
		if _, err := os.Stat(path); err == nil {
			c, err := LoadFrom(path)
			return c, path, err
		}
	}

	// No config file found, return defaults
	return DefaultConfig(), "", nil
}

// LoadFrom reads configuration from a specific file path.
func LoadFrom(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	config := DefaultConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	if config.Aliases == nil {
		config.Aliases = make(map[string]string)
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}

	return config, nil
}

// Save writes the configuration to the default user config path.
func (c *Config) Save() error {
	return c.SaveTo(getUserConfigPath())
}

// SaveTo writes the configuration to a specific file path.
func (c *Config) SaveTo(path string) error {
	if path == "" {
		return errors.New("no config path available")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}

// getConfigPaths returns the list of config file paths to search.
func getConfigPaths() []string {
	paths := []string{
		"rawhdr.yaml",
		"rawhdr.yml",
		".rawhdr.yaml",
		".rawhdr.yml",
	}

	if userPath := getUserConfigPath(); userPath != "" {
		paths = append(paths, userPath)
	}

	return paths
}

// getUserConfigPath returns the user-specific config file path.
func getUserConfigPath() string {
	switch runtime.GOOS {
	case "windows":
		if appData := os.Getenv("APPDATA"); appData != "" {
			return filepath.Join(appData, "rawhdr", "config.yaml")
		}
	default: // Linux, macOS, etc.
		if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
			return filepath.Join(xdgConfig, "rawhdr", "config.yaml")
		}
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, ".config", "rawhdr", "config.yaml")
		}
	}
	return ""
}

// GetConfigPath returns the path where user config would be saved.
func GetConfigPath() string {
	return getUserConfigPath()
}

// GenerateExample generates an example configuration file content.
func GenerateExample() string {
	return `# rawhdr Configuration File
# Location: ~/.config/rawhdr/config.yaml (Linux/macOS)
#           %APPDATA%\rawhdr\config.yaml (Windows)
#           ./rawhdr.yaml (current directory)

defaults:
  format: text            # text, table, json, csv, html
  no_color: false         # Disable colors
  verify_checksums: true  # Report IPv4/ICMP checksum mismatches
  workers: 0              # Dissection workers (0 = one per CPU)

send:
  ttl: 64                 # TTL written when header_included is set
  tos: 0                  # Type of service
  ip_id: 0                # IPv4 identification (0 = kernel chooses)
  identifier: 0           # ICMP identifier (0 = process ID)
  count: 4                # Requests per run (1-1000)
  interval: 1s            # Delay between requests (min 10ms)
  timeout: 3s             # Reply wait per request
  wait: true              # Wait for and match replies
  header_included: false  # Build the IPv4 header locally

logging:
  level: warn             # debug, info, warn, error
  file: ""                # Log file name (empty = stderr only)
  dir: ""                 # Log directory (default: current directory)
  max_size_mb: 10
  max_backups: 3
  max_age_days: 7

# Target aliases (optional)
aliases:
  lo: 127.0.0.1
  gw: 192.168.1.1
`
}
