/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Compatibility modes.
const (
	CompatStrict = "strict"
	CompatLegacy = "legacy"
)

// ErrMissingDatabaseURL is returned when no database URL is configured.
var ErrMissingDatabaseURL = errors.New("DATABASE_URL is not set")

// Config represents the usersvc configuration
type Config struct {
	Bind     string   `yaml:"bind" toml:"bind"`
	Port     int      `yaml:"port" toml:"port"`
	Compat   string   `yaml:"compat" toml:"compat"`
	Database Database `yaml:"database" toml:"database"`
	Server   Server   `yaml:"server" toml:"server"`
	Metrics  Metrics  `yaml:"metrics" toml:"metrics"`
	Logging  Logging  `yaml:"logging" toml:"logging"`
}

// Database contains the store connection settings
type Database struct {
	URL             string   `yaml:"url" toml:"url"`
	MaxOpenConns    int      `yaml:"max_open_conns" toml:"max_open_conns"`
	MaxIdleConns    int      `yaml:"max_idle_conns" toml:"max_idle_conns"`
	ConnMaxLifetime Duration `yaml:"conn_max_lifetime" toml:"conn_max_lifetime"`
}

// Server contains connection handling settings
type Server struct {
	MaxConnections int      `yaml:"max_connections" toml:"max_connections"`
	BufferSize     int      `yaml:"buffer_size" toml:"buffer_size"`
	IOTimeout      Duration `yaml:"io_timeout" toml:"io_timeout"`
}

// Metrics contains the admin HTTP endpoint settings
type Metrics struct {
	Addr           string   `yaml:"addr" toml:"addr"`
	AllowedOrigins []string `yaml:"allowed_origins" toml:"allowed_origins"`
}

// Logging contains logging configuration
type Logging struct {
	Level  string `yaml:"level" toml:"level"`
	Format string `yaml:"format" toml:"format"`
}

// DefaultConfig returns a default configuration
func DefaultConfig() *Config {
	return &Config{
		Bind:   "127.0.0.1",
		Port:   8080,
		Compat: CompatStrict,
		Database: Database{
			MaxOpenConns:    10,
			MaxIdleConns:    2,
			ConnMaxLifetime: Duration(30 * time.Minute),
		},
		Server: Server{
			MaxConnections: 64,
			BufferSize:     1024,
		},
		Metrics: Metrics{
			AllowedOrigins: []string{"*"},
		},
		Logging: Logging{
			Level:  "info",
			Format: "console",
		},
	}
}

// Addr returns the listening address.
func (c *Config) Addr() string {
	return joinHostPort(c.Bind, c.Port)
}

// Legacy reports whether the service reproduces the legacy routing and
// status mapping.
func (c *Config) Legacy() bool {
	return c.Compat == CompatLegacy
}

// Validate checks the configuration is usable for serving.
func (c *Config) Validate() error {
	if c.Database.URL == "" {
		return ErrMissingDatabaseURL
	}
	if c.Port < 0 || c.Port > 65535 {
		return errors.Errorf("invalid port %d", c.Port)
	}
	if c.Compat != CompatStrict && c.Compat != CompatLegacy {
		return errors.Errorf("invalid compat mode %q (want %s or %s)", c.Compat, CompatStrict, CompatLegacy)
	}
	if c.Server.MaxConnections < 1 {
		return errors.Errorf("server.max_connections must be at least 1, got %d", c.Server.MaxConnections)
	}
	if c.Server.BufferSize < 1 {
		return errors.Errorf("server.buffer_size must be at least 1, got %d", c.Server.BufferSize)
	}
	return nil
}

// LoadConfig loads configuration from the specified path on top of the
// defaults. Files ending in .toml are parsed as TOML, anything else as YAML.
func LoadConfig(configPath string) (*Config, error) {
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return nil, errors.Errorf("config file does not exist: %s", configPath)
	}

	if !filepath.IsAbs(configPath) {
		absPath, err := filepath.Abs(configPath)
		if err != nil {
			return nil, errors.Wrap(err, "invalid config path")
		}
		configPath = absPath
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read config file")
	}

	config := DefaultConfig()
	if isTOML(configPath) {
		err = toml.Unmarshal(data, config)
	} else {
		err = yaml.Unmarshal(data, config)
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to parse config file")
	}

	return config, nil
}

// SaveConfig saves the configuration to the specified path with secure permissions
func SaveConfig(config *Config, configPath string) error {
	configDir := filepath.Dir(configPath)
	if err := os.MkdirAll(configDir, 0750); err != nil {
		return errors.Wrap(err, "failed to create config directory")
	}

	var (
		data []byte
		err  error
	)
	if isTOML(configPath) {
		data, err = toml.Marshal(config)
	} else {
		data, err = yaml.Marshal(config)
	}
	if err != nil {
		return errors.Wrap(err, "failed to marshal config")
	}

	// The database URL may carry credentials.
	if err := os.WriteFile(configPath, data, 0600); err != nil {
		return errors.Wrap(err, "failed to write config file")
	}

	return nil
}

// GetDefaultConfigPath returns the default configuration path for the current platform
func GetDefaultConfigPath() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "./usersvc.yaml"
	}
	return filepath.Join(homeDir, ".config", "usersvc", "config.yaml")
}

// ConfigExists checks if a configuration file exists
func ConfigExists(configPath string) bool {
	_, err := os.Stat(configPath)
	return !os.IsNotExist(err)
}

func isTOML(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".toml")
}
