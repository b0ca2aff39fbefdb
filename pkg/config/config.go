// Package config loads picoflash settings from YAML. Every field has a struct-tag
// default, so a missing file or a partial file is valid.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/mcuadros/go-defaults"
	"github.com/sirupsen/logrus"
	"github.com/srg/picoflash/internal/device"
	"gopkg.in/yaml.v3"
)

// AppName names the config directory and the metrics namespace
const AppName = "picoflash"

// Peripheral holds the GATT identifiers of the flasher service
type Peripheral struct {
	Service string `yaml:"service" default:"6e400001-b5a3-f393-e0a9-e50e24dcca9e"`
	TX      string `yaml:"tx" default:"6e400002-b5a3-f393-e0a9-e50e24dcca9e"`
	RX      string `yaml:"rx" default:"6e400003-b5a3-f393-e0a9-e50e24dcca9e"`
	MTU     int    `yaml:"mtu" default:"185"`
}

// Simulator configures the in-process peripheral used by --simulate
type Simulator struct {
	Interval time.Duration `yaml:"interval" default:"250ms"`
}

// Config holds application configuration
type Config struct {
	Peripheral     Peripheral    `yaml:"peripheral"`
	Simulator      Simulator     `yaml:"simulator"`
	LogLevel       string        `yaml:"log_level"`
	ScanTimeout    time.Duration `yaml:"scan_timeout" default:"10s"`
	ConnectTimeout time.Duration `yaml:"connect_timeout" default:"30s"`
	OutputFormat   string        `yaml:"output_format" default:"table"`
	StatePath      string        `yaml:"state_path"`
	MetricsAddr    string        `yaml:"metrics_addr"`
}

// DefaultConfig returns default configuration values
func DefaultConfig() *Config {
	cfg := &Config{}
	defaults.SetDefaults(cfg)
	return cfg
}

// DefaultPath is <user config dir>/picoflash/config.yaml
func DefaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		dir = "."
	}
	return filepath.Join(dir, AppName, "config.yaml")
}

// Load reads path over the defaults. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		return cfg, nil
	case err != nil:
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks identifiers, timeouts and enumerations
func (c *Config) Validate() error {
	if _, err := device.ValidateUUID(c.Peripheral.Service, c.Peripheral.TX, c.Peripheral.RX); err != nil {
		return fmt.Errorf("peripheral: %w", err)
	}
	if c.Peripheral.MTU < 0 {
		return fmt.Errorf("peripheral.mtu must not be negative")
	}
	if c.ScanTimeout <= 0 || c.ConnectTimeout <= 0 {
		return fmt.Errorf("scan_timeout and connect_timeout must be positive")
	}
	switch c.OutputFormat {
	case "table", "json":
	default:
		return fmt.Errorf("output_format must be table or json, got %q", c.OutputFormat)
	}
	if c.LogLevel != "" {
		if _, err := ParseLogLevel(c.LogLevel); err != nil {
			return err
		}
	}
	return nil
}

// ParseLogLevel accepts debug, info, warn and error
func ParseLogLevel(s string) (logrus.Level, error) {
	switch s {
	case "debug":
		return logrus.DebugLevel, nil
	case "info":
		return logrus.InfoLevel, nil
	case "warn":
		return logrus.WarnLevel, nil
	case "error":
		return logrus.ErrorLevel, nil
	default:
		return logrus.PanicLevel, fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", s)
	}
}

// NewLogger creates a logger writing RFC3339-stamped text at level
func NewLogger(level logrus.Level) *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(level)
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: time.RFC3339,
	})
	return logger
}
