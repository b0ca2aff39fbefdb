package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, "6e400001-b5a3-f393-e0a9-e50e24dcca9e", cfg.Peripheral.Service)
	assert.Equal(t, "6e400002-b5a3-f393-e0a9-e50e24dcca9e", cfg.Peripheral.TX)
	assert.Equal(t, "6e400003-b5a3-f393-e0a9-e50e24dcca9e", cfg.Peripheral.RX)
	assert.Equal(t, 185, cfg.Peripheral.MTU)
	assert.Equal(t, 250*time.Millisecond, cfg.Simulator.Interval)
	assert.Equal(t, 10*time.Second, cfg.ScanTimeout)
	assert.Equal(t, 30*time.Second, cfg.ConnectTimeout)
	assert.Equal(t, "table", cfg.OutputFormat)
	assert.Empty(t, cfg.LogLevel)
	assert.NoError(t, cfg.Validate())
}

func TestLoadMissingFile(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestLoadOverridesDefaults(t *testing.T) {
	// GOAL: Verify YAML values override defaults while unspecified fields keep them
	//
	// TEST SCENARIO: File sets rx, connect timeout and format → those change, the rest stays default

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
peripheral:
  rx: 6e400013-b5a3-f393-e0a9-e50e24dcca9e
connect_timeout: 5s
output_format: json
log_level: debug
`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "6e400013-b5a3-f393-e0a9-e50e24dcca9e", cfg.Peripheral.RX)
	assert.Equal(t, "6e400001-b5a3-f393-e0a9-e50e24dcca9e", cfg.Peripheral.Service)
	assert.Equal(t, 5*time.Second, cfg.ConnectTimeout)
	assert.Equal(t, 10*time.Second, cfg.ScanTimeout)
	assert.Equal(t, "json", cfg.OutputFormat)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestLoadRejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"bad uuid", "peripheral:\n  tx: not-a-uuid\n"},
		{"bad format", "output_format: csv\n"},
		{"bad level", "log_level: trace\n"},
		{"zero timeout", "scan_timeout: 0s\n"},
		{"negative mtu", "peripheral:\n  mtu: -1\n"},
		{"not yaml", "peripheral: [\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.yaml")
			require.NoError(t, os.WriteFile(path, []byte(tt.yaml), 0o600))

			_, err := Load(path)
			assert.Error(t, err)
		})
	}
}

func TestParseLogLevel(t *testing.T) {
	for s, want := range map[string]logrus.Level{
		"debug": logrus.DebugLevel,
		"info":  logrus.InfoLevel,
		"warn":  logrus.WarnLevel,
		"error": logrus.ErrorLevel,
	} {
		got, err := ParseLogLevel(s)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}

	_, err := ParseLogLevel("verbose")
	assert.ErrorContains(t, err, "invalid log level")
}

func TestNewLogger(t *testing.T) {
	logger := NewLogger(logrus.WarnLevel)

	assert.Equal(t, logrus.WarnLevel, logger.GetLevel())
	formatter, ok := logger.Formatter.(*logrus.TextFormatter)
	require.True(t, ok)
	assert.True(t, formatter.FullTimestamp)
	assert.Equal(t, time.RFC3339, formatter.TimestampFormat)
}

func TestDefaultPath(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/tmp/xdg")
	t.Setenv("HOME", "/tmp/home")
	assert.Contains(t, DefaultPath(), filepath.Join(AppName, "config.yaml"))
}
