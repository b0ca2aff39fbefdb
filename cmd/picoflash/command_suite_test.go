package main

import (
	"bytes"
	"os"
	"path/filepath"
	"time"

	"github.com/fatih/color"
	"github.com/srg/picoflash/internal/store"
	"github.com/stretchr/testify/suite"
)

// SimulatedDeviceAddress is the address the --simulate peripheral advertises
const SimulatedDeviceAddress = "5A:17:00:00:00:01"

// CommandTestSuite runs commands against the simulated peripheral with an isolated config directory.
// All cmd/picoflash test suites embed it.
type CommandTestSuite struct {
	suite.Suite
	dir           string
	originalColor bool
}

func (s *CommandTestSuite) SetupSuite() {
	s.originalColor = color.NoColor
	color.NoColor = true
}

func (s *CommandTestSuite) TearDownSuite() {
	color.NoColor = s.originalColor
}

// SetupTest resets every flag variable and points --config at a fresh temp dir
func (s *CommandTestSuite) SetupTest() {
	s.dir = s.T().TempDir()
	cfg := []byte("simulator:\n  interval: 20ms\nconnect_timeout: 5s\n")
	s.Require().NoError(os.WriteFile(s.ConfigPath(), cfg, 0o600))

	configPath = ""
	simulate = false
	scanDuration, scanFormat = 0, ""
	watchRemember, watchMetricsAddr, watchDuration, watchFormat = false, "", 0, ""
	decodeFormat = formatTable
	s.Require().NoError(rootCmd.PersistentFlags().Set("log-level", ""))
}

// ConfigPath is the config file written for the current test
func (s *CommandTestSuite) ConfigPath() string {
	return filepath.Join(s.dir, "config.yaml")
}

// Store opens the device store the commands of the current test use
func (s *CommandTestSuite) Store() *store.Store {
	return store.New(filepath.Join(s.dir, "state.yaml"))
}

// ExecuteCommand runs the root command with args, returns combined output and error.
func (s *CommandTestSuite) ExecuteCommand(args ...string) (string, error) {
	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs(args)
	defer func() {
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
	}()
	err := rootCmd.Execute()
	return buf.String(), err
}

// ExecuteSimulated runs a command with --simulate and the test config
func (s *CommandTestSuite) ExecuteSimulated(args ...string) (string, error) {
	return s.ExecuteCommand(append([]string{"--simulate", "--config", s.ConfigPath()}, args...)...)
}

// waitTimeout bounds commands that stream
const waitTimeout = 300 * time.Millisecond
