package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"unicode"

	"github.com/spf13/cobra"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// formatVersion adds 'v' prefix if version starts with a digit
func formatVersion(ver string) string {
	if len(ver) > 0 && unicode.IsDigit(rune(ver[0])) {
		return "v" + ver
	}
	return ver
}

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "picoflash",
	Short: "Control a Pico W flasher over Bluetooth Low Energy",
	Long: `Discover, connect to and drive a Pico W "flasher" peripheral over BLE:

- Scan for nearby peripherals
- Watch the decoded telemetry stream (on/off, flash index, pattern)
- Toggle the flasher or send raw command bytes
- Decode captured telemetry frames offline

The last connected device can be remembered so later commands need no address.
Use --simulate to run against an in-process emulation of the firmware.`,
	Version: formatVersion(version) + " (" + commit + ", " + date + ")",
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		// Ctrl+C is a normal exit, not an error - exit silently
		if errors.Is(err, context.Canceled) {
			return
		}
		fmt.Fprintf(os.Stderr, "ERROR: %s\n", FormatUserError(err))
		os.Exit(1)
	}
}

func init() {
	// Silence Cobra's "Error:" prefix - main() prints clean errors
	rootCmd.SilenceErrors = true

	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(toggleCmd)
	rootCmd.AddCommand(sendCmd)
	rootCmd.AddCommand(decodeCmd)
	rootCmd.AddCommand(forgetCmd)

	// Global flags
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default <user config dir>/picoflash/config.yaml)")
	rootCmd.PersistentFlags().String("log-level", "", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVar(&simulate, "simulate", false, "Use an in-process simulated peripheral instead of the radio")

	// Add -v as a short flag for --version
	rootCmd.Flags().BoolP("version", "v", false, "Show version information")
}
