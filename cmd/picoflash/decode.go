package main

import (
	"strings"

	"github.com/spf13/cobra"
	"github.com/srg/picoflash/internal/codec"
	"github.com/srg/picoflash/pkg/config"
)

var decodeFormat string

var decodeCmd = &cobra.Command{
	Use:   "decode <hex>...",
	Short: "Decode a captured telemetry frame",
	Long: `Decode a telemetry frame without connecting to anything.

All arguments are joined, so a frame can be pasted byte by byte:
  picoflash decode 01 00 02 e8 03 fa 00
  picoflash decode --format json 0100020a001400`,
	Args: cobra.MinimumNArgs(1),
	RunE: runDecode,
}

func init() {
	decodeCmd.Flags().StringVarP(&decodeFormat, "format", "f", config.DefaultConfig().OutputFormat, "Output format: table or json")
}

func runDecode(cmd *cobra.Command, args []string) error {
	if err := validateFormat(decodeFormat); err != nil {
		return err
	}

	data, err := parseHex(strings.Join(args, ""))
	if err != nil {
		return err
	}

	st, err := codec.Decode(data)
	if err != nil {
		return err
	}
	return writeState(cmd.OutOrStdout(), decodeFormat, st)
}
