package main

import (
	"context"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/srg/picoflash/internal/codec"
)

var toggleCmd = &cobra.Command{
	Use:   "toggle [address]",
	Short: "Toggle the flasher on or off",
	Long: `Connect to the flasher and send the toggle command.

Without an address the remembered device is used.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return sendCommand(cmd, args, codec.ToggleCommand)
	},
}

var sendCmd = &cobra.Command{
	Use:   "send [address] <hex>",
	Short: "Send raw command bytes to the flasher",
	Long: `Connect to the flasher and write raw bytes to its command characteristic.

Data is hex and may contain spaces, colons, dashes or 0x prefixes:
  picoflash send 01
  picoflash send AA:BB:CC:DD:EE:FF "0x01 0x02"

With a single argument the remembered device is used.`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runSend,
}

func runSend(cmd *cobra.Command, args []string) error {
	target, payload := args[:0], args[0]
	if len(args) == 2 {
		target, payload = args[:1], args[1]
	}

	data, err := parseHex(payload)
	if err != nil {
		return err
	}
	return sendCommand(cmd, target, data)
}

func sendCommand(cmd *cobra.Command, args []string, data []byte) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}

	id, err := a.resolveDeviceID(args)
	if err != nil {
		return err
	}

	ctx, stop := interruptContext(cmd.Context())
	defer stop()

	sess, err := a.connect(ctx, id)
	if err != nil {
		return err
	}
	defer func() { _ = sess.Close(context.Background()) }()

	if err := sess.Send(ctx, data); err != nil {
		return err
	}

	fmt.Fprintf(a.out, "Sent %d byte(s) to %s\n", len(data), id)
	return nil
}

// parseHex parses hex input, tolerating common separators and 0x prefixes
func parseHex(input string) ([]byte, error) {
	cleaned := strings.ToLower(input)
	for _, sep := range []string{"0x", " ", "\t", ":", "-", ","} {
		cleaned = strings.ReplaceAll(cleaned, sep, "")
	}
	if cleaned == "" {
		return nil, fmt.Errorf("no data to parse")
	}

	data, err := hex.DecodeString(cleaned)
	if err != nil {
		return nil, fmt.Errorf("invalid hex data %q: %w", input, err)
	}
	return data, nil
}
