package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/fatih/color"
	"github.com/srg/picoflash/internal/codec"
	"github.com/srg/picoflash/internal/device"
)

const (
	formatTable = "table"
	formatJSON  = "json"
)

var (
	onColor  = color.New(color.FgGreen, color.Bold)
	offColor = color.New(color.FgRed, color.Bold)
)

func validateFormat(format string) error {
	switch format {
	case formatTable, formatJSON:
		return nil
	default:
		return fmt.Errorf("unsupported format: %s (must be %s or %s)", format, formatTable, formatJSON)
	}
}

// formatState renders one telemetry state as a single line
func formatState(st codec.TelemetryState) string {
	onOff := offColor.Sprint("OFF")
	if st.Active {
		onOff = onColor.Sprint("ON")
	}
	return fmt.Sprintf("%s index=%d pattern=%s", onOff, st.FlashIndex, formatPattern(st.Pattern))
}

func formatPattern(pattern []uint16) string {
	parts := make([]string, len(pattern))
	for i, d := range pattern {
		parts[i] = fmt.Sprintf("%dms", d)
	}
	return "[" + strings.Join(parts, " ") + "]"
}

func writeJSON(out io.Writer, v any) error {
	encoder := json.NewEncoder(out)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}

func writeState(out io.Writer, format string, st codec.TelemetryState) error {
	if format == formatJSON {
		return writeJSON(out, st)
	}
	_, err := fmt.Fprintln(out, formatState(st))
	return err
}

// writePeripherals prints discovered peripherals in first-seen order
func writePeripherals(out io.Writer, format string, peripherals []device.Peripheral) error {
	if format == formatJSON {
		if peripherals == nil {
			peripherals = []device.Peripheral{}
		}
		return writeJSON(out, peripherals)
	}

	if len(peripherals) == 0 {
		_, err := fmt.Fprintln(out, "No devices found")
		return err
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ADDRESS\tNAME\tRSSI\tCONNECTABLE")
	fmt.Fprintln(w, "-------\t----\t----\t-----------")
	for _, p := range peripherals {
		connectable := "no"
		if p.Connectable {
			connectable = "yes"
		}
		fmt.Fprintf(w, "%s\t%s\t%d dBm\t%s\n", p.ID, p.DisplayName(), p.RSSI, connectable)
	}
	return w.Flush()
}
