package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/srg/picoflash/internal/session"
)

// Command-level errors
var (
	// ErrNoDeviceID indicates no address was given and none is remembered
	ErrNoDeviceID = errors.New("no device address given and none remembered")
)

// FormatUserError turns an error chain into a message for the terminal
func FormatUserError(err error) string {
	switch {
	case errors.Is(err, session.ErrPermissionDenied):
		return fmt.Sprintf("Bluetooth access denied (%v). Grant this terminal Bluetooth permission and retry", err)
	case errors.Is(err, session.ErrTransportUnavailable):
		return fmt.Sprintf("Bluetooth is unavailable (%v). Check that the adapter is present and powered on", err)
	case errors.Is(err, ErrNoDeviceID):
		return "no device address given and none remembered: pass an address or run 'picoflash watch <address> --remember'"
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Sprintf("timed out: %v", err)
	default:
		return err.Error()
	}
}
