package goble

import (
	"fmt"
	"strings"

	"github.com/srg/picoflash/internal/device"
)

// NormalizeError maps known go-ble error messages onto the device sentinels.
// The original error stays wrapped.
func NormalizeError(err error) error {
	if err == nil {
		return nil
	}

	msg := strings.ToLower(err.Error())
	switch {
	// CoreBluetooth manager states: 3 unauthorized, 4 powered off
	case strings.Contains(msg, "invalid state: have=3"),
		strings.Contains(msg, "unauthorized"),
		strings.Contains(msg, "operation not permitted"),
		strings.Contains(msg, "permission denied"):
		return fmt.Errorf("%w: %v", device.ErrPermissionDenied, err)
	case strings.Contains(msg, "invalid state: have=4"),
		strings.Contains(msg, "bluetooth is turned off"),
		strings.Contains(msg, "unsupported"),
		strings.Contains(msg, "no such device"),
		strings.Contains(msg, "can't init hci"):
		return fmt.Errorf("%w: %v", device.ErrTransportUnavailable, err)
	case strings.Contains(msg, "already connected"):
		return fmt.Errorf("%w: %v", device.ErrAlreadyConnected, err)
	case strings.Contains(msg, "not connected"),
		strings.Contains(msg, "disconnected"):
		return fmt.Errorf("%w: %v", device.ErrNotConnected, err)
	default:
		return err
	}
}
