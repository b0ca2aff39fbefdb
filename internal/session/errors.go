package session

import (
	"errors"
	"fmt"

	"github.com/srg/picoflash/internal/device"
)

// Error kinds carried by *OpError. Transport-level sentinels are re-exported so
// callers only need this package for errors.Is checks.
var (
	ErrPermissionDenied     = device.ErrPermissionDenied
	ErrTransportUnavailable = device.ErrTransportUnavailable
	ErrNotConnected         = device.ErrNotConnected

	ErrConnectFailed     = errors.New("connect failed")
	ErrEnumerationFailed = errors.New("enumeration failed")
	ErrSubscribeFailed   = errors.New("subscribe failed")
	ErrWriteFailed       = errors.New("write failed")
	ErrDisconnectFailed  = errors.New("disconnect failed")
	ErrAlreadyStreaming  = errors.New("already streaming")
	ErrConnectInProgress = errors.New("connect already in progress")
	ErrConnectCancelled  = errors.New("connect cancelled")
	ErrNotScanning       = errors.New("not scanning")
)

// Operation names used in OpError.Op and log fields
const (
	OpScan       = "scan"
	OpStopScan   = "stop-scan"
	OpConnect    = "connect"
	OpDisconnect = "disconnect"
	OpStream     = "stream"
	OpSend       = "send"
)

// OpError is returned by every failing session operation.
// errors.Is matches Kind; errors.Unwrap yields the transport cause.
type OpError struct {
	Op       string
	Kind     error
	DeviceID string
	Err      error
}

func (e *OpError) Error() string {
	msg := e.Op
	if e.DeviceID != "" {
		msg += " " + e.DeviceID
	}
	if e.Kind != nil {
		msg += ": " + e.Kind.Error()
	}
	if e.Err != nil && e.Err != e.Kind {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *OpError) Is(target error) bool {
	return e.Kind != nil && errors.Is(e.Kind, target)
}

func (e *OpError) Unwrap() error {
	return e.Err
}
