package goble

import (
	"errors"
	"testing"

	"github.com/srg/picoflash/internal/device"
	"github.com/stretchr/testify/assert"
)

func TestNormalizeError(t *testing.T) {
	tests := []struct {
		msg  string
		want error
	}{
		{"central manager has invalid state: have=4 want=5: is Bluetooth turned on?", device.ErrTransportUnavailable},
		{"central manager has invalid state: have=3 want=5", device.ErrPermissionDenied},
		{"can't init hci: operation not permitted", device.ErrPermissionDenied},
		{"can't init hci: no such device", device.ErrTransportUnavailable},
		{"device not connected", device.ErrNotConnected},
		{"disconnected", device.ErrNotConnected},
		{"device already connected", device.ErrAlreadyConnected},
	}

	for _, tt := range tests {
		t.Run(tt.msg, func(t *testing.T) {
			cause := errors.New(tt.msg)
			err := NormalizeError(cause)
			assert.ErrorIs(t, err, tt.want)
			assert.ErrorContains(t, err, tt.msg, "the original message MUST be preserved")
		})
	}
}

func TestNormalizeErrorPassthrough(t *testing.T) {
	assert.NoError(t, NormalizeError(nil))

	cause := errors.New("att: insufficient authentication")
	assert.Same(t, cause, NormalizeError(cause))
}
