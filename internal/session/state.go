package session

import (
	"time"

	"github.com/srg/picoflash/internal/codec"
)

// Kind is the top-level session state
type Kind int

const (
	Idle Kind = iota
	Scanning
	Connecting
	Connected
	Disconnecting
	Failed
)

var kindNames = [...]string{
	Idle:          "idle",
	Scanning:      "scanning",
	Connecting:    "connecting",
	Connected:     "connected",
	Disconnecting: "disconnecting",
	Failed:        "failed",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "unknown"
}

// KindNames lists every state name, in declaration order
func KindNames() []string {
	return append([]string(nil), kindNames[:]...)
}

// Snapshot is a point-in-time copy of the session.
// Scanning is also reported as an attribute so a scan running alongside a
// connection stays visible while Kind is Connecting or Connected.
type Snapshot struct {
	Kind      Kind
	DeviceID  string
	SessionID string
	Scanning  bool
	Streaming bool
	State     *codec.TelemetryState // nil until the first frame is decoded
	Err       error                 // failure reason while Kind == Failed
}

// Event records a transition, published on Session.Events
type Event struct {
	Kind      Kind
	DeviceID  string
	Scanning  bool
	Streaming bool
	Err       error
	At        time.Time
}
