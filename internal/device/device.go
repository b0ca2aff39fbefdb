package device

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// NotFoundError represents an error when a GATT resource is not found on the peripheral
type NotFoundError struct {
	Resource string   // "service", "characteristic"
	UUIDs    []string // One or more UUIDs (e.g., [serviceUUID] or [serviceUUID, charUUID])
}

func (e *NotFoundError) Error() string {
	if len(e.UUIDs) == 0 {
		return fmt.Sprintf("%s not found", e.Resource)
	}
	if len(e.UUIDs) == 1 {
		return fmt.Sprintf("%s %q not found", e.Resource, e.UUIDs[0])
	}
	return fmt.Sprintf("%s %q not found in service %q", e.Resource, e.UUIDs[len(e.UUIDs)-1], e.UUIDs[0])
}

// ConnectionState represents the specific kind of connection state failure
type ConnectionState string

const (
	NotConnected     ConnectionState = "not_connected"
	AlreadyConnected ConnectionState = "already_connected"
)

// ConnectionError represents any connection-related problem
type ConnectionError struct {
	State ConnectionState
	Msg   string
}

// Error implements the error interface
func (e *ConnectionError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Msg == "" {
		return string(e.State)
	}
	return fmt.Sprintf("%s: %s", e.State, e.Msg)
}

// Is allows errors.Is to compare ConnectionError values by State
func (e *ConnectionError) Is(target error) bool {
	if e == nil {
		return false
	}
	t, ok := target.(*ConnectionError)
	if !ok {
		return false
	}
	return e.State == t.State
}

// Predefined sentinel errors for connection states
var (
	ErrNotConnected     = &ConnectionError{State: NotConnected}
	ErrAlreadyConnected = &ConnectionError{State: AlreadyConnected}
)

// Transport availability errors
var (
	ErrPermissionDenied     = errors.New("bluetooth permission denied")
	ErrTransportUnavailable = errors.New("bluetooth transport unavailable")
)

// Peripheral is a device seen during discovery.
type Peripheral struct {
	ID          string `json:"id"`
	Name        string `json:"name,omitempty"`
	RSSI        int    `json:"rssi"`
	Connectable bool   `json:"connectable"`
}

// DisplayName returns the advertised name, or a placeholder when the peripheral did not advertise one.
func (p Peripheral) DisplayName() string {
	if strings.TrimSpace(p.Name) == "" {
		return "No name"
	}
	return p.Name
}

// Handle identifies a live connection owned by a Transport.
type Handle interface {
	ID() string
}

// Subscription is an active notification registration.
type Subscription interface {
	Unsubscribe() error
}

// Channels are the resolved identifiers of the peripheral's logical channel pair.
type Channels struct {
	Service string // GATT service UUID
	TX      string // write characteristic (central -> peripheral)
	RX      string // notify characteristic (peripheral -> central)
}

// DiscoveryHandler receives every advertisement seen while discovering.
// connected reports that the transport already holds a live link to the peripheral.
type DiscoveryHandler func(p Peripheral, connected bool)

// NotificationHandler receives raw notification payloads. The slice is only valid for the duration of the call.
type NotificationHandler func(data []byte)

// Transport is the radio stack boundary. Implementations own the wire representation but no protocol knowledge.
type Transport interface {
	// RequestPermissions reports whether the process may use the radio.
	RequestPermissions(ctx context.Context) (bool, error)

	// Discover starts an asynchronous scan. handler is invoked for every advertisement until StopDiscover.
	Discover(ctx context.Context, handler DiscoveryHandler) error
	StopDiscover() error

	Connect(ctx context.Context, id string) (Handle, error)
	Enumerate(ctx context.Context, h Handle) (Channels, error)
	Subscribe(ctx context.Context, h Handle, service, rx string, handler NotificationHandler) (Subscription, error)
	Write(ctx context.Context, h Handle, service, tx string, data []byte) error
	Cancel(ctx context.Context, h Handle) error

	// MaxWriteSize is the largest payload accepted by Write for h; 0 means unbounded.
	MaxWriteSize(h Handle) int
}
