// Package mocks provides testify mocks for the device.Transport boundary.
package mocks

import (
	"context"
	"sync"

	"github.com/srg/picoflash/internal/device"
	"github.com/stretchr/testify/mock"
)

// Handle is a device.Handle identified by a plain string
type Handle string

func (h Handle) ID() string { return string(h) }

// Subscription records Unsubscribe calls
type Subscription struct {
	mock.Mock
}

func (s *Subscription) Unsubscribe() error {
	args := s.Called()
	return args.Error(0)
}

// Transport is a testify mock of device.Transport. Handlers passed to Discover and
// Subscribe are captured so tests can drive discovery and notifications.
type Transport struct {
	mock.Mock

	mu            sync.Mutex
	discover      device.DiscoveryHandler
	notifications []device.NotificationHandler
}

var _ device.Transport = (*Transport)(nil)

func (m *Transport) RequestPermissions(ctx context.Context) (bool, error) {
	args := m.Called(ctx)
	return args.Bool(0), args.Error(1)
}

func (m *Transport) Discover(ctx context.Context, handler device.DiscoveryHandler) error {
	args := m.Called(ctx, handler)
	if err := args.Error(0); err != nil {
		return err
	}
	m.mu.Lock()
	m.discover = handler
	m.mu.Unlock()
	return nil
}

func (m *Transport) StopDiscover() error {
	args := m.Called()
	return args.Error(0)
}

func (m *Transport) Connect(ctx context.Context, id string) (device.Handle, error) {
	args := m.Called(ctx, id)
	h, _ := args.Get(0).(device.Handle)
	return h, args.Error(1)
}

func (m *Transport) Enumerate(ctx context.Context, h device.Handle) (device.Channels, error) {
	args := m.Called(ctx, h)
	ch, _ := args.Get(0).(device.Channels)
	return ch, args.Error(1)
}

func (m *Transport) Subscribe(ctx context.Context, h device.Handle, service, rx string, handler device.NotificationHandler) (device.Subscription, error) {
	args := m.Called(ctx, h, service, rx, handler)
	if err := args.Error(1); err != nil {
		return nil, err
	}
	m.mu.Lock()
	m.notifications = append(m.notifications, handler)
	m.mu.Unlock()
	sub, _ := args.Get(0).(device.Subscription)
	return sub, nil
}

func (m *Transport) Write(ctx context.Context, h device.Handle, service, tx string, data []byte) error {
	args := m.Called(ctx, h, service, tx, data)
	return args.Error(0)
}

func (m *Transport) Cancel(ctx context.Context, h device.Handle) error {
	args := m.Called(ctx, h)
	return args.Error(0)
}

func (m *Transport) MaxWriteSize(h device.Handle) int {
	args := m.Called(h)
	return args.Int(0)
}

// Discovered invokes the handler registered by the last Discover call
func (m *Transport) Discovered(p device.Peripheral, connected bool) {
	m.mu.Lock()
	handler := m.discover
	m.mu.Unlock()
	if handler != nil {
		handler(p, connected)
	}
}

// Notify delivers data to every handler registered through Subscribe
func (m *Transport) Notify(data []byte) {
	m.mu.Lock()
	handlers := append([]device.NotificationHandler(nil), m.notifications...)
	m.mu.Unlock()
	for _, h := range handlers {
		h(data)
	}
}

// SubscriberCount returns how many notification handlers were registered
func (m *Transport) SubscriberCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.notifications)
}
