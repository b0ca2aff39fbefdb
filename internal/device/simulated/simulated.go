// Package simulated provides an in-process device.Transport that behaves like the
// flasher firmware: it advertises one peripheral, streams its state as telemetry
// frames and toggles the active flag on every write.
package simulated

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/srg/picoflash/internal/codec"
	"github.com/srg/picoflash/internal/device"
	"github.com/srg/picoflash/internal/groutine"
)

// Config describes the emulated peripheral
type Config struct {
	ID       string
	Name     string
	RSSI     int
	Interval time.Duration // frame and advertisement period
	Pattern  []uint16
	MaxWrite int

	Service string
	TX      string
	RX      string
}

// DefaultConfig mirrors the firmware's power-on state
func DefaultConfig() Config {
	return Config{
		ID:       "5A:17:00:00:00:01",
		Name:     "Ney Tack",
		RSSI:     -42,
		Interval: 250 * time.Millisecond,
		Pattern:  []uint16{1000, 1000, 250, 250},
		MaxWrite: 20,
		Service:  "6e400001-b5a3-f393-e0a9-e50e24dcca9e",
		TX:       "6e400002-b5a3-f393-e0a9-e50e24dcca9e",
		RX:       "6e400003-b5a3-f393-e0a9-e50e24dcca9e",
	}
}

type handle struct {
	id     string
	serial uint64
}

func (h *handle) ID() string { return fmt.Sprintf("%s#%d", h.id, h.serial) }

type subscription struct {
	cancel context.CancelFunc
}

// Unsubscribe stops the notifier without waiting: a handler may be the caller.
func (s *subscription) Unsubscribe() error {
	s.cancel()
	return nil
}

// Transport is the simulated radio
type Transport struct {
	cfg    Config
	logger *logrus.Logger

	mu           sync.Mutex
	state        codec.TelemetryState
	live         *handle
	serial       uint64
	stopDiscover context.CancelFunc
	subs         []*subscription
}

var _ device.Transport = (*Transport)(nil)

// New creates a simulated transport. A nil logger gets a default one.
func New(cfg Config, logger *logrus.Logger) *Transport {
	if logger == nil {
		logger = logrus.New()
	}
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultConfig().Interval
	}
	return &Transport{
		cfg:    cfg,
		logger: logger,
		state:  codec.TelemetryState{Pattern: append([]uint16{}, cfg.Pattern...)},
	}
}

// State returns the emulated firmware state
func (t *Transport) State() codec.TelemetryState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state.Clone()
}

func (t *Transport) RequestPermissions(context.Context) (bool, error) {
	return true, nil
}

func (t *Transport) Discover(ctx context.Context, handler device.DiscoveryHandler) error {
	t.mu.Lock()
	if t.stopDiscover != nil {
		t.mu.Unlock()
		return fmt.Errorf("discovery already running")
	}
	scanCtx, cancel := context.WithCancel(ctx)
	t.stopDiscover = cancel
	t.mu.Unlock()

	p := device.Peripheral{ID: t.cfg.ID, Name: t.cfg.Name, RSSI: t.cfg.RSSI, Connectable: true}
	groutine.Go(scanCtx, "simulated-advertiser", func(ctx context.Context) {
		ticker := time.NewTicker(t.cfg.Interval)
		defer ticker.Stop()
		for {
			t.mu.Lock()
			connected := t.live != nil
			t.mu.Unlock()
			handler(p, connected)

			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
		}
	})
	return nil
}

func (t *Transport) StopDiscover() error {
	t.mu.Lock()
	cancel := t.stopDiscover
	t.stopDiscover = nil
	t.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	return nil
}

func (t *Transport) Connect(ctx context.Context, id string) (device.Handle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if id != t.cfg.ID {
		return nil, fmt.Errorf("peripheral %q is not advertising", id)
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.live != nil {
		return t.live, nil
	}
	t.serial++
	t.live = &handle{id: id, serial: t.serial}
	t.logger.WithField("handle", t.live.ID()).Debug("Simulated peripheral connected")
	return t.live, nil
}

func (t *Transport) Enumerate(_ context.Context, h device.Handle) (device.Channels, error) {
	if err := t.check(h); err != nil {
		return device.Channels{}, err
	}
	return device.Channels{Service: t.cfg.Service, TX: t.cfg.TX, RX: t.cfg.RX}, nil
}

func (t *Transport) Subscribe(ctx context.Context, h device.Handle, service, rx string, handler device.NotificationHandler) (device.Subscription, error) {
	if err := t.check(h); err != nil {
		return nil, err
	}
	if !device.SameUUID(service, t.cfg.Service) || !device.SameUUID(rx, t.cfg.RX) {
		return nil, &device.NotFoundError{Resource: "characteristic", UUIDs: []string{service, rx}}
	}

	subCtx, cancel := context.WithCancel(context.Background())
	groutine.Go(subCtx, "simulated-notifier", func(ctx context.Context) {
		ticker := time.NewTicker(t.cfg.Interval)
		defer ticker.Stop()
		for {
			frame, err := codec.Marshal(t.tick())
			if err != nil {
				t.logger.WithError(err).Error("Simulated frame cannot be encoded")
				return
			}
			handler(frame)

			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
		}
	})

	sub := &subscription{cancel: cancel}
	t.mu.Lock()
	t.subs = append(t.subs, sub)
	t.mu.Unlock()
	return sub, nil
}

// tick advances the flasher one step and returns the resulting state
func (t *Transport) tick() codec.TelemetryState {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.state.Active && len(t.state.Pattern) > 0 {
		t.state.FlashIndex = uint8((int(t.state.FlashIndex) + 1) % len(t.state.Pattern))
	} else {
		t.state.FlashIndex = 0
	}
	return t.state.Clone()
}

func (t *Transport) Write(_ context.Context, h device.Handle, service, tx string, data []byte) error {
	if err := t.check(h); err != nil {
		return err
	}
	if !device.SameUUID(service, t.cfg.Service) || !device.SameUUID(tx, t.cfg.TX) {
		return &device.NotFoundError{Resource: "characteristic", UUIDs: []string{service, tx}}
	}
	if t.cfg.MaxWrite > 0 && len(data) > t.cfg.MaxWrite {
		return fmt.Errorf("write of %d bytes exceeds MTU payload %d", len(data), t.cfg.MaxWrite)
	}

	// The firmware toggles on any packet, whatever its content
	t.mu.Lock()
	t.state.Active = !t.state.Active
	active := t.state.Active
	t.mu.Unlock()

	t.logger.WithField("active", active).Debug("Simulated peripheral toggled")
	return nil
}

func (t *Transport) Cancel(_ context.Context, h device.Handle) error {
	if err := t.check(h); err != nil {
		return err
	}

	t.mu.Lock()
	t.live = nil
	subs := t.subs
	t.subs = nil
	t.mu.Unlock()

	for _, sub := range subs {
		_ = sub.Unsubscribe()
	}
	return nil
}

func (t *Transport) MaxWriteSize(device.Handle) int {
	return t.cfg.MaxWrite
}

func (t *Transport) check(h device.Handle) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if h == nil || t.live == nil || h != device.Handle(t.live) {
		return device.ErrNotConnected
	}
	return nil
}
