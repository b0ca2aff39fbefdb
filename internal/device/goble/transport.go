// Package goble implements device.Transport on top of github.com/go-ble/ble
// (CoreBluetooth on darwin, HCI sockets on linux).
package goble

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-ble/ble"
	"github.com/sirupsen/logrus"
	"github.com/srg/picoflash/internal/device"
	"github.com/srg/picoflash/internal/groutine"
)

const (
	// DefaultWriteSize is the ATT payload of the minimum 23-byte MTU
	DefaultWriteSize = 20

	// attHeaderSize is subtracted from the negotiated MTU to get the write payload
	attHeaderSize = 3

	// scanStartGrace is how long Discover waits for an immediate scan failure
	scanStartGrace = 150 * time.Millisecond
)

// Config selects the peripheral's logical channel pair
type Config struct {
	Service         string
	TX              string
	RX              string
	MTU             int  // requested ATT MTU; 0 skips negotiation
	AllowDuplicates bool // report every advertisement, not only the first per scan
}

// gattClient is the subset of ble.Client used by a connection
type gattClient interface {
	DiscoverProfile(force bool) (*ble.Profile, error)
	Subscribe(c *ble.Characteristic, ind bool, h ble.NotificationHandler) error
	Unsubscribe(c *ble.Characteristic, ind bool) error
	WriteCharacteristic(c *ble.Characteristic, value []byte, noRsp bool) error
	ExchangeMTU(rxMTU int) (int, error)
	CancelConnection() error
	Disconnected() <-chan struct{}
}

type (
	dialFunc func(ctx context.Context, id string) (gattClient, error)
	scanFunc func(ctx context.Context, allowDup bool, emit func(device.Peripheral)) error
)

// link is the device.Handle of a pooled go-ble client
type link struct {
	id       string
	serial   uint64
	client   gattClient
	closed   chan struct{}
	once     sync.Once
	tx, rx   *ble.Characteristic
	maxWrite int
}

func (l *link) ID() string { return fmt.Sprintf("%s#%d", l.id, l.serial) }

func (l *link) close() {
	l.once.Do(func() { close(l.closed) })
}

type subscription struct {
	client gattClient
	char   *ble.Characteristic
	ind    bool
	once   sync.Once
}

func (s *subscription) Unsubscribe() error {
	var err error
	s.once.Do(func() {
		err = NormalizeError(s.client.Unsubscribe(s.char, s.ind))
	})
	return err
}

// Transport is the go-ble device.Transport. The radio is opened lazily.
type Transport struct {
	cfg    Config
	logger *logrus.Logger

	mu         sync.Mutex
	dial       dialFunc
	scan       scanFunc
	pool       map[string]*link
	serial     uint64
	scanCancel context.CancelFunc
	scanDone   <-chan struct{}
}

var _ device.Transport = (*Transport)(nil)

// New creates a Transport for cfg. Nothing touches the radio until RequestPermissions or Discover.
func New(cfg Config, logger *logrus.Logger) *Transport {
	if logger == nil {
		logger = logrus.New()
	}
	return &Transport{
		cfg:    cfg,
		logger: logger,
		pool:   make(map[string]*link),
	}
}

// open binds the transport to the platform radio once
func (t *Transport) open() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.dial != nil {
		return nil
	}

	dev, err := DeviceFactory()
	if err != nil {
		return NormalizeError(err)
	}

	t.dial = func(ctx context.Context, id string) (gattClient, error) {
		client, err := dev.Dial(ctx, ble.NewAddr(id))
		if err != nil {
			return nil, err
		}
		return client, nil
	}
	t.scan = func(ctx context.Context, allowDup bool, emit func(device.Peripheral)) error {
		return dev.Scan(ctx, allowDup, func(adv ble.Advertisement) {
			emit(peripheralFromAdvertisement(adv))
		})
	}
	return nil
}

func peripheralFromAdvertisement(adv ble.Advertisement) device.Peripheral {
	return device.Peripheral{
		ID:          strings.ToUpper(adv.Addr().String()),
		Name:        strings.TrimSpace(adv.LocalName()),
		RSSI:        adv.RSSI(),
		Connectable: adv.Connectable(),
	}
}

// RequestPermissions opens the radio. Authorization failures report false without error.
func (t *Transport) RequestPermissions(context.Context) (bool, error) {
	err := t.open()
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, device.ErrPermissionDenied):
		t.logger.WithError(err).Warn("Bluetooth access not authorized")
		return false, nil
	default:
		return false, err
	}
}

func (t *Transport) Discover(ctx context.Context, handler device.DiscoveryHandler) error {
	if err := t.open(); err != nil {
		return err
	}

	t.mu.Lock()
	if t.scanCancel != nil {
		t.mu.Unlock()
		return fmt.Errorf("scan already running")
	}
	scanCtx, cancel := context.WithCancel(ctx)
	scan := t.scan
	t.scanCancel = cancel
	t.mu.Unlock()

	errCh := make(chan error, 1)
	done := groutine.Go(scanCtx, "ble-scan", func(ctx context.Context) {
		err := scan(ctx, t.cfg.AllowDuplicates, func(p device.Peripheral) {
			handler(p, t.pooled(p.ID))
		})
		if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
			errCh <- NormalizeError(err)
		}
	})

	t.mu.Lock()
	t.scanDone = done
	t.mu.Unlock()

	select {
	case err := <-errCh:
		t.resetScan()
		return err
	case <-time.After(scanStartGrace):
		t.logger.Debug("BLE scan running")
		return nil
	}
}

func (t *Transport) StopDiscover() error {
	t.mu.Lock()
	cancel, done := t.scanCancel, t.scanDone
	t.mu.Unlock()

	if cancel == nil {
		return nil
	}
	cancel()
	if done != nil {
		<-done
	}
	t.resetScan()
	return nil
}

func (t *Transport) resetScan() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.scanCancel != nil {
		t.scanCancel()
	}
	t.scanCancel = nil
	t.scanDone = nil
}

func (t *Transport) pooled(id string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.pool[poolKey(id)]
	return ok
}

func poolKey(id string) string {
	return strings.ToLower(strings.TrimSpace(id))
}

// Connect dials id, reusing a pooled live client when there is one
func (t *Transport) Connect(ctx context.Context, id string) (device.Handle, error) {
	if strings.TrimSpace(id) == "" {
		return nil, fmt.Errorf("device address is empty")
	}
	if err := t.open(); err != nil {
		return nil, err
	}

	key := poolKey(id)
	t.mu.Lock()
	if l, ok := t.pool[key]; ok {
		t.mu.Unlock()
		t.logger.WithField("handle", l.ID()).Debug("Reusing pooled connection")
		return l, nil
	}
	dial := t.dial
	t.mu.Unlock()

	t.logger.WithField("address", id).Debug("Dialing BLE device...")
	client, err := dial(ctx, id)
	if err != nil {
		return nil, NormalizeError(err)
	}

	t.mu.Lock()
	t.serial++
	l := &link{
		id:       id,
		serial:   t.serial,
		client:   client,
		closed:   make(chan struct{}),
		maxWrite: DefaultWriteSize,
	}
	t.pool[key] = l
	t.mu.Unlock()

	groutine.Go(context.Background(), "ble-link-watchdog", func(context.Context) {
		select {
		case <-client.Disconnected():
			t.logger.WithField("handle", l.ID()).Warn("Peripheral dropped the connection")
			t.evict(key, l)
		case <-l.closed:
		}
	})

	return l, nil
}

func (t *Transport) evict(key string, l *link) {
	t.mu.Lock()
	if t.pool[key] == l {
		delete(t.pool, key)
	}
	t.mu.Unlock()
	l.close()
}

func (t *Transport) live(h device.Handle) (*link, error) {
	l, ok := h.(*link)
	if !ok || l == nil {
		return nil, fmt.Errorf("%w: foreign handle %T", device.ErrNotConnected, h)
	}
	select {
	case <-l.closed:
		return nil, device.ErrNotConnected
	default:
		return l, nil
	}
}

// Enumerate resolves the configured service and its tx/rx characteristics
func (t *Transport) Enumerate(_ context.Context, h device.Handle) (device.Channels, error) {
	l, err := t.live(h)
	if err != nil {
		return device.Channels{}, err
	}

	profile, err := l.client.DiscoverProfile(true)
	if err != nil {
		return device.Channels{}, fmt.Errorf("failed to discover profile: %w", NormalizeError(err))
	}

	var svc *ble.Service
	for _, s := range profile.Services {
		if device.SameUUID(s.UUID.String(), t.cfg.Service) {
			svc = s
			break
		}
	}
	if svc == nil {
		return device.Channels{}, &device.NotFoundError{Resource: "service", UUIDs: []string{t.cfg.Service}}
	}

	tx := findCharacteristic(svc, t.cfg.TX)
	if tx == nil || tx.Property&(ble.CharWrite|ble.CharWriteNR) == 0 {
		return device.Channels{}, &device.NotFoundError{Resource: "writable characteristic", UUIDs: []string{t.cfg.Service, t.cfg.TX}}
	}
	rx := findCharacteristic(svc, t.cfg.RX)
	if rx == nil || rx.Property&(ble.CharNotify|ble.CharIndicate) == 0 {
		return device.Channels{}, &device.NotFoundError{Resource: "notifiable characteristic", UUIDs: []string{t.cfg.Service, t.cfg.RX}}
	}

	maxWrite := DefaultWriteSize
	if t.cfg.MTU > 0 {
		if mtu, err := l.client.ExchangeMTU(t.cfg.MTU); err != nil {
			t.logger.WithError(err).Debug("MTU exchange not available, keeping default write size")
		} else if mtu > attHeaderSize {
			maxWrite = mtu - attHeaderSize
		}
	}

	t.mu.Lock()
	l.tx, l.rx, l.maxWrite = tx, rx, maxWrite
	t.mu.Unlock()

	t.logger.WithFields(logrus.Fields{
		"handle":    l.ID(),
		"tx":        device.ShortenUUID(device.NormalizeUUID(tx.UUID.String())),
		"rx":        device.ShortenUUID(device.NormalizeUUID(rx.UUID.String())),
		"max_write": maxWrite,
	}).Debug("Channels resolved")

	return device.Channels{
		Service: device.NormalizeUUID(svc.UUID.String()),
		TX:      device.NormalizeUUID(tx.UUID.String()),
		RX:      device.NormalizeUUID(rx.UUID.String()),
	}, nil
}

func findCharacteristic(svc *ble.Service, uuid string) *ble.Characteristic {
	for _, c := range svc.Characteristics {
		if device.SameUUID(c.UUID.String(), uuid) {
			return c
		}
	}
	return nil
}

func (t *Transport) resolved(h device.Handle, service, char string, pick func(*link) *ble.Characteristic) (*link, *ble.Characteristic, error) {
	l, err := t.live(h)
	if err != nil {
		return nil, nil, err
	}
	t.mu.Lock()
	c := pick(l)
	t.mu.Unlock()
	if c == nil || !device.SameUUID(service, t.cfg.Service) || !device.SameUUID(c.UUID.String(), char) {
		return nil, nil, &device.NotFoundError{Resource: "characteristic", UUIDs: []string{service, char}}
	}
	return l, c, nil
}

func (t *Transport) Subscribe(_ context.Context, h device.Handle, service, rx string, handler device.NotificationHandler) (device.Subscription, error) {
	l, c, err := t.resolved(h, service, rx, func(l *link) *ble.Characteristic { return l.rx })
	if err != nil {
		return nil, err
	}

	ind := c.Property&ble.CharNotify == 0
	if err := l.client.Subscribe(c, ind, func(data []byte) { handler(data) }); err != nil {
		return nil, NormalizeError(err)
	}
	return &subscription{client: l.client, char: c, ind: ind}, nil
}

// Write sends data without response when the characteristic allows it
func (t *Transport) Write(_ context.Context, h device.Handle, service, tx string, data []byte) error {
	l, c, err := t.resolved(h, service, tx, func(l *link) *ble.Characteristic { return l.tx })
	if err != nil {
		return err
	}
	noRsp := c.Property&ble.CharWriteNR != 0
	return NormalizeError(l.client.WriteCharacteristic(c, data, noRsp))
}

// Cancel drops the connection. Cancelling a link the peripheral already dropped succeeds.
func (t *Transport) Cancel(_ context.Context, h device.Handle) error {
	l, ok := h.(*link)
	if !ok || l == nil {
		return fmt.Errorf("%w: foreign handle %T", device.ErrNotConnected, h)
	}

	t.evict(poolKey(l.id), l)
	err := NormalizeError(l.client.CancelConnection())
	if errors.Is(err, device.ErrNotConnected) {
		return nil
	}
	return err
}

func (t *Transport) MaxWriteSize(h device.Handle) int {
	l, ok := h.(*link)
	if !ok || l == nil {
		return DefaultWriteSize
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return l.maxWrite
}
