// Package session implements the link lifecycle for a single peripheral:
// scan, connect, stream and disconnect, on top of a device.Transport.
//
// Transport calls never run under the session lock. Every connection attempt
// bumps a generation counter; results that arrive for an older generation
// (a connect cancelled by Disconnect, a notification from a released
// subscription) are discarded and their resources released.
package session

import (
	"context"
	"encoding/hex"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cornelk/hashmap"
	"github.com/oklog/ulid/v2"
	"github.com/sirupsen/logrus"
	"github.com/srg/picoflash/internal/codec"
	"github.com/srg/picoflash/internal/device"
	"github.com/srg/picoflash/internal/groutine"
	"github.com/srg/picoflash/internal/metrics"
	"github.com/srg/picoflash/internal/registry"
	"github.com/srg/picoflash/internal/ringchan"
	"golang.org/x/time/rate"
)

// DefaultEventBuffer is the capacity of the transition event channel
const DefaultEventBuffer = 32

// Observer receives every decoded state replacement, in arrival order.
type Observer func(state codec.TelemetryState)

// Option configures a Session
type Option func(*Session)

// WithMetrics records session activity in c
func WithMetrics(c *metrics.Collector) Option {
	return func(s *Session) { s.metrics = c }
}

// WithRegistry uses reg as the scan aggregator instead of a private one
func WithRegistry(reg *registry.Registry) Option {
	return func(s *Session) { s.registry = reg }
}

// connection is the per-link sub-state owned by Connected
type connection struct {
	handle    device.Handle
	channels  device.Channels
	sub       device.Subscription
	sessionID string
}

// Session is the state machine. The zero value is not usable; call New.
type Session struct {
	transport device.Transport
	registry  *registry.Registry
	logger    *logrus.Logger
	metrics   *metrics.Collector

	mu         sync.Mutex
	link       Kind // Idle, Connecting, Connected, Disconnecting or Failed
	scanning   bool
	granted    bool
	adopting   bool
	attempting bool // a Connect owns the transport, even after Disconnect invalidated it
	attemptID  string
	deviceID   string
	conn       connection
	streaming  bool
	state      *codec.TelemetryState
	lastRaw    []byte
	haveRaw    bool
	failure    error
	generation uint64

	dispatchMu   sync.Mutex
	observers    *hashmap.Map[uint64, Observer]
	nextObserver atomic.Uint64
	events       *ringchan.RingChannel[Event]
	rawLog       rate.Sometimes

	ctx    context.Context
	cancel context.CancelFunc
}

// New creates an Idle session on top of transport
func New(transport device.Transport, logger *logrus.Logger, opts ...Option) *Session {
	if logger == nil {
		logger = logrus.New()
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Session{
		transport: transport,
		logger:    logger,
		link:      Idle,
		observers: hashmap.New[uint64, Observer](),
		events:    ringchan.New[Event](DefaultEventBuffer),
		rawLog:    rate.Sometimes{Interval: time.Second},
		ctx:       ctx,
		cancel:    cancel,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.registry == nil {
		s.registry = registry.New(logger)
	}
	s.metrics.SetState(Idle.String(), KindNames())
	return s
}

// Registry returns the scan aggregator fed by StartScan
func (s *Session) Registry() *registry.Registry {
	return s.registry
}

// Events returns the transition stream. Slow readers lose the oldest events.
func (s *Session) Events() <-chan Event {
	return s.events.C()
}

// OnStateChanged registers fn for decoded state replacements. The returned func unregisters it.
func (s *Session) OnStateChanged(fn Observer) (cancel func()) {
	id := s.nextObserver.Add(1)
	s.observers.Set(id, fn)
	return func() {
		s.observers.Del(id)
	}
}

// Snapshot returns the current session state
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := Snapshot{
		Kind:      s.kindLocked(),
		DeviceID:  s.deviceID,
		SessionID: s.conn.sessionID,
		Scanning:  s.scanning,
		Streaming: s.streaming,
		Err:       s.failure,
	}
	if s.state != nil {
		st := s.state.Clone()
		snap.State = &st
	}
	return snap
}

// RequestPermissions asks the transport for radio access. The answer gates StartScan.
func (s *Session) RequestPermissions(ctx context.Context) (bool, error) {
	granted, err := s.transport.RequestPermissions(ctx)
	if err != nil {
		s.logger.WithError(err).Warn("Permission request failed")
		return false, &OpError{Op: OpScan, Kind: classifyTransportError(err), Err: err}
	}

	s.mu.Lock()
	s.granted = granted
	s.mu.Unlock()

	s.logger.WithField("granted", granted).Info("Bluetooth permission resolved")
	return granted, nil
}

// StartScan resets the registry and starts discovery. Valid from Idle, Connected or Failed;
// a running connection is kept.
func (s *Session) StartScan(ctx context.Context) error {
	s.mu.Lock()
	switch {
	case !s.granted:
		s.mu.Unlock()
		return &OpError{Op: OpScan, Kind: ErrPermissionDenied}
	case s.scanning:
		s.mu.Unlock()
		s.logger.Debug("Scan already active, ignoring start")
		return nil
	case s.link == Connecting || s.link == Disconnecting:
		s.mu.Unlock()
		return &OpError{Op: OpScan, Kind: ErrConnectInProgress}
	}
	if s.link == Failed {
		s.link = Idle
		s.failure = nil
		s.deviceID = ""
	}
	s.scanning = true
	s.mu.Unlock()

	s.registry.Reset()
	if err := s.transport.Discover(ctx, s.onDiscovered); err != nil {
		s.mu.Lock()
		s.scanning = false
		s.mu.Unlock()
		s.logger.WithError(err).Error("Failed to start discovery")
		s.publish(nil)
		return &OpError{Op: OpScan, Kind: classifyTransportError(err), Err: err}
	}

	s.logger.Info("Scan started")
	s.publish(nil)
	return nil
}

// StopScan cancels discovery. The session returns to Idle or stays Connected.
func (s *Session) StopScan() error {
	s.mu.Lock()
	if !s.scanning {
		s.mu.Unlock()
		return &OpError{Op: OpStopScan, Kind: ErrNotScanning}
	}
	s.scanning = false
	s.mu.Unlock()

	err := s.transport.StopDiscover()
	s.publish(nil)
	if err != nil {
		s.logger.WithError(err).Warn("Failed to stop discovery")
		return &OpError{Op: OpStopScan, Kind: ErrTransportUnavailable, Err: err}
	}

	s.logger.WithField("discovered", s.registry.Len()).Info("Scan stopped")
	return nil
}

func (s *Session) onDiscovered(p device.Peripheral, connected bool) {
	s.registry.OnDiscovered(p)
	if !connected {
		return
	}

	s.mu.Lock()
	if !s.scanning || s.adopting || (s.link != Idle && s.link != Failed) {
		s.mu.Unlock()
		return
	}
	s.adopting = true
	s.mu.Unlock()

	log := s.logger.WithField("id", p.ID)
	log.Info("Peripheral already connected, adopting")

	groutine.Go(s.ctx, "adopt-"+p.ID, func(ctx context.Context) {
		defer func() {
			s.mu.Lock()
			s.adopting = false
			s.mu.Unlock()
		}()
		if err := s.Connect(ctx, p.ID); err != nil {
			log.WithError(err).Warn("Failed to adopt connected peripheral")
		}
	})
}

// Connect establishes and enumerates a connection to id, releasing any existing one first.
// On failure the session is left Failed and no handle is retained.
func (s *Session) Connect(ctx context.Context, id string) error {
	s.mu.Lock()
	if s.link == Connecting || s.attempting {
		busy := s.attemptID
		s.mu.Unlock()
		s.logger.WithFields(logrus.Fields{"id": id, "busy": busy}).Warn("Connect rejected: another attempt is in flight")
		return &OpError{Op: OpConnect, Kind: ErrConnectInProgress, DeviceID: id}
	}
	s.attempting = true
	s.attemptID = id
	defer s.endAttempt()
	prev := s.detachLocked()
	s.generation++
	gen := s.generation
	s.link = Connecting
	s.deviceID = id
	s.failure = nil
	s.mu.Unlock()

	log := s.logger.WithField("id", id)
	s.publish(nil)

	if prev.handle != nil {
		log.WithField("previous", prev.handle.ID()).Info("Releasing previous connection")
		_ = s.release(ctx, prev)
		s.metrics.Disconnect()
	}

	log.Info("Connecting...")
	h, err := s.transport.Connect(ctx, id)
	if err != nil {
		return s.failConnect(ctx, gen, id, ErrConnectFailed, err, nil)
	}
	if s.stale(gen) {
		log.Info("Connect attempt was cancelled, releasing handle")
		s.cancelHandle(ctx, h)
		return &OpError{Op: OpConnect, Kind: ErrConnectCancelled, DeviceID: id}
	}

	channels, err := s.transport.Enumerate(ctx, h)
	if err != nil {
		return s.failConnect(ctx, gen, id, ErrEnumerationFailed, err, h)
	}

	s.mu.Lock()
	if s.generation != gen {
		s.mu.Unlock()
		log.Info("Connect attempt was cancelled, releasing late handle")
		s.cancelHandle(ctx, h)
		return &OpError{Op: OpConnect, Kind: ErrConnectCancelled, DeviceID: id}
	}
	s.link = Connected
	s.conn = connection{
		handle:    h,
		channels:  channels,
		sessionID: ulid.Make().String(),
	}
	sessionID := s.conn.sessionID
	s.mu.Unlock()

	s.metrics.ConnectResult("ok")
	log.WithField("session", sessionID).Info("Connected")
	s.publish(nil)
	return nil
}

// endAttempt lets the next Connect reach the transport. A cancelled attempt keeps
// the guard until its transport calls have returned and its handle is released.
func (s *Session) endAttempt() {
	s.mu.Lock()
	s.attempting = false
	s.attemptID = ""
	s.mu.Unlock()
}

func (s *Session) failConnect(ctx context.Context, gen uint64, id string, kind, cause error, h device.Handle) error {
	if h != nil {
		s.cancelHandle(ctx, h)
	}

	opErr := &OpError{Op: OpConnect, Kind: kind, DeviceID: id, Err: cause}

	s.mu.Lock()
	if s.generation != gen {
		s.mu.Unlock()
		return &OpError{Op: OpConnect, Kind: ErrConnectCancelled, DeviceID: id, Err: cause}
	}
	s.link = Failed
	s.failure = opErr
	s.mu.Unlock()

	result := "connect_failed"
	if kind == ErrEnumerationFailed {
		result = "enumeration_failed"
	}
	s.metrics.ConnectResult(result)
	s.logger.WithError(cause).WithField("id", id).Error(kind.Error())
	s.publish(opErr)
	return opErr
}

// Disconnect releases the connection. Local state is cleared even when the transport
// fails to cancel; that failure is returned. An in-flight Connect is invalidated.
func (s *Session) Disconnect(ctx context.Context) error {
	s.mu.Lock()
	if s.link == Connecting {
		id := s.deviceID
		s.generation++
		s.link = Idle
		s.deviceID = ""
		s.mu.Unlock()

		s.logger.WithField("id", id).Info("Connect attempt cancelled")
		s.publish(nil)
		return nil
	}
	if s.conn.handle == nil {
		s.mu.Unlock()
		return &OpError{Op: OpDisconnect, Kind: ErrNotConnected}
	}

	id := s.deviceID
	conn := s.detachLocked()
	s.generation++
	gen := s.generation
	s.link = Disconnecting
	s.mu.Unlock()

	s.publish(nil)
	err := s.release(ctx, conn)

	s.mu.Lock()
	if s.generation == gen {
		s.link = Idle
		s.deviceID = ""
	}
	s.mu.Unlock()

	s.metrics.Disconnect()
	s.logger.WithFields(logrus.Fields{"id": id, "session": conn.sessionID}).Info("Disconnected")

	if err != nil {
		opErr := &OpError{Op: OpDisconnect, Kind: ErrDisconnectFailed, DeviceID: id, Err: err}
		s.publish(opErr)
		return opErr
	}
	s.publish(nil)
	return nil
}

// StartStreaming subscribes to the notify channel. Without a connection, or when a
// subscription already exists, it logs and returns nil.
func (s *Session) StartStreaming(ctx context.Context) error {
	s.mu.Lock()
	if s.link != Connected || s.conn.handle == nil {
		s.mu.Unlock()
		s.logger.Info("Start streaming ignored: not connected")
		return nil
	}
	if s.streaming {
		s.mu.Unlock()
		s.logger.WithError(ErrAlreadyStreaming).Info("Start streaming ignored")
		return nil
	}
	s.streaming = true
	s.haveRaw = false
	s.lastRaw = nil
	h, channels, gen, id := s.conn.handle, s.conn.channels, s.generation, s.deviceID
	s.mu.Unlock()

	sub, err := s.transport.Subscribe(ctx, h, channels.Service, channels.RX, func(data []byte) {
		s.onNotification(gen, data)
	})

	s.mu.Lock()
	if err != nil {
		if s.generation == gen {
			s.streaming = false
		}
		s.mu.Unlock()
		s.logger.WithError(err).WithField("id", id).Error("Failed to subscribe")
		return &OpError{Op: OpStream, Kind: ErrSubscribeFailed, DeviceID: id, Err: err}
	}
	if s.generation != gen {
		s.mu.Unlock()
		if uerr := sub.Unsubscribe(); uerr != nil {
			s.logger.WithError(uerr).Debug("Failed to drop stale subscription")
		}
		return &OpError{Op: OpStream, Kind: ErrNotConnected, DeviceID: id}
	}
	s.conn.sub = sub
	s.mu.Unlock()

	s.logger.WithFields(logrus.Fields{"id": id, "rx": channels.RX}).Info("Streaming started")
	s.publish(nil)
	return nil
}

func (s *Session) onNotification(gen uint64, data []byte) {
	// Serialize the whole path so observers see replacements in arrival order.
	s.dispatchMu.Lock()
	defer s.dispatchMu.Unlock()

	s.mu.Lock()
	if s.generation != gen || !s.streaming {
		s.mu.Unlock()
		return
	}
	if s.haveRaw && string(s.lastRaw) == string(data) {
		s.mu.Unlock()
		s.metrics.Duplicate()
		return
	}
	s.lastRaw = append(s.lastRaw[:0], data...)
	s.haveRaw = true
	s.mu.Unlock()

	s.metrics.Notification()
	s.rawLog.Do(func() {
		s.logger.WithField("raw", hex.EncodeToString(data)).Debug("Notification received")
	})

	state, err := codec.Decode(data)
	if err != nil {
		kind := "unknown"
		var derr *codec.DecodeError
		if errors.As(err, &derr) {
			kind = string(derr.Kind)
		}
		s.metrics.DecodeError(kind)
		s.logger.WithError(err).WithField("len", len(data)).Warn("Dropping malformed frame")
		return
	}

	s.mu.Lock()
	if s.generation != gen {
		s.mu.Unlock()
		return
	}
	s.state = &state
	s.mu.Unlock()

	s.observers.Range(func(_ uint64, fn Observer) bool {
		fn(state.Clone())
		return true
	})
}

// Send encodes command and writes it without response.
func (s *Session) Send(ctx context.Context, command []byte) error {
	s.mu.Lock()
	if s.link != Connected || s.conn.handle == nil {
		s.mu.Unlock()
		s.logger.WithField("len", len(command)).Warn("Send ignored: not connected")
		return &OpError{Op: OpSend, Kind: ErrNotConnected}
	}
	h, channels, id := s.conn.handle, s.conn.channels, s.deviceID
	s.mu.Unlock()

	payload, err := codec.Encode(command, s.transport.MaxWriteSize(h))
	if err != nil {
		return &OpError{Op: OpSend, DeviceID: id, Err: err}
	}

	if err := s.transport.Write(ctx, h, channels.Service, channels.TX, payload); err != nil {
		s.metrics.Write(false)
		s.logger.WithError(err).WithField("id", id).Error("Write failed")
		return &OpError{Op: OpSend, Kind: ErrWriteFailed, DeviceID: id, Err: err}
	}

	s.metrics.Write(true)
	s.logger.WithFields(logrus.Fields{"id": id, "len": len(payload)}).Debug("Command sent")
	return nil
}

// Close stops a running scan and releases the connection.
func (s *Session) Close(ctx context.Context) error {
	defer s.cancel()

	snap := s.Snapshot()
	if snap.Scanning {
		if err := s.StopScan(); err != nil {
			s.logger.WithError(err).Debug("Stop scan on close failed")
		}
	}
	if snap.Kind == Connecting || snap.Kind == Connected {
		return s.Disconnect(ctx)
	}
	return nil
}

// detachLocked takes the current connection out of the session, clearing the
// Connected sub-state. Callers release the returned connection outside the lock.
func (s *Session) detachLocked() connection {
	conn := s.conn
	s.conn = connection{}
	s.streaming = false
	s.state = nil
	s.lastRaw = nil
	s.haveRaw = false
	return conn
}

func (s *Session) release(ctx context.Context, conn connection) error {
	if conn.sub != nil {
		if err := conn.sub.Unsubscribe(); err != nil {
			s.logger.WithError(err).Warn("Failed to unsubscribe")
		}
	}
	if err := s.transport.Cancel(ctx, conn.handle); err != nil {
		s.logger.WithError(err).WithField("handle", conn.handle.ID()).Warn("Transport cancel failed")
		return err
	}
	return nil
}

func (s *Session) cancelHandle(ctx context.Context, h device.Handle) {
	if err := s.transport.Cancel(ctx, h); err != nil {
		s.logger.WithError(err).WithField("handle", h.ID()).Warn("Failed to cancel handle")
	}
}

func (s *Session) stale(gen uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.generation != gen
}

func (s *Session) kindLocked() Kind {
	if s.link == Idle && s.scanning {
		return Scanning
	}
	return s.link
}

func (s *Session) publish(err error) {
	s.mu.Lock()
	ev := Event{
		Kind:      s.kindLocked(),
		DeviceID:  s.deviceID,
		Scanning:  s.scanning,
		Streaming: s.streaming,
		Err:       err,
		At:        time.Now(),
	}
	s.mu.Unlock()

	s.metrics.SetState(ev.Kind.String(), KindNames())
	if s.events.Publish(ev) {
		s.metrics.EventDropped()
	}
}

func classifyTransportError(err error) error {
	switch {
	case errors.Is(err, device.ErrPermissionDenied):
		return ErrPermissionDenied
	default:
		return ErrTransportUnavailable
	}
}
