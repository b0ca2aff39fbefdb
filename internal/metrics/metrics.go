// Package metrics exposes Prometheus instruments for the link session.
// A nil *Collector is valid and records nothing.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "picoflash"

// Collector groups the session counters and the state gauge.
type Collector struct {
	connections   *prometheus.CounterVec
	notifications prometheus.Counter
	duplicates    prometheus.Counter
	decodeErrors  *prometheus.CounterVec
	writes        *prometheus.CounterVec
	disconnects   prometheus.Counter
	eventsDropped prometheus.Counter
	state         *prometheus.GaugeVec
}

// New creates a Collector and registers it with reg.
func New(reg prometheus.Registerer) (*Collector, error) {
	c := &Collector{
		connections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "connections_total",
			Help:      "Connection attempts by result (ok, connect_failed, enumeration_failed).",
		}, []string{"result"}),
		notifications: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_total",
			Help:      "Notification payloads accepted for decoding.",
		}),
		duplicates: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_duplicate_total",
			Help:      "Notification payloads dropped as byte-identical redeliveries.",
		}),
		decodeErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "decode_errors_total",
			Help:      "Frames that failed to decode, by kind.",
		}, []string{"kind"}),
		writes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "writes_total",
			Help:      "Command writes by result.",
		}, []string{"result"}),
		disconnects: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "disconnects_total",
			Help:      "Connections released.",
		}),
		eventsDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_dropped_total",
			Help:      "Transition events overwritten before a reader received them.",
		}),
		state: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "session_state",
			Help:      "1 for the current session state, 0 otherwise.",
		}, []string{"state"}),
	}

	for _, col := range []prometheus.Collector{
		c.connections, c.notifications, c.duplicates, c.decodeErrors, c.writes, c.disconnects, c.eventsDropped, c.state,
	} {
		if err := reg.Register(col); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// ConnectResult counts a finished connection attempt
func (c *Collector) ConnectResult(result string) {
	if c == nil {
		return
	}
	c.connections.WithLabelValues(result).Inc()
}

func (c *Collector) Notification() {
	if c == nil {
		return
	}
	c.notifications.Inc()
}

func (c *Collector) Duplicate() {
	if c == nil {
		return
	}
	c.duplicates.Inc()
}

func (c *Collector) DecodeError(kind string) {
	if c == nil {
		return
	}
	c.decodeErrors.WithLabelValues(kind).Inc()
}

func (c *Collector) Write(ok bool) {
	if c == nil {
		return
	}
	result := "ok"
	if !ok {
		result = "failed"
	}
	c.writes.WithLabelValues(result).Inc()
}

func (c *Collector) Disconnect() {
	if c == nil {
		return
	}
	c.disconnects.Inc()
}

// EventDropped counts a transition event lost to a slow reader
func (c *Collector) EventDropped() {
	if c == nil {
		return
	}
	c.eventsDropped.Inc()
}

// SetState marks current as the active state among all known states
func (c *Collector) SetState(current string, all []string) {
	if c == nil {
		return
	}
	for _, s := range all {
		v := 0.0
		if s == current {
			v = 1
		}
		c.state.WithLabelValues(s).Set(v)
	}
}
