// Package registry aggregates peripherals discovered during a scan into a stable,
// de-duplicated, first-seen ordered list.
package registry

import (
	"sync"

	"github.com/sirupsen/logrus"
	"github.com/srg/picoflash/internal/device"
	"github.com/srg/picoflash/internal/ringchan"
	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// DefaultEventBuffer is the capacity of the new-peripheral event channel
const DefaultEventBuffer = 64

// Registry holds at most one entry per peripheral ID in insertion order.
// Rediscovery never reorders or updates an entry.
type Registry struct {
	mu      sync.RWMutex
	entries *orderedmap.OrderedMap[string, device.Peripheral]
	events  *ringchan.RingChannel[device.Peripheral]
	logger  *logrus.Logger
}

// New creates an empty registry
func New(logger *logrus.Logger) *Registry {
	if logger == nil {
		logger = logrus.New()
	}
	return &Registry{
		entries: orderedmap.New[string, device.Peripheral](),
		events:  ringchan.New[device.Peripheral](DefaultEventBuffer),
		logger:  logger,
	}
}

// OnDiscovered inserts p unless its ID is already present. Reports whether p was added.
func (r *Registry) OnDiscovered(p device.Peripheral) bool {
	if p.ID == "" {
		return false
	}

	r.mu.Lock()
	if _, exists := r.entries.Get(p.ID); exists {
		r.mu.Unlock()
		return false
	}
	r.entries.Set(p.ID, p)
	count := r.entries.Len()
	// Published under the lock so Reset cannot interleave and leak this event into the next scan.
	dropped := r.events.Publish(p)
	r.mu.Unlock()

	log := r.logger.WithFields(logrus.Fields{
		"id":    p.ID,
		"name":  p.Name,
		"rssi":  p.RSSI,
		"count": count,
	})
	log.Info("Discovered new peripheral")
	if dropped {
		log.Debug("Discovery event buffer full, oldest event dropped")
	}
	return true
}

// Reset clears the registry so a new scan starts from an empty list
func (r *Registry) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.entries = orderedmap.New[string, device.Peripheral]()
	for {
		if _, ok := r.events.TryReceive(); !ok {
			break
		}
	}
}

// Snapshot returns the peripherals in first-seen order
func (r *Registry) Snapshot() []device.Peripheral {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]device.Peripheral, 0, r.entries.Len())
	for pair := r.entries.Oldest(); pair != nil; pair = pair.Next() {
		result = append(result, pair.Value)
	}
	return result
}

// Get returns the peripheral with the given ID
func (r *Registry) Get(id string) (device.Peripheral, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.entries.Get(id)
}

// Len returns the number of known peripherals
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.entries.Len()
}

// Events returns newly added peripherals. Slow readers lose the oldest events; Snapshot stays authoritative.
func (r *Registry) Events() <-chan device.Peripheral {
	return r.events.C()
}
