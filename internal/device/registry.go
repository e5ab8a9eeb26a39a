package device

import (
	"errors"
	"sync"
)

// MaxCapacity is the hard ceiling on registered devices. Wire light ids keep
// the device index in their low nibble, and 0 is the "all lights" sentinel.
const MaxCapacity = 15

// DefaultCapacity is used when no capacity is configured.
const DefaultCapacity = 10

// ErrCapacityExceeded is returned when registering beyond the configured capacity.
var ErrCapacityExceeded = errors.New("device capacity exceeded")

// Registry is the fixed-capacity, insertion-ordered set of devices.
// Ids are dense and 1-based. All methods are safe for concurrent use.
type Registry struct {
	mu       sync.RWMutex
	devices  []*Device
	capacity int
}

// NewRegistry creates a registry. Capacity is clamped to [1, MaxCapacity];
// 0 selects DefaultCapacity.
func NewRegistry(capacity int) *Registry {
	switch {
	case capacity == 0:
		capacity = DefaultCapacity
	case capacity < 1:
		capacity = 1
	case capacity > MaxCapacity:
		capacity = MaxCapacity
	}
	return &Registry{
		devices:  make([]*Device, 0, capacity),
		capacity: capacity,
	}
}

// Register adds a device and returns its id.
func (r *Registry) Register(name string, capability Capability, initial uint8) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.devices) >= r.capacity {
		return 0, ErrCapacityExceeded
	}
	id := len(r.devices) + 1
	r.devices = append(r.devices, newDevice(id, name, capability, initial))
	return id, nil
}

// Contains reports whether id is registered.
func (r *Registry) Contains(id int) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return id >= 1 && id <= len(r.devices)
}

// Len returns the number of registered devices.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.devices)
}

// Cap returns the configured capacity.
func (r *Registry) Cap() int {
	return r.capacity
}

// Update runs fn against the device with the given id while holding the
// write lock, so everything fn does is one indivisible change. It returns
// the post-update snapshot and false if the id is unknown.
func (r *Registry) Update(id int, fn func(*Device)) (Snapshot, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if id < 1 || id > len(r.devices) {
		return Snapshot{}, false
	}
	d := r.devices[id-1]
	fn(d)
	d.seq++
	return d.Snapshot(), true
}

// Snapshot returns a copy of one device.
func (r *Registry) Snapshot(id int) (Snapshot, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if id < 1 || id > len(r.devices) {
		return Snapshot{}, false
	}
	return r.devices[id-1].Snapshot(), true
}

// Snapshots returns copies of all devices in id order, taken under one lock.
func (r *Registry) Snapshots() []Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Snapshot, len(r.devices))
	for i, d := range r.devices {
		out[i] = d.Snapshot()
	}
	return out
}
