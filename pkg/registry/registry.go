package registry

import (
	"math"
	"sort"
	"sync"
	"time"

	"github.com/mash-protocol/base-station/pkg/wire"
)

// Registry is the mutex-guarded device table. One Registry instance is
// shared by the transport listeners, the dispatcher, and the status
// surface; callers must not hold its lock while calling into any other
// guarded structure (§5).
type Registry struct {
	mu      sync.RWMutex
	devices map[string]*Device
	nextSeq uint64
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{devices: make(map[string]*Device)}
}

// Upsert records or refreshes a device's identity and telemetry. It never
// touches TaskID; assignment is only ever changed by Assign/Release. Seq is
// stamped once, the first time an identity is seen, so later upserts of the
// same device (heartbeats, position updates) don't change its place in
// insertion order.
func (r *Registry) Upsert(id string, kind wire.DeviceKind, streamAddr, ip string, replyPort int, pos wire.Position, battery float64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	d, exists := r.devices[id]
	if !exists {
		r.nextSeq++
		d = &Device{ID: id, Seq: r.nextSeq}
		r.devices[id] = d
	}
	d.Kind = kind
	d.StreamAddr = streamAddr
	d.IP = ip
	d.ReplyPort = replyPort
	d.Position = pos
	d.Battery = battery
	d.LastSeen = time.Now()
}

// Touch updates only the last-seen timestamp and position for a device
// already in the registry, for HEARTBEAT/POSITION_UPDATE datagrams that
// arrive between full CONNECTION_REQUEST cycles. It is a no-op for unknown
// devices; a device must connect before it can heartbeat.
func (r *Registry) Touch(id string, pos *wire.Position, battery *float64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	d, exists := r.devices[id]
	if !exists {
		return false
	}
	d.LastSeen = time.Now()
	if pos != nil {
		d.Position = *pos
	}
	if battery != nil {
		d.Battery = *battery
	}
	return true
}

// TouchByAddress is the §4.2 "touch_by_address" fallback: it updates
// last-seen and telemetry for whichever device's last known IP matches
// addr, for frames that arrive without a usable device identity (e.g. a
// HEARTBEAT or POSITION_UPDATE datagram missing sender_id/device_id). If
// more than one device shares the address, the most recently registered
// one is touched. Returns false if no device matches.
func (r *Registry) TouchByAddress(addr string, pos *wire.Position, battery *float64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	var match *Device
	for _, d := range r.devices {
		if d.IP != addr {
			continue
		}
		if match == nil || d.Seq > match.Seq {
			match = d
		}
	}
	if match == nil {
		return false
	}

	match.LastSeen = time.Now()
	if pos != nil {
		match.Position = *pos
	}
	if battery != nil {
		match.Battery = *battery
	}
	return true
}

// SetStreamAddr records which inbound TCP connection a known device is
// currently speaking on, without touching any other field. The stream
// listener calls this the first time it recognizes an identity on a
// connection, so DropByAddress can later clean up if that connection dies
// unexpectedly (§4.2). It is a no-op for an unknown device.
func (r *Registry) SetStreamAddr(id, addr string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if d, ok := r.devices[id]; ok {
		d.StreamAddr = addr
	}
}

// Get returns a copy of the device record for id.
func (r *Registry) Get(id string) (Device, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	d, ok := r.devices[id]
	if !ok {
		return Device{}, false
	}
	return *d, true
}

// FindAvailable returns every unassigned device of the given kind, in
// insertion order (§4.2); capping the count is left to the policy engine's
// Select: the order their identities were first registered,
// per Device.Seq, not the arbitrary order Go's map iteration would give.
// The policy engine does the actual ranking; this order only matters as
// the exploit tie-break when two candidates have equal Q-values.
func (r *Registry) FindAvailable(kind wire.DeviceKind) []Device {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Device, 0, len(r.devices))
	for _, d := range r.devices {
		if d.Kind == kind && d.Available() {
			out = append(out, *d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Seq < out[j].Seq })
	return out
}

// Assign marks a device busy with taskID. It fails if the device is unknown
// or already assigned; callers are expected to have just selected it from
// FindAvailable under the same lock ordering discipline.
func (r *Registry) Assign(id, taskID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	d, ok := r.devices[id]
	if !ok || !d.Available() {
		return false
	}
	d.TaskID = taskID
	return true
}

// Release clears a device's assignment, making it available again.
func (r *Registry) Release(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if d, ok := r.devices[id]; ok {
		d.TaskID = ""
	}
}

// EvictStale removes every device whose LastSeen is older than maxAge and
// returns their IDs. It does not touch active-task or Q-table state; any
// task the device held stays in the active-task table until a completion
// for it arrives; a later registration of the same identity does not remove
// it (§8 edge case 4, §9 open question — resolved in DESIGN.md: leave entries
// in place, they are harmless).
func (r *Registry) EvictStale(maxAge time.Duration) []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	cutoff := time.Now().Add(-maxAge)
	var evicted []string
	for id, d := range r.devices {
		if d.LastSeen.Before(cutoff) {
			evicted = append(evicted, id)
			delete(r.devices, id)
		}
	}
	return evicted
}

// DropByAddress removes every device whose StreamAddr matches addr, for use
// when a TCP stream connection closes unexpectedly. Returns the dropped IDs.
func (r *Registry) DropByAddress(addr string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	var dropped []string
	for id, d := range r.devices {
		if d.StreamAddr == addr {
			dropped = append(dropped, id)
			delete(r.devices, id)
		}
	}
	return dropped
}

// Snapshot returns every registered device, for the status surface.
func (r *Registry) Snapshot() []Device {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Device, 0, len(r.devices))
	for _, d := range r.devices {
		out = append(out, *d)
	}
	return out
}

// Distance2D returns the planar (X, Y) Euclidean distance between two
// positions; Z is excluded because drones and robots both report it
// inconsistently and the bucket thresholds were tuned on ground distance.
func Distance2D(a, b wire.Position) float64 {
	dx := a.X - b.X
	dy := a.Y - b.Y
	return math.Sqrt(dx*dx + dy*dy)
}
