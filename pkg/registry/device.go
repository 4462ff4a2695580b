// Package registry tracks the fleet of drones and ground robots known to
// the base station: identity, last-seen telemetry, and current task
// assignment. It is the registry → active-task-table → Q-table lock order's
// first link (§5); nothing here calls into those packages.
package registry

import (
	"time"

	"github.com/mash-protocol/base-station/pkg/wire"
)

// Device is one registered agent.
type Device struct {
	ID   string
	Kind wire.DeviceKind

	// StreamAddr is the TCP stream connection's remote address
	// (host:ephemeral-port), used to recognize which devices go away when
	// that connection drops. It is not where commands are sent.
	StreamAddr string

	// IP and ReplyPort are where the outbound dialer sends commands: the
	// device's own reported address and the port it listens on for
	// MOVEMENT_COMMAND frames (§4.1, §6).
	IP        string
	ReplyPort int

	Position wire.Position
	Battery  float64
	LastSeen time.Time

	// TaskID is non-empty while the device is assigned to a task. A
	// device is available for selection only when this is empty.
	TaskID string

	// Seq is the monotonic order in which this device's identity was
	// first registered. It is assigned once on creation and never
	// touched again, so FindAvailable can return devices in insertion
	// order (§4.2) even though the underlying table is a Go map.
	Seq uint64
}

// Available reports whether the device can be offered to the policy engine
// for a new assignment.
func (d *Device) Available() bool {
	return d.TaskID == ""
}
