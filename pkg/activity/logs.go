package activity

import (
	"time"

	"github.com/mash-protocol/base-station/pkg/wire"
)

// CommandRecord describes one MOVEMENT_COMMAND dispatch attempt, successful
// or not, for the status surface's command history.
type CommandRecord struct {
	TaskID     uint64
	AgentID    string
	IssueKind  string
	Coordinate wire.Position
	SentAt     time.Time
	Success    bool
	Error      string
}

// FrameRecord describes one frame seen on the wire, inbound or outbound,
// over either transport.
type FrameRecord struct {
	Timestamp   time.Time
	Transport   string // "udp" or "tcp"
	Direction   string // "in" or "out"
	MessageType wire.MessageType
	RemoteAddr  string
}

const (
	defaultCommandLogSize = 200
	defaultNetworkLogSize = 500
)

// CommandLog is the bounded history of dispatch attempts.
type CommandLog struct{ ring *Ring[CommandRecord] }

// NewCommandLog returns a command log with the default capacity.
func NewCommandLog() *CommandLog { return &CommandLog{ring: NewRing[CommandRecord](defaultCommandLogSize)} }

// Record appends a dispatch attempt.
func (c *CommandLog) Record(r CommandRecord) { c.ring.Push(r) }

// Snapshot returns the recorded attempts, oldest first.
func (c *CommandLog) Snapshot() []CommandRecord { return c.ring.Snapshot() }

// Clear empties the log.
func (c *CommandLog) Clear() { c.ring.Clear() }

// NetworkLog is the bounded history of frames seen on either transport.
type NetworkLog struct{ ring *Ring[FrameRecord] }

// NewNetworkLog returns a network log with the default capacity.
func NewNetworkLog() *NetworkLog { return &NetworkLog{ring: NewRing[FrameRecord](defaultNetworkLogSize)} }

// Record appends a frame observation.
func (n *NetworkLog) Record(r FrameRecord) { n.ring.Push(r) }

// Snapshot returns the recorded frames, oldest first.
func (n *NetworkLog) Snapshot() []FrameRecord { return n.ring.Snapshot() }

// Clear empties the log.
func (n *NetworkLog) Clear() { n.ring.Clear() }
