// Package issue holds the admitted-issue store: the dedup table keyed by a
// fingerprint of (kind, rounded coordinate), and the per-kind crew-size
// lookup used by the dispatcher to decide how many agents an issue needs.
package issue

import (
	"time"

	"github.com/mash-protocol/base-station/pkg/wire"
)

// Kind identifies a class of reported issue (§3).
type Kind string

const (
	KindRust              Kind = "rust"
	KindOverheatedCircuit Kind = "overheated_circuit"
	KindTiltedAntenna     Kind = "tilted_antenna"
)

// RequiredAgents returns how many agents an issue of this kind needs staffed
// before the dispatcher will release it, and whether the kind is known.
// overheated_circuit is the one multi-agent kind in the base protocol; every
// other kind needs exactly one agent (§3). The mapping is a lookup rather
// than inline logic so a new kind can be added without touching dispatch.
func RequiredAgents(kind Kind) (int, bool) {
	switch kind {
	case KindRust, KindTiltedAntenna:
		return 1, true
	case KindOverheatedCircuit:
		return 2, true
	default:
		return 0, false
	}
}

// Issue is an admitted report awaiting or undergoing dispatch.
type Issue struct {
	Fingerprint   string
	Kind          Kind
	Coordinate    wire.Position
	RequiredCount int
	ReporterID    string
	FirstSeen     time.Time
}
