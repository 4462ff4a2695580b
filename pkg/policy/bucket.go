package policy

import (
	"math"

	"github.com/mash-protocol/base-station/pkg/wire"
)

// Bucket names the coarse distance band an agent falls into relative to an
// issue's coordinate. Buckets, not raw distance, are what the Q-table
// indexes on (§4.5): it keeps the state space small enough to learn from a
// handful of episodes.
type Bucket string

const (
	BucketNear   Bucket = "near"
	BucketMedium Bucket = "medium"
	BucketFar    Bucket = "far"
)

const (
	nearThresholdMeters   = 30.0
	mediumThresholdMeters = 60.0
)

// BucketFor classifies a planar distance into near/medium/far: near<30,
// medium<60, far>=60 (§3).
func BucketFor(distance float64) Bucket {
	switch {
	case distance < nearThresholdMeters:
		return BucketNear
	case distance < mediumThresholdMeters:
		return BucketMedium
	default:
		return BucketFar
	}
}

// State is the Q-table row key: issue kind crossed with an agent's distance
// bucket from that issue. Two agents considered for the same issue can
// occupy different states if they sit in different bands.
type State struct {
	Kind   string
	Bucket Bucket
}

// StateFor computes the state an agent occupies relative to an issue
// coordinate, using planar (X, Y) distance.
func StateFor(kind string, issueCoord, agentCoord wire.Position) State {
	dx := issueCoord.X - agentCoord.X
	dy := issueCoord.Y - agentCoord.Y
	distance := math.Sqrt(dx*dx + dy*dy)
	return State{Kind: kind, Bucket: BucketFor(distance)}
}
