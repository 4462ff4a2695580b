package activity

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRing_SnapshotBeforeFull(t *testing.T) {
	r := NewRing[int](3)
	r.Push(1)
	r.Push(2)
	require.Equal(t, []int{1, 2}, r.Snapshot())
}

func TestRing_OverwritesOldestOnceFull(t *testing.T) {
	r := NewRing[int](3)
	r.Push(1)
	r.Push(2)
	r.Push(3)
	r.Push(4)
	require.Equal(t, []int{2, 3, 4}, r.Snapshot())
}

func TestRing_Clear(t *testing.T) {
	r := NewRing[int](2)
	r.Push(1)
	r.Push(2)
	r.Clear()
	require.Empty(t, r.Snapshot())
}

func TestCommandLog_RecordAndSnapshot(t *testing.T) {
	log := NewCommandLog()
	log.Record(CommandRecord{TaskID: 1, AgentID: "R1", Success: true})
	require.Len(t, log.Snapshot(), 1)
	log.Clear()
	require.Empty(t, log.Snapshot())
}
