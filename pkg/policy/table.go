package policy

import (
	"sync"

	"github.com/mash-protocol/base-station/pkg/persistence"
)

// Table is the tabular value function Q[(kind, bucket)][agent_id] (§4.5).
// Unseen (state, agent) pairs default to zero, matching an optimistic
// initialization of "no data yet" rather than "known bad".
type Table struct {
	mu     sync.RWMutex
	values map[State]map[string]float64
}

// NewTable returns an empty Q-table.
func NewTable() *Table {
	return &Table{values: make(map[State]map[string]float64)}
}

// Get returns the current value for (state, agent), defaulting to zero.
func (t *Table) Get(s State, agentID string) float64 {
	t.mu.RLock()
	defer t.mu.RUnlock()

	row, ok := t.values[s]
	if !ok {
		return 0
	}
	return row[agentID]
}

// Update applies Q[s][a] += alpha * (reward - Q[s][a]) (§4.5). There is no
// bootstrap term and no discount factor; each episode is treated as a
// one-step bandit.
func (t *Table) Update(s State, agentID string, reward, alpha float64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	row, ok := t.values[s]
	if !ok {
		row = make(map[string]float64)
		t.values[s] = row
	}
	row[agentID] += alpha * (reward - row[agentID])
}

// Snapshot flattens the table into persistence.QEntry rows for saving.
func (t *Table) Snapshot() []persistence.QEntry {
	t.mu.RLock()
	defer t.mu.RUnlock()

	var out []persistence.QEntry
	for s, row := range t.values {
		for agentID, v := range row {
			out = append(out, persistence.QEntry{
				Kind:    s.Kind,
				Bucket:  string(s.Bucket),
				AgentID: agentID,
				Value:   v,
			})
		}
	}
	return out
}

// LoadSnapshot replaces the table's contents with the given rows, for
// startup restore. It does not merge with any existing state.
func (t *Table) LoadSnapshot(entries []persistence.QEntry) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.values = make(map[State]map[string]float64, len(entries))
	for _, e := range entries {
		s := State{Kind: e.Kind, Bucket: Bucket(e.Bucket)}
		row, ok := t.values[s]
		if !ok {
			row = make(map[string]float64)
			t.values[s] = row
		}
		row[e.AgentID] = e.Value
	}
}
