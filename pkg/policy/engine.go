package policy

import (
	"fmt"
	"math/rand"
	"sync"

	"github.com/mash-protocol/base-station/pkg/persistence"
	"github.com/mash-protocol/base-station/pkg/wire"
)

// DefaultEpsilon is the default explore probability (§4.5).
const DefaultEpsilon = 0.15

// DefaultAlpha is the default learning rate (§4.5).
const DefaultAlpha = 0.1

// DefaultSnapshotProbability is the chance, after each update, that the
// Q-table is persisted to disk (§4.5 "Persistence"). Snapshotting every
// update would serialize every dispatch decision behind disk I/O; rolling
// for it keeps the common case cheap while still bounding how much
// learning a crash can lose.
const DefaultSnapshotProbability = 0.1

// Candidate is an agent eligible for selection: its ID, current position,
// and registration sequence. Seq is the registry's insertion-order counter
// (registry.Device.Seq), carried through so the exploit tie-break can use
// arrival order per §4.5 rather than an arbitrary string comparison.
type Candidate struct {
	ID       string
	Position wire.Position
	Seq      uint64
}

// Selection is one chosen agent together with the state it occupied at
// selection time, so the dispatcher can hand it back on completion for the
// value update.
type Selection struct {
	AgentID string
	State   State
}

// Engine is the ε-greedy tabular policy. One Engine is shared by every
// dispatch decision; its table has its own lock, independent of the
// registry and active-task table (§5 lock order: registry → active-task
// table → Q-table).
type Engine struct {
	table               *Table
	epsilon             float64
	alpha               float64
	snapshotProbability float64
	store               *persistence.QTableStore

	randMu sync.Mutex
	rand   *rand.Rand
}

// NewEngine returns an engine with the given table and defaults. store may
// be nil to disable persistence (useful in tests).
func NewEngine(table *Table, store *persistence.QTableStore) *Engine {
	return &Engine{
		table:               table,
		epsilon:             DefaultEpsilon,
		alpha:               DefaultAlpha,
		snapshotProbability: DefaultSnapshotProbability,
		store:               store,
		rand:                rand.New(rand.NewSource(1)),
	}
}

// SetEpsilon overrides the explore probability.
func (e *Engine) SetEpsilon(epsilon float64) { e.epsilon = epsilon }

// SetAlpha overrides the learning rate.
func (e *Engine) SetAlpha(alpha float64) { e.alpha = alpha }

// SetSnapshotProbability overrides the chance of persisting on each Update.
func (e *Engine) SetSnapshotProbability(p float64) { e.snapshotProbability = p }

// Restore loads a previously persisted table, if a store is configured. A
// missing snapshot is not an error; the table simply starts empty.
func (e *Engine) Restore() error {
	if e.store == nil {
		return nil
	}
	snapshot, err := e.store.Load()
	if err != nil {
		return fmt.Errorf("policy: restore snapshot: %w", err)
	}
	e.table.LoadSnapshot(snapshot.Entries)
	return nil
}

// Select chooses up to n agents from candidates for an issue of the given
// kind at issueCoord. Each slot independently rolls explore-vs-exploit:
// explore draws uniformly from the remaining pool; exploit takes the
// remaining candidate with the highest current Q-value, ties broken by
// insertion order (§4.5, lower Candidate.Seq wins). Either branch removes
// its pick from the pool, so a batch never selects the same agent twice.
// Returns fewer than n selections if candidates is exhausted first.
func (e *Engine) Select(kind string, issueCoord wire.Position, candidates []Candidate, n int) []Selection {
	if n <= 0 || len(candidates) == 0 {
		return nil
	}

	pool := make([]Candidate, len(candidates))
	copy(pool, candidates)

	states := make(map[string]State, len(pool))
	for _, c := range pool {
		states[c.ID] = StateFor(kind, issueCoord, c.Position)
	}

	out := make([]Selection, 0, n)
	for len(out) < n && len(pool) > 0 {
		idx := e.pickIndex(pool, states)
		chosen := pool[idx]
		pool = append(pool[:idx], pool[idx+1:]...)
		out = append(out, Selection{AgentID: chosen.ID, State: states[chosen.ID]})
	}
	return out
}

func (e *Engine) pickIndex(pool []Candidate, states map[string]State) int {
	e.randMu.Lock()
	explore := e.rand.Float64() < e.epsilon
	var exploreIdx int
	if explore {
		exploreIdx = e.rand.Intn(len(pool))
	}
	e.randMu.Unlock()

	if explore {
		return exploreIdx
	}
	return bestIndex(pool, states, e.table)
}

func bestIndex(pool []Candidate, states map[string]State, table *Table) int {
	best := 0
	bestValue := table.Get(states[pool[0].ID], pool[0].ID)
	for i := 1; i < len(pool); i++ {
		v := table.Get(states[pool[i].ID], pool[i].ID)
		if v > bestValue || (v == bestValue && pool[i].Seq < pool[best].Seq) {
			bestValue = v
			best = i
		}
	}
	return best
}

// Update applies the reward for a completed task's selection and, with
// probability snapshotProbability, persists the table if a store is
// configured (§4.5). Reward is negative completion seconds (§4.5);
// persistence errors are returned for the caller to log but never block the
// reward update itself.
func (e *Engine) Update(sel Selection, reward float64) error {
	e.table.Update(sel.State, sel.AgentID, reward, e.alpha)

	if e.store == nil || !e.rollSnapshot() {
		return nil
	}
	if err := e.store.Save(persistence.QTableSnapshot{Entries: e.table.Snapshot()}); err != nil {
		return fmt.Errorf("policy: persist snapshot: %w", err)
	}
	return nil
}

func (e *Engine) rollSnapshot() bool {
	e.randMu.Lock()
	defer e.randMu.Unlock()
	return e.rand.Float64() < e.snapshotProbability
}
