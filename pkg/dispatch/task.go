// Package dispatch owns Task creation, the active-task table, the
// dispatch-or-enqueue decision for newly admitted issues, and the
// single-flight queue drain (§4.6). It sits between the policy engine and
// the registry in the lock order: registry → active-task table → Q-table.
package dispatch

import (
	"sync"
	"time"

	"github.com/mash-protocol/base-station/pkg/issue"
	"github.com/mash-protocol/base-station/pkg/policy"
)

// Task is one agent's in-progress assignment to an issue.
type Task struct {
	ID         uint64
	AgentID    string
	Issue      *issue.Issue
	State      policy.State
	AssignedAt time.Time
}

// ActiveTable is the mutex-guarded table of in-progress tasks, keyed by ID.
// A registry Device's TaskID is a foreign key into this table; neither side
// holds a pointer to the other (§9 design note: no cyclic references).
type ActiveTable struct {
	mu    sync.Mutex
	tasks map[uint64]*Task
	next  uint64
}

// NewActiveTable returns an empty active-task table.
func NewActiveTable() *ActiveTable {
	return &ActiveTable{tasks: make(map[uint64]*Task)}
}

// Create allocates a new task ID and records the task.
func (a *ActiveTable) Create(agentID string, iss *issue.Issue, state policy.State) *Task {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.next++
	task := &Task{ID: a.next, AgentID: agentID, Issue: iss, State: state, AssignedAt: time.Now()}
	a.tasks[task.ID] = task
	return task
}

// Get returns the task for id.
func (a *ActiveTable) Get(id uint64) (*Task, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	t, ok := a.tasks[id]
	return t, ok
}

// Remove deletes a task once it completes or is abandoned.
func (a *ActiveTable) Remove(id uint64) (*Task, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	t, ok := a.tasks[id]
	if ok {
		delete(a.tasks, id)
	}
	return t, ok
}

// RemoveByAgent removes whatever task the given agent holds, if any.
// Device eviction and stream drops do not call it; their tasks stay in the
// table until a completion for them arrives.
func (a *ActiveTable) RemoveByAgent(agentID string) (*Task, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	for id, t := range a.tasks {
		if t.AgentID == agentID {
			delete(a.tasks, id)
			return t, true
		}
	}
	return nil, false
}

// Snapshot returns every active task, for the status surface.
func (a *ActiveTable) Snapshot() []Task {
	a.mu.Lock()
	defer a.mu.Unlock()

	out := make([]Task, 0, len(a.tasks))
	for _, t := range a.tasks {
		out = append(out, *t)
	}
	return out
}
