// Package reconcile handles TASK_COMPLETED reports: it closes out the
// active task, rewards the policy engine, releases the agent, resolves the
// issue once every required agent has reported in, and re-triggers the
// queue drain so the freed agent can pick up pending work (§4.7).
package reconcile

import (
	"context"
	"time"

	"github.com/mash-protocol/base-station/pkg/dispatch"
	"github.com/mash-protocol/base-station/pkg/issue"
	"github.com/mash-protocol/base-station/pkg/policy"
	"github.com/mash-protocol/base-station/pkg/queue"
	"github.com/mash-protocol/base-station/pkg/registry"
	"github.com/rs/zerolog"
)

// Drainer re-runs the dispatcher's queue drain after state frees up.
type Drainer interface {
	Drain(ctx context.Context)
}

// Reconciler wires a TASK_COMPLETED report back into registry, active-task,
// and policy state.
type Reconciler struct {
	registry *registry.Registry
	issues   *issue.Store
	active   *dispatch.ActiveTable
	queue    *queue.Queue
	policy   *policy.Engine
	drainer  Drainer
	log      zerolog.Logger
}

// New returns a reconciler wired to the given components.
func New(reg *registry.Registry, issues *issue.Store, active *dispatch.ActiveTable, q *queue.Queue, pol *policy.Engine, drainer Drainer, log zerolog.Logger) *Reconciler {
	return &Reconciler{registry: reg, issues: issues, active: active, queue: q, policy: pol, drainer: drainer, log: log}
}

// StatusCompleted, or an empty status, is what feeds the policy engine a
// reward; any other value (e.g. "failed") still releases the agent and
// resolves bookkeeping but skips the Q-update, so a failed run doesn't
// teach the model a fast "success" (§4.7, §9 design note).
const StatusCompleted = "completed"

// HandleCompletion processes a TASK_COMPLETED report for taskID. It is a
// no-op for an unknown task ID: a duplicate or late report for a task
// already reconciled is not an error (§4.7). status other than
// StatusCompleted still releases the agent but skips the reward update.
func (r *Reconciler) HandleCompletion(ctx context.Context, taskID uint64, status string) {
	task, ok := r.active.Remove(taskID)
	if !ok {
		return
	}

	r.registry.Release(task.AgentID)

	if status == "" || status == StatusCompleted {
		reward := -time.Since(task.AssignedAt).Seconds()
		sel := policy.Selection{AgentID: task.AgentID, State: task.State}
		if err := r.policy.Update(sel, reward); err != nil {
			r.log.Warn().Err(err).Uint64("task_id", taskID).Msg("policy update failed")
		}
	}

	r.maybeResolveIssue(task.Issue)

	if r.drainer != nil {
		r.drainer.Drain(ctx)
	}
}

// maybeResolveIssue removes the issue from the store once no active task
// and no queued entry still reference it: that's the condition under which
// every required agent has reported completion (§4.3, §4.7).
func (r *Reconciler) maybeResolveIssue(iss *issue.Issue) {
	if iss == nil {
		return
	}

	for _, t := range r.active.Snapshot() {
		if t.Issue.Fingerprint == iss.Fingerprint {
			return
		}
	}
	for _, e := range r.queue.Snapshot() {
		if e.Issue.Fingerprint == iss.Fingerprint {
			return
		}
	}
	r.issues.Resolve(iss.Fingerprint)
}
