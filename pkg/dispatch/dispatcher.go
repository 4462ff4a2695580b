package dispatch

import (
	"context"
	"strconv"
	"time"

	"github.com/mash-protocol/base-station/pkg/activity"
	"github.com/mash-protocol/base-station/pkg/issue"
	"github.com/mash-protocol/base-station/pkg/policy"
	"github.com/mash-protocol/base-station/pkg/queue"
	"github.com/mash-protocol/base-station/pkg/registry"
	"github.com/mash-protocol/base-station/pkg/wire"
	"github.com/rs/zerolog"
)

// Sender delivers a MOVEMENT_COMMAND to an agent over the outbound
// transport. Implemented by pkg/transport's one-shot dialer.
type Sender interface {
	SendMovementCommand(ctx context.Context, addr string, port int, taskID, issueKind string, coord wire.Position) error
}

// Dispatcher implements the dispatch-or-enqueue decision and the queue
// drain (§4.6). It is the only component that creates Registry assignments
// and active tasks; the reconciler clears them when a task completes.
type Dispatcher struct {
	registry   *registry.Registry
	queue      *queue.Queue
	policy     *policy.Engine
	active     *ActiveTable
	sender     Sender
	commandLog *activity.CommandLog
	log        zerolog.Logger
}

// New returns a dispatcher wired to the given components.
func New(reg *registry.Registry, q *queue.Queue, pol *policy.Engine, active *ActiveTable, sender Sender, commandLog *activity.CommandLog, log zerolog.Logger) *Dispatcher {
	return &Dispatcher{registry: reg, queue: q, policy: pol, active: active, sender: sender, commandLog: commandLog, log: log}
}

// OnIssue runs the entry point for a freshly admitted issue (§4.6): select
// up to the required number of agents; if fewer than that many are
// available, enqueue the whole issue untouched. Otherwise dispatch to every
// selected agent, re-enqueueing the shortfall if any emission fails.
func (d *Dispatcher) OnIssue(ctx context.Context, iss *issue.Issue) {
	candidates := d.availableCandidates(iss.Kind)
	selections := d.policy.Select(string(iss.Kind), iss.Coordinate, candidates, iss.RequiredCount)

	if len(selections) < iss.RequiredCount {
		d.queue.Enqueue(iss, iss.RequiredCount)
		return
	}

	dispatched := d.assignAndEmit(ctx, iss, selections)
	if dispatched < iss.RequiredCount {
		d.queue.Enqueue(iss, iss.RequiredCount-dispatched)
	}
}

// Drain runs the queue's single-flight drain (§4.4), reusing the same
// selection/emission path as OnIssue for each head entry.
func (d *Dispatcher) Drain(ctx context.Context) {
	d.queue.Drain(func(e queue.Entry) (int, bool) {
		candidates := d.availableCandidates(e.Issue.Kind)
		selections := d.policy.Select(string(e.Issue.Kind), e.Issue.Coordinate, candidates, e.Required)
		if len(selections) < e.Required {
			return 0, false
		}
		dispatched := d.assignAndEmit(ctx, e.Issue, selections)
		return dispatched, dispatched == e.Required
	})
}

func (d *Dispatcher) availableCandidates(kind issue.Kind) []policy.Candidate {
	var deviceKind wire.DeviceKind
	switch kind {
	case issue.KindRust, issue.KindTiltedAntenna, issue.KindOverheatedCircuit:
		deviceKind = wire.DeviceKindRobot
	}

	devices := d.registry.FindAvailable(deviceKind)
	candidates := make([]policy.Candidate, len(devices))
	for i, dev := range devices {
		candidates[i] = policy.Candidate{ID: dev.ID, Position: dev.Position, Seq: dev.Seq}
	}
	return candidates
}

// assignAndEmit assigns and dispatches a command to each selected agent. A
// Task is recorded before its command is sent (the command carries its ID);
// if emission fails, the task is removed, the tentative assignment is
// released, and the slot is not retried
// within this batch (§4.6) — it falls back into the queue by the caller
// re-enqueueing the shortfall.
func (d *Dispatcher) assignAndEmit(ctx context.Context, iss *issue.Issue, selections []policy.Selection) int {
	dispatched := 0
	for _, sel := range selections {
		dev, ok := d.registry.Get(sel.AgentID)
		if !ok {
			continue
		}

		task := d.active.Create(sel.AgentID, iss, sel.State)
		if !d.registry.Assign(sel.AgentID, strconv.FormatUint(task.ID, 10)) {
			d.active.Remove(task.ID)
			continue
		}

		err := d.sender.SendMovementCommand(ctx, dev.IP, dev.ReplyPort, strconv.FormatUint(task.ID, 10), string(iss.Kind), iss.Coordinate)
		d.commandLog.Record(activity.CommandRecord{
			TaskID:     task.ID,
			AgentID:    sel.AgentID,
			IssueKind:  string(iss.Kind),
			Coordinate: iss.Coordinate,
			SentAt:     time.Now(),
			Success:    err == nil,
			Error:      errString(err),
		})

		if err != nil {
			d.log.Warn().Err(err).Str("agent_id", sel.AgentID).Uint64("task_id", task.ID).Msg("command emission failed")
			d.registry.Release(sel.AgentID)
			d.active.Remove(task.ID)
			continue
		}

		dispatched++
	}
	return dispatched
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
