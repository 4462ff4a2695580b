package reconcile

import (
	"context"
	"testing"

	"github.com/mash-protocol/base-station/pkg/dispatch"
	"github.com/mash-protocol/base-station/pkg/issue"
	"github.com/mash-protocol/base-station/pkg/policy"
	"github.com/mash-protocol/base-station/pkg/queue"
	"github.com/mash-protocol/base-station/pkg/registry"
	"github.com/mash-protocol/base-station/pkg/wire"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

type fakeDrainer struct{ called int }

func (f *fakeDrainer) Drain(ctx context.Context) { f.called++ }

func TestReconciler_HandleCompletion_ReleasesAgentAndResolvesIssue(t *testing.T) {
	reg := registry.NewRegistry()
	issues := issue.NewStore()
	active := dispatch.NewActiveTable()
	q := queue.New()
	pol := policy.NewEngine(policy.NewTable(), nil)
	drainer := &fakeDrainer{}

	reg.Upsert("R1", wire.DeviceKindRobot, "addr", "addr", 9000, wire.Position{}, 1)
	iss, ok := issues.Admit(issue.KindRust, wire.Position{X: 1, Y: 1}, "R1")
	require.True(t, ok)

	reg.Assign("R1", "1")
	task := active.Create("R1", iss, policy.State{Kind: "rust", Bucket: policy.BucketNear})
	require.Equal(t, uint64(1), task.ID)

	r := New(reg, issues, active, q, pol, drainer, zerolog.Nop())
	r.HandleCompletion(context.Background(), task.ID, StatusCompleted)

	dev, _ := reg.Get("R1")
	require.True(t, dev.Available())

	_, exists := issues.Get(iss.Fingerprint)
	require.False(t, exists, "issue must resolve once its only task completes")

	require.Equal(t, 1, drainer.called)
}

func TestReconciler_HandleCompletion_UnknownTaskIsNoOp(t *testing.T) {
	reg := registry.NewRegistry()
	issues := issue.NewStore()
	active := dispatch.NewActiveTable()
	q := queue.New()
	pol := policy.NewEngine(policy.NewTable(), nil)
	drainer := &fakeDrainer{}

	r := New(reg, issues, active, q, pol, drainer, zerolog.Nop())
	r.HandleCompletion(context.Background(), 999, StatusCompleted)

	require.Equal(t, 0, drainer.called)
}

func TestReconciler_HandleCompletion_IssueStaysOpenWhileOtherTaskPending(t *testing.T) {
	reg := registry.NewRegistry()
	issues := issue.NewStore()
	active := dispatch.NewActiveTable()
	q := queue.New()
	pol := policy.NewEngine(policy.NewTable(), nil)
	drainer := &fakeDrainer{}

	iss, _ := issues.Admit(issue.KindOverheatedCircuit, wire.Position{}, "R1")
	t1 := active.Create("R1", iss, policy.State{})
	active.Create("R2", iss, policy.State{})

	reg.Upsert("R1", wire.DeviceKindRobot, "a1", "a1", 9000, wire.Position{}, 1)
	reg.Assign("R1", "whatever")

	r := New(reg, issues, active, q, pol, drainer, zerolog.Nop())
	r.HandleCompletion(context.Background(), t1.ID, StatusCompleted)

	_, exists := issues.Get(iss.Fingerprint)
	require.True(t, exists, "issue must stay open while a second agent's task is still active")
}

func TestReconciler_HandleCompletion_FailedStatusSkipsPolicyUpdate(t *testing.T) {
	reg := registry.NewRegistry()
	issues := issue.NewStore()
	active := dispatch.NewActiveTable()
	q := queue.New()
	table := policy.NewTable()
	pol := policy.NewEngine(table, nil)
	drainer := &fakeDrainer{}

	reg.Upsert("R1", wire.DeviceKindRobot, "addr", "addr", 9000, wire.Position{}, 1)
	iss, _ := issues.Admit(issue.KindRust, wire.Position{X: 1, Y: 1}, "R1")
	reg.Assign("R1", "1")
	state := policy.State{Kind: "rust", Bucket: policy.BucketNear}
	task := active.Create("R1", iss, state)

	r := New(reg, issues, active, q, pol, drainer, zerolog.Nop())
	r.HandleCompletion(context.Background(), task.ID, "failed")

	dev, _ := reg.Get("R1")
	require.True(t, dev.Available(), "agent must still be released on a non-completed status")
	require.Equal(t, 0.0, table.Get(state, "R1"), "a failed task must not move the Q-value")
}
