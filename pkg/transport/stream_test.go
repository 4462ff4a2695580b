package transport

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/mash-protocol/base-station/pkg/activity"
	"github.com/mash-protocol/base-station/pkg/dispatch"
	"github.com/mash-protocol/base-station/pkg/issue"
	protolog "github.com/mash-protocol/base-station/pkg/log"
	"github.com/mash-protocol/base-station/pkg/policy"
	"github.com/mash-protocol/base-station/pkg/queue"
	"github.com/mash-protocol/base-station/pkg/reconcile"
	"github.com/mash-protocol/base-station/pkg/registry"
	"github.com/mash-protocol/base-station/pkg/wire"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

type nopSender struct{}

func (nopSender) SendMovementCommand(ctx context.Context, addr string, port int, taskID, issueKind string, coord wire.Position) error {
	return nil
}

func newStreamTestServer(t *testing.T, streamAddr string) (*Server, *registry.Registry, *issue.Store) {
	t.Helper()

	reg := registry.NewRegistry()
	issues := issue.NewStore()
	q := queue.New()
	active := dispatch.NewActiveTable()
	pol := policy.NewEngine(policy.NewTable(), nil)
	networkLog := activity.NewNetworkLog()
	commandLog := activity.NewCommandLog()
	disp := dispatch.New(reg, q, pol, active, nopSender{}, commandLog, zerolog.Nop())
	rec := reconcile.New(reg, issues, active, q, pol, disp, zerolog.Nop())

	cfg := Config{StreamAddr: streamAddr, ReadIdleTimeout: 200 * time.Millisecond}
	s := NewServer(cfg, reg, issues, disp, rec, networkLog, protolog.NoopLogger{}, zerolog.Nop())
	return s, reg, issues
}

func TestServeStream_QRScanAdmitsIssueAndDropsOnClose(t *testing.T) {
	s, reg, issues := newStreamTestServer(t, "127.0.0.1:0")

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	s.cfg.StreamAddr = ln.Addr().String()
	ln.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	errCh := make(chan error, 1)
	go func() { errCh <- s.ServeStream(ctx) }()
	time.Sleep(20 * time.Millisecond)

	reg.Upsert("R1", wire.DeviceKindDrone, "", "127.0.0.1", 9000, wire.Position{}, 1)

	conn, err := net.Dial("tcp", s.cfg.StreamAddr)
	require.NoError(t, err)

	frame := []byte(`{"message_id":"m1","timestamp":0,"message_type":"QR_SCAN","device_id":"R1","content":{"qr_code":"x","issue_type":"rust","coordinates":{"x":5,"y":5,"z":0}}}` + "\n")
	_, err = conn.Write(frame)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return len(issues.List()) == 1
	}, time.Second, 10*time.Millisecond)

	conn.Close()

	require.Eventually(t, func() bool {
		_, known := reg.Get("R1")
		return !known
	}, time.Second, 10*time.Millisecond, "closing the stream must drop any device recognized on it")

	cancel()
	<-errCh
}

func TestServeStream_TaskCompletedReleasesAgent(t *testing.T) {
	s, reg, issues := newStreamTestServer(t, "127.0.0.1:0")

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	s.cfg.StreamAddr = ln.Addr().String()
	ln.Close()

	reg.Upsert("R1", wire.DeviceKindRobot, "", "127.0.0.1", 9000, wire.Position{}, 1)
	iss, ok := issues.Admit(issue.KindRust, wire.Position{X: 1, Y: 1}, "R1")
	require.True(t, ok)
	reg.Assign("R1", "1")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.ServeStream(ctx)
	time.Sleep(20 * time.Millisecond)

	conn, err := net.Dial("tcp", s.cfg.StreamAddr)
	require.NoError(t, err)
	defer conn.Close()

	frame := []byte(`{"message_id":"m1","timestamp":0,"message_type":"TASK_COMPLETED","device_id":"R1","content":{"task_id":"1","status":"completed"}}` + "\n")
	_, err = conn.Write(frame)
	require.NoError(t, err)
	_ = iss

	require.Eventually(t, func() bool {
		dev, _ := reg.Get("R1")
		return dev.Available()
	}, time.Second, 10*time.Millisecond)
}
