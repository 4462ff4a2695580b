package transport

import (
	"bufio"
	"context"
	"net"
	"testing"
	"time"

	"github.com/mash-protocol/base-station/pkg/activity"
	"github.com/mash-protocol/base-station/pkg/issue"
	protolog "github.com/mash-protocol/base-station/pkg/log"
	"github.com/mash-protocol/base-station/pkg/registry"
	"github.com/mash-protocol/base-station/pkg/wire"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestSendMovementCommand_DeliversFrame(t *testing.T) {
	reg := registry.NewRegistry()
	issues := issue.NewStore()
	networkLog := activity.NewNetworkLog()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	received := make(chan string, 1)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		line, _ := bufio.NewReader(conn).ReadString('\n')
		received <- line
	}()

	cfg := Config{BaseStationIP: "10.0.0.1", ConnectTimeout: time.Second}
	s := NewServer(cfg, reg, issues, nil, nil, networkLog, protolog.NoopLogger{}, zerolog.Nop())

	host, portStr, err := net.SplitHostPort(ln.Addr().String())
	require.NoError(t, err)
	port := mustPort(t, portStr)

	err = s.SendMovementCommand(context.Background(), host, port, "42", "rust", wire.Position{X: 3, Y: 4})
	require.NoError(t, err)

	select {
	case line := <-received:
		require.Contains(t, line, `"message_id":"42"`)
		require.Contains(t, line, `MOVEMENT_COMMAND`)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for MOVEMENT_COMMAND")
	}

	frames := networkLog.Snapshot()
	require.Len(t, frames, 1)
	require.Equal(t, wire.MessageMovementCommand, frames[0].MessageType)
}

func mustPort(t *testing.T, s string) int {
	t.Helper()
	n, err := net.LookupPort("tcp", s)
	require.NoError(t, err)
	return n
}
