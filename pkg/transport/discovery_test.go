package transport

import (
	"context"
	"encoding/json"
	"net"
	"strconv"
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

func TestServeDiscovery_ConnectionRequestRegistersDevice(t *testing.T) {
	reg := registry.NewRegistry()
	issues := issue.NewStore()
	networkLog := activity.NewNetworkLog()

	listenerConn, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.ParseIP("127.0.0.1"), Port: 0})
	require.NoError(t, err)
	listenAddr := listenerConn.LocalAddr().String()
	listenerConn.Close()

	cfg := Config{DiscoveryAddr: listenAddr}
	s := NewServer(cfg, reg, issues, nil, nil, networkLog, protolog.NoopLogger{}, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	errCh := make(chan error, 1)
	go func() { errCh <- s.ServeDiscovery(ctx) }()
	time.Sleep(20 * time.Millisecond)

	// Bind an ephemeral reply port to stand in for the device's own stream
	// listener, so sendConnectionAck has somewhere to dial.
	ackLn, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ackLn.Close()
	_, ackPortStr, _ := net.SplitHostPort(ackLn.Addr().String())
	ackPort, err := strconv.Atoi(ackPortStr)
	require.NoError(t, err)

	battery := 0.9
	env := wire.Envelope{
		MessageID:     "m1",
		MessageType:   wire.MessageConnectionRequest,
		DeviceID:      "R1",
		DeviceType:    wire.DeviceKindRobot,
		Position:      &wire.Position{X: 1, Y: 2},
		BatteryHealth: &battery,
		ReplyTCPPort:  ackPort,
	}

	data, err := json.Marshal(env)
	require.NoError(t, err)

	conn, err := net.Dial("udp", listenAddr)
	require.NoError(t, err)
	defer conn.Close()
	_, err = conn.Write(data)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		_, ok := reg.Get("R1")
		return ok
	}, time.Second, 10*time.Millisecond)

	dev, _ := reg.Get("R1")
	require.Equal(t, wire.DeviceKindRobot, dev.Kind)
	require.Equal(t, 0.9, dev.Battery)

	cancel()
	<-errCh
}

func TestServeDiscovery_HeartbeatTouchesKnownDevice(t *testing.T) {
	reg := registry.NewRegistry()
	issues := issue.NewStore()
	networkLog := activity.NewNetworkLog()
	reg.Upsert("R1", wire.DeviceKindRobot, "", "127.0.0.1", 9000, wire.Position{}, 0.5)

	listenerConn, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.ParseIP("127.0.0.1"), Port: 0})
	require.NoError(t, err)
	listenAddr := listenerConn.LocalAddr().String()
	listenerConn.Close()

	cfg := Config{DiscoveryAddr: listenAddr}
	s := NewServer(cfg, reg, issues, nil, nil, networkLog, protolog.NoopLogger{}, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.ServeDiscovery(ctx)
	time.Sleep(20 * time.Millisecond)

	battery := 0.77
	env := wire.Envelope{
		MessageID:     "m2",
		MessageType:   wire.MessageHeartbeat,
		DeviceID:      "R1",
		BatteryHealth: &battery,
	}
	data, err := json.Marshal(env)
	require.NoError(t, err)

	conn, err := net.Dial("udp", listenAddr)
	require.NoError(t, err)
	defer conn.Close()
	_, err = conn.Write(data)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		dev, _ := reg.Get("R1")
		return dev.Battery == 0.77
	}, time.Second, 10*time.Millisecond)
}

func TestServeDiscovery_HeartbeatFallsBackToAddressWithoutIdentity(t *testing.T) {
	reg := registry.NewRegistry()
	issues := issue.NewStore()
	networkLog := activity.NewNetworkLog()
	reg.Upsert("R1", wire.DeviceKindRobot, "", "127.0.0.1", 9000, wire.Position{}, 0.5)

	listenerConn, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.ParseIP("127.0.0.1"), Port: 0})
	require.NoError(t, err)
	listenAddr := listenerConn.LocalAddr().String()
	listenerConn.Close()

	cfg := Config{DiscoveryAddr: listenAddr}
	s := NewServer(cfg, reg, issues, nil, nil, networkLog, protolog.NoopLogger{}, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.ServeDiscovery(ctx)
	time.Sleep(20 * time.Millisecond)

	// No DeviceID/SenderID at all: the listener must fall back to matching
	// by the declared sender_ip (§4.2 touch_by_address).
	battery := 0.42
	env := wire.Envelope{
		MessageID:     "m3",
		MessageType:   wire.MessageHeartbeat,
		SenderIP:      "127.0.0.1",
		BatteryHealth: &battery,
	}
	data, err := json.Marshal(env)
	require.NoError(t, err)

	conn, err := net.Dial("udp", listenAddr)
	require.NoError(t, err)
	defer conn.Close()
	_, err = conn.Write(data)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		dev, _ := reg.Get("R1")
		return dev.Battery == 0.42
	}, time.Second, 10*time.Millisecond)
}
