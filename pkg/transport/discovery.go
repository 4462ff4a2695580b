package transport

import (
	"context"
	"net"
	"strconv"

	protolog "github.com/mash-protocol/base-station/pkg/log"
	"github.com/mash-protocol/base-station/pkg/wire"
)

const maxDatagramSize = 64 * 1024

// ServeDiscovery runs the UDP discovery/heartbeat/position listener until
// ctx is cancelled (§4.1), then returns ctx's error. Malformed datagrams are
// dropped and logged, not surfaced as an error; otherwise only an address
// or bind failure returns an error, which is fatal at startup (§7).
func (s *Server) ServeDiscovery(ctx context.Context) error {
	addr, err := net.ResolveUDPAddr("udp", s.cfg.DiscoveryAddr)
	if err != nil {
		return err
	}
	conn, err := net.ListenUDP("udp", addr)
	if err != nil {
		return err
	}
	defer conn.Close()

	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	buf := make([]byte, maxDatagramSize)
	for {
		n, remote, err := conn.ReadFromUDP(buf)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			s.log.Warn().Err(err).Msg("discovery read failed")
			continue
		}

		data := make([]byte, n)
		copy(data, buf[:n])
		s.handleDatagram(ctx, conn, remote, data)
	}
}

func (s *Server) handleDatagram(ctx context.Context, conn *net.UDPConn, remote *net.UDPAddr, data []byte) {
	env, err := wire.DecodeEnvelope(data)
	if err != nil {
		s.logError(protolog.LayerTransport, "decode udp datagram", err)
		return
	}

	if env.MessageType != wire.MessagePositionUpdate {
		// POSITION_UPDATE is excluded from the network log ring by design
		// (§6): it fires far too often to be useful operator history.
		s.recordFrame("udp", "in", env.MessageType, remote.String())
	}

	switch env.MessageType {
	case wire.MessageConnectionRequest:
		s.handleConnectionRequest(ctx, remote, env)
	case wire.MessageHeartbeat:
		s.handleHeartbeat(remote, env)
	case wire.MessagePositionUpdate:
		s.handlePositionUpdate(remote, env)
	default:
		s.log.Debug().Str("message_type", string(env.MessageType)).Msg("unexpected datagram message type")
	}
}

func (s *Server) handleConnectionRequest(ctx context.Context, remote *net.UDPAddr, env *wire.Envelope) {
	id := env.Identity()
	if id == "" || env.Position == nil || env.ReplyTCPPort == 0 {
		s.log.Warn().Str("remote", remote.String()).Msg("CONNECTION_REQUEST missing required fields")
		return
	}

	ip := env.SenderIP
	if ip == "" {
		ip = remote.IP.String()
	}

	battery := 0.0
	if env.BatteryHealth != nil {
		battery = *env.BatteryHealth
	}

	s.registry.Upsert(id, env.DeviceType, "", ip, env.ReplyTCPPort, *env.Position, battery)

	ackAddr := net.JoinHostPort(ip, strconv.Itoa(env.ReplyTCPPort))
	if err := s.sendConnectionAck(ctx, ackAddr, id); err != nil {
		// Ack failure is only logged; the device record carries no status
		// for it. The device stays registered so later heartbeats can
		// still refresh it.
		s.log.Warn().Err(err).Str("device_id", id).Str("addr", ackAddr).Msg("CONNECTION_ACK send failed")
		return
	}
}

func (s *Server) handleHeartbeat(remote *net.UDPAddr, env *wire.Envelope) {
	id := env.Identity()
	var battery *float64
	if env.BatteryHealth != nil {
		battery = env.BatteryHealth
	}

	var touched bool
	if id != "" {
		touched = s.registry.Touch(id, nil, battery)
	}
	if !touched {
		// No usable identity on the frame (or it's unknown): fall back to
		// matching by the device's last known address, per §4.2
		// touch_by_address.
		touched = s.registry.TouchByAddress(addrIP(remote, env), nil, battery)
	}
	if !touched {
		s.log.Debug().Str("remote", remote.String()).Msg("HEARTBEAT from unknown device")
	}
}

func (s *Server) handlePositionUpdate(remote *net.UDPAddr, env *wire.Envelope) {
	if env.Position == nil {
		return
	}

	// Position updates silently refresh liveness; they are intentionally
	// not added to the network log ring (§6).
	id := env.Identity()
	var touched bool
	if id != "" {
		touched = s.registry.Touch(id, env.Position, nil)
	}
	if !touched {
		s.registry.TouchByAddress(addrIP(remote, env), env.Position, nil)
	}
}

// addrIP picks the address a datagram's sender is known by for the
// touch_by_address fallback: the frame's own declared sender_ip if present,
// otherwise the UDP packet's source address (§4.1, §4.2).
func addrIP(remote *net.UDPAddr, env *wire.Envelope) string {
	if env.SenderIP != "" {
		return env.SenderIP
	}
	return remote.IP.String()
}
