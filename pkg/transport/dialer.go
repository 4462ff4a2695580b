package transport

import (
	"context"
	"fmt"
	"net"
	"strconv"

	protolog "github.com/mash-protocol/base-station/pkg/log"
	"github.com/mash-protocol/base-station/pkg/wire"
)

// sendConnectionAck dials the device's reply address and sends a
// CONNECTION_ACK frame (§4.1). One-shot connection, short connect timeout,
// no retry — the transport layer never retries; that's a dispatcher
// concern for commands, and simply doesn't apply to acks.
func (s *Server) sendConnectionAck(ctx context.Context, addr, receiverID string) error {
	conn, err := dialTimeout(ctx, addr, s.cfg.ConnectTimeout)
	if err != nil {
		return fmt.Errorf("transport: dial %s for ack: %w", addr, err)
	}
	defer conn.Close()

	data, err := wire.EncodeConnectionAck(s.cfg.BaseStationIP, receiverID, addrString(conn.LocalAddr()))
	if err != nil {
		return fmt.Errorf("transport: encode CONNECTION_ACK: %w", err)
	}

	if _, err := conn.Write(data); err != nil {
		return fmt.Errorf("transport: send CONNECTION_ACK to %s: %w", addr, err)
	}

	s.recordFrame("tcp", "out", wire.MessageConnectionAck, addr)
	return nil
}

// SendMovementCommand implements dispatch.Sender: it dials the agent's
// address and delivers a MOVEMENT_COMMAND carrying the task ID (§4.1, §6).
// A one-shot connection is opened per command; failures are returned to
// the dispatcher, which decides whether to release the tentative
// assignment (§4.6).
func (s *Server) SendMovementCommand(ctx context.Context, addr string, port int, taskID, issueKind string, coord wire.Position) error {
	target := net.JoinHostPort(addr, strconv.Itoa(port))

	conn, err := dialTimeout(ctx, target, s.cfg.ConnectTimeout)
	if err != nil {
		return fmt.Errorf("transport: dial %s for MOVEMENT_COMMAND: %w", target, err)
	}
	defer conn.Close()

	data, err := wire.EncodeMovementCommand(taskID, s.cfg.BaseStationIP, issueKind, coord)
	if err != nil {
		return fmt.Errorf("transport: encode MOVEMENT_COMMAND: %w", err)
	}

	if _, err := conn.Write(data); err != nil {
		return fmt.Errorf("transport: send MOVEMENT_COMMAND to %s: %w", target, err)
	}

	s.recordFrame("tcp", "out", wire.MessageMovementCommand, target)
	s.logEvent("", protolog.LayerDispatch, protolog.DirectionOut, &protolog.FrameEvent{
		Size:        len(data),
		MessageType: string(wire.MessageMovementCommand),
	})
	return nil
}
