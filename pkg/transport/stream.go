package transport

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/mash-protocol/base-station/pkg/issue"
	protolog "github.com/mash-protocol/base-station/pkg/log"
	"github.com/mash-protocol/base-station/pkg/wire"
)

// ServeStream runs the TCP inbound stream listener until ctx is cancelled
// (§4.1). Every accepted connection is handled in its own goroutine;
// listener shutdown is cooperative via ctx (§5).
func (s *Server) ServeStream(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.StreamAddr)
	if err != nil {
		return err
	}
	defer ln.Close()

	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			s.log.Warn().Err(err).Msg("stream accept failed")
			continue
		}
		go s.handleStreamConn(ctx, conn)
	}
}

func (s *Server) handleStreamConn(ctx context.Context, conn net.Conn) {
	defer conn.Close()

	remote := addrString(conn.RemoteAddr())
	connID := newConnID()

	s.logEvent(connID, protolog.LayerTransport, protolog.DirectionIn, nil)

	reader := newFrameReader(conn, s.cfg.ReadIdleTimeout)
	for {
		line, err := reader.readFrame()
		if err != nil {
			s.log.Debug().Err(err).Str("remote", remote).Msg("stream connection closed")
			break
		}
		if len(line) == 0 {
			continue
		}
		s.handleStreamFrame(ctx, conn, remote, line)
	}

	dropped := s.registry.DropByAddress(remote)
	for _, id := range dropped {
		s.log.Info().Str("device_id", id).Str("remote", remote).Msg("device stream closed")
	}
}

func (s *Server) handleStreamFrame(ctx context.Context, conn net.Conn, remote string, line []byte) {
	env, err := wire.DecodeEnvelope(line)
	if err != nil {
		s.logError(protolog.LayerTransport, "decode stream frame", err)
		return
	}

	s.recordFrame("tcp", "in", env.MessageType, remote)

	if id := env.Identity(); id != "" {
		s.registry.SetStreamAddr(id, remote)
	}

	switch env.MessageType {
	case wire.MessageQRScan:
		s.handleQRScan(ctx, env)
	case wire.MessageTaskCompleted:
		s.handleTaskCompleted(ctx, env)
	default:
		s.log.Debug().Str("message_type", string(env.MessageType)).Str("remote", remote).Msg("unexpected stream message type")
	}
}

func (s *Server) handleQRScan(ctx context.Context, env *wire.Envelope) {
	content, err := wire.DecodeQRScan(env)
	if err != nil {
		// Missing issue_type or coordinates is an error for this frame
		// only; the connection keeps processing subsequent frames (§6).
		s.logError(protolog.LayerDispatch, "decode QR_SCAN", err)
		return
	}

	kind := issue.Kind(content.IssueType)
	iss, admitted := s.issues.Admit(kind, *content.Coordinates, env.Identity())
	if !admitted {
		return
	}
	s.dispatcher.OnIssue(ctx, iss)
}

func (s *Server) handleTaskCompleted(ctx context.Context, env *wire.Envelope) {
	content, err := wire.DecodeTaskCompleted(env)
	if err != nil {
		s.logError(protolog.LayerDispatch, "decode TASK_COMPLETED", err)
		return
	}

	taskID, err := strconv.ParseUint(content.TaskID, 10, 64)
	if err != nil {
		s.log.Warn().Str("task_id", content.TaskID).Msg("TASK_COMPLETED with non-numeric task_id")
		return
	}

	s.reconciler.HandleCompletion(ctx, taskID, content.Status)
}

// frameReader reads newline-delimited JSON frames off a net.Conn, applying
// a read deadline before every underlying Read rather than once per line.
// That lets it tell apart the two kinds of timeout §4.1 distinguishes:
// idle between frames, with nothing buffered, is not an error and the
// caller keeps waiting; idle mid-frame, with a partial line already
// buffered, closes the connection.
type frameReader struct {
	conn    net.Conn
	timeout time.Duration
	buf     bytes.Buffer
	scratch [4096]byte
}

func newFrameReader(conn net.Conn, timeout time.Duration) *frameReader {
	return &frameReader{conn: conn, timeout: timeout}
}

func (r *frameReader) readFrame() ([]byte, error) {
	for {
		if i := bytes.IndexByte(r.buf.Bytes(), '\n'); i >= 0 {
			line := make([]byte, i)
			copy(line, r.buf.Bytes()[:i])
			r.buf.Next(i + 1)
			return bytes.TrimRight(line, "\r"), nil
		}

		r.conn.SetReadDeadline(time.Now().Add(r.timeout))
		n, err := r.conn.Read(r.scratch[:])
		if n > 0 {
			r.buf.Write(r.scratch[:n])
			continue
		}
		if err != nil {
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				if r.buf.Len() == 0 {
					continue
				}
				return nil, fmt.Errorf("transport: idle timeout with partial frame buffered: %w", err)
			}
			return nil, fmt.Errorf("transport: read stream: %w", err)
		}
	}
}
