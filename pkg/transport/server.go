package transport

import (
	"context"
	"net"
	"time"

	"github.com/google/uuid"
	"github.com/mash-protocol/base-station/pkg/activity"
	"github.com/mash-protocol/base-station/pkg/dispatch"
	"github.com/mash-protocol/base-station/pkg/issue"
	protolog "github.com/mash-protocol/base-station/pkg/log"
	"github.com/mash-protocol/base-station/pkg/reconcile"
	"github.com/mash-protocol/base-station/pkg/registry"
	"github.com/mash-protocol/base-station/pkg/wire"
	"github.com/rs/zerolog"
)

// Server wires the UDP discovery listener, the TCP stream listener, and
// the outbound command dialer to the coordination engine. One Server is
// constructed per process, grounded on pkg/transport.Server's Start/Stop
// lifecycle in the teacher repo, adapted here to two listeners instead of
// one TLS socket.
type Server struct {
	cfg Config

	registry    *registry.Registry
	issues      *issue.Store
	dispatcher  *dispatch.Dispatcher
	reconciler  *reconcile.Reconciler
	networkLog  *activity.NetworkLog
	protocolLog protolog.Logger
	log         zerolog.Logger
}

// NewServer returns a server wired to the given coordination components.
// protocolLog may be protolog.NoopLogger{} to disable replayable frame
// logging.
func NewServer(cfg Config, reg *registry.Registry, issues *issue.Store, dispatcher *dispatch.Dispatcher, reconciler *reconcile.Reconciler, networkLog *activity.NetworkLog, protocolLog protolog.Logger, log zerolog.Logger) *Server {
	return &Server{
		cfg:         cfg.withDefaults(),
		registry:    reg,
		issues:      issues,
		dispatcher:  dispatcher,
		reconciler:  reconciler,
		networkLog:  networkLog,
		protocolLog: protocolLog,
		log:         log,
	}
}

// SetDispatcher wires the dispatcher used to handle inbound QR_SCAN
// frames. It exists because the dispatcher's Sender dependency is this
// same Server, so the two must be constructed in two steps by the caller
// (pkg/coordinator).
func (s *Server) SetDispatcher(d *dispatch.Dispatcher) { s.dispatcher = d }

// SetReconciler wires the reconciler used to handle inbound TASK_COMPLETED
// frames, for the same two-step construction reason as SetDispatcher.
func (s *Server) SetReconciler(r *reconcile.Reconciler) { s.reconciler = r }

func (s *Server) recordFrame(transportName, direction string, msgType wire.MessageType, remoteAddr string) {
	s.networkLog.Record(activity.FrameRecord{
		Timestamp:   time.Now(),
		Transport:   transportName,
		Direction:   direction,
		MessageType: msgType,
		RemoteAddr:  remoteAddr,
	})
}

func (s *Server) logEvent(connID string, layer protolog.Layer, direction protolog.Direction, frame *protolog.FrameEvent) {
	s.protocolLog.Log(protolog.Event{
		Timestamp:    time.Now(),
		ConnectionID: connID,
		Direction:    direction,
		Layer:        layer,
		Category:     protolog.CategoryMessage,
		Frame:        frame,
	})
}

func (s *Server) logError(layer protolog.Layer, context string, err error) {
	s.protocolLog.Log(protolog.Event{
		Timestamp: time.Now(),
		Layer:     layer,
		Category:  protolog.CategoryError,
		Error: &protolog.ErrorEventData{
			Layer:   layer,
			Message: err.Error(),
			Context: context,
		},
	})
}

func newConnID() string { return uuid.New().String() }

// helper: resolve a net.Addr into the host:port string the registry keys on.
func addrString(a net.Addr) string {
	if a == nil {
		return ""
	}
	return a.String()
}

func dialTimeout(ctx context.Context, addr string, timeout time.Duration) (net.Conn, error) {
	d := net.Dialer{Timeout: timeout}
	return d.DialContext(ctx, "tcp", addr)
}
