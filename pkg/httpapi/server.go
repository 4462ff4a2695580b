package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/mash-protocol/base-station/pkg/activity"
	"github.com/mash-protocol/base-station/pkg/dispatch"
	"github.com/mash-protocol/base-station/pkg/issue"
	"github.com/mash-protocol/base-station/pkg/queue"
	"github.com/mash-protocol/base-station/pkg/registry"
	"github.com/rs/zerolog"
)

// testCoordinates is the preconfigured coordinate table the
// synthetic-issue endpoints draw from (§6, §12): a fixed spot per kind so
// an operator can exercise the dispatch pipeline without a real drone.
var testCoordinates = map[issue.Kind]struct{ X, Y, Z float64 }{
	issue.KindRust:              {X: 10, Y: 10, Z: 0},
	issue.KindOverheatedCircuit: {X: 50, Y: 50, Z: 0},
	issue.KindTiltedAntenna:     {X: 90, Y: 90, Z: 0},
}

// testIssueReporterID marks issues synthesized via the test endpoints so
// they're visible as such in the issue store and network log.
const testIssueReporterID = "operator-test"

// Server is the chi-backed HTTP status surface (§4.8).
type Server struct {
	registry   *registry.Registry
	issues     *issue.Store
	queue      *queue.Queue
	active     *dispatch.ActiveTable
	dispatcher *dispatch.Dispatcher
	commandLog *activity.CommandLog
	networkLog *activity.NetworkLog
	log        zerolog.Logger

	router chi.Router
}

// NewServer returns an HTTP status surface wired to the given coordination
// components. Call Handler to obtain the http.Handler to serve.
func NewServer(reg *registry.Registry, issues *issue.Store, q *queue.Queue, active *dispatch.ActiveTable, dispatcher *dispatch.Dispatcher, commandLog *activity.CommandLog, networkLog *activity.NetworkLog, log zerolog.Logger) *Server {
	s := &Server{
		registry:   reg,
		issues:     issues,
		queue:      q,
		active:     active,
		dispatcher: dispatcher,
		commandLog: commandLog,
		networkLog: networkLog,
		log:        log,
	}
	s.router = s.buildRouter()
	return s
}

// Handler returns the http.Handler to pass to an http.Server.
func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) buildRouter() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/roster", s.handleRoster)
	r.Get("/overview", s.handleOverview)
	r.Get("/issues", s.handleIssues)
	r.Get("/frames", s.handleFrames)
	r.Delete("/frames", s.handleClearFrames)
	r.Get("/commands", s.handleCommands)
	r.Post("/test/issue/{kind}", s.handleTestIssue)

	return r
}
