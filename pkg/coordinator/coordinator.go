package coordinator

import (
	"context"
	"fmt"
	"net/http"
	"path/filepath"
	"time"

	"github.com/mash-protocol/base-station/pkg/activity"
	"github.com/mash-protocol/base-station/pkg/dispatch"
	"github.com/mash-protocol/base-station/pkg/httpapi"
	"github.com/mash-protocol/base-station/pkg/issue"
	protolog "github.com/mash-protocol/base-station/pkg/log"
	"github.com/mash-protocol/base-station/pkg/persistence"
	"github.com/mash-protocol/base-station/pkg/policy"
	"github.com/mash-protocol/base-station/pkg/queue"
	"github.com/mash-protocol/base-station/pkg/reconcile"
	"github.com/mash-protocol/base-station/pkg/registry"
	"github.com/mash-protocol/base-station/pkg/transport"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// Coordinator owns every shared component of the base station and
// supervises their lifetimes. It is the single value DESIGN NOTE "Global
// mutable state" calls for: nothing in this module reaches for a
// package-level singleton instead of a Coordinator field.
type Coordinator struct {
	cfg Config
	log zerolog.Logger

	registry *registry.Registry
	issues   *issue.Store
	queue    *queue.Queue
	active   *dispatch.ActiveTable
	qtable   *policy.Table
	policy   *policy.Engine

	dispatcher *dispatch.Dispatcher
	reconciler *reconcile.Reconciler

	commandLog  *activity.CommandLog
	networkLog  *activity.NetworkLog
	protocolLog protolog.Logger

	transportSrv *transport.Server
	httpSrv      *httpapi.Server

	fileLogger *protolog.FileLogger
	httpServer *http.Server
}

// New wires every component together per SPEC_FULL.md §10.1's bundling
// convention. It does not start any listener; call Run for that.
func New(cfg Config, log zerolog.Logger) (*Coordinator, error) {
	cfg = cfg.withDefaults()

	reg := registry.NewRegistry()
	issues := issue.NewStore()
	q := queue.New()
	active := dispatch.NewActiveTable()
	commandLog := activity.NewCommandLog()
	networkLog := activity.NewNetworkLog()

	var store *persistence.QTableStore
	if cfg.StateDir != "" {
		store = persistence.NewQTableStore(filepath.Join(cfg.StateDir, "qtable.cbor"))
	}

	table := policy.NewTable()
	pol := policy.NewEngine(table, store)
	if cfg.Epsilon > 0 {
		pol.SetEpsilon(cfg.Epsilon)
	}
	if cfg.Alpha > 0 {
		pol.SetAlpha(cfg.Alpha)
	}
	if cfg.SnapshotProbability > 0 {
		pol.SetSnapshotProbability(cfg.SnapshotProbability)
	}
	if err := pol.Restore(); err != nil {
		log.Warn().Err(err).Msg("failed to restore Q-table snapshot, starting from zero")
	}

	var protoLog protolog.Logger = protolog.NoopLogger{}
	var fileLogger *protolog.FileLogger
	if cfg.ProtocolLogFile != "" {
		var err error
		fileLogger, err = protolog.NewFileLogger(cfg.ProtocolLogFile)
		if err != nil {
			return nil, fmt.Errorf("coordinator: open protocol log: %w", err)
		}
		protoLog = protolog.NewMultiLogger(fileLogger)
	}

	c := &Coordinator{
		cfg:         cfg,
		log:         log,
		registry:    reg,
		issues:      issues,
		queue:       q,
		active:      active,
		qtable:      table,
		policy:      pol,
		commandLog:  commandLog,
		networkLog:  networkLog,
		protocolLog: protoLog,
		fileLogger:  fileLogger,
	}

	tcfg := transport.Config{
		DiscoveryAddr: cfg.DiscoveryAddr,
		StreamAddr:    cfg.StreamAddr,
		OutboundPort:  cfg.OutboundPort,
		BaseStationIP: cfg.BaseStationIP,
	}
	transportSrv := transport.NewServer(tcfg, reg, issues, nil, nil, networkLog, protoLog, log)
	disp := dispatch.New(reg, q, pol, active, transportSrv, commandLog, log)
	rec := reconcile.New(reg, issues, active, q, pol, disp, log)

	c.dispatcher = disp
	c.reconciler = rec
	c.transportSrv = transportSrv
	transportSrv.SetDispatcher(disp)
	transportSrv.SetReconciler(rec)

	c.httpSrv = httpapi.NewServer(reg, issues, q, active, disp, commandLog, networkLog, log)

	return c, nil
}

// Run starts every worker — the UDP discovery listener, the TCP stream
// listener, the liveness sweeper, and the HTTP status surface — as a
// supervised errgroup: the first failure cancels the rest, and Run returns
// once everything has unwound (§10.1, §11: golang.org/x/sync/errgroup).
func (c *Coordinator) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		err := c.transportSrv.ServeDiscovery(ctx)
		if ctx.Err() != nil {
			return nil
		}
		return err
	})

	g.Go(func() error {
		err := c.transportSrv.ServeStream(ctx)
		if ctx.Err() != nil {
			return nil
		}
		return err
	})

	sweeper := registry.NewSweeper(c.registry, c.cfg.StaleThreshold, c.cfg.SweepInterval, c.onEvict)
	g.Go(func() error {
		err := sweeper.Run(ctx)
		if ctx.Err() != nil {
			return nil
		}
		return err
	})

	c.httpServer = &http.Server{Addr: c.cfg.HTTPAddr, Handler: c.httpSrv.Handler()}
	g.Go(func() error {
		err := c.httpServer.ListenAndServe()
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return c.httpServer.Shutdown(shutdownCtx)
	})

	err := g.Wait()

	if c.fileLogger != nil {
		if closeErr := c.fileLogger.Close(); closeErr != nil {
			c.log.Warn().Err(closeErr).Msg("failed to close protocol log file")
		}
	}

	return err
}

// onEvict logs each device the sweeper drops. Evicted devices keep whatever
// active task they held, per the documented Open Question resolution:
// the task stays in the active-task table until an explicit completion
// report for it arrives; neither the sweeper nor a later registration of
// the same identity removes it (§8 edge case 4, §9).
func (c *Coordinator) onEvict(ids []string) {
	for _, id := range ids {
		c.log.Info().Str("device_id", id).Msg("evicted stale device")
	}
}
