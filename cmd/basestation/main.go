// Command basestation runs the drone/robot coordination base station: the
// UDP discovery listener, the TCP stream listener, the liveness sweeper,
// and the read-only HTTP status surface, all wired through one
// coordinator.Coordinator (§10.1).
//
// Usage:
//
//	basestation [flags]
//
// Flags:
//
//	-discovery-addr string   UDP bind address for discovery/heartbeat/position (default ":8888")
//	-stream-addr string      TCP bind address for the inbound device stream (default ":9998")
//	-http-addr string        HTTP bind address for the status surface (default ":8080")
//	-outbound-port int       Well-known device command port, stored but not dialed; commands go to each device's reply port (default 9999)
//	-base-station-ip string  IP reported in CONNECTION_ACK frames
//	-state-dir string        Directory for the Q-table snapshot
//	-protocol-log string     File path for protocol event logging (CBOR format)
//	-epsilon float           Explore probability for the policy engine (default 0.15)
//	-alpha float             Learning rate for the policy engine (default 0.1)
//	-snapshot-probability float  Chance of persisting the Q-table after each update (default 0.1)
//	-log-level string        Log level: debug, info, warn, error (default "info")
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/mash-protocol/base-station/pkg/coordinator"
	"github.com/rs/zerolog"
)

// Config holds the process-level flags, mirroring cmd/mash-device's
// init()-registered flag.FlagVar pattern.
type Config struct {
	DiscoveryAddr string
	StreamAddr    string
	HTTPAddr      string
	OutboundPort  int
	BaseStationIP string

	StateDir        string
	ProtocolLogFile string

	Epsilon             float64
	Alpha               float64
	SnapshotProbability float64

	LogLevel string
}

var config Config

func init() {
	flag.StringVar(&config.DiscoveryAddr, "discovery-addr", "", "UDP bind address for discovery/heartbeat/position (default :8888)")
	flag.StringVar(&config.StreamAddr, "stream-addr", "", "TCP bind address for the inbound device stream (default :9998)")
	flag.StringVar(&config.HTTPAddr, "http-addr", ":8080", "HTTP bind address for the status surface")
	flag.IntVar(&config.OutboundPort, "outbound-port", 0, "Well-known device command port, stored but not dialed; commands go to each device's reply port (default 9999)")
	flag.StringVar(&config.BaseStationIP, "base-station-ip", "", "IP reported in CONNECTION_ACK frames")

	flag.StringVar(&config.StateDir, "state-dir", "", "Directory for the Q-table snapshot")
	flag.StringVar(&config.ProtocolLogFile, "protocol-log", "", "File path for protocol event logging (CBOR format)")

	flag.Float64Var(&config.Epsilon, "epsilon", 0, "Explore probability for the policy engine (default 0.15)")
	flag.Float64Var(&config.Alpha, "alpha", 0, "Learning rate for the policy engine (default 0.1)")
	flag.Float64Var(&config.SnapshotProbability, "snapshot-probability", 0, "Chance of persisting the Q-table after each update (default 0.1)")

	flag.StringVar(&config.LogLevel, "log-level", "info", "Log level: debug, info, warn, error")
}

func main() {
	flag.Parse()

	log := newLogger(config.LogLevel)

	log.Info().Msg("base station starting")

	cfg := coordinator.Config{
		DiscoveryAddr:       config.DiscoveryAddr,
		StreamAddr:          config.StreamAddr,
		HTTPAddr:            config.HTTPAddr,
		OutboundPort:        config.OutboundPort,
		BaseStationIP:       config.BaseStationIP,
		StateDir:            config.StateDir,
		ProtocolLogFile:     config.ProtocolLogFile,
		Epsilon:             config.Epsilon,
		Alpha:               config.Alpha,
		SnapshotProbability: config.SnapshotProbability,
	}

	coord, err := coordinator.New(cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build coordinator")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := coord.Run(ctx); err != nil && ctx.Err() == nil {
		log.Fatal().Err(err).Msg("coordinator exited with error")
	}

	log.Info().Msg("base station stopped")
}

func newLogger(level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
		Level(lvl).
		With().
		Timestamp().
		Logger()
}
